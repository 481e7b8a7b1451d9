// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"fmt"
	"strings"
	"testing"
)

// TestDecodeBody tests the response decoding policy
func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{
			name: "empty body",
			body: "",
			want: `{"data":[]}`,
		},
		{
			name: "whitespace body",
			body: " \n\t ",
			want: `{"data":[]}`,
		},
		{
			name: "object",
			body: `{"version":"2021.3.0"}`,
			want: `{"version":"2021.3.0"}`,
		},
		{
			name: "array",
			body: `[{"key":"a"},{"key":"b"}]`,
			want: `[{"key":"a"},{"key":"b"}]`,
		},
		{
			name: "surrounding whitespace",
			body: "\n{\"ok\":true}\n",
			want: `{"ok":true}`,
		},
		{
			name: "stream of objects",
			body: "{\"result\":{\"value\":1}}\n{\"result\":{\"value\":2}}\n{\"result\":{\"value\":3}}\n",
			want: `{"data":[{"result":{"value":1}},{"result":{"value":2}},{"result":{"value":3}}]}`,
		},
		{
			name: "stream with blank lines",
			body: "{\"a\":1}\n\n{\"a\":2}",
			want: `{"data":[{"a":1},{"a":2}]}`,
		},
		{
			name: "stream of indented objects",
			body: "{\n  \"result\": {\n    \"value\": 1\n  }\n}\n{\n  \"result\": {\n    \"value\": 2\n  }\n}\n",
			want: `{"data":[{"result":{"value":1}},{"result":{"value":2}}]}`,
		},
		{
			name: "stream without separators",
			body: `{"a":1}{"a":2} {"a":"x y"}`,
			want: `{"data":[{"a":1},{"a":2},{"a":"x y"}]}`,
		},
		{
			name:    "indented stream with undecodable document",
			body:    "{\n  \"a\": 1\n}\n{\n  \"a\": oops\n}",
			wantErr: "line 4: {",
		},
		{
			name:    "stream with undecodable line",
			body:    "{\"a\":1}\n{\"a\":\n{\"a\":3}",
			wantErr: "line 2",
		},
		{
			name:    "not json",
			body:    "<html>oops</html>",
			wantErr: "line 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := decodeBody([]byte(tt.body))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error, got %s", res.Raw)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not name %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Raw != tt.want {
				t.Errorf("decodeBody() = %s, want %s", res.Raw, tt.want)
			}
		})
	}
}

// TestDecodeBody_Idempotent tests that decoding a decoded document yields the same document
func TestDecodeBody_Idempotent(t *testing.T) {
	bodies := []string{
		`{"version":"2021.3.0","appVersion":"Phase_2"}`,
		`[1,2,3]`,
		"{\"a\":1}\n{\"a\":2}",
		"",
	}

	for _, body := range bodies {
		first, err := decodeBody([]byte(body))
		if err != nil {
			t.Fatalf("decodeBody(%q): %v", body, err)
		}
		second, err := decodeBody([]byte(first.Raw))
		if err != nil {
			t.Fatalf("decodeBody(decoded %q): %v", body, err)
		}
		if first.Raw != second.Raw {
			t.Errorf("decode not idempotent for %q: %s vs %s", body, first.Raw, second.Raw)
		}
	}
}

// TestDecodeBody_StreamOrder tests that M streamed objects keep their order
func TestDecodeBody_StreamOrder(t *testing.T) {
	const m = 50
	var b strings.Builder
	for i := 0; i < m; i++ {
		fmt.Fprintf(&b, "{\"i\":%d}\n", i)
	}

	res, err := decodeBody([]byte(b.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := res.Get("data").Array()
	if len(items) != m {
		t.Fatalf("expected %d items, got %d", m, len(items))
	}
	for i, item := range items {
		if item.Get("i").Int() != int64(i) {
			t.Errorf("item %d = %d", i, item.Get("i").Int())
		}
	}
}

// TestTruncateBody tests message truncation
func TestTruncateBody(t *testing.T) {
	if got := truncateBody("short", 10); got != "short" {
		t.Errorf("truncateBody() = %q", got)
	}
	if got := truncateBody("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("truncateBody() = %q", got)
	}
}
