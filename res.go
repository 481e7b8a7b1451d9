// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Res is a decoded controller response
//
// Res is a gjson.Result, so values are read with gjson path syntax:
//
//	res, err := client.Get(ctx, "/cvpInfo/getCvpInfo.do")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	version := res.Get("version").String()
//
// Streaming (newline-delimited) responses are wrapped as {"data": [...]}:
//
//	res, _ := client.Get(ctx, "/api/resources/tag/v2/Tag/all")
//	for _, item := range res.Get("data").Array() {
//	    fmt.Println(item.Get("result.value.key.label").String())
//	}
type Res = gjson.Result

// emptyData is the payload returned for an empty response body
const emptyData = `{"data":[]}`

// decodeBody decodes a response body into a Res
//
// Policy:
//   - empty (or whitespace-only) body: {"data": []}
//   - valid JSON document: the document itself
//   - concatenated JSON documents, one per line or pretty-printed:
//     {"data": [obj, obj, ...]} in order
//   - anything else: an error naming the line the first undecodable
//     document starts on
func decodeBody(body []byte) (Res, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return gjson.Parse(emptyData), nil
	}

	if gjson.ValidBytes(trimmed) {
		return gjson.ParseBytes(trimmed), nil
	}

	return decodeStream(trimmed)
}

// decodeStream assembles concatenated JSON documents into {"data": [...]}
//
// Documents are split on their own boundaries, so a stream of pretty-printed
// objects decodes the same as one object per line. Each document is
// compacted before it is appended. A single undecodable document fails the
// whole body; nothing is truncated.
func decodeStream(body []byte) (Res, error) {
	out := emptyData
	dec := json.NewDecoder(bytes.NewReader(body))
	for {
		start := int(dec.InputOffset())
		var doc json.RawMessage
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Res{}, streamError(body, start)
		}
		out, err = sjson.SetRaw(out, "data.-1", string(pretty.Ugly(doc)))
		if err != nil {
			return Res{}, fmt.Errorf("failed to assemble streaming response: %w", err)
		}
	}
	return gjson.Parse(out), nil
}

// streamError reports the undecodable document starting after offset by its
// line number and the text of that line
func streamError(body []byte, offset int) error {
	for offset < len(body) && isJSONSpace(body[offset]) {
		offset++
	}
	lineNo := bytes.Count(body[:offset], []byte("\n")) + 1
	line := body[offset:]
	if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return fmt.Errorf("invalid JSON in response body at line %d: %s",
		lineNo, truncateBody(string(bytes.TrimSpace(line)), 100))
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// truncateBody shortens s to at most n bytes for messages and logs
func truncateBody(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
