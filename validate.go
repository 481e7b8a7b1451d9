// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Input validation constants
const (
	// MaxBodySize is the maximum size of a request body in bytes (10MB)
	MaxBodySize = 10 * 1024 * 1024

	// MaxPathLength is the maximum length of a request path including the query
	MaxPathLength = 4096
)

// validatePath validates a request path before it is sent
//
// Checks:
//   - Path is not empty and starts with "/"
//   - Path length does not exceed MaxPathLength
//   - No whitespace or control characters (parameters must be escaped)
//   - No traversal segments
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with '/': %s", truncatePath(path))
	}
	if len(path) > MaxPathLength {
		return fmt.Errorf("path exceeds maximum length of %d characters: %s", MaxPathLength, truncatePath(path))
	}

	for i := 0; i < len(path); i++ {
		ch := path[i]
		if ch == 0 {
			return fmt.Errorf("path contains null byte at position %d", i)
		}
		if ch <= ' ' || ch == 0x7f {
			return fmt.Errorf("path contains unescaped character %q at position %d", ch, i)
		}
	}

	route := path
	if i := strings.IndexByte(route, '?'); i >= 0 {
		route = route[:i]
	}
	if strings.Contains(route+"/", "/../") {
		return fmt.Errorf("path contains traversal segment: %s", truncatePath(path))
	}

	return nil
}

// validateBody validates an encoded request body
//
// An empty body is valid. Anything else must be a single JSON document no
// larger than MaxBodySize.
func validateBody(body []byte) error {
	if len(body) > MaxBodySize {
		return fmt.Errorf("body size exceeds maximum of %d bytes (got %d bytes)", MaxBodySize, len(body))
	}
	if len(body) == 0 {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("body is not valid JSON")
	}
	return nil
}

// truncatePath truncates a path for error messages
//
// Returns the first 100 characters of the path followed by "..." if longer.
func truncatePath(path string) string {
	if len(path) <= 100 {
		return path
	}
	return path[:100] + "..."
}
