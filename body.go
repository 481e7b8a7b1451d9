// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building JSON request payloads
// using sjson for path-based manipulation.
//
// The builder records the first error so calls can be chained; Post
// returns that error as a RequestError without sending anything.
//
// Example:
//
//	body := cvprac.Body{}.
//	    Set("name", "ntp-servers").
//	    Set("config", "ntp server 10.0.0.1\n").
//	    Set("reconciled", false)
//
//	res, err := client.Post(ctx, "/configlet/addConfiglet.do", body)
type Body struct {
	str string
	err error
}

// Set sets a value at the specified sjson path and returns a new Body
//
// "data.-1" appends to an existing data array:
//
//	body := cvprac.Body{}.
//	    SetRaw("data", "[]").
//	    Set("data.-1", "task-1").
//	    Set("data.-1", "task-2")
//	// {"data":["task-1","task-2"]}
func (b Body) Set(path string, value any) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Set(%q): %w", path, err)}
	}
	return Body{str: result}
}

// SetRaw sets pre-encoded JSON at the specified path
func (b Body) SetRaw(path, rawJSON string) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.SetRaw(b.str, path, rawJSON)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("SetRaw(%q): %w", path, err)}
	}
	return Body{str: result}
}

// Delete removes a value at the specified path and returns a new Body
func (b Body) Delete(path string) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Delete(b.str, path)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Delete(%q): %w", path, err)}
	}
	return Body{str: result}
}

// String returns the JSON string and any error encountered during building
func (b Body) String() (string, error) {
	return b.str, b.err
}

// Err returns any error that occurred during building
func (b Body) Err() error {
	return b.err
}

// Bytes returns the JSON bytes and any error encountered during building
//
// An empty builder yields "{}" so that Post always sends a JSON document.
func (b Body) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.str == "" {
		return []byte("{}"), nil
	}
	return []byte(b.str), nil
}
