// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import "time"

// Req represents a request modifier target
//
// This struct is used to apply request-specific options via functional modifiers.
// The method, path and body are passed directly to Get/Post.
//
// Example:
//
//	// Get with a longer read timeout
//	res, err := client.Get(ctx, "/configlet/getConfiglets.do?startIndex=0&endIndex=0",
//	    cvprac.Timeout(2*time.Minute))
type Req struct {
	// Timeout is the read timeout for this call
	// Overrides the connection's RequestTimeout if set
	Timeout time.Duration

	// HostRoot resolves the path against scheme://host:port instead of the
	// /web API prefix (resource APIs live at the host root)
	HostRoot bool
}

// Timeout returns a request modifier that sets the read timeout for the call.
//
// The connect timeout is fixed per connection (see ConnectTimeout); this
// bounds the time waiting for the reply on each attempt.
//
// Example:
//
//	res, err := client.Post(ctx, "/provisioning/v2/saveTopology.do", []any{},
//	    cvprac.Timeout(90*time.Second))
func Timeout(duration time.Duration) func(*Req) {
	return func(req *Req) {
		req.Timeout = duration
	}
}

// HostRoot returns a request modifier that addresses the path from the host
// root, e.g. https://cvp1:443/api/resources/tag/v2/Tag/all
func HostRoot() func(*Req) {
	return func(req *Req) {
		req.HostRoot = true
	}
}
