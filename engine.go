// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Get performs a GET request against the bound node
//
// path is relative to the API prefix (https://node:443/web) and must already
// be URL-encoded. The request follows the retry and failover rules of the
// client: timeouts and server-side logouts are retried on the same node,
// transport failures move to the next node, and controller errors are
// returned at once.
//
// Example:
//
//	res, err := client.Get(ctx, "/cvpInfo/getCvpInfo.do")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Get("version").String())
func (c *Client) Get(ctx context.Context, path string, mods ...func(*Req)) (Res, error) {
	return c.request(ctx, http.MethodGet, path, nil, mods...)
}

// Post performs a POST request with a JSON body against the bound node
//
// body may be nil (no body), a Body builder, a string, []byte or
// json.RawMessage holding JSON, or any value encoding/json can marshal.
//
// Example:
//
//	body := cvprac.Body{}.Set("name", "ntp").Set("config", "ntp server 10.0.0.1")
//	res, err := client.Post(ctx, "/configlet/addConfiglet.do", body)
func (c *Client) Post(ctx context.Context, path string, body any, mods ...func(*Req)) (Res, error) {
	data, err := encodeBody(body)
	if err != nil {
		return Res{}, newError(KindRequest, "", "", err)
	}
	if err := validateBody(data); err != nil {
		return Res{}, newError(KindRequest, "", "", err)
	}
	return c.request(ctx, http.MethodPost, path, data, mods...)
}

// encodeBody converts a request body to JSON bytes
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case Body:
		return b.Bytes()
	case *Body:
		if b == nil {
			return nil, nil
		}
		return b.Bytes()
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}

// request runs the retry/failover state machine for one logical request
//
// Two budgets apply. retries (MaxRetriesPerNode) absorbs timeouts and
// server-side logouts on the bound node; nodesLeft absorbs node failures by
// rebinding to another node. ApiError and RequestError are never retried.
func (c *Client) request(ctx context.Context, method, path string, body []byte, mods ...func(*Req)) (Res, error) {
	req := &Req{}
	for _, mod := range mods {
		mod(req)
	}

	if err := validatePath(path); err != nil {
		return Res{}, newError(KindRequest, "", "", err)
	}
	if err := ctx.Err(); err != nil {
		return Res{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Res{}, newError(KindNoSession, "", "client has no session, connect first", nil)
	}

	requestID := uuid.NewString()
	nodesLeft := c.pool.count()
	retries := c.MaxRetriesPerNode
	timeouts := 0
	var lastErr *CvpError

	for {
		if lastErr != nil {
			nodesLeft--
			if nodesLeft <= 0 {
				return Res{}, c.fatal(ctx, requestID, lastErr)
			}
			if err := c.createSession(ctx, false); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Res{}, ctxErr
				}
				c.logger.Error(ctx, "failover found no usable node",
					"request_id", requestID,
					"error", err.Error())
			}
			if c.session == nil {
				return Res{}, c.fatal(ctx, requestID, lastErr)
			}
			retries = c.MaxRetriesPerNode
			timeouts = 0
			lastErr = nil
		}

		s := c.session
		node := s.node.String()

		raw, err := c.send(ctx, s, method, path, body, req, requestID)
		if err != nil {
			var cvpErr *CvpError
			if !errors.As(err, &cvpErr) {
				return Res{}, err
			}
			if !cvpErr.Kind.transport() {
				return Res{}, c.fatal(ctx, requestID, cvpErr)
			}
			if cvpErr.Kind == KindTimeout {
				retries--
				if retries > 0 {
					delay := c.Backoff(timeouts)
					timeouts++
					c.logger.Warn(ctx, "request timed out, retrying on same node",
						"request_id", requestID,
						"node", node,
						"retries_left", retries,
						"backoff", delay.String())
					if err := sleepContext(ctx, delay); err != nil {
						return Res{}, err
					}
					continue
				}
			}
			c.logger.Warn(ctx, "transport failure, moving to next node",
				"request_id", requestID,
				"node", node,
				"kind", cvpErr.Kind.String(),
				"error", cvpErr.Message)
			lastErr = cvpErr
			continue
		}

		res, cvpErr := classifyResponse(node, raw, s.authenticated)
		if cvpErr == nil {
			return res, nil
		}

		switch cvpErr.Kind {
		case KindSessionLoggedOut:
			retries--
			if retries > 0 {
				c.logger.Warn(ctx, "session logged out, logging in again",
					"request_id", requestID,
					"node", node,
					"retries_left", retries)
				if err := c.resetSession(ctx); err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return Res{}, ctxErr
					}
					c.logger.Warn(ctx, "re-login failed",
						"request_id", requestID,
						"node", node,
						"error", err.Error())
				}
				if c.session != nil {
					continue
				}
			}
			lastErr = cvpErr
			continue
		default:
			return Res{}, c.fatal(ctx, requestID, cvpErr)
		}
	}
}

// fatal logs a terminal request error and returns it
func (c *Client) fatal(ctx context.Context, requestID string, err *CvpError) error {
	c.logger.Error(ctx, "request failed",
		"request_id", requestID,
		"kind", err.Kind.String(),
		"node", err.Node,
		"error", err.Message)
	return err
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
