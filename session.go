// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"syscall"
)

// maxRedirects is the redirect limit of a session's HTTP client
const maxRedirects = 10

var errTooManyRedirects = errors.New("stopped after 10 redirects")

// session is an authenticated HTTP context bound to one node
type session struct {
	node    NodeEndpoint
	http    *http.Client
	headers http.Header

	// authenticated is set once login succeeded on node
	authenticated bool
}

// newSession builds a fresh HTTP client for node: new cookie jar, TLS policy
// applied, default headers seeded
func (c *Client) newSession(node NodeEndpoint) (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := c.transport
	if transport == nil {
		transport, err = c.newTransport()
		if err != nil {
			return nil, err
		}
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("Content-Type", "application/json")

	return &session{
		node: node,
		http: &http.Client{
			Transport: transport,
			Jar:       jar,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		headers: headers,
	}, nil
}

// newTransport builds a transport with the connect timeout and TLS policy of
// the connection
func (c *Client) newTransport() (*http.Transport, error) {
	tlsConfig := &tls.Config{
		//nolint:gosec // G402: verification is a connection option, off by default
		InsecureSkipVerify: !c.params.VerifyCertificate,
		MinVersion:         tls.VersionTLS12,
	}

	if c.params.CertificatePath != "" {
		pem, err := os.ReadFile(c.params.CertificatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA bundle")
		}
		tlsConfig.RootCAs = pool
	}

	dialer := &net.Dialer{Timeout: c.params.ConnectTimeout}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: c.params.ConnectTimeout,
		TLSClientConfig:     tlsConfig,
		MaxIdleConnsPerHost: 2,
	}, nil
}

// close releases idle connections of a session-owned transport
func (s *session) close(shared bool) {
	if s == nil || shared {
		return
	}
	s.http.CloseIdleConnections()
}

// dropSession clears the session and the bound node
//
// PRECONDITION: Caller must hold c.mu.
func (c *Client) dropSession() {
	c.session.close(c.transport != nil)
	c.session = nil
	if c.pool != nil {
		c.pool.unbind()
	}
}

// resetSession replaces the session with a fresh one logged in to the node
// under the pool cursor. On failure the client holds no session.
//
// PRECONDITION: Caller must hold c.mu.
func (c *Client) resetSession(ctx context.Context) error {
	node := c.pool.current()
	c.dropSession()

	s, err := c.newSession(node)
	if err != nil {
		return newError(KindLogin, node.String(), "", err)
	}

	if err := c.authProvider().login(ctx, c, s); err != nil {
		return err
	}

	c.session = s
	c.pool.bind()
	c.logger.Info(ctx, "session established",
		"node", node.String(),
		"auth", c.authMode())
	return nil
}

// createSession walks the node pool and binds the first node that accepts a
// login
//
// With allNodes every node is tried, starting after the cursor; otherwise all
// nodes but the current one. Per-node failures are collected into the
// returned LoginError. Context cancellation stops the walk.
//
// PRECONDITION: Caller must hold c.mu.
func (c *Client) createSession(ctx context.Context, allNodes bool) error {
	candidates := c.pool.count()
	if !allNodes {
		candidates--
	}

	var reasons []string
	for i := 0; i < candidates; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		node := c.pool.next()
		err := c.resetSession(ctx)
		if err == nil {
			if !allNodes {
				c.logger.Info(ctx, "session rebound", "node", node.String())
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn(ctx, "login failed",
			"node", node.String(),
			"error", err.Error())
		reasons = append(reasons, fmt.Sprintf("%s: %s", node.String(), errorMessage(err)))
	}

	msg := "no node accepted authentication"
	if len(reasons) > 0 {
		msg = fmt.Sprintf("%s:\n%s", msg, strings.Join(reasons, "\n"))
	}
	return newError(KindLogin, "", msg, nil)
}

// send performs one HTTP exchange on s and returns the raw reply
//
// Transport failures are returned as *CvpError (Timeout, ConnectionError,
// TooManyRedirects, HttpError). Cancellation of ctx is returned as ctx.Err().
// The read timeout bounds the whole exchange including reading the body.
func (c *Client) send(ctx context.Context, s *session, method, path string, body []byte, req *Req, requestID string) (rawResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rawResponse{}, ctxErr
			}
			// Wait fails early when the deadline cannot be met
			return rawResponse{}, context.DeadlineExceeded
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.params.RequestTimeout
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := s.node.URLPrefix() + path
	if req.HostRoot {
		url = fmt.Sprintf("%s://%s%s", s.node.Scheme, s.node.hostPort(), path)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
	if err != nil {
		return rawResponse{}, newError(KindRequest, s.node.String(), "", err)
	}
	for key, values := range s.headers {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	if requestID != "" {
		httpReq.Header.Set("X-Request-Id", requestID)
	}

	c.logger.Debug(ctx, "HTTP request",
		"method", method,
		"url", url,
		"request_id", requestID,
		"timeout", timeout.String())
	if body != nil {
		c.logger.Debug(ctx, "HTTP request body",
			"request_id", requestID,
			"body", c.prepareJSONForLogging(ctx, string(body)))
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return rawResponse{}, c.transportError(ctx, attemptCtx, s.node, err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body fully read or abandoned
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return rawResponse{}, c.transportError(ctx, attemptCtx, s.node, err)
	}

	c.logger.Debug(ctx, "HTTP response",
		"request_id", requestID,
		"status", resp.StatusCode,
		"bytes", len(data))

	return rawResponse{StatusCode: resp.StatusCode, Status: resp.Status, Body: data}, nil
}

// transportError maps an error from the HTTP facility onto the taxonomy
func (c *Client) transportError(ctx, attemptCtx context.Context, node NodeEndpoint, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var netErr net.Error
	switch {
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return newError(KindTimeout, node.String(), "", err)
	case errors.Is(err, errTooManyRedirects):
		return newError(KindTooManyRedirects, node.String(), "", err)
	case isConnectionError(err):
		return newError(KindConnection, node.String(), "", err)
	default:
		return newError(KindHTTP, node.String(), "", err)
	}
}

// isConnectionError reports dial, DNS and reset failures
func isConnectionError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) ||
		errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// errorMessage returns the bare message of a CvpError, or err.Error()
func errorMessage(err error) string {
	var cvpErr *CvpError
	if errors.As(err, &cvpErr) {
		return cvpErr.Message
	}
	return err.Error()
}
