// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/sjson"
)

// Controller paths used by the session layer
const (
	loginPath   = "/login/authenticate.do"
	logoutPath  = "/login/logout.do"
	cvpInfoPath = "/cvpInfo/getCvpInfo.do"
)

// SessionHeader carries the session id returned by password login
const SessionHeader = "APP_SESSION_ID"

// authProvider logs a fresh session in to its node
type authProvider interface {
	login(ctx context.Context, c *Client, s *session) error
}

// authProvider selects token or password authentication from the credentials
func (c *Client) authProvider() authProvider {
	if c.creds.apiToken != "" {
		return tokenAuth{token: c.creds.apiToken, saas: c.params.SaaS}
	}
	return passwordAuth{username: c.creds.username, password: c.creds.password}
}

// passwordAuth posts username/password to the login path; the reply sets the
// session cookie and carries the session id
type passwordAuth struct {
	username string
	password string
}

func (a passwordAuth) login(ctx context.Context, c *Client, s *session) error {
	body, err := sjson.Set("", "userId", a.username)
	if err == nil {
		body, err = sjson.Set(body, "password", a.password)
	}
	if err != nil {
		return newError(KindLogin, s.node.String(), "", fmt.Errorf("failed to build login request: %w", err))
	}

	s.headers.Del(SessionHeader)
	raw, err := c.send(ctx, s, http.MethodPost, loginPath, []byte(body), &Req{}, "")
	if err != nil {
		return loginError(s.node, err)
	}

	res, cvpErr := classifyResponse(s.node.String(), raw, false)
	if cvpErr != nil {
		return loginError(s.node, cvpErr)
	}

	sessionID := res.Get("sessionId").String()
	if sessionID == "" {
		return newError(KindLogin, s.node.String(), "login reply carries no sessionId", nil)
	}
	s.headers.Set(SessionHeader, sessionID)
	s.authenticated = true

	c.logger.Debug(ctx, "password login succeeded",
		"node", s.node.String(),
		"user", a.username)
	return nil
}

// tokenAuth installs a bearer token and verifies it with one authenticated call
type tokenAuth struct {
	token string
	saas  bool
}

func (a tokenAuth) login(ctx context.Context, c *Client, s *session) error {
	s.headers.Set("Authorization", "Bearer "+a.token)

	u, err := url.Parse(s.node.URLPrefix())
	if err == nil {
		s.http.Jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: a.token, Path: "/"}})
	}

	raw, err := c.send(ctx, s, http.MethodGet, cvpInfoPath, nil, &Req{}, "")
	if err != nil {
		return loginError(s.node, err)
	}

	// a rejected token is a 401 before any session existed
	res, cvpErr := classifyResponse(s.node.String(), raw, false)
	if cvpErr != nil {
		return loginError(s.node, cvpErr)
	}
	s.authenticated = true

	if a.saas {
		c.cacheVersion(ctx, res.Get("version").String())
	}

	c.logger.Debug(ctx, "token login verified",
		"node", s.node.String(),
		"saas", a.saas)
	return nil
}

// loginError wraps any failure during login as LoginError carrying the inner message
func loginError(node NodeEndpoint, err error) error {
	var cvpErr *CvpError
	if !errors.As(err, &cvpErr) {
		// context cancellation is passed through untouched
		return err
	}
	wrapped := newError(KindLogin, node.String(), cvpErr.Message, cvpErr)
	wrapped.Code = cvpErr.Code
	return wrapped
}
