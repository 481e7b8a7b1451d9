// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the class of a failure produced by the request engine
type ErrorKind int

const (
	// KindLogin indicates that no node accepted authentication
	KindLogin ErrorKind = iota + 1

	// KindRequest indicates a malformed request or a non-2xx reply
	KindRequest

	// KindAPI indicates the controller returned a structured error payload with a 2xx status
	KindAPI

	// KindSessionLoggedOut indicates the session was invalidated server-side
	KindSessionLoggedOut

	// KindTimeout indicates the connect or read deadline expired
	KindTimeout

	// KindConnection indicates the node could not be reached
	KindConnection

	// KindTooManyRedirects indicates the redirect limit was exceeded
	KindTooManyRedirects

	// KindHTTP indicates a protocol-level failure while exchanging the request
	KindHTTP

	// KindNoSession indicates the client has no bound session
	KindNoSession
)

// Sentinel errors, one per ErrorKind, for errors.Is checks
var (
	ErrLogin            = errors.New("cvprac: login failed")
	ErrRequest          = errors.New("cvprac: request error")
	ErrAPI              = errors.New("cvprac: api error")
	ErrSessionLoggedOut = errors.New("cvprac: session logged out")
	ErrTimeout          = errors.New("cvprac: timeout")
	ErrConnection       = errors.New("cvprac: connection error")
	ErrTooManyRedirects = errors.New("cvprac: too many redirects")
	ErrHTTP             = errors.New("cvprac: http error")
	ErrNoSession        = errors.New("cvprac: no session")
)

var kindSentinels = map[ErrorKind]error{
	KindLogin:            ErrLogin,
	KindRequest:          ErrRequest,
	KindAPI:              ErrAPI,
	KindSessionLoggedOut: ErrSessionLoggedOut,
	KindTimeout:          ErrTimeout,
	KindConnection:       ErrConnection,
	KindTooManyRedirects: ErrTooManyRedirects,
	KindHTTP:             ErrHTTP,
	KindNoSession:        ErrNoSession,
}

// String returns the name of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindLogin:
		return "LoginError"
	case KindRequest:
		return "RequestError"
	case KindAPI:
		return "ApiError"
	case KindSessionLoggedOut:
		return "SessionLoggedOut"
	case KindTimeout:
		return "Timeout"
	case KindConnection:
		return "ConnectionError"
	case KindTooManyRedirects:
		return "TooManyRedirects"
	case KindHTTP:
		return "HttpError"
	case KindNoSession:
		return "NoSession"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// transport reports whether the kind is a transport-layer failure
func (k ErrorKind) transport() bool {
	return k == KindTimeout || k == KindConnection || k == KindTooManyRedirects || k == KindHTTP
}

// CvpError is the error returned by every request engine operation
//
// Callers match on Kind, or use errors.Is with the kind sentinels:
//
//	_, err := client.Get(ctx, "/cvpInfo/getCvpInfo.do")
//	if errors.Is(err, cvprac.ErrAPI) {
//	    var cvpErr *cvprac.CvpError
//	    errors.As(err, &cvpErr)
//	    fmt.Println(cvpErr.Code, cvpErr.Message)
//	}
type CvpError struct {
	// Kind classifies the failure
	Kind ErrorKind

	// Message is the human-readable description
	Message string

	// Code is the controller errorCode (ApiError) or the HTTP status code, if known
	Code string

	// Node is the controller node that produced the error, if any
	Node string

	// Err is the underlying cause (transport error, decode error), if any
	Err error
}

// Error implements the error interface
func (e *CvpError) Error() string {
	msg := fmt.Sprintf("cvprac: %s: %s", e.Kind, e.Message)
	if e.Node != "" {
		msg = fmt.Sprintf("%s (node: %s)", msg, e.Node)
	}
	return msg
}

// Unwrap returns the kind sentinel so errors.Is(err, ErrTimeout) works
func (e *CvpError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// Cause returns the underlying transport or decode error
func (e *CvpError) Cause() error {
	return e.Err
}

// newError builds a CvpError, using the cause's message when msg is empty
func newError(kind ErrorKind, node, msg string, cause error) *CvpError {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &CvpError{Kind: kind, Message: msg, Node: node, Err: cause}
}

// KindOf returns the ErrorKind of err, or 0 if err is not a CvpError
func KindOf(err error) ErrorKind {
	var cvpErr *CvpError
	if errors.As(err, &cvpErr) {
		return cvpErr.Kind
	}
	return 0
}
