// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// LogoutMarker is the body text the controller returns once a session was
// invalidated server-side. Matching is a case-sensitive substring match.
const LogoutMarker = "LOG OUT MESSAGE"

// rawResponse is the part of an HTTP response the classifier looks at
type rawResponse struct {
	StatusCode int
	Status     string
	Body       []byte
}

// classifyResponse turns a controller reply into a payload or a typed error
//
// Evaluation order:
//  1. Body contains LogoutMarker: SessionLoggedOut
//  2. 401 while the request carried an authenticated session: SessionLoggedOut
//  3. Non-2xx status: RequestError; the messages of a structured error body
//     are appended to the status text
//  4. Body is a JSON object with errorCode, errorMessage or a non-empty errors
//     array: ApiError
//  5. Otherwise the decoded body; an undecodable body is a RequestError
//     wrapping the decode error
//
// authenticated tells whether the session had logged in before this request.
func classifyResponse(node string, resp rawResponse, authenticated bool) (Res, *CvpError) {
	code := strconv.Itoa(resp.StatusCode)

	if strings.Contains(string(resp.Body), LogoutMarker) {
		err := newError(KindSessionLoggedOut, node, "session logged out", nil)
		err.Code = code
		return Res{}, err
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		err := newError(KindSessionLoggedOut, node, "session logged out: "+statusText(resp), nil)
		err.Code = code
		return Res{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := statusText(resp)
		if apiErr := extractAPIError(node, resp.Body); apiErr != nil {
			msg = fmt.Sprintf("%s: %s", msg, apiErr.Message)
		} else if body := strings.TrimSpace(string(resp.Body)); body != "" {
			msg = fmt.Sprintf("%s: %s", msg, truncateBody(body, 200))
		}
		err := newError(KindRequest, node, msg, nil)
		err.Code = code
		return Res{}, err
	}

	if apiErr := extractAPIError(node, resp.Body); apiErr != nil {
		return Res{}, apiErr
	}

	res, decodeErr := decodeBody(resp.Body)
	if decodeErr != nil {
		err := newError(KindRequest, node, "", decodeErr)
		err.Code = code
		return Res{}, err
	}
	return res, nil
}

// extractAPIError returns an ApiError when body carries a structured error
//
// Messages are collected from errorMessage and every entry of the errors
// array (plain strings or objects with errorMessage/message) and joined by
// newline.
func extractAPIError(node string, body []byte) *CvpError {
	if !gjson.ValidBytes(body) {
		return nil
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil
	}

	errorCode := doc.Get("errorCode")
	errorMessage := doc.Get("errorMessage")
	errorList := doc.Get("errors")
	hasList := errorList.IsArray() && len(errorList.Array()) > 0

	if !errorCode.Exists() && !errorMessage.Exists() && !hasList {
		return nil
	}

	var messages []string
	if msg := errorMessage.String(); msg != "" {
		messages = append(messages, msg)
	}
	if hasList {
		for _, item := range errorList.Array() {
			if msg := errorEntryMessage(item); msg != "" {
				messages = append(messages, msg)
			}
		}
	}
	if len(messages) == 0 {
		messages = append(messages, "errorCode: "+errorCode.String())
	}

	err := newError(KindAPI, node, strings.Join(messages, "\n"), nil)
	err.Code = errorCode.String()
	return err
}

// errorEntryMessage extracts the text of one element of an errors array
func errorEntryMessage(item gjson.Result) string {
	if !item.IsObject() {
		return item.String()
	}
	for _, key := range []string{"errorMessage", "message", "msg"} {
		if v := item.Get(key); v.Exists() {
			return v.String()
		}
	}
	return item.Raw
}

// statusText returns "401 Unauthorized" style text for a response
func statusText(resp rawResponse) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
