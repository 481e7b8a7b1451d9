// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Params holds the values substituted into an endpoint path template
type Params map[string]any

// Endpoint is one variant of a controller API call
type Endpoint struct {
	// Method is GET or POST
	Method string

	// Path is the path template; {name} placeholders are replaced by
	// percent-encoded parameter values
	Path string

	// MinAPIVersion is the lowest apiversion bucket this variant serves
	MinAPIVersion float64

	// Result is the gjson path of the payload within the reply; empty
	// returns the whole reply
	Result string

	// HostRoot addresses Path from the host root instead of the API prefix
	HostRoot bool
}

// Endpoint names of the built-in wrapper table
const (
	EndpointCvpInfo            = "cvpinfo.get"
	EndpointUser               = "user.get"
	EndpointInventory          = "inventory.list"
	EndpointConfiglets         = "configlet.list"
	EndpointConfigletByName    = "configlet.by_name"
	EndpointConfigletAdd       = "configlet.add"
	EndpointConfigletUpdate    = "configlet.update"
	EndpointConfigletDelete    = "configlet.delete"
	EndpointConfigletApplied   = "configlet.applied_devices"
	EndpointContainers         = "container.list"
	EndpointContainerSearch    = "container.search"
	EndpointContainerByID      = "container.by_id"
	EndpointTaskByID           = "task.by_id"
	EndpointTasksByStatus      = "task.by_status"
	EndpointTaskAddNote        = "task.add_note"
	EndpointTaskExecute        = "task.execute"
	EndpointTaskCancel         = "task.cancel"
	EndpointImageBundles       = "image_bundle.list"
	EndpointImageBundleByName  = "image_bundle.by_name"
	EndpointChangeControls     = "change_control.list"
	EndpointChangeControlByID  = "change_control.by_id"
	EndpointTags               = "tag.list"
	EndpointTopologyTempAction = "topology.add_temp_action"
	EndpointTopologySave       = "topology.save"
)

// endpoints is the wrapper table; variants of one name are ordered by
// descending MinAPIVersion
var endpoints = map[string][]Endpoint{
	EndpointCvpInfo: {
		{Method: http.MethodGet, Path: cvpInfoPath},
	},
	EndpointUser: {
		{Method: http.MethodGet, Path: "/user/getUser.do?userId={user}"},
	},
	EndpointInventory: {
		{Method: http.MethodGet, Path: "/inventory/devices", MinAPIVersion: 3.0},
		{Method: http.MethodGet, Path: "/inventory/getInventory.do?queryparam=&startIndex=0&endIndex=0", Result: "netElementList"},
	},
	EndpointConfiglets: {
		{Method: http.MethodGet, Path: "/configlet/getConfiglets.do?startIndex={start}&endIndex={end}"},
	},
	EndpointConfigletByName: {
		{Method: http.MethodGet, Path: "/configlet/getConfigletByName.do?name={name}"},
	},
	EndpointConfigletAdd: {
		{Method: http.MethodPost, Path: "/configlet/addConfiglet.do", Result: "data"},
	},
	EndpointConfigletUpdate: {
		{Method: http.MethodPost, Path: "/configlet/updateConfiglet.do"},
	},
	EndpointConfigletDelete: {
		{Method: http.MethodPost, Path: "/configlet/deleteConfiglet.do"},
	},
	EndpointConfigletApplied: {
		{Method: http.MethodGet, Path: "/configlet/getAppliedDevices.do?configletName={name}&startIndex={start}&endIndex={end}", Result: "data"},
	},
	EndpointContainers: {
		{Method: http.MethodGet, Path: "/inventory/containers", MinAPIVersion: 3.0},
		{Method: http.MethodGet, Path: "/inventory/add/searchContainers.do?startIndex=0&endIndex=0", Result: "data"},
	},
	EndpointContainerSearch: {
		{Method: http.MethodGet, Path: "/provisioning/searchTopology.do?queryParam={name}&startIndex=0&endIndex=0", Result: "containerList"},
	},
	EndpointContainerByID: {
		{Method: http.MethodGet, Path: "/provisioning/getContainerInfoById.do?containerId={id}"},
	},
	EndpointTaskByID: {
		{Method: http.MethodGet, Path: "/task/getTaskById.do?taskId={id}"},
	},
	EndpointTasksByStatus: {
		{Method: http.MethodGet, Path: "/task/getTasks.do?queryparam={status}&startIndex=0&endIndex=0", Result: "data"},
	},
	EndpointTaskAddNote: {
		{Method: http.MethodPost, Path: "/task/addNoteToTask.do"},
	},
	EndpointTaskExecute: {
		{Method: http.MethodPost, Path: "/task/executeTask.do"},
	},
	EndpointTaskCancel: {
		{Method: http.MethodPost, Path: "/task/cancelTask.do"},
	},
	EndpointImageBundles: {
		{Method: http.MethodGet, Path: "/image/getImageBundles.do?queryparam=&startIndex=0&endIndex=0", Result: "data"},
	},
	EndpointImageBundleByName: {
		{Method: http.MethodGet, Path: "/image/getImageBundleByName.do?name={name}"},
	},
	EndpointChangeControls: {
		{Method: http.MethodGet, Path: "/api/resources/changecontrol/v1/ChangeControl/all", MinAPIVersion: 4.0, Result: "data", HostRoot: true},
		{Method: http.MethodGet, Path: "/changeControl/getChangeControls.do?searchText=&startIndex=0&endIndex=0", Result: "data"},
	},
	EndpointChangeControlByID: {
		{Method: http.MethodGet, Path: "/api/resources/changecontrol/v1/ChangeControl?key.id={id}", MinAPIVersion: 4.0, Result: "value", HostRoot: true},
		{Method: http.MethodGet, Path: "/changeControl/getChangeControlInformation.do?ccId={id}"},
	},
	EndpointTags: {
		{Method: http.MethodGet, Path: "/api/resources/tag/v2/Tag/all", MinAPIVersion: 7.0, Result: "data", HostRoot: true},
	},
	EndpointTopologyTempAction: {
		{Method: http.MethodPost, Path: "/provisioning/addTempAction.do?format=topology&queryParam=&nodeId=root"},
	},
	EndpointTopologySave: {
		{Method: http.MethodPost, Path: "/provisioning/v2/saveTopology.do"},
	},
}

// Endpoints returns the names of the built-in wrapper table, sorted
func Endpoints() []string {
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// versionGated reports whether name has variants for different apiversions
func versionGated(variants []Endpoint) bool {
	for _, v := range variants {
		if v.MinAPIVersion > 0 {
			return true
		}
	}
	return false
}

// selectEndpoint picks the newest variant served by apiVersion
func selectEndpoint(name string, apiVersion float64) (Endpoint, error) {
	variants, ok := endpoints[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown endpoint %q", name)
	}
	for _, v := range variants {
		if apiVersion >= v.MinAPIVersion {
			return v, nil
		}
	}
	return Endpoint{}, fmt.Errorf("endpoint %q requires apiversion >= %.1f (controller has %.1f)",
		name, variants[len(variants)-1].MinAPIVersion, apiVersion)
}

// expandPath replaces {name} placeholders with percent-encoded values
//
// Every placeholder must have a value; unused parameters are an error.
func expandPath(template string, params Params) (string, error) {
	var b strings.Builder
	used := make(map[string]bool, len(params))
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", template)
		}
		key := rest[open+1 : open+end]
		value, ok := params[key]
		if !ok {
			return "", fmt.Errorf("missing parameter %q for %q", key, template)
		}
		used[key] = true
		b.WriteString(rest[:open])
		b.WriteString(EscapeParam(fmt.Sprint(value)))
		rest = rest[open+end+1:]
	}
	for key := range params {
		if !used[key] {
			return "", fmt.Errorf("unexpected parameter %q for %q", key, template)
		}
	}
	return b.String(), nil
}

// EscapeParam percent-encodes a path or query parameter value
//
// Reserved characters are always encoded, including '+', '/' and space
// (which becomes %20, never '+').
func EscapeParam(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// Call invokes a named endpoint of the wrapper table
//
// For version-gated endpoints the controller version is looked up first if it
// is not cached yet. body is ignored for GET variants.
//
// Example:
//
//	res, err := client.Call(ctx, cvprac.EndpointConfigletByName,
//	    cvprac.Params{"name": "ntp servers"}, nil)
func (c *Client) Call(ctx context.Context, name string, params Params, body any, mods ...func(*Req)) (Res, error) {
	variants, ok := endpoints[name]
	if !ok {
		return Res{}, newError(KindRequest, "", fmt.Sprintf("unknown endpoint %q", name), nil)
	}
	if name == EndpointCvpInfo {
		return c.GetCvpInfo(ctx, mods...)
	}

	apiVersion := c.APIVersion()
	if apiVersion == 0 && versionGated(variants) {
		if _, err := c.GetCvpInfo(ctx); err != nil {
			return Res{}, err
		}
		apiVersion = c.APIVersion()
	}

	ep, err := selectEndpoint(name, apiVersion)
	if err != nil {
		return Res{}, newError(KindRequest, "", "", err)
	}

	path, err := expandPath(ep.Path, params)
	if err != nil {
		return Res{}, newError(KindRequest, "", "", err)
	}

	if ep.HostRoot {
		mods = append(append([]func(*Req){}, mods...), HostRoot())
	}

	var res Res
	if ep.Method == http.MethodPost {
		res, err = c.Post(ctx, path, body, mods...)
	} else {
		res, err = c.Get(ctx, path, mods...)
	}
	if err != nil {
		return Res{}, err
	}

	if ep.Result != "" {
		return res.Get(ep.Result), nil
	}
	return res, nil
}
