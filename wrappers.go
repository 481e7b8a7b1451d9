// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Typed convenience wrappers over the endpoint table. Every wrapper is a
// single Call (SaveTopology: two); none of them retry on their own.
//
// Lookups by name or id return a Res whose Exists() is false when the
// controller has no matching object.

// GetUser returns the user record for username
func (c *Client) GetUser(ctx context.Context, username string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointUser, Params{"user": username}, nil, mods...)
}

// GetInventory returns the list of provisioned devices
//
// Controllers from apiversion 3.0 serve the inventory resource; older ones
// the legacy netElementList. Both are returned as a JSON array.
func (c *Client) GetInventory(ctx context.Context, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointInventory, nil, nil, mods...)
}

// GetDeviceByName returns the inventory entry whose hostname or fqdn equals name
//
// Example:
//
//	dev, err := client.GetDeviceByName(ctx, "leaf1")
//	if err == nil && dev.Exists() {
//	    fmt.Println(dev.Get("systemMacAddress").String())
//	}
func (c *Client) GetDeviceByName(ctx context.Context, name string, mods ...func(*Req)) (Res, error) {
	inventory, err := c.GetInventory(ctx, mods...)
	if err != nil {
		return Res{}, err
	}
	return findFirst(inventory, func(dev Res) bool {
		return dev.Get("hostname").String() == name || dev.Get("fqdn").String() == name
	}), nil
}

// GetDeviceByMAC returns the inventory entry with the given system MAC address
//
// The comparison ignores case.
func (c *Client) GetDeviceByMAC(ctx context.Context, mac string, mods ...func(*Req)) (Res, error) {
	inventory, err := c.GetInventory(ctx, mods...)
	if err != nil {
		return Res{}, err
	}
	return findFirst(inventory, func(dev Res) bool {
		return strings.EqualFold(dev.Get("systemMacAddress").String(), mac)
	}), nil
}

// GetConfiglets returns one page of configlets; end 0 returns all from start
func (c *Client) GetConfiglets(ctx context.Context, start, end int, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointConfiglets, Params{"start": start, "end": end}, nil, mods...)
}

// GetConfigletByName returns the configlet called name
func (c *Client) GetConfigletByName(ctx context.Context, name string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointConfigletByName, Params{"name": name}, nil, mods...)
}

// AddConfiglet creates a static configlet and returns its key
//
// Example:
//
//	key, err := client.AddConfiglet(ctx, "ntp", "ntp server 10.0.0.1\n")
func (c *Client) AddConfiglet(ctx context.Context, name, config string, mods ...func(*Req)) (string, error) {
	body := Body{}.
		Set("name", name).
		Set("config", config)

	res, err := c.Call(ctx, EndpointConfigletAdd, nil, body, mods...)
	if err != nil {
		return "", err
	}
	key := res.Get("key").String()
	if key == "" {
		return "", newError(KindRequest, "", fmt.Sprintf("configlet %q created without key", name), nil)
	}
	return key, nil
}

// UpdateConfiglet replaces the content of the configlet identified by key
func (c *Client) UpdateConfiglet(ctx context.Context, key, name, config string, mods ...func(*Req)) (Res, error) {
	body := Body{}.
		Set("key", key).
		Set("name", name).
		Set("config", config).
		Set("waitForTaskIds", false)

	return c.Call(ctx, EndpointConfigletUpdate, nil, body, mods...)
}

// DeleteConfiglet removes the configlet identified by key
func (c *Client) DeleteConfiglet(ctx context.Context, key, name string, mods ...func(*Req)) (Res, error) {
	body := []map[string]string{{"key": key, "name": name}}
	return c.Call(ctx, EndpointConfigletDelete, nil, body, mods...)
}

// GetAppliedDevices returns one page of the devices a configlet is applied to
func (c *Client) GetAppliedDevices(ctx context.Context, name string, start, end int, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointConfigletApplied, Params{"name": name, "start": start, "end": end}, nil, mods...)
}

// GetContainers returns all containers
func (c *Client) GetContainers(ctx context.Context, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointContainers, nil, nil, mods...)
}

// GetContainerByName returns the container whose name equals name
//
// The controller's topology search matches substrings; only an exact match
// is returned.
func (c *Client) GetContainerByName(ctx context.Context, name string, mods ...func(*Req)) (Res, error) {
	list, err := c.Call(ctx, EndpointContainerSearch, Params{"name": name}, nil, mods...)
	if err != nil {
		return Res{}, err
	}
	return findFirst(list, func(container Res) bool {
		return container.Get("name").String() == name
	}), nil
}

// GetContainerByID returns the container with the given key
func (c *Client) GetContainerByID(ctx context.Context, id string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointContainerByID, Params{"id": id}, nil, mods...)
}

// GetTaskByID returns the task (work order) with the given id
func (c *Client) GetTaskByID(ctx context.Context, id string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointTaskByID, Params{"id": id}, nil, mods...)
}

// GetTasksByStatus returns the tasks in the given state, e.g. "Pending"
func (c *Client) GetTasksByStatus(ctx context.Context, status string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointTasksByStatus, Params{"status": status}, nil, mods...)
}

// AddNoteToTask attaches a note to a task
func (c *Client) AddNoteToTask(ctx context.Context, id, note string, mods ...func(*Req)) (Res, error) {
	body := Body{}.
		Set("workOrderId", id).
		Set("note", note)

	return c.Call(ctx, EndpointTaskAddNote, nil, body, mods...)
}

// ExecuteTask starts a pending task
func (c *Client) ExecuteTask(ctx context.Context, id string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointTaskExecute, nil, Body{}.Set("data", []string{id}), mods...)
}

// CancelTask cancels a pending task
func (c *Client) CancelTask(ctx context.Context, id string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointTaskCancel, nil, Body{}.Set("data", []string{id}), mods...)
}

// GetImageBundles returns all image bundles
func (c *Client) GetImageBundles(ctx context.Context, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointImageBundles, nil, nil, mods...)
}

// GetImageBundleByName returns the image bundle called name
func (c *Client) GetImageBundleByName(ctx context.Context, name string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointImageBundleByName, Params{"name": name}, nil, mods...)
}

// GetChangeControls returns all change controls
//
// From apiversion 4.0 the change control resource API is used.
func (c *Client) GetChangeControls(ctx context.Context, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointChangeControls, nil, nil, mods...)
}

// GetChangeControlByID returns the change control with the given id
func (c *Client) GetChangeControlByID(ctx context.Context, id string, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointChangeControlByID, Params{"id": id}, nil, mods...)
}

// GetTags returns all tags; requires apiversion 7.0
func (c *Client) GetTags(ctx context.Context, mods ...func(*Req)) (Res, error) {
	return c.Call(ctx, EndpointTags, nil, nil, mods...)
}

// SaveTopology stages actions as a temporary topology change and saves it
//
// The two calls are not atomic. If the save fails (or the session fails over
// between them) the staged actions may be lost or left pending on the
// controller; callers should re-read the topology before retrying.
//
// Example:
//
//	action := map[string]any{
//	    "info":        "Device Move: leaf1 to Leaf",
//	    "infoPreview": "Device Move: leaf1 to Leaf",
//	    "action":      "update",
//	    "nodeType":    "netelement",
//	    "nodeId":      "00:50:56:aa:bb:cc",
//	    "toId":        "container_1",
//	    "toIdType":    "container",
//	}
//	res, err := client.SaveTopology(ctx, []any{action})
func (c *Client) SaveTopology(ctx context.Context, actions []any, mods ...func(*Req)) (Res, error) {
	if len(actions) == 0 {
		return Res{}, newError(KindRequest, "", "no topology actions to save", nil)
	}

	staged := Body{}.Set("data", actions)
	if _, err := c.Call(ctx, EndpointTopologyTempAction, nil, staged, mods...); err != nil {
		return Res{}, err
	}

	c.logger.Debug(ctx, "topology actions staged", "actions", len(actions))

	return c.Call(ctx, EndpointTopologySave, nil, json.RawMessage("[]"), mods...)
}

// findFirst returns the first element of a JSON array matching match
func findFirst(list Res, match func(Res) bool) Res {
	var found Res
	list.ForEach(func(_, item Res) bool {
		if match(item) {
			found = item
			return false
		}
		return true
	})
	return found
}
