// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"context"
	"strconv"
	"strings"
)

// SaaSVersion is the version string reported by SaaS deployments
const SaaSVersion = "cvaas"

// apiVersionBucket maps the first controller release of a bucket to its apiversion
type apiVersionBucket struct {
	minVersion string
	apiVersion float64
}

// apiVersionTable is ordered newest first; new releases are added at the top
var apiVersionTable = []apiVersionBucket{
	{minVersion: "2023.1.0", apiVersion: 9.0},
	{minVersion: "2022.1.0", apiVersion: 8.0},
	{minVersion: "2021.3.0", apiVersion: 7.0},
	{minVersion: "2021.2.0", apiVersion: 6.0},
	{minVersion: "2020.2.4", apiVersion: 5.0},
	{minVersion: "2020.1.1", apiVersion: 4.0},
	{minVersion: "2019.0.0", apiVersion: 3.0},
	{minVersion: "2018.2.0", apiVersion: 2.0},
}

// MinAPIVersion is the bucket of every release older than the table
const MinAPIVersion = 1.0

// ParseAPIVersion maps a controller version string (YYYY.M[.P[.Q]]) to its
// apiversion bucket
//
// The SaaS version string maps to the newest bucket. Strings that do not
// parse map to MinAPIVersion and ok is false.
//
// Example:
//
//	v, _ := cvprac.ParseAPIVersion("2021.3.0") // 7.0
func ParseAPIVersion(version string) (apiVersion float64, ok bool) {
	version = strings.TrimSpace(version)
	if strings.EqualFold(version, SaaSVersion) {
		return apiVersionTable[0].apiVersion, true
	}

	parts, ok := parseVersionParts(version)
	if !ok {
		return MinAPIVersion, false
	}
	for _, bucket := range apiVersionTable {
		minParts, _ := parseVersionParts(bucket.minVersion)
		if compareVersionParts(parts, minParts) >= 0 {
			return bucket.apiVersion, true
		}
	}
	return MinAPIVersion, true
}

// parseVersionParts splits YYYY.M[.P[.Q]] into integers, ignoring a
// trailing build suffix such as "-1" or "F"
func parseVersionParts(version string) ([]int, bool) {
	fields := strings.Split(version, ".")
	if len(fields) < 2 || len(fields) > 4 {
		return nil, false
	}
	parts := make([]int, 0, len(fields))
	for i, field := range fields {
		if i == len(fields)-1 {
			field = strings.TrimRightFunc(field, func(r rune) bool { return r < '0' || r > '9' })
			if idx := strings.IndexAny(field, "-_"); idx > 0 {
				field = field[:idx]
			}
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			return nil, false
		}
		parts = append(parts, n)
	}
	return parts, true
}

// compareVersionParts compares two versions, treating missing parts as 0
func compareVersionParts(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// cacheVersion records the controller version and its bucket once per client
//
// PRECONDITION: Caller must hold c.mu.
func (c *Client) cacheVersion(ctx context.Context, version string) {
	if c.version != "" || version == "" {
		return
	}
	apiVersion, ok := ParseAPIVersion(version)
	if !ok {
		c.logger.Warn(ctx, "unrecognised controller version, using lowest apiversion",
			"version", version,
			"apiversion", apiVersion)
	}
	c.version = version
	c.apiVersion = apiVersion
	c.logger.Info(ctx, "controller version detected",
		"version", version,
		"apiversion", apiVersion)
}

// Version returns the cached controller version, or "" before the first
// GetCvpInfo call
func (c *Client) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// APIVersion returns the cached apiversion bucket, or 0 before the first
// GetCvpInfo call
func (c *Client) APIVersion() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiVersion
}

// GetCvpInfo returns the controller information and caches its version
//
// Example:
//
//	info, err := client.GetCvpInfo(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(info.Get("version").String(), client.APIVersion())
func (c *Client) GetCvpInfo(ctx context.Context, mods ...func(*Req)) (Res, error) {
	res, err := c.Get(ctx, cvpInfoPath, mods...)
	if err != nil {
		return Res{}, err
	}
	c.mu.Lock()
	c.cacheVersion(ctx, res.Get("version").String())
	c.mu.Unlock()
	return res, nil
}
