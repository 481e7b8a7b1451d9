// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

//go:build windows || plan9

package cvprac

import "fmt"

func newSyslogWriter() (severityWriter, error) {
	return nil, fmt.Errorf("syslog is not supported on this platform")
}
