// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

//go:build !windows && !plan9

package cvprac

import "log/syslog"

func newSyslogWriter() (severityWriter, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, "cvprac")
	if err != nil {
		return nil, err
	}
	return w, nil
}
