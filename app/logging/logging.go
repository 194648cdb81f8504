// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package logging configures the process-wide logrus logger used by the
// domain packages. Everything goes to stderr: stdout is reserved for the
// verdict the monitoring host consumes.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// OpField tags every log line with the operation that produced it.
const OpField = "op"

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// SetUpLogging configures the standard logger. Unknown levels fall back to
// warning rather than failing; settings validation reports them separately.
func SetUpLogging(level, format string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.WarnLevel
	}
	logrus.SetLevel(parsed)
	logrus.SetOutput(os.Stderr)

	switch format {
	case LogFormatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	}
}

// NewLogger returns an entry bound to the standard logger; callers attach
// their operation via OpField.
func NewLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}
