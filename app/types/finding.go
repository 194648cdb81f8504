// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package types defines the core data structures shared by the check-smart
// engine: finding values produced while probing devices and the smartctl
// telemetry document they are derived from.
package types

import "fmt"

// Severity ranks a finding. The zero value is OK so that raw metric samples
// never influence the run verdict unless explicitly tagged otherwise.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "ok"
	}
}

// Increment records a sustained counter increase for one (serial, metric)
// pair, framed as oldest retained value vs maximum observed value.
type Increment struct {
	Serial string
	Metric string
	Old    int64
	New    int64
}

// DiskStatus is a per-device message decoded from smartctl's exit status.
type DiskStatus struct {
	Subject string
	Message string
}

// MetricValue is a raw observed sample, emitted for every metric regardless
// of whether it participates in increment detection.
type MetricValue struct {
	Serial string
	Metric string
	Value  int64
}

// Finding is a single severity-tagged observation from one run. Exactly one
// of the payload fields is set; findings are immutable once produced and the
// aggregator only reads them.
type Finding struct {
	Severity  Severity
	Increment *Increment
	Status    *DiskStatus
	Message   string
	Value     *MetricValue
}

func NewIncrementFinding(serial, metric string, old, newVal int64) Finding {
	return Finding{
		Severity:  SeverityWarning,
		Increment: &Increment{Serial: serial, Metric: metric, Old: old, New: newVal},
	}
}

func NewStatusFinding(severity Severity, subject, message string) Finding {
	return Finding{
		Severity: severity,
		Status:   &DiskStatus{Subject: subject, Message: message},
	}
}

func NewMessageFinding(severity Severity, format string, args ...interface{}) Finding {
	return Finding{
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
	}
}

func NewValueFinding(serial, metric string, value int64) Finding {
	return Finding{
		Value: &MetricValue{Serial: serial, Metric: metric, Value: value},
	}
}
