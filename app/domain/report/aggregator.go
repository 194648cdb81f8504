// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package report aggregates the findings of one run into a single verdict:
// the worst severity present plus one consolidated, de-duplicated message.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sbraz/check-smart/app/types"
)

// Verdict is the run outcome handed to the monitoring-host reporting layer.
// Severity is OK only when no warning or critical finding was produced;
// raw-value findings never affect it.
type Verdict struct {
	Severity types.Severity
	Message  string
}

// Summarize ranks and renders all findings of a run.
//
// Findings are stable-sorted by severity descending, then partitioned:
// free-text messages verbatim, per-device status messages grouped in
// order of appearance, increments reduced to one entry per
// (serial, metric) keeping the most significant. An OK run renders an
// empty message.
func Summarize(findings []types.Finding) Verdict {
	verdict := Verdict{Severity: types.SeverityOK}
	for _, f := range findings {
		if f.Severity > verdict.Severity {
			verdict.Severity = f.Severity
		}
	}
	if verdict.Severity == types.SeverityOK {
		return verdict
	}

	sorted := make([]types.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity > sorted[j].Severity
	})

	var (
		messages      []string
		statusOrder   []string
		statuses      = map[string][]string{}
		subjectOrder  []string
		incrementsFor = map[string][]*types.Increment{}
		seenIncrement = map[string]bool{}
	)
	for _, f := range sorted {
		if f.Severity == types.SeverityOK {
			continue
		}
		switch {
		case f.Increment != nil:
			inc := f.Increment
			key := inc.Serial + "\x00" + inc.Metric
			if seenIncrement[key] {
				// sorted worst-first, the entry already kept wins
				continue
			}
			seenIncrement[key] = true
			if _, ok := incrementsFor[inc.Serial]; !ok {
				subjectOrder = append(subjectOrder, inc.Serial)
			}
			incrementsFor[inc.Serial] = append(incrementsFor[inc.Serial], inc)
		case f.Status != nil:
			if _, ok := statuses[f.Status.Subject]; !ok {
				statusOrder = append(statusOrder, f.Status.Subject)
			}
			statuses[f.Status.Subject] = append(statuses[f.Status.Subject], f.Status.Message)
		default:
			messages = append(messages, f.Message)
		}
	}

	for _, subject := range statusOrder {
		messages = append(messages,
			fmt.Sprintf("Disk %s: %s", subject, strings.Join(statuses[subject], ", ")))
	}
	for _, serial := range subjectOrder {
		parts := make([]string, 0, len(incrementsFor[serial]))
		for _, inc := range incrementsFor[serial] {
			parts = append(parts, fmt.Sprintf("%s: %d -> %d", inc.Metric, inc.Old, inc.New))
		}
		plural := ""
		if len(parts) != 1 {
			plural = "s"
		}
		messages = append(messages,
			fmt.Sprintf("Disk %s: increment in counter%s %s", serial, plural, strings.Join(parts, ", ")))
	}

	verdict.Message = strings.Join(messages, ", ")
	return verdict
}
