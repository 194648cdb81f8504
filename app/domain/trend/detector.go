// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package trend detects sustained counter increments across runs. Every
// observed metric value is appended to a bounded per-(serial, metric)
// window; a checked metric whose maximum exceeds the oldest retained value
// raises a warning finding.
//
// Comparing oldest vs maximum rather than consecutive samples absorbs
// single-sample noise and resets: the window holds max_attempts+1 values,
// so a transient blip that self-heals within the monitoring host's
// re-check window never flaps the service state.
package trend

import (
	"context"
	"regexp"

	"github.com/sirupsen/logrus"

	config "github.com/sbraz/check-smart/app/config"
	"github.com/sbraz/check-smart/app/logging"
	"github.com/sbraz/check-smart/app/storage/history"
	"github.com/sbraz/check-smart/app/types"
)

// Raw temperature attributes (temperature, temperature_celsius, ...) are
// dropped: the canonical reading comes from smartctl's temperature section,
// the raw variants are noisy duplicates.
var temperatureMetric = regexp.MustCompile(`(?i)^temperature($|_)`)

// Detector folds one run's observations into the metric history. It is the
// per-run accumulator: previous holds the loaded snapshot, current the one
// persisted when the run completes.
type Detector struct {
	cfg     *config.Trend
	checked map[string]struct{}
	logger  *logrus.Entry

	previous history.Snapshot
	current  history.Snapshot
}

func NewDetector(ctx context.Context, cfg *config.Trend, previous history.Snapshot) *Detector {
	checked := make(map[string]struct{}, len(cfg.CheckedMetrics))
	for _, metric := range cfg.CheckedMetrics {
		checked[metric] = struct{}{}
	}
	return &Detector{
		cfg:      cfg,
		checked:  checked,
		previous: previous,
		current:  history.Snapshot{},
		logger: logging.NewLogger().
			WithContext(ctx).WithField(logging.OpField, "trend"),
	}
}

// Observe records one metric sample and returns the findings it produces:
// at most one warning increment finding plus the raw-value finding every
// sample gets for dashboarding.
//
// canonicalTemperature marks the single trusted temperature source; any
// other metric from the temperature family is discarded entirely.
func (d *Detector) Observe(meta map[string]string, serial, metric string, value int64, canonicalTemperature bool) []types.Finding {
	if !canonicalTemperature && temperatureMetric.MatchString(metric) {
		return nil
	}

	window := append(d.previous.Window(serial, metric), value)
	for len(window) > d.cfg.MaxAttempts+1 {
		window = window[1:]
	}
	d.current.Set(serial, metric, window)

	d.logger.Infof("[%s] %s = %d", serial, metric, value)

	var findings []types.Finding
	if _, isChecked := d.checked[metric]; isChecked {
		oldest := window[0]
		max := window[0]
		for _, v := range window[1:] {
			if v > max {
				max = v
			}
		}
		if max > oldest && !d.excluded(meta, serial, metric) {
			findings = append(findings, types.NewIncrementFinding(serial, metric, oldest, max))
		}
	}
	return append(findings, types.NewValueFinding(serial, metric, value))
}

// excluded reports whether an exclusion rule suppresses increment findings
// for this metric on this device. A rule applies when any of its metadata
// pairs matches the device.
func (d *Detector) excluded(meta map[string]string, serial, metric string) bool {
	for _, rule := range d.cfg.Exclusions {
		for key, value := range rule.Match {
			if meta[key] != value {
				continue
			}
			for _, excluded := range rule.Metrics {
				if metric == excluded {
					d.logger.Debugf("[%s] ignoring increment in metric %s because %s = %s",
						serial, metric, key, value)
					return true
				}
			}
		}
	}
	return false
}

// Snapshot returns the history accumulated during this run, ready to be
// persisted.
func (d *Detector) Snapshot() history.Snapshot {
	return d.current
}
