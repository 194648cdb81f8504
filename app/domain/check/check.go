// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package check orchestrates one full run: device selection, per-device
// probing through the trend detector, history persistence and verdict
// aggregation. Devices are probed strictly one at a time; the only durable
// state is the history snapshot, rewritten once at the end of the run.
package check

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	config "github.com/sbraz/check-smart/app/config"
	"github.com/sbraz/check-smart/app/domain/devices"
	"github.com/sbraz/check-smart/app/domain/report"
	"github.com/sbraz/check-smart/app/domain/smart"
	"github.com/sbraz/check-smart/app/domain/trend"
	"github.com/sbraz/check-smart/app/logging"
	"github.com/sbraz/check-smart/app/storage/history"
	"github.com/sbraz/check-smart/app/types"
	"github.com/sbraz/check-smart/app/utils/lock"
)

// Check wires the run-scoped collaborators together.
type Check struct {
	cfg      *config.Settings
	selector *devices.Selector
	runner   smart.Runner
	store    *history.Store
	logger   *logrus.Entry

	// input, when set, replaces device discovery with a single telemetry
	// document read from it (debug mode).
	input io.Reader
}

type Option func(c *Check)

// WithRunner replaces the smartctl runner, for tests.
func WithRunner(runner smart.Runner) Option {
	return func(c *Check) {
		c.runner = runner
	}
}

// WithSelector replaces the device selector, for tests.
func WithSelector(selector *devices.Selector) Option {
	return func(c *Check) {
		c.selector = selector
	}
}

// WithInput switches the run to a pre-captured telemetry document instead
// of discovering and probing devices.
func WithInput(input io.Reader) Option {
	return func(c *Check) {
		c.input = input
	}
}

func New(ctx context.Context, cfg *config.Settings, opts ...Option) *Check {
	c := &Check{
		cfg:      cfg,
		selector: devices.NewSelector(ctx, &cfg.Devices),
		runner:   smart.NewRunner(ctx, &cfg.Smartctl),
		store:    history.NewStore(cfg.State.Directory),
		logger: logging.NewLogger().
			WithContext(ctx).
			WithField(logging.OpField, "check").
			WithField("run_id", uuid.NewString()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListDevices returns the devices the current configuration would probe.
func (c *Check) ListDevices() ([]string, error) {
	return c.selector.Select()
}

// Run executes one complete check and returns its verdict. Any returned
// error is a tooling failure, not a device health signal; the caller must
// report it as unknown/error rather than as a WARNING/CRITICAL state.
func (c *Check) Run(ctx context.Context) (report.Verdict, error) {
	var devicePaths []string
	if c.input == nil {
		var err error
		if devicePaths, err = c.selector.Select(); err != nil {
			return report.Verdict{}, err
		}
	}

	key, err := c.cfg.StateKey()
	if err != nil {
		return report.Verdict{}, errors.Wrap(err, "derive state key")
	}

	if !c.cfg.State.DisableLock {
		runLock := lock.NewFileLock(ctx, c.store.Path(key)+".lock")
		if err := runLock.Acquire(); err != nil {
			return report.Verdict{}, errors.Wrap(err, "another run appears to be in progress")
		}
		defer func() {
			if err := runLock.Release(); err != nil {
				c.logger.Warnf("failed to release run lock: %v", err)
			}
		}()
	}

	previous, firstRun, err := c.store.Load(key)
	if err != nil {
		return report.Verdict{}, err
	}

	var findings []types.Finding
	if firstRun {
		findings = append(findings, types.NewMessageFinding(types.SeverityWarning,
			"No data in state file %s, first run?", c.store.Path(key)))
	}

	detector := trend.NewDetector(ctx, &c.cfg.Trend, previous)
	prober := smart.NewProber(ctx, c.cfg, c.runner, detector)

	if c.input != nil {
		deviceFindings, err := c.probeInput(prober)
		if err != nil {
			return report.Verdict{}, err
		}
		findings = append(findings, deviceFindings...)
	} else {
		for _, device := range devicePaths {
			c.logger.Debugf("probing %s", device)
			deviceFindings, err := prober.Probe(ctx, device)
			if err != nil {
				return report.Verdict{}, err
			}
			findings = append(findings, deviceFindings...)
		}
	}

	if err := c.store.Save(key, detector.Snapshot()); err != nil {
		return report.Verdict{}, err
	}
	return report.Summarize(findings), nil
}

func (c *Check) probeInput(prober *smart.Prober) ([]types.Finding, error) {
	data, err := io.ReadAll(c.input)
	if err != nil {
		return nil, errors.Wrap(err, "read telemetry input")
	}
	doc, err := types.ParseDocument(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode smartctl's JSON output: %q", data)
	}
	return prober.ProbeDocument("stdin", doc)
}
