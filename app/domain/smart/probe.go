// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package smart

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	config "github.com/sbraz/check-smart/app/config"
	"github.com/sbraz/check-smart/app/domain/trend"
	"github.com/sbraz/check-smart/app/logging"
	"github.com/sbraz/check-smart/app/types"
)

// Prober turns one device's telemetry into the findings it contributes to
// the run: exit-status findings plus every metric sample routed through the
// trend detector.
type Prober struct {
	cfg      *config.Settings
	runner   Runner
	detector *trend.Detector
	logger   *logrus.Entry
}

func NewProber(ctx context.Context, cfg *config.Settings, runner Runner, detector *trend.Detector) *Prober {
	return &Prober{
		cfg:      cfg,
		runner:   runner,
		detector: detector,
		logger: logging.NewLogger().
			WithContext(ctx).WithField(logging.OpField, "probe"),
	}
}

// Probe runs the diagnostic tool against device and decodes its output.
// A document that cannot be decoded aborts the whole run; the raw tool
// output is carried in the error for diagnosis.
func (p *Prober) Probe(ctx context.Context, device string) ([]types.Finding, error) {
	stdout, stderr, err := p.runner.Scan(ctx, device)
	if err != nil {
		return nil, err
	}

	doc, err := types.ParseDocument(stdout)
	if err != nil {
		return nil, errors.Wrapf(err,
			"failed to decode smartctl's JSON output: %q; stderr: %q", stdout, stderr)
	}
	return p.ProbeDocument(device, doc)
}

// ProbeDocument evaluates an already parsed telemetry document. Split out
// from Probe so pre-captured documents (debug input, tests) follow the
// exact same path.
func (p *Prober) ProbeDocument(device string, doc *types.Document) ([]types.Finding, error) {
	if err := p.checkMessages(device, doc); err != nil {
		return nil, err
	}

	// Underscores are normalized so downstream consumers can split
	// perfdata names on the first underscore to recover the serial.
	serial := strings.ReplaceAll(doc.SerialNumber, "_", "-")

	findings, err := DecodeExitStatus(device, serial, doc.Smartctl.ExitStatus, p.cfg.Smartctl.IgnoreFailingCommands)
	if err != nil {
		return nil, err
	}

	// Devices without a serial are tracked under their path.
	if serial == "" {
		serial = device
	}

	if count, ok := doc.ErrorLogCount(); ok {
		findings = append(findings,
			p.detector.Observe(doc.Metadata, serial, "ata_smart_error_log_count", count, false)...)
	}
	if current, ok := doc.CurrentTemperature(); ok {
		findings = append(findings,
			p.detector.Observe(doc.Metadata, serial, "temperature", current, true)...)
	}

	attrs, err := doc.Attributes()
	if err != nil {
		return nil, errors.Wrapf(err, "attribute table for %s", device)
	}
	for _, attr := range attrs {
		findings = append(findings,
			p.detector.Observe(doc.Metadata, serial, attr.Name, attr.Value, false)...)
	}
	return findings, nil
}

// checkMessages aborts the run on any error-severity tool message that is
// not explicitly allowed by the configuration.
func (p *Prober) checkMessages(device string, doc *types.Document) error {
	for _, msg := range doc.Smartctl.Messages {
		if msg.Severity != "error" {
			continue
		}
		if p.allowedMessage(msg.String) {
			p.logger.Debugf("ignoring smartctl error for %s: %s", device, msg.String)
			continue
		}
		return errors.Errorf("smartctl returned an error for %s: %s", device, msg.String)
	}
	return nil
}

func (p *Prober) allowedMessage(text string) bool {
	for _, allowed := range p.cfg.Smartctl.IgnoreErrorMessages {
		if text == allowed {
			return true
		}
	}
	return false
}
