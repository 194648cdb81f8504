// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package smart probes devices through the external smartctl tool and
// decodes its telemetry into findings.
package smart

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	config "github.com/sbraz/check-smart/app/config"
	"github.com/sbraz/check-smart/app/logging"
)

// Runner invokes the diagnostic tool for one device and returns its raw
// output. Implementations must treat a non-zero exit as success: smartctl
// reports device state through its exit-status bits and those are decoded
// from the JSON document, not from the process result.
type Runner interface {
	Scan(ctx context.Context, device string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	cfg    *config.Smartctl
	logger *logrus.Entry
}

// NewRunner returns a Runner that executes smartctl with JSON output
// enabled, optionally through non-interactive sudo.
func NewRunner(ctx context.Context, cfg *config.Smartctl) Runner {
	return &execRunner{
		cfg: cfg,
		logger: logging.NewLogger().
			WithContext(ctx).WithField(logging.OpField, "smartctl"),
	}
}

func (r *execRunner) Scan(ctx context.Context, device string) ([]byte, []byte, error) {
	args := []string{"--json=s", "-x"}
	args = append(args, r.cfg.ExtraArgs...)
	args = append(args, device)

	var cmd *exec.Cmd
	if r.cfg.UseSudo {
		cmd = exec.CommandContext(ctx, "sudo", append([]string{"-n", r.cfg.Path}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, r.cfg.Path, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Infof("running command: %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, nil, errors.Wrapf(err, "run smartctl for %s", device)
		}
		// non-zero exit: the JSON document carries the status bits
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}
