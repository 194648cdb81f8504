// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// The check-smart binary is the monitoring-host entry point: it loads the
// settings, executes one check run and translates the verdict into the
// plugin exit-code convention (0 OK, 1 warning, 2 critical, 3 unknown).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	config "github.com/sbraz/check-smart/app/config"
	"github.com/sbraz/check-smart/app/domain/check"
	"github.com/sbraz/check-smart/app/domain/report"
	"github.com/sbraz/check-smart/app/logging"
	"github.com/sbraz/check-smart/app/types"
)

const exitUnknown = 3

func main() {
	app := &cli.App{
		Name:  "check-smart",
		Usage: "check S.M.A.R.T. data and report counter increments across runs",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "config", Aliases: []string{"f"}, Usage: "configuration file(s), later files override earlier ones"},
			&cli.StringSliceFlag{Name: "devices", Aliases: []string{"D"}, Usage: "limit the check to these devices"},
			&cli.StringSliceFlag{Name: "exclude-devices", Aliases: []string{"X"}, Usage: "exclude these devices"},
			&cli.BoolFlag{Name: "skip-removable", Usage: "skip removable devices"},
			&cli.IntFlag{Name: "max-attempts", Usage: "monitoring-host re-check attempts; controls how many values are retained per counter"},
			&cli.BoolFlag{Name: "ignore-failing-commands", Usage: "ignore smartctl's failed-command/checksum-error exit-status bit"},
			&cli.StringSliceFlag{Name: "ignore-error-message", Usage: "error messages that do not abort the run"},
			&cli.BoolFlag{Name: "list-devices", Usage: "list the selected devices and exit"},
			&cli.BoolFlag{Name: "load-json", Usage: "read one smartctl JSON document from stdin instead of probing"},
			&cli.StringFlag{Name: "log-level", Usage: "log verbosity (debug, info, warning, error)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		// A tooling failure, distinct from any device health state.
		fmt.Printf("CHECK-SMART UNKNOWN: %v\n", err)
		os.Exit(exitUnknown)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.NewSettings(c.StringSlice("config")...)
	if err != nil {
		return err
	}
	applyFlags(c, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.SetUpLogging(cfg.Logging.Level, logging.LogFormatText)

	if c.Bool("list-devices") {
		if c.IsSet("devices") || c.IsSet("exclude-devices") {
			return fmt.Errorf("--list-devices can not be used with -D/--devices or -X/--exclude-devices")
		}
		selected, err := check.New(c.Context, cfg).ListDevices()
		if err != nil {
			return err
		}
		for _, device := range selected {
			fmt.Printf("Found device %s\n", device)
		}
		return nil
	}

	opts := []check.Option{}
	if c.Bool("load-json") {
		opts = append(opts, check.WithInput(os.Stdin))
	}

	verdict, err := check.New(c.Context, cfg, opts...).Run(c.Context)
	if err != nil {
		log.Error().Err(err).Msg("check run failed")
		return err
	}

	printVerdict(verdict)
	os.Exit(exitCode(verdict.Severity))
	return nil
}

func applyFlags(c *cli.Context, cfg *config.Settings) {
	if c.IsSet("devices") {
		cfg.Devices.Include = c.StringSlice("devices")
	}
	if c.IsSet("exclude-devices") {
		cfg.Devices.Exclude = c.StringSlice("exclude-devices")
	}
	if c.IsSet("skip-removable") {
		cfg.Devices.SkipRemovable = c.Bool("skip-removable")
	}
	if c.IsSet("max-attempts") {
		cfg.Trend.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("ignore-failing-commands") {
		cfg.Smartctl.IgnoreFailingCommands = c.Bool("ignore-failing-commands")
	}
	if c.IsSet("ignore-error-message") {
		cfg.Smartctl.IgnoreErrorMessages = c.StringSlice("ignore-error-message")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
}

func printVerdict(verdict report.Verdict) {
	label := strings.ToUpper(verdict.Severity.String())
	if verdict.Message == "" {
		fmt.Printf("CHECK-SMART %s\n", label)
		return
	}
	fmt.Printf("CHECK-SMART %s: %s\n", label, verdict.Message)
}

func exitCode(severity types.Severity) int {
	switch severity {
	case types.SeverityCritical:
		return 2
	case types.SeverityWarning:
		return 1
	default:
		return 0
	}
}
