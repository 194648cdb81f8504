// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config contains configuration settings for the check-smart engine.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultCheckedMetrics lists the SMART attributes whose increments are
// treated as a degradation signal. Membership is product knowledge carried
// over from years of fleet operation; it is exposed through the settings so
// deployments can swap it without a rebuild.
var DefaultCheckedMetrics = []string{
	"ata_smart_error_log_count",
	"Calibration_Retry_Count",
	"critical_comp_time",
	"critical_warning",
	"Current_Pending_Sector",
	"CRC_Error_Count",
	"ECC_Error_Rate",
	"Erase_Fail_Count_Total",
	"G-Sense_Error_Rate",
	"Load_Retry_Count",
	"media_errors",
	"Multi_Zone_Error_Rate",
	"Offline_Uncorrectable",
	"Program_Fail_Cnt_Total",
	"Raw_Read_Error_Rate",
	"Reallocated_Event_Count",
	"Reallocated_Sector_Ct",
	"Runtime_Bad_Block",
	"Seek_Error_Rate",
	"Spin_Retry_Count",
	"UDMA_CRC_Error_Count",
	"Uncorrectable_Error_Cnt",
	"Used_Rsvd_Blk_Cnt_Tot",
	"warning_temp_time",
}

// DefaultExclusions suppresses increment detection for attributes that are
// known to fluctuate by design on specific drive families.
var DefaultExclusions = []ExclusionRule{
	{
		Match:   map[string]string{"model_family": "Seagate Exos X16"},
		Metrics: []string{"Raw_Read_Error_Rate", "Seek_Error_Rate"},
	},
	{
		Match:   map[string]string{"model_family": "Seagate Exos X18"},
		Metrics: []string{"Raw_Read_Error_Rate", "Seek_Error_Rate"},
	},
}

const (
	DefaultMaxAttempts    = 4
	DefaultStateDirectory = "/var/tmp"
	DefaultSmartctlPath   = "smartctl"
)

type Settings struct {
	Devices  Devices  `yaml:"devices"`
	Smartctl Smartctl `yaml:"smartctl"`
	Trend    Trend    `yaml:"trend"`
	State    State    `yaml:"state"`
	Logging  Logging  `yaml:"logging"`
}

// Devices controls which block devices are probed.
type Devices struct {
	// Include limits the run to these device paths; Exclude drops them
	// instead. The two are mutually exclusive.
	Include       []string `yaml:"include" env:"CHECK_SMART_DEVICES"`
	Exclude       []string `yaml:"exclude" env:"CHECK_SMART_EXCLUDE_DEVICES"`
	SkipRemovable bool     `yaml:"skip_removable" env:"CHECK_SMART_SKIP_REMOVABLE"`
}

type Smartctl struct {
	Path string `yaml:"path" env:"CHECK_SMART_SMARTCTL_PATH"`
	// ExtraArgs are passed through to smartctl before the device path, e.g.
	// ["-d", "sat"] for drives behind a USB bridge.
	ExtraArgs []string `yaml:"extra_args"`
	// UseSudo wraps the invocation in "sudo -n"; the usual deployment runs
	// the plugin as an unprivileged monitoring user.
	UseSudo bool `yaml:"use_sudo" env:"CHECK_SMART_USE_SUDO"`
	// IgnoreFailingCommands drops the warning derived from exit-status bit 2
	// (a command failed or a checksum error was found).
	IgnoreFailingCommands bool `yaml:"ignore_failing_commands" env:"CHECK_SMART_IGNORE_FAILING_COMMANDS"`
	// IgnoreErrorMessages lists error-severity smartctl messages that do not
	// abort the run.
	IgnoreErrorMessages []string `yaml:"ignore_error_messages"`
}

// ExclusionRule suppresses increment detection for Metrics on devices whose
// telemetry metadata matches any key/value pair in Match.
type ExclusionRule struct {
	Match   map[string]string `yaml:"match"`
	Metrics []string          `yaml:"metrics"`
}

type Trend struct {
	// MaxAttempts mirrors the monitoring host's re-check attempts; the
	// history window keeps MaxAttempts+1 samples so that a sustained change
	// is confirmed over the same number of runs the host needs to enter a
	// hard state.
	MaxAttempts    int             `yaml:"max_attempts" env:"CHECK_SMART_MAX_ATTEMPTS"`
	CheckedMetrics []string        `yaml:"checked_metrics"`
	Exclusions     []ExclusionRule `yaml:"exclusions"`
}

type State struct {
	Directory string `yaml:"directory" env:"CHECK_SMART_STATE_DIRECTORY"`
	// DisableLock turns off the run lock around history load/save. Only safe
	// when the scheduler guarantees non-overlapping invocations.
	DisableLock bool `yaml:"disable_lock" env:"CHECK_SMART_DISABLE_LOCK"`
}

type Logging struct {
	Level string `yaml:"level" env:"CHECK_SMART_LOG_LEVEL"`
}

// NewSettings builds the effective configuration from the given YAML files
// (later files override earlier ones) plus environment variables. No files
// at all is valid; the engine then runs on defaults.
func NewSettings(configFiles ...string) (*Settings, error) {
	var cfg Settings

	for _, cfgFile := range configFiles {
		if cfgFile == "" {
			continue
		}

		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("no config file %s: %w", cfgFile, err)
		}

		if err := cleanenv.ReadConfig(cfgFile, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from %s: %w", cfgFile, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from the environment: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (s *Settings) setDefaults() {
	if s.Smartctl.Path == "" {
		s.Smartctl.Path = DefaultSmartctlPath
	}
	if s.Trend.MaxAttempts == 0 {
		s.Trend.MaxAttempts = DefaultMaxAttempts
	}
	if s.Trend.CheckedMetrics == nil {
		s.Trend.CheckedMetrics = DefaultCheckedMetrics
	}
	if s.Trend.Exclusions == nil {
		s.Trend.Exclusions = DefaultExclusions
	}
	if s.State.Directory == "" {
		s.State.Directory = DefaultStateDirectory
	}
	if s.Logging.Level == "" {
		s.Logging.Level = "warning"
	}
}

func (s *Settings) Validate() error {
	if err := s.Devices.Validate(); err != nil {
		return err
	}

	if err := s.Trend.Validate(); err != nil {
		return err
	}

	if err := s.State.Validate(); err != nil {
		return err
	}

	return s.Logging.Validate()
}

func (d *Devices) Validate() error {
	if len(d.Include) > 0 && len(d.Exclude) > 0 {
		return errors.New("devices.include and devices.exclude are mutually exclusive")
	}
	return nil
}

func (t *Trend) Validate() error {
	if t.MaxAttempts < 1 {
		return errors.New("trend.max_attempts must be at least 1")
	}
	for i, rule := range t.Exclusions {
		if len(rule.Match) == 0 {
			return errors.Errorf("trend.exclusions[%d] has no match predicate", i)
		}
		if len(rule.Metrics) == 0 {
			return errors.Errorf("trend.exclusions[%d] lists no metrics", i)
		}
	}
	return nil
}

func (s *State) Validate() error {
	if s.Directory == "" {
		return errors.New("state.directory must not be empty")
	}
	return nil
}

func (l *Logging) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	return nil
}
