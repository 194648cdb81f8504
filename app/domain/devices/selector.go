// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package devices selects the block devices a run probes, applying the
// include/exclude filters and removable-device policy to the disks visible
// under /sys/block.
package devices

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	config "github.com/sbraz/check-smart/app/config"
	"github.com/sbraz/check-smart/app/logging"
)

// SCSI_TYPE_DISK; entries without a type file are assumed to be disks, the
// same fallback lsblk uses.
const scsiTypeDisk = 0

type Selector struct {
	cfg    *config.Devices
	logger *logrus.Entry

	sysBlock string
	devDir   string
}

type Option func(s *Selector)

// WithSysBlock overrides the sysfs block directory, for tests.
func WithSysBlock(dir string) Option {
	return func(s *Selector) {
		s.sysBlock = dir
	}
}

// WithDevDir overrides the directory device nodes live in, for tests.
func WithDevDir(dir string) Option {
	return func(s *Selector) {
		s.devDir = dir
	}
}

func NewSelector(ctx context.Context, cfg *config.Devices, opts ...Option) *Selector {
	s := &Selector{
		cfg:      cfg,
		sysBlock: "/sys/block",
		devDir:   "/dev",
		logger: logging.NewLogger().
			WithContext(ctx).WithField(logging.OpField, "devices"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the device paths to probe, lexicographically ordered.
// Zero matching devices is an error: either the filters are wrong or the
// host has no disks, and both deserve a loud failure rather than a silent
// OK verdict.
func (s *Selector) Select() ([]string, error) {
	include := s.resolveAll(s.cfg.Include)
	exclude := s.resolveAll(s.cfg.Exclude)

	entries, err := os.ReadDir(s.sysBlock)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", s.sysBlock)
	}

	var selected []string
	for _, entry := range entries {
		name := entry.Name()
		sysPath := filepath.Join(s.sysBlock, name)

		info, err := os.Stat(filepath.Join(sysPath, "device"))
		if err != nil || !info.IsDir() {
			continue
		}

		scsiType, err := s.readSysInt(filepath.Join(sysPath, "device", "type"))
		if os.IsNotExist(errors.Cause(err)) {
			scsiType = scsiTypeDisk
		} else if err != nil {
			return nil, err
		}

		size, err := s.readSysInt(filepath.Join(sysPath, "size"))
		if err != nil {
			return nil, err
		}

		if s.cfg.SkipRemovable && s.isRemovable(sysPath) {
			s.logger.Debugf("skipping removable device %s", name)
			continue
		}

		if scsiType != scsiTypeDisk || size == 0 {
			continue
		}

		devPath := filepath.Join(s.devDir, name)
		if _, excluded := exclude[devPath]; excluded {
			continue
		}
		if len(s.cfg.Include) > 0 {
			if _, included := include[devPath]; !included {
				continue
			}
		}
		selected = append(selected, devPath)
	}

	if len(selected) == 0 {
		return nil, errors.Errorf(
			"could not find any device matching %s", s.filterDescription())
	}

	sort.Strings(selected)
	return selected, nil
}

// resolveAll canonicalizes user-supplied filter paths. A path that cannot
// be resolved is dropped from the comparison set; it must never degrade
// into a match-everything filter.
func (s *Selector) resolveAll(paths []string) map[string]struct{} {
	resolved := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		canonical, err := filepath.EvalSymlinks(path)
		if err != nil {
			s.logger.Debugf("cannot resolve %s: %v", path, err)
			continue
		}
		resolved[canonical] = struct{}{}
	}
	return resolved
}

func (s *Selector) readSysInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "read %s", path)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", path)
	}
	return value, nil
}

// isRemovable is best effort: when the flag cannot be determined the device
// is kept.
func (s *Selector) isRemovable(sysPath string) bool {
	removable, err := s.readSysInt(filepath.Join(sysPath, "removable"))
	if err != nil {
		return false
	}
	return removable == 1
}

func (s *Selector) filterDescription() string {
	switch {
	case len(s.cfg.Include) > 0:
		return strings.Join(s.cfg.Include, ", ")
	case len(s.cfg.Exclude) > 0:
		return "devices outside " + strings.Join(s.cfg.Exclude, ", ")
	default:
		return "any disk"
	}
}
