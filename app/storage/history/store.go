// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package history persists the per-configuration metric history between
// runs. One JSON snapshot file per configuration key, replaced atomically
// on save so a concurrent reader never observes a partial write.
package history

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Snapshot maps serial -> metric -> retained value window, oldest first.
type Snapshot map[string]map[string][]int64

// Window returns the retained values for one (serial, metric) pair; a copy,
// so appending on the caller side never mutates the snapshot.
func (s Snapshot) Window(serial, metric string) []int64 {
	values := s[serial][metric]
	if len(values) == 0 {
		return nil
	}
	out := make([]int64, len(values))
	copy(out, values)
	return out
}

// Set stores the window for one (serial, metric) pair.
func (s Snapshot) Set(serial, metric string, values []int64) {
	byMetric, ok := s[serial]
	if !ok {
		byMetric = make(map[string][]int64)
		s[serial] = byMetric
	}
	byMetric[metric] = values
}

// snapshot files hold device serials, keep them owner-only
const snapshotMode fs.FileMode = 0o600

type stateFile struct {
	Metrics Snapshot `json:"metrics"`
}

// Store reads and writes history snapshots under one state directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the snapshot file location for a configuration key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, "check_smart_"+key+".json")
}

// Load reads the snapshot for key. A missing, empty or undecodable file is
// not an error: the run is treated as a first run (firstRun true) with an
// empty snapshot. A snapshot readable by group or others is a hard error;
// the file holds device serials and per-device history that must stay
// private to the monitoring user.
func (s *Store) Load(key string) (snapshot Snapshot, firstRun bool, err error) {
	path := s.Path(key)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		log.Debug().Str("path", path).Msg("no state file")
		return Snapshot{}, true, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "stat state file")
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, false, errors.Errorf(
			"state file %s has insecure permissions %#o, expected owner-only access", path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, errors.Wrap(err, "read state file")
	}

	var content stateFile
	if err := json.Unmarshal(data, &content); err != nil || content.Metrics == nil {
		log.Debug().Str("path", path).Msg("state file empty or undecodable, starting fresh")
		return Snapshot{}, true, nil
	}

	log.Debug().Str("path", path).Int("devices", len(content.Metrics)).Msg("loaded state file")
	return content.Metrics, false, nil
}

// Save atomically replaces the snapshot for key.
func (s *Store) Save(key string, snapshot Snapshot) error {
	data, err := json.Marshal(stateFile{Metrics: snapshot})
	if err != nil {
		return errors.Wrap(err, "encode state file")
	}

	path := s.Path(key)
	if err := renameio.WriteFile(path, data, snapshotMode); err != nil {
		return errors.Wrap(err, "write state file")
	}
	log.Debug().Str("path", path).Msg("saved state file")
	return nil
}
