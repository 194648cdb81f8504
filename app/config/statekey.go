// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/sha1" //nolint:gosec // key derivation, not authentication
	"encoding/hex"

	"gopkg.in/yaml.v3"
)

// StateKey derives the history-store key for this configuration: a stable
// hash over every setting except logging, so that differently configured
// runs never share or corrupt each other's history while verbosity changes
// keep the same state.
func (s *Settings) StateKey() (string, error) {
	relevant := *s
	relevant.Logging = Logging{}

	raw, err := yaml.Marshal(&relevant)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(raw) //nolint:gosec // see above
	return hex.EncodeToString(sum[:]), nil
}
