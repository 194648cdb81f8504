// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package smart

import (
	"github.com/pkg/errors"

	"github.com/sbraz/check-smart/app/types"
)

// DecodeExitStatus maps smartctl's 8-bit exit status onto findings, bit 0
// lowest. The bit positions encode smartctl's documented exit-status
// contract and must not drift:
//
//	bit 0  command line did not parse          -> fatal
//	bit 1  device open failed                  -> fatal
//	bit 2  command failed or checksum error    -> warning (suppressible)
//	bit 3  device in failing state             -> critical
//	bit 4  prefail attributes below threshold  -> critical
//	bit 5  prefail attributes were below
//	       threshold at some point             -> warning
//	bit 6  (approaching self-reported limits)  -> nothing
//	bit 7  errors during the last self-test    -> warning
//
// The finding subject is the serial when known, the device path otherwise.
func DecodeExitStatus(device, serial string, exitStatus int, ignoreFailingCommands bool) ([]types.Finding, error) {
	subject := serial
	if subject == "" {
		subject = device
	}

	bit := func(n uint) bool { return exitStatus>>n&1 == 1 }

	if bit(0) {
		return nil, errors.Errorf("command line did not parse for %s", device)
	}
	if bit(1) {
		return nil, errors.Errorf("device open failed for %s", device)
	}

	var findings []types.Finding
	if bit(2) && !ignoreFailingCommands {
		findings = append(findings, types.NewStatusFinding(
			types.SeverityWarning, subject, "a command failed or a checksum error was found"))
	}
	if bit(3) {
		findings = append(findings, types.NewStatusFinding(
			types.SeverityCritical, subject, "is in failing state"))
	}
	if bit(4) {
		findings = append(findings, types.NewStatusFinding(
			types.SeverityCritical, subject, "has prefail attributes below threshold"))
	}
	if bit(5) {
		findings = append(findings, types.NewStatusFinding(
			types.SeverityWarning, subject, "had prefail attributes below threshold at some point"))
	}
	if bit(7) {
		findings = append(findings, types.NewStatusFinding(
			types.SeverityWarning, subject, "returned errors during the last self-test"))
	}
	return findings, nil
}
