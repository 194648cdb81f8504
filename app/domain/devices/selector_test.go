// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package devices_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/sbraz/check-smart/app/config"
	"github.com/sbraz/check-smart/app/domain/devices"
)

type sysDevice struct {
	name      string
	scsiType  string // empty = no type file
	size      string
	removable string // empty = no removable file
	noDevice  bool   // entry without a device directory (loop, ram, ...)
}

func buildSysBlock(t *testing.T, devs []sysDevice) (sysBlock, devDir string) {
	t.Helper()
	root := t.TempDir()
	sysBlock = filepath.Join(root, "sys", "block")
	devDir = filepath.Join(root, "dev")
	require.NoError(t, os.MkdirAll(devDir, 0o755))

	for _, dev := range devs {
		base := filepath.Join(sysBlock, dev.name)
		if dev.noDevice {
			require.NoError(t, os.MkdirAll(base, 0o755))
		} else {
			require.NoError(t, os.MkdirAll(filepath.Join(base, "device"), 0o755))
			if dev.scsiType != "" {
				require.NoError(t, os.WriteFile(filepath.Join(base, "device", "type"), []byte(dev.scsiType+"\n"), 0o644))
			}
		}
		if dev.size != "" {
			require.NoError(t, os.WriteFile(filepath.Join(base, "size"), []byte(dev.size+"\n"), 0o644))
		}
		if dev.removable != "" {
			require.NoError(t, os.WriteFile(filepath.Join(base, "removable"), []byte(dev.removable+"\n"), 0o644))
		}
		require.NoError(t, os.WriteFile(filepath.Join(devDir, dev.name), nil, 0o644))
	}
	return sysBlock, devDir
}

func newSelector(cfg *config.Devices, sysBlock, devDir string) *devices.Selector {
	return devices.NewSelector(context.Background(), cfg,
		devices.WithSysBlock(sysBlock), devices.WithDevDir(devDir))
}

func TestUnit_Devices_SelectsDisksOnly(t *testing.T) {
	sysBlock, devDir := buildSysBlock(t, []sysDevice{
		{name: "sda", scsiType: "0", size: "1000"},
		{name: "sdb", size: "1000"},                // no type file, assumed disk
		{name: "sr0", scsiType: "5", size: "1000"}, // cdrom
		{name: "sdz", scsiType: "0", size: "0"},    // zero size
		{name: "loop0", noDevice: true, size: "1000"},
	})

	selected, err := newSelector(&config.Devices{}, sysBlock, devDir).Select()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(devDir, "sda"),
		filepath.Join(devDir, "sdb"),
	}, selected)
}

func TestUnit_Devices_SkipRemovable(t *testing.T) {
	sysBlock, devDir := buildSysBlock(t, []sysDevice{
		{name: "sda", scsiType: "0", size: "1000", removable: "0"},
		{name: "sdb", scsiType: "0", size: "1000", removable: "1"},
		{name: "sdc", scsiType: "0", size: "1000"}, // unknown removability, kept
	})

	selected, err := newSelector(&config.Devices{SkipRemovable: true}, sysBlock, devDir).Select()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(devDir, "sda"),
		filepath.Join(devDir, "sdc"),
	}, selected)
}

func TestUnit_Devices_IncludeFilter(t *testing.T) {
	sysBlock, devDir := buildSysBlock(t, []sysDevice{
		{name: "sda", scsiType: "0", size: "1000"},
		{name: "sdb", scsiType: "0", size: "1000"},
	})

	cfg := &config.Devices{Include: []string{filepath.Join(devDir, "sdb")}}
	selected, err := newSelector(cfg, sysBlock, devDir).Select()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(devDir, "sdb")}, selected)
}

func TestUnit_Devices_ExcludeFilter(t *testing.T) {
	sysBlock, devDir := buildSysBlock(t, []sysDevice{
		{name: "sda", scsiType: "0", size: "1000"},
		{name: "sdb", scsiType: "0", size: "1000"},
	})

	cfg := &config.Devices{Exclude: []string{filepath.Join(devDir, "sda")}}
	selected, err := newSelector(cfg, sysBlock, devDir).Select()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(devDir, "sdb")}, selected)
}

func TestUnit_Devices_UnresolvableFilterNeverMatchesEverything(t *testing.T) {
	sysBlock, devDir := buildSysBlock(t, []sysDevice{
		{name: "sda", scsiType: "0", size: "1000"},
	})

	// an exclude path that cannot be resolved is dropped, not treated as
	// a wildcard
	cfg := &config.Devices{Exclude: []string{filepath.Join(devDir, "missing")}}
	selected, err := newSelector(cfg, sysBlock, devDir).Select()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(devDir, "sda")}, selected)
}

func TestUnit_Devices_NoMatchIsFatal(t *testing.T) {
	sysBlock, devDir := buildSysBlock(t, []sysDevice{
		{name: "sda", scsiType: "0", size: "1000"},
	})

	cfg := &config.Devices{Include: []string{"/dev/does-not-exist"}}
	_, err := newSelector(cfg, sysBlock, devDir).Select()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find any device matching /dev/does-not-exist")
}

func TestUnit_Devices_SymlinkedFilterResolvesToDevice(t *testing.T) {
	sysBlock, devDir := buildSysBlock(t, []sysDevice{
		{name: "sda", scsiType: "0", size: "1000"},
		{name: "sdb", scsiType: "0", size: "1000"},
	})

	// by-id style alias pointing at the real node
	alias := filepath.Join(devDir, "disk-by-id-abc")
	require.NoError(t, os.Symlink(filepath.Join(devDir, "sda"), alias))

	cfg := &config.Devices{Include: []string{alias}}
	selected, err := newSelector(cfg, sysBlock, devDir).Select()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(devDir, "sda")}, selected)
}
