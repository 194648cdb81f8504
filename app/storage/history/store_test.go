// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package history_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbraz/check-smart/app/storage/history"
)

func TestUnit_History_RoundTrip(t *testing.T) {
	store := history.NewStore(t.TempDir())

	snapshot := history.Snapshot{}
	snapshot.Set("SER1", "Reallocated_Sector_Ct", []int64{5, 3, 3, 7})
	snapshot.Set("SER1", "temperature", []int64{36})
	snapshot.Set("SER2", "media_errors", []int64{0, 0})

	require.NoError(t, store.Save("key1", snapshot))

	loaded, firstRun, err := store.Load("key1")
	require.NoError(t, err)
	assert.False(t, firstRun)
	assert.Empty(t, cmp.Diff(snapshot, loaded))
}

func TestUnit_History_MissingFileIsFirstRun(t *testing.T) {
	store := history.NewStore(t.TempDir())

	loaded, firstRun, err := store.Load("nope")
	require.NoError(t, err)
	assert.True(t, firstRun)
	assert.Empty(t, loaded)
}

func TestUnit_History_CorruptFileIsFirstRun(t *testing.T) {
	dir := t.TempDir()
	store := history.NewStore(dir)
	require.NoError(t, os.WriteFile(store.Path("key1"), []byte("{invalid"), 0o600))

	loaded, firstRun, err := store.Load("key1")
	require.NoError(t, err)
	assert.True(t, firstRun)
	assert.Empty(t, loaded)
}

func TestUnit_History_InsecurePermissionsAreFatal(t *testing.T) {
	dir := t.TempDir()
	store := history.NewStore(dir)
	require.NoError(t, os.WriteFile(store.Path("key1"), []byte(`{"metrics":{}}`), 0o644))

	_, _, err := store.Load("key1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestUnit_History_SaveIsOwnerOnly(t *testing.T) {
	dir := t.TempDir()
	store := history.NewStore(dir)
	require.NoError(t, store.Save("key1", history.Snapshot{}))

	info, err := os.Stat(store.Path("key1"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUnit_History_KeysAreIsolated(t *testing.T) {
	dir := t.TempDir()
	store := history.NewStore(dir)

	snapshot := history.Snapshot{}
	snapshot.Set("SER1", "media_errors", []int64{1})
	require.NoError(t, store.Save("key1", snapshot))

	_, firstRun, err := store.Load("key2")
	require.NoError(t, err)
	assert.True(t, firstRun)

	entries, err := filepath.Glob(filepath.Join(dir, "check_smart_*"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
