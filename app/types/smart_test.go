// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbraz/check-smart/app/types"
)

func TestUnit_Types_ParseDocumentMetadata(t *testing.T) {
	doc, err := types.ParseDocument([]byte(`{
		"smartctl": {"exit_status": 4, "messages": [{"severity": "warning", "string": "w"}]},
		"device": {"name": "/dev/sda", "type": "sat"},
		"model_family": "Seagate Exos X16",
		"model_name": "ST16000NM001G",
		"serial_number": "SER1",
		"firmware_version": "SN03",
		"user_capacity": {"bytes": 16000900661248}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 4, doc.Smartctl.ExitStatus)
	assert.Equal(t, "SER1", doc.SerialNumber)
	// every top-level string field is available for exclusion matching
	assert.Equal(t, "Seagate Exos X16", doc.Metadata["model_family"])
	assert.Equal(t, "SN03", doc.Metadata["firmware_version"])
	// non-string fields are not
	assert.NotContains(t, doc.Metadata, "user_capacity")
}

func TestUnit_Types_ATAAttributeTable(t *testing.T) {
	doc, err := types.ParseDocument([]byte(`{
		"device": {"name": "/dev/sda", "type": "sat"},
		"ata_smart_attributes": {"table": [
			{"name": "Raw_Read_Error_Rate", "raw": {"value": 7}},
			{"name": "Seek_Error_Rate", "raw": {"value": 0}}
		]}
	}`))
	require.NoError(t, err)

	attrs, err := doc.Attributes()
	require.NoError(t, err)
	assert.Equal(t, []types.Attribute{
		{Name: "Raw_Read_Error_Rate", Value: 7},
		{Name: "Seek_Error_Rate", Value: 0},
	}, attrs)
}

func TestUnit_Types_ATATableMissingIsError(t *testing.T) {
	doc, err := types.ParseDocument([]byte(`{"device": {"name": "/dev/sda", "type": "sat"}}`))
	require.NoError(t, err)
	_, err = doc.Attributes()
	require.Error(t, err)
}

func TestUnit_Types_NVMeHealthLogFlattening(t *testing.T) {
	doc, err := types.ParseDocument([]byte(`{
		"device": {"name": "/dev/nvme0", "type": "nvme"},
		"nvme_smart_health_information_log": {
			"critical_warning": 0,
			"media_errors": 3,
			"temperature_sensors": [41, 44]
		}
	}`))
	require.NoError(t, err)

	attrs, err := doc.Attributes()
	require.NoError(t, err)
	// entries are sorted by name, lists flattened per index
	assert.Equal(t, []types.Attribute{
		{Name: "critical_warning", Value: 0},
		{Name: "media_errors", Value: 3},
		{Name: "temperature_sensors_0", Value: 41},
		{Name: "temperature_sensors_1", Value: 44},
	}, attrs)
}

func TestUnit_Types_UnknownDeviceTypeHasNoAttributes(t *testing.T) {
	doc, err := types.ParseDocument([]byte(`{"device": {"name": "/dev/sda", "type": "scsi"}}`))
	require.NoError(t, err)
	attrs, err := doc.Attributes()
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestUnit_Types_OptionalSections(t *testing.T) {
	doc, err := types.ParseDocument([]byte(`{"device": {"name": "/dev/sda", "type": "sat"}}`))
	require.NoError(t, err)

	_, ok := doc.ErrorLogCount()
	assert.False(t, ok)
	_, ok = doc.CurrentTemperature()
	assert.False(t, ok)

	doc, err = types.ParseDocument([]byte(`{
		"device": {"name": "/dev/sda", "type": "sat"},
		"ata_smart_error_log": {"extended": {"count": 9}},
		"temperature": {"current": 0}
	}`))
	require.NoError(t, err)

	count, ok := doc.ErrorLogCount()
	require.True(t, ok)
	assert.Equal(t, int64(9), count)
	// zero is a valid temperature, presence is what matters
	current, ok := doc.CurrentTemperature()
	require.True(t, ok)
	assert.Equal(t, int64(0), current)
}

func TestUnit_Types_SeverityOrdering(t *testing.T) {
	assert.Less(t, types.SeverityOK, types.SeverityWarning)
	assert.Less(t, types.SeverityWarning, types.SeverityCritical)
	assert.Equal(t, "critical", types.SeverityCritical.String())
	assert.Equal(t, "warning", types.SeverityWarning.String())
	assert.Equal(t, "ok", types.SeverityOK.String())
}
