// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Device types reported by smartctl that carry an attribute table we know
// how to walk.
const (
	DeviceTypeATA  = "sat"
	DeviceTypeNVMe = "nvme"
)

// ToolMessage is one entry of smartctl.messages[].
type ToolMessage struct {
	Severity string `json:"severity"`
	String   string `json:"string"`
}

// Attribute is a single named raw metric extracted from a device-type
// specific attribute table.
type Attribute struct {
	Name  string
	Value int64
}

// Document is the parsed smartctl JSON output for one device.
//
// Only the fields the engine consumes are modeled explicitly; the full set
// of top-level scalar string fields (model_family, model_name, firmware
// version, ...) is retained in Metadata for exclusion-rule matching.
type Document struct {
	Smartctl struct {
		ExitStatus int           `json:"exit_status"`
		Messages   []ToolMessage `json:"messages"`
	} `json:"smartctl"`
	Device struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"device"`
	SerialNumber  string                     `json:"serial_number"`
	ATAAttributes *ATAAttributeSection       `json:"ata_smart_attributes"`
	NVMeHealthLog map[string]json.RawMessage `json:"nvme_smart_health_information_log"`
	ATAErrorLog   *ATAErrorLogSection        `json:"ata_smart_error_log"`
	Temperature   *TemperatureSection        `json:"temperature"`

	// Metadata holds every top-level string field of the document, keyed by
	// its JSON name. Exclusion rules match against it.
	Metadata map[string]string `json:"-"`
}

type ATAAttributeSection struct {
	Table []struct {
		Name string `json:"name"`
		Raw  struct {
			Value int64 `json:"value"`
		} `json:"raw"`
	} `json:"table"`
}

type ATAErrorLogSection struct {
	Extended *struct {
		Count int64 `json:"count"`
	} `json:"extended"`
}

type TemperatureSection struct {
	Current *int64 `json:"current"`
}

// ParseDocument decodes one smartctl JSON document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	doc.Metadata = make(map[string]string)
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			doc.Metadata[key] = s
		}
	}
	return &doc, nil
}

// ErrorLogCount returns the extended error log entry count when the document
// carries an ATA error log section.
func (d *Document) ErrorLogCount() (int64, bool) {
	if d.ATAErrorLog == nil || d.ATAErrorLog.Extended == nil {
		return 0, false
	}
	return d.ATAErrorLog.Extended.Count, true
}

// CurrentTemperature returns the canonical temperature reading. The raw
// temperature attributes are not usable here, their value sometimes embeds
// min/max strings.
func (d *Document) CurrentTemperature() (int64, bool) {
	if d.Temperature == nil || d.Temperature.Current == nil {
		return 0, false
	}
	return *d.Temperature.Current, true
}

// Attributes extracts the device-type specific attribute table as a flat,
// deterministically ordered metric list. Device types without a known table
// yield no attributes.
func (d *Document) Attributes() ([]Attribute, error) {
	switch d.Device.Type {
	case DeviceTypeATA:
		return d.ataTable()
	case DeviceTypeNVMe:
		return d.nvmeTable()
	default:
		return nil, nil
	}
}

func (d *Document) ataTable() ([]Attribute, error) {
	if d.ATAAttributes == nil {
		return nil, errors.New("document has no ata_smart_attributes section")
	}
	attrs := make([]Attribute, 0, len(d.ATAAttributes.Table))
	for _, entry := range d.ATAAttributes.Table {
		attrs = append(attrs, Attribute{Name: entry.Name, Value: entry.Raw.Value})
	}
	return attrs, nil
}

// nvmeTable flattens the NVMe health log. Scalar entries map directly to a
// metric; list entries (e.g. temperature_sensors) become one metric per
// index, suffixed with its position.
func (d *Document) nvmeTable() ([]Attribute, error) {
	if d.NVMeHealthLog == nil {
		return nil, errors.New("document has no nvme_smart_health_information_log section")
	}

	names := make([]string, 0, len(d.NVMeHealthLog))
	for name := range d.NVMeHealthLog {
		names = append(names, name)
	}
	sort.Strings(names)

	var attrs []Attribute
	for _, name := range names {
		raw := d.NVMeHealthLog[name]

		var scalar int64
		if err := json.Unmarshal(raw, &scalar); err == nil {
			attrs = append(attrs, Attribute{Name: name, Value: scalar})
			continue
		}

		var list []int64
		if err := json.Unmarshal(raw, &list); err == nil {
			for i, value := range list {
				attrs = append(attrs, Attribute{
					Name:  name + "_" + strconv.Itoa(i),
					Value: value,
				})
			}
			continue
		}
		return nil, errors.Errorf("unsupported value for NVMe health log entry %q", name)
	}
	return attrs, nil
}
