// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cortical

import (
	"fmt"
	"strconv"

	"github.com/bureau-foundation/connector/lib/fault"
)

// DataKind is the shape of sample a sensor type consumes.
type DataKind uint8

const (
	// DataScalar sensors take one float per channel per update.
	DataScalar DataKind = iota + 1
	// DataImage sensors take one image frame per channel per update.
	DataImage
)

// String returns "scalar" or "image".
func (k DataKind) String() string {
	switch k {
	case DataScalar:
		return "scalar"
	case DataImage:
		return "image"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// SensorType is the closed set of input cortical area types.
type SensorType uint8

const (
	Proximity SensorType = iota + 1
	Infrared
	Accelerometer
	Gyroscope
	Battery
	Shock
	MiscData
	ImageCameraCenter
)

// maxAxis caps the depth of scalar channels and the width/height of
// image channels.
const maxAxis = 1 << 16

type sensorDefinition struct {
	friendlyName string
	key          string
	base         string
	kind         DataKind
	dimensions   DimensionRange
}

// sensorDefinitions is indexed by SensorType. These values are protocol
// constants: the base strings end up in cortical IDs on the wire.
var sensorDefinitions = [...]sensorDefinition{
	Proximity: {
		friendlyName: "Proximity",
		key:          "proximity",
		base:         "ipro",
		kind:         DataScalar,
		dimensions:   DimensionRange{Min: Dimensions{1, 1, 1}, Max: Dimensions{1, 1, maxAxis}},
	},
	Infrared: {
		friendlyName: "Infrared",
		key:          "infrared",
		base:         "iinf",
		kind:         DataScalar,
		dimensions:   DimensionRange{Min: Dimensions{1, 1, 1}, Max: Dimensions{1, 1, maxAxis}},
	},
	Accelerometer: {
		friendlyName: "Accelerometer",
		key:          "accelerometer",
		base:         "iacc",
		kind:         DataScalar,
		dimensions:   DimensionRange{Min: Dimensions{1, 1, 2}, Max: Dimensions{1, 1, maxAxis}},
	},
	Gyroscope: {
		friendlyName: "Gyroscope",
		key:          "gyroscope",
		base:         "igyr",
		kind:         DataScalar,
		dimensions:   DimensionRange{Min: Dimensions{1, 1, 2}, Max: Dimensions{1, 1, maxAxis}},
	},
	Battery: {
		friendlyName: "Battery Gauge",
		key:          "battery",
		base:         "ibat",
		kind:         DataScalar,
		dimensions:   DimensionRange{Min: Dimensions{1, 1, 1}, Max: Dimensions{1, 1, maxAxis}},
	},
	Shock: {
		friendlyName: "Shock",
		key:          "shock",
		base:         "ishk",
		kind:         DataScalar,
		dimensions:   DimensionRange{Min: Dimensions{1, 1, 1}, Max: Dimensions{1, 1, maxAxis}},
	},
	MiscData: {
		friendlyName: "Miscellaneous",
		key:          "misc",
		base:         "imis",
		kind:         DataScalar,
		dimensions:   DimensionRange{Min: Dimensions{1, 1, 1}, Max: Dimensions{maxAxis, maxAxis, maxAxis}},
	},
	ImageCameraCenter: {
		friendlyName: "Center Image Camera",
		key:          "image_camera_center",
		base:         "ivcc",
		kind:         DataImage,
		dimensions:   DimensionRange{Min: Dimensions{1, 1, 1}, Max: Dimensions{maxAxis, maxAxis, 4}},
	},
}

// SensorTypes returns every sensor type in declaration order.
func SensorTypes() []SensorType {
	types := make([]SensorType, 0, len(sensorDefinitions)-1)
	for t := Proximity; int(t) < len(sensorDefinitions); t++ {
		types = append(types, t)
	}
	return types
}

// Valid reports whether t is one of the declared sensor types.
func (t SensorType) Valid() bool {
	return t >= Proximity && int(t) < len(sensorDefinitions)
}

func (t SensorType) definition() sensorDefinition {
	if !t.Valid() {
		return sensorDefinition{friendlyName: fmt.Sprintf("SensorType(%d)", uint8(t))}
	}
	return sensorDefinitions[t]
}

// String returns the human-readable name.
func (t SensorType) String() string { return t.definition().friendlyName }

// Key returns the snake_case identifier used in configuration files.
func (t SensorType) Key() string { return t.definition().key }

// Base returns the four-byte ID prefix.
func (t SensorType) Base() string { return t.definition().base }

// Kind returns the sample shape the type consumes.
func (t SensorType) Kind() DataKind { return t.definition().kind }

// DimensionRange returns the per-channel dimension bounds.
func (t SensorType) DimensionRange() DimensionRange { return t.definition().dimensions }

// ID returns the cortical ID of the area for the given group.
func (t SensorType) ID(group GroupIndex) (ID, error) {
	if !t.Valid() {
		return ID{}, fault.Configurationf("unknown sensor type %d", uint8(t))
	}
	return ParseID(fmt.Sprintf("%s%02x", t.Base(), uint8(group)))
}

// ParseSensorType resolves a configuration key ("proximity") to its
// sensor type.
func ParseSensorType(key string) (SensorType, error) {
	for _, t := range SensorTypes() {
		if t.Key() == key {
			return t, nil
		}
	}
	return 0, fault.Configurationf("unknown sensor type %q", key)
}

// SensorTypeFromID reverses [SensorType.ID]: it returns the sensor type
// and group index encoded in a sensor area ID.
func SensorTypeFromID(id ID) (SensorType, GroupIndex, error) {
	if id.Category() != CategorySensor {
		return 0, 0, fault.Validationf("cortical id %s is a %s area, not a sensor area", id, id.Category())
	}
	text := id.String()
	for _, t := range SensorTypes() {
		if text[:4] != t.Base() {
			continue
		}
		group, err := strconv.ParseUint(text[4:], 16, 8)
		if err != nil {
			return 0, 0, fault.Validationf("cortical id %s: group suffix %q is not two hex digits", id, text[4:])
		}
		return t, GroupIndex(group), nil
	}
	return 0, 0, fault.Validationf("cortical id %s does not name a known sensor type", id)
}

// CoreType is the closed set of core cortical areas every genome
// carries.
type CoreType uint8

const (
	Death CoreType = iota + 1
	Power
)

// String returns the human-readable name.
func (t CoreType) String() string {
	switch t {
	case Death:
		return "Death"
	case Power:
		return "Power"
	default:
		return fmt.Sprintf("CoreType(%d)", uint8(t))
	}
}

// ID returns the fixed cortical ID of the core area.
func (t CoreType) ID() (ID, error) {
	switch t {
	case Death:
		return ParseID("___dth")
	case Power:
		return ParseID("___pwr")
	default:
		return ID{}, fault.Configurationf("unknown core type %d", uint8(t))
	}
}
