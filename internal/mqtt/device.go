package mqtt

import "github.com/TAMATLT/ferryd/internal/buildinfo"

// Device is the HA device registry block carried by every discovery
// payload this instance publishes. One shared block makes HA group
// all the entities on a single device page.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// NewDevice builds the registry block. instanceID is the primary HA
// identifier and survives renames; deviceName is what the HA UI shows.
func NewDevice(instanceID, deviceName string) Device {
	return Device{
		Identifiers:  []string{instanceID},
		Name:         deviceName,
		Manufacturer: "TAMATLT",
		Model:        "Transposer Ferry",
		SWVersion:    buildinfo.Version,
	}
}

// SensorConfig is one entity's discovery payload, published retained
// so the entity exists in HA before its first state arrives.
//
// ObjectID together with HasEntityName keeps HA from deriving
// double-prefixed entity IDs like sensor.dock_dock_uptime.
type SensorConfig struct {
	Name          string `json:"name"`
	UniqueID      string `json:"unique_id"`
	ObjectID      string `json:"object_id,omitempty"`
	HasEntityName bool   `json:"has_entity_name,omitempty"`

	StateTopic        string `json:"state_topic"`
	AvailabilityTopic string `json:"availability_topic"`

	Device            Device `json:"device"`
	Icon              string `json:"icon,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	EntityCategory    string `json:"entity_category,omitempty"`
}
