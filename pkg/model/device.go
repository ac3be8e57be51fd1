package model

import "time"

// Device is a model of the persistency layer. Only the last known state
// of a tracked unit is kept, there is no trajectory history.
type Device struct {
	DeviceID    string
	PlateNumber *string
	LastLat     *float64
	LastLon     *float64
	LastSpeed   *float64
	LastUpdate  time.Time
	DestLat     *float64
	DestLon     *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPosition reports whether both coordinates are known. A partial
// coordinate pair counts as no position.
func (d *Device) HasPosition() bool {
	return d.LastLat != nil && d.LastLon != nil
}

// HasDestination reports whether the device carries its own target point.
func (d *Device) HasDestination() bool {
	return d.DestLat != nil && d.DestLon != nil
}
