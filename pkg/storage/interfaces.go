package storage

import "github.com/sauverpro/goFasta/pkg/model"

// Interface is implemented by the storage
type Interface interface {
	Devices() DeviceStore
}

// DeviceFields is a partial update of a device. A nil field is left
// unchanged by Update and Upsert, it is never nulled out by omission.
type DeviceFields struct {
	PlateNumber *string
	LastLat     *float64
	LastLon     *float64
	LastSpeed   *float64
	DestLat     *float64
	DestLon     *float64
}

// TouchesPosition reports whether the patch carries position or speed
// data, which refreshes the device's LastUpdate timestamp.
func (f DeviceFields) TouchesPosition() bool {
	return f.LastLat != nil || f.LastLon != nil || f.LastSpeed != nil
}

// SortOrder is the direction of a List sort.
type SortOrder string

const (
	SortAsc  = SortOrder("asc")
	SortDesc = SortOrder("desc")
)

// MaxPageSize bounds the page size of List and Search results.
const MaxPageSize = 100

// ListOptions control pagination and ordering of List and Search. Page is
// 1-indexed; a PageSize outside [1,MaxPageSize] is clamped.
type ListOptions struct {
	Page     int
	PageSize int
	SortBy   string
	Order    SortOrder
}

// Normalize clamps pagination values into their valid ranges and fills
// in the defaults for zero values.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 10
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	if o.SortBy == "" {
		o.SortBy = "last_update"
	}
	if o.Order != SortAsc {
		o.Order = SortDesc
	}
	return o
}

// SearchFilter narrows a device search. All criteria are optional and
// combined with AND semantics.
type SearchFilter struct {
	// Query matches case-insensitively as a substring of the device id
	// or the plate number.
	Query string
	// PlateNumber matches case-insensitively as a substring of the
	// plate number only.
	PlateNumber string
	// MinSpeed and MaxSpeed are inclusive bounds on the last speed.
	MinSpeed *float64
	MaxSpeed *float64
}

// DeviceStore is responsible for managing the Device model
type DeviceStore interface {
	Create(m *model.Device) error
	Upsert(deviceID string, f DeviceFields) (m *model.Device, created bool, err error)
	FindByDeviceID(deviceID string) (*model.Device, error)
	Update(deviceID string, f DeviceFields) (*model.Device, error)
	Delete(deviceID string) (*model.Device, error)
	DeleteAll(deviceIDs []string) (int64, error)
	List(opt ListOptions) ([]model.Device, int64, error)
	Search(f SearchFilter, opt ListOptions) ([]model.Device, int64, error)
	CountTracked() (int64, error)
}

// sortFields is the whitelist of columns List accepts for ordering.
var sortFields = map[string]bool{
	"device_id":    true,
	"plate_number": true,
	"last_speed":   true,
	"last_update":  true,
	"created_at":   true,
	"updated_at":   true,
}

// ValidSortField reports whether List and Search accept the given sort
// column.
func ValidSortField(name string) bool {
	return sortFields[name]
}
