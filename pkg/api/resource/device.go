package resource

import (
	"fmt"
	"time"

	"github.com/sauverpro/goFasta/pkg/model"
	"github.com/sauverpro/goFasta/pkg/storage"
	"github.com/sauverpro/goFasta/pkg/tracker"
)

// DeviceResource is the JSON view of a device. ETASeconds is only set on
// read paths that derive it.
type DeviceResource struct {
	DeviceID    string     `json:"device_id"`
	PlateNumber *string    `json:"plate_number,omitempty"`
	LastLat     *float64   `json:"last_lat,omitempty"`
	LastLon     *float64   `json:"last_lon,omitempty"`
	LastSpeed   *float64   `json:"last_speed,omitempty"`
	LastUpdate  *time.Time `json:"last_update,omitempty"`
	DestLat     *float64   `json:"dest_lat,omitempty"`
	DestLon     *float64   `json:"dest_lon,omitempty"`
	ETASeconds  *int64     `json:"etaSeconds,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func NewDevice(m *model.Device) (out *DeviceResource) {
	out = &DeviceResource{
		DeviceID:    m.DeviceID,
		PlateNumber: m.PlateNumber,
		LastLat:     m.LastLat,
		LastLon:     m.LastLon,
		LastSpeed:   m.LastSpeed,
		DestLat:     m.DestLat,
		DestLon:     m.DestLon,
	}

	if !m.LastUpdate.IsZero() {
		out.LastUpdate = &time.Time{}
		*out.LastUpdate = m.LastUpdate.Round(time.Second)
	}
	if !m.CreatedAt.IsZero() {
		out.CreatedAt = &time.Time{}
		*out.CreatedAt = m.CreatedAt.Round(time.Second)
	}
	if !m.UpdatedAt.IsZero() {
		out.UpdatedAt = &time.Time{}
		*out.UpdatedAt = m.UpdatedAt.Round(time.Second)
	}

	return // out
}

func NewDeviceView(v *tracker.DeviceView) (out *DeviceResource) {
	out = NewDevice(&v.Device)
	out.ETASeconds = v.ETASeconds

	return // out
}

func NewDeviceViewList(views []tracker.DeviceView) (out []*DeviceResource) {
	out = make([]*DeviceResource, 0, len(views))
	for i := range views {
		out = append(out, NewDeviceView(&views[i]))
	}

	return // out
}

// DeviceListResponse is the paginated list/search envelope.
type DeviceListResponse struct {
	Success bool              `json:"success"`
	Count   int               `json:"count"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	Pages   int64             `json:"pages"`
	Data    []*DeviceResource `json:"data"`
}

func NewDeviceList(views []tracker.DeviceView, total int64, opt storage.ListOptions) *DeviceListResponse {
	opt = opt.Normalize()

	pages := total / int64(opt.PageSize)
	if total%int64(opt.PageSize) != 0 {
		pages++
	}

	data := NewDeviceViewList(views)

	return &DeviceListResponse{
		Success: true,
		Count:   len(data),
		Total:   total,
		Page:    opt.Page,
		Pages:   pages,
		Data:    data,
	}
}

// CreateDeviceRequest is the POST /api/devices payload.
type CreateDeviceRequest struct {
	DeviceID    string   `json:"deviceId"`
	PlateNumber *string  `json:"plateNumber"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Speed       *float64 `json:"speed"`
	DestLat     *float64 `json:"destLat"`
	DestLon     *float64 `json:"destLon"`
}

// GPSDataRequest is the POST /api/gps payload. Coordinates are mandatory,
// it carries a hardware reading.
type GPSDataRequest struct {
	DeviceID    string   `json:"deviceId"`
	PlateNumber *string  `json:"plateNumber"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Speed       *float64 `json:"speed"`
}

// UpdateDeviceRequest is the PUT /api/devices/:deviceId payload. All
// fields are optional but at least one must be present.
type UpdateDeviceRequest struct {
	PlateNumber *string  `json:"plateNumber"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Speed       *float64 `json:"speed"`
	DestLat     *float64 `json:"destLat"`
	DestLon     *float64 `json:"destLon"`
}

// BulkDeleteRequest is the DELETE /api/devices payload.
type BulkDeleteRequest struct {
	DeviceIDs []string `json:"deviceIds"`
}

func validateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("deviceId is required")
	}
	if len(id) > 50 {
		return fmt.Errorf("deviceId must be at most 50 characters")
	}
	return nil
}

func validatePlate(plate *string) error {
	if plate == nil {
		return nil
	}
	if *plate == "" || len(*plate) > 20 {
		return fmt.Errorf("plateNumber must be between 1 and 20 characters")
	}
	return nil
}

func validateLat(lat *float64, name string) error {
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return fmt.Errorf("%s must be between -90 and 90", name)
	}
	return nil
}

func validateLon(lon *float64, name string) error {
	if lon == nil {
		return nil
	}
	if *lon < -180 || *lon > 180 {
		return fmt.Errorf("%s must be between -180 and 180", name)
	}
	return nil
}

func validateSpeed(speed *float64) error {
	if speed == nil {
		return nil
	}
	if *speed < 0 || *speed > 200 {
		return fmt.Errorf("speed must be between 0 and 200")
	}
	return nil
}

// ValidateCreateDevice checks ranges and converts the request into a
// device model.
func ValidateCreateDevice(r *CreateDeviceRequest) (m *model.Device, err error) {
	if err := validateDeviceID(r.DeviceID); err != nil {
		return nil, err
	}
	if err := validatePlate(r.PlateNumber); err != nil {
		return nil, err
	}
	if err := validateLat(r.Lat, "lat"); err != nil {
		return nil, err
	}
	if err := validateLon(r.Lon, "lon"); err != nil {
		return nil, err
	}
	if err := validateSpeed(r.Speed); err != nil {
		return nil, err
	}
	if err := validateLat(r.DestLat, "destLat"); err != nil {
		return nil, err
	}
	if err := validateLon(r.DestLon, "destLon"); err != nil {
		return nil, err
	}

	m = &model.Device{
		DeviceID:    r.DeviceID,
		PlateNumber: r.PlateNumber,
		LastLat:     r.Lat,
		LastLon:     r.Lon,
		LastSpeed:   r.Speed,
		DestLat:     r.DestLat,
		DestLon:     r.DestLon,
	}

	return m, nil
}

// ValidateGPSData checks a hardware reading and converts it into a merge
// patch for the upsert path.
func ValidateGPSData(r *GPSDataRequest) (f storage.DeviceFields, err error) {
	if err := validateDeviceID(r.DeviceID); err != nil {
		return f, err
	}
	if r.Lat == nil || r.Lon == nil {
		return f, fmt.Errorf("lat and lon are required")
	}
	if err := validatePlate(r.PlateNumber); err != nil {
		return f, err
	}
	if err := validateLat(r.Lat, "lat"); err != nil {
		return f, err
	}
	if err := validateLon(r.Lon, "lon"); err != nil {
		return f, err
	}
	if err := validateSpeed(r.Speed); err != nil {
		return f, err
	}

	f = storage.DeviceFields{
		PlateNumber: r.PlateNumber,
		LastLat:     r.Lat,
		LastLon:     r.Lon,
		LastSpeed:   r.Speed,
	}

	return f, nil
}

// ValidateUpdateDevice checks a partial update and converts it into a
// merge patch. At least one field must be supplied.
func ValidateUpdateDevice(r *UpdateDeviceRequest) (f storage.DeviceFields, err error) {
	if r.PlateNumber == nil && r.Lat == nil && r.Lon == nil &&
		r.Speed == nil && r.DestLat == nil && r.DestLon == nil {
		return f, fmt.Errorf("at least one field must be provided")
	}
	if err := validatePlate(r.PlateNumber); err != nil {
		return f, err
	}
	if err := validateLat(r.Lat, "lat"); err != nil {
		return f, err
	}
	if err := validateLon(r.Lon, "lon"); err != nil {
		return f, err
	}
	if err := validateSpeed(r.Speed); err != nil {
		return f, err
	}
	if err := validateLat(r.DestLat, "destLat"); err != nil {
		return f, err
	}
	if err := validateLon(r.DestLon, "destLon"); err != nil {
		return f, err
	}

	f = storage.DeviceFields{
		PlateNumber: r.PlateNumber,
		LastLat:     r.Lat,
		LastLon:     r.Lon,
		LastSpeed:   r.Speed,
		DestLat:     r.DestLat,
		DestLon:     r.DestLon,
	}

	return f, nil
}

// ValidateBulkDelete checks the id set bounds.
func ValidateBulkDelete(r *BulkDeleteRequest) error {
	if len(r.DeviceIDs) == 0 {
		return fmt.Errorf("deviceIds must be a non-empty array")
	}
	if len(r.DeviceIDs) > 100 {
		return fmt.Errorf("deviceIds must contain at most 100 ids")
	}
	for _, id := range r.DeviceIDs {
		if err := validateDeviceID(id); err != nil {
			return err
		}
	}
	return nil
}
