package tracker

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sauverpro/goFasta/pkg/geo"
	"github.com/sauverpro/goFasta/pkg/model"
	"github.com/sauverpro/goFasta/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// positionSubjectPrefix is the NATS subject readings are relayed on,
// suffixed with the device id.
const positionSubjectPrefix = "gofasta.positions."

// Destination is an ETA target point.
type Destination struct {
	Lat float64
	Lon float64
}

// DeviceView is a device together with its derived arrival estimate. The
// estimate is computed at read time and never persisted, so it is always
// fresh relative to the stored position and speed.
type DeviceView struct {
	model.Device
	ETASeconds *int64
}

// Service orchestrates validated requests against the store and the geo
// engine. It is stateless and safe for concurrent use.
type Service struct {
	store       storage.Interface
	nc          *nats.Conn
	defaultDest Destination
}

// NewService creates a new tracker service. The NATS connection is
// optional; without it ingested readings are not relayed.
func NewService(store storage.Interface, nc *nats.Conn, defaultDest Destination) *Service {
	return &Service{
		store:       store,
		nc:          nc,
		defaultDest: defaultDest,
	}
}

// CreateDevice registers a new device. It fails with storage.ErrConflict
// when the device id is already taken.
func (s *Service) CreateDevice(m *model.Device) error {
	if err := s.store.Devices().Create(m); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"device_id": m.DeviceID,
	}).Info("New device created")

	return nil
}

// IngestPosition applies a GPS reading as an upsert: the device is created
// on first sight, otherwise only the supplied fields are merged. The
// returned bool reports whether the device was created. No ETA is computed
// on this path; rapid repeated ingestion should not pay for it.
func (s *Service) IngestPosition(deviceID string, f storage.DeviceFields) (*model.Device, bool, error) {
	m, created, err := s.store.Devices().Upsert(deviceID, f)
	if err != nil {
		return nil, false, err
	}

	log.WithFields(log.Fields{
		"device_id": deviceID,
		"created":   created,
	}).Info("GPS data updated")

	s.publishPosition(m)

	return m, created, nil
}

// GetDevice returns a single device with its arrival estimate.
func (s *Service) GetDevice(deviceID string) (*DeviceView, error) {
	m, err := s.store.Devices().FindByDeviceID(deviceID)
	if err != nil {
		return nil, err
	}

	v := s.view(m)

	return &v, nil
}

// ListDevices returns a page of devices, each with its arrival estimate,
// together with the total record count.
func (s *Service) ListDevices(opt storage.ListOptions) ([]DeviceView, int64, error) {
	models, total, err := s.store.Devices().List(opt)
	if err != nil {
		return nil, 0, err
	}

	return s.views(models), total, nil
}

// SearchDevices returns a filtered page of devices with arrival estimates.
func (s *Service) SearchDevices(f storage.SearchFilter, opt storage.ListOptions) ([]DeviceView, int64, error) {
	models, total, err := s.store.Devices().Search(f, opt)
	if err != nil {
		return nil, 0, err
	}

	return s.views(models), total, nil
}

// UpdateDevice merges the supplied fields into an existing device.
func (s *Service) UpdateDevice(deviceID string, f storage.DeviceFields) (*model.Device, error) {
	m, err := s.store.Devices().Update(deviceID, f)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"device_id": deviceID,
	}).Info("Device updated")

	return m, nil
}

// DeleteDevice removes a device and returns its last state.
func (s *Service) DeleteDevice(deviceID string) (*model.Device, error) {
	m, err := s.store.Devices().Delete(deviceID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"device_id": deviceID,
	}).Info("Device deleted")

	return m, nil
}

// BulkDelete removes the given devices and returns the count actually
// deleted. Missing ids are skipped silently.
func (s *Service) BulkDelete(deviceIDs []string) (int64, error) {
	count, err := s.store.Devices().DeleteAll(deviceIDs)
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"requested": len(deviceIDs),
		"deleted":   count,
	}).Info("Bulk delete completed")

	return count, nil
}

// view attaches the derived arrival estimate. The target is the device's
// own destination when it has one, otherwise the configured fallback.
func (s *Service) view(m *model.Device) DeviceView {
	v := DeviceView{Device: *m}

	if !m.HasPosition() || m.LastSpeed == nil {
		return v
	}

	dest := s.defaultDest
	if m.HasDestination() {
		dest = Destination{Lat: *m.DestLat, Lon: *m.DestLon}
	}

	distance := geo.Distance(*m.LastLat, *m.LastLon, dest.Lat, dest.Lon)
	if eta, ok := geo.ETASeconds(distance, *m.LastSpeed); ok {
		v.ETASeconds = &eta
	}

	return v
}

func (s *Service) views(models []model.Device) []DeviceView {
	out := make([]DeviceView, 0, len(models))
	for i := range models {
		out = append(out, s.view(&models[i]))
	}

	return out
}

type positionEvent struct {
	DeviceID    string    `json:"deviceId"`
	PlateNumber *string   `json:"plateNumber,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	Speed       *float64  `json:"speed,omitempty"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

// publishPosition relays a stored reading to interested consumers. The
// relay is fire-and-forget: a publish failure is logged and never
// surfaced to the caller.
func (s *Service) publishPosition(m *model.Device) {
	if s.nc == nil {
		return
	}

	data, err := json.Marshal(positionEvent{
		DeviceID:    m.DeviceID,
		PlateNumber: m.PlateNumber,
		Lat:         m.LastLat,
		Lon:         m.LastLon,
		Speed:       m.LastSpeed,
		LastUpdate:  m.LastUpdate,
	})
	if err != nil {
		log.WithError(err).Error("Failed to encode position event")
		return
	}

	if err := s.nc.Publish(positionSubjectPrefix+m.DeviceID, data); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"device_id": m.DeviceID,
		}).Error("Failed to publish position event")
	}
}
