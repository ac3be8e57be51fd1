package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sauverpro/goFasta/pkg/model"
	"github.com/sauverpro/goFasta/pkg/storage"
)

type deviceStore struct {
	store map[string]model.Device
	sync.RWMutex
}

func newDeviceStore() *deviceStore {
	return &deviceStore{
		store: make(map[string]model.Device),
	}
}

func (s *deviceStore) Create(m *model.Device) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.store[m.DeviceID]; ok {
		return storage.ErrConflict
	}

	now := time.Now().Round(time.Second).UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.LastUpdate.IsZero() {
		m.LastUpdate = now
	}

	s.store[m.DeviceID] = *m

	return nil
}

func (s *deviceStore) Upsert(deviceID string, f storage.DeviceFields) (*model.Device, bool, error) {
	s.Lock()
	defer s.Unlock()

	now := time.Now().Round(time.Second).UTC()

	m, ok := s.store[deviceID]
	if !ok {
		m = model.Device{
			DeviceID:   deviceID,
			LastUpdate: now,
			CreatedAt:  now,
		}
	}

	applyFields(&m, f)
	if f.TouchesPosition() {
		m.LastUpdate = now
	}
	m.UpdatedAt = now

	s.store[deviceID] = m

	return &m, !ok, nil
}

func (s *deviceStore) FindByDeviceID(deviceID string) (*model.Device, error) {
	s.RLock()
	defer s.RUnlock()

	if m, ok := s.store[deviceID]; ok {
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

func (s *deviceStore) Update(deviceID string, f storage.DeviceFields) (*model.Device, error) {
	s.Lock()
	defer s.Unlock()

	m, ok := s.store[deviceID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	now := time.Now().Round(time.Second).UTC()

	applyFields(&m, f)
	if f.TouchesPosition() {
		m.LastUpdate = now
	}
	m.UpdatedAt = now

	s.store[deviceID] = m

	return &m, nil
}

func (s *deviceStore) Delete(deviceID string) (*model.Device, error) {
	s.Lock()
	defer s.Unlock()

	m, ok := s.store[deviceID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	delete(s.store, deviceID)

	return &m, nil
}

func (s *deviceStore) DeleteAll(deviceIDs []string) (int64, error) {
	s.Lock()
	defer s.Unlock()

	var count int64
	for _, id := range deviceIDs {
		if _, ok := s.store[id]; ok {
			delete(s.store, id)
			count++
		}
	}

	return count, nil
}

func (s *deviceStore) List(opt storage.ListOptions) ([]model.Device, int64, error) {
	opt = opt.Normalize()
	if !storage.ValidSortField(opt.SortBy) {
		return nil, 0, storage.ErrInvalidArgument
	}

	s.RLock()
	defer s.RUnlock()

	models := make([]model.Device, 0, len(s.store))
	for _, m := range s.store {
		models = append(models, m)
	}

	sortDevices(models, opt)

	total := int64(len(models))

	return paginate(models, opt), total, nil
}

func (s *deviceStore) Search(f storage.SearchFilter, opt storage.ListOptions) ([]model.Device, int64, error) {
	opt = opt.Normalize()
	if !storage.ValidSortField(opt.SortBy) {
		return nil, 0, storage.ErrInvalidArgument
	}

	s.RLock()
	defer s.RUnlock()

	models := make([]model.Device, 0)
	for _, m := range s.store {
		if matchesFilter(&m, f) {
			models = append(models, m)
		}
	}

	sortDevices(models, opt)

	total := int64(len(models))

	return paginate(models, opt), total, nil
}

func (s *deviceStore) CountTracked() (int64, error) {
	s.RLock()
	defer s.RUnlock()

	var count int64
	for _, m := range s.store {
		if m.HasPosition() {
			count++
		}
	}

	return count, nil
}

func applyFields(m *model.Device, f storage.DeviceFields) {
	if f.PlateNumber != nil {
		m.PlateNumber = f.PlateNumber
	}
	if f.LastLat != nil {
		m.LastLat = f.LastLat
	}
	if f.LastLon != nil {
		m.LastLon = f.LastLon
	}
	if f.LastSpeed != nil {
		m.LastSpeed = f.LastSpeed
	}
	if f.DestLat != nil {
		m.DestLat = f.DestLat
	}
	if f.DestLon != nil {
		m.DestLon = f.DestLon
	}
}

func matchesFilter(m *model.Device, f storage.SearchFilter) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		plate := ""
		if m.PlateNumber != nil {
			plate = strings.ToLower(*m.PlateNumber)
		}
		if !strings.Contains(strings.ToLower(m.DeviceID), q) &&
			!strings.Contains(plate, q) {
			return false
		}
	}

	if f.PlateNumber != "" {
		if m.PlateNumber == nil {
			return false
		}
		if !strings.Contains(strings.ToLower(*m.PlateNumber), strings.ToLower(f.PlateNumber)) {
			return false
		}
	}

	if f.MinSpeed != nil {
		if m.LastSpeed == nil || *m.LastSpeed < *f.MinSpeed {
			return false
		}
	}
	if f.MaxSpeed != nil {
		if m.LastSpeed == nil || *m.LastSpeed > *f.MaxSpeed {
			return false
		}
	}

	return true
}

func sortDevices(models []model.Device, opt storage.ListOptions) {
	less := func(a, b *model.Device) bool {
		switch opt.SortBy {
		case "device_id":
			return a.DeviceID < b.DeviceID
		case "plate_number":
			return derefString(a.PlateNumber) < derefString(b.PlateNumber)
		case "last_speed":
			return derefFloat(a.LastSpeed) < derefFloat(b.LastSpeed)
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.LastUpdate.Before(b.LastUpdate)
		}
	}

	sort.SliceStable(models, func(i, j int) bool {
		if opt.Order == storage.SortAsc {
			return less(&models[i], &models[j])
		}
		return less(&models[j], &models[i])
	})
}

func paginate(models []model.Device, opt storage.ListOptions) []model.Device {
	offset := (opt.Page - 1) * opt.PageSize
	if offset >= len(models) {
		return []model.Device{}
	}

	end := offset + opt.PageSize
	if end > len(models) {
		end = len(models)
	}

	return models[offset:end]
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
