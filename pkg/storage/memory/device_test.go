package memory

import (
	"sync"
	"testing"

	"github.com/sauverpro/goFasta/pkg/model"
	"github.com/sauverpro/goFasta/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestCreate_ConcurrentSameID(t *testing.T) {
	devices := NewStore().Devices()

	const n = 8
	results := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- devices.Create(&model.Device{DeviceID: "D1"})
		}()
	}
	wg.Wait()
	close(results)

	var created, conflicts int
	for err := range results {
		switch err {
		case nil:
			created++
		case storage.ErrConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)

	_, total, err := devices.List(storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestUpsert_RefreshesLastUpdateOnPositionOnly(t *testing.T) {
	devices := NewStore().Devices()

	m, created, err := devices.Upsert("D1", storage.DeviceFields{
		LastLat: floatPtr(1),
		LastLon: floatPtr(2),
	})
	require.NoError(t, err)
	assert.True(t, created)
	firstUpdate := m.LastUpdate

	// A plate-only merge must not touch the position timestamp.
	m, created, err = devices.Upsert("D1", storage.DeviceFields{
		PlateNumber: strPtr("RAK123"),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstUpdate, m.LastUpdate)
	assert.Equal(t, "RAK123", *m.PlateNumber)
}

func TestUpdate_NeverNullsOmittedFields(t *testing.T) {
	devices := NewStore().Devices()

	require.NoError(t, devices.Create(&model.Device{
		DeviceID:    "D1",
		PlateNumber: strPtr("RAK123"),
		LastLat:     floatPtr(1),
		LastLon:     floatPtr(2),
	}))

	m, err := devices.Update("D1", storage.DeviceFields{
		LastSpeed: floatPtr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "RAK123", *m.PlateNumber)
	assert.Equal(t, 1.0, *m.LastLat)
	assert.Equal(t, 2.0, *m.LastLon)
	assert.Equal(t, 10.0, *m.LastSpeed)
}

func TestList_SortAndClamp(t *testing.T) {
	devices := NewStore().Devices()

	require.NoError(t, devices.Create(&model.Device{DeviceID: "B", LastSpeed: floatPtr(20)}))
	require.NoError(t, devices.Create(&model.Device{DeviceID: "A", LastSpeed: floatPtr(30)}))
	require.NoError(t, devices.Create(&model.Device{DeviceID: "C", LastSpeed: floatPtr(10)}))

	models, total, err := devices.List(storage.ListOptions{
		SortBy: "device_id",
		Order:  storage.SortAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "A", models[0].DeviceID)
	assert.Equal(t, "C", models[2].DeviceID)

	models, _, err = devices.List(storage.ListOptions{
		SortBy: "last_speed",
		Order:  storage.SortDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, "A", models[0].DeviceID)

	// An oversized page size is clamped, not rejected.
	_, _, err = devices.List(storage.ListOptions{PageSize: 5000})
	assert.NoError(t, err)
}

func TestCountTracked_IgnoresPartialCoordinates(t *testing.T) {
	devices := NewStore().Devices()

	require.NoError(t, devices.Create(&model.Device{
		DeviceID: "full",
		LastLat:  floatPtr(1),
		LastLon:  floatPtr(2),
	}))
	require.NoError(t, devices.Create(&model.Device{
		DeviceID: "partial",
		LastLat:  floatPtr(1),
	}))
	require.NoError(t, devices.Create(&model.Device{DeviceID: "none"}))

	count, err := devices.CountTracked()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSearch_PlateFilterAndPagination(t *testing.T) {
	devices := NewStore().Devices()

	require.NoError(t, devices.Create(&model.Device{DeviceID: "D1", PlateNumber: strPtr("RAK100")}))
	require.NoError(t, devices.Create(&model.Device{DeviceID: "D2", PlateNumber: strPtr("RAK200")}))
	require.NoError(t, devices.Create(&model.Device{DeviceID: "D3", PlateNumber: strPtr("RAD300")}))

	models, total, err := devices.Search(storage.SearchFilter{PlateNumber: "rak"}, storage.ListOptions{
		Page:     1,
		PageSize: 1,
		SortBy:   "device_id",
		Order:    storage.SortAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, models, 1)
	assert.Equal(t, "D1", models[0].DeviceID)
}
