package tracker

import (
	"fmt"
	"math"
	"testing"

	"github.com/sauverpro/goFasta/pkg/geo"
	"github.com/sauverpro/goFasta/pkg/model"
	"github.com/sauverpro/goFasta/pkg/storage"
	"github.com/sauverpro/goFasta/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDest = Destination{Lat: -1.9683524, Lon: 30.0890925}

func newTestService() *Service {
	return NewService(memory.NewStore(), nil, testDest)
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestIngestPosition_CreatesOnFirstSight(t *testing.T) {
	svc := newTestService()

	m, created, err := svc.IngestPosition("D1", storage.DeviceFields{
		LastLat:   floatPtr(-1.95),
		LastLon:   floatPtr(30.05),
		LastSpeed: floatPtr(36),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "D1", m.DeviceID)
	assert.Equal(t, m.CreatedAt, m.UpdatedAt)

	m, created, err = svc.IngestPosition("D1", storage.DeviceFields{
		LastSpeed: floatPtr(40),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 40.0, *m.LastSpeed)
	// Coordinates from the first reading survive the merge.
	assert.Equal(t, -1.95, *m.LastLat)
	assert.Equal(t, 30.05, *m.LastLon)
}

func TestUpdateDevice_MergesFields(t *testing.T) {
	svc := newTestService()

	err := svc.CreateDevice(&model.Device{
		DeviceID: "D1",
		LastLat:  floatPtr(1),
		LastLon:  floatPtr(2),
	})
	require.NoError(t, err)

	m, err := svc.UpdateDevice("D1", storage.DeviceFields{
		LastSpeed: floatPtr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, *m.LastLat)
	assert.Equal(t, 2.0, *m.LastLon)
	assert.Equal(t, 10.0, *m.LastSpeed)
}

func TestUpdateDevice_NotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.UpdateDevice("missing", storage.DeviceFields{
		LastSpeed: floatPtr(10),
	})
	assert.Equal(t, storage.ErrNotFound, err)
}

func TestCreateDevice_Conflict(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.CreateDevice(&model.Device{DeviceID: "D1"}))
	err := svc.CreateDevice(&model.Device{DeviceID: "D1"})
	assert.Equal(t, storage.ErrConflict, err)
}

func TestGetDevice_ComputesETA(t *testing.T) {
	svc := newTestService()

	err := svc.CreateDevice(&model.Device{
		DeviceID:  "D1",
		LastLat:   floatPtr(-1.95),
		LastLon:   floatPtr(30.05),
		LastSpeed: floatPtr(36), // 10 m/s
	})
	require.NoError(t, err)

	v, err := svc.GetDevice("D1")
	require.NoError(t, err)
	require.NotNil(t, v.ETASeconds)

	distance := geo.Distance(-1.95, 30.05, testDest.Lat, testDest.Lon)
	expected := int64(math.Round(distance / 10))
	assert.Equal(t, expected, *v.ETASeconds)
}

func TestGetDevice_ETARequiresSpeedAndPosition(t *testing.T) {
	svc := newTestService()

	// Position but no speed.
	require.NoError(t, svc.CreateDevice(&model.Device{
		DeviceID: "no-speed",
		LastLat:  floatPtr(-1.95),
		LastLon:  floatPtr(30.05),
	}))
	// Speed but no position.
	require.NoError(t, svc.CreateDevice(&model.Device{
		DeviceID:  "no-position",
		LastSpeed: floatPtr(50),
	}))
	// Zero speed.
	require.NoError(t, svc.CreateDevice(&model.Device{
		DeviceID:  "parked",
		LastLat:   floatPtr(-1.95),
		LastLon:   floatPtr(30.05),
		LastSpeed: floatPtr(0),
	}))

	for _, id := range []string{"no-speed", "no-position", "parked"} {
		v, err := svc.GetDevice(id)
		require.NoError(t, err)
		assert.Nil(t, v.ETASeconds, id)
	}
}

func TestGetDevice_PrefersOwnDestination(t *testing.T) {
	svc := newTestService()

	err := svc.CreateDevice(&model.Device{
		DeviceID:  "D1",
		LastLat:   floatPtr(-1.95),
		LastLon:   floatPtr(30.05),
		LastSpeed: floatPtr(36),
		DestLat:   floatPtr(-1.96),
		DestLon:   floatPtr(30.06),
	})
	require.NoError(t, err)

	v, err := svc.GetDevice("D1")
	require.NoError(t, err)
	require.NotNil(t, v.ETASeconds)

	distance := geo.Distance(-1.95, 30.05, -1.96, 30.06)
	expected := int64(math.Round(distance / 10))
	assert.Equal(t, expected, *v.ETASeconds)
}

func TestGetDevice_NotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.GetDevice("missing")
	assert.Equal(t, storage.ErrNotFound, err)
}

func TestListDevices_Pagination(t *testing.T) {
	svc := newTestService()

	for i := 0; i < 15; i++ {
		require.NoError(t, svc.CreateDevice(&model.Device{
			DeviceID: fmt.Sprintf("D%02d", i),
		}))
	}

	views, total, err := svc.ListDevices(storage.ListOptions{
		Page:     2,
		PageSize: 10,
		SortBy:   "device_id",
		Order:    storage.SortAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)
	assert.Len(t, views, 5)
	assert.Equal(t, "D10", views[0].DeviceID)
}

func TestListDevices_UnknownSortField(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.ListDevices(storage.ListOptions{SortBy: "nonsense"})
	assert.Equal(t, storage.ErrInvalidArgument, err)
}

func TestSearchDevices(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.CreateDevice(&model.Device{
		DeviceID:    "BUS-001",
		PlateNumber: strPtr("RAK123"),
		LastSpeed:   floatPtr(30),
	}))
	require.NoError(t, svc.CreateDevice(&model.Device{
		DeviceID:    "BUS-002",
		PlateNumber: strPtr("RAD456"),
		LastSpeed:   floatPtr(80),
	}))
	require.NoError(t, svc.CreateDevice(&model.Device{
		DeviceID: "TRUCK-001",
	}))

	// Case-insensitive substring over device id and plate.
	views, total, err := svc.SearchDevices(storage.SearchFilter{Query: "bus"}, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, views, 2)

	views, total, err = svc.SearchDevices(storage.SearchFilter{Query: "rak"}, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "BUS-001", views[0].DeviceID)

	// Inclusive speed bounds.
	views, total, err = svc.SearchDevices(storage.SearchFilter{
		MinSpeed: floatPtr(30),
		MaxSpeed: floatPtr(50),
	}, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "BUS-001", views[0].DeviceID)
}

func TestBulkDelete_SkipsMissing(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.CreateDevice(&model.Device{DeviceID: "A"}))

	count, err := svc.BulkDelete([]string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = svc.GetDevice("A")
	assert.Equal(t, storage.ErrNotFound, err)
}

func TestDeleteDevice(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.CreateDevice(&model.Device{DeviceID: "D1"}))

	m, err := svc.DeleteDevice("D1")
	require.NoError(t, err)
	assert.Equal(t, "D1", m.DeviceID)

	_, err = svc.DeleteDevice("D1")
	assert.Equal(t, storage.ErrNotFound, err)
}
