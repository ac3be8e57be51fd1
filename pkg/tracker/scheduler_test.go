package tracker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sauverpro/goFasta/pkg/storage"
	"github.com/stretchr/testify/assert"
)

type stubDeviceStore struct {
	storage.DeviceStore
	ticks int64
	err   error
}

func (s *stubDeviceStore) CountTracked() (int64, error) {
	atomic.AddInt64(&s.ticks, 1)
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

func (s *stubDeviceStore) tickCount() int64 {
	return atomic.LoadInt64(&s.ticks)
}

type stubStore struct {
	devices *stubDeviceStore
}

func (s *stubStore) Devices() storage.DeviceStore {
	return s.devices
}

func TestScheduler_DoubleStartSchedulesOnce(t *testing.T) {
	devices := &stubDeviceStore{}
	s := NewScheduler(&stubStore{devices: devices}, 50*time.Millisecond)

	s.Start()
	s.Start()
	defer s.Stop()

	time.Sleep(175 * time.Millisecond)
	s.Stop()

	// A second active loop would roughly double the tick count.
	ticks := devices.tickCount()
	assert.GreaterOrEqual(t, ticks, int64(2))
	assert.LessOrEqual(t, ticks, int64(4))
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(&stubStore{devices: &stubDeviceStore{}}, 50*time.Millisecond)

	s.Stop() // stopping a stopped scheduler is a no-op

	s.Start()
	s.Stop()
	s.Stop()
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	devices := &stubDeviceStore{}
	s := NewScheduler(&stubStore{devices: devices}, 30*time.Millisecond)

	s.Start()
	time.Sleep(80 * time.Millisecond)
	s.Stop()

	first := devices.tickCount()
	assert.GreaterOrEqual(t, first, int64(1))

	s.Start()
	time.Sleep(80 * time.Millisecond)
	s.Stop()

	assert.Greater(t, devices.tickCount(), first)
}

func TestScheduler_TickFailureDoesNotStopLoop(t *testing.T) {
	devices := &stubDeviceStore{err: errors.New("store unavailable")}
	s := NewScheduler(&stubStore{devices: devices}, 30*time.Millisecond)

	s.Start()
	time.Sleep(110 * time.Millisecond)
	s.Stop()

	// The loop kept ticking past the failures.
	assert.GreaterOrEqual(t, devices.tickCount(), int64(2))
	assert.GreaterOrEqual(t, s.TickFailures(), uint64(2))
}

func TestScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(&stubStore{devices: &stubDeviceStore{}}, 0)
	assert.Equal(t, DefaultRefreshInterval, s.interval)
}
