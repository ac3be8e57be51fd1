package tracker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sauverpro/goFasta/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// DefaultRefreshInterval is the position updater cadence used when none
// is configured.
const DefaultRefreshInterval = 60 * time.Second

// Scheduler periodically re-evaluates the tracked fleet in the
// background. Each tick counts the devices with a known position and
// reports the result; ticks never mutate device state and never block
// request handling. A tick failure is contained: it is logged, counted
// and the loop carries on.
type Scheduler struct {
	store    storage.Interface
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	tickFailures uint64
}

// NewScheduler creates a stopped scheduler. An interval of zero or less
// falls back to DefaultRefreshInterval.
func NewScheduler(store storage.Interface, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	return &Scheduler{
		store:    store,
		interval: interval,
	}
}

// Start begins firing ticks on the configured interval. Calling Start on
// a running scheduler is a warned no-op, it never double-schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Warn("Position updater already running")
		return
	}

	log.WithFields(log.Fields{
		"interval": s.interval.String(),
	}).Info("Starting position updater")

	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.stopCh)
}

// Stop cancels the loop and waits for an in-flight tick to finish. It is
// safe to call on a stopped scheduler and from the shutdown path while a
// tick is running.
func (s *Scheduler) Stop() {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		return
	}

	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()

	log.Info("Position updater stopped")
}

// TickFailures returns the number of ticks that have failed since the
// scheduler was created.
func (s *Scheduler) TickFailures() uint64 {
	return atomic.LoadUint64(&s.tickFailures)
}

// run is the single loop goroutine. Ticks are serialized by construction:
// the next tick cannot start before the previous one has returned.
func (s *Scheduler) run(stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	count, err := s.store.Devices().CountTracked()
	if err != nil {
		atomic.AddUint64(&s.tickFailures, 1)
		log.WithError(err).Error("Error checking device positions")
		return
	}

	if count == 0 {
		log.Info("No devices with coordinates found")
		return
	}

	log.WithFields(log.Fields{
		"count": count,
	}).Info("Devices reporting GPS coordinates")
}
