package broadcast

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/metrics"
)

const schedulerStopTimeout = 5 * time.Second

// Sink receives flushed messages; implemented by the connection registry.
type Sink interface {
	BroadcastNow(msg domain.Message) int
}

// Scheduler buffers produced messages and flushes them to the Sink on a
// periodic tick. States: Stopped -> Running -> Stopped. Enqueue is legal in
// any state; messages enqueued while stopped flush on the first tick after
// Start.
type Scheduler struct {
	sink     Sink
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.Mutex
	pending []domain.Message
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler in the Stopped state.
func NewScheduler(sink Sink, interval time.Duration, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		sink:     sink,
		clock:    clock,
		interval: interval,
	}
}

// Enqueue appends a message to the pending buffer. Non-blocking, never
// fails, regardless of scheduler state.
func (s *Scheduler) Enqueue(msg domain.Message) {
	s.mu.Lock()
	s.pending = append(s.pending, msg)
	depth := len(s.pending)
	s.mu.Unlock()

	metrics.SchedulerPendingMessages.Set(float64(depth))
}

// Start launches the periodic flush loop. Calling Start while already
// running is a logged no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Info("Scheduler already running, Start ignored")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(s.stopCh, s.doneCh)
	slog.Info("Scheduler started", "interval", s.interval)
}

// Stop cancels the flush loop, performs one final flush of any buffered
// messages and blocks until the loop goroutine exits. Calling Stop while
// stopped is a logged no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		slog.Info("Scheduler not running, Stop ignored")
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	timer := s.clock.NewTimer(schedulerStopTimeout)
	defer timer.Stop()

	select {
	case <-doneCh:
		slog.Info("Scheduler stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Scheduler stop timeout exceeded", "timeout", schedulerStopTimeout)
	}
}

func (s *Scheduler) run(stopCh, doneCh chan struct{}) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			// Final flush so nothing enqueued before Stop is lost.
			s.flush()
			return
		case <-ticker.Chan():
			s.flush()
		}
	}
}

// flush atomically swaps out the pending buffer and delivers it in priority
// order: higher priority first, FIFO among equal priority. Flushes run only
// on the loop goroutine, so temporal order across ticks is preserved.
func (s *Scheduler) flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	metrics.SchedulerPendingMessages.Set(0)
	metrics.SchedulerBatchSize.Observe(float64(len(batch)))

	if len(batch) == 0 {
		return
	}

	start := s.clock.Now()

	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Priority > batch[j].Priority
	})

	for _, msg := range batch {
		s.sink.BroadcastNow(msg)
	}

	metrics.SchedulerFlushesTotal.Inc()
	metrics.SchedulerFlushDuration.Observe(s.clock.Since(start).Seconds())
}
