package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/metrics"
)

const pingInterval = 30 * time.Second

// client pairs one registered connection with its outbound queue and the
// writer goroutine draining it. Owned exclusively by the Registry actor.
type client struct {
	id           string
	transport    domain.Transport
	queue        *outboundQueue
	clock        clockwork.Clock
	writeTimeout time.Duration
	connectedAt  time.Time

	messagesSent atomic.Int64
	totalSent    *atomic.Int64 // registry-wide counter, shared

	notify   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// onWriteFailure is invoked from a detached goroutine after a transport
	// write fails, so the registry can evict the connection without the
	// writer holding anything up.
	onWriteFailure func(id string)
}

func newClient(id string, transport domain.Transport, queueCapacity int, writeTimeout time.Duration, clock clockwork.Clock, totalSent *atomic.Int64, onWriteFailure func(id string)) *client {
	c := &client{
		id:             id,
		transport:      transport,
		queue:          newOutboundQueue(queueCapacity),
		clock:          clock,
		writeTimeout:   writeTimeout,
		connectedAt:    clock.Now(),
		totalSent:      totalSent,
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
		onWriteFailure: onWriteFailure,
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// enqueue adds a frame to the outbound queue and wakes the writer.
// Never blocks; the oldest frame is dropped when the queue is full.
func (c *client) enqueue(frame []byte) {
	if c.queue.push(frame) {
		metrics.RegistryQueueDroppedTotal.Inc()
	}
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *client) run() {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.notify:
			if !c.drain() {
				return
			}
		case <-ticker.Chan():
			deadline := c.clock.Now().Add(c.writeTimeout)
			if err := c.transport.Ping(deadline); err != nil {
				c.fail()
				return
			}
		}
	}
}

// drain writes all currently queued frames. Returns false when a write
// failed and the writer must exit.
func (c *client) drain() bool {
	for {
		frame, ok := c.queue.pop()
		if !ok {
			return true
		}

		deadline := c.clock.Now().Add(c.writeTimeout)
		if err := c.transport.Write(frame, deadline); err != nil {
			c.fail()
			return false
		}
		c.messagesSent.Add(1)
		c.totalSent.Add(1)
		metrics.RegistryMessagesSentTotal.Inc()
	}
}

func (c *client) fail() {
	metrics.RegistryWriteFailuresTotal.Inc()
	if c.onWriteFailure != nil {
		// Detached so the eviction command cannot deadlock against the
		// registry waiting for this writer to exit.
		go c.onWriteFailure(c.id)
	}
}

// stop signals the writer to exit, waits for it, then closes the transport.
// Idempotent; close errors are ignored.
func (c *client) stop(reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		_ = c.transport.Close(reason)
	})
}
