package websocket

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// registryCmd is the command interface for the Registry actor.
type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type connectCmd struct {
	baseRegistryCmd
	id           string
	transport    domain.Transport
	welcome      []byte
	errorChannel chan error
}

type disconnectCmd struct {
	baseRegistryCmd
	id string
}

type sendCmd struct {
	baseRegistryCmd
	id           string
	frame        []byte
	replyChannel chan bool
}

type broadcastCmd struct {
	baseRegistryCmd
	frame        []byte
	replyChannel chan int
}

type metricsCmd struct {
	baseRegistryCmd
	replyChannel chan RegistryMetrics
}

type stopCmd struct {
	baseRegistryCmd
}

// RegistryMetrics is a snapshot of registry-level counters.
type RegistryMetrics struct {
	Active        int
	TotalAccepted int64
	MessagesSent  int64
	Uptime        time.Duration
}

// Registry accepts, tracks and removes duplex connections, and performs
// best-effort fan-out to them. One actor goroutine owns the connection map;
// all mutation goes through the command channel, so the fan-out hot path
// needs no registry-wide lock. Delivery to each connection is decoupled by
// a bounded drop-oldest queue and a per-connection writer goroutine.
type Registry struct {
	cmdCh          chan registryCmd
	clock          clockwork.Clock
	clients        map[string]*client
	maxConnections int
	queueCapacity  int
	writeTimeout   time.Duration
	startTime      time.Time
	totalAccepted  int64
	totalSent      atomic.Int64
	done           chan struct{}
	stopTimeout    time.Duration
}

// NewRegistry creates a registry and starts its actor goroutine.
// maxConnections caps concurrent connections; queueCapacity bounds each
// connection's outbound queue; writeTimeout bounds a single transport write
// so one slow client cannot stall others.
func NewRegistry(maxConnections, queueCapacity int, writeTimeout time.Duration, clock clockwork.Clock) *Registry {
	r := &Registry{
		cmdCh:          make(chan registryCmd, 256),
		clock:          clock,
		clients:        make(map[string]*client),
		maxConnections: maxConnections,
		queueCapacity:  queueCapacity,
		writeTimeout:   writeTimeout,
		startTime:      clock.Now(),
		done:           make(chan struct{}),
		stopTimeout:    stopTimeout,
	}
	go r.run()
	return r
}

// Connect registers a new connection and enqueues the caller-supplied
// initial world-state message. Returns domain.ErrRegistryFull when the
// configured maximum is reached; the transport is closed on rejection and
// no state is created.
func (r *Registry) Connect(id string, transport domain.Transport, welcome domain.Message) error {
	frame, err := welcome.Encode()
	if err != nil {
		slog.Error("Failed to encode welcome message", "connection_id", id, "error", err)
		frame = nil
	}

	select {
	case <-r.done:
		_ = transport.Close("registry stopped")
		return domain.ErrRegistryStopped
	default:
	}

	errCh := make(chan error, 1)
	r.cmdCh <- connectCmd{id: id, transport: transport, welcome: frame, errorChannel: errCh}

	// Use timeout to prevent blocking forever if the registry is stuck
	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-r.done:
		_ = transport.Close("registry stopped")
		return domain.ErrRegistryStopped
	case <-timer.Chan():
		return fmt.Errorf("connect command timed out after %v", commandTimeout)
	}
}

// Disconnect removes a connection and closes its transport. Idempotent and
// safe to call concurrently with an in-flight send to the same id.
func (r *Registry) Disconnect(id string) {
	r.cmdCh <- disconnectCmd{id: id}
}

// SendOne enqueues a message for a single connection. Returns false when
// the id is unknown or the message cannot be encoded. A transport write
// failure surfaces asynchronously in the connection's writer, which
// self-heals by disconnecting; the registry never retries a broken
// connection.
func (r *Registry) SendOne(id string, msg domain.Message) bool {
	frame, err := msg.Encode()
	if err != nil {
		slog.Error("Failed to encode message", "type", msg.Type, "error", err)
		return false
	}

	replyCh := make(chan bool, 1)
	r.cmdCh <- sendCmd{id: id, frame: frame, replyChannel: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case ok := <-replyCh:
		return ok
	case <-timer.Chan():
		slog.Warn("SendOne timed out", "connection_id", id, "timeout", commandTimeout)
		return false
	}
}

// BroadcastNow fans a message out to every live connection and returns the
// number of successful enqueues. Individual failures never abort delivery
// to the rest.
func (r *Registry) BroadcastNow(msg domain.Message) int {
	frame, err := msg.Encode()
	if err != nil {
		slog.Error("Failed to encode broadcast message", "type", msg.Type, "error", err)
		return 0
	}

	replyCh := make(chan int, 1)
	r.cmdCh <- broadcastCmd{frame: frame, replyChannel: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("BroadcastNow timed out", "timeout", commandTimeout)
		return 0
	}
}

// Metrics returns a snapshot of registry counters.
func (r *Registry) Metrics() RegistryMetrics {
	replyCh := make(chan RegistryMetrics, 1)
	r.cmdCh <- metricsCmd{replyChannel: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case m := <-replyCh:
		return m
	case <-timer.Chan():
		slog.Warn("Metrics timed out", "timeout", commandTimeout)
		return RegistryMetrics{}
	}
}

// Stop shuts the registry down, closing all connections with a close frame.
// Blocks until the actor goroutine has exited or the stop timeout is
// reached. The batch scheduler must be stopped first so the final flush
// never writes into closed connections.
func (r *Registry) Stop() {
	r.cmdCh <- stopCmd{}

	timeout := r.clock.NewTimer(r.stopTimeout)
	defer timeout.Stop()

	select {
	case <-r.done:
		slog.Info("Registry stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Registry stop timeout exceeded, forcing exit", "timeout", r.stopTimeout)
		metrics.RegistryStopTimeoutsTotal.Inc()
	}
}

func (r *Registry) run() {
	// Panic recovery wrapper
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Registry panic recovered", "panic", rec)
			metrics.RegistryPanicsTotal.Inc()
			r.closeAllClients("registry panic")
			close(r.done)
		}
	}()

	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case connectCmd:
			r.handleConnect(c)
		case disconnectCmd:
			r.handleDisconnect(c.id)
		case sendCmd:
			r.handleSend(c)
		case broadcastCmd:
			c.replyChannel <- r.handleBroadcast(c.frame)
		case metricsCmd:
			c.replyChannel <- RegistryMetrics{
				Active:        len(r.clients),
				TotalAccepted: r.totalAccepted,
				MessagesSent:  r.totalSent.Load(),
				Uptime:        r.clock.Since(r.startTime),
			}
		case stopCmd:
			r.handleStop()
			close(r.done)
			return
		default:
			slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (r *Registry) handleConnect(c connectCmd) {
	if _, exists := r.clients[c.id]; exists {
		c.errorChannel <- fmt.Errorf("connection %q already registered", c.id)
		return
	}

	if len(r.clients) >= r.maxConnections {
		slog.Warn("Rejecting connection: registry full", "connection_id", c.id, "max_connections", r.maxConnections)
		metrics.RegistryConnectionsTotal.WithLabelValues("rejected").Inc()
		_ = c.transport.Close("registry full")
		c.errorChannel <- domain.ErrRegistryFull
		return
	}

	cl := newClient(c.id, c.transport, r.queueCapacity, r.writeTimeout, r.clock, &r.totalSent, r.Disconnect)
	r.clients[c.id] = cl
	r.totalAccepted++

	if c.welcome != nil {
		cl.enqueue(c.welcome)
	}

	metrics.RegistryConnectionsTotal.WithLabelValues("accepted").Inc()
	metrics.RegistryActiveConnections.Set(float64(len(r.clients)))

	slog.Debug("Connection registered", "connection_id", c.id, "active", len(r.clients))
	c.errorChannel <- nil
}

func (r *Registry) handleDisconnect(id string) {
	cl, exists := r.clients[id]
	if !exists {
		return
	}

	cl.stop("disconnected")
	delete(r.clients, id)
	metrics.RegistryActiveConnections.Set(float64(len(r.clients)))

	slog.Debug("Connection removed", "connection_id", id, "active", len(r.clients))
}

func (r *Registry) handleSend(c sendCmd) {
	cl, exists := r.clients[c.id]
	if !exists {
		c.replyChannel <- false
		return
	}
	cl.enqueue(c.frame)
	c.replyChannel <- true
}

func (r *Registry) handleBroadcast(frame []byte) int {
	count := 0
	for _, cl := range r.clients {
		cl.enqueue(frame)
		count++
	}
	return count
}

func (r *Registry) handleStop() {
	slog.Info("Registry shutting down", "active_connections", len(r.clients))
	r.closeAllClients("Server shutting down")
	slog.Info("Registry shutdown complete")
}

// closeAllClients closes all connections with the given reason. Used during
// panic recovery and graceful shutdown.
func (r *Registry) closeAllClients(reason string) {
	for id, cl := range r.clients {
		cl.stop(reason)
		delete(r.clients, id)
	}
	metrics.RegistryActiveConnections.Set(0)
}
