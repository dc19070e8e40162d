// Package relay mirrors broadcast messages across instances via Redis
// Pub/Sub, so every dashboard sees every event no matter which instance it
// is connected to. The relay is optional: the service runs single-instance
// without it.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/metrics"
	"github.com/rs/xid"
)

const (
	channel        = "incident-commander:events"
	publishTimeout = 2 * time.Second
	publishBuffer  = 256
)

// Enqueuer is the local sink remote messages are fed into (the batch
// scheduler).
type Enqueuer interface {
	Enqueue(msg domain.Message)
}

// envelope wraps a serialized message with its origin instance, so
// instances can filter out their own publications.
type envelope struct {
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

// Relay publishes locally produced messages to the shared channel and
// enqueues remote ones into the local scheduler. A circuit breaker guards
// the publish path so a broken Redis cannot slow producers down.
type Relay struct {
	rdb        *goredis.Client
	local      Enqueuer
	instanceID string
	breaker    circuitbreaker.CircuitBreaker[any]

	pubCh  chan domain.Message
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    *goredis.PubSub
}

// NewClient creates a Redis client from a URL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// New creates a relay around an established Redis client. Call Start to
// begin relaying and Close to tear down.
func New(rdb *goredis.Client, local Enqueuer) *Relay {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "relay",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues("relay", e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("relay").Set(stateToFloat(e.NewState))
		}).
		Build()

	return &Relay{
		rdb:        rdb,
		local:      local,
		instanceID: xid.New().String(),
		breaker:    cb,
		pubCh:      make(chan domain.Message, publishBuffer),
	}
}

// InstanceID returns this relay's origin identifier.
func (r *Relay) InstanceID() string {
	return r.instanceID
}

// Enqueue implements the facade sink: the message is handed to the
// publisher goroutine and the call returns immediately. Dropped (with a
// metric) when the buffer is full.
func (r *Relay) Enqueue(msg domain.Message) {
	select {
	case r.pubCh <- msg:
	default:
		metrics.RelayDroppedTotal.WithLabelValues("buffer_full").Inc()
	}
}

// Start launches the publisher and subscriber loops.
func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.sub = r.rdb.Subscribe(ctx, channel)

	r.wg.Add(2)
	go r.publishLoop(ctx)
	go r.subscribeLoop(ctx)

	slog.Info("Relay started", "instance_id", r.instanceID, "channel", channel)
}

// Close stops both loops and the subscription. Safe to call once after
// Start.
func (r *Relay) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.sub != nil {
		_ = r.sub.Close()
	}
	r.wg.Wait()
	slog.Info("Relay stopped", "instance_id", r.instanceID)
}

func (r *Relay) publishLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.pubCh:
			r.publish(ctx, msg)
		}
	}
}

func (r *Relay) publish(ctx context.Context, msg domain.Message) {
	if !r.breaker.TryAcquirePermit() {
		metrics.RelayDroppedTotal.WithLabelValues("breaker_open").Inc()
		return
	}

	frame, err := msg.Encode()
	if err != nil {
		slog.Error("Relay failed to encode message", "type", msg.Type, "error", err)
		r.breaker.RecordSuccess()
		return
	}

	data, err := json.Marshal(envelope{Origin: r.instanceID, Message: frame})
	if err != nil {
		slog.Error("Relay failed to marshal envelope", "error", err)
		r.breaker.RecordSuccess()
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.rdb.Publish(pubCtx, channel, data).Err(); err != nil {
		r.breaker.RecordError(err)
		metrics.RelayDroppedTotal.WithLabelValues("publish_error").Inc()
		slog.Warn("Relay publish failed", "error", err)
		return
	}
	r.breaker.RecordSuccess()
	metrics.RelayPublishedTotal.Inc()
}

func (r *Relay) subscribeLoop(ctx context.Context) {
	defer r.wg.Done()

	msgCh := r.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgCh:
			if !ok {
				return
			}
			r.handleRemote(raw.Payload)
		}
	}
}

func (r *Relay) handleRemote(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		metrics.RelayDroppedTotal.WithLabelValues("decode_error").Inc()
		slog.Warn("Relay failed to unmarshal envelope", "error", err)
		return
	}

	// Self-origin filter: this instance already delivered its own messages.
	if env.Origin == r.instanceID {
		return
	}

	msg, err := domain.DecodeMessage(env.Message)
	if err != nil {
		metrics.RelayDroppedTotal.WithLabelValues("decode_error").Inc()
		slog.Warn("Relay failed to decode remote message", "error", err)
		return
	}

	r.local.Enqueue(msg)
	metrics.RelayReceivedTotal.Inc()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
