// Package relay carries store change events between processes that share a
// storage medium. Each process forwards its own ticket and email writes to
// a channel and re-publishes writes from other processes on its local feed.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/codec"
	"github.com/spec-kit/ticket-tracker/internal/events"
)

// Envelope is the wire format of one change on the relay channel.
type Envelope struct {
	Origin   string `cbor:"origin"`
	Key      string `cbor:"key"`
	NewValue []byte `cbor:"new_value"`
}

// EncodeEnvelope serializes env as CBOR.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	return codec.Marshal(env)
}

// DecodeEnvelope parses a CBOR envelope. Envelopes without an origin or key
// are rejected.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Origin == "" || env.Key == "" {
		return Envelope{}, errors.New("envelope missing origin or key")
	}
	return env, nil
}

// Transport moves raw payloads over a named channel.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers payloads until ctx is done or the returned close
	// func is called.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error)
}

// Relay bridges a local ChangeFeed and a Transport.
type Relay struct {
	origin    string
	channel   string
	feed      *events.ChangeFeed
	transport Transport
	logger    *zap.Logger

	mu      sync.Mutex
	stop    func()
	done    chan struct{}
	running bool
}

// New builds a relay with a fresh origin id.
func New(feed *events.ChangeFeed, transport Transport, channel string, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		origin:    uuid.NewString(),
		channel:   channel,
		feed:      feed,
		transport: transport,
		logger:    logger,
	}
}

// Origin identifies this process on the channel.
func (r *Relay) Origin() string { return r.origin }

// Start subscribes to the channel and to the local feed. It returns once
// both subscriptions are in place; forwarding continues until ctx is done
// or Stop is called.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("relay already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	incoming, closeSub, err := r.transport.Subscribe(ctx, r.channel)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	unsubscribe := r.feed.Subscribe(func(event events.ChangeEvent) {
		r.forward(ctx, event)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.receive(ctx, incoming)
	}()

	r.stop = func() {
		unsubscribe()
		cancel()
		if err := closeSub(); err != nil {
			r.logger.Warn("relay subscription close failed", zap.Error(err))
		}
	}
	r.done = done
	r.running = true
	r.logger.Info("change relay started", zap.String("channel", r.channel), zap.String("origin", r.origin))
	return nil
}

// Stop tears the relay down and waits for the receive loop to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	stop, done := r.stop, r.done
	r.running = false
	r.mu.Unlock()

	stop()
	<-done
}

// forward publishes a local write. Events that already carry an origin
// came from the channel and are not sent back.
func (r *Relay) forward(ctx context.Context, event events.ChangeEvent) {
	if event.Origin != "" {
		return
	}
	payload, err := EncodeEnvelope(Envelope{Origin: r.origin, Key: event.Key, NewValue: event.NewValue})
	if err != nil {
		r.logger.Error("relay encode failed", zap.String("key", event.Key), zap.Error(err))
		return
	}
	if err := r.transport.Publish(ctx, r.channel, payload); err != nil {
		r.logger.Warn("relay publish failed", zap.String("key", event.Key), zap.Error(err))
	}
}

func (r *Relay) receive(ctx context.Context, incoming <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-incoming:
			if !ok {
				return
			}
			r.deliver(payload)
		}
	}
}

func (r *Relay) deliver(payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		r.logger.Warn("relay dropped message", zap.Error(err))
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.feed.Publish(events.ChangeEvent{Key: env.Key, NewValue: env.NewValue, Origin: env.Origin})
}
