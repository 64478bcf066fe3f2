// Package store is the data store of the tracker: users, tickets, emails
// and the session pointer, each kept as one serialized value in a
// persistence.KV.
//
// Every write rewrites the whole collection. Reads and writes never return
// errors: a failing medium or an undecodable value is logged and treated as
// an empty read or a dropped write. Writes to tickets and emails publish an
// events.ChangeEvent carrying the new serialized collection once the
// store's locks are released, in the order the writes landed.
//
// Read-modify-write cycles are serialized within one Store. Two processes
// sharing a medium still race: the last whole-collection write wins.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
)

// Keys names the four values the store keeps in the medium.
type Keys struct {
	Users       string
	Tickets     string
	Emails      string
	CurrentUser string
}

// KeysWithPrefix returns the standard keys under prefix.
func KeysWithPrefix(prefix string) Keys {
	return Keys{
		Users:       prefix + "users",
		Tickets:     prefix + "tickets",
		Emails:      prefix + "emails",
		CurrentUser: prefix + "currentUserId",
	}
}

// Options tunes a Store.
type Options struct {
	KeyPrefix string
	Metrics   *observability.Metrics
}

// Store is the handle every service is given. It is safe for concurrent use.
type Store struct {
	kv      persistence.KV
	feed    *events.ChangeFeed
	logger  *zap.Logger
	metrics *observability.Metrics
	keys    Keys

	writeMu  sync.Mutex
	ticketMu sync.Mutex

	// pending holds change events queued under writeMu. One goroutine at a
	// time drains it; held > 0 defers draining until WithTicketLock exits.
	pendingMu sync.Mutex
	pending   []events.ChangeEvent
	draining  bool
	held      int
}

// New builds a Store over kv. A nil feed gets a fresh one.
func New(kv persistence.KV, feed *events.ChangeFeed, logger *zap.Logger, opts Options) *Store {
	if feed == nil {
		feed = events.NewChangeFeed()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:      kv,
		feed:    feed,
		logger:  logger,
		metrics: opts.Metrics,
		keys:    KeysWithPrefix(opts.KeyPrefix),
	}
}

// Keys returns the keys this store reads and writes.
func (s *Store) Keys() Keys { return s.keys }

// Feed returns the change feed the store publishes to.
func (s *Store) Feed() *events.ChangeFeed { return s.feed }

// Subscribe registers handler for ticket and email change events.
// Handlers run synchronously on a writing goroutine after the write has
// landed and the store's locks are released, so a handler may write to the
// store. Events caused by a handler are delivered after it returns. A slow
// handler delays every later event, not the writes themselves.
func (s *Store) Subscribe(handler events.ChangeHandler) (unsubscribe func()) {
	return s.feed.Subscribe(handler)
}

// Ping checks the underlying medium.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// WithTicketLock runs fn while holding the ticket-creation lock, so an id
// computed from the current collection is saved before another creation in
// this process can compute one. Change events raised inside fn are
// delivered after the lock is released.
func (s *Store) WithTicketLock(fn func()) {
	s.pendingMu.Lock()
	s.held++
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		s.held--
		s.pendingMu.Unlock()
		s.flush()
	}()

	s.ticketMu.Lock()
	defer s.ticketMu.Unlock()
	fn()
}

// enqueue queues event for delivery. Callers hold writeMu, so the queue
// order is the write order.
func (s *Store) enqueue(event events.ChangeEvent) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, event)
	s.pendingMu.Unlock()
}

// flush delivers queued events. It returns at once if another goroutine is
// draining or a ticket lock is held; that goroutine delivers them instead.
func (s *Store) flush() {
	s.pendingMu.Lock()
	if s.draining || s.held > 0 {
		s.pendingMu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		s.pendingMu.Unlock()
		for _, event := range batch {
			s.feed.Publish(event)
		}
		s.pendingMu.Lock()
	}
	s.draining = false
	s.pendingMu.Unlock()
}

func readCollection[T any](ctx context.Context, s *Store, key string) []T {
	items := []T{}
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Error("storage read failed", zap.String("key", key), zap.Error(err))
		s.metrics.RecordStorageFailure(key, "read")
		return items
	}
	if !found || len(raw) == 0 {
		return items
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Error("storage value undecodable", zap.String("key", key), zap.Error(err))
		s.metrics.RecordStorageFailure(key, "read")
		return []T{}
	}
	return items
}

// writeCollection persists items and reports whether the write landed.
// Ticket and email writes are queued for the feed; the caller must hold
// writeMu and call flush after releasing it.
func writeCollection[T any](ctx context.Context, s *Store, key string, items []T) bool {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.logger.Error("storage encode failed", zap.String("key", key), zap.Error(err))
		s.metrics.RecordStorageFailure(key, "write")
		return false
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logger.Error("storage write failed", zap.String("key", key), zap.Error(err))
		s.metrics.RecordStorageFailure(key, "write")
		return false
	}
	if key == s.keys.Tickets || key == s.keys.Emails {
		s.enqueue(events.ChangeEvent{Key: key, NewValue: raw})
	}
	return true
}

type record interface {
	RecordID() string
}

// upsert replaces the element with item's id in place, or appends it.
func upsert[T record](items []T, item T) []T {
	for i := range items {
		if items[i].RecordID() == item.RecordID() {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func findByID[T record](items []T, id string) *T {
	for i := range items {
		if items[i].RecordID() == id {
			found := items[i]
			return &found
		}
	}
	return nil
}
