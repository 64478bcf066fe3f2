package events

import (
	"sync"
)

// ChangeEvent announces that a stored collection was rewritten. NewValue is
// the full serialized collection after the write. Origin identifies the
// process that made the write; it is empty for local writes until a relay
// stamps it.
type ChangeEvent struct {
	Key      string
	NewValue []byte
	Origin   string
}

// ChangeHandler receives change events.
type ChangeHandler func(ChangeEvent)

// ChangeFeed fans change events out to subscribers. Delivery is synchronous
// and best effort: a subscriber only sees events published while it is
// subscribed.
type ChangeFeed struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]ChangeHandler
	order  []uint64
}

// NewChangeFeed returns an empty feed.
func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[uint64]ChangeHandler)}
}

// Subscribe registers handler and returns a func that removes it. The
// returned func is safe to call more than once.
func (f *ChangeFeed) Subscribe(handler ChangeHandler) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.subs[id] = handler
	f.order = append(f.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

func (f *ChangeFeed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Publish delivers event to every current subscriber in subscription order.
// Handlers may subscribe or unsubscribe while being called.
func (f *ChangeFeed) Publish(event ChangeEvent) {
	if f == nil {
		return
	}
	f.mu.RLock()
	handlers := make([]ChangeHandler, 0, len(f.order))
	for _, id := range f.order {
		handlers = append(handlers, f.subs[id])
	}
	f.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Len returns the number of subscribers.
func (f *ChangeFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
