package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/store"
)

const changeStreamBuffer = 32

// ChangeMessage is the data of one server-sent "change" event. NewValue
// is only sent to admins; other roles refetch their scoped view.
type ChangeMessage struct {
	Key      string          `json:"key"`
	Origin   string          `json:"origin,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// NewChangeMessage shapes event for a subscriber with role.
func NewChangeMessage(event events.ChangeEvent, role domain.Role) ChangeMessage {
	msg := ChangeMessage{Key: event.Key, Origin: event.Origin}
	if role == domain.RoleAdmin && json.Valid(event.NewValue) {
		msg.NewValue = json.RawMessage(event.NewValue)
	}
	return msg
}

// ChangesHandler streams store change events as server-sent events.
type ChangesHandler struct {
	store     *store.Store
	logger    *zap.Logger
	heartbeat time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// NewChangesHandler constructs handler.
func NewChangesHandler(st *store.Store, logger *zap.Logger) *ChangesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangesHandler{
		store:     st,
		logger:    logger,
		heartbeat: 15 * time.Second,
		closed:    make(chan struct{}),
	}
}

// Close ends every open stream.
func (h *ChangesHandler) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// Stream GET /changes. A subscriber that falls behind loses events and
// must refetch.
func (h *ChangesHandler) Stream(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	userID := principal.User.ID

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	queue := make(chan events.ChangeEvent, changeStreamBuffer)
	unsubscribe := h.store.Subscribe(func(event events.ChangeEvent) {
		select {
		case queue <- event:
		default:
			h.logger.Warn("change stream subscriber lagging", zap.String("user_id", userID), zap.String("key", event.Key))
		}
	})

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		if !writeSSE(w, ": connected\n\n") {
			return
		}
		for {
			select {
			case <-h.closed:
				return
			case <-ticker.C:
				if !writeSSE(w, ": ping\n\n") {
					return
				}
			case event := <-queue:
				msg, ok := h.messageFor(context.Background(), userID, event)
				if !ok {
					h.logger.Info("change stream closed for revoked user", zap.String("user_id", userID))
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					h.logger.Error("encode change event", zap.Error(err))
					continue
				}
				if !writeSSE(w, fmt.Sprintf("event: change\ndata: %s\n\n", data)) {
					return
				}
			}
		}
	})
	return nil
}

// messageFor shapes event with the subscriber's stored role. It reports
// false once the user is gone or deactivated.
func (h *ChangesHandler) messageFor(ctx context.Context, userID string, event events.ChangeEvent) (ChangeMessage, bool) {
	user := h.store.UserByID(ctx, userID)
	if user == nil || !user.IsActive {
		return ChangeMessage{}, false
	}
	return NewChangeMessage(event, user.Role), true
}

// writeSSE reports false once the client is gone.
func writeSSE(w *bufio.Writer, frame string) bool {
	if _, err := w.WriteString(frame); err != nil {
		return false
	}
	return w.Flush() == nil
}
