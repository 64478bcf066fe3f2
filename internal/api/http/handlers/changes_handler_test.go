package handlers

import (
	"bufio"
	"bytes"
	"context"
	"testing"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
	"github.com/spec-kit/ticket-tracker/internal/store"
)

func TestNewChangeMessageByRole(t *testing.T) {
	event := events.ChangeEvent{Key: "tms_tickets", NewValue: []byte(`[{"id":"TCKT-20261017-0001"}]`), Origin: "proc-b"}

	tests := []struct {
		role      domain.Role
		wantValue bool
	}{
		{domain.RoleAdmin, true},
		{domain.RoleAgent, false},
		{domain.RoleCustomer, false},
	}
	for _, tt := range tests {
		msg := NewChangeMessage(event, tt.role)
		if msg.Key != event.Key || msg.Origin != event.Origin {
			t.Errorf("%s: key/origin = %q/%q", tt.role, msg.Key, msg.Origin)
		}
		if got := len(msg.NewValue) > 0; got != tt.wantValue {
			t.Errorf("%s: newValue present = %v, want %v", tt.role, got, tt.wantValue)
		}
	}
}

func TestNewChangeMessageDropsInvalidJSON(t *testing.T) {
	msg := NewChangeMessage(events.ChangeEvent{Key: "tms_emails", NewValue: []byte("{broken")}, domain.RoleAdmin)
	if msg.NewValue != nil {
		t.Errorf("newValue = %s, want nil", msg.NewValue)
	}
}

func TestWriteSSEFlushes(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if !writeSSE(w, "event: change\ndata: {}\n\n") {
		t.Fatal("writeSSE reported a closed client")
	}
	if buf.String() != "event: change\ndata: {}\n\n" {
		t.Errorf("frame = %q", buf.String())
	}
}

func TestMessageForFollowsStoredUser(t *testing.T) {
	ctx := context.Background()
	st := store.New(persistence.NewMemoryKV(), nil, nil, store.Options{KeyPrefix: "tms_"})
	admin := domain.User{ID: "user_admin", Email: "admin@tms.com", Username: "admin", Role: domain.RoleAdmin, IsActive: true}
	st.SaveUser(ctx, admin)
	h := NewChangesHandler(st, nil)
	event := events.ChangeEvent{Key: "tms_emails", NewValue: []byte(`[{"id":"email_1"}]`)}

	msg, ok := h.messageFor(ctx, admin.ID, event)
	if !ok || msg.NewValue == nil {
		t.Fatalf("admin message = %+v, %v; want newValue", msg, ok)
	}

	demoted := admin
	demoted.Role = domain.RoleAgent
	st.SaveUser(ctx, demoted)
	msg, ok = h.messageFor(ctx, admin.ID, event)
	if !ok {
		t.Fatal("demoted user lost the stream")
	}
	if msg.NewValue != nil {
		t.Errorf("demoted user still receives newValue: %s", msg.NewValue)
	}

	deactivated := demoted
	deactivated.IsActive = false
	st.SaveUser(ctx, deactivated)
	if _, ok := h.messageFor(ctx, admin.ID, event); ok {
		t.Error("deactivated user kept the stream")
	}

	st.DeleteUser(ctx, admin.ID)
	if _, ok := h.messageFor(ctx, admin.ID, event); ok {
		t.Error("deleted user kept the stream")
	}
}
