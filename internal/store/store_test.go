package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
)

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *persistence.MemoryKV) {
	t.Helper()
	kv := persistence.NewMemoryKV()
	return New(kv, nil, zap.NewNop(), Options{KeyPrefix: "tms_"}), kv
}

func sameJSON(t *testing.T, got, want any) {
	t.Helper()
	g, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal got: %v", err)
	}
	w, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal want: %v", err)
	}
	if string(g) != string(w) {
		t.Errorf("got  %s\nwant %s", g, w)
	}
}

func sampleTicket(id, createdBy, assignedTo string) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		Subject:     "Login Issue",
		Description: "cannot log in",
		Priority:    domain.TicketPriorityHigh,
		Status:      domain.TicketStatusPending,
		CreatedBy:   createdBy,
		AssignedTo:  assignedTo,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
}

func TestEmptyStoreReadsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if users := s.AllUsers(ctx); users == nil || len(users) != 0 {
		t.Errorf("AllUsers = %#v, want empty non-nil slice", users)
	}
	if tickets := s.AllTickets(ctx); len(tickets) != 0 {
		t.Errorf("AllTickets = %v", tickets)
	}
	if emails := s.AllEmails(ctx); len(emails) != 0 {
		t.Errorf("AllEmails = %v", emails)
	}
	if u := s.UserByID(ctx, "user_admin"); u != nil {
		t.Errorf("UserByID = %+v, want nil", u)
	}
	if u := s.CurrentUser(ctx); u != nil {
		t.Errorf("CurrentUser = %+v, want nil", u)
	}
}

func TestSaveThenGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user := domain.User{ID: "user_1", Email: "a@b.co", Username: "ann", PasswordHash: "h", Role: domain.RoleCustomer, CreatedAt: testNow, IsActive: true}
	s.SaveUser(ctx, user)
	got := s.UserByID(ctx, "user_1")
	if got == nil {
		t.Fatal("UserByID returned nil after save")
	}
	sameJSON(t, *got, user)

	ticket := sampleTicket("TCKT-20261017-0001", "user_1", "")
	s.SaveTicket(ctx, ticket)
	gotTicket := s.TicketByID(ctx, ticket.ID)
	if gotTicket == nil {
		t.Fatal("TicketByID returned nil after save")
	}
	sameJSON(t, *gotTicket, ticket)

	email := domain.Email{ID: "email_1", ToUserID: "user_1", FromUserID: "user_admin", Subject: "hi", Body: "b", Timestamp: testNow}
	s.SaveEmail(ctx, email)
	gotEmail := s.EmailByID(ctx, "email_1")
	if gotEmail == nil {
		t.Fatal("EmailByID returned nil after save")
	}
	sameJSON(t, *gotEmail, email)
}

func TestSaveReplacesInPlace(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.SaveTicket(ctx, sampleTicket("T1", "c", ""))
	s.SaveTicket(ctx, sampleTicket("T2", "c", ""))
	s.SaveTicket(ctx, sampleTicket("T3", "c", ""))

	updated := sampleTicket("T2", "c", "user_agent1")
	updated.Status = domain.TicketStatusAssigned
	s.SaveTicket(ctx, updated)

	tickets := s.AllTickets(ctx)
	if len(tickets) != 3 {
		t.Fatalf("len = %d, want 3", len(tickets))
	}
	if tickets[1].ID != "T2" || tickets[1].Status != domain.TicketStatusAssigned {
		t.Errorf("tickets[1] = %+v, want updated T2 in position", tickets[1])
	}
}

func TestUserByEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.SaveUser(ctx, domain.User{ID: "u1", Email: "one@x.io"})
	s.SaveUser(ctx, domain.User{ID: "u2", Email: "two@x.io"})

	if u := s.UserByEmail(ctx, "two@x.io"); u == nil || u.ID != "u2" {
		t.Errorf("UserByEmail = %+v", u)
	}
	if u := s.UserByEmail(ctx, "TWO@x.io"); u != nil {
		t.Errorf("UserByEmail matched case-insensitively: %+v", u)
	}
}

func TestDeleteUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.SaveUser(ctx, domain.User{ID: "u1"})
	s.SaveUser(ctx, domain.User{ID: "u2"})
	s.SaveUser(ctx, domain.User{ID: "u3"})

	s.DeleteUser(ctx, "u2")
	s.DeleteUser(ctx, "missing")

	users := s.AllUsers(ctx)
	if len(users) != 2 || users[0].ID != "u1" || users[1].ID != "u3" {
		t.Errorf("users after delete = %+v", users)
	}
}

func TestTicketsForUserScopesByRole(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.SaveTicket(ctx, sampleTicket("T1", "cust_a", ""))
	s.SaveTicket(ctx, sampleTicket("T2", "cust_b", "agent_x"))
	s.SaveTicket(ctx, sampleTicket("T3", "cust_a", "agent_x"))
	s.SaveTicket(ctx, sampleTicket("T4", "cust_a", "agent_y"))

	ids := func(ts []domain.Ticket) []string {
		out := []string{}
		for _, tk := range ts {
			out = append(out, tk.ID)
		}
		return out
	}

	tests := []struct {
		user string
		role domain.Role
		want []string
	}{
		{"cust_a", domain.RoleCustomer, []string{"T1", "T3", "T4"}},
		{"cust_b", domain.RoleCustomer, []string{"T2"}},
		{"agent_x", domain.RoleAgent, []string{"T2", "T3"}},
		{"agent_z", domain.RoleAgent, []string{}},
		{"anyone", domain.RoleAdmin, []string{"T1", "T2", "T3", "T4"}},
		{"cust_a", domain.Role("guest"), []string{}},
	}
	for _, tt := range tests {
		got := ids(s.TicketsForUser(ctx, tt.user, tt.role))
		sameJSON(t, got, tt.want)
	}
}

func TestTicketAndEmailWritesNotify(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var got []events.ChangeEvent
	unsubscribe := s.Subscribe(func(e events.ChangeEvent) { got = append(got, e) })
	defer unsubscribe()

	s.SaveUser(ctx, domain.User{ID: "u1"})
	s.SaveTicket(ctx, sampleTicket("T1", "u1", ""))
	s.SaveEmail(ctx, domain.Email{ID: "e1", ToUserID: "u1"})
	s.SetCurrentUser(ctx, "u1")

	if len(got) != 2 {
		t.Fatalf("received %d change events, want 2 (tickets, emails)", len(got))
	}
	if got[0].Key != "tms_tickets" || got[1].Key != "tms_emails" {
		t.Errorf("keys = %q, %q", got[0].Key, got[1].Key)
	}
	var tickets []domain.Ticket
	if err := json.Unmarshal(got[0].NewValue, &tickets); err != nil {
		t.Fatalf("NewValue is not a ticket collection: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != "T1" {
		t.Errorf("NewValue tickets = %+v", tickets)
	}
}

func TestMarkEmailReadIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.SaveEmail(ctx, domain.Email{ID: "e1", ToUserID: "u1"})
	s.SaveEmail(ctx, domain.Email{ID: "e2", ToUserID: "u1"})

	var notifications int
	s.Subscribe(func(events.ChangeEvent) { notifications++ })

	if !s.MarkEmailRead(ctx, "e1") {
		t.Fatal("MarkEmailRead(e1) = false")
	}
	if !s.MarkEmailRead(ctx, "e1") {
		t.Fatal("second MarkEmailRead(e1) = false")
	}
	if s.MarkEmailRead(ctx, "nope") {
		t.Error("MarkEmailRead(missing) = true")
	}

	emails := s.AllEmails(ctx)
	if len(emails) != 2 {
		t.Fatalf("len(emails) = %d, want 2", len(emails))
	}
	if !emails[0].IsRead || emails[1].IsRead {
		t.Errorf("read flags = %v, %v", emails[0].IsRead, emails[1].IsRead)
	}
	if notifications != 1 {
		t.Errorf("notifications = %d, want 1", notifications)
	}
}

func TestEmailsForUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.SaveEmail(ctx, domain.Email{ID: "e1", ToUserID: "u1"})
	s.SaveEmail(ctx, domain.Email{ID: "e2", ToUserID: "u2"})
	s.SaveEmail(ctx, domain.Email{ID: "e3", ToUserID: "u1"})

	got := s.EmailsForUser(ctx, "u1")
	if len(got) != 2 || got[0].ID != "e1" || got[1].ID != "e3" {
		t.Errorf("EmailsForUser = %+v", got)
	}
}

func TestSessionPointer(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	s.SaveUser(ctx, domain.User{ID: "user_admin", Username: "admin"})

	s.SetCurrentUser(ctx, "user_admin")
	raw, _, _ := kv.Get(ctx, "tms_currentUserId")
	if string(raw) != `"user_admin"` {
		t.Errorf("stored session = %s", raw)
	}
	if u := s.CurrentUser(ctx); u == nil || u.ID != "user_admin" {
		t.Errorf("CurrentUser = %+v", u)
	}

	s.SetCurrentUser(ctx, "ghost")
	if u := s.CurrentUser(ctx); u != nil {
		t.Errorf("dangling session resolved to %+v", u)
	}

	s.ClearCurrentUser(ctx)
	if _, ok := s.CurrentUserID(ctx); ok {
		t.Error("session still set after ClearCurrentUser")
	}
}

func TestCorruptValueReadsEmpty(t *testing.T) {
	metrics := observability.NewMetrics()
	kv := persistence.NewMemoryKV()
	s := New(kv, nil, zap.NewNop(), Options{KeyPrefix: "tms_", Metrics: metrics})
	ctx := context.Background()

	_ = kv.Set(ctx, "tms_tickets", []byte(`{not json`))
	_ = kv.Set(ctx, "tms_currentUserId", []byte(`[1,2]`))

	if got := s.AllTickets(ctx); len(got) != 0 {
		t.Errorf("AllTickets on corrupt value = %+v", got)
	}
	if _, ok := s.CurrentUserID(ctx); ok {
		t.Error("corrupt session resolved")
	}
	if n := metrics.Snapshot().StorageFailures["tms_tickets|read"]; n != 1 {
		t.Errorf("read failures = %d, want 1", n)
	}

	// A write after a corrupt read replaces the value with a clean collection.
	s.SaveTicket(ctx, sampleTicket("T1", "c", ""))
	if got := s.AllTickets(ctx); len(got) != 1 {
		t.Errorf("AllTickets after recovery write = %+v", got)
	}
}

type failingKV struct {
	persistence.KV
	failReads, failWrites bool
}

var errMedium = errors.New("quota exceeded")

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failReads {
		return nil, false, errMedium
	}
	return f.KV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failWrites {
		return errMedium
	}
	return f.KV.Set(ctx, key, value)
}

func (f *failingKV) Remove(ctx context.Context, key string) error {
	if f.failWrites {
		return errMedium
	}
	return f.KV.Remove(ctx, key)
}

func TestMediumFailuresDegrade(t *testing.T) {
	kv := &failingKV{KV: persistence.NewMemoryKV()}
	metrics := observability.NewMetrics()
	s := New(kv, nil, zap.NewNop(), Options{KeyPrefix: "tms_", Metrics: metrics})
	ctx := context.Background()

	s.SaveTicket(ctx, sampleTicket("T1", "c", ""))

	var notified int
	s.Subscribe(func(events.ChangeEvent) { notified++ })

	kv.failWrites = true
	s.SaveTicket(ctx, sampleTicket("T2", "c", ""))
	s.SetCurrentUser(ctx, "u1")
	s.ClearCurrentUser(ctx)
	kv.failWrites = false

	if got := s.AllTickets(ctx); len(got) != 1 {
		t.Errorf("dropped write persisted: %+v", got)
	}
	if notified != 0 {
		t.Errorf("dropped write notified %d times", notified)
	}

	kv.failReads = true
	if got := s.AllTickets(ctx); len(got) != 0 {
		t.Errorf("failed read returned %+v", got)
	}
	if u := s.CurrentUser(ctx); u != nil {
		t.Errorf("failed read returned user %+v", u)
	}

	snap := metrics.Snapshot()
	if snap.StorageFailures["tms_tickets|write"] != 1 {
		t.Errorf("ticket write failures = %d", snap.StorageFailures["tms_tickets|write"])
	}
	if snap.StorageFailures["tms_currentUserId|write"] != 2 {
		t.Errorf("session write failures = %d", snap.StorageFailures["tms_currentUserId|write"])
	}
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	data, err := Fixtures(testNow, func(p string) (string, error) { return "hash:" + p, nil })
	if err != nil {
		t.Fatalf("Fixtures: %v", err)
	}
	if !s.Seed(ctx, data) {
		t.Fatal("Seed on empty store returned false")
	}
	if s.Seed(ctx, data) {
		t.Error("Seed on populated store returned true")
	}

	if n := len(s.AllUsers(ctx)); n != 4 {
		t.Errorf("users = %d, want 4", n)
	}
	if n := len(s.AllTickets(ctx)); n != 2 {
		t.Errorf("tickets = %d, want 2", n)
	}
	if n := len(s.AllEmails(ctx)); n != 2 {
		t.Errorf("emails = %d, want 2", n)
	}
	admin := s.UserByEmail(ctx, "admin@tms.com")
	if admin == nil || admin.PasswordHash != "hash:admin123" || admin.Role != domain.RoleAdmin {
		t.Errorf("admin fixture = %+v", admin)
	}
}

func TestFixturesPropagatesHashError(t *testing.T) {
	_, err := Fixtures(testNow, func(string) (string, error) { return "", errors.New("no entropy") })
	if err == nil {
		t.Fatal("expected hash error")
	}
}

func TestWithTicketLockDefersEventsUntilRelease(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var delivered int
	s.Subscribe(func(events.ChangeEvent) { delivered++ })

	s.WithTicketLock(func() {
		s.SaveTicket(ctx, sampleTicket("TCKT-20261017-0001", "user_c", ""))
		if delivered != 0 {
			t.Errorf("delivered %d events while the ticket lock was held", delivered)
		}
	})
	if delivered != 1 {
		t.Errorf("delivered = %d after release, want 1", delivered)
	}
}

func TestSubscriberMayWriteToStore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var keys []string
	s.Subscribe(func(event events.ChangeEvent) {
		keys = append(keys, event.Key)
		if event.Key == s.Keys().Tickets {
			s.SaveEmail(ctx, domain.Email{ID: "email_audit", ToUserID: "user_admin", Subject: "ticket changed", Timestamp: testNow})
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.SaveTicket(ctx, sampleTicket("TCKT-20261017-0001", "user_c", ""))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SaveTicket blocked while a subscriber wrote to the store")
	}

	if e := s.EmailByID(ctx, "email_audit"); e == nil {
		t.Error("email written by the subscriber is missing")
	}
	want := []string{"tms_tickets", "tms_emails"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("event order = %v, want %v", keys, want)
	}
}

func TestSlowSubscriberDoesNotBlockWrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	s.Subscribe(func(event events.ChangeEvent) {
		if event.Key == s.Keys().Tickets {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
		}
	})

	go s.SaveTicket(ctx, sampleTicket("TCKT-20261017-0001", "user_c", ""))
	<-entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.SaveEmail(ctx, domain.Email{ID: "email_1", ToUserID: "user_c", Timestamp: testNow})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SaveEmail waited on a blocked change subscriber")
	}
	close(release)

	if e := s.EmailByID(ctx, "email_1"); e == nil {
		t.Error("email_1 not stored")
	}
}
