package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-kit/ticket-tracker/internal/events"
)

func setupSQLiteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "tms.db"))
	t.Setenv("AUTH_BCRYPT_COST", "4")
	t.Setenv("RELAY_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestCLIAgainstSQLite(t *testing.T) {
	setupSQLiteEnv(t)

	out, err := runCLI(t, "seed")
	if err != nil || !strings.Contains(out, "seeded 4 users, 2 tickets, 2 emails") {
		t.Fatalf("seed: %q, %v", out, err)
	}
	if out, _ := runCLI(t, "seed"); !strings.Contains(out, "nothing seeded") {
		t.Errorf("second seed: %q", out)
	}

	if _, err := runCLI(t, "whoami"); err == nil {
		t.Error("whoami before login succeeded")
	}
	if _, err := runCLI(t, "login", "--email", "agent1@tms.com", "--password", "nope"); err == nil || err.Error() != "Invalid password" {
		t.Errorf("bad login: %v", err)
	}
	if out, err := runCLI(t, "login", "--email", "agent1@tms.com", "--password", "agent123"); err != nil || !strings.Contains(out, "agent1 (agent)") {
		t.Fatalf("login: %q, %v", out, err)
	}
	if out, err := runCLI(t, "whoami"); err != nil || !strings.Contains(out, "agent1@tms.com") {
		t.Errorf("whoami: %q, %v", out, err)
	}

	out, err = runCLI(t, "tickets")
	if err != nil {
		t.Fatalf("tickets: %v", err)
	}
	if !strings.Contains(out, "TCKT-20250827-0002") || strings.Contains(out, "TCKT-20250827-0001") {
		t.Errorf("agent tickets:\n%s", out)
	}

	out, _ = runCLI(t, "tickets", "--user", "user_customer1", "--status", "pending")
	if !strings.Contains(out, "TCKT-20250827-0001") || strings.Contains(out, "TCKT-20250827-0002") {
		t.Errorf("customer pending tickets:\n%s", out)
	}

	if out, _ := runCLI(t, "search", "dark", "mode"); !strings.Contains(out, "Feature Request") {
		t.Errorf("search:\n%s", out)
	}
	if out, _ := runCLI(t, "stats"); !strings.Contains(out, "total 2  pending 1  active 1  resolved 0") {
		t.Errorf("stats: %q", out)
	}

	out, err = runCLI(t, "emails", "--user", "user_customer1", "--read", "email_001")
	if err != nil {
		t.Fatalf("emails: %v", err)
	}
	if !strings.Contains(out, "Ticket Received: TCKT-20250827-0001") || !strings.Contains(out, "1 unread") {
		t.Errorf("emails:\n%s", out)
	}

	if _, err := runCLI(t, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := runCLI(t, "tickets"); err == nil {
		t.Error("tickets after logout used a stale session")
	}
}

func TestCLIUsageAndErrors(t *testing.T) {
	setupSQLiteEnv(t)
	out, err := runCLI(t)
	if err != nil || !strings.Contains(out, "Usage: tmsctl") {
		t.Errorf("usage: %q, %v", out, err)
	}
	if _, err := runCLI(t, "frobnicate"); err == nil {
		t.Error("unknown command accepted")
	}
	if _, err := runCLI(t, "watch"); err == nil {
		t.Error("watch without relay accepted")
	}
	if _, err := runCLI(t, "tickets", "--user", "user_admin", "--role", "boss"); err == nil {
		t.Error("invalid role accepted")
	}
}

func TestDescribeChange(t *testing.T) {
	got := describeChange(events.ChangeEvent{Key: "tms_tickets", NewValue: []byte(`[{},{}]`)})
	if got != "tms_tickets changed: 2 records (from local)" {
		t.Errorf("describeChange = %q", got)
	}
	got = describeChange(events.ChangeEvent{Key: "tms_emails", NewValue: []byte(`nope`), Origin: "abc"})
	if got != "tms_emails changed: ? records (from abc)" {
		t.Errorf("describeChange = %q", got)
	}
}
