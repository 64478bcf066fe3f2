package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
	"github.com/spec-kit/ticket-tracker/internal/relay"
	"github.com/spec-kit/ticket-tracker/internal/service"
	"github.com/spec-kit/ticket-tracker/internal/store"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tmsctl "+name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func runSeed(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := store.Fixtures(e.clock.Now().UTC(), func(p string) (string, error) {
		return auth.HashPassword(p, e.cfg.Auth.BcryptCost)
	})
	if err != nil {
		return err
	}
	if !e.store.Seed(ctx, data) {
		fmt.Fprintln(e.out, "store already has users; nothing seeded")
		return nil
	}
	fmt.Fprintf(e.out, "seeded %d users, %d tickets, %d emails\n", len(data.Users), len(data.Tickets), len(data.Emails))
	return nil
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := e.auth.Login(ctx, service.LoginInput{Email: *email, Password: *password})
	if err != nil {
		return errors.New(apperrors.ToDomainError(err).Message)
	}
	fmt.Fprintf(e.out, "logged in as %s (%s)\n", user.Username, user.Role)
	return nil
}

func runLogout(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet("logout").Parse(args); err != nil {
		return err
	}
	e.auth.Logout(ctx)
	fmt.Fprintln(e.out, "logged out")
	return nil
}

func runWhoami(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet("whoami").Parse(args); err != nil {
		return err
	}
	user := e.auth.CurrentUser(ctx)
	if user == nil {
		return errors.New("not logged in")
	}
	fmt.Fprintf(e.out, "%s <%s> %s\n", user.Username, user.Email, user.Role)
	return nil
}

// resolveUser picks the user a listing is for: --user if given, else the
// session user.
func resolveUser(ctx context.Context, e *env, userID string) (*domain.User, error) {
	if userID == "" {
		user := e.auth.CurrentUser(ctx)
		if user == nil {
			return nil, errors.New("not logged in; pass --user or run tmsctl login")
		}
		return user, nil
	}
	user := e.users.UserByID(ctx, userID)
	if user == nil {
		return nil, fmt.Errorf("user %q not found", userID)
	}
	return user, nil
}

func runTickets(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("tickets")
	userID := fs.String("user", "", "user id (default: session user)")
	role := fs.String("role", "", "scope as this role instead of the user's stored role")
	status := fs.String("status", "", "only tickets in this status")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := resolveUser(ctx, e, *userID)
	if err != nil {
		return err
	}
	var tickets []domain.Ticket
	if *role != "" {
		r, ok := domain.ParseRole(*role)
		if !ok {
			return fmt.Errorf("invalid role %q", *role)
		}
		tickets = e.tickets.TicketsForUser(ctx, user.ID, r)
	} else {
		tickets = e.tickets.TicketsForPrincipal(ctx, user.ID)
	}
	if *status != "" {
		st, ok := domain.ParseTicketStatus(*status)
		if !ok {
			return fmt.Errorf("invalid status %q", *status)
		}
		filtered := tickets[:0]
		for _, t := range tickets {
			if t.Status == st {
				filtered = append(filtered, t)
			}
		}
		tickets = filtered
	}
	return printTickets(ctx, e, tickets, *asJSON)
}

func runSearch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("search")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	return printTickets(ctx, e, e.tickets.SearchTickets(ctx, query), *asJSON)
}

func runStats(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet("stats").Parse(args); err != nil {
		return err
	}
	stats := service.Stats(e.tickets.AllTickets(ctx))
	fmt.Fprintf(e.out, "total %d  pending %d  active %d  resolved %d\n", stats.Total, stats.Pending, stats.Active, stats.Resolved)
	return nil
}

func runEmails(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("emails")
	userID := fs.String("user", "", "user id (default: session user)")
	markRead := fs.String("read", "", "mark this email id as read first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := resolveUser(ctx, e, *userID)
	if err != nil {
		return err
	}
	if *markRead != "" {
		if email := e.emails.EmailByID(ctx, *markRead); email == nil || email.ToUserID != user.ID {
			return fmt.Errorf("email %q not in %s's mailbox", *markRead, user.Username)
		}
		e.emails.MarkAsRead(ctx, *markRead)
	}

	name := e.users.NameResolver(ctx)
	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tFROM\tREAD\tSUBJECT")
	for _, m := range e.emails.EmailsForUser(ctx, user.ID) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", m.ID, m.Timestamp.Format("2006-01-02 15:04"), name(m.FromUserID), m.IsRead, m.Subject)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%d unread\n", e.emails.UnreadCount(ctx, user.ID))
	return nil
}

func runWatch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("watch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !e.cfg.Relay.Enabled {
		return errors.New("watch needs RELAY_ENABLED=true to hear other processes")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := persistence.NewRedis(e.cfg.Redis, e.logger)
	defer rdb.Close()
	r := relay.New(e.store.Feed(), relay.NewRedisTransport(rdb.Client), e.cfg.Relay.Channel, e.logger)

	unsubscribe := e.store.Subscribe(func(event events.ChangeEvent) {
		fmt.Fprintln(e.out, describeChange(event))
	})
	defer unsubscribe()

	if err := r.Start(ctx); err != nil {
		return err
	}
	defer r.Stop()
	fmt.Fprintf(e.out, "watching %s (ctrl-c to stop)\n", e.cfg.Relay.Channel)
	<-ctx.Done()
	return nil
}

// describeChange summarizes a change without dumping the collection.
func describeChange(event events.ChangeEvent) string {
	var items []json.RawMessage
	count := "?"
	if err := json.Unmarshal(event.NewValue, &items); err == nil {
		count = fmt.Sprint(len(items))
	}
	origin := event.Origin
	if origin == "" {
		origin = "local"
	}
	return fmt.Sprintf("%s changed: %s records (from %s)", event.Key, count, origin)
}

func printTickets(ctx context.Context, e *env, tickets []domain.Ticket, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(tickets)
	}
	name := e.users.NameResolver(ctx)
	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCUSTOMER\tAGENT\tSUBJECT")
	for _, t := range tickets {
		agent := "-"
		if t.IsAssigned() {
			agent = name(t.AssignedTo)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, name(t.CreatedBy), agent, t.Subject)
	}
	return w.Flush()
}
