// tmsctl works on the same data store as the API server from the command
// line: seeding, logging in, listing and searching tickets, reading the
// mailbox, and watching change events relayed from other processes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/clock"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
	"github.com/spec-kit/ticket-tracker/internal/service"
	"github.com/spec-kit/ticket-tracker/internal/store"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is one opened store plus the services over it.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	kv      persistence.KV
	store   *store.Store
	clock   clock.Clock
	auth    *service.AuthService
	tickets *service.TicketService
	emails  *service.EmailService
	users   *service.UserService
	out     io.Writer
}

func (e *env) Close() {
	_ = e.kv.Close()
	_ = e.logger.Sync()
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"seed":    {"write demo data into an empty store", runSeed},
	"login":   {"log in and set the session pointer", runLogin},
	"logout":  {"clear the session pointer", runLogout},
	"whoami":  {"show the logged-in user", runWhoami},
	"tickets": {"list tickets scoped by role", runTickets},
	"search":  {"search tickets by id, subject or description", runSearch},
	"stats":   {"count tickets by status", runStats},
	"emails":  {"show a user's mailbox", runEmails},
	"watch":   {"print change events until interrupted", runWatch},
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(out)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	e, err := openEnv(ctx, out)
	if err != nil {
		return err
	}
	defer e.Close()

	err = cmd.run(ctx, e, args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func printUsage(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Usage: tmsctl <command> [flags]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-8s %s\n", name, commands[name].summary)
	}
	b.WriteString("\nStorage is chosen by STORAGE_DRIVER and friends, as for the API server.\n")
	fmt.Fprint(out, b.String())
}

func openEnv(ctx context.Context, out io.Writer) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// The CLI only reports problems; routine info lines would drown the output.
	logCfg := cfg.Logger
	if strings.EqualFold(logCfg.Level, "info") || logCfg.Level == "" {
		logCfg.Level = "warn"
	}
	logger, err := observability.NewLogger(logCfg, "tmsctl")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	kv, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}

	clk := clock.Real()
	st := store.New(kv, events.NewChangeFeed(), logger, store.Options{KeyPrefix: cfg.Storage.KeyPrefix})
	dispatcher := events.NewInMemoryDispatcher(logger)
	emails := service.NewEmailService(st, clk)
	service.NewNotificationService(dispatcher, emails, logger, cfg.Notification).RegisterHandlers()

	return &env{
		cfg:    cfg,
		logger: logger,
		kv:     kv,
		store:  st,
		clock:  clk,
		auth:   service.NewAuthService(cfg.Auth, st, clk, logger),
		tickets: service.NewTicketService(service.TicketDependencies{
			Store:      st,
			Dispatcher: dispatcher,
			Clock:      clk,
			Logger:     logger,
			Config:     cfg.Tickets,
		}),
		emails: emails,
		users:  service.NewUserService(st, logger),
		out:    out,
	}, nil
}
