package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pmsync/internal/config"
	"pmsync/internal/gateway"
	"pmsync/internal/logger"
	"pmsync/internal/session"
	"pmsync/internal/store"
)

const usage = `usage: pmsync <command> [flags]

commands:
  summary          list projects with their tasks and pending writes
  add-project      create a project
  add-task         create a task in a project
  toggle-task      advance a task to its next status
  add-member       invite a member to a project
  delete-project   delete a project and everything in it
  login            sign in with -email/-password or -line
  logout           sign out
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Load(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "pmsync:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("missing command")
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	backend, closeBackend, err := sessionBackend(cfg)
	if err != nil {
		return err
	}
	defer closeBackend()
	sessions := session.NewManager(backend, log)

	a := &app{cfg: cfg, log: log, sessions: sessions, out: stdout, errOut: stderr}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		if err := sessions.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "signed out")
		return nil
	}

	handler, ok := storeCommands[cmd]
	if !ok {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	return a.withStore(ctx, func(s *store.Store) error {
		return handler(a, s, rest)
	})
}

func sessionBackend(cfg *config.Config) (session.Backend, func(), error) {
	if cfg.RedisURL != "" {
		b, err := session.NewRedisBackend(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	}
	return session.NewFileBackend(cfg.SessionFile), func() {}, nil
}

type app struct {
	cfg      *config.Config
	log      *zap.Logger
	sessions *session.Manager
	out      io.Writer
	errOut   io.Writer
}

// withStore loads the store, runs fn and then waits until every write is
// either confirmed or abandoned.
func (a *app) withStore(ctx context.Context, fn func(*store.Store) error) error {
	gw := gateway.New(gateway.Config{
		BaseURL:   a.cfg.EndpointURL,
		APIKey:    a.cfg.APIKey,
		UseAPIKey: a.cfg.UseAPIKey,
		Timeout:   a.cfg.RequestTimeout,
	}, a.log)

	s, err := store.New(gw, store.Options{
		Logger:      a.log,
		Session:     a.sessions,
		MaxAttempts: a.cfg.MaxAttempts,
		OnWarning: func(w store.Warning) {
			fmt.Fprintln(a.errOut, "warning:", w.Error())
		},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Load(ctx); err != nil {
		return err
	}
	if !gw.Configured() {
		fmt.Fprintln(a.errOut, "warning: PMSYNC_ENDPOINT_URL is not set, changes are kept in memory only")
	}

	if err := fn(s); err != nil {
		return err
	}
	return settle(ctx, s, a.cfg.MaxAttempts, a.errOut)
}

// settle drains confirmations and retries failed writes until nothing is
// pending or the writes run out of attempts. Writes still unconfirmed are
// listed on errOut since they do not outlive the process.
func settle(ctx context.Context, s *store.Store, maxAttempts int, errOut io.Writer) error {
	for i := 0; i <= maxAttempts; i++ {
		if err := s.Drain(ctx); err != nil {
			return err
		}
		if s.Retry() == 0 {
			break
		}
	}
	pending := s.Pending()
	if len(pending) == 0 {
		return nil
	}
	fmt.Fprintln(errOut, "not confirmed, discarded on exit:")
	for _, pw := range pending {
		fmt.Fprintf(errOut, "  %s %s/%s attempts=%d\n", pw.Op, pw.Type, pw.ID, pw.Attempts)
	}
	return fmt.Errorf("%d write(s) still unconfirmed", len(pending))
}
