// ABOUTME: Fake banking backend for local development and E2E testing
// ABOUTME: Usage: fake-bank-backend [-addr localhost:8000] [-admin admin:admin] [-user alice:alice]

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/2389/bank-assistant/internal/fakebackend"
	"github.com/2389/bank-assistant/internal/logging"
)

// accountList collects repeated user:password flags.
type accountList []string

func (l *accountList) String() string { return strings.Join(*l, ",") }

func (l *accountList) Set(v string) error {
	if !strings.Contains(v, ":") {
		return fmt.Errorf("expected user:password, got %q", v)
	}
	*l = append(*l, v)
	return nil
}

func main() {
	addr := flag.String("addr", "localhost:8000", "Listen address")
	verbose := flag.Bool("v", false, "Log every request")
	var admins, users accountList
	flag.Var(&admins, "admin", "Staff account as user:password (repeatable)")
	flag.Var(&users, "user", "Customer account as user:password (repeatable)")
	flag.Parse()

	if len(admins) == 0 && len(users) == 0 {
		admins = accountList{"admin:admin"}
		users = accountList{"alice:alice"}
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, "text", level)

	if err := run(*addr, admins, users, logger); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, admins, users accountList, logger *slog.Logger) error {
	backend := fakebackend.New(logger)

	for _, group := range []struct {
		accounts accountList
		staff    bool
	}{{admins, true}, {users, false}} {
		for _, acct := range group.accounts {
			name, password, _ := strings.Cut(acct, ":")
			id, err := backend.AddUser(name, password, group.staff)
			if err != nil {
				return fmt.Errorf("adding %s: %w", name, err)
			}
			logger.Info("account ready", "id", id, "username", name, "staff", group.staff)
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "base_url", "http://"+addr+"/api/")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logger.Info("stopped")
	return nil
}
