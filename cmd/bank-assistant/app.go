// ABOUTME: Wires config, logging, storage, the protocol client and the orchestrator
// ABOUTME: Implements the one-shot subcommands

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/bank-assistant/internal/api"
	"github.com/2389/bank-assistant/internal/assistant"
	"github.com/2389/bank-assistant/internal/config"
	"github.com/2389/bank-assistant/internal/localstore"
	"github.com/2389/bank-assistant/internal/logging"
	"github.com/2389/bank-assistant/internal/scope"
	"github.com/2389/bank-assistant/internal/session"
)

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	storage localstore.Storage
	client  *api.Client
	orch    *assistant.Orchestrator

	in      *bufio.Reader
	stdin   io.Reader
	out     io.Writer
	closers []io.Closer
}

func newApp(ctx context.Context, configPath string, in io.Reader, out io.Writer) (*app, error) {
	cfg, path, err := config.LoadDefault(configPath)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}

	return assemble(ctx, cfg, logger, in, out, logCloser)
}

// assemble builds the app from an already loaded config.
func assemble(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer, closers ...io.Closer) (*app, error) {
	storage, err := localstore.Open(localstore.Options{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("opening local storage: %w", err)
	}

	client, err := api.NewClient(cfg.Backend.BaseURL,
		api.WithTimeout(cfg.Backend.Timeout),
		api.WithCSRF(cfg.Backend.CSRFCookie, cfg.Backend.CSRFHeader),
		api.WithCookieStorage(storage),
		api.WithLogger(logger),
	)
	if err != nil {
		storage.Close()
		return nil, err
	}
	if err := client.RestoreCookies(ctx); err != nil {
		logger.Warn("could not restore backend cookies", "error", err)
	}

	orch := assistant.New(client, session.NewStore(storage, logger), logger,
		assistant.WithDirectoryTTL(cfg.Directory.CacheTTL))
	orch.Restore(ctx)

	return &app{
		cfg:     cfg,
		logger:  logger,
		storage: storage,
		client:  client,
		orch:    orch,
		in:      bufio.NewReader(in),
		stdin:   in,
		out:     out,
		closers: append([]io.Closer{storage}, closers...),
	}, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		c.Close()
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "chat":
		return a.cmdChat(ctx)
	case "login":
		return a.cmdLogin(ctx, args)
	case "signup", "register":
		return a.cmdSignup(ctx, args)
	case "logout":
		return a.cmdLogout(ctx)
	case "whoami":
		return a.cmdWhoami()
	case "ask":
		return a.cmdAsk(ctx, args)
	case "upload":
		return a.cmdUpload(ctx, args)
	case "users":
		return a.cmdUsers(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s (try help)", cmd)
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	creds, err := a.promptCredentials(username)
	if err != nil {
		return err
	}
	return a.login(ctx, creds)
}

func (a *app) login(ctx context.Context, creds assistant.Credentials) error {
	id, err := a.orch.Login(ctx, creds)
	if err != nil {
		if errors.Is(err, assistant.ErrAuthenticationFailed) && api.StatusCode(err) == 401 {
			return errors.New("invalid username or password")
		}
		return err
	}

	role := "customer"
	if id.IsPrivileged {
		role = "admin"
	}
	a.printf("%s Logged in as %s (%s)\n", color.GreenString("✓"), id.Username, role)
	if !a.orch.Durable() {
		a.printf("%s\n", color.YellowString("Session could not be saved; you will need to log in again next time."))
	}
	return nil
}

func (a *app) cmdSignup(ctx context.Context, args []string) error {
	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	creds, err := a.promptCredentials(username)
	if err != nil {
		return err
	}
	if err := a.orch.Register(ctx, creds); err != nil {
		return err
	}
	a.printf("%s Account %s created. Run `bank-assistant login %s` to sign in.\n", color.GreenString("✓"), creds.Username, creds.Username)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if a.orch.State() != assistant.StateAuthenticated {
		a.printf("Not logged in.\n")
		return nil
	}
	if err := a.orch.Logout(ctx); err != nil {
		return err
	}
	a.printf("Logged out.\n")
	return nil
}

func (a *app) cmdWhoami() error {
	id, ok := a.orch.Identity()
	if !ok {
		a.printf("Not logged in.\n")
		return nil
	}
	role := "customer"
	if id.IsPrivileged {
		role = "admin"
	}
	a.printf("%s (%s) at %s\n", id.Username, role, a.client.BaseURL())
	return nil
}

func (a *app) requireLogin() error {
	if a.orch.State() != assistant.StateAuthenticated {
		return errors.New("not logged in (run `bank-assistant login`)")
	}
	return nil
}

func (a *app) cmdAsk(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(a.out)
	user := fs.String("user", "", "User id to ask about (admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *user != "" {
		a.orch.SetSelection(scope.ForUser(*user))
	}

	answer, err := a.orch.Ask(ctx, strings.Join(fs.Args(), " "))
	if err != nil {
		if errors.Is(err, assistant.ErrMissingTarget) {
			return errors.New("a user ID is required with -user")
		}
		if errors.Is(err, assistant.ErrEmptyQuestion) {
			return errors.New("usage: bank-assistant ask [-user id] <question>")
		}
		return err
	}
	a.printf("%s\n", answer)
	return nil
}

func (a *app) cmdUpload(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("usage: bank-assistant upload <file> [user-id]")
	}

	sel := scope.Selection{}
	if len(args) > 1 {
		sel = scope.ForUser(args[1])
	}
	return a.upload(ctx, args[0], sel)
}

func (a *app) upload(ctx context.Context, path string, sel scope.Selection) error {
	doc, err := assistant.OpenDocument(path)
	if err != nil {
		return err
	}
	res, err := a.orch.UploadDocument(ctx, doc, sel)
	return a.reportUpload(res, err)
}

func (a *app) reportUpload(res *api.UploadResult, err error) error {
	switch {
	case errors.Is(err, assistant.ErrMissingTarget):
		return errors.New("admins must name the user: upload <file> <user-id>")
	case err != nil:
		return fmt.Errorf("uploading PDF: %w", err)
	}
	a.printf("%s PDF uploaded successfully!", color.GreenString("✓"))
	if res != nil && res.UploadedFor != "" {
		a.printf(" (for %s)", res.UploadedFor)
	}
	a.printf("\n")
	return nil
}

func (a *app) cmdUsers(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	fs.SetOutput(a.out)
	refresh := fs.Bool("refresh", false, "Bypass the cached list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.printUsers(ctx, *refresh)
}

func (a *app) printUsers(ctx context.Context, refresh bool) error {
	users, err := a.orch.ListUsers(ctx, refresh)
	if err != nil {
		if errors.Is(err, assistant.ErrNotPrivileged) {
			return errors.New("only admins can list users")
		}
		return err
	}

	if len(users) == 0 {
		a.printf("No users.\n")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "S.NO\tNAME\tPDFS")
	for _, u := range users {
		pdfs := "-"
		if len(u.PDFs) > 0 {
			pdfs = strings.Join(u.PDFs, ", ")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", u.SNo, u.FullName, pdfs)
	}
	return w.Flush()
}
