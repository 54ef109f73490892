// ABOUTME: Interactive chat REPL with slash commands
// ABOUTME: Questions echo immediately; replies and failures are printed from the transcript

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/bank-assistant/internal/api"
	"github.com/2389/bank-assistant/internal/assistant"
	"github.com/2389/bank-assistant/internal/scope"
	"github.com/2389/bank-assistant/internal/transcript"
)

func (a *app) cmdChat(ctx context.Context) error {
	if a.orch.State() != assistant.StateAuthenticated {
		a.printf("Not logged in.\n")
		creds, err := a.promptCredentials("")
		if err != nil {
			return err
		}
		if err := a.login(ctx, creds); err != nil {
			return err
		}
	}

	id, _ := a.orch.Identity()
	a.printf("%s\n", color.New(color.Bold).Sprintf("Chat with %s", id.Username))
	a.printf("%s\n\n", color.HiBlackString("Type a question and press Enter. /help for commands. Ctrl+C to quit."))

	for {
		if !a.orch.Sync(ctx) {
			a.printf("%s\n", color.YellowString("You were signed out in another session."))
			return nil
		}

		a.printf("%s", a.promptText())

		input, err := a.readInput(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				a.printf("\n")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit := a.handleCommand(ctx, input)
			if quit {
				return nil
			}
			a.printf("\n")
			continue
		}

		a.ask(ctx, input)
		a.printf("\n")
	}
}

// readInput reads a line, giving up when ctx ends.
func (a *app) readInput(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := a.readLine()
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

func (a *app) promptText() string {
	id, ok := a.orch.Identity()
	if ok && id.IsPrivileged {
		return color.CyanString("[%s]", a.orch.Selection()) + "> "
	}
	return "> "
}

func (a *app) ask(ctx context.Context, question string) {
	tr := a.orch.Transcript()
	if tr == nil {
		return
	}
	n := tr.Len()

	x, err := a.orch.Submit(ctx, question)
	if err == nil {
		_, err = x.Wait(ctx)
	}
	a.printReplies(tr.Since(n))

	if err != nil && !errors.Is(err, assistant.ErrMissingTarget) && !errors.Is(err, assistant.ErrSessionEnded) {
		a.logger.Debug("question failed", "error", err)
	}
}

func (a *app) printReplies(entries []transcript.Entry) {
	for _, e := range entries {
		if e.Role != transcript.RoleAssistant {
			continue
		}
		switch e.Text {
		case assistant.MessageQueryFailed, assistant.MessageMissingTarget:
			a.printf("%s\n", color.RedString(e.Text))
		default:
			a.printf("%s %s\n", color.CyanString("assistant>"), e.Text)
		}
	}
}

// handleCommand runs a slash command and reports whether the REPL should exit.
func (a *app) handleCommand(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		a.printHelp()
	case "/whoami":
		err = a.cmdWhoami()
	case "/scope":
		err = a.setScope(args)
	case "/upload":
		err = a.replUpload(ctx, args)
	case "/retry":
		err = a.replRetry(ctx)
	case "/users":
		err = a.printUsers(ctx, len(args) > 0 && args[0] == "refresh")
	case "/export":
		err = a.export(args)
	case "/logout":
		if err := a.orch.Logout(ctx); err != nil {
			a.printf("%s\n", color.RedString("[error] %v", err))
		}
		a.printf("Logged out.\n")
		return true
	default:
		err = fmt.Errorf("unknown command %s (try /help)", cmd)
	}

	if err != nil {
		a.printf("%s\n", color.RedString("[error] %v", err))
	}
	return false
}

func (a *app) printHelp() {
	a.printf("Commands:\n")
	a.printf("  /upload <file> [user-id]  Upload a PDF statement\n")
	a.printf("  /retry                    Retry the last failed upload\n")
	a.printf("  /scope [mine|all|<id>]    Choose whose documents to ask about (admin)\n")
	a.printf("  /users [refresh]          List users and their PDFs (admin)\n")
	a.printf("  /export <file>            Save this chat as HTML\n")
	a.printf("  /whoami                   Show the signed-in user\n")
	a.printf("  /logout                   Sign out and exit\n")
	a.printf("  /quit                     Exit\n")
}

// parseScope turns a /scope argument into a selection.
func parseScope(arg string) scope.Selection {
	switch strings.ToLower(arg) {
	case "mine", "me":
		return scope.Selection{Mode: scope.Mine}
	case "all", "":
		return scope.Selection{Mode: scope.AllUsers}
	default:
		return scope.ForUser(arg)
	}
}

func (a *app) setScope(args []string) error {
	id, _ := a.orch.Identity()
	if !id.IsPrivileged {
		return errors.New("only admins can choose a scope")
	}
	if len(args) == 0 {
		a.printf("Scope: %s\n", a.orch.Selection())
		return nil
	}
	sel := parseScope(args[0])
	a.orch.SetSelection(sel)
	a.printf("Scope: %s\n", sel)
	return nil
}

func (a *app) replUpload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: /upload <file> [user-id]")
	}
	sel := a.orch.Selection()
	if len(args) > 1 {
		sel = scope.ForUser(args[1])
	}

	doc, err := assistant.OpenDocument(args[0])
	if err != nil {
		return err
	}
	res, err := a.orch.UploadDocument(ctx, doc, sel)
	a.showUploadResult(res, err)
	return nil
}

func (a *app) replRetry(ctx context.Context) error {
	res, err := a.orch.RetryUpload(ctx)
	if errors.Is(err, assistant.ErrNoPendingUpload) {
		a.printf("Nothing to retry.\n")
		return nil
	}
	a.showUploadResult(res, err)
	return nil
}

func (a *app) showUploadResult(res *api.UploadResult, err error) {
	switch {
	case errors.Is(err, assistant.ErrMissingTarget):
		a.printf("%s\n", color.RedString(assistant.MessageMissingTarget))
	case errors.Is(err, assistant.ErrSessionEnded):
		a.printf("%s\n", color.HiBlackString("Upload result discarded: you were signed out."))
	case err != nil:
		a.printf("%s\n", color.RedString("Error uploading PDF: %v", err))
		a.printf("%s\n", color.HiBlackString("Use /retry to try again."))
	default:
		_ = a.reportUpload(res, nil)
	}
}

func (a *app) export(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: /export <file>")
	}
	tr := a.orch.Transcript()
	id, ok := a.orch.Identity()
	if tr == nil || !ok {
		return errors.New("not logged in")
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := tr.RenderHTML(f, id.Username); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.printf("Saved %d messages to %s\n", tr.Len(), args[0])
	return nil
}
