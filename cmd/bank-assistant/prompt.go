// ABOUTME: Credential prompts for login and signup
// ABOUTME: Passwords are read without echo when stdin is a terminal

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/2389/bank-assistant/internal/assistant"
)

// readLine reads one trimmed line. EOF with no input is an error.
func (a *app) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) prompt(question string) (string, error) {
	a.printf("%s: ", question)
	return a.readLine()
}

func (a *app) readPassword() (string, error) {
	a.printf("Password: ")
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		a.printf("\n")
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}
	return a.readLine()
}

func (a *app) promptCredentials(username string) (assistant.Credentials, error) {
	var err error
	if username == "" {
		username, err = a.prompt("Username")
		if err != nil {
			return assistant.Credentials{}, err
		}
	}
	password, err := a.readPassword()
	if err != nil {
		return assistant.Credentials{}, err
	}
	return assistant.Credentials{Username: username, Password: password}, nil
}
