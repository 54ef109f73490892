// ABOUTME: Terminal client for the bank statement assistant
// ABOUTME: Subcommands for signup, login, logout, whoami, users, upload, ask and an interactive chat

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

const banner = `
 _                _                     _     _              _
| |__   __ _ _ __ | | __   __ _ ___ ___(_)___| |_ __ _ _ __ | |_
| '_ \ / _' | '_ \| |/ /  / _' / __/ __| / __| __/ _' | '_ \| __|
| |_) | (_| | | | |   <  | (_| \__ \__ \ \__ \ || (_| | | | | |_
|_.__/ \__,_|_| |_|_|\_\  \__,_|___/___/_|___/\__\__,_|_| |_|\__|
`

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or TOML)")
	flag.Usage = printUsage
	flag.Parse()

	cmd := "chat"
	args := flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, *configPath, os.Stdin, os.Stdout)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	err = a.dispatch(ctx, cmd, args)
	a.Close()

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: bank-assistant [-config file] <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  chat                      Interactive chat (default)")
	fmt.Println("  login [username]          Sign in")
	fmt.Println("  signup [username]         Create an account")
	fmt.Println("  logout                    Sign out")
	fmt.Println("  whoami                    Show the signed-in user")
	fmt.Println("  ask <question>            Ask one question and print the answer")
	fmt.Println("  upload <file> [user-id]   Upload a PDF statement (admins name the user)")
	fmt.Println("  users [-refresh]          List users and their PDFs (admin)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  BANK_ASSISTANT_CONFIG     Config file path")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  bank-assistant login alice")
	fmt.Println("  bank-assistant ask \"What did I spend on groceries in March?\"")
	fmt.Println("  bank-assistant upload march.pdf 42")
	fmt.Println()
}
