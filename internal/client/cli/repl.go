package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Profile(ctx context.Context) error
	UpdateProfile(ctx context.Context) error
	ChangePicture(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
	ListUsers(ctx context.Context) error
	Logout(ctx context.Context) error
	Reset(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the gophauth CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Commands share reader with their prompts.
// The loop exits on EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help           : show available commands
//	  - register       : create an account
//	  - login          : authenticate
//	  - users          : list registered users
//	  - reset          : wipe the local database
//	  - exit | quit    : leave the program
//
//	Logged in:
//	  - help           : show available commands
//	  - profile        : show your profile
//	  - update         : edit your profile
//	  - picture        : change your profile picture
//	  - delete         : delete your account
//	  - users          : list registered users
//	  - logout         : log out
//	  - reset          : wipe the local database
//	  - exit | quit    : leave the program
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gophauth%s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: profile, update, picture, delete, users, logout, reset, exit")
			} else {
				printlnFn("Available commands: register, login, users, reset, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			if a.isLoggedIn() {
				printlnFn("Already logged in, logout first")
				continue
			}
			_ = a.Login(ctx)

		case "users":
			_ = a.ListUsers(ctx)

		case "reset":
			_ = a.Reset(ctx)

		case "profile", "update", "picture", "delete", "logout":
			if !a.isLoggedIn() {
				printlnFn("Please login first")
				continue
			}
			switch cmd {
			case "profile":
				_ = a.Profile(ctx)
			case "update":
				_ = a.UpdateProfile(ctx)
			case "picture":
				_ = a.ChangePicture(ctx)
			case "delete":
				_ = a.DeleteAccount(ctx)
			case "logout":
				_ = a.Logout(ctx)
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
