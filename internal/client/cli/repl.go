package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL drives. App satisfies it;
// tests use a recording stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	prompt(ctx context.Context) string
	announce(ctx context.Context)
	showError(err error)

	Signup(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Whoami(ctx context.Context, args []string) error
	Refresh(ctx context.Context, args []string) error
	Profile(ctx context.Context, args []string) error

	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Dashboard(ctx context.Context, args []string) error

	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	Report(ctx context.Context, args []string) error
}

const (
	helpSignedOut = "Available commands: signup, login, help, exit"
	helpSignedIn  = "Available commands: (l)ist, show <id>, add, edit <id>, delete <id>, search, " +
		"dashboard [today|week|month|year|all], export <csv|excel>, import <file>, " +
		"report <kind>, profile, whoami, refresh, logout, help, exit"
)

// runREPL reads commands from reader until EOF, "exit"/"quit" or ctx is
// done. The first word is the command, the rest are its arguments. Handler
// errors are shown to the user and never stop the loop.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader, w io.Writer) {
	for ctx.Err() == nil {
		a.announce(ctx)
		fmt.Fprint(w, a.prompt(ctx))

		line, err := readLine(reader)
		if err != nil {
			fmt.Fprintln(w)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var handler func(context.Context, []string) error
		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				fmt.Fprintln(w, helpSignedIn)
			} else {
				fmt.Fprintln(w, helpSignedOut)
			}
			continue
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		case "signup", "register":
			handler = a.Signup
		case "login":
			handler = a.Login
		case "logout":
			handler = a.Logout
		case "whoami":
			handler = a.Whoami
		case "refresh":
			handler = a.Refresh
		case "profile":
			handler = a.Profile
		case "l", "list":
			handler = a.List
		case "show":
			handler = a.Show
		case "add":
			handler = a.Add
		case "edit":
			handler = a.Edit
		case "delete", "rm":
			handler = a.Delete
		case "search":
			handler = a.Search
		case "dashboard":
			handler = a.Dashboard
		case "export":
			handler = a.Export
		case "import":
			handler = a.Import
		case "report":
			handler = a.Report
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
			continue
		}

		if err := handler(ctx, args); err != nil {
			a.showError(err)
		}
	}
}
