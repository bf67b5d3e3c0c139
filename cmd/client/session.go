package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
)

// stdin supplies passwords not given as flags; replaced in tests.
var stdin io.Reader = os.Stdin

// password returns the flag value, or the first line of stdin.
func password(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type loginCmd struct {
	password string
}

func (*loginCmd) Name() string {
	return "login"
}

func (*loginCmd) Synopsis() string {
	return "sign in and remember the session"
}

func (*loginCmd) Usage() string {
	return `login [-password pw] <email>:
	sign in; the password is read from stdin unless given
`
}

func (l *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&l.password, "password", "", "account password")
}

func (l *loginCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	email := f.Arg(0)
	if email == "" {
		return usage("email required")
	}
	pw, err := password(l.password)
	if err != nil {
		return fatal("Password required", err)
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		s, err := a.ctrl.Login(ctx, email, pw)
		if err != nil {
			return fatal("Login failed. Check your email and password", err)
		}
		fmt.Fprintf(stdout, "Signed in as %s\n", s.Email)
		return subcommands.ExitSuccess
	})
}

type registerCmd struct {
	password string
	fullName string
}

func (*registerCmd) Name() string {
	return "register"
}

func (*registerCmd) Synopsis() string {
	return "create an account and sign in"
}

func (*registerCmd) Usage() string {
	return `register [-password pw] [-name full name] <username>:
	create an account; the username is lowercased and stripped to a-z 0-9 . _ -
`
}

func (r *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.password, "password", "", "account password")
	f.StringVar(&r.fullName, "name", "", "full name shown to recipients")
}

func (r *registerCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	username := f.Arg(0)
	if username == "" {
		return usage("username required")
	}
	pw, err := password(r.password)
	if err != nil {
		return fatal("Password required", err)
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		s, err := a.ctrl.Register(ctx, username, pw, r.fullName)
		if err != nil {
			return fatal("Registration failed", err)
		}
		fmt.Fprintf(stdout, "Registered %s\n", s.Email)
		return subcommands.ExitSuccess
	})
}

type logoutCmd struct{}

func (*logoutCmd) Name() string {
	return "logout"
}

func (*logoutCmd) Synopsis() string {
	return "forget the stored session"
}

func (*logoutCmd) Usage() string {
	return `logout:
	sign out
`
}

func (*logoutCmd) SetFlags(f *flag.FlagSet) {}

func (*logoutCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		if err := a.ctrl.Logout(ctx); err != nil {
			return fatal("Couldn't clear stored session", err)
		}
		fmt.Fprintln(stdout, "Signed out")
		return subcommands.ExitSuccess
	})
}

type whoamiCmd struct{}

func (*whoamiCmd) Name() string {
	return "whoami"
}

func (*whoamiCmd) Synopsis() string {
	return "show the signed in account"
}

func (*whoamiCmd) Usage() string {
	return `whoami:
	print the signed in account; exit status is 1 when signed out
`
}

func (*whoamiCmd) SetFlags(f *flag.FlagSet) {}

func (*whoamiCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		s, ok := a.ctrl.Session()
		if !ok {
			fmt.Fprintln(stdout, "Not signed in")
			return subcommands.ExitFailure
		}
		role := "user"
		if s.IsAdmin {
			role = "admin"
		}
		fmt.Fprintf(stdout, "%s <%s> (%s, id %s)\n", s.FullName, s.Email, role, s.UserID)
		return subcommands.ExitSuccess
	})
}
