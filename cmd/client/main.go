// Package main implements a command line client for the webmail functions.  It shares the
// session store with the daemon, so a login from either is seen by both.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/extension"
	"github.com/artistmail/webmail/pkg/extension/luahost"
	"github.com/artistmail/webmail/pkg/rest/client"
	"github.com/artistmail/webmail/pkg/session"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var verbose = flag.Bool("v", false, "log controller activity to stderr")

// Command output; replaced in tests.
var stdout io.Writer = os.Stdout

// Allow subcommands to accept regular expressions as flags
type regexFlag struct {
	*regexp.Regexp
}

func (r *regexFlag) Defined() bool {
	return r.Regexp != nil
}

func (r *regexFlag) Set(pattern string) error {
	if pattern == "" {
		r.Regexp = nil
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.Regexp = re
	return nil
}

func (r *regexFlag) String() string {
	if r.Regexp == nil {
		return ""
	}
	return r.Regexp.String()
}

// regexFlag must implement flag.Value
var _ flag.Value = &regexFlag{}

// listFlag collects every occurrence of a repeatable flag.
type listFlag []string

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

var _ flag.Value = &listFlag{}

// app is the controller environment a subcommand runs against.
type app struct {
	conf    *config.Root
	api     *client.Client
	ctrl    *webmail.Controller
	extHost *extension.Host
	luaHost *luahost.Host
}

// newApp loads configuration, restores the stored session and loads the startup mailbox.
var newApp = func(ctx context.Context) (*app, error) {
	conf, err := config.Process()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	store, err := session.FromConfig(conf.Session)
	if err != nil {
		return nil, err
	}
	api, err := client.New(conf.API)
	if err != nil {
		return nil, err
	}
	extHost := extension.NewHost()
	luaHost, err := luahost.New(conf.Lua, extHost)
	if err != nil {
		return nil, err
	}
	ctrl := webmail.New(api, store, extHost, conf.Sync)
	if err := ctrl.Resume(ctx); err != nil {
		return nil, err
	}
	return &app{conf: conf, api: api, ctrl: ctrl, extHost: extHost, luaHost: luaHost}, nil
}

// close waits for background confirmations and extension callbacks.
func (a *app) close() {
	a.ctrl.Sync()
	a.extHost.Wait()
	if a.luaHost != nil {
		a.luaHost.Close()
	}
}

// withApp runs fn against a fresh app, closing it afterwards.
func withApp(ctx context.Context, fn func(a *app) subcommands.ExitStatus) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		return fatal("Couldn't start", err)
	}
	defer a.close()
	return fn(a)
}

// signedIn returns the active session, or reports that there is none.
func (a *app) signedIn() (*session.Session, bool) {
	s, ok := a.ctrl.Session()
	if !ok {
		fmt.Fprintln(os.Stderr, "Not signed in, use the login command")
	}
	return s, ok
}

func main() {
	// Important top-level flags
	subcommands.ImportantFlag("v")

	// Setup standard helpers
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	// Setup my commands
	subcommands.Register(&loginCmd{}, "session")
	subcommands.Register(&registerCmd{}, "session")
	subcommands.Register(&logoutCmd{}, "session")
	subcommands.Register(&whoamiCmd{}, "session")
	subcommands.Register(&listCmd{}, "mail")
	subcommands.Register(&readCmd{}, "mail")
	subcommands.Register(&starCmd{}, "mail")
	subcommands.Register(&sendCmd{}, "mail")
	subcommands.Register(&mboxCmd{}, "mail")
	subcommands.Register(&adminCmd{}, "admin")
	subcommands.Register(&visitorsCmd{}, "site")
	subcommands.Register(&videosCmd{}, "site")
	subcommands.Register(&contactCmd{}, "site")

	// Parse and execute
	flag.Parse()
	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func fatal(msg string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	return subcommands.ExitFailure
}

func usage(msg string) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, msg)
	return subcommands.ExitUsageError
}
