package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/sanitize"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/google/subcommands"
)

type readCmd struct {
	mailbox string
	html    bool
}

func (*readCmd) Name() string {
	return "read"
}

func (*readCmd) Synopsis() string {
	return "show a message and mark it read"
}

func (*readCmd) Usage() string {
	return `read [flags] <id>:
	print a message; it is marked read
`
}

func (r *readCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.mailbox, "mailbox", "", "mailbox holding the message (default: startup mailbox)")
	f.BoolVar(&r.html, "html", false, "print the body as sanitized HTML")
}

func (r *readCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id := f.Arg(0)
	if id == "" {
		return usage("message id required")
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		if !a.open(ctx, r.mailbox) {
			return subcommands.ExitFailure
		}
		m, err := a.ctrl.SelectMessage(ctx, model.ID(id))
		if err != nil {
			return fatal("Couldn't open message", err)
		}
		body := m.Body
		if r.html {
			if body, err = sanitize.Body(m.Body); err != nil {
				return fatal("Couldn't render message", err)
			}
		}
		printMessage(stdout, m, body)
		return subcommands.ExitSuccess
	})
}

// open checks for a session and switches to mailbox, when one is named.
func (a *app) open(ctx context.Context, mailbox string) bool {
	if _, ok := a.signedIn(); !ok {
		return false
	}
	if mailbox != "" && mailbox != a.ctrl.Mailbox() {
		if err := a.ctrl.SelectMailbox(ctx, mailbox); err != nil {
			fatal("Couldn't load mailbox", err)
			return false
		}
	}
	return true
}

func printMessage(w io.Writer, m webmail.Message, body string) {
	fmt.Fprintf(w, "From:    %s\n", m.From)
	fmt.Fprintf(w, "To:      %s\n", m.To)
	fmt.Fprintf(w, "Subject: %s\n", m.Subject)
	if !m.ReceivedAt.IsZero() {
		fmt.Fprintf(w, "Date:    %s\n", m.ReceivedAt.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	}
	if m.AttachmentCount > 0 {
		fmt.Fprintf(w, "Files:   %d\n", m.AttachmentCount)
	}
	fmt.Fprintf(w, "\n%s\n", body)
}

type starCmd struct {
	mailbox string
}

func (*starCmd) Name() string {
	return "star"
}

func (*starCmd) Synopsis() string {
	return "star or unstar a message"
}

func (*starCmd) Usage() string {
	return `star [flags] <id>:
	toggle the starred flag of a message
`
}

func (s *starCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.mailbox, "mailbox", "", "mailbox holding the message (default: startup mailbox)")
}

func (s *starCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id := f.Arg(0)
	if id == "" {
		return usage("message id required")
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		if !a.open(ctx, s.mailbox) {
			return subcommands.ExitFailure
		}
		starred, err := a.ctrl.ToggleStar(ctx, model.ID(id))
		if err != nil {
			return fatal("Couldn't star message", err)
		}
		state := "Unstarred"
		if starred {
			state = "Starred"
		}
		fmt.Fprintf(stdout, "%s %s\n", state, id)
		return subcommands.ExitSuccess
	})
}
