package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/artistmail/webmail/pkg/message"
	"github.com/google/subcommands"
)

type mboxCmd struct {
	output string
}

func (*mboxCmd) Name() string {
	return "mbox"
}

func (*mboxCmd) Synopsis() string {
	return "output mailbox in mbox format"
}

func (*mboxCmd) Usage() string {
	return `mbox [flags] <mailbox>:
	output mailbox in mbox format
`
}

func (m *mboxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.output, "o", "", "write to file instead of stdout")
}

func (m *mboxCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	mailbox := f.Arg(0)
	if mailbox == "" {
		return usage("mailbox required")
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		if _, ok := a.signedIn(); !ok {
			return subcommands.ExitFailure
		}
		messages, err := a.ctrl.FetchMailbox(ctx, mailbox)
		if err != nil {
			return fatal("Couldn't load mailbox", err)
		}
		mails := make([]*message.Mail, len(messages))
		for i := range messages {
			mails[i] = message.FromEmail(messages[i].JSON())
		}

		w := stdout
		if m.output != "" {
			file, err := os.Create(m.output)
			if err != nil {
				return fatal("Couldn't create output", err)
			}
			defer file.Close()
			w = file
		}
		n, err := message.WriteMbox(w, mails)
		if err != nil {
			return fatal("Error", err)
		}
		if m.output != "" {
			fmt.Fprintf(os.Stderr, "Wrote %d of %d messages to %s\n", n, len(mails), m.output)
		}
		return subcommands.ExitSuccess
	})
}
