package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/artistmail/webmail/pkg/message"
	"github.com/google/subcommands"
)

type sendCmd struct {
	to       string
	subject  string
	body     string
	bodyFile string
	eml      string
	attach   listFlag
}

func (*sendCmd) Name() string {
	return "send"
}

func (*sendCmd) Synopsis() string {
	return "compose and send a message"
}

func (*sendCmd) Usage() string {
	return `send [flags]:
	send a message; -eml takes recipient, subject, body and attachments from an RFC 5322 file,
	other flags override its fields
`
}

func (s *sendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.to, "to", "", "recipient address")
	f.StringVar(&s.subject, "subject", "", "subject line")
	f.StringVar(&s.body, "body", "", "message text")
	f.StringVar(&s.bodyFile, "body-file", "", "read message text from file, - for stdin")
	f.StringVar(&s.eml, "eml", "", "draft from an .eml file")
	f.Var(&s.attach, "attach", "attach file (repeatable)")
}

func (s *sendCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var draft *message.Mail
	if s.eml != "" {
		file, err := os.Open(s.eml)
		if err != nil {
			return fatal("Couldn't open draft", err)
		}
		draft, err = message.ParseDraft(file)
		_ = file.Close()
		if err != nil {
			return fatal("Couldn't read draft", err)
		}
	} else {
		draft = &message.Mail{}
	}
	if s.to != "" {
		draft.To = s.to
	}
	if s.subject != "" {
		draft.Subject = s.subject
	}
	if s.body != "" {
		draft.Body = s.body
	}
	if s.bodyFile != "" {
		var r io.Reader = stdin
		if s.bodyFile != "-" {
			file, err := os.Open(s.bodyFile)
			if err != nil {
				return fatal("Couldn't open body", err)
			}
			defer file.Close()
			r = file
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return fatal("Couldn't read body", err)
		}
		draft.Body = string(b)
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		if _, ok := a.signedIn(); !ok {
			return subcommands.ExitFailure
		}
		d := a.ctrl.Compose()
		d.To = draft.To
		d.Subject = draft.Subject
		d.Body = draft.Body
		for _, file := range draft.Attachments {
			d.Attach(file)
		}
		for _, path := range s.attach {
			if _, err := d.AttachFile(path); err != nil {
				a.ctrl.DiscardDraft(d)
				return fatal("Couldn't attach file", err)
			}
		}

		if err := a.ctrl.Send(ctx, d); err != nil {
			return fatal("Failed to send message", err)
		}
		fmt.Fprintln(stdout, "Message sent!")
		return subcommands.ExitSuccess
	})
}
