package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"text/tabwriter"
	"time"

	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/server/web"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/google/subcommands"
)

type listCmd struct {
	output string
	// match criteria
	from    regexFlag
	subject regexFlag
	to      regexFlag
	maxAge  time.Duration
	unread  bool
	starred bool
}

func (*listCmd) Name() string {
	return "list"
}

func (*listCmd) Synopsis() string {
	return "list contents of mailbox"
}

func (*listCmd) Usage() string {
	return `list [flags] [mailbox]:
	list messages in mailbox (default: the startup mailbox) matching all specified criteria
	exit status will be 1 if no matches were found, otherwise 0
`
}

func (l *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&l.output, "output", "table", "output format: table, id, or json")
	f.Var(&l.from, "from", "From header matching regexp (address, not name)")
	f.Var(&l.subject, "subject", "Subject header matching regexp")
	f.Var(&l.to, "to", "To header matching regexp (address, not name)")
	f.DurationVar(
		&l.maxAge, "maxage", 0,
		"Matches must have been received in this time frame (ex: \"10s\", \"5m\")")
	f.BoolVar(&l.unread, "unread", false, "only unread messages")
	f.BoolVar(&l.starred, "starred", false, "only starred messages")
}

func (l *listCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var render func(w io.Writer, messages []webmail.Message) error
	switch l.output {
	case "table":
		render = func(w io.Writer, messages []webmail.Message) error {
			return renderTable(w, messages, time.Now())
		}
	case "id":
		render = renderIDs
	case "json":
		render = renderJSON
	default:
		return usage("unknown output type: " + l.output)
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		if _, ok := a.signedIn(); !ok {
			return subcommands.ExitFailure
		}
		if mailbox := f.Arg(0); mailbox != "" && mailbox != a.ctrl.Mailbox() {
			if err := a.ctrl.SelectMailbox(ctx, mailbox); err != nil {
				return fatal("Couldn't load mailbox", err)
			}
		}

		now := time.Now()
		messages := a.ctrl.Messages()
		matches := make([]webmail.Message, 0, len(messages))
		for _, m := range messages {
			if l.match(m, now) {
				matches = append(matches, m)
			}
		}
		// Return error status if no matches
		if len(matches) == 0 {
			return subcommands.ExitFailure
		}
		if err := render(stdout, matches); err != nil {
			return fatal("Error", err)
		}
		return subcommands.ExitSuccess
	})
}

// match returns true if the message matches all defined criteria
func (l *listCmd) match(m webmail.Message, now time.Time) bool {
	if l.maxAge > 0 && now.Sub(m.ReceivedAt) > l.maxAge {
		return false
	}
	if l.unread && m.IsRead {
		return false
	}
	if l.starred && !m.IsStarred {
		return false
	}
	if l.subject.Defined() && !l.subject.MatchString(m.Subject) {
		return false
	}
	if l.from.Defined() && !l.from.MatchString(addressOf(m.From)) {
		return false
	}
	if l.to.Defined() {
		match := false
		list, err := mail.ParseAddressList(m.To)
		if err != nil {
			// Match the raw field instead.
			match = l.to.MatchString(m.To)
		}
		for _, addr := range list {
			if l.to.MatchString(addr.Address) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// addressOf strips the display name from an address, when it parses.
func addressOf(s string) string {
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.Address
	}
	return s
}

// renderTable writes one aligned row per message: flags, date, sender, subject.  Unread
// messages are marked with *, starred ones with S.
func renderTable(w io.Writer, messages []webmail.Message, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFLAGS\tDATE\tFROM\tSUBJECT")
	for _, m := range messages {
		flags := []byte("--")
		if !m.IsRead {
			flags[0] = '*'
		}
		if m.IsStarred {
			flags[1] = 'S'
		}
		subject := m.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		if m.AttachmentCount > 0 {
			subject = fmt.Sprintf("%s [%d]", subject, m.AttachmentCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.ID, flags, web.FriendlyTime(m.ReceivedAt, now), m.From, subject)
	}
	return tw.Flush()
}

func renderIDs(w io.Writer, messages []webmail.Message) error {
	for _, m := range messages {
		fmt.Fprintln(w, m.ID)
	}
	return nil
}

func renderJSON(w io.Writer, messages []webmail.Message) error {
	out := make([]*model.JSONEmailV1, len(messages))
	for i := range messages {
		out[i] = messages[i].JSON()
	}
	jsonEncoder := json.NewEncoder(w)
	jsonEncoder.SetEscapeHTML(false)
	jsonEncoder.SetIndent("", "  ")
	return jsonEncoder.Encode(out)
}
