package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/artistmail/webmail/pkg/site"
	"github.com/google/subcommands"
)

type visitorsCmd struct {
	record bool
}

func (*visitorsCmd) Name() string {
	return "visitors"
}

func (*visitorsCmd) Synopsis() string {
	return "show the visitor counter"
}

func (*visitorsCmd) Usage() string {
	return `visitors [-record]:
	print total and last 24 hour visits; counts are zero when the counter is unreachable
`
}

func (v *visitorsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&v.record, "record", false, "count this as a visit")
}

func (v *visitorsCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		counter := site.NewCounter(a.api)
		counts := counter.Counts
		if v.record {
			counts = counter.Visit
		}
		c := counts(ctx)
		fmt.Fprintf(stdout, "Total: %d, last 24h: %d\n", c.Total, c.Last24h)
		return subcommands.ExitSuccess
	})
}

type videosCmd struct{}

func (*videosCmd) Name() string {
	return "videos"
}

func (*videosCmd) Synopsis() string {
	return "list the channel's recent videos"
}

func (*videosCmd) Usage() string {
	return `videos:
	list recent videos of the configured channel
`
}

func (*videosCmd) SetFlags(f *flag.FlagSet) {}

func (*videosCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		videos := site.NewFeed(a.api, a.conf.Site).Videos(ctx)
		if len(videos) == 0 {
			fmt.Fprintln(stdout, "No videos")
			return subcommands.ExitSuccess
		}
		for _, v := range videos {
			date := ""
			if !v.PublishedAt.IsZero() {
				date = v.PublishedAt.Format("2006-01-02") + "  "
			}
			fmt.Fprintf(stdout, "%s%s\n  %s\n", date, v.Title, v.URL())
		}
		return subcommands.ExitSuccess
	})
}

type contactCmd struct {
	name  string
	email string
}

func (*contactCmd) Name() string {
	return "contact"
}

func (*contactCmd) Synopsis() string {
	return "send a message through the site's contact form"
}

func (*contactCmd) Usage() string {
	return `contact -name <name> -email <address> [message]:
	deliver a contact form message; without arguments the message is read from stdin
`
}

func (c *contactCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "your name")
	f.StringVar(&c.email, "email", "", "address to reply to")
}

func (c *contactCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	text := strings.Join(f.Args(), " ")
	if f.NArg() == 0 {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return fatal("Couldn't read message", err)
		}
		text = string(b)
	}
	form := site.ContactForm{Name: c.name, Email: c.email, Message: text}
	if err := form.Validate(); err != nil {
		return usage(err.Error())
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		err := site.NewContact(a.api).Submit(ctx, form)
		if errors.Is(err, site.ErrContactInvalid) {
			return usage(err.Error())
		}
		if err != nil {
			return fatal("Failed to send message", err)
		}
		fmt.Fprintln(stdout, "Message sent! Thanks for getting in touch.")
		return subcommands.ExitSuccess
	})
}
