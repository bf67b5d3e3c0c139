package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/google/subcommands"
)

type adminCmd struct{}

func (*adminCmd) Name() string {
	return "admin"
}

func (*adminCmd) Synopsis() string {
	return "view and manage accounts (admins only)"
}

func (*adminCmd) Usage() string {
	return `admin <users | stats | toggle <user-id> | storage <user-id> <megabytes>>:
	users    list accounts
	stats    show totals and recent activity
	toggle   block or unblock an account
	storage  set an account's storage limit
`
}

func (*adminCmd) SetFlags(f *flag.FlagSet) {}

func (*adminCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	action := f.Arg(0)
	switch action {
	case "users", "stats":
	case "toggle":
		if f.Arg(1) == "" {
			return usage("user id required")
		}
	case "storage":
		if f.Arg(1) == "" || f.Arg(2) == "" {
			return usage("user id and megabytes required")
		}
		if _, err := strconv.Atoi(f.Arg(2)); err != nil {
			return usage("megabytes must be a number")
		}
	default:
		return usage("unknown admin action: " + action)
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		if _, ok := a.signedIn(); !ok {
			return subcommands.ExitFailure
		}
		roster, err := a.ctrl.Admin()
		if err != nil {
			return fatal("Admin", err)
		}

		switch action {
		case "users":
			err = roster.Refresh(ctx)
			if err == nil {
				err = renderUsers(stdout, roster.Users())
			}
		case "stats":
			err = roster.Refresh(ctx)
			if err == nil {
				renderStats(stdout, roster.Stats())
			}
		case "toggle":
			var active bool
			active, err = roster.ToggleUserActive(ctx, model.ID(f.Arg(1)))
			if err == nil {
				state := "blocked"
				if active {
					state = "active"
				}
				fmt.Fprintf(stdout, "User %s is now %s\n", f.Arg(1), state)
			}
		case "storage":
			limit, _ := strconv.Atoi(f.Arg(2))
			err = roster.UpdateStorageLimit(ctx, model.ID(f.Arg(1)), limit)
			if err == nil {
				fmt.Fprintf(stdout, "Storage limit of %s set to %d MB\n", f.Arg(1), limit)
			}
		}
		if err != nil {
			return fatal("Admin call failed", err)
		}
		return subcommands.ExitSuccess
	})
}

func renderUsers(w io.Writer, users []webmail.AdminUser) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tSTATE\tSTORAGE\tSENT\tRECEIVED")
	for _, u := range users {
		state := "active"
		if !u.IsActive {
			state = "blocked"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f/%.0f MB\t%d\t%d\n", u.ID, u.Email, u.FullName, state,
			u.StorageUsedMB, u.StorageLimitMB, u.SentCount, u.ReceivedCount)
	}
	return tw.Flush()
}

func renderStats(w io.Writer, s webmail.Stats) {
	fmt.Fprintf(w, "Users:   %d (%d active)\n", s.TotalUsers, s.ActiveUsers)
	fmt.Fprintf(w, "Emails:  %d\n", s.TotalEmails)
	fmt.Fprintf(w, "Storage: %.1f MB\n", s.TotalStorageMB)
	for _, day := range s.Activity {
		fmt.Fprintf(w, "  %s  %d\n", day.Date, day.Count)
	}
}
