package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/artistmail/webmail/pkg/attachment"
	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/message"
	"github.com/artistmail/webmail/pkg/metric"
	"github.com/artistmail/webmail/pkg/rest/client"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/sanitize"
	"github.com/artistmail/webmail/pkg/server/web"
	"github.com/artistmail/webmail/pkg/site"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/rs/zerolog/log"
)

// Upper bound on a compose form, attachments included.
const maxComposeBody = 32 << 20

// apiError translates controller failures into HTTP responses.
func apiError(err error) error {
	switch {
	case errors.Is(err, webmail.ErrNoSession):
		return web.NewError(http.StatusUnauthorized, "Not signed in")
	case errors.Is(err, webmail.ErrNotAdmin):
		return web.NewError(http.StatusForbidden, "Admin access required")
	case errors.Is(err, webmail.ErrMessageNotFound):
		return web.NewError(http.StatusNotFound, "Message not found")
	case errors.Is(err, webmail.ErrRecipientRequired):
		return web.NewError(http.StatusBadRequest, "Enter a recipient")
	case errors.Is(err, webmail.ErrNoDraft):
		return web.NewError(http.StatusBadRequest, "No message being composed")
	case errors.Is(err, webmail.ErrLoginFailed):
		return web.NewError(http.StatusUnauthorized, "Login failed. Check your email and password.")
	case errors.Is(err, webmail.ErrRegisterFailed):
		if msg, ok := client.ServerMessage(err); ok {
			return web.NewError(http.StatusBadRequest, msg)
		}
		return web.NewError(http.StatusBadRequest, "Registration failed")
	}
	if client.IsHTTPError(err) {
		if msg, ok := client.ServerMessage(err); ok {
			return web.NewError(http.StatusBadGateway, msg)
		}
		return web.NewError(http.StatusBadGateway, "")
	}
	var herr *web.Error
	if errors.As(err, &herr) {
		return err
	}
	return web.NewError(http.StatusBadGateway, "Could not connect to the server")
}

func sessionView(req *http.Request, ctx *web.Context) *model.JSONSessionV1 {
	view := &model.JSONSessionV1{Mailbox: ctx.Controller.Mailbox()}
	if s, ok := ctx.Controller.Session(); ok {
		view.SignedIn = true
		view.User = s.User()
	}
	view.MailDomain = ctx.Controller.MailDomain(req.Context())
	return view
}

// SessionGetV1 describes the current session.
func SessionGetV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	return web.RenderJSON(w, sessionView(req, ctx))
}

// SessionLoginV1 signs in with email and password.
func SessionLoginV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	creds := &model.JSONCredentialsV1{}
	if err := web.DecodeJSON(req, creds); err != nil {
		return err
	}
	if creds.Email == "" || creds.Password == "" {
		return web.NewError(http.StatusBadRequest, "Email and password required")
	}
	if _, err := ctx.Controller.Login(req.Context(), creds.Email, creds.Password); err != nil {
		return apiError(err)
	}
	return web.RenderJSON(w, sessionView(req, ctx))
}

// SessionRegisterV1 creates an account and signs in.
func SessionRegisterV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	creds := &model.JSONCredentialsV1{}
	if err := web.DecodeJSON(req, creds); err != nil {
		return err
	}
	if webmail.NormalizeUsername(creds.Username) == "" || creds.Password == "" {
		return web.NewError(http.StatusBadRequest, "Username and password required")
	}
	_, err = ctx.Controller.Register(req.Context(), creds.Username, creds.Password, creds.FullName)
	if err != nil {
		return apiError(err)
	}
	return web.RenderJSON(w, sessionView(req, ctx))
}

// SessionLogoutV1 signs out.  A store failure is logged; the session is cleared regardless.
func SessionLogoutV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	if err := ctx.Controller.Logout(req.Context()); err != nil {
		log.Warn().Str("module", "rest").Err(err).Msg("Session store not cleared")
	}
	return web.RenderJSON(w, "OK")
}

// MailboxListV1 loads the named mailbox, making it the selected one, and returns its listing.
func MailboxListV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	name := ctx.Vars["name"]
	if name == ctx.Controller.Mailbox() {
		err = ctx.Controller.LoadMailbox(req.Context(), name)
	} else {
		err = ctx.Controller.SelectMailbox(req.Context(), name)
	}
	if err != nil {
		return apiError(err)
	}

	// A newer load may have replaced the listing, label it with what is actually held.
	mailbox, messages := ctx.Controller.Listing()
	listing := &model.JSONMailboxV1{
		Emails:  make([]*model.JSONEmailV1, len(messages)),
		Mailbox: mailbox,
	}
	for i := range messages {
		listing.Emails[i] = messages[i].JSON()
	}
	return web.RenderJSON(w, listing)
}

// MailboxMboxV1 exports the named mailbox in mbox format.  The selected mailbox is unchanged.
func MailboxMboxV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	name := ctx.Vars["name"]
	messages, err := ctx.Controller.FetchMailbox(req.Context(), name)
	if err != nil {
		return apiError(err)
	}
	mails := make([]*message.Mail, len(messages))
	for i := range messages {
		mails[i] = message.FromEmail(messages[i].JSON())
	}

	w.Header().Set("Content-Type", "application/mbox")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", strings.ToLower(name)+".mbox"))
	n, err := message.WriteMbox(w, mails)
	if err != nil {
		// Headers are sent, the client sees a truncated file.
		log.Error().Str("module", "rest").Str("mailbox", name).Int("written", n).Err(err).
			Msg("Mbox export interrupted")
	}
	return nil
}

// MessageShowV1 selects a message, marking it read, and returns it with a display safe body.
func MessageShowV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	m, err := ctx.Controller.SelectMessage(req.Context(), model.ID(ctx.Vars["id"]))
	if err != nil {
		return apiError(err)
	}
	html, err := sanitize.Body(m.Body)
	if err != nil {
		log.Warn().Str("module", "rest").Str("id", m.ID.String()).Err(err).
			Msg("HTML sanitizer failed, showing as text")
		html = sanitize.Text(m.Body)
	}
	return web.RenderJSON(w, &model.JSONMessageViewV1{
		JSONEmailV1: m.JSON(),
		HTML:        html,
	})
}

// MessageStarV1 toggles the starred flag of a message.
func MessageStarV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := model.ID(ctx.Vars["id"])
	starred, err := ctx.Controller.ToggleStar(req.Context(), id)
	if err != nil {
		return apiError(err)
	}
	return web.RenderJSON(w, &model.JSONStarV1{ID: id, IsStarred: starred})
}

// ComposeSendV1 sends a message from a multipart form with fields to, subject, body and any
// number of files.
func ComposeSendV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	if _, ok := ctx.Controller.Session(); !ok {
		return apiError(webmail.ErrNoSession)
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxComposeBody)
	if err := req.ParseMultipartForm(maxComposeBody); err != nil {
		return web.NewError(http.StatusBadRequest, "Invalid form: "+err.Error())
	}

	draft := ctx.Controller.Compose()
	draft.To = req.FormValue("to")
	draft.Subject = req.FormValue("subject")
	draft.Body = req.FormValue("body")
	if req.MultipartForm != nil {
		for _, fh := range req.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				ctx.Controller.DiscardDraft(draft)
				return err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				ctx.Controller.DiscardDraft(draft)
				return err
			}
			draft.Attach(&attachment.File{
				Name:     fh.Filename,
				MIMEType: attachment.DetectType(fh.Filename, data),
				Data:     data,
			})
		}
	}

	if err := ctx.Controller.Send(req.Context(), draft); err != nil {
		// The form is resubmitted whole, nothing is kept for a retry.
		ctx.Controller.DiscardDraft(draft)
		return apiError(err)
	}
	return web.RenderJSON(w, &model.JSONSendResponseV1{Success: true, Message: "Message sent!"})
}

// AdminUsersV1 returns the user roster with current statistics.
func AdminUsersV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	roster, err := ctx.Controller.Admin()
	if err != nil {
		return apiError(err)
	}
	users, stats, err := roster.ListUsers(req.Context())
	if err != nil {
		return apiError(err)
	}
	out := &model.JSONRosterV1{Stats: stats.JSON(), Users: make([]*model.JSONAdminUserV1, len(users))}
	for i, u := range users {
		out.Users[i] = u.JSON()
	}
	return web.RenderJSON(w, out)
}

// AdminStatsV1 returns the aggregate statistics.
func AdminStatsV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	roster, err := ctx.Controller.Admin()
	if err != nil {
		return apiError(err)
	}
	if err := roster.Refresh(req.Context()); err != nil {
		return apiError(err)
	}
	return web.RenderJSON(w, roster.Stats().JSON())
}

// AdminToggleActiveV1 flips whether a user may sign in.
func AdminToggleActiveV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	roster, err := ctx.Controller.Admin()
	if err != nil {
		return apiError(err)
	}
	active, err := roster.ToggleUserActive(req.Context(), model.ID(ctx.Vars["id"]))
	if err != nil {
		return apiError(err)
	}
	return web.RenderJSON(w, &model.JSONActiveStateV1{IsActive: active})
}

// AdminStorageV1 sets the storage limit of a user; the body is {"storage_limit_mb": n}.  A
// missing limit selects the default quota.
func AdminStorageV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	roster, err := ctx.Controller.Admin()
	if err != nil {
		return apiError(err)
	}
	body := &model.JSONAdminActionV1{}
	if err := web.DecodeJSON(req, body); err != nil {
		return err
	}
	id := model.ID(ctx.Vars["id"])
	if err := roster.UpdateStorageLimit(req.Context(), id, body.StorageLimitMB); err != nil {
		return apiError(err)
	}
	for _, u := range roster.Users() {
		if u.ID == id {
			return web.RenderJSON(w, u.JSON())
		}
	}
	return web.RenderJSON(w, "OK")
}

// SiteVisitorsV1 returns the visitor counts; ?record=1 counts this request as a visit.
func SiteVisitorsV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	var v = ctx.Counter.Counts
	if req.URL.Query().Get("record") != "" {
		v = ctx.Counter.Visit
	}
	counts := v(req.Context())
	return web.RenderJSON(w, &model.JSONVisitorsV1{Total: counts.Total, Last24h: counts.Last24h})
}

// SiteVideosV1 returns the channel's recent videos.
func SiteVideosV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	videos := ctx.Feed.Videos(req.Context())
	out := &model.JSONVideosV1{
		Videos:        make([]*model.JSONVideoV1, len(videos)),
		ChannelHandle: ctx.RootConfig.Site.ChannelHandle,
	}
	for i, v := range videos {
		out.Videos[i] = &model.JSONVideoV1{
			VideoID:     v.ID,
			Title:       v.Title,
			Description: v.Description,
			Thumbnail:   v.Thumbnail,
			PublishedAt: model.Timestamp{Time: v.PublishedAt},
		}
	}
	return web.RenderJSON(w, out)
}

// SiteContactV1 delivers the public contact form.  No session is required.
func SiteContactV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	msg := &model.JSONContactV1{}
	if err := web.DecodeJSON(req, msg); err != nil {
		return err
	}
	err = ctx.Contact.Submit(req.Context(), site.ContactForm{
		Name:    msg.Name,
		Email:   msg.Email,
		Message: msg.Message,
	})
	if errors.Is(err, site.ErrContactInvalid) {
		return web.NewError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return apiError(err)
	}
	return web.RenderJSON(w, "OK")
}

// StatusV1 describes the running daemon and its counters.
func StatusV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	return web.RenderJSON(w, &model.JSONStatusV1{
		Version:   config.Version,
		BuildDate: config.BuildDate,
		Listener:  ctx.RootConfig.Web.Addr,
		Metrics:   metric.Snapshot(),
	})
}
