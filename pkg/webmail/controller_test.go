package webmail_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/extension"
	"github.com/artistmail/webmail/pkg/extension/event"
	"github.com/artistmail/webmail/pkg/rest/client"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/session"
	"github.com/artistmail/webmail/pkg/test"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	artistEmail = "artist@mail.local"
	artistPass  = "encore"
)

type harness struct {
	remote  *test.Remote
	api     *client.Client
	store   session.Store
	extHost *extension.Host
	ctrl    *webmail.Controller
	userID  model.ID
}

func newHarness(t *testing.T, conf config.Sync) *harness {
	t.Helper()
	remote := test.NewRemote(t)
	api, err := client.New(remote.APIConfig())
	require.NoError(t, err)
	store, err := session.NewMemStore(config.Session{})
	require.NoError(t, err)
	extHost := extension.NewHost()

	h := &harness{
		remote:  remote,
		api:     api,
		store:   store,
		extHost: extHost,
		ctrl:    webmail.New(api, store, extHost, conf),
	}
	h.userID = remote.AddUser(artistEmail, artistPass, "The Artist", false)
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.ctrl.Login(context.Background(), artistEmail, artistPass)
	require.NoError(t, err)
	h.remote.ResetRequests()
}

func email(id, subject string, read, starred bool) *model.JSONEmailV1 {
	return &model.JSONEmailV1{
		ID:         model.ID(id),
		From:       "fan@mail.local",
		To:         artistEmail,
		Subject:    subject,
		Body:       "body of " + subject,
		IsRead:     read,
		IsStarred:  starred,
		ReceivedAt: model.Timestamp{Time: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
	}
}

func ids(messages []webmail.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID.String()
	}
	return out
}

func TestLoginPersistsSessionAcrossReload(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetMailbox(h.userID, "Inbox", email("1", "hello", false, false))

	s, err := h.ctrl.Login(context.Background(), artistEmail, artistPass)
	require.NoError(t, err)
	assert.Equal(t, h.userID, s.UserID)
	assert.Equal(t, artistEmail, s.Email)
	assert.Equal(t, "The Artist", s.FullName)
	assert.Equal(t, []string{"1"}, ids(h.ctrl.Messages()))

	stored, err := h.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s, stored)

	// Simulated reload: a fresh controller over the same store.
	reloaded := webmail.New(h.api, h.store, h.extHost, config.Sync{})
	require.NoError(t, reloaded.Resume(context.Background()))
	got, ok := reloaded.Session()
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.Equal(t, []string{"1"}, ids(reloaded.Messages()))
}

func TestResumeWithoutStoredSession(t *testing.T) {
	h := newHarness(t, config.Sync{})

	require.NoError(t, h.ctrl.Resume(context.Background()))
	_, ok := h.ctrl.Session()
	assert.False(t, ok)
	assert.Empty(t, h.remote.Requests())
}

func TestLoginFailureLeavesSessionUnset(t *testing.T) {
	h := newHarness(t, config.Sync{})
	notices := h.extHost.Events.AfterNotice.AsyncTestListener("test", 1)

	_, err := h.ctrl.Login(context.Background(), artistEmail, "wrong")
	require.ErrorIs(t, err, webmail.ErrLoginFailed)
	assert.True(t, client.IsHTTPError(err))

	_, ok := h.ctrl.Session()
	assert.False(t, ok)
	_, err = h.store.Get(context.Background())
	assert.ErrorIs(t, err, session.ErrNotExist)

	n, err := notices()
	require.NoError(t, err)
	assert.Equal(t, event.LevelError, n.Level)
	assert.Equal(t, "Login failed. Check your email and password.", n.Text)
}

func TestLoginTransportFailure(t *testing.T) {
	h := newHarness(t, config.Sync{})
	notices := h.extHost.Events.AfterNotice.AsyncTestListener("test", 1)
	h.remote.Server.Close()

	_, err := h.ctrl.Login(context.Background(), artistEmail, artistPass)
	require.ErrorIs(t, err, webmail.ErrLoginFailed)
	assert.False(t, client.IsHTTPError(err))

	n, err := notices()
	require.NoError(t, err)
	assert.Equal(t, "Could not connect to the server", n.Text)
}

func TestRegisterNormalizesUsername(t *testing.T) {
	h := newHarness(t, config.Sync{})

	s, err := h.ctrl.Register(context.Background(), "User.Name!", "pw", "User Name")
	require.NoError(t, err)
	assert.Equal(t, "user.name@mail.local", s.Email)

	reqs := h.remote.RequestsTo(test.EndpointAuth)
	require.Len(t, reqs, 1)
	var body model.JSONRegisterRequestV1
	reqs[0].Decode(t, &body)
	assert.Equal(t, model.ActionRegister, body.Action)
	assert.Equal(t, "user.name", body.Username)
	assert.Equal(t, "User Name", body.FullName)

	// Registration behaves like login.
	stored, err := h.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.UserID, stored.UserID)
	assert.Len(t, h.remote.RequestsTo(test.EndpointMail), 1)
}

func TestRegisterFailureSurfacesServerMessage(t *testing.T) {
	h := newHarness(t, config.Sync{})
	notices := h.extHost.Events.AfterNotice.AsyncTestListener("test", 2)

	_, err := h.ctrl.Register(context.Background(), "artist", "pw", "Copycat")
	require.ErrorIs(t, err, webmail.ErrRegisterFailed)
	n, err := notices()
	require.NoError(t, err)
	assert.Equal(t, "User already exists", n.Text)

	h.remote.Fail(test.EndpointAuth, http.StatusInternalServerError, "")
	_, err = h.ctrl.Register(context.Background(), "newcomer", "pw", "New")
	require.ErrorIs(t, err, webmail.ErrRegisterFailed)
	n, err = notices()
	require.NoError(t, err)
	assert.Equal(t, "Registration failed", n.Text)
}

func TestNormalizeUsername(t *testing.T) {
	testCases := map[string]string{
		"User.Name!":        "user.name",
		"already_ok-1.2":    "already_ok-1.2",
		"Spaced Out Name":   "spacedoutname",
		"ünïcødé":           "ncd",
		"@#$%":              "",
		"MiXeD_Case-99.Zed": "mixed_case-99.zed",
	}
	for input, want := range testCases {
		assert.Equal(t, want, webmail.NormalizeUsername(input), "input %q", input)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetMailbox(h.userID, "Inbox", email("1", "a", false, false))
	h.login(t)
	_, err := h.ctrl.SelectMessage(context.Background(), "1")
	require.NoError(t, err)
	h.ctrl.Sync()
	h.remote.ResetRequests()

	require.NoError(t, h.ctrl.Logout(context.Background()))

	_, err = h.store.Get(context.Background())
	assert.ErrorIs(t, err, session.ErrNotExist)
	assert.Nil(t, h.store.(*session.MemStore).Raw())
	_, ok := h.ctrl.Session()
	assert.False(t, ok)
	assert.Empty(t, h.ctrl.Messages())
	_, ok = h.ctrl.Selected()
	assert.False(t, ok)
	assert.Empty(t, h.remote.Requests(), "logout is local only")

	assert.ErrorIs(t, h.ctrl.Reload(context.Background()), webmail.ErrNoSession)
}

func TestMailboxSwitchReplacesList(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetMailbox(h.userID, "Inbox",
		email("1", "in-1", false, false), email("2", "in-2", true, false))
	h.remote.SetMailbox(h.userID, "Sent", email("3", "sent-1", true, false))
	h.login(t)
	require.Equal(t, []string{"1", "2"}, ids(h.ctrl.Messages()))

	require.NoError(t, h.ctrl.SelectMailbox(context.Background(), "Sent"))
	assert.Equal(t, "Sent", h.ctrl.Mailbox())
	assert.Equal(t, []string{"3"}, ids(h.ctrl.Messages()))

	reqs := h.remote.RequestsTo(test.EndpointMail)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Sent", reqs[0].Query.Get("mailbox"))
	assert.Equal(t, h.userID.String(), reqs[0].UserID)
}

func TestMailboxListingFailureKeepsList(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetMailbox(h.userID, "Inbox", email("1", "a", false, false))
	h.login(t)

	h.remote.Fail(test.EndpointMail, http.StatusNotFound, "Mailbox not found")
	err := h.ctrl.SelectMailbox(context.Background(), "Trash")
	require.Error(t, err)
	assert.Equal(t, []string{"1"}, ids(h.ctrl.Messages()))
}

func TestStaleListingDiscarded(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetMailbox(h.userID, "Inbox", email("1", "in", false, false))
	h.remote.SetMailbox(h.userID, "Sent", email("2", "sent", true, false))
	h.login(t)

	release := h.remote.Gate("Inbox")
	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.LoadMailbox(context.Background(), "Inbox")
	}()
	require.Eventually(t, func() bool {
		return len(h.remote.RequestsTo(test.EndpointMail)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.ctrl.SelectMailbox(context.Background(), "Sent"))
	release()
	require.NoError(t, <-done)

	assert.Equal(t, "Sent", h.ctrl.Mailbox())
	assert.Equal(t, []string{"2"}, ids(h.ctrl.Messages()))
	mailbox, messages := h.ctrl.Listing()
	assert.Equal(t, "Sent", mailbox)
	assert.Equal(t, []string{"2"}, ids(messages))
}

func TestToggleStarIsOptimistic(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetMailbox(h.userID, "Inbox", email("42", "star me", true, false))
	h.login(t)
	h.remote.FailMethod(test.EndpointMail, http.MethodPut, http.StatusInternalServerError, "db down")

	starred, err := h.ctrl.ToggleStar(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, starred)
	assert.True(t, h.ctrl.Messages()[0].IsStarred)

	h.ctrl.Sync()
	assert.True(t, h.ctrl.Messages()[0].IsStarred, "failed confirmation must not roll back")

	reqs := h.remote.RequestsTo(test.EndpointMail)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	var body model.JSONFlagActionV1
	reqs[0].Decode(t, &body)
	assert.Equal(t, model.ActionToggleStar, body.Action)
	assert.Equal(t, model.ID("42"), body.EmailID)
}

func TestToggleStarConfirmed(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetMailbox(h.userID, "Inbox", email("42", "star me", true, false))
	h.login(t)
	updates := h.extHost.Events.AfterMessageUpdated.AsyncTestListener("test", 1)

	starred, err := h.ctrl.ToggleStar(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, starred)
	h.ctrl.Sync()

	assert.True(t, h.remote.Mailbox(h.userID, "Inbox")[0].IsStarred)
	u, err := updates()
	require.NoError(t, err)
	assert.Equal(t, "42", u.ID)
	assert.True(t, u.IsStarred)

	_, err = h.ctrl.ToggleStar(context.Background(), "missing")
	assert.ErrorIs(t, err, webmail.ErrMessageNotFound)
}

func TestToggleStarReconcilesOnFailure(t *testing.T) {
	h := newHarness(t, config.Sync{Reconcile: true})
	h.remote.SetMailbox(h.userID, "Inbox", email("42", "star me", true, false))
	h.login(t)
	h.remote.FailMethod(test.EndpointMail, http.MethodPut, http.StatusInternalServerError, "")

	starred, err := h.ctrl.ToggleStar(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, starred)

	h.ctrl.Sync()
	assert.False(t, h.ctrl.Messages()[0].IsStarred, "re-fetch restores server state")
	assert.Equal(t, []string{http.MethodPut, http.MethodGet}, methods(h.remote.RequestsTo(test.EndpointMail)))
}

func TestSelectMessageMarksReadOptimistically(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetMailbox(h.userID, "Inbox",
		email("1", "unread", false, false), email("2", "read", true, false))
	h.login(t)

	m, err := h.ctrl.SelectMessage(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, m.IsRead)
	assert.True(t, h.ctrl.Messages()[0].IsRead)
	sel, ok := h.ctrl.Selected()
	require.True(t, ok)
	assert.Equal(t, model.ID("1"), sel.ID)

	// Already read, no confirmation.
	_, err = h.ctrl.SelectMessage(context.Background(), "1")
	require.NoError(t, err)
	_, err = h.ctrl.SelectMessage(context.Background(), "2")
	require.NoError(t, err)
	h.ctrl.Sync()

	reqs := h.remote.RequestsTo(test.EndpointMail)
	require.Len(t, reqs, 1)
	var body model.JSONFlagActionV1
	reqs[0].Decode(t, &body)
	assert.Equal(t, model.ActionMarkRead, body.Action)
	assert.Equal(t, model.ID("1"), body.EmailID)
	assert.True(t, h.remote.Mailbox(h.userID, "Inbox")[0].IsRead)
}

func TestOperationsRequireSession(t *testing.T) {
	h := newHarness(t, config.Sync{})
	ctx := context.Background()

	assert.ErrorIs(t, h.ctrl.LoadMailbox(ctx, "Inbox"), webmail.ErrNoSession)
	_, err := h.ctrl.ToggleStar(ctx, "1")
	assert.ErrorIs(t, err, webmail.ErrNoSession)
	_, err = h.ctrl.SelectMessage(ctx, "1")
	assert.ErrorIs(t, err, webmail.ErrNoSession)
	d := h.ctrl.Compose()
	d.To = "x@y"
	assert.ErrorIs(t, h.ctrl.Send(ctx, d), webmail.ErrNoSession)
	_, err = h.ctrl.Admin()
	assert.ErrorIs(t, err, webmail.ErrNoSession)
	assert.Empty(t, h.remote.Requests())
}

func TestMailDomain(t *testing.T) {
	h := newHarness(t, config.Sync{})
	h.remote.SetDomain("artist.example")
	assert.Equal(t, "artist.example", h.ctrl.MailDomain(context.Background()))

	h.remote.Fail(test.EndpointAuth, http.StatusInternalServerError, "")
	assert.Equal(t, model.DefaultMailDomain, h.ctrl.MailDomain(context.Background()))
}

func TestSessionChangeEvents(t *testing.T) {
	h := newHarness(t, config.Sync{})
	changes := h.extHost.Events.AfterSessionChanged.AsyncTestListener("test", 2)

	h.login(t)
	got, err := changes()
	require.NoError(t, err)
	assert.True(t, got.SignedIn)
	assert.Equal(t, h.userID.String(), got.UserID)

	require.NoError(t, h.ctrl.Logout(context.Background()))
	got, err = changes()
	require.NoError(t, err)
	assert.False(t, got.SignedIn)
	assert.Empty(t, got.Email)
}

func methods(reqs []test.Request) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method
	}
	return out
}
