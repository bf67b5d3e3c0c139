package client

import (
	"context"
	"testing"
	"time"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.API {
	return config.API{
		AuthURL:     baseURLStr + "/auth",
		MailURL:     baseURLStr + "/mail",
		SendURL:     baseURLStr + "/send",
		UploadURL:   baseURLStr + "/upload",
		AdminURL:    baseURLStr + "/admin",
		VisitorsURL: baseURLStr + "/visitors",
		VideosURL:   baseURLStr + "/videos",
		ContactURL:  baseURLStr + "/contact",
		Timeout:     5 * time.Second,
	}
}

func newMockedClient(t *testing.T, mth *mockHTTPClient) *Client {
	t.Helper()
	c, err := New(testConfig())
	require.NoError(t, err)
	c.client = mth
	return c
}

func TestNewRejectsRelativeEndpoint(t *testing.T) {
	conf := testConfig()
	conf.MailURL = "/mail"
	_, err := New(conf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail endpoint")
}

func TestClientV1Login(t *testing.T) {
	mth := &mockHTTPClient{
		body: `{"user_id": 12, "email": "a@mail.local", "full_name": "A B", "is_admin": true}`,
	}
	c := newMockedClient(t, mth)

	user, err := c.Login(context.Background(), "a@mail.local", "secret")
	require.NoError(t, err)

	assert.Equal(t, "POST", mth.req.Method)
	assert.Equal(t, baseURLStr+"/auth", mth.req.URL.String())
	assert.Equal(t, "", mth.req.Header.Get("X-User-Id"))
	assert.JSONEq(t,
		`{"action": "login", "email": "a@mail.local", "password": "secret"}`,
		string(mth.ReqBody()))
	assert.Equal(t, &model.JSONUserV1{
		UserID:   "12",
		Email:    "a@mail.local",
		FullName: "A B",
		IsAdmin:  true,
	}, user)
}

func TestClientV1LoginMissingUserID(t *testing.T) {
	mth := &mockHTTPClient{body: `{"email": "a@mail.local"}`}
	c := newMockedClient(t, mth)

	_, err := c.Login(context.Background(), "a@mail.local", "secret")
	require.Error(t, err)
}

func TestClientV1Register(t *testing.T) {
	mth := &mockHTTPClient{body: `{"user_id": 3, "email": "new@mail.local"}`}
	c := newMockedClient(t, mth)

	_, err := c.Register(context.Background(), "new", "pw", "New User")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"action": "register", "username": "new", "password": "pw", "full_name": "New User"}`,
		string(mth.ReqBody()))
}

func TestClientV1MailDomain(t *testing.T) {
	mth := &mockHTTPClient{body: `{"domain": "example.org"}`}
	c := newMockedClient(t, mth)

	domain, err := c.MailDomain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "example.org", domain)
	assert.Equal(t, "GET", mth.req.Method)
	assert.Equal(t, baseURLStr+"/auth?action=get_domain", mth.req.URL.String())
}

func TestClientV1ListMailbox(t *testing.T) {
	mth := &mockHTTPClient{
		body: `{"mailbox": "Sent", "emails": [{"id": 42, "from": "a@x", "to": "b@y",
			"subject": "hi", "body": "hello", "is_read": false, "is_starred": true,
			"received_at": "2024-03-01T10:11:12.123456", "attachment_count": 2}]}`,
	}
	c := newMockedClient(t, mth)

	listing, err := c.ListMailbox(context.Background(), "12", "Sent")
	require.NoError(t, err)

	assert.Equal(t, "GET", mth.req.Method)
	assert.Equal(t, baseURLStr+"/mail?mailbox=Sent", mth.req.URL.String())
	assert.Equal(t, "12", mth.req.Header.Get("X-User-Id"))
	require.Len(t, listing.Emails, 1)
	got := listing.Emails[0]
	assert.Equal(t, model.ID("42"), got.ID)
	assert.True(t, got.IsStarred)
	assert.Equal(t, 2, got.AttachmentCount)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 11, 12, 123456000, time.UTC), got.ReceivedAt.Time)
}

func TestClientV1FlagActions(t *testing.T) {
	tests := []struct {
		name   string
		call   func(c *Client) error
		action string
	}{
		{
			name:   "star",
			call:   func(c *Client) error { return c.ToggleStar(context.Background(), "12", "42") },
			action: "toggle_star",
		},
		{
			name:   "read",
			call:   func(c *Client) error { return c.MarkRead(context.Background(), "12", "42") },
			action: "mark_read",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mth := &mockHTTPClient{body: `{"success": true}`}
			c := newMockedClient(t, mth)

			require.NoError(t, tc.call(c))
			assert.Equal(t, "PUT", mth.req.Method)
			assert.Equal(t, baseURLStr+"/mail", mth.req.URL.String())
			assert.Equal(t, "12", mth.req.Header.Get("X-User-Id"))
			assert.JSONEq(t, `{"action": "`+tc.action+`", "email_id": 42}`, string(mth.ReqBody()))
		})
	}
}

func TestClientV1Upload(t *testing.T) {
	mth := &mockHTTPClient{
		body: `{"files": [{"filename": "a.txt", "url": "https://cdn/a.txt", "size": 3,
			"mime_type": "text/plain"}]}`,
	}
	c := newMockedClient(t, mth)

	refs, err := c.Upload(context.Background(), "12", []*model.JSONUploadFileV1{
		{Filename: "a.txt", Content: "YWJj", MIMEType: "text/plain"},
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", mth.req.Method)
	assert.Equal(t, baseURLStr+"/upload", mth.req.URL.String())
	assert.JSONEq(t,
		`{"files": [{"filename": "a.txt", "content": "YWJj", "mime_type": "text/plain"}]}`,
		string(mth.ReqBody()))
	require.Len(t, refs, 1)
	assert.Equal(t, "https://cdn/a.txt", refs[0].URL)
}

func TestClientV1SendEncodesEmptyAttachmentList(t *testing.T) {
	mth := &mockHTTPClient{body: `{"success": true, "message": "Email sent successfully"}`}
	c := newMockedClient(t, mth)

	resp, err := c.Send(context.Background(), "12", &model.JSONSendRequestV1{
		To:      "b@y",
		Subject: "s",
		Body:    "b",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"to": "b@y", "subject": "s", "body": "b", "attachments": []}`,
		string(mth.ReqBody()))
}

func TestClientV1SendServerError(t *testing.T) {
	mth := &mockHTTPClient{statusCode: 500, body: `{"error": "SMTP or database not configured"}`}
	c := newMockedClient(t, mth)

	_, err := c.Send(context.Background(), "12", &model.JSONSendRequestV1{To: "b@y"})
	require.Error(t, err)
	msg, ok := ServerMessage(err)
	require.True(t, ok)
	assert.Equal(t, "SMTP or database not configured", msg)
}

func TestClientV1Admin(t *testing.T) {
	mth := &mockHTTPClient{
		body: `{"total_users": 3, "active_users": 2, "total_emails": 10, "total_storage_mb": 1.5}`,
	}
	c := newMockedClient(t, mth)

	stats, err := c.AdminStats(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, baseURLStr+"/admin?action=stats", mth.req.URL.String())
	assert.Equal(t, int64(2), stats.ActiveUsers)
	assert.Equal(t, 1.5, stats.TotalStorageMB)

	mth.body = `{"users": [{"id": 5, "email": "u@x", "created_at": "2024-01-02T03:04:05",
		"is_active": false}]}`
	users, err := c.AdminUsers(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, baseURLStr+"/admin?action=users", mth.req.URL.String())
	require.Len(t, users, 1)
	assert.Equal(t, model.ID("5"), users[0].ID)

	mth.body = `{"is_active": true}`
	active, err := c.ToggleUserActive(context.Background(), "1", "5")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, "PUT", mth.req.Method)
	assert.JSONEq(t, `{"action": "toggle_active", "user_id": 5}`, string(mth.ReqBody()))

	mth.body = `{"success": true}`
	require.NoError(t, c.UpdateStorageLimit(context.Background(), "1", "5", 0))
	assert.JSONEq(t, `{"action": "update_storage", "user_id": 5, "storage_limit_mb": 1024}`,
		string(mth.ReqBody()))
}

func TestClientV1Site(t *testing.T) {
	mth := &mockHTTPClient{body: `{"total": 100, "last24h": 7}`}
	c := newMockedClient(t, mth)

	counts, err := c.RecordVisit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "POST", mth.req.Method)
	assert.Equal(t, int64(7), counts.Last24h)

	mth.body = `{"channelHandle": "@x", "videos": [{"videoId": "abc", "title": "T",
		"publishedAt": "2023-05-06T07:08:09Z"}]}`
	feed, err := c.Videos(context.Background(), "@x", 12)
	require.NoError(t, err)
	assert.Equal(t, baseURLStr+"/videos?channelHandle=%40x&maxResults=12", mth.req.URL.String())
	require.Len(t, feed.Videos, 1)
	assert.Equal(t, "abc", feed.Videos[0].VideoID)
}

func TestClientV1Contact(t *testing.T) {
	mth := &mockHTTPClient{body: `{"message": "Email sent successfully"}`}
	c := newMockedClient(t, mth)

	msg := &model.JSONContactV1{Name: "Fan", Email: "fan@x", Message: "Hello"}
	require.NoError(t, c.Contact(context.Background(), msg))
	assert.Equal(t, "POST", mth.req.Method)
	assert.Equal(t, baseURLStr+"/contact", mth.req.URL.String())
	assert.Equal(t, "", mth.req.Header.Get("X-User-Id"))
	assert.JSONEq(t, `{"name": "Fan", "email": "fan@x", "message": "Hello"}`,
		string(mth.ReqBody()))

	mth.statusCode = 500
	mth.body = `{"error": "Email configuration missing"}`
	err := c.Contact(context.Background(), msg)
	require.Error(t, err)
	text, ok := ServerMessage(err)
	require.True(t, ok)
	assert.Equal(t, "Email configuration missing", text)
}
