// Package client provides a typed client for the remote webmail functions.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/rest/model"
)

// Endpoints holds the parsed location of each remote function.
type Endpoints struct {
	Auth     *url.URL
	Mail     *url.URL
	Send     *url.URL
	Upload   *url.URL
	Admin    *url.URL
	Visitors *url.URL
	Videos   *url.URL
	Contact  *url.URL
}

// ParseEndpoints parses the endpoint URLs from the API configuration.
func ParseEndpoints(conf config.API) (*Endpoints, error) {
	e := &Endpoints{}
	for _, ep := range []struct {
		name string
		raw  string
		dst  **url.URL
	}{
		{"auth", conf.AuthURL, &e.Auth},
		{"mail", conf.MailURL, &e.Mail},
		{"send", conf.SendURL, &e.Send},
		{"upload", conf.UploadURL, &e.Upload},
		{"admin", conf.AdminURL, &e.Admin},
		{"visitors", conf.VisitorsURL, &e.Visitors},
		{"videos", conf.VideosURL, &e.Videos},
		{"contact", conf.ContactURL, &e.Contact},
	} {
		u, err := url.Parse(ep.raw)
		if err != nil {
			return nil, fmt.Errorf("%s endpoint %q: %v", ep.name, ep.raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s endpoint %q: absolute URL required", ep.name, ep.raw)
		}
		*ep.dst = u
	}
	return e, nil
}

// Client accesses the remote webmail functions.
type Client struct {
	restClient
	endpoints *Endpoints
}

// New creates a new client for the endpoints named in the API configuration.
func New(conf config.API, opts ...func(*ClientOptions)) (*Client, error) {
	endpoints, err := ParseEndpoints(conf)
	if err != nil {
		return nil, err
	}
	options := getDefaultClientOptions()
	if conf.Timeout > 0 {
		options.timeout = conf.Timeout
	}
	for _, opt := range opts {
		opt(options)
	}
	c := &Client{
		restClient: restClient{
			client: &http.Client{
				Transport: options.transport,
				Timeout:   options.timeout,
			},
		},
		endpoints: endpoints,
	}
	return c, nil
}

// withQuery returns a copy of u with the provided query parameters merged in.
func withQuery(u *url.URL, params url.Values) *url.URL {
	c := *u
	q := c.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	c.RawQuery = q.Encode()
	return &c
}

// Login authenticates with an email address and password.
func (c *Client) Login(ctx context.Context, email, password string) (*model.JSONUserV1, error) {
	req := &model.JSONLoginRequestV1{
		Action:   model.ActionLogin,
		Email:    email,
		Password: password,
	}
	user := &model.JSONUserV1{}
	if err := c.doJSON(ctx, "POST", c.endpoints.Auth, "", req, user); err != nil {
		return nil, err
	}
	if user.UserID == "" {
		return nil, errors.New("login response did not include user_id")
	}
	return user, nil
}

// Register creates a new account.  The username is submitted as given.
func (c *Client) Register(
	ctx context.Context, username, password, fullName string) (*model.JSONUserV1, error) {
	req := &model.JSONRegisterRequestV1{
		Action:   model.ActionRegister,
		Username: username,
		Password: password,
		FullName: fullName,
	}
	user := &model.JSONUserV1{}
	if err := c.doJSON(ctx, "POST", c.endpoints.Auth, "", req, user); err != nil {
		return nil, err
	}
	if user.UserID == "" {
		return nil, errors.New("register response did not include user_id")
	}
	return user, nil
}

// MailDomain returns the domain new accounts are created under.
func (c *Client) MailDomain(ctx context.Context) (string, error) {
	u := withQuery(c.endpoints.Auth, url.Values{"action": {model.ActionGetDomain}})
	d := &model.JSONDomainV1{}
	if err := c.doJSON(ctx, "GET", u, "", nil, d); err != nil {
		return "", err
	}
	return d.Domain, nil
}

// ListMailbox returns the messages in the named mailbox of the given user.
func (c *Client) ListMailbox(
	ctx context.Context, userID model.ID, mailbox string) (*model.JSONMailboxV1, error) {
	u := withQuery(c.endpoints.Mail, url.Values{"mailbox": {mailbox}})
	listing := &model.JSONMailboxV1{}
	if err := c.doJSON(ctx, "GET", u, userID, nil, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// ToggleStar flips the starred flag of a message.
func (c *Client) ToggleStar(ctx context.Context, userID, emailID model.ID) error {
	req := &model.JSONFlagActionV1{Action: model.ActionToggleStar, EmailID: emailID}
	return c.doJSON(ctx, "PUT", c.endpoints.Mail, userID, req, nil)
}

// MarkRead marks a message as having been read.
func (c *Client) MarkRead(ctx context.Context, userID, emailID model.ID) error {
	req := &model.JSONFlagActionV1{Action: model.ActionMarkRead, EmailID: emailID}
	return c.doJSON(ctx, "PUT", c.endpoints.Mail, userID, req, nil)
}

// Upload submits a batch of encoded files and returns the persisted references.
func (c *Client) Upload(
	ctx context.Context,
	userID model.ID,
	files []*model.JSONUploadFileV1,
) ([]*model.JSONAttachmentRefV1, error) {
	req := &model.JSONUploadRequestV1{Files: files}
	resp := &model.JSONUploadResponseV1{}
	if err := c.doJSON(ctx, "POST", c.endpoints.Upload, userID, req, resp); err != nil {
		return nil, err
	}
	if resp.Files == nil {
		resp.Files = []*model.JSONAttachmentRefV1{}
	}
	return resp.Files, nil
}

// Send submits a message for delivery.
func (c *Client) Send(
	ctx context.Context, userID model.ID, msg *model.JSONSendRequestV1) (*model.JSONSendResponseV1, error) {
	if msg.Attachments == nil {
		req := *msg
		req.Attachments = []*model.JSONAttachmentRefV1{}
		msg = &req
	}
	resp := &model.JSONSendResponseV1{}
	if err := c.doJSON(ctx, "POST", c.endpoints.Send, userID, msg, resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("send rejected: %s", resp.Error)
	}
	return resp, nil
}

// AdminStats returns aggregate statistics; requires an administrator identity.
func (c *Client) AdminStats(ctx context.Context, userID model.ID) (*model.JSONStatsV1, error) {
	u := withQuery(c.endpoints.Admin, url.Values{"action": {model.ActionStats}})
	stats := &model.JSONStatsV1{}
	if err := c.doJSON(ctx, "GET", u, userID, nil, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// AdminUsers returns the full account roster; requires an administrator identity.
func (c *Client) AdminUsers(ctx context.Context, userID model.ID) ([]*model.JSONAdminUserV1, error) {
	u := withQuery(c.endpoints.Admin, url.Values{"action": {model.ActionUsers}})
	roster := &model.JSONAdminUsersV1{}
	if err := c.doJSON(ctx, "GET", u, userID, nil, roster); err != nil {
		return nil, err
	}
	return roster.Users, nil
}

// ToggleUserActive flips the active state of an account and returns the new state.
func (c *Client) ToggleUserActive(ctx context.Context, userID, target model.ID) (bool, error) {
	req := &model.JSONAdminActionV1{Action: model.ActionToggleActive, UserID: target}
	state := &model.JSONActiveStateV1{}
	if err := c.doJSON(ctx, "PUT", c.endpoints.Admin, userID, req, state); err != nil {
		return false, err
	}
	return state.IsActive, nil
}

// UpdateStorageLimit sets the storage quota of an account, in megabytes.
func (c *Client) UpdateStorageLimit(ctx context.Context, userID, target model.ID, limitMB int) error {
	if limitMB <= 0 {
		limitMB = model.DefaultStorageLimit
	}
	req := &model.JSONAdminActionV1{
		Action:         model.ActionUpdateStorage,
		UserID:         target,
		StorageLimitMB: limitMB,
	}
	return c.doJSON(ctx, "PUT", c.endpoints.Admin, userID, req, nil)
}

// RecordVisit registers a site visit and returns the updated counts.
func (c *Client) RecordVisit(ctx context.Context) (*model.JSONVisitorsV1, error) {
	counts := &model.JSONVisitorsV1{}
	if err := c.doJSON(ctx, "POST", c.endpoints.Visitors, "", nil, counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// Visitors returns the current visit counts without recording a visit.
func (c *Client) Visitors(ctx context.Context) (*model.JSONVisitorsV1, error) {
	counts := &model.JSONVisitorsV1{}
	if err := c.doJSON(ctx, "GET", c.endpoints.Visitors, "", nil, counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// Videos returns the most recent uploads of a channel.
func (c *Client) Videos(ctx context.Context, handle string, maxResults int) (*model.JSONVideosV1, error) {
	u := withQuery(c.endpoints.Videos, url.Values{
		"channelHandle": {handle},
		"maxResults":    {strconv.Itoa(maxResults)},
	})
	feed := &model.JSONVideosV1{}
	if err := c.doJSON(ctx, "GET", u, "", nil, feed); err != nil {
		return nil, err
	}
	return feed, nil
}

// Contact delivers a message from the public contact form to the site owner.
func (c *Client) Contact(ctx context.Context, msg *model.JSONContactV1) error {
	return c.doJSON(ctx, "POST", c.endpoints.Contact, "", msg, nil)
}
