package test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/gorilla/mux"
)

// Remote endpoint names, as recorded in Request.Endpoint.
const (
	EndpointAuth     = "auth"
	EndpointMail     = "mail"
	EndpointSend     = "send"
	EndpointUpload   = "upload"
	EndpointAdmin    = "admin"
	EndpointVisitors = "visitors"
	EndpointVideos   = "videos"
	EndpointContact  = "contact"
)

// Request is a single call received by the Remote.
type Request struct {
	Endpoint string
	Method   string
	Query    url.Values
	UserID   string
	Body     []byte
}

// Decode unmarshals the request body into v.
func (r Request) Decode(t *testing.T, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("request body %q: %v", r.Body, err)
	}
}

type remoteUser struct {
	model.JSONAdminUserV1
	password string
	isAdmin  bool
}

type failure struct {
	status  int
	message string
}

// Remote fakes the set of remote mail functions over HTTP.  Every request is recorded in order of
// arrival.  Remote is safe for concurrent use.
type Remote struct {
	Server *httptest.Server

	mu        sync.Mutex
	requests  []Request
	users     []*remoteUser
	mailboxes map[string]map[string][]*model.JSONEmailV1 // user ID -> mailbox -> emails
	failures  map[string]failure                         // "endpoint method" -> forced failure
	gates     map[string]chan struct{}                   // mailbox -> listing gate
	domain    string
	visits    int64
	videos    []*model.JSONVideoV1
	contacts  []*model.JSONContactV1
	nextID    int
}

// NewRemote starts a Remote; it is closed when the test completes.
func NewRemote(t *testing.T) *Remote {
	r := &Remote{
		mailboxes: make(map[string]map[string][]*model.JSONEmailV1),
		failures:  make(map[string]failure),
		gates:     make(map[string]chan struct{}),
		domain:    model.DefaultMailDomain,
		nextID:    100,
	}

	router := mux.NewRouter()
	router.HandleFunc("/auth", r.record(EndpointAuth, r.handleAuth))
	router.HandleFunc("/mail", r.record(EndpointMail, r.handleMail))
	router.HandleFunc("/send", r.record(EndpointSend, r.handleSend))
	router.HandleFunc("/upload", r.record(EndpointUpload, r.handleUpload))
	router.HandleFunc("/admin", r.record(EndpointAdmin, r.handleAdmin))
	router.HandleFunc("/visitors", r.record(EndpointVisitors, r.handleVisitors))
	router.HandleFunc("/videos", r.record(EndpointVideos, r.handleVideos))
	router.HandleFunc("/contact", r.record(EndpointContact, r.handleContact))

	r.Server = httptest.NewServer(router)
	t.Cleanup(func() {
		r.releaseGates()
		r.Server.Close()
	})

	return r
}

// APIConfig returns an API configuration pointing at this Remote.
func (r *Remote) APIConfig() config.API {
	base := r.Server.URL
	return config.API{
		AuthURL:     base + "/auth",
		MailURL:     base + "/mail",
		SendURL:     base + "/send",
		UploadURL:   base + "/upload",
		AdminURL:    base + "/admin",
		VisitorsURL: base + "/visitors",
		VideosURL:   base + "/videos",
		ContactURL:  base + "/contact",
		Timeout:     5 * time.Second,
	}
}

// AddUser registers an account and returns its ID.
func (r *Remote) AddUser(email, password, fullName string, isAdmin bool) model.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lockedAddUser(email, password, fullName, isAdmin)
}

func (r *Remote) lockedAddUser(email, password, fullName string, isAdmin bool) model.ID {
	r.nextID++
	u := &remoteUser{
		JSONAdminUserV1: model.JSONAdminUserV1{
			ID:             model.ID(strconv.Itoa(r.nextID)),
			Email:          email,
			FullName:       fullName,
			CreatedAt:      model.Timestamp{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
			IsActive:       true,
			StorageLimitMB: model.DefaultStorageLimit,
		},
		password: password,
		isAdmin:  isAdmin,
	}
	r.users = append(r.users, u)
	return u.ID
}

// SetDomain changes the domain reported for new accounts.
func (r *Remote) SetDomain(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domain = domain
}

// SetMailbox replaces the contents of a user's mailbox.
func (r *Remote) SetMailbox(userID model.ID, mailbox string, emails ...*model.JSONEmailV1) {
	r.mu.Lock()
	defer r.mu.Unlock()

	boxes := r.mailboxes[userID.String()]
	if boxes == nil {
		boxes = make(map[string][]*model.JSONEmailV1)
		r.mailboxes[userID.String()] = boxes
	}
	boxes[mailbox] = emails
}

// Mailbox returns a copy of the server side state of a mailbox.
func (r *Remote) Mailbox(userID model.ID, mailbox string) []model.JSONEmailV1 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.JSONEmailV1
	for _, e := range r.mailboxes[userID.String()][mailbox] {
		out = append(out, *e)
	}
	return out
}

// SetVideos replaces the video feed.
func (r *Remote) SetVideos(videos ...*model.JSONVideoV1) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos = videos
}

// Fail makes every subsequent request to endpoint fail with status and the given error message.
// A zero status clears the failure.
func (r *Remote) Fail(endpoint string, status int, message string) {
	r.FailMethod(endpoint, "", status, message)
}

// FailMethod is Fail restricted to requests using method.
func (r *Remote) FailMethod(endpoint, method string, status int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := endpoint + " " + method
	if status == 0 {
		delete(r.failures, key)
		return
	}
	r.failures[key] = failure{status: status, message: message}
}

// Gate holds listing requests for mailbox until the returned release func is called.
func (r *Remote) Gate(mailbox string) (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[mailbox] = ch
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.gates[mailbox] == ch {
				delete(r.gates, mailbox)
			}
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Remote) releaseGates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, ch := range r.gates {
		close(ch)
		delete(r.gates, name)
	}
}

// Requests returns every request received so far, in arrival order.
func (r *Remote) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// RequestsTo returns the requests received by a single endpoint.
func (r *Remote) RequestsTo(endpoint string) []Request {
	var out []Request
	for _, req := range r.Requests() {
		if req.Endpoint == endpoint {
			out = append(out, req)
		}
	}
	return out
}

// Endpoints returns the endpoint names of all received requests, in arrival order.
func (r *Remote) Endpoints() []string {
	var out []string
	for _, req := range r.Requests() {
		out = append(out, req.Endpoint)
	}
	return out
}

// ResetRequests forgets the recorded requests.
func (r *Remote) ResetRequests() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

// record wraps a handler to log the request and apply forced failures.
func (r *Remote) record(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))

		r.mu.Lock()
		r.requests = append(r.requests, Request{
			Endpoint: endpoint,
			Method:   req.Method,
			Query:    req.URL.Query(),
			UserID:   req.Header.Get(model.HeaderUserID),
			Body:     body,
		})
		fail, failing := r.failures[endpoint+" "+req.Method]
		if !failing {
			fail, failing = r.failures[endpoint+" "]
		}
		r.mu.Unlock()

		if failing {
			writeError(w, fail.status, fail.message)
			return
		}
		h(w, req)
	}
}

func (r *Remote) handleAuth(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodGet {
		if req.URL.Query().Get("action") != model.ActionGetDomain {
			writeError(w, http.StatusBadRequest, "Invalid action")
			return
		}
		r.mu.Lock()
		domain := r.domain
		r.mu.Unlock()
		writeJSON(w, http.StatusOK, &model.JSONDomainV1{Domain: domain})
		return
	}

	var body struct {
		Action   string `json:"action"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch body.Action {
	case model.ActionLogin:
		for _, u := range r.users {
			if u.Email == body.Email && u.password == body.Password {
				if !u.IsActive {
					writeError(w, http.StatusForbidden, "Account is blocked")
					return
				}
				writeJSON(w, http.StatusOK, u.identity())
				return
			}
		}
		writeError(w, http.StatusUnauthorized, "Invalid credentials")

	case model.ActionRegister:
		if body.Username == "" || body.Password == "" {
			writeError(w, http.StatusBadRequest, "Username and password required")
			return
		}
		email := body.Username + "@" + r.domain
		for _, u := range r.users {
			if u.Email == email {
				writeError(w, http.StatusBadRequest, "User already exists")
				return
			}
		}
		id := r.lockedAddUser(email, body.Password, body.FullName, false)
		writeJSON(w, http.StatusCreated, &model.JSONUserV1{
			UserID:   id,
			Email:    email,
			FullName: body.FullName,
		})

	default:
		writeError(w, http.StatusBadRequest, "Invalid action")
	}
}

func (u *remoteUser) identity() *model.JSONUserV1 {
	return &model.JSONUserV1{
		UserID:   u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		IsAdmin:  u.isAdmin,
	}
}

func (r *Remote) handleMail(w http.ResponseWriter, req *http.Request) {
	userID := req.Header.Get(model.HeaderUserID)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	switch req.Method {
	case http.MethodGet:
		mailbox := req.URL.Query().Get("mailbox")
		if mailbox == "" {
			mailbox = "Inbox"
		}

		r.mu.Lock()
		gate := r.gates[mailbox]
		r.mu.Unlock()
		if gate != nil {
			<-gate
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		emails := []*model.JSONEmailV1{}
		for _, e := range r.mailboxes[userID][mailbox] {
			c := *e
			emails = append(emails, &c)
		}
		writeJSON(w, http.StatusOK, &model.JSONMailboxV1{Emails: emails, Mailbox: mailbox})

	case http.MethodPut:
		var body model.JSONFlagActionV1
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		for _, box := range r.mailboxes[userID] {
			for _, e := range box {
				if e.ID != body.EmailID {
					continue
				}
				switch body.Action {
				case model.ActionToggleStar:
					e.IsStarred = !e.IsStarred
				case model.ActionMarkRead:
					e.IsRead = true
				default:
					writeError(w, http.StatusBadRequest, "Invalid action")
					return
				}
				writeJSON(w, http.StatusOK, &model.JSONSendResponseV1{Success: true})
				return
			}
		}
		writeError(w, http.StatusNotFound, "Email not found")

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (r *Remote) handleUpload(w http.ResponseWriter, req *http.Request) {
	if req.Header.Get(model.HeaderUserID) == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body model.JSONUploadRequestV1
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	refs := []*model.JSONAttachmentRefV1{}
	for i, f := range body.Files {
		if f.Filename == "" || f.Content == "" {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid file content")
			return
		}
		refs = append(refs, &model.JSONAttachmentRefV1{
			Filename: f.Filename,
			URL:      fmt.Sprintf("https://files.test/%d/%s", i, f.Filename),
			Size:     int64(len(b)),
			MIMEType: f.MIMEType,
		})
	}

	writeJSON(w, http.StatusOK, &model.JSONUploadResponseV1{Files: refs})
}

func (r *Remote) handleSend(w http.ResponseWriter, req *http.Request) {
	userID := req.Header.Get(model.HeaderUserID)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body model.JSONSendRequestV1
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.To == "" {
		writeError(w, http.StatusBadRequest, "Recipient required")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	from := ""
	for _, u := range r.users {
		if u.ID.String() == userID {
			from = u.Email
			u.SentCount++
		}
	}
	r.nextID++
	boxes := r.mailboxes[userID]
	if boxes == nil {
		boxes = make(map[string][]*model.JSONEmailV1)
		r.mailboxes[userID] = boxes
	}
	boxes["Sent"] = append([]*model.JSONEmailV1{{
		ID:              model.ID(strconv.Itoa(r.nextID)),
		From:            from,
		To:              body.To,
		Subject:         body.Subject,
		Body:            body.Body,
		IsRead:          true,
		ReceivedAt:      model.Timestamp{Time: time.Now().UTC()},
		AttachmentCount: len(body.Attachments),
	}}, boxes["Sent"]...)

	writeJSON(w, http.StatusOK, &model.JSONSendResponseV1{
		Success: true,
		Message: "Email sent successfully",
	})
}

func (r *Remote) handleAdmin(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller := r.lockedUser(model.ID(req.Header.Get(model.HeaderUserID)))
	if caller == nil || !caller.isAdmin {
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	}

	switch req.Method {
	case http.MethodGet:
		switch req.URL.Query().Get("action") {
		case model.ActionStats:
			writeJSON(w, http.StatusOK, r.lockedStats())
		case model.ActionUsers:
			users := []*model.JSONAdminUserV1{}
			for _, u := range r.users {
				c := u.JSONAdminUserV1
				users = append(users, &c)
			}
			writeJSON(w, http.StatusOK, &model.JSONAdminUsersV1{Users: users})
		default:
			writeError(w, http.StatusBadRequest, "Invalid action")
		}

	case http.MethodPut:
		var body model.JSONAdminActionV1
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		target := r.lockedUser(body.UserID)
		if target == nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		switch body.Action {
		case model.ActionToggleActive:
			target.IsActive = !target.IsActive
			writeJSON(w, http.StatusOK, &model.JSONActiveStateV1{IsActive: target.IsActive})
		case model.ActionUpdateStorage:
			limit := body.StorageLimitMB
			if limit == 0 {
				limit = model.DefaultStorageLimit
			}
			target.StorageLimitMB = float64(limit)
			writeJSON(w, http.StatusOK, &model.JSONSendResponseV1{Success: true})
		default:
			writeError(w, http.StatusBadRequest, "Invalid action")
		}

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (r *Remote) lockedUser(id model.ID) *remoteUser {
	for _, u := range r.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (r *Remote) lockedStats() *model.JSONStatsV1 {
	s := &model.JSONStatsV1{EmailActivity: []model.JSONActivityV1{}}
	for _, u := range r.users {
		s.TotalUsers++
		if u.IsActive {
			s.ActiveUsers++
		}
		s.TotalStorageMB += u.StorageUsedMB
	}
	for _, boxes := range r.mailboxes {
		for _, emails := range boxes {
			s.TotalEmails += int64(len(emails))
		}
	}
	return s
}

func (r *Remote) handleVisitors(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.Method == http.MethodPost {
		r.visits++
	}
	writeJSON(w, http.StatusOK, &model.JSONVisitorsV1{Total: r.visits, Last24h: r.visits})
}

func (r *Remote) handleVideos(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := req.URL.Query()
	videos := []*model.JSONVideoV1{}
	videos = append(videos, r.videos...)
	if n, err := strconv.Atoi(q.Get("maxResults")); err == nil && n < len(videos) {
		videos = videos[:n]
	}
	writeJSON(w, http.StatusOK, &model.JSONVideosV1{
		Videos:        videos,
		ChannelHandle: q.Get("channelHandle"),
	})
}

// Contacts returns the contact form messages delivered so far.
func (r *Remote) Contacts() []*model.JSONContactV1 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.JSONContactV1(nil), r.contacts...)
}

func (r *Remote) handleContact(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var body model.JSONContactV1
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Name == "" || body.Message == "" || !strings.Contains(body.Email, "@") {
		writeError(w, http.StatusBadRequest, "Invalid contact request")
		return
	}

	r.mu.Lock()
	r.contacts = append(r.contacts, &body)
	r.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email sent successfully"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, &model.JSONErrorV1{Error: message})
}
