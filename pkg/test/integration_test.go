package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/server"
	"github.com/jhillyerd/goldiff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/suite"
)

const integrationScript = `
function webmail.before.message_sent(msg)
	msg.subject = "[tour] " .. msg.subject
	return msg
end
`

type IntegrationSuite struct {
	suite.Suite
	remote   *Remote
	userID   model.ID
	baseURL  string
	services *server.Services
	stop     func()
}

func (s *IntegrationSuite) SetupSuite() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	s.remote = NewRemote(s.T())
	s.userID = s.remote.AddUser("artist@mail.local", "encore", "The Artist", false)

	dir := s.T().TempDir()
	uiDir := filepath.Join(dir, "ui")
	s.Require().NoError(os.MkdirAll(uiDir, 0755))
	s.Require().NoError(
		os.WriteFile(filepath.Join(uiDir, "index.html"), []byte("<h1>webmail</h1>\n"), 0644))
	script := filepath.Join(dir, "webmail.lua")
	s.Require().NoError(os.WriteFile(script, []byte(integrationScript), 0644))

	conf := &config.Root{
		LogLevel: "debug",
		API:      s.remote.APIConfig(),
		Session:  config.Session{Store: config.MemoryStore, Key: "mail_user"},
		Sync:     config.Sync{Mailbox: "Inbox"},
		Web:      config.Web{Addr: "127.0.0.1:0", UIDir: uiDir, MonitorHistory: 10},
		Lua:      config.Lua{Path: script},
		Site:     config.Site{ChannelHandle: "@artist", MaxVideos: 4},
	}
	stop, err := s.startServer(conf)
	s.Require().NoError(err)
	s.stop = stop
}

func (s *IntegrationSuite) TearDownSuite() {
	s.stop()
}

func (s *IntegrationSuite) SetupTest() {
	s.remote.SetMailbox(s.userID, "Inbox", &model.JSONEmailV1{
		ID:         "m1",
		From:       "Tour Manager <tm@mail.local>",
		To:         "artist@mail.local",
		Subject:    "Tour dates",
		Body:       "Doors at 8 & soundcheck at 5\nTickets: https://tickets.test/show",
		ReceivedAt: model.Timestamp{Time: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
	})
	resp := s.request("POST", "/api/v1/session/login", "application/json",
		strings.NewReader(`{"email":"artist@mail.local","password":"encore"}`))
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.services.Controller.Sync()
	s.remote.ResetRequests()
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) TestReadMessage() {
	resp := s.request("GET", "/api/v1/message/m1", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	view := &model.JSONMessageViewV1{}
	s.decode(resp, view)

	// Compare to golden.
	goldiff.File(s.T(), formatMessage("Inbox", view), "testdata", "read.golden")

	s.services.Controller.Sync()
	s.True(s.remote.Mailbox(s.userID, "Inbox")[0].IsRead)
}

func (s *IntegrationSuite) TestSendRunsScript() {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	s.Require().NoError(form.WriteField("to", "crew@mail.local"))
	s.Require().NoError(form.WriteField("subject", "Load-in"))
	s.Require().NoError(form.WriteField("body", "Trucks at noon."))
	part, err := form.CreateFormFile("files", "plot.txt")
	s.Require().NoError(err)
	_, err = part.Write([]byte("mic left"))
	s.Require().NoError(err)
	s.Require().NoError(form.Close())

	resp := s.request("POST", "/api/v1/compose", form.FormDataContentType(), body)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal([]string{EndpointUpload, EndpointSend, EndpointMail}, s.remote.Endpoints())

	reqs := s.remote.RequestsTo(EndpointSend)
	s.Require().Len(reqs, 1)
	sent := &model.JSONSendRequestV1{}
	reqs[0].Decode(s.T(), sent)
	s.Equal("[tour] Load-in", sent.Subject)
	s.Require().Len(sent.Attachments, 1)
	s.Equal("plot.txt", sent.Attachments[0].Filename)
}

func (s *IntegrationSuite) TestUIFallback() {
	for _, path := range []string{"/", "/inbox", "/admin/users"} {
		resp := s.request("GET", path, "", nil)
		s.Equal(http.StatusOK, resp.StatusCode, path)
		b, err := io.ReadAll(resp.Body)
		s.Require().NoError(err)
		s.Equal("<h1>webmail</h1>\n", string(b), path)
	}

	resp := s.request("GET", "/api/v1/nothing", "", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationSuite) TestStatusCountsRequests() {
	resp := s.request("GET", "/api/v1/mailbox/Inbox", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.request("GET", "/api/v1/status", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	status := &model.JSONStatusV1{}
	s.decode(resp, status)
	s.Equal("127.0.0.1:0", status.Listener)
	s.Require().Contains(status.Metrics, "remoteRequests")
	s.NotEqual("0", status.Metrics["remoteRequests"])
}

func formatMessage(mailbox string, m *model.JSONMessageViewV1) []byte {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "Mailbox: %v\n", mailbox)
	fmt.Fprintf(b, "ID: %v\n", m.ID)
	fmt.Fprintf(b, "From: %v\n", m.From)
	fmt.Fprintf(b, "To: %v\n", m.To)
	fmt.Fprintf(b, "Subject: %v\n", m.Subject)
	fmt.Fprintf(b, "Received: %v\n", m.ReceivedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(b, "Read: %v\n", m.IsRead)
	fmt.Fprintf(b, "Starred: %v\n", m.IsStarred)
	fmt.Fprintf(b, "\nHTML:\n%v\n", m.HTML)
	return b.Bytes()
}

// request sends a request to the running server; the response body is closed when the test
// completes.
func (s *IntegrationSuite) request(method, path, contentType string, body io.Reader) *http.Response {
	req, err := http.NewRequest(method, s.baseURL+path, body)
	s.Require().NoError(err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *IntegrationSuite) decode(resp *http.Response, v interface{}) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *IntegrationSuite) startServer(conf *config.Root) (func(), error) {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	services, err := server.Prod(rootCtx, conf)
	if err != nil {
		rootCancel()
		return nil, err
	}
	s.services = services

	webCtx, webCancel := context.WithCancel(rootCtx)
	ready := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		services.Start(webCtx, func() { close(ready) })
		close(stopped)
	}()

	select {
	case <-ready:
	case err := <-services.Notify():
		webCancel()
		rootCancel()
		return nil, err
	case <-time.After(5 * time.Second):
		webCancel()
		rootCancel()
		return nil, fmt.Errorf("web server not ready")
	}
	s.baseURL = "http://" + services.WebServer.Addr()

	return func() {
		// Shut everything down.
		webCancel()
		<-stopped
		services.Drain()
		services.MsgHub.Sync()
		rootCancel()
	}, nil
}
