package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/extension"
	"github.com/artistmail/webmail/pkg/msghub"
	"github.com/artistmail/webmail/pkg/rest/client"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/server/web"
	"github.com/artistmail/webmail/pkg/session"
	"github.com/artistmail/webmail/pkg/site"
	"github.com/artistmail/webmail/pkg/test"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://localhost/api/v1"

type apiHarness struct {
	remote  *test.Remote
	ctrl    *webmail.Controller
	hub     *msghub.Hub
	extHost *extension.Host
	router  *mux.Router
	userID  model.ID
}

// setupWebServer wires a controller against a fake remote and routes the API onto a fresh
// router.  Handlers share package level services, so these tests must not run in parallel.
func setupWebServer(t *testing.T) *apiHarness {
	t.Helper()
	remote := test.NewRemote(t)
	userID := remote.AddUser("artist@mail.local", "encore", "The Artist", false)

	api, err := client.New(remote.APIConfig())
	require.NoError(t, err)
	store, err := session.NewMemStore(config.Session{})
	require.NoError(t, err)

	conf := &config.Root{
		Web:  config.Web{Addr: "127.0.0.1:9000", MonitorHistory: 20},
		Site: config.Site{ChannelHandle: "@artist", MaxVideos: 4},
		Sync: config.Sync{Mailbox: "Inbox"},
	}
	extHost := extension.NewHost()
	ctrl := webmail.New(api, store, extHost, conf.Sync)
	hub := msghub.New(conf.Web.MonitorHistory, extHost)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)
	t.Cleanup(func() {
		ctrl.Sync()
		extHost.Wait()
		hub.Sync()
		cancel()
	})

	web.Initialize(conf, ctrl, hub, site.NewCounter(api), site.NewFeed(api, conf.Site),
		site.NewContact(api))
	router := mux.NewRouter()
	SetupRoutes(router.PathPrefix("/api/").Subrouter())

	return &apiHarness{
		remote:  remote,
		ctrl:    ctrl,
		hub:     hub,
		extHost: extHost,
		router:  router,
		userID:  userID,
	}
}

// login signs the controller in directly and forgets the requests it made.
func (h *apiHarness) login(t *testing.T) {
	t.Helper()
	_, err := h.ctrl.Login(context.Background(), "artist@mail.local", "encore")
	require.NoError(t, err)
	h.ctrl.Sync()
	h.remote.ResetRequests()
}

func (h *apiHarness) do(method, url string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	req.Header.Add("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) get(url string) *httptest.ResponseRecorder {
	return h.do("GET", url, nil, "")
}

func (h *apiHarness) sendJSON(method, url, body string) *httptest.ResponseRecorder {
	return h.do(method, url, strings.NewReader(body), "application/json")
}

// decode parses a JSON response into a generic structure for the decoded* helpers.
func decode(t *testing.T, w *httptest.ResponseRecorder) interface{} {
	t.Helper()
	var result interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result), "body: %s", w.Body.String())
	return result
}

// requireStatus fails the test with the response body when the status is unexpected.
func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
}

func decodedBoolEquals(t *testing.T, json interface{}, path string, want bool) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	if got, ok := val.(bool); ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T), want: %v", path, val, val, want)
}

func decodedNumberEquals(t *testing.T, json interface{}, path string, want float64) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	got, ok := val.(float64)
	if ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T) %v (int64),\nwant: %v / %v",
		path, val, val, int64(got), want, int64(want))
}

func decodedStringEquals(t *testing.T, json interface{}, path string, want string) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	if got, ok := val.(string); ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T), want: %v", path, val, val, want)
}

// getDecodedPath recursively navigates the specified path, returing the requested element.  If
// something goes wrong, the returned string will contain an explanation.
//
// Named path elements require the parent element to be a map[string]interface{}, numbers in square
// brackets require the parent element to be a []interface{}.
//
//	getDecodedPath(o, "users", "[1]", "name")
//
// is equivalent to the JavaScript:
//
//	o.users[1].name
func getDecodedPath(o interface{}, path ...string) (interface{}, string) {
	if len(path) == 0 {
		return o, ""
	}
	if o == nil {
		return nil, " is nil"
	}
	key := path[0]
	present := false
	var val interface{}
	if key[0] == '[' {
		// Expecting slice.
		index, err := strconv.Atoi(strings.Trim(key, "[]"))
		if err != nil {
			return nil, "/" + key + " is not a slice index"
		}
		oslice, ok := o.([]interface{})
		if !ok {
			return nil, " is not a slice"
		}
		if index >= len(oslice) {
			return nil, "/" + key + " is out of bounds"
		}
		val, present = oslice[index], true
	} else {
		// Expecting map.
		omap, ok := o.(map[string]interface{})
		if !ok {
			return nil, " is not a map"
		}
		val, present = omap[key]
	}
	if !present {
		return nil, "/" + key + " is missing"
	}
	result, msg := getDecodedPath(val, path[1:]...)
	if msg != "" {
		return nil, "/" + key + msg
	}
	return result, ""
}
