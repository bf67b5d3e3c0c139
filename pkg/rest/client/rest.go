package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/artistmail/webmail/pkg/metric"
	"github.com/artistmail/webmail/pkg/rest/model"
)

// maxErrorBody bounds how much of a failed response is read looking for an error message.
const maxErrorBody = 64 * 1024

// httpClient allows http.Client to be mocked for tests
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPError is returned when a remote function responds with a non-success status.
type HTTPError struct {
	Method     string
	URI        string
	StatusCode int
	Status     string
	Message    string // Server provided error message, may be empty.
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s for %q, unexpected %v: %s", e.Method, e.URI, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s for %q, unexpected %v: %s", e.Method, e.URI, e.StatusCode, e.Status)
}

// ServerMessage extracts the server provided error message from err, if any.
func ServerMessage(err error) (string, bool) {
	var herr *HTTPError
	if errors.As(err, &herr) && herr.Message != "" {
		return herr.Message, true
	}
	return "", false
}

// IsHTTPError returns true if err was caused by a non-success response, as opposed to a
// transport failure.
func IsHTTPError(err error) bool {
	var herr *HTTPError
	return errors.As(err, &herr)
}

// Generic REST restClient
type restClient struct {
	client httpClient
}

// do performs an HTTP request with this client and returns the response.  A non-nil body is
// encoded as JSON.  The userID, when not empty, is sent in the X-User-Id header.
func (c *restClient) do(
	ctx context.Context,
	method string,
	u *url.URL,
	userID model.ID,
	body interface{},
) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s for %q: %v", method, u, err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("%s for %q: %v", method, u, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if userID != "" {
		req.Header.Set(model.HeaderUserID, userID.String())
	}

	metric.RemoteRequests.Add(1)
	resp, err := c.client.Do(req)
	if err != nil {
		metric.RemoteErrors.Add(1)
	}
	return resp, err
}

// doJSON performs an HTTP request with this client and marshalls the JSON response into v.
// Any 2xx status is a success; anything else becomes an *HTTPError.
func (c *restClient) doJSON(
	ctx context.Context,
	method string,
	u *url.URL,
	userID model.ID,
	body interface{},
	v interface{},
) error {
	resp, err := c.do(ctx, method, u, userID, body)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if v == nil {
			return nil
		}
		// Decode response body
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("%s for %q, malformed response: %v", method, u, err)
		}
		return nil
	}

	metric.RemoteErrors.Add(1)
	herr := &HTTPError{
		Method:     method,
		URI:        u.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	var jerr model.JSONErrorV1
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&jerr); err == nil {
		herr.Message = jerr.Error
	}
	return herr
}
