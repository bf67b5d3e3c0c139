package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// maxJSONBody bounds request bodies decoded by DecodeJSON.
const maxJSONBody = 1 << 20

// RenderJSON sets the correct HTTP headers for JSON, then writes the specified data (typically a
// struct) encoded in JSON.
func RenderJSON(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Expires", "-1")
	enc := json.NewEncoder(w)
	return enc.Encode(data)
}

// DecodeJSON reads a JSON request body into v.  Malformed bodies yield a 400 Error.
func DecodeJSON(req *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return NewError(http.StatusBadRequest, "Request body required")
		}
		return NewError(http.StatusBadRequest, "Invalid JSON: "+err.Error())
	}
	return nil
}

// FriendlyTime renders a timestamp in a friendly fashion: 03:04 PM if on the same day as now,
// otherwise Mon Jan 2, 2006.
func FriendlyTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if (ty == ny) && (tm == nm) && (td == nd) {
		return t.Format("03:04 PM")
	}
	return t.Format("Mon Jan 2, 2006")
}
