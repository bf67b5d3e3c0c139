// Package attachment converts local files into the transferable form accepted by the upload
// endpoint, and tracks the preview handles of files pending in a draft.
package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/artistmail/webmail/pkg/rest/model"
)

// ErrNoFilename is returned when encoding a file without a name; the upload endpoint
// silently drops such entries.
var ErrNoFilename = errors.New("attachment filename required")

// Attachment is a file with its content embedded as base64 text.
type Attachment struct {
	Filename string
	MIMEType string
	Content  string
}

// Encode reads r fully and produces an Attachment.  An empty mimeType is detected from the
// filename extension, then from the content itself.
func Encode(filename, mimeType string, r io.Reader) (Attachment, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return Attachment{}, ErrNoFilename
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Attachment{}, fmt.Errorf("read %q: %w", filename, err)
	}
	return EncodeBytes(filename, mimeType, b)
}

// EncodeBytes is Encode for content already in memory.
func EncodeBytes(filename, mimeType string, b []byte) (Attachment, error) {
	if filename == "" {
		return Attachment{}, ErrNoFilename
	}
	if mimeType == "" {
		mimeType = DetectType(filename, b)
	}
	return Attachment{
		Filename: filename,
		MIMEType: mimeType,
		Content:  base64.StdEncoding.EncodeToString(b),
	}, nil
}

// EncodeFile encodes the named local file.
func EncodeFile(path string) (Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return Attachment{}, err
	}
	defer f.Close()
	return Encode(filepath.Base(path), "", f)
}

// DetectType guesses the content type of a file from its name, then its content.
func DetectType(filename string, content []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	if len(content) == 0 {
		return model.DefaultUploadMIMEType
	}
	return http.DetectContentType(content)
}

// Decode returns the original file content.
func (a Attachment) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Content)
}

// Size returns the length of the original file content.
func (a Attachment) Size() int {
	n := len(a.Content) / 4 * 3
	if strings.HasSuffix(a.Content, "==") {
		n -= 2
	} else if strings.HasSuffix(a.Content, "=") {
		n--
	}
	return n
}

// Upload converts the Attachment into an upload request entry.
func (a Attachment) Upload() *model.JSONUploadFileV1 {
	return &model.JSONUploadFileV1{
		Filename: a.Filename,
		Content:  a.Content,
		MIMEType: a.MIMEType,
	}
}
