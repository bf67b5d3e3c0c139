package attachment

import (
	"bytes"
	"io"
	"sync"

	"github.com/google/uuid"
)

// File is a locally selected file awaiting send.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the length of the file content.
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// Reader returns a reader over the file content.
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// Encode converts the file into its transferable form.
func (f *File) Encode() (Attachment, error) {
	return EncodeBytes(f.Name, f.MIMEType, f.Data)
}

// Previews hands out opaque handles through which pending files can be shown before they are
// sent.  Every handle created must eventually be revoked, or the file stays in memory.
type Previews struct {
	mu    sync.Mutex
	files map[string]*File
}

// NewPreviews creates an empty registry.
func NewPreviews() *Previews {
	return &Previews{files: make(map[string]*File)}
}

// Create registers f and returns its handle.
func (p *Previews) Create(f *File) string {
	handle := uuid.NewString()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[handle] = f
	return handle
}

// Lookup returns the file behind a handle.
func (p *Previews) Lookup(handle string) (*File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[handle]
	return f, ok
}

// Revoke releases a handle; revoking an unknown handle does nothing.
func (p *Previews) Revoke(handle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, handle)
}

// Len returns the number of live handles.
func (p *Previews) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}
