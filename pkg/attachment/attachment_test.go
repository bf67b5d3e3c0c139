package attachment

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	a, err := Encode("notes.txt", "", bytes.NewBufferString("hello"))
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", a.Filename)
	assert.Contains(t, a.MIMEType, "text/plain")
	assert.Equal(t, "aGVsbG8=", a.Content)
	assert.Equal(t, 5, a.Size())

	b, err := a.Decode()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestEncodeKeepsGivenType(t *testing.T) {
	a, err := Encode("track.bin", "audio/mpeg", bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", a.MIMEType)
	assert.Equal(t, 3, a.Size())
}

func TestEncodeStripsDirectories(t *testing.T) {
	a, err := Encode("../../etc/cover.png", "image/png", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, "cover.png", a.Filename)
}

func TestEncodeRequiresFilename(t *testing.T) {
	for _, name := range []string{"", "  ", "/"} {
		_, err := Encode(name, "", bytes.NewReader([]byte("x")))
		assert.ErrorIs(t, err, ErrNoFilename, "name %q", name)
	}
}

func TestEncodeReadError(t *testing.T) {
	_, err := Encode("x.txt", "", errReader{})
	require.Error(t, err)
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", DetectType("noext", nil))
	assert.Equal(t, "image/png", DetectType("noext", []byte("\x89PNG\x0d\x0a\x1a\x0a0000")))
	assert.Equal(t, "application/pdf", DetectType("file.pdf", nil))
}

func TestEncodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lyrics.txt")
	require.NoError(t, os.WriteFile(path, []byte("la la"), 0600))

	a, err := EncodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lyrics.txt", a.Filename)
	up := a.Upload()
	assert.Equal(t, a.Content, up.Content)
	assert.Equal(t, a.MIMEType, up.MIMEType)
}

func TestSizeMatchesDecoded(t *testing.T) {
	for n := 0; n < 8; n++ {
		a, err := EncodeBytes("f", "x/y", bytes.Repeat([]byte{'z'}, n))
		require.NoError(t, err)
		assert.Equal(t, n, a.Size(), "n=%d", n)
	}
}

func TestPreviewsLifecycle(t *testing.T) {
	p := NewPreviews()
	f := &File{Name: "a.txt", Data: []byte("abc")}

	h1 := p.Create(f)
	h2 := p.Create(f)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, p.Len())

	got, ok := p.Lookup(h1)
	require.True(t, ok)
	assert.Same(t, f, got)

	p.Revoke(h1)
	_, ok = p.Lookup(h1)
	assert.False(t, ok)
	assert.Equal(t, 1, p.Len())

	p.Revoke("unknown")
	p.Revoke(h2)
	assert.Equal(t, 0, p.Len())
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}
