package httperr

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		exp  int
	}{
		{name: "plain", err: errors.New("boom"), exp: http.StatusInternalServerError},
		{name: "not_found", err: NotFound("/nope"), exp: http.StatusNotFound},
		{name: "rejected", err: Rejected(http.StatusUnsupportedMediaType, "file1", "Only images are allowed"), exp: http.StatusUnsupportedMediaType},
		{name: "filesystem", err: Filesystem("move", "/tmp/x", fs.ErrPermission), exp: http.StatusInternalServerError},
		{name: "wrapped", err: errors.Join(errors.New("ctx"), BadRequest("bad", nil)), exp: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.exp, StatusOf(tt.err))
		})
	}
}

func TestErrorCauseAndMetadata(t *testing.T) {
	t.Parallel()

	err := Filesystem("delete", "/staging/abc", fs.ErrNotExist)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, KindFilesystem, KindOf(err))
	assert.Equal(t, "file delete failed", MessageOf(err))
	assert.Equal(t, map[string]any{"op": "delete", "path": "/staging/abc"}, err.Metadata())

	more := err.With("path", "/other")
	assert.Equal(t, "/other", more.Metadata()["path"])
	assert.Equal(t, "/staging/abc", err.Metadata()["path"])
}

func TestLogFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	Log(logger, Store("regenerate", errors.New("conn refused")))

	out := buf.String()
	require.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="session regenerate failed"`)
	assert.Contains(t, out, "kind=store")
	assert.Contains(t, out, `cause="conn refused"`)
	assert.Contains(t, out, "op=regenerate")

	buf.Reset()
	Log(logger, NotFound("/missing"))
	assert.Contains(t, buf.String(), "level=WARN")
}
