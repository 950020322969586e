package views

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesEveryPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	for _, name := range []string{
		"index", "examples-index", "simple-code", "form-example",
		"upload-files", "set-cookie", "set-session", "error",
	} {
		assert.True(t, r.Has(name), name)
	}
	assert.False(t, r.Has("layout"))
}

func TestRenderEscapesAndUsesLayout(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	data := struct {
		Page
		Status  int
		Message string
		Detail  string
	}{
		Page:    Page{Title: "Oops"},
		Status:  500,
		Message: "<script>bad</script>",
	}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "error", data))
	out := buf.String()
	assert.Contains(t, out, "<title>Oops</title>")
	assert.Contains(t, out, "&lt;script&gt;bad&lt;/script&gt;")
	assert.NotContains(t, out, "error-detail")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Error(t, r.Render(&buf, "missing", nil))
}

func TestRenderFailureWritesNothing(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	// set-session needs SessionID; a plain string has no such field
	rec := httptest.NewRecorder()
	err = r.Instance("set-session", "not a page").Render(rec)
	require.Error(t, err)
	assert.Zero(t, rec.Body.Len())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
}
