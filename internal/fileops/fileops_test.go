package fileops

import (
	"context"
	"fmt"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lo1server/internal/httperr"
)

func newFS(t *testing.T) vfs.FileSystem {
	t.Helper()
	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll("/staging", 0o755))
	require.NoError(t, fs.MkdirAll("/images", 0o755))
	return fs
}

func exists(fs vfs.FileSystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

func TestRunAppliesAllOps(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	var ops []Op
	for i := range 10 {
		src := fmt.Sprintf("/staging/f%d", i)
		require.NoError(t, vfs.WriteFile(fs, src, []byte("data"), 0o644))
		if i%2 == 0 {
			ops = append(ops, Op{Type: Remove, Src: src})
		} else {
			ops = append(ops, Op{Type: Move, Src: src, Dst: fmt.Sprintf("/images/f%d", i)})
		}
	}

	d := NewDispatcher(fs, 3, nil)
	require.NoError(t, d.Run(context.Background(), ops))

	for i := range 10 {
		assert.False(t, exists(fs, fmt.Sprintf("/staging/f%d", i)))
		assert.Equal(t, i%2 == 1, exists(fs, fmt.Sprintf("/images/f%d", i)))
	}
}

func TestRunWaitsForSiblingsOnFailure(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	require.NoError(t, vfs.WriteFile(fs, "/staging/ok", []byte("data"), 0o644))

	d := NewDispatcher(fs, 1, nil)
	err := d.Run(context.Background(), []Op{
		{Type: Remove, Src: "/staging/missing"},
		{Type: Move, Src: "/staging/ok", Dst: "/images/ok"},
	})
	require.Error(t, err)
	assert.Equal(t, httperr.KindFilesystem, httperr.KindOf(err))
	assert.True(t, exists(fs, "/images/ok"))
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(newFS(t), 0, nil)
	assert.NoError(t, d.Run(context.Background(), nil))
}
