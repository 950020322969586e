// Package fileops runs batches of filesystem deletes and moves concurrently
// and waits for every one of them before returning.
package fileops

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"golang.org/x/sync/errgroup"

	"lo1server/internal/httperr"
)

type OpType string

const (
	Remove OpType = "delete"
	Move   OpType = "move"
)

// Op is one filesystem mutation. Dst is only used by Move.
type Op struct {
	Type OpType
	Src  string
	Dst  string
}

// Dispatcher executes batches of Ops with a bounded number of workers.
type Dispatcher struct {
	fs      vfs.FileSystem
	workers int
	logger  *slog.Logger
}

const defaultWorkers = 4

// NewDispatcher returns a dispatcher over fs running at most workers ops at a
// time per batch.
func NewDispatcher(fs vfs.FileSystem, workers int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{fs: fs, workers: workers, logger: logger}
}

// FS returns the filesystem ops are applied to.
func (d *Dispatcher) FS() vfs.FileSystem {
	return d.fs
}

// Run applies every op and returns once all of them have finished. Ops are
// not cancelled when a sibling fails: a delete or move that already started is
// allowed to complete so the disk state matches what gets reported. The first
// failure is returned as an httperr filesystem error.
func (d *Dispatcher) Run(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(d.workers)
	for _, op := range ops {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return httperr.Filesystem(string(op.Type), op.Src, err)
			}
			return d.apply(op)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) apply(op Op) error {
	switch op.Type {
	case Remove:
		if err := d.fs.Remove(op.Src); err != nil {
			return httperr.Filesystem(string(op.Type), op.Src, err)
		}
		d.logger.Debug("file removed", "path", op.Src)
	case Move:
		if err := d.move(op.Src, op.Dst); err != nil {
			return httperr.Filesystem(string(op.Type), op.Src, err).With("dst", op.Dst)
		}
		d.logger.Debug("file moved", "from", op.Src, "to", op.Dst)
	default:
		return httperr.Internal("unknown file operation", errors.New(string(op.Type)))
	}
	return nil
}

// move renames src to dst, falling back to copy+remove when the two paths
// live on different devices.
func (d *Dispatcher) move(src, dst string) error {
	err := d.fs.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := d.copyFile(src, dst); err != nil {
		return err
	}
	return d.fs.Remove(src)
}

func (d *Dispatcher) copyFile(src, dst string) error {
	in, err := d.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := d.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = d.fs.Remove(dst)
		return err
	}
	return out.Close()
}
