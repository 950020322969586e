package upload

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"lo1server/internal/httperr"
)

const (
	DefaultStagingTTL           = 60 * time.Minute
	DefaultStagingCleanInterval = 15 * time.Minute
)

// Janitor removes staged files left behind by requests that died between
// intake and processing.
type Janitor struct {
	fs     vfs.FileSystem
	dir    string
	ttl    time.Duration
	logger *slog.Logger
}

func NewJanitor(fs vfs.FileSystem, dir string, ttl time.Duration, logger *slog.Logger) *Janitor {
	if ttl <= 0 {
		ttl = DefaultStagingTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{fs: fs, dir: dir, ttl: ttl, logger: logger}
}

// Start sweeps every interval until ctx is done.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStagingCleanInterval
	}
	go j.loop(ctx, interval)
}

func (j *Janitor) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := j.Sweep(now); err != nil {
				httperr.Log(j.logger, err)
			}
		}
	}
}

// Sweep deletes regular files in the staging dir last modified before
// now-ttl and returns how many were removed.
func (j *Janitor) Sweep(now time.Time) (int, error) {
	dir, err := j.fs.Open(j.dir)
	if err != nil {
		return 0, httperr.Filesystem("open", j.dir, err)
	}
	entries, err := dir.Readdir(-1)
	dir.Close()
	if err != nil {
		return 0, httperr.Filesystem("list", j.dir, err)
	}

	cutoff := now.Add(-j.ttl)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !e.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(j.dir, e.Name())
		if err := j.fs.Remove(p); err != nil {
			if !vfs.IsErrNotExist(err) {
				httperr.Log(j.logger, httperr.Filesystem("delete", p, err))
			}
			continue
		}
		removed++
	}
	if removed > 0 {
		j.logger.Info("stale staged files removed", "dir", j.dir, "count", removed)
	}
	return removed, nil
}
