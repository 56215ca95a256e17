// Package scratch manages request-scoped temporary files inside a single
// configured directory. Every allocation gets a globally unique name, so
// concurrent pipeline calls never collide without any locking.
package scratch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zapcourier/mediakit/internal/metrics"
)

// Handle is a path reservation inside the scratch directory. The file is not
// created by Allocate; whoever writes it owns the bytes, the Dir owns the name.
type Handle struct {
	Path      string
	CreatedAt time.Time
}

type Dir struct {
	root string
	log  *slog.Logger
}

func NewDir(root string, log *slog.Logger) (*Dir, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("scratch: failed to create dir %s: %w", root, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dir{root: root, log: log}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// Allocate reserves a collision-resistant path with the given extension.
// It does not create the file.
func (d *Dir) Allocate(ext string) Handle {
	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
	if ext != "" {
		name = name + "." + ext
	}
	return Handle{
		Path:      filepath.Join(d.root, name),
		CreatedAt: time.Now(),
	}
}

// Release deletes the handle's file. A file that was never written (or is
// already gone) is not an error; any other deletion failure is logged and
// swallowed so cleanup never masks the operation's own result.
func (d *Dir) Release(h Handle) {
	err := os.Remove(h.Path)
	switch {
	case err == nil:
		metrics.ScratchReleasesTotal.WithLabelValues("removed").Inc()
	case os.IsNotExist(err):
		metrics.ScratchReleasesTotal.WithLabelValues("absent").Inc()
	default:
		metrics.ScratchReleasesTotal.WithLabelValues("error").Inc()
		d.log.Warn("scratch release failed", "path", h.Path, "error", err)
	}
}

// Scoped allocates a handle and returns a release func suitable for defer.
// The release runs on every exit path of the caller, which is the only
// sanctioned way to consume scratch space in business logic.
func (d *Dir) Scoped(ext string) (Handle, func()) {
	h := d.Allocate(ext)
	return h, func() { d.Release(h) }
}
