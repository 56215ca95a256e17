package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/zapcourier/mediakit/internal/metrics"
	"github.com/zapcourier/mediakit/internal/scratch"
)

// Strategy is one interchangeable acquisition method. Acquire must write the
// stream to dest.Path and fill in the RawMedia; it never reads the file back
// into memory. A strategy that is not usable on this host reports
// Available() == false and is skipped without an attempt.
type Strategy interface {
	Name() string
	Available() bool
	Acquire(ctx context.Context, ref Reference, req Request, dest scratch.Handle) (*RawMedia, error)
}

// Acquirer walks an ordered strategy chain and short-circuits on the first
// success. Strategy failures are swallowed into the attempt log; only a
// fully exhausted chain or a policy violation reaches the caller.
type Acquirer struct {
	strategies []Strategy
	dir        *scratch.Dir
	log        *slog.Logger
}

func NewAcquirer(dir *scratch.Dir, log *slog.Logger, strategies ...Strategy) *Acquirer {
	if log == nil {
		log = slog.Default()
	}
	return &Acquirer{strategies: strategies, dir: dir, log: log}
}

func extensionFor(kind Kind) string {
	if kind == KindAudio {
		return "m4a"
	}
	return "mp4"
}

// Acquire resolves the request input and runs the chain. On success the
// returned release func must be deferred by the caller; it removes the
// downloaded file from scratch space.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (*RawMedia, func(), error) {
	ref, err := ParseReference(req.Input)
	if err != nil {
		return nil, nil, err
	}

	var attempts []Attempt

	for _, s := range a.strategies {
		if !s.Available() {
			a.log.Debug("acquisition strategy unavailable", "strategy", s.Name())
			continue
		}

		dest, release := a.dir.Scoped(extensionFor(req.Kind))
		media, err := s.Acquire(ctx, ref, req, dest)
		if err != nil {
			release()
			metrics.AcquisitionAttemptsTotal.WithLabelValues(s.Name(), "error").Inc()
			a.log.Warn("acquisition strategy failed",
				"strategy", s.Name(), "kind", string(req.Kind), "error", err)
			attempts = append(attempts, Attempt{Strategy: s.Name(), Err: err})
			continue
		}

		if err := a.checkSize(media, req); err != nil {
			release()
			metrics.AcquisitionAttemptsTotal.WithLabelValues(s.Name(), "too_large").Inc()
			return nil, nil, err
		}

		metrics.AcquisitionAttemptsTotal.WithLabelValues(s.Name(), "ok").Inc()
		a.log.Info("media acquired",
			"strategy", s.Name(), "kind", string(req.Kind), "title", media.Title)
		return media, release, nil
	}

	return nil, nil, &ChainError{Attempts: attempts}
}

// checkSize enforces the post-download cap by stat, before any bytes are
// read into memory.
func (a *Acquirer) checkSize(media *RawMedia, req Request) error {
	if req.MaxBytes <= 0 {
		return nil
	}
	info, err := os.Stat(media.Path)
	if err != nil {
		return fmt.Errorf("stat downloaded file: %w", err)
	}
	if info.Size() > req.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrSizeExceeded, info.Size(), req.MaxBytes)
	}
	return nil
}
