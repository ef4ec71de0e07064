package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/haivivi/voiceguard/go/pkg/storage"
)

// Holder publishes the current Ensemble. Readers never block; Store swaps
// the model atomically so in-flight requests finish on the old one.
type Holder struct {
	cur atomic.Pointer[Ensemble]
}

// NewHolder returns a holder serving e, which may be nil.
func NewHolder(e *Ensemble) *Holder {
	h := &Holder{}
	if e != nil {
		h.cur.Store(e)
	}
	return h
}

// Load returns the current ensemble or nil.
func (h *Holder) Load() *Ensemble { return h.cur.Load() }

// Store replaces the current ensemble.
func (h *Holder) Store(e *Ensemble) { h.cur.Store(e) }

// Classify scores x with the current ensemble.
func (h *Holder) Classify(x []float64) (Prediction, error) {
	e := h.cur.Load()
	if e == nil {
		return Prediction{}, ErrModelNotLoaded
	}
	return e.Classify(x)
}

// Loader reads bundles from local disk or S3 and builds ensembles.
type Loader struct {
	// NewS3Client is used for s3:// paths. Nil disables S3.
	NewS3Client func() storage.S3Client

	// Check validates the bundle's feature names against the extractor.
	// A non-nil error rejects the bundle.
	Check func(names []string) error

	Logger *slog.Logger
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// ReadBundle fetches and decodes the bundle at loc.
func (l *Loader) ReadBundle(ctx context.Context, loc string) (*Bundle, error) {
	fs, name, err := storage.Open(loc, l.NewS3Client)
	if err != nil {
		return nil, err
	}
	data, err := storage.ReadAll(ctx, fs, name, 0)
	if err != nil {
		return nil, fmt.Errorf("classifier: read %s: %w", loc, err)
	}
	return DecodeBundle(data, FormatFromPath(name))
}

// Load reads, checks and builds the bundle at loc.
func (l *Loader) Load(ctx context.Context, loc string) (*Ensemble, error) {
	b, err := l.ReadBundle(ctx, loc)
	if err != nil {
		return nil, err
	}
	e, err := l.Build(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	l.logger().Info("model loaded", "path", loc, "version", e.Version(), "members", len(b.Members))
	return e, nil
}

// Build checks b's feature names and compiles it.
func (l *Loader) Build(b *Bundle) (*Ensemble, error) {
	if l.Check != nil {
		if err := l.Check(b.Features); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// LoadDefault loads loc, or the heuristic bundle over features when loc is
// empty.
func (l *Loader) LoadDefault(ctx context.Context, loc string, features []string) (*Ensemble, error) {
	if loc != "" {
		return l.Load(ctx, loc)
	}
	l.logger().Warn("no model configured, using heuristic scorer")
	return l.Build(HeuristicBundle(features))
}
