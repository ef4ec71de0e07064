// Package detection runs the voice detection pipeline for one request:
// admission, result cache, normalisation, feature extraction and ensemble
// classification.
//
// A request moves through Admitted, then either CacheHit or
// Normalized → FeaturesExtracted → Classified, and is Returned; it can be
// Rejected at admission or Failed at any later stage. Failures are reported
// as *Error with a caller-visible Kind. Nothing is retried.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/haivivi/voiceguard/go/pkg/cache"
	"github.com/haivivi/voiceguard/go/pkg/classifier"
	"github.com/haivivi/voiceguard/go/pkg/features"
	"github.com/haivivi/voiceguard/go/pkg/ratelimit"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

// DefaultTimeout is the shortest default deadline for one request's
// pipeline.
const DefaultTimeout = 5 * time.Second

// TimeoutFor returns the default deadline for clips up to maxDuration:
// DefaultTimeout, or a fifth of maxDuration when that is longer.
func TimeoutFor(maxDuration time.Duration) time.Duration {
	return max(DefaultTimeout, maxDuration/5)
}

// Request is one detection call.
type Request struct {
	Audio      []byte
	Language   string
	Credential string
}

// Result is a detection outcome. It is what the cache stores.
type Result struct {
	Prediction           classifier.Label `json:"prediction" msgpack:"prediction"`
	Confidence           float64          `json:"confidence" msgpack:"confidence"`
	Probability          float64          `json:"probability" msgpack:"probability"`
	Language             string           `json:"language" msgpack:"language"`
	ProcessingTimeMS     float64          `json:"processing_time_ms" msgpack:"processing_time_ms"`
	AudioDurationSeconds float64          `json:"audio_duration_seconds" msgpack:"audio_duration_seconds"`
	ModelVersion         string           `json:"model_version" msgpack:"model_version"`

	// Cached is set when the result came from the cache.
	Cached bool `json:"cached" msgpack:"-"`
}

// Outcome is a successful Detect.
type Outcome struct {
	Result Result

	// Quota is the caller's remaining budget after this call. Zero when no
	// limiter is configured.
	Quota ratelimit.Quota
}

// Config configures a Service.
type Config struct {
	// Normalizer, Extractor and Model are required.
	Normalizer *waveform.Normalizer
	Extractor  *features.Extractor
	Model      *classifier.Holder

	// Cache memoises results. Nil disables caching.
	Cache *cache.Cache[Result]

	// Limiter gates requests per credential. Nil admits everything.
	Limiter *ratelimit.Limiter

	// Timeout bounds normalisation, extraction and classification.
	// Defaults to TimeoutFor the normalizer's MaxDuration.
	Timeout time.Duration

	// Metrics records Prometheus metrics. Nil disables them.
	Metrics *Metrics

	Logger *slog.Logger
}

// Service runs detection requests. It is safe for concurrent use.
type Service struct {
	cfg      Config
	log      *slog.Logger
	inflight singleflight.Group
}

// New validates cfg and returns a service.
func New(cfg Config) (*Service, error) {
	if cfg.Normalizer == nil || cfg.Extractor == nil || cfg.Model == nil {
		return nil, errors.New("detection: normalizer, extractor and model are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = TimeoutFor(cfg.Normalizer.Config().MaxDuration)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, log: log}, nil
}

// CheckModel verifies that the loaded model matches the extractor's
// feature layout.
func (s *Service) CheckModel() error {
	e := s.cfg.Model.Load()
	if e == nil {
		return classifier.ErrModelNotLoaded
	}
	if err := s.cfg.Extractor.Schema().Check(e.Features()); err != nil {
		return fmt.Errorf("%w: %w", classifier.ErrDimensionMismatch, err)
	}
	return nil
}

// ModelVersion returns the loaded model's version, or "" when none.
func (s *Service) ModelVersion() string {
	if e := s.cfg.Model.Load(); e != nil {
		return e.Version()
	}
	return ""
}

// Limiter returns the configured limiter, possibly nil.
func (s *Service) Limiter() *ratelimit.Limiter { return s.cfg.Limiter }

// Detect runs one request. Errors are *Error.
func (s *Service) Detect(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	out, err := s.detect(ctx, req, start)
	if err != nil {
		e := wrap(err)
		s.cfg.Metrics.request(string(e.Kind))
		level := slog.LevelInfo
		if !e.Kind.IsInput() && e.Kind != KindRateLimited {
			level = slog.LevelError
		}
		s.log.Log(ctx, level, "detection failed",
			"kind", e.Kind,
			"credential", ratelimit.Redact(req.Credential),
			"language", req.Language,
			"error", e.Err)
		return out, e
	}
	s.cfg.Metrics.request("ok")
	s.log.Info("detection complete",
		"prediction", out.Result.Prediction,
		"confidence", out.Result.Confidence,
		"language", out.Result.Language,
		"cached", out.Result.Cached,
		"ms", out.Result.ProcessingTimeMS)
	return out, nil
}

func (s *Service) detect(ctx context.Context, req Request, start time.Time) (Outcome, error) {
	var out Outcome
	if !ValidLanguage(req.Language) {
		return out, &Error{Kind: KindInvalidLanguage, Message: fmt.Sprintf("unsupported language %q", req.Language)}
	}

	if s.cfg.Limiter != nil {
		d, err := s.cfg.Limiter.Admit(ctx, req.Credential)
		out.Quota = d.Quota
		switch {
		case errors.Is(err, ratelimit.ErrStoreUnavailable):
			return out, &Error{Kind: KindRateLimited, Message: "rate limiter unavailable", RetryAfter: d.RetryAfter, Err: err}
		case err != nil:
			return out, err
		case !d.Allowed:
			return out, &Error{
				Kind:       KindRateLimited,
				Message:    fmt.Sprintf("rate limit exceeded, retry in %s", d.RetryAfter.Round(time.Second)),
				RetryAfter: d.RetryAfter,
				Quota:      d.Quota,
			}
		}
	}

	if len(req.Audio) == 0 {
		return out, &Error{Kind: KindEmptyAudio, Message: "audio is empty", Err: waveform.ErrEmptyAudio}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	key := cache.Key(req.Audio, req.Language)
	ch := s.inflight.DoChan(key, func() (any, error) {
		// Shared by every caller waiting on key, so it must not die with
		// the first caller's context.
		cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		defer ccancel()
		return s.resolve(cctx, key, req)
	})

	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return out, r.Err
		}
		out.Result = r.Val.(Result)
	}
	if out.Result.Cached {
		out.Result.ProcessingTimeMS = msSince(start)
	}
	return out, nil
}

// resolve returns the cached result for key or computes and stores it.
func (s *Service) resolve(ctx context.Context, key string, req Request) (Result, error) {
	if s.cfg.Cache != nil {
		r, ok, err := s.cfg.Cache.Get(ctx, key)
		switch {
		case err != nil:
			s.cfg.Metrics.cacheLookup("error")
			s.log.Warn("cache lookup failed, computing", "error", err)
		case ok:
			s.cfg.Metrics.cacheLookup("hit")
			r.Cached = true
			return r, nil
		default:
			s.cfg.Metrics.cacheLookup("miss")
		}
	}

	r, err := s.compute(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Put(ctx, key, r); err != nil {
			s.log.Warn("cache store failed", "error", err)
		}
	}
	return r, nil
}

func (s *Service) compute(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	w, err := s.cfg.Normalizer.Normalize(ctx, req.Audio)
	if err != nil {
		return Result{}, err
	}
	t1 := time.Now()
	s.cfg.Metrics.stage("normalize", t1.Sub(start).Seconds())

	vec, err := s.cfg.Extractor.Extract(ctx, w)
	if err != nil {
		return Result{}, err
	}
	t2 := time.Now()
	s.cfg.Metrics.stage("extract", t2.Sub(t1).Seconds())

	pred, err := s.cfg.Model.Classify(vec)
	if err != nil {
		return Result{}, err
	}
	s.cfg.Metrics.stage("classify", time.Since(t2).Seconds())
	s.cfg.Metrics.prediction(string(pred.Label), req.Language, pred.Confidence)

	s.log.Debug("classified",
		"probability", pred.Probability,
		"members", pred.Members,
		"model", pred.ModelVersion)

	return Result{
		Prediction:           pred.Label,
		Confidence:           pred.Confidence,
		Probability:          pred.Probability,
		Language:             req.Language,
		ProcessingTimeMS:     msSince(start),
		AudioDurationSeconds: w.SourceDuration,
		ModelVersion:         pred.ModelVersion,
	}, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
