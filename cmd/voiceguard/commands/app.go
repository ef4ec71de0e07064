package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/haivivi/voiceguard/go/cmd/voiceguard/internal/config"
	"github.com/haivivi/voiceguard/go/pkg/cache"
	"github.com/haivivi/voiceguard/go/pkg/classifier"
	"github.com/haivivi/voiceguard/go/pkg/cli"
	"github.com/haivivi/voiceguard/go/pkg/detection"
	"github.com/haivivi/voiceguard/go/pkg/features"
	"github.com/haivivi/voiceguard/go/pkg/kv"
	"github.com/haivivi/voiceguard/go/pkg/ratelimit"
	"github.com/haivivi/voiceguard/go/pkg/storage"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

// appOptions selects the optional parts of an app.
type appOptions struct {
	// Limit enables per-credential rate limiting.
	Limit bool

	// Metrics registers Prometheus collectors.
	Metrics bool
}

// app is the wired detection stack.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	normalizer *waveform.Normalizer
	extractor  *features.Extractor
	loader     *classifier.Loader
	model      *classifier.Holder
	store      kv.Store
	limiter    *ratelimit.Limiter
	limitStore ratelimit.Store
	registry   *prometheus.Registry
	service    *detection.Service

	closers []func() error
}

// newApp wires the stack described by cfg.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: slog.Default()}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	nc := cfg.NormalizerConfig()
	nc.Logger = a.log.With("component", "waveform")
	a.normalizer = waveform.New(nc)

	fc := cfg.ExtractorConfig()
	fc.Logger = a.log.With("component", "features")
	a.extractor = features.New(fc)

	schema := a.extractor.Schema()
	a.loader = &classifier.Loader{
		NewS3Client: func() storage.S3Client { return storage.NewS3Client(cfg.Model.S3) },
		Check:       schema.Check,
		Logger:      a.log.With("component", "classifier"),
	}
	e, err := a.loader.LoadDefault(ctx, cfg.Model.Path, schema.Names)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	a.model = classifier.NewHolder(e)

	var rdb *redis.Client
	if cfg.Cache.Backend == config.BackendRedis || (opts.Limit && cfg.RateLimit.Backend == config.BackendRedis) {
		ro, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis.url: %w", err)
		}
		rdb = redis.NewClient(ro)
		a.closers = append(a.closers, rdb.Close)
	}

	c, err := a.openCache(rdb)
	if err != nil {
		return nil, err
	}

	if opts.Limit && cfg.RateLimit.Backend != config.BackendNone {
		switch cfg.RateLimit.Backend {
		case config.BackendRedis:
			a.limitStore = ratelimit.NewRedis(rdb, cfg.RateLimit.Prefix)
		default:
			a.limitStore = ratelimit.NewMemory()
		}
		a.limiter = ratelimit.New(ratelimit.Config{
			Store:    a.limitStore,
			Limits:   cfg.Limits(),
			FailOpen: cfg.RateLimit.FailOpen,
			Logger:   a.log.With("component", "ratelimit"),
		})
	}

	var metrics *detection.Metrics
	if opts.Metrics {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = detection.NewMetrics(a.registry)
	}

	a.service, err = detection.New(detection.Config{
		Normalizer: a.normalizer,
		Extractor:  a.extractor,
		Model:      a.model,
		Cache:      c,
		Limiter:    a.limiter,
		Timeout:    cfg.Server.RequestTimeout.Duration(),
		Metrics:    metrics,
		Logger:     a.log.With("component", "detection"),
	})
	if err != nil {
		return nil, err
	}
	if err := a.service.CheckModel(); err != nil {
		return nil, err
	}
	ready = true
	return a, nil
}

func (a *app) openCache(rdb *redis.Client) (*cache.Cache[detection.Result], error) {
	var err error
	switch a.cfg.Cache.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendBadger:
		var dir string
		if dir, err = a.cfg.CacheDir(); err == nil {
			dir, err = cli.Ensure(dir)
		}
		if err != nil {
			return nil, fmt.Errorf("cache dir: %w", err)
		}
		a.store, err = kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: a.log})
		if err != nil {
			return nil, fmt.Errorf("open badger cache: %w", err)
		}
	case config.BackendRedis:
		a.store = kv.NewRedis(rdb, &kv.Options{Prefix: kv.Key{config.AppName}})
	default:
		a.store = kv.NewMemory(nil)
	}
	a.closers = append(a.closers, a.store.Close)
	return cache.New[detection.Result](cache.Config{
		Store: a.store,
		TTL:   a.cfg.Cache.TTL.Duration(),
	}), nil
}

// runJanitors drops expired in-process entries until ctx is done.
func (a *app) runJanitors(ctx context.Context) {
	interval := a.cfg.Cache.SweepInterval.Or(5 * time.Minute)
	if m, ok := a.limitStore.(*ratelimit.Memory); ok {
		go m.RunJanitor(ctx, interval, nil)
	}
	if m, ok := a.store.(*kv.Memory); ok {
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if n := m.Sweep(); n > 0 {
						a.log.Debug("cache sweep", "removed", n)
					}
				}
			}
		}()
	}
}

// watchModel reloads the bundle on change until ctx is done.
func (a *app) watchModel(ctx context.Context) {
	if !a.cfg.Model.Watch || a.cfg.Model.Path == "" {
		return
	}
	go func() {
		err := a.loader.Watch(ctx, a.cfg.Model.Path, a.model, a.cfg.Model.Settle.Duration())
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("model watcher stopped", "error", err)
		}
	}()
}

// Close releases stores and clients in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
