// Package api serves the detection service over HTTP.
//
// Routes:
//
//	POST /detect   JSON {audio_base64, language}, X-API-Key header
//	GET  /health   liveness and model status
//	GET  /         service information
//	GET  /metrics  Prometheus exposition, when a gatherer is configured
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haivivi/voiceguard/go/pkg/detection"
)

// DefaultMaxAudioBytes caps the decoded audio size.
const DefaultMaxAudioBytes = 10 << 20

// Config configures a Server.
type Config struct {
	// Service runs detections. Required.
	Service *detection.Service

	// APIKeys are the accepted X-API-Key values.
	APIKeys []string

	// MaxAudioBytes caps the decoded upload. Defaults to
	// DefaultMaxAudioBytes.
	MaxAudioBytes int

	// Version is reported by / and /health.
	Version string

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	// Now returns the current time for timestamps. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg  Config
	keys map[string]bool
	log  *slog.Logger
	mux  *http.ServeMux
}

// NewServer builds the routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("api: service is required")
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		keys: make(map[string]bool, len(cfg.APIKeys)),
		log:  cfg.Logger,
		mux:  http.NewServeMux(),
	}
	for _, k := range cfg.APIKeys {
		if k != "" {
			s.keys[k] = true
		}
	}
	if len(s.keys) == 0 {
		s.log.Warn("no API keys configured, every /detect call will be rejected")
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /detect", s.handleDetect)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	if s.cfg.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler with request ids and access logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
