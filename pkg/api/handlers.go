package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/voiceguard/go/pkg/detection"
	"github.com/haivivi/voiceguard/go/pkg/encoding"
	"github.com/haivivi/voiceguard/go/pkg/ratelimit"
)

// DetectRequest is the /detect body.
type DetectRequest struct {
	AudioBase64 encoding.StdBase64Data `json:"audio_base64"`
	Language    string                 `json:"language"`
}

// DetectResponse is the /detect success body.
type DetectResponse struct {
	Prediction           string  `json:"prediction"`
	Confidence           float64 `json:"confidence"`
	Language             string  `json:"language"`
	ProcessingTimeMS     float64 `json:"processing_time_ms"`
	Timestamp            string  `json:"timestamp"`
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`
	ModelVersion         string  `json:"model_version"`
	Cached               bool    `json:"cached"`
	RequestID            string  `json:"request_id,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
	Kind      string `json:"kind,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	Version      string `json:"version"`
	ModelLoaded  bool   `json:"model_loaded"`
	ModelVersion string `json:"model_version,omitempty"`
}

const apiKeyHeader = "X-API-Key"

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(apiKeyHeader)
	if key == "" {
		w.Header().Set("WWW-Authenticate", "ApiKey")
		s.writeError(w, r, http.StatusUnauthorized, "", "API key required. Include X-API-Key header.")
		return
	}
	if !s.keys[key] {
		s.log.Warn("invalid API key", "credential", ratelimit.Redact(key), "remote", r.RemoteAddr)
		s.writeError(w, r, http.StatusForbidden, "", "Invalid API key")
		return
	}

	// Base64 inflates by 4/3; leave room for the JSON envelope.
	limit := int64(s.cfg.MaxAudioBytes)*4/3 + 4096
	var req DetectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "", fmt.Sprintf("Audio exceeds %d MB", s.cfg.MaxAudioBytes>>20))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "", "Invalid request body: "+err.Error())
		return
	}
	if len(req.AudioBase64) > s.cfg.MaxAudioBytes {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "", fmt.Sprintf("Audio exceeds %d MB", s.cfg.MaxAudioBytes>>20))
		return
	}

	out, err := s.cfg.Service.Detect(r.Context(), detection.Request{
		Audio:      req.AudioBase64,
		Language:   req.Language,
		Credential: key,
	})
	if err != nil {
		s.writeDetectionError(w, r, err)
		return
	}

	s.setQuotaHeaders(w, out.Quota)
	res := out.Result
	writeJSON(w, http.StatusOK, DetectResponse{
		Prediction:           string(res.Prediction),
		Confidence:           round(res.Confidence, 3),
		Language:             res.Language,
		ProcessingTimeMS:     round(res.ProcessingTimeMS, 2),
		Timestamp:            s.timestamp(),
		AudioDurationSeconds: round(res.AudioDurationSeconds, 2),
		ModelVersion:         res.ModelVersion,
		Cached:               res.Cached,
		RequestID:            requestID(r),
	})
}

func (s *Server) writeDetectionError(w http.ResponseWriter, r *http.Request, err error) {
	var e *detection.Error
	if !errors.As(err, &e) {
		e = &detection.Error{Kind: detection.KindInternal, Message: "internal error", Err: err}
	}
	if e.Kind == detection.KindRateLimited {
		s.setQuotaHeaders(w, e.Quota)
		secs := int(math.Ceil(e.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(1, secs)))
	}
	s.writeError(w, r, statusOf(e.Kind), e.Kind, e.Message)
}

// statusOf maps an error kind to its HTTP status.
func statusOf(k detection.Kind) int {
	switch k {
	case detection.KindInvalidDuration, detection.KindDecode, detection.KindEmptyAudio, detection.KindInvalidLanguage:
		return http.StatusBadRequest
	case detection.KindInvalidCredential:
		return http.StatusUnauthorized
	case detection.KindFeatureExtraction:
		return http.StatusUnprocessableEntity
	case detection.KindRateLimited:
		return http.StatusTooManyRequests
	case detection.KindTimeout:
		return http.StatusGatewayTimeout
	case detection.KindModelNotLoaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) setQuotaHeaders(w http.ResponseWriter, q ratelimit.Quota) {
	lim := s.cfg.Service.Limiter()
	if lim == nil {
		return
	}
	l := lim.Limits()
	h := w.Header()
	h.Set("X-RateLimit-Limit-Minute", strconv.Itoa(l.PerMinute))
	h.Set("X-RateLimit-Limit-Hour", strconv.Itoa(l.PerHour))
	h.Set("X-RateLimit-Remaining-Minute", strconv.Itoa(q.MinuteRemaining))
	h.Set("X-RateLimit-Remaining-Hour", strconv.Itoa(q.HourRemaining))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	version := s.cfg.Service.ModelVersion()
	resp := HealthResponse{
		Status:       "healthy",
		Timestamp:    s.timestamp(),
		Version:      s.cfg.Version,
		ModelLoaded:  version != "",
		ModelVersion: version,
	}
	status := http.StatusOK
	if !resp.ModelLoaded {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	endpoints := map[string]string{
		"health": "/health",
		"detect": "/detect (POST)",
	}
	if s.cfg.Gatherer != nil {
		endpoints["metrics"] = "/metrics"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":             "AI Voice Detection API",
		"version":             s.cfg.Version,
		"endpoints":           endpoints,
		"supported_languages": detection.Languages,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, kind detection.Kind, detail string) {
	writeJSON(w, status, ErrorResponse{
		Detail:    detail,
		ErrorCode: "ERR_" + strconv.Itoa(status),
		Kind:      string(kind),
		Timestamp: s.timestamp(),
		RequestID: requestID(r),
	})
}

func (s *Server) timestamp() string {
	return s.cfg.Now().UTC().Format(time.RFC3339Nano)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

const requestIDHeader = "X-Request-ID"

// withRequestID tags each request with an id (the caller's, if sent) and
// logs it when the handler returns.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info("http request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
