package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haivivi/voiceguard/go/pkg/classifier"
	"github.com/haivivi/voiceguard/go/pkg/features"
	"github.com/haivivi/voiceguard/go/pkg/ratelimit"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

// Kind is a caller-visible error category.
type Kind string

const (
	KindInvalidDuration   Kind = "invalid_duration"
	KindDecode            Kind = "decode_error"
	KindEmptyAudio        Kind = "empty_audio"
	KindInvalidLanguage   Kind = "invalid_language"
	KindInvalidCredential Kind = "invalid_credential"
	KindRateLimited       Kind = "rate_limited"
	KindTimeout           Kind = "timeout"
	KindModelNotLoaded    Kind = "model_not_loaded"
	KindDimensionMismatch Kind = "feature_dimension_mismatch"
	KindFeatureExtraction Kind = "feature_extraction"
	KindInternal          Kind = "internal"
)

// IsInput reports whether the kind is the caller's fault.
func (k Kind) IsInput() bool {
	switch k {
	case KindInvalidDuration, KindDecode, KindEmptyAudio, KindInvalidLanguage, KindInvalidCredential:
		return true
	}
	return false
}

// Error is the failure returned by Service.Detect. Message is safe to show
// to callers; Err keeps the internal cause for logs.
type Error struct {
	Kind    Kind
	Message string

	// RetryAfter and Quota are set for KindRateLimited.
	RetryAfter time.Duration
	Quota      ratelimit.Quota

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// wrap maps a component error to its caller-visible kind.
func wrap(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var de *waveform.DurationError
	switch {
	case errors.As(err, &de):
		return &Error{Kind: KindInvalidDuration, Message: de.Error(), Err: err}
	case errors.Is(err, waveform.ErrInvalidDuration):
		return &Error{Kind: KindInvalidDuration, Message: "audio duration out of range", Err: err}
	case errors.Is(err, waveform.ErrDecode):
		return &Error{Kind: KindDecode, Message: "audio could not be decoded as WAV or MP3", Err: err}
	case errors.Is(err, waveform.ErrEmptyAudio):
		return &Error{Kind: KindEmptyAudio, Message: "audio contains no samples", Err: err}
	case errors.Is(err, features.ErrEmptyWaveform):
		return &Error{Kind: KindFeatureExtraction, Message: "no signal left to analyse", Err: err}
	case errors.Is(err, classifier.ErrModelNotLoaded):
		return &Error{Kind: KindModelNotLoaded, Message: "model not loaded", Err: err}
	case errors.Is(err, classifier.ErrDimensionMismatch):
		return &Error{Kind: KindDimensionMismatch, Message: "model and feature extractor disagree on vector size", Err: err}
	case errors.Is(err, ratelimit.ErrInvalidCredential):
		return &Error{Kind: KindInvalidCredential, Message: "missing or malformed credential", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "processing deadline exceeded", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, Message: "request cancelled", Err: err}
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
