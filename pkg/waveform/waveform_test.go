package waveform_test

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/haivivi/voiceguard/go/pkg/audio/audiotest"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

func peak(x []float64) float64 {
	var p float64
	for _, v := range x {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func TestNormalizeResamplesAndScales(t *testing.T) {
	n := waveform.New(waveform.Config{DisableTrim: true})
	raw := audiotest.WAV(t, audiotest.Sine(440, 44100, 2, 0.3), 44100, 1)

	w, err := n.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if w.SampleRate != 22050 {
		t.Fatalf("SampleRate = %d, want 22050", w.SampleRate)
	}
	if len(w.Samples) != 44100 {
		t.Fatalf("len = %d, want 44100", len(w.Samples))
	}
	if math.Abs(w.SourceDuration-2) > 1e-9 {
		t.Fatalf("SourceDuration = %v, want 2", w.SourceDuration)
	}
	if p := peak(w.Samples); math.Abs(p-1) > 1e-12 {
		t.Fatalf("peak = %v, want 1", p)
	}
}

func TestNormalizeDownmixesStereo(t *testing.T) {
	left := audiotest.Sine(200, 22050, 1.5, 0.5)
	right := audiotest.Sine(200, 22050, 1.5, 0.5)
	n := waveform.New(waveform.Config{DisableTrim: true})
	w, err := n.Normalize(context.Background(), audiotest.WAV(t, audiotest.Interleave(left, right), 22050, 2))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(w.Samples) != len(left) {
		t.Fatalf("len = %d, want %d", len(w.Samples), len(left))
	}
}

func TestNormalizeMP3(t *testing.T) {
	raw, err := os.ReadFile("../audio/decode/testdata/speech_22050_mono.mp3")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	const frames = 80 * 576

	w, err := waveform.New(waveform.Config{DisableTrim: true}).Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if w.SampleRate != 22050 || len(w.Samples) != frames {
		t.Fatalf("got %d samples at %d Hz, want %d at 22050 Hz", len(w.Samples), w.SampleRate, frames)
	}
	if want := float64(frames) / 22050; math.Abs(w.SourceDuration-want) > 1e-9 {
		t.Fatalf("SourceDuration = %v, want %v", w.SourceDuration, want)
	}
	if p := peak(w.Samples); math.Abs(p-1) > 1e-12 {
		t.Fatalf("peak = %v, want 1", p)
	}

	trimmed, err := waveform.New(waveform.DefaultConfig()).Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize with trim: %v", err)
	}
	if len(trimmed.Samples) == 0 || len(trimmed.Samples) > frames {
		t.Fatalf("trimmed len = %d, want 1..%d", len(trimmed.Samples), frames)
	}
	if trimmed.SourceDuration != w.SourceDuration {
		t.Fatalf("SourceDuration changed with trimming: %v vs %v", trimmed.SourceDuration, w.SourceDuration)
	}
}

func TestNormalizeDurationBounds(t *testing.T) {
	n := waveform.New(waveform.DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name    string
		seconds float64
		wantErr bool
	}{
		{"too short", 0.5, true},
		{"exact minimum", 1, false},
		{"exact maximum", 60, false},
		{"too long", 61, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := audiotest.WAV(t, audiotest.Sine(300, 8000, tt.seconds, 0.5), 8000, 1)
			_, err := n.Normalize(ctx, raw)
			if tt.wantErr {
				if !errors.Is(err, waveform.ErrInvalidDuration) {
					t.Fatalf("expected ErrInvalidDuration, got %v", err)
				}
				var de *waveform.DurationError
				if !errors.As(err, &de) || math.Abs(de.Seconds-tt.seconds) > 1e-9 {
					t.Fatalf("expected DurationError with %vs, got %v", tt.seconds, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
		})
	}
}

func TestNormalizeEmptyAudio(t *testing.T) {
	n := waveform.New(waveform.DefaultConfig())
	_, err := n.Normalize(context.Background(), audiotest.WAV(t, nil, 22050, 1))
	if !errors.Is(err, waveform.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestNormalizeDecodeError(t *testing.T) {
	n := waveform.New(waveform.DefaultConfig())
	_, err := n.Normalize(context.Background(), []byte("this is not audio at all"))
	if !errors.Is(err, waveform.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestNormalizeSilenceStaysZero(t *testing.T) {
	n := waveform.New(waveform.DefaultConfig())
	w, err := n.Normalize(context.Background(), audiotest.WAV(t, audiotest.Silence(22050, 2), 22050, 1))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(w.Samples) == 0 {
		t.Fatal("silence trimmed to nothing")
	}
	if peak(w.Samples) != 0 {
		t.Fatal("silence gained energy")
	}
}

func TestNormalizeTrimsEdges(t *testing.T) {
	sig := audiotest.Concat(
		audiotest.Silence(22050, 1),
		audiotest.Sine(300, 22050, 1, 0.5),
		audiotest.Silence(22050, 0.5),
		audiotest.Sine(300, 22050, 1, 0.5),
		audiotest.Silence(22050, 1),
	)
	n := waveform.New(waveform.DefaultConfig())
	w, err := n.Normalize(context.Background(), audiotest.WAV(t, sig, 22050, 1))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	// 2.5s of content plus at most a couple of frames either side; the
	// internal 0.5s pause is kept.
	got := w.Seconds()
	if got < 2.45 || got > 2.8 {
		t.Fatalf("trimmed length = %.3fs, want ~2.5s", got)
	}
	if math.Abs(w.SourceDuration-4.5) > 1e-9 {
		t.Fatalf("SourceDuration = %v, want 4.5", w.SourceDuration)
	}
}

func TestNormalizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := waveform.New(waveform.DefaultConfig())
	_, err := n.Normalize(ctx, audiotest.WAV(t, audiotest.Sine(300, 8000, 2, 0.5), 8000, 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTrimAllQuiet(t *testing.T) {
	x := make([]float64, 10000)
	if got := waveform.Trim(x, 30, 2048, 512); len(got) != len(x) {
		t.Fatalf("len = %d, want %d", len(got), len(x))
	}
}

func TestNormalizeCustomDurationBounds(t *testing.T) {
	n := waveform.New(waveform.Config{MinDuration: 2 * time.Second, MaxDuration: 3 * time.Second})
	_, err := n.Normalize(context.Background(), audiotest.WAV(t, audiotest.Sine(300, 8000, 1.5, 0.5), 8000, 1))
	if !errors.Is(err, waveform.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}
