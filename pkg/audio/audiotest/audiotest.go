// Package audiotest builds deterministic audio fixtures for tests.
package audiotest

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV encodes interleaved samples in [-1, 1] as a 16-bit PCM wav file and
// returns its bytes.
func WAV(t testing.TB, samples []float64, sampleRate, channels int) []byte {
	t.Helper()
	return encode(t, samples, sampleRate, channels, 16)
}

// WAV24 is WAV with 24-bit samples.
func WAV24(t testing.TB, samples []float64, sampleRate, channels int) []byte {
	t.Helper()
	return encode(t, samples, sampleRate, channels, 24)
}

func encode(t testing.TB, samples []float64, sampleRate, channels, bitDepth int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}

	scale := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * scale))
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return out
}

// Sine returns a mono sine tone.
func Sine(freq float64, sampleRate int, seconds, amp float64) []float64 {
	n := int(math.Round(seconds * float64(sampleRate)))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Silence returns n seconds of zeros.
func Silence(sampleRate int, seconds float64) []float64 {
	return make([]float64, int(math.Round(seconds*float64(sampleRate))))
}

// Noise returns seeded uniform white noise.
func Noise(sampleRate int, seconds, amp float64, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := int(math.Round(seconds * float64(sampleRate)))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * (2*r.Float64() - 1)
	}
	return out
}

// Voiced returns a harmonic-rich tone around f0 with slow vibrato, a rough
// stand-in for sustained speech.
func Voiced(f0 float64, sampleRate int, seconds, amp float64) []float64 {
	n := int(math.Round(seconds * float64(sampleRate)))
	out := make([]float64, n)
	var phase float64
	for i := range out {
		t := float64(i) / float64(sampleRate)
		f := f0 * (1 + 0.02*math.Sin(2*math.Pi*5*t))
		phase += 2 * math.Pi * f / float64(sampleRate)
		var v float64
		for h := 1; h <= 6; h++ {
			v += math.Sin(float64(h)*phase) / float64(h)
		}
		out[i] = amp * v / 2.45
	}
	return out
}

// Speechlike alternates voiced bursts and pauses.
func Speechlike(sampleRate int, bursts int, burst, pause float64) []float64 {
	var out []float64
	for i := 0; i < bursts; i++ {
		out = append(out, Voiced(120+float64(i%3)*20, sampleRate, burst, 0.6)...)
		if i < bursts-1 {
			out = append(out, Silence(sampleRate, pause)...)
		}
	}
	return out
}

// Concat joins signals.
func Concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Interleave joins equal-length channel signals into one interleaved slice.
func Interleave(channels ...[]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	out := make([]float64, n*len(channels))
	for i := 0; i < n; i++ {
		for c, ch := range channels {
			out[i*len(channels)+c] = ch[i]
		}
	}
	return out
}
