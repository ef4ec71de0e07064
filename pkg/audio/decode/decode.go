// Package decode turns encoded audio bytes into floating point PCM.
//
// Supported containers are RIFF/WAVE (8, 16, 24 and 32-bit integer PCM and
// 32-bit IEEE float) and MPEG-1/2 Layer III. The container is detected from
// the leading bytes, never from a file name.
package decode

import (
	"errors"
	"fmt"
	"time"

	"github.com/h2non/filetype"
)

// Sentinel errors.
var (
	// ErrUnsupportedFormat is returned when the bytes are not a known container.
	ErrUnsupportedFormat = errors.New("decode: unsupported audio format")

	// ErrMalformed is returned when the container is recognised but the
	// payload cannot be decoded.
	ErrMalformed = errors.New("decode: malformed audio")
)

// Format identifies an audio container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
)

// Clip is decoded PCM audio. Samples are interleaved by channel and scaled
// to [-1, 1].
type Clip struct {
	Format     Format
	SampleRate int
	Channels   int
	Samples    []float64
}

// Frames returns the number of sample frames (samples per channel).
func (c *Clip) Frames() int {
	if c == nil || c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the clip length at its source sample rate.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.Frames()) / float64(c.SampleRate) * float64(time.Second))
}

// Seconds returns the clip length in seconds at its source sample rate.
func (c *Clip) Seconds() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// Mono downmixes the clip by averaging all channels of each frame.
func (c *Clip) Mono() []float64 {
	n := c.Frames()
	if c.Channels == 1 {
		out := make([]float64, n)
		copy(out, c.Samples[:n])
		return out
	}
	out := make([]float64, n)
	inv := 1 / float64(c.Channels)
	for i := 0; i < n; i++ {
		var sum float64
		base := i * c.Channels
		for ch := 0; ch < c.Channels; ch++ {
			sum += c.Samples[base+ch]
		}
		out[i] = sum * inv
	}
	return out
}

// Sniff detects the container of data.
func Sniff(data []byte) Format {
	kind, err := filetype.Match(data)
	if err == nil {
		switch kind.Extension {
		case "wav":
			return FormatWAV
		case "mp3":
			return FormatMP3
		}
	}
	// filetype only knows ID3-tagged and 0xFFFB streams; accept any MPEG
	// audio frame sync for Layer III.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && (data[1]>>1)&0x03 == 0x01 {
		return FormatMP3
	}
	return FormatUnknown
}

// Decode sniffs and decodes data. A recognised container with no audio
// frames yields a Clip with zero samples and no error.
func Decode(data []byte) (*Clip, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}
	switch Sniff(data) {
	case FormatWAV:
		return DecodeWAV(data)
	case FormatMP3:
		return DecodeMP3(data)
	default:
		return nil, ErrUnsupportedFormat
	}
}
