package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces interleaved 16-bit little-endian stereo.
const (
	mp3Channels    = 2
	mp3FrameBytes  = 2 * mp3Channels
	mp3SampleScale = 1.0 / 32768
)

// DecodeMP3 decodes an MPEG Layer III byte slice. A stream truncated inside
// a frame keeps the frames decoded before the damage.
func DecodeMP3(data []byte) (*Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil && len(pcm) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	pcm = pcm[:len(pcm)-len(pcm)%mp3FrameBytes]

	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		samples[i] = float64(s) * mp3SampleScale
	}
	return &Clip{
		Format:     FormatMP3,
		SampleRate: dec.SampleRate(),
		Channels:   mp3Channels,
		Samples:    samples,
	}, nil
}
