package decode

import (
	"bytes"
	"fmt"
	"math"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// DecodeWAV decodes a RIFF/WAVE byte slice.
func DecodeWAV(data []byte) (*Clip, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav header", ErrMalformed)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatFloat {
		return nil, fmt.Errorf("%w: wav encoding %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: wav has %d channels at %d Hz", ErrMalformed, d.NumChans, d.SampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	bitDepth := int(d.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	convert, err := wavSampleConverter(d.WavAudioFormat, bitDepth)
	if err != nil {
		return nil, err
	}

	channels := int(d.NumChans)
	n := len(buf.Data) - len(buf.Data)%channels
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = convert(buf.Data[i])
	}
	return &Clip{
		Format:     FormatWAV,
		SampleRate: int(d.SampleRate),
		Channels:   channels,
		Samples:    samples,
	}, nil
}

func wavSampleConverter(format uint16, bitDepth int) (func(int) float64, error) {
	if format == wavFormatFloat {
		if bitDepth != 32 {
			return nil, fmt.Errorf("%w: %d-bit float wav", ErrUnsupportedFormat, bitDepth)
		}
		return func(v int) float64 {
			f := float64(math.Float32frombits(uint32(int32(v))))
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return 0
			}
			return f
		}, nil
	}
	switch bitDepth {
	case 8:
		// 8-bit PCM is unsigned with a midpoint of 128.
		return func(v int) float64 { return float64(v-128) / 128 }, nil
	case 16, 24, 32:
		scale := 1 / float64(int64(1)<<(bitDepth-1))
		return func(v int) float64 { return float64(v) * scale }, nil
	default:
		return nil, fmt.Errorf("%w: %d-bit pcm wav", ErrUnsupportedFormat, bitDepth)
	}
}
