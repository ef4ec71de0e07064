package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/voiceguard/go/pkg/cli"
	"github.com/haivivi/voiceguard/go/pkg/features"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

var (
	featuresFile   string
	featuresFamily string
)

var featuresCmd = &cobra.Command{
	Use:   "features -f <file>",
	Short: "Print the feature vector of a local audio file",
	Long: `Normalise a WAV or MP3 file and print its feature vector.

Use --family to restrict output to one group: spectral, cepstral,
prosodic, voice_quality, temporal or chroma.

Examples:
  voiceguard features -f sample.wav
  voiceguard features -f sample.wav --family prosodic --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		audio, err := readAudio(featuresFile, cfg.Server.MaxUploadBytes)
		if err != nil {
			return err
		}

		n := waveform.New(cfg.NormalizerConfig())
		e := features.New(cfg.ExtractorConfig())
		w, err := n.Normalize(cmd.Context(), audio)
		if err != nil {
			return err
		}
		v, err := e.Extract(cmd.Context(), w)
		if err != nil {
			return err
		}
		report, err := newFeatureReport(e.Schema(), v, featuresFamily)
		if err != nil {
			return err
		}
		report.DurationSeconds = w.Seconds()
		return output(report)
	},
}

// featureValue is one named scalar.
type featureValue struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// featureReport is the printable feature vector.
type featureReport struct {
	Schema          string         `json:"schema" yaml:"schema"`
	DurationSeconds float64        `json:"duration_seconds" yaml:"duration_seconds"`
	Family          string         `json:"family,omitempty" yaml:"family,omitempty"`
	Features        []featureValue `json:"features" yaml:"features"`
}

func newFeatureReport(s features.Schema, v features.Vector, family string) (*featureReport, error) {
	lo, hi := 0, s.Len()
	if family != "" {
		f, ok := s.Field(family)
		if !ok {
			return nil, fmt.Errorf("unknown feature family %q", family)
		}
		lo, hi = f.Offset, f.Offset+f.Length
	}
	r := &featureReport{Schema: s.Fingerprint(), Family: family}
	for i := lo; i < hi; i++ {
		r.Features = append(r.Features, featureValue{Name: s.Names[i], Value: v[i]})
	}
	return r, nil
}

func (r *featureReport) Card() cli.Card {
	c := cli.Card{Title: "features", Status: strconv.Itoa(len(r.Features))}
	c.Add("schema", r.Schema)
	c.Add("duration", fmt.Sprintf("%.2fs", r.DurationSeconds))
	for _, f := range r.Features {
		c.Add(f.Name, strconv.FormatFloat(f.Value, 'g', 6, 64))
	}
	return c
}

func init() {
	featuresCmd.Flags().StringVarP(&featuresFile, "file", "f", "", "audio file (WAV or MP3), '-' for stdin")
	featuresCmd.Flags().StringVar(&featuresFamily, "family", "", "only print one feature family")
	rootCmd.AddCommand(featuresCmd)
}
