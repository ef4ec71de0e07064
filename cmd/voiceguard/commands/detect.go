package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/voiceguard/go/pkg/classifier"
	"github.com/haivivi/voiceguard/go/pkg/cli"
	"github.com/haivivi/voiceguard/go/pkg/detection"
)

var (
	detectFile     string
	detectLanguage string
)

var detectCmd = &cobra.Command{
	Use:   "detect -f <file>",
	Short: "Classify a local audio file",
	Long: `Classify a local WAV or MP3 file as AI_GENERATED or HUMAN.

The file goes through the same pipeline as the HTTP API, without
authentication or rate limiting. Use '-' to read from stdin.

Examples:
  voiceguard detect -f sample.wav
  voiceguard detect -f sample.mp3 --language hindi --format json
  cat sample.wav | voiceguard detect -f -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		audio, err := readAudio(detectFile, cfg.Server.MaxUploadBytes)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.service.Detect(cmd.Context(), detection.Request{
			Audio:    audio,
			Language: detectLanguage,
		})
		if err != nil {
			return err
		}
		return output(detectView{Result: out.Result, File: detectFile})
	},
}

// detectView is the printable form of a detection result.
type detectView struct {
	detection.Result `yaml:",inline"`
	File             string `json:"file" yaml:"file"`
}

func (v detectView) Card() cli.Card {
	c := cli.Card{
		Title:  "voiceguard",
		Status: string(v.Prediction),
		Alert:  v.Prediction == classifier.LabelAI,
	}
	c.Add("file", v.File)
	c.Add("confidence", cli.FormatPercent(v.Confidence))
	c.Add("p(ai)", fmt.Sprintf("%.4f", v.Probability))
	c.Add("language", v.Language)
	c.Add("duration", fmt.Sprintf("%.2fs", v.AudioDurationSeconds))
	c.Add("processing", cli.FormatMillis(v.ProcessingTimeMS))
	c.Add("model", v.ModelVersion)
	return c
}

func init() {
	detectCmd.Flags().StringVarP(&detectFile, "file", "f", "", "audio file (WAV or MP3), '-' for stdin")
	detectCmd.Flags().StringVar(&detectLanguage, "language", "english",
		"spoken language: tamil, english, hindi, malayalam, telugu")
	rootCmd.AddCommand(detectCmd)
}
