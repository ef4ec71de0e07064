package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/voiceguard/go/cmd/voiceguard/internal/config"
	"github.com/haivivi/voiceguard/go/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	formatOutput string
	outputFile   string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voiceguard",
	Short: "Detect AI-generated speech",
	Long: `voiceguard - classify speech recordings as AI_GENERATED or HUMAN.

Audio is decoded, resampled to 22.05 kHz, reduced to a 167-value acoustic
feature vector and scored by a weighted ensemble of classifiers.

Configuration is read from the OS config directory unless --config is set:
  macOS:   ~/Library/Application Support/voiceguard/config.yaml
  Linux:   ~/.config/voiceguard/config.yaml
  Windows: %AppData%/voiceguard/config.yaml

Examples:
  # Run the HTTP API
  voiceguard serve --addr :8000

  # Classify a file locally
  voiceguard detect -f sample.mp3 --language english

  # Convert a YAML model bundle to msgpack
  voiceguard model convert ensemble.yaml ensemble.msgpack`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cli.ParseFormat(formatOutput); err != nil {
			return err
		}
		if cfg, err := GetConfig(); err == nil {
			slog.SetDefault(newLogger(cfg.Log, os.Stderr))
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "table", "output format: table, yaml, json")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write output to file")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	globalConfig, configLoadErr = nil, nil
	cfg, err := config.Load(configPath)
	if err != nil {
		// Commands that need config report it via GetConfig, so that
		// 'voiceguard version' still works with a broken file.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// newLogger builds the process logger from the log section. --verbose
// forces debug level.
func newLogger(lc config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(lc.Level))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// output writes v using the --format and --output flags.
func output(v any) error {
	f, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(v, cli.OutputOptions{Format: f, File: outputFile})
}
