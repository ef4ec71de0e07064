package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/voiceguard/go/cmd/voiceguard/internal/config"
	"github.com/haivivi/voiceguard/go/pkg/classifier"
	"github.com/haivivi/voiceguard/go/pkg/cli"
	"github.com/haivivi/voiceguard/go/pkg/features"
	"github.com/haivivi/voiceguard/go/pkg/storage"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect, convert and export classifier bundles",
	Long: `Work with classifier bundles.

A bundle is the scaler, member classifiers and weights of an ensemble. It is
stored as msgpack, YAML or JSON, chosen by file extension, on local disk or
at an s3://bucket/key location.

Examples:
  voiceguard model inspect models/ensemble.msgpack
  voiceguard model convert ensemble.yaml s3://models/v2/ensemble.msgpack
  voiceguard model export-heuristic heuristic.yaml`,
}

var modelInspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Validate a bundle and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		loader := modelLoader(cfg)
		b, err := loader.ReadBundle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		e, err := loader.Build(b)
		if err != nil {
			return err
		}
		return output(newModelReport(args[0], b, e))
	},
}

var modelConvertCmd = &cobra.Command{
	Use:   "convert <src> <dst>",
	Short: "Re-encode a bundle in the format of the destination extension",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		loader := modelLoader(cfg)
		b, err := loader.ReadBundle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if _, err := b.Build(); err != nil {
			return err
		}
		n, err := writeBundle(cmd.Context(), cfg, b, args[1])
		if err != nil {
			return err
		}
		cli.PrintSuccess("%s -> %s (%s)", args[0], args[1], cli.FormatBytes(int64(n)))
		return nil
	},
}

var modelExportHeuristicCmd = &cobra.Command{
	Use:   "export-heuristic <dst>",
	Short: "Write the built-in heuristic bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names := features.New(cfg.ExtractorConfig()).Schema().Names
		n, err := writeBundle(cmd.Context(), cfg, classifier.HeuristicBundle(names), args[0])
		if err != nil {
			return err
		}
		cli.PrintSuccess("wrote %s (%s)", args[0], cli.FormatBytes(int64(n)))
		return nil
	},
}

func modelLoader(cfg *config.Config) *classifier.Loader {
	return &classifier.Loader{
		NewS3Client: func() storage.S3Client { return storage.NewS3Client(cfg.Model.S3) },
		Check:       features.New(cfg.ExtractorConfig()).Schema().Check,
	}
}

func writeBundle(ctx context.Context, cfg *config.Config, b *classifier.Bundle, dst string) (int, error) {
	fs, name, err := storage.Open(dst, func() storage.S3Client { return storage.NewS3Client(cfg.Model.S3) })
	if err != nil {
		return 0, err
	}
	data, err := classifier.EncodeBundle(b, classifier.FormatFromPath(name))
	if err != nil {
		return 0, err
	}
	if err := storage.WriteAll(ctx, fs, name, data); err != nil {
		return 0, fmt.Errorf("write %s: %w", dst, err)
	}
	return len(data), nil
}

// memberSummary describes one ensemble member.
type memberSummary struct {
	Name   string  `json:"name" yaml:"name"`
	Kind   string  `json:"kind" yaml:"kind"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// modelReport is the printable bundle summary.
type modelReport struct {
	Path     string          `json:"path" yaml:"path"`
	Version  string          `json:"version" yaml:"version"`
	Features int             `json:"features" yaml:"features"`
	Members  []memberSummary `json:"members" yaml:"members"`
}

func newModelReport(path string, b *classifier.Bundle, e *classifier.Ensemble) *modelReport {
	weights := e.Weights()
	r := &modelReport{Path: path, Version: e.Version(), Features: e.Dim()}
	for _, m := range b.Members {
		name := m.Name
		if name == "" {
			name = m.Kind
		}
		r.Members = append(r.Members, memberSummary{Name: name, Kind: m.Kind, Weight: weights[name]})
	}
	return r
}

func (r *modelReport) Card() cli.Card {
	c := cli.Card{Title: "model", Status: r.Version}
	c.Add("path", r.Path)
	c.Add("features", strconv.Itoa(r.Features))
	for _, m := range r.Members {
		c.Add(m.Name, fmt.Sprintf("%s  w=%.3f", m.Kind, m.Weight))
	}
	return c
}

func init() {
	modelCmd.AddCommand(modelInspectCmd)
	modelCmd.AddCommand(modelConvertCmd)
	modelCmd.AddCommand(modelExportHeuristicCmd)
	rootCmd.AddCommand(modelCmd)
}
