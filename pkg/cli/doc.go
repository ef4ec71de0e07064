// Package cli provides the terminal helpers shared by the voiceguard commands.
//
// This package includes:
//   - Output formatting (YAML, JSON, table cards, raw)
//   - Human readable durations, sizes and percentages
//   - Per-user directories for configuration, cache and models
//
// Example usage:
//
//	card := cli.Card{Title: "voiceguard", Status: "AI_GENERATED"}
//	card.Add("confidence", cli.FormatPercent(0.93))
//	cli.Output(card, cli.OutputOptions{Format: cli.FormatTable})
package cli
