// Package cli provides shared plumbing for the souschef command-line tool.
//
// This package includes:
//   - Configuration management (named contexts under ~/.souschef)
//   - Output formatting (JSON, YAML, raw) with optional jq filtering
//   - Request file loading (YAML/JSON)
//   - Terminal frame rendering helpers
//
// Configuration supports multiple contexts similar to kubectl, so one binary
// can talk to several kitchens.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig()
//
//	ctx, err := cfg.GetCurrentContext()
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    JQ:     ".timers[].id",
//	})
package cli
