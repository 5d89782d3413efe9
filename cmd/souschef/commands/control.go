package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthware/souschef/pkg/cli"
	"github.com/hearthware/souschef/pkg/kitchen"
)

var (
	flagControlRoom string
	flagControlFile string
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Inject a control event into a room",
	Long: `Inject a control event into a room's session, as if the agent had
sent it. The request file is YAML or JSON in the wire envelope shape:

  type: timer.set
  pld:
    id: pasta
    label: pasta
    duration_ms: 480000
    auto_start: true

Reads from stdin with '-f -'.

Examples:
  souschef control --room home -f timer.yaml
  cat step.json | souschef control --room home -f -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cliCtx, err := ResolveContext()
		if err != nil {
			return err
		}
		room := flagControlRoom
		if room == "" {
			room = cliCtx.Room
		}
		if room == "" {
			return fmt.Errorf("room is required (flag or context default)")
		}
		if flagControlFile == "" {
			return fmt.Errorf("a request file is required (-f)")
		}

		var raw map[string]any
		if flagControlFile == "-" {
			err = cli.LoadRequestFromStdin(&raw)
		} else {
			err = cli.LoadRequest(flagControlFile, &raw)
		}
		if err != nil {
			return err
		}
		if _, ok := raw["t"]; !ok {
			raw["t"] = time.Now().UnixMilli()
		}

		body, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		// Validate locally before bothering the server.
		if _, err := kitchen.DecodeControlEvent(body); err != nil {
			return fmt.Errorf("invalid control event: %w", err)
		}

		ctx := cmd.Context()
		token, err := roomToken(ctx, cliCtx, room)
		if err != nil {
			return err
		}
		path := "/api/control?room=" + url.QueryEscape(room)
		resp, err := apiDo(ctx, cliCtx, http.MethodPost, path, token, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		resp.Body.Close()

		cli.PrintSuccess("Control %q applied to room %q.", raw["type"], room)
		return nil
	},
}

func init() {
	controlCmd.Flags().StringVar(&flagControlRoom, "room", "", "room name (default from context)")
	controlCmd.Flags().StringVarP(&flagControlFile, "file", "f", "", "request file (YAML or JSON, '-' for stdin)")

	rootCmd.AddCommand(controlCmd)
}
