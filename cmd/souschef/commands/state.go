package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hearthware/souschef/pkg/cli"
)

var (
	flagStateRoom  string
	flagStateWatch bool
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Fetch a room's session state",
	Long: `Fetch the server's session state for a room.

By default prints one snapshot. With --watch, streams every state change
(one snapshot per change) until interrupted.

Examples:
  souschef state --room home
  souschef state --room home --jq '.timers[] | {label, deadline}'
  souschef state --room home --watch -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cliCtx, err := ResolveContext()
		if err != nil {
			return err
		}
		room := flagStateRoom
		if room == "" {
			room = cliCtx.Room
		}
		if room == "" {
			return fmt.Errorf("room is required (flag or context default)")
		}

		ctx := cmd.Context()
		token, err := roomToken(ctx, cliCtx, room)
		if err != nil {
			return err
		}

		if !flagStateWatch {
			path := "/api/state?once=1&room=" + url.QueryEscape(room)
			resp, err := apiDo(ctx, cliCtx, http.MethodGet, path, token, "", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			var snap any
			if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
				return fmt.Errorf("decode state: %w", err)
			}
			return cli.Output(snap, OutputOptions())
		}

		// The SSE stream is long-lived, so skip the client timeout apiDo
		// applies and rely on ctx for cancellation.
		streamURL := strings.TrimSuffix(cliCtx.ServerURL, "/") + "/api/state?room=" + url.QueryEscape(room)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("state stream: %s", resp.Status)
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var snap any
			if err := json.Unmarshal([]byte(data), &snap); err != nil {
				continue
			}
			if err := cli.Output(snap, OutputOptions()); err != nil {
				return err
			}
		}
		return scanner.Err()
	},
}

func init() {
	stateCmd.Flags().StringVar(&flagStateRoom, "room", "", "room name (default from context)")
	stateCmd.Flags().BoolVar(&flagStateWatch, "watch", false, "stream state changes")

	rootCmd.AddCommand(stateCmd)
}
