package cook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	clipkg "github.com/hearthware/souschef/pkg/cli"
	"github.com/hearthware/souschef/pkg/roomtoken"
)

var (
	flagRoom       string
	flagIdentity   string
	flagTransport  string
	flagCameraFile string
	flagNoPersist  bool
	flagPlain      bool
)

// resolveContext is supplied by the parent command package so this package
// does not depend on its flag globals.
var resolveContext func() (*clipkg.Context, error)

// Command returns the 'cook' command. resolve supplies the active CLI
// context (server URL, credentials, defaults).
func Command(resolve func() (*clipkg.Context, error)) *cobra.Command {
	resolveContext = resolve
	cmd := &cobra.Command{
		Use:   "cook",
		Short: "Join a room as the cook-along client",
		Long: `Join a kitchen room and follow the agent.

Control events from the agent drive the local session: timers, recipe
steps, grocery edits, dish suggestions, camera requests, and speech
captions. State renders in a terminal UI and persists to disk, so a
restarted client resumes with its timers still counting down.

Examples:
  souschef cook --room home
  souschef cook --room home --transport rtc
  souschef cook --room home --camera-file ./stove.jpg --plain`,
		RunE: runCook,
	}

	f := cmd.Flags()
	f.StringVar(&flagRoom, "room", "", "room to join (default from context)")
	f.StringVar(&flagIdentity, "identity", "", "participant identity (default from context)")
	f.StringVar(&flagTransport, "transport", "ws", "transport: ws or rtc")
	f.StringVar(&flagCameraFile, "camera-file", "", "image file sent when the agent asks for a camera frame")
	f.BoolVar(&flagNoPersist, "no-persist", false, "disable session persistence")
	f.BoolVar(&flagPlain, "plain", false, "log events instead of rendering the TUI")

	return cmd
}

func runCook(cmd *cobra.Command, args []string) error {
	cliCtx, err := resolveContext()
	if err != nil {
		return err
	}
	room := flagRoom
	if room == "" {
		room = cliCtx.Room
	}
	identity := flagIdentity
	if identity == "" {
		identity = cliCtx.Identity
	}
	if room == "" || identity == "" {
		return fmt.Errorf("room and identity are required (flags or context defaults)")
	}
	if cliCtx.ServerURL == "" {
		return fmt.Errorf("context %q has no server URL", cliCtx.Name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := acquireToken(ctx, cliCtx, room, identity)
	if err != nil {
		return err
	}

	opts := Options{
		ServerURL:  cliCtx.ServerURL,
		Token:      token,
		Room:       room,
		Identity:   identity,
		Transport:  flagTransport,
		CameraFile: flagCameraFile,
	}
	if !flagNoPersist {
		paths, err := clipkg.NewPaths()
		if err != nil {
			return err
		}
		if err := paths.EnsureDataDir(); err != nil {
			return err
		}
		opts.DataDir = paths.DataPath("sessions")
	}

	client, err := Connect(ctx, opts)
	if err != nil {
		return err
	}

	if flagPlain {
		slog.Info("joined room", "room", room, "identity", identity, "transport", opts.Transport)
		return client.Run(ctx)
	}

	// Route logs into the TUI's log pane.
	logWriter := clipkg.NewLogWriter(200)
	slog.SetDefault(slog.New(slog.NewTextHandler(logWriter, nil)))

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	program := tea.NewProgram(NewModel(client, logWriter), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		stop()
		<-runErr
		return err
	}
	stop()
	return <-runErr
}

// acquireToken mints locally when the context carries the API secret, and
// falls back to the server's token endpoint otherwise.
func acquireToken(ctx context.Context, cliCtx *clipkg.Context, room, identity string) (string, error) {
	if cliCtx.APISecret != "" {
		minter := &roomtoken.Minter{APIKey: cliCtx.APIKey, Secret: cliCtx.APISecret}
		yes := true
		return minter.Mint(roomtoken.MintOptions{
			Identity: identity,
			Grant: roomtoken.Grant{
				Room:           room,
				RoomJoin:       true,
				CanPublish:     &yes,
				CanSubscribe:   &yes,
				CanPublishData: &yes,
			},
		})
	}

	body, err := json.Marshal(map[string]string{"room": room, "identity": identity})
	if err != nil {
		return "", err
	}
	endpoint := strings.TrimSuffix(cliCtx.ServerURL, "/") + "/api/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 15 * time.Second}
	if cliCtx.Timeout > 0 {
		httpClient.Timeout = time.Duration(cliCtx.Timeout) * time.Second
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var tr struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.Token == "" {
		return "", errors.New("token endpoint returned an empty token")
	}
	return tr.Token, nil
}
