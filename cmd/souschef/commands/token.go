package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthware/souschef/pkg/cli"
	"github.com/hearthware/souschef/pkg/roomtoken"
)

var (
	flagTokenRoom     string
	flagTokenIdentity string
	flagTokenName     string
	flagTokenTTL      time.Duration
	flagTokenNoPub    bool
	flagTokenNoSub    bool
)

// TokenResponse is what the token command and the serve endpoint return.
type TokenResponse struct {
	Token    string `json:"token"`
	URL      string `json:"url,omitempty"`
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a room access token",
	Long: `Mint a short-lived room access token signed with the context's
API key/secret. The token admits one participant to one room.

Examples:
  souschef token --room home --identity alice
  souschef token --room home --identity monitor --no-publish --ttl 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := ResolveContext()
		if err != nil {
			return err
		}
		room := flagTokenRoom
		if room == "" {
			room = ctx.Room
		}
		identity := flagTokenIdentity
		if identity == "" {
			identity = ctx.Identity
		}
		if room == "" || identity == "" {
			return fmt.Errorf("room and identity are required (flags or context defaults)")
		}

		minter := &roomtoken.Minter{APIKey: ctx.APIKey, Secret: ctx.APISecret}
		canPub := !flagTokenNoPub
		canSub := !flagTokenNoSub
		token, err := minter.Mint(roomtoken.MintOptions{
			Identity: identity,
			Name:     flagTokenName,
			TTL:      flagTokenTTL,
			Grant: roomtoken.Grant{
				Room:           room,
				RoomJoin:       true,
				CanPublish:     &canPub,
				CanSubscribe:   &canSub,
				CanPublishData: &canPub,
			},
		})
		if err != nil {
			return err
		}

		return cli.Output(&TokenResponse{
			Token:    token,
			URL:      ctx.ServerURL,
			Room:     room,
			Identity: identity,
		}, OutputOptions())
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagTokenRoom, "room", "", "room name (default from context)")
	tokenCmd.Flags().StringVar(&flagTokenIdentity, "identity", "", "participant identity (default from context)")
	tokenCmd.Flags().StringVar(&flagTokenName, "name", "", "display name carried in the token")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", 0, "token lifetime (default 15m, max 24h)")
	tokenCmd.Flags().BoolVar(&flagTokenNoPub, "no-publish", false, "deny publishing audio and data")
	tokenCmd.Flags().BoolVar(&flagTokenNoSub, "no-subscribe", false, "deny subscribing")

	rootCmd.AddCommand(tokenCmd)
}
