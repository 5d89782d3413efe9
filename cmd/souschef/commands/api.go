package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hearthware/souschef/pkg/cli"
	"github.com/hearthware/souschef/pkg/roomtoken"
)

// roomToken obtains a token for server API calls: minted locally when the
// context holds the API secret, otherwise requested from the server.
func roomToken(ctx context.Context, c *cli.Context, room string) (string, error) {
	identity := c.Identity
	if identity == "" {
		identity = "souschef-cli"
	}

	if c.APISecret != "" {
		minter := &roomtoken.Minter{APIKey: c.APIKey, Secret: c.APISecret}
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
	resp, err := apiDo(ctx, c, http.MethodPost, "/api/token", "", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tr struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}
	return tr.Token, nil
}

// apiDo issues one request against the context's server and fails on
// non-2xx responses.
func apiDo(ctx context.Context, c *cli.Context, method, path, token, contentType string, body io.Reader) (*http.Response, error) {
	if c.ServerURL == "" {
		return nil, fmt.Errorf("context %q has no server URL", c.Name)
	}
	url := strings.TrimSuffix(c.ServerURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	if c.Timeout > 0 {
		client.Timeout = time.Duration(c.Timeout) * time.Second
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
