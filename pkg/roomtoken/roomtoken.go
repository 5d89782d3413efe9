// Package roomtoken mints and verifies room access tokens.
//
// Tokens are HS256 JWTs signed with an API key/secret pair. The key appears
// as the issuer claim so the receiving server can look up the matching
// secret. A video grant object scopes the token to a room and a permission
// set, which is all a realtime media server needs to admit the participant.
package roomtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token lifetime bounds.
const (
	DefaultTTL = 15 * time.Minute
	MaxTTL     = 24 * time.Hour
)

// MaxIdentityLen caps the participant identity length in bytes.
const MaxIdentityLen = 128

// Verification errors.
var (
	ErrExpired   = errors.New("roomtoken: token expired")
	ErrInvalid   = errors.New("roomtoken: token invalid")
	ErrWrongKey  = errors.New("roomtoken: issued for a different API key")
	ErrNoGrant   = errors.New("roomtoken: missing video grant")
)

// Grant describes what the token holder may do in a room.
type Grant struct {
	Room           string `json:"room,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

// Claims are the validated contents of a room token.
type Claims struct {
	Identity  string
	Name      string
	Grant     Grant
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// wireClaims is the JWT claims layout on the wire.
type wireClaims struct {
	jwt.RegisteredClaims
	Video *Grant `json:"video,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Minter issues room tokens for one API key/secret pair.
type Minter struct {
	APIKey string
	Secret string

	// Now overrides the clock for tests. Defaults to time.Now.
	Now func() time.Time
}

// MintOptions configures a single token.
type MintOptions struct {
	// Identity is the participant identity. Required, at most MaxIdentityLen bytes.
	Identity string

	// Name is an optional display name carried in the token.
	Name string

	// Grant scopes the token. Grant.Room is required when Grant.RoomJoin is set.
	Grant Grant

	// TTL bounds the token lifetime. Zero means DefaultTTL; values above
	// MaxTTL or below zero are rejected.
	TTL time.Duration
}

// Mint creates a signed room token.
func (m *Minter) Mint(opts MintOptions) (string, error) {
	if m.APIKey == "" || m.Secret == "" {
		return "", errors.New("roomtoken: minter requires APIKey and Secret")
	}
	identity := strings.TrimSpace(opts.Identity)
	if identity == "" {
		return "", errors.New("roomtoken: identity is required")
	}
	if len(identity) > MaxIdentityLen {
		return "", fmt.Errorf("roomtoken: identity exceeds %d bytes", MaxIdentityLen)
	}
	if opts.Grant.RoomJoin && opts.Grant.Room == "" {
		return "", errors.New("roomtoken: room is required for a join grant")
	}

	ttl := opts.TTL
	switch {
	case ttl == 0:
		ttl = DefaultTTL
	case ttl < 0:
		return "", errors.New("roomtoken: negative TTL")
	case ttl > MaxTTL:
		return "", fmt.Errorf("roomtoken: TTL exceeds %s", MaxTTL)
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	issued := now()

	grant := opts.Grant
	claims := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.APIKey,
			Subject:   identity,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
		Video: &grant,
		Name:  opts.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.Secret))
	if err != nil {
		return "", fmt.Errorf("roomtoken: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token against the API key/secret pair.
// A small leeway absorbs clock skew between minter and verifier.
func Verify(token, apiKey, secret string) (Claims, error) {
	return verifyAt(token, apiKey, secret, time.Now)
}

func verifyAt(token, apiKey, secret string, now func() time.Time) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalid
	}

	var parsed wireClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(now),
		jwt.WithLeeway(10*time.Second),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if parsed.Issuer != apiKey {
		return Claims{}, ErrWrongKey
	}
	if parsed.Video == nil {
		return Claims{}, ErrNoGrant
	}

	claims := Claims{
		Identity: parsed.Subject,
		Name:     parsed.Name,
		Grant:    *parsed.Video,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}
