package roomtoken

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

func testMinter(now time.Time) *Minter {
	return &Minter{
		APIKey: "APIxyz",
		Secret: "super-secret",
		Now:    func() time.Time { return now },
	}
}

func TestMintVerify_RoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := testMinter(now)

	token, err := m.Mint(MintOptions{
		Identity: "cook-1",
		Name:     "Alice",
		Grant: Grant{
			Room:           "kitchen-7",
			RoomJoin:       true,
			CanPublish:     boolPtr(true),
			CanSubscribe:   boolPtr(true),
			CanPublishData: boolPtr(true),
		},
	})
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	claims, err := verifyAt(token, "APIxyz", "super-secret", func() time.Time { return now.Add(time.Minute) })
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Identity != "cook-1" || claims.Name != "Alice" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Grant.Room != "kitchen-7" || !claims.Grant.RoomJoin {
		t.Errorf("grant = %+v", claims.Grant)
	}
	if claims.Grant.CanPublishData == nil || !*claims.Grant.CanPublishData {
		t.Error("CanPublishData lost in round trip")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != DefaultTTL {
		t.Errorf("TTL = %v, want %v", got, DefaultTTL)
	}
}

func TestMint_Validation(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		opts MintOptions
	}{
		{"empty_identity", MintOptions{Grant: Grant{Room: "r", RoomJoin: true}}},
		{"long_identity", MintOptions{Identity: strings.Repeat("x", MaxIdentityLen+1), Grant: Grant{Room: "r", RoomJoin: true}}},
		{"join_without_room", MintOptions{Identity: "a", Grant: Grant{RoomJoin: true}}},
		{"negative_ttl", MintOptions{Identity: "a", Grant: Grant{Room: "r", RoomJoin: true}, TTL: -time.Second}},
		{"excessive_ttl", MintOptions{Identity: "a", Grant: Grant{Room: "r", RoomJoin: true}, TTL: MaxTTL + time.Hour}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := testMinter(now).Mint(tc.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := testMinter(now)

	token, err := m.Mint(MintOptions{
		Identity: "cook-1",
		Grant:    Grant{Room: "kitchen-7", RoomJoin: true},
		TTL:      time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = verifyAt(token, "APIxyz", "super-secret", func() time.Time { return now.Add(2 * time.Minute) })
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Verify = %v, want ErrExpired", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	token, err := testMinter(now).Mint(MintOptions{
		Identity: "cook-1",
		Grant:    Grant{Room: "kitchen-7", RoomJoin: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifyAt(token, "APIxyz", "wrong", func() time.Time { return now }); !errors.Is(err, ErrInvalid) {
		t.Errorf("Verify = %v, want ErrInvalid", err)
	}
}

func TestVerify_WrongAPIKey(t *testing.T) {
	now := time.Now()
	token, err := testMinter(now).Mint(MintOptions{
		Identity: "cook-1",
		Grant:    Grant{Room: "kitchen-7", RoomJoin: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifyAt(token, "APIother", "super-secret", func() time.Time { return now }); !errors.Is(err, ErrWrongKey) {
		t.Errorf("Verify = %v, want ErrWrongKey", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	for _, in := range []string{"", "  ", "not.a.jwt"} {
		if _, err := Verify(in, "APIxyz", "super-secret"); err == nil {
			t.Errorf("Verify(%q) = nil error", in)
		}
	}
}
