package cook

import (
	"context"
	"testing"
	"time"

	"github.com/hearthware/souschef/pkg/jsontime"
	"github.com/hearthware/souschef/pkg/kitchen"
)

func TestWSEndpoint(t *testing.T) {
	tests := []struct {
		base string
		room string
		want string
		err  bool
	}{
		{"http://localhost:8090", "home", "ws://localhost:8090/api/ws?room=home", false},
		{"https://kitchen.example.com", "home", "wss://kitchen.example.com/api/ws?room=home", false},
		{"https://kitchen.example.com/", "my room", "wss://kitchen.example.com/api/ws?room=my+room", false},
		{"wss://kitchen.example.com", "home", "wss://kitchen.example.com/api/ws?room=home", false},
		{"ftp://nope", "home", "", true},
	}
	for _, tc := range tests {
		got, err := wsEndpoint(tc.base, tc.room)
		if tc.err {
			if err == nil {
				t.Errorf("wsEndpoint(%q) expected error", tc.base)
			}
			continue
		}
		if err != nil {
			t.Errorf("wsEndpoint(%q): %v", tc.base, err)
			continue
		}
		if got != tc.want {
			t.Errorf("wsEndpoint(%q) = %q; want %q", tc.base, got, tc.want)
		}
	}
}

// newPipeClient wires a Client to the server end of an in-process pipe.
func newPipeClient(t *testing.T, opts Options) (*Client, *kitchen.PipeServerConn) {
	t.Helper()
	server, clientConn := kitchen.NewPipe()
	c := &Client{
		opts:    opts,
		session: kitchen.NewSession(opts.Room, opts.Identity),
		conn:    clientConn,
	}
	return c, server
}

func TestClientAppliesControls(t *testing.T) {
	c, server := newPipeClient(t, Options{Room: "home", Identity: "alice"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	now := time.Now()
	ctl := &kitchen.SetTimer{
		ID:        "rice",
		Label:     "rice",
		Duration:  jsontime.DurationMS(12 * time.Minute),
		AutoStart: true,
	}
	if err := server.SendControl(ctx, ctl, now); err != nil {
		t.Fatalf("SendControl: %v", err)
	}
	if err := server.SendAgentState(ctx, kitchen.NewAgentStateEvent(kitchen.AgentSpeaking, now)); err != nil {
		t.Fatalf("SendAgentState: %v", err)
	}

	changes, stop := c.Session().Watch()
	defer stop()
	deadline := time.After(3 * time.Second)
	for {
		snap := c.Session().Snapshot()
		if len(snap.Timers) == 1 && snap.Agent.State == kitchen.AgentSpeaking {
			if snap.Timers[0].ID != "rice" {
				t.Fatalf("timer id = %q; want rice", snap.Timers[0].ID)
			}
			break
		}
		select {
		case <-changes:
		case <-deadline:
			t.Fatalf("state never converged: %+v", snap)
		}
	}

	cancel()
	server.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestClientSurvivesBadControl(t *testing.T) {
	c, server := newPipeClient(t, Options{Room: "home", Identity: "alice"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	now := time.Now()
	// Pausing a timer that does not exist is a domain error; the loop must
	// keep going and apply the next control.
	bad := kitchen.PauseTimer("ghost")
	if err := server.SendControl(ctx, &bad, now); err != nil {
		t.Fatalf("SendControl: %v", err)
	}
	if err := server.SendControl(ctx, &kitchen.Say{Text: "still here", Final: true}, now); err != nil {
		t.Fatalf("SendControl: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for c.Session().Snapshot().Caption.Text != "still here" {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("caption never arrived")
		}
	}

	cancel()
	server.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestConnectRequiresRoomAndIdentity(t *testing.T) {
	if _, err := Connect(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without room and identity")
	}
}
