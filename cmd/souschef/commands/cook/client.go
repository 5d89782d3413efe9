// Package cook implements the 'souschef cook' subcommand: the cook-along
// client. It joins a room, applies the agent's control events to a local
// session, reports stats, answers camera requests, and renders the state in
// a terminal UI.
package cook

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hearthware/souschef/pkg/jsontime"
	"github.com/hearthware/souschef/pkg/kitchen"
	"github.com/hearthware/souschef/pkg/kv"
	"github.com/hearthware/souschef/pkg/rtc"
)

// Options configures a cook client.
type Options struct {
	ServerURL string
	Token     string
	Room      string
	Identity  string

	// Transport selects "ws" (default) or "rtc".
	Transport string

	// DataDir enables session persistence when non-empty: in-flight timers
	// survive a client restart.
	DataDir string

	// CameraFile is sent as the camera frame when the agent asks for one.
	// Empty means camera requests are surfaced but unanswered.
	CameraFile string
}

// clientConn is the client's view of a room connection: the downlink streams
// plus the uplink sends the cook client uses.
type clientConn interface {
	Controls() iter.Seq2[*kitchen.ControlEvent, error]
	AgentStates() iter.Seq2[*kitchen.AgentStateEvent, error]
	AudioFrames() iter.Seq2[kitchen.AudioFrame, error]
	SendStats(ctx context.Context, stats *kitchen.StatsEvent) error
	SendCameraFrame(ctx context.Context, frame *kitchen.CameraFrame) error
	Close() error
}

// Client is a connected cook-along session.
type Client struct {
	opts    Options
	session *kitchen.Session
	conn    clientConn

	kvStore kv.Store              // nil without persistence
	store   *kitchen.SessionStore // nil without persistence

	mu             sync.Mutex
	lastCameraAsk  string // reason of the last answered camera request
	cameraAnswered bool
}

// Connect dials the room and restores any persisted session state.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.Room == "" || opts.Identity == "" {
		return nil, errors.New("cook: room and identity are required")
	}

	c := &Client{
		opts:    opts,
		session: kitchen.NewSession(opts.Room, opts.Identity),
	}

	if opts.DataDir != "" {
		store, err := kv.NewBadger(kv.BadgerOptions{Dir: opts.DataDir})
		if err != nil {
			return nil, fmt.Errorf("cook: open data dir: %w", err)
		}
		c.kvStore = store
		c.store = kitchen.NewSessionStore(store)
		if err := c.store.Restore(ctx, c.session); err != nil {
			slog.Warn("restore session", "err", err)
		}
	}

	conn, err := c.dial(ctx)
	if err != nil {
		if c.kvStore != nil {
			c.kvStore.Close()
		}
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) dial(ctx context.Context) (clientConn, error) {
	switch c.opts.Transport {
	case "", "ws":
		u, err := wsEndpoint(c.opts.ServerURL, c.opts.Room)
		if err != nil {
			return nil, err
		}
		return kitchen.DialWS(ctx, u, c.opts.Token)
	case "rtc":
		bridge, err := rtc.NewClientBridge(rtc.Config{})
		if err != nil {
			return nil, err
		}
		endpoint := strings.TrimSuffix(c.opts.ServerURL, "/") +
			"/api/rtc/offer?room=" + url.QueryEscape(c.opts.Room)
		if err := bridge.Connect(ctx, endpoint, c.opts.Token); err != nil {
			bridge.Close()
			return nil, err
		}
		return &rtcConn{bridge: bridge}, nil
	default:
		return nil, fmt.Errorf("cook: unknown transport %q", c.opts.Transport)
	}
}

// wsEndpoint converts the server base URL into the websocket endpoint.
func wsEndpoint(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("cook: parse server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("cook: unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/ws"
	u.RawQuery = "room=" + url.QueryEscape(room)
	return u.String(), nil
}

// Session returns the client's session.
func (c *Client) Session() *kitchen.Session { return c.session }

// Run drives the connection until ctx is canceled or the server goes away.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		defer cancel()
		for e, err := range c.conn.Controls() {
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Error("control stream", "err", err)
				}
				return
			}
			c.applyControl(ctx, e)
		}
	}()

	go func() {
		defer wg.Done()
		for ev, err := range c.conn.AgentStates() {
			if err != nil {
				return
			}
			c.session.SetAgentState(ev)
		}
	}()

	go func() {
		defer wg.Done()
		for _, err := range c.conn.AudioFrames() {
			if err != nil {
				return
			}
			c.session.CountAudioFrames(1, 0, 0)
		}
	}()

	go func() {
		defer wg.Done()
		c.reportStats(ctx)
	}()

	<-ctx.Done()
	c.conn.Close()
	wg.Wait()
	return c.shutdown()
}

func (c *Client) applyControl(ctx context.Context, e *kitchen.ControlEvent) {
	if err := c.session.Apply(e); err != nil {
		slog.Warn("apply control", "type", e.Type, "err", err)
		return
	}
	slog.Debug("control applied", "type", e.Type)

	if ask, ok := e.Payload.(*kitchen.AskCamera); ok && ask.Enable {
		go c.answerCamera(ctx, ask)
	}
	c.persist(ctx)
}

// answerCamera uploads the configured camera file once per request.
func (c *Client) answerCamera(ctx context.Context, ask *kitchen.AskCamera) {
	if c.opts.CameraFile == "" {
		slog.Info("camera requested but no camera file configured", "reason", ask.Reason)
		return
	}
	c.mu.Lock()
	if c.cameraAnswered && c.lastCameraAsk == ask.Reason {
		c.mu.Unlock()
		return
	}
	c.lastCameraAsk = ask.Reason
	c.cameraAnswered = true
	c.mu.Unlock()

	data, err := os.ReadFile(c.opts.CameraFile)
	if err != nil {
		slog.Error("read camera file", "path", c.opts.CameraFile, "err", err)
		return
	}
	frame := &kitchen.CameraFrame{
		Time: jsontime.NowEpochMilli(),
		MIME: "image/jpeg",
		Data: data,
	}
	if err := c.conn.SendCameraFrame(ctx, frame); err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			slog.Info("camera upload not supported on this transport")
			return
		}
		slog.Error("send camera frame", "err", err)
		return
	}
	slog.Info("camera frame sent", "bytes", len(data), "reason", ask.Reason)
}

func (c *Client) reportStats(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := c.session.Snapshot()
			if err := c.conn.SendStats(ctx, kitchen.NewStatsEvent(&snap.Stats)); err != nil {
				if errors.Is(err, errors.ErrUnsupported) {
					return
				}
				slog.Debug("send stats", "err", err)
			}
		}
	}
}

func (c *Client) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, c.session.Snapshot()); err != nil {
		slog.Warn("persist session", "err", err)
	}
}

func (c *Client) shutdown() error {
	c.persist(context.Background())
	if c.kvStore != nil {
		return c.kvStore.Close()
	}
	return nil
}

// rtcConn adapts an rtc.Bridge to the clientConn interface. Agent state,
// stats, and camera upload ride the websocket transport; over WebRTC the
// data channel carries control envelopes only.
type rtcConn struct {
	bridge *rtc.Bridge
}

func (r *rtcConn) Controls() iter.Seq2[*kitchen.ControlEvent, error] {
	return func(yield func(*kitchen.ControlEvent, error) bool) {
		for raw, err := range r.bridge.Controls() {
			if err != nil {
				yield(nil, err)
				return
			}
			e, err := kitchen.DecodeControlEvent(raw)
			if err != nil {
				slog.Warn("decode control", "err", err)
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (r *rtcConn) AgentStates() iter.Seq2[*kitchen.AgentStateEvent, error] {
	return func(yield func(*kitchen.AgentStateEvent, error) bool) {}
}

func (r *rtcConn) AudioFrames() iter.Seq2[kitchen.AudioFrame, error] {
	return func(yield func(kitchen.AudioFrame, error) bool) {
		for pkt, err := range r.bridge.Audio() {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(kitchen.StampAudio(pkt.Payload, time.Now()), nil) {
				return
			}
		}
	}
}

func (r *rtcConn) SendStats(context.Context, *kitchen.StatsEvent) error {
	return errors.ErrUnsupported
}

func (r *rtcConn) SendCameraFrame(context.Context, *kitchen.CameraFrame) error {
	return errors.ErrUnsupported
}

func (r *rtcConn) Close() error { return r.bridge.Close() }

var _ clientConn = (*kitchen.WSClientConn)(nil)
var _ clientConn = (*rtcConn)(nil)
