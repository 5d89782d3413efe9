package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket framing: JSON topics travel as text messages wrapped in a small
// envelope, stamped audio frames travel as binary messages.
const (
	wsTopicControl    = "control"
	wsTopicAgentState = "agent_state"
	wsTopicStats      = "stats"
	wsTopicCamera     = "camera"
)

const (
	wsMaxMessageSize = 1 << 20 // camera frames are the largest payload
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 75 * time.Second
	wsPingInterval   = 30 * time.Second
)

type wsEnvelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// wsHalf holds the mechanics shared by both sides of a websocket conn: a
// mutex-serialized writer, a read loop that demuxes into typed channels,
// and idempotent close.
type wsHalf struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closedCh  chan struct{}

	errMu   sync.Mutex
	readErr error
}

func newWSHalf(ws *websocket.Conn) wsHalf {
	return wsHalf{ws: ws, closedCh: make(chan struct{})}
}

func (h *wsHalf) writeMessage(kind int, data []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	select {
	case <-h.closedCh:
		return websocket.ErrCloseSent
	default:
	}
	if err := h.ws.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return h.ws.WriteMessage(kind, data)
}

func (h *wsHalf) writeTopic(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kitchen: encode %s: %w", topic, err)
	}
	env, err := json.Marshal(wsEnvelope{Topic: topic, Data: data})
	if err != nil {
		return fmt.Errorf("kitchen: encode %s envelope: %w", topic, err)
	}
	return h.writeMessage(websocket.TextMessage, env)
}

func (h *wsHalf) setReadErr(err error) {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	if h.readErr == nil {
		h.readErr = err
	}
}

// closeErr returns the terminal read error, with normal closure mapped to
// nil so iterators end cleanly.
func (h *wsHalf) closeErr() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	if websocket.IsCloseError(h.readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return h.readErr
}

func (h *wsHalf) close() error {
	var err error
	h.closeOnce.Do(func() {
		h.writeMu.Lock()
		deadline := time.Now().Add(wsWriteWait)
		_ = h.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		h.writeMu.Unlock()
		close(h.closedCh)
		err = h.ws.Close()
	})
	return err
}

func (h *wsHalf) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.closedCh:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := h.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (h *wsHalf) prepareRead() {
	h.ws.SetReadLimit(wsMaxMessageSize)
	_ = h.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	h.ws.SetPongHandler(func(string) error {
		return h.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
}

// deliver pushes v to ch unless the conn closes first.
func deliver[T any](h *wsHalf, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.closedCh:
		return false
	}
}

// WSClientConn is the client side of a websocket connection. It implements
// UplinkTx (send to server) and DownlinkRx (receive from server).
type WSClientConn struct {
	wsHalf

	audio  chan AudioFrame
	ctls   chan *ControlEvent
	states chan *AgentStateEvent
}

// DialWS connects to a kitchen websocket endpoint. A non-empty token is
// presented as a bearer credential.
func DialWS(ctx context.Context, url, token string) (*WSClientConn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("kitchen: dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("kitchen: dial %s: %w", url, err)
	}
	c := &WSClientConn{
		wsHalf: newWSHalf(ws),
		audio:  make(chan AudioFrame, 1024),
		ctls:   make(chan *ControlEvent, 32),
		states: make(chan *AgentStateEvent, 32),
	}
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

func (c *WSClientConn) readLoop() {
	defer func() {
		close(c.audio)
		close(c.ctls)
		close(c.states)
	}()
	c.prepareRead()

	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.setReadErr(err)
			return
		}
		if kind == websocket.BinaryMessage {
			if !deliver(&c.wsHalf, c.audio, AudioFrame(msg)) {
				return
			}
			continue
		}

		var env wsEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			slog.Warn("dropping malformed websocket message", "error", err)
			continue
		}
		switch env.Topic {
		case wsTopicControl:
			evt, err := DecodeControlEvent(env.Data)
			if err != nil {
				if errors.Is(err, ErrUnknownControl) {
					slog.Warn("ignoring unknown control", "error", err)
					continue
				}
				slog.Warn("dropping undecodable control", "error", err)
				continue
			}
			if !deliver(&c.wsHalf, c.ctls, evt) {
				return
			}
		case wsTopicAgentState:
			var state AgentStateEvent
			if err := json.Unmarshal(env.Data, &state); err != nil {
				slog.Warn("dropping malformed agent state", "error", err)
				continue
			}
			if !deliver(&c.wsHalf, c.states, &state) {
				return
			}
		default:
			slog.Debug("ignoring websocket topic", "topic", env.Topic)
		}
	}
}

// --- UplinkTx implementation (send to server) ---

func (c *WSClientConn) SendAudioFrames(ctx context.Context, frames ...AudioFrame) error {
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.writeMessage(websocket.BinaryMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

func (c *WSClientConn) SendStats(ctx context.Context, stats *StatsEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeTopic(wsTopicStats, stats)
}

func (c *WSClientConn) SendCameraFrame(ctx context.Context, frame *CameraFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeTopic(wsTopicCamera, frame)
}

// --- DownlinkRx implementation (receive from server) ---

func (c *WSClientConn) AudioFrames() iter.Seq2[AudioFrame, error] {
	return func(yield func(AudioFrame, error) bool) {
		for frame := range c.audio {
			if !yield(frame, nil) {
				return
			}
		}
		if err := c.closeErr(); err != nil {
			yield(nil, err)
		}
	}
}

func (c *WSClientConn) Controls() iter.Seq2[*ControlEvent, error] {
	return func(yield func(*ControlEvent, error) bool) {
		for evt := range c.ctls {
			if !yield(evt, nil) {
				return
			}
		}
		if err := c.closeErr(); err != nil {
			yield(nil, err)
		}
	}
}

func (c *WSClientConn) AgentStates() iter.Seq2[*AgentStateEvent, error] {
	return func(yield func(*AgentStateEvent, error) bool) {
		for state := range c.states {
			if !yield(state, nil) {
				return
			}
		}
		if err := c.closeErr(); err != nil {
			yield(nil, err)
		}
	}
}

// Close closes the connection. Safe to call more than once.
func (c *WSClientConn) Close() error {
	return c.close()
}

// WSServerConn is the server side of a websocket connection, wrapping a conn
// already upgraded by the HTTP handler. It implements UplinkRx (receive from
// client) and DownlinkTx (send to client).
type WSServerConn struct {
	wsHalf

	audio  chan AudioFrame
	stats  chan *StatsEvent
	camera chan *CameraFrame

	mu        sync.Mutex
	lastStats *StatsEvent
}

// NewWSServerConn wraps an upgraded websocket connection.
func NewWSServerConn(ws *websocket.Conn) *WSServerConn {
	c := &WSServerConn{
		wsHalf: newWSHalf(ws),
		audio:  make(chan AudioFrame, 1024),
		stats:  make(chan *StatsEvent, 32),
		camera: make(chan *CameraFrame, 8),
	}
	go c.readLoop()
	go c.pingLoop()
	return c
}

func (c *WSServerConn) readLoop() {
	defer func() {
		close(c.audio)
		close(c.stats)
		close(c.camera)
	}()
	c.prepareRead()

	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.setReadErr(err)
			return
		}
		if kind == websocket.BinaryMessage {
			if !deliver(&c.wsHalf, c.audio, AudioFrame(msg)) {
				return
			}
			continue
		}

		var env wsEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			slog.Warn("dropping malformed websocket message", "error", err)
			continue
		}
		switch env.Topic {
		case wsTopicStats:
			var stats StatsEvent
			if err := json.Unmarshal(env.Data, &stats); err != nil {
				slog.Warn("dropping malformed stats", "error", err)
				continue
			}
			c.mu.Lock()
			c.lastStats = &stats
			c.mu.Unlock()
			if !deliver(&c.wsHalf, c.stats, &stats) {
				return
			}
		case wsTopicCamera:
			var frame CameraFrame
			if err := json.Unmarshal(env.Data, &frame); err != nil {
				slog.Warn("dropping malformed camera frame", "error", err)
				continue
			}
			if !deliver(&c.wsHalf, c.camera, &frame) {
				return
			}
		default:
			slog.Debug("ignoring websocket topic", "topic", env.Topic)
		}
	}
}

// --- UplinkRx implementation (receive from client) ---

func (c *WSServerConn) AudioFrames() iter.Seq2[AudioFrame, error] {
	return func(yield func(AudioFrame, error) bool) {
		for frame := range c.audio {
			if !yield(frame, nil) {
				return
			}
		}
		if err := c.closeErr(); err != nil {
			yield(nil, err)
		}
	}
}

func (c *WSServerConn) Stats() iter.Seq2[*StatsEvent, error] {
	return func(yield func(*StatsEvent, error) bool) {
		for stats := range c.stats {
			if !yield(stats, nil) {
				return
			}
		}
		if err := c.closeErr(); err != nil {
			yield(nil, err)
		}
	}
}

func (c *WSServerConn) CameraFrames() iter.Seq2[*CameraFrame, error] {
	return func(yield func(*CameraFrame, error) bool) {
		for frame := range c.camera {
			if !yield(frame, nil) {
				return
			}
		}
		if err := c.closeErr(); err != nil {
			yield(nil, err)
		}
	}
}

func (c *WSServerConn) LastStats() *StatsEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStats
}

// --- DownlinkTx implementation (send to client) ---

func (c *WSServerConn) SendAudioFrames(ctx context.Context, frames ...AudioFrame) error {
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.writeMessage(websocket.BinaryMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

func (c *WSServerConn) SendControl(ctx context.Context, ctl Control, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeTopic(wsTopicControl, NewControlEvent(ctl, t))
}

func (c *WSServerConn) SendAgentState(ctx context.Context, state *AgentStateEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeTopic(wsTopicAgentState, state)
}

// Close closes the connection. Safe to call more than once.
func (c *WSServerConn) Close() error {
	return c.close()
}

// Compile-time interface assertions
var (
	_ UplinkTx   = (*WSClientConn)(nil)
	_ DownlinkRx = (*WSClientConn)(nil)
	_ UplinkRx   = (*WSServerConn)(nil)
	_ DownlinkTx = (*WSServerConn)(nil)
)
