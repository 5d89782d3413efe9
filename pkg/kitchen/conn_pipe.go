package kitchen

import (
	"context"
	"iter"
	"sync"
	"time"
)

// NewPipe creates a connected server/client pair over channels, for tests
// and in-process embedding.
func NewPipe() (*PipeServerConn, *PipeClientConn) {
	// Uplink channels (client -> server)
	uplinkAudio := make(chan AudioFrame, 1024)
	uplinkStats := make(chan *StatsEvent, 32)
	uplinkCamera := make(chan *CameraFrame, 8)

	// Downlink channels (server -> client)
	downlinkAudio := make(chan AudioFrame, 1024)
	downlinkCtls := make(chan *ControlEvent, 32)
	downlinkStates := make(chan *AgentStateEvent, 32)

	shared := &pipeSharedState{}

	server := &PipeServerConn{
		uplinkAudio:    uplinkAudio,
		uplinkStats:    uplinkStats,
		uplinkCamera:   uplinkCamera,
		downlinkAudio:  downlinkAudio,
		downlinkCtls:   downlinkCtls,
		downlinkStates: downlinkStates,
		shared:         shared,
	}

	client := &PipeClientConn{
		uplinkAudio:    uplinkAudio,
		uplinkStats:    uplinkStats,
		uplinkCamera:   uplinkCamera,
		downlinkAudio:  downlinkAudio,
		downlinkCtls:   downlinkCtls,
		downlinkStates: downlinkStates,
		shared:         shared,
	}

	return server, client
}

// pipeSharedState propagates close errors across the pair.
type pipeSharedState struct {
	mu        sync.Mutex
	serverErr error
	clientErr error
}

// PipeServerConn is the server side of a pipe connection. It implements
// UplinkRx (receive from client) and DownlinkTx (send to client).
type PipeServerConn struct {
	uplinkAudio  chan AudioFrame
	uplinkStats  chan *StatsEvent
	uplinkCamera chan *CameraFrame

	downlinkAudio  chan AudioFrame
	downlinkCtls   chan *ControlEvent
	downlinkStates chan *AgentStateEvent

	shared *pipeSharedState

	mu        sync.Mutex
	lastStats *StatsEvent
	closed    bool
}

// --- UplinkRx implementation (receive from client) ---

func (c *PipeServerConn) AudioFrames() iter.Seq2[AudioFrame, error] {
	return func(yield func(AudioFrame, error) bool) {
		for frame := range c.uplinkAudio {
			if !yield(frame, nil) {
				return
			}
		}
		c.shared.mu.Lock()
		err := c.shared.clientErr
		c.shared.mu.Unlock()
		if err != nil {
			yield(nil, err)
		}
	}
}

func (c *PipeServerConn) Stats() iter.Seq2[*StatsEvent, error] {
	return func(yield func(*StatsEvent, error) bool) {
		for stats := range c.uplinkStats {
			c.mu.Lock()
			c.lastStats = stats
			c.mu.Unlock()
			if !yield(stats, nil) {
				return
			}
		}
		c.shared.mu.Lock()
		err := c.shared.clientErr
		c.shared.mu.Unlock()
		if err != nil {
			yield(nil, err)
		}
	}
}

func (c *PipeServerConn) CameraFrames() iter.Seq2[*CameraFrame, error] {
	return func(yield func(*CameraFrame, error) bool) {
		for frame := range c.uplinkCamera {
			if !yield(frame, nil) {
				return
			}
		}
		c.shared.mu.Lock()
		err := c.shared.clientErr
		c.shared.mu.Unlock()
		if err != nil {
			yield(nil, err)
		}
	}
}

func (c *PipeServerConn) LastStats() *StatsEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStats
}

// --- DownlinkTx implementation (send to client) ---

func (c *PipeServerConn) SendAudioFrames(ctx context.Context, frames ...AudioFrame) error {
	for _, frame := range frames {
		select {
		case c.downlinkAudio <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *PipeServerConn) SendControl(ctx context.Context, ctl Control, t time.Time) error {
	evt := NewControlEvent(ctl, t)
	select {
	case c.downlinkCtls <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *PipeServerConn) SendAgentState(ctx context.Context, state *AgentStateEvent) error {
	select {
	case c.downlinkStates <- state:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Lifecycle ---

func (c *PipeServerConn) Close() error {
	return c.CloseWithError(nil)
}

func (c *PipeServerConn) CloseWithError(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.shared.mu.Lock()
	c.shared.serverErr = err
	c.shared.mu.Unlock()

	// Server owns the downlink channels.
	close(c.downlinkAudio)
	close(c.downlinkCtls)
	close(c.downlinkStates)
	return nil
}

// PipeClientConn is the client side of a pipe connection. It implements
// UplinkTx (send to server) and DownlinkRx (receive from server).
type PipeClientConn struct {
	uplinkAudio  chan AudioFrame
	uplinkStats  chan *StatsEvent
	uplinkCamera chan *CameraFrame

	downlinkAudio  chan AudioFrame
	downlinkCtls   chan *ControlEvent
	downlinkStates chan *AgentStateEvent

	shared *pipeSharedState

	mu     sync.Mutex
	closed bool
}

// --- UplinkTx implementation (send to server) ---

func (c *PipeClientConn) SendAudioFrames(ctx context.Context, frames ...AudioFrame) error {
	for _, frame := range frames {
		select {
		case c.uplinkAudio <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *PipeClientConn) SendStats(ctx context.Context, stats *StatsEvent) error {
	select {
	case c.uplinkStats <- stats:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *PipeClientConn) SendCameraFrame(ctx context.Context, frame *CameraFrame) error {
	select {
	case c.uplinkCamera <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- DownlinkRx implementation (receive from server) ---

func (c *PipeClientConn) AudioFrames() iter.Seq2[AudioFrame, error] {
	return func(yield func(AudioFrame, error) bool) {
		for frame := range c.downlinkAudio {
			if !yield(frame, nil) {
				return
			}
		}
		c.shared.mu.Lock()
		err := c.shared.serverErr
		c.shared.mu.Unlock()
		if err != nil {
			yield(nil, err)
		}
	}
}

func (c *PipeClientConn) Controls() iter.Seq2[*ControlEvent, error] {
	return func(yield func(*ControlEvent, error) bool) {
		for evt := range c.downlinkCtls {
			if !yield(evt, nil) {
				return
			}
		}
		c.shared.mu.Lock()
		err := c.shared.serverErr
		c.shared.mu.Unlock()
		if err != nil {
			yield(nil, err)
		}
	}
}

func (c *PipeClientConn) AgentStates() iter.Seq2[*AgentStateEvent, error] {
	return func(yield func(*AgentStateEvent, error) bool) {
		for state := range c.downlinkStates {
			if !yield(state, nil) {
				return
			}
		}
		c.shared.mu.Lock()
		err := c.shared.serverErr
		c.shared.mu.Unlock()
		if err != nil {
			yield(nil, err)
		}
	}
}

// --- Lifecycle ---

func (c *PipeClientConn) Close() error {
	return c.CloseWithError(nil)
}

func (c *PipeClientConn) CloseWithError(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.shared.mu.Lock()
	c.shared.clientErr = err
	c.shared.mu.Unlock()

	// Client owns the uplink channels.
	close(c.uplinkAudio)
	close(c.uplinkStats)
	close(c.uplinkCamera)
	return nil
}

// Compile-time interface assertions
var (
	_ UplinkRx   = (*PipeServerConn)(nil)
	_ DownlinkTx = (*PipeServerConn)(nil)
	_ UplinkTx   = (*PipeClientConn)(nil)
	_ DownlinkRx = (*PipeClientConn)(nil)
)
