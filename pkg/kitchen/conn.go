package kitchen

import (
	"context"
	"encoding/binary"
	"errors"
	"iter"
	"time"

	"github.com/hearthware/souschef/pkg/encoding"
	"github.com/hearthware/souschef/pkg/jsontime"
)

// ErrFrameTooShort is returned when a stamped audio frame is missing its
// timestamp prefix.
var ErrFrameTooShort = errors.New("kitchen: audio frame too short")

// AudioFrame is one stamped opus frame: an 8-byte big-endian epoch-millis
// capture timestamp followed by the opus payload. Frames pass through the
// client opaque; only the stamp is ever inspected.
type AudioFrame []byte

// StampAudio prefixes an opus payload with its capture time.
func StampAudio(payload []byte, at time.Time) AudioFrame {
	f := make(AudioFrame, 8+len(payload))
	binary.BigEndian.PutUint64(f, uint64(at.UnixMilli()))
	copy(f[8:], payload)
	return f
}

// Time returns the capture timestamp, or the zero time for a short frame.
func (f AudioFrame) Time() time.Time {
	if len(f) < 8 {
		return time.Time{}
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(f)))
}

// Payload returns the opus bytes without the stamp.
func (f AudioFrame) Payload() ([]byte, error) {
	if len(f) < 8 {
		return nil, ErrFrameTooShort
	}
	return f[8:], nil
}

// CameraFrame is one captured image from the client camera, sent uplink in
// response to a camera.ask control.
type CameraFrame struct {
	Time jsontime.Milli       `json:"t"`
	MIME string               `json:"mime,omitempty"`
	Data encoding.Base64Bytes `json:"data"`
}

// StatsEvent wraps a session stats snapshot with its capture time.
type StatsEvent struct {
	Time  jsontime.Milli `json:"t"`
	Stats *Stats         `json:"stats"`
}

// NewStatsEvent stamps a stats snapshot.
func NewStatsEvent(stats *Stats) *StatsEvent {
	return &StatsEvent{Time: jsontime.NowEpochMilli(), Stats: stats}
}

// =============================================================================
// Uplink: client -> server
// =============================================================================

// UplinkTx is the client-side transmitter for sending data to the server.
type UplinkTx interface {
	// SendAudioFrames sends stamped mic audio to the server.
	SendAudioFrames(ctx context.Context, frames ...AudioFrame) error

	// SendStats sends a session stats snapshot to the server.
	SendStats(ctx context.Context, stats *StatsEvent) error

	// SendCameraFrame sends one captured camera image to the server.
	SendCameraFrame(ctx context.Context, frame *CameraFrame) error

	// Close closes the uplink.
	Close() error
}

// UplinkRx is the server-side receiver for data from the client.
type UplinkRx interface {
	// AudioFrames returns an iterator for mic audio from the client.
	AudioFrames() iter.Seq2[AudioFrame, error]

	// Stats returns an iterator for stats snapshots from the client.
	Stats() iter.Seq2[*StatsEvent, error]

	// CameraFrames returns an iterator for camera images from the client.
	CameraFrames() iter.Seq2[*CameraFrame, error]

	// LastStats returns the most recent stats snapshot, or nil.
	LastStats() *StatsEvent

	// Close closes the receiver.
	Close() error
}

// =============================================================================
// Downlink: server -> client
// =============================================================================

// DownlinkTx is the server-side transmitter for sending data to the client.
type DownlinkTx interface {
	// SendAudioFrames sends stamped agent speech to the client.
	SendAudioFrames(ctx context.Context, frames ...AudioFrame) error

	// SendControl sends one control message to the client, stamped at t.
	SendControl(ctx context.Context, ctl Control, t time.Time) error

	// SendAgentState announces an agent state change to the client.
	SendAgentState(ctx context.Context, state *AgentStateEvent) error

	// Close closes the downlink.
	Close() error
}

// DownlinkRx is the client-side receiver for data from the server.
type DownlinkRx interface {
	// AudioFrames returns an iterator for agent speech from the server.
	AudioFrames() iter.Seq2[AudioFrame, error]

	// Controls returns an iterator for control events from the server.
	Controls() iter.Seq2[*ControlEvent, error]

	// AgentStates returns an iterator for agent state events from the server.
	AgentStates() iter.Seq2[*AgentStateEvent, error]

	// Close closes the receiver.
	Close() error
}
