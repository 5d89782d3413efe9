// Package rtc bridges a cooking session onto a webrtc room. Media
// negotiation, ICE, and reconnection all stay inside pion; this package only
// moves opus packets and control payloads between the peer connection and
// the rest of the client.
package rtc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/hearthware/souschef/pkg/buffer"
)

// ControlChannelLabel is the data channel carrying control JSON.
const ControlChannelLabel = "control"

// DefaultRingSize bounds the inbound audio buffer. A slow consumer loses
// the oldest packets instead of stalling the track reader.
const DefaultRingSize = 256

var (
	// ErrNoAudioTrack is returned when audio is sent before negotiation
	// produced a local track.
	ErrNoAudioTrack = errors.New("rtc: no local audio track")

	// ErrControlNotOpen is returned when a control payload is sent before
	// the data channel opened.
	ErrControlNotOpen = errors.New("rtc: control channel not open")
)

// Config tunes a Bridge. The zero value is usable.
type Config struct {
	// STUNServers overrides the default public STUN server list.
	STUNServers []string

	// DisableSTUN skips ICE servers entirely. Host candidates still work,
	// which is enough for same-network peers and in-process tests.
	DisableSTUN bool

	// RingSize bounds the inbound audio ring. Defaults to DefaultRingSize.
	RingSize int

	// OnStateChange is invoked from pion's callback goroutine on every
	// peer connection state transition.
	OnStateChange func(webrtc.PeerConnectionState)
}

// Stats is a point-in-time snapshot of bridge traffic counters.
type Stats struct {
	AudioPacketsIn  uint64 `json:"audio_packets_in"`
	AudioPacketsOut uint64 `json:"audio_packets_out"`
	AudioBytesIn    uint64 `json:"audio_bytes_in"`
	AudioBytesOut   uint64 `json:"audio_bytes_out"`
	PacketsDropped  uint64 `json:"packets_dropped"`
	ControlsIn      uint64 `json:"controls_in"`
	ControlsOut     uint64 `json:"controls_out"`
}

// Bridge is one end of the room connection. The client side creates the
// offer and the control channel; the server side answers and adopts the
// channel via OnDataChannel.
type Bridge struct {
	pc *webrtc.PeerConnection

	inbound  *buffer.FrameRing[*rtp.Packet]
	controls chan []byte

	closeOnce sync.Once
	closedCh  chan struct{}

	mu         sync.Mutex
	dc         *webrtc.DataChannel
	dcOpen     bool
	localTrack *webrtc.TrackLocalStaticRTP

	packetsIn   atomic.Uint64
	packetsOut  atomic.Uint64
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
	controlsIn  atomic.Uint64
	controlsOut atomic.Uint64
}

func newBridge(cfg Config) (*Bridge, error) {
	var servers []webrtc.ICEServer
	if !cfg.DisableSTUN {
		stun := cfg.STUNServers
		if len(stun) == 0 {
			stun = []string{"stun:stun.l.google.com:19302"}
		}
		servers = []webrtc.ICEServer{{URLs: stun}}
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: servers,
	})
	if err != nil {
		return nil, fmt.Errorf("rtc: create peer connection: %w", err)
	}

	size := cfg.RingSize
	if size <= 0 {
		size = DefaultRingSize
	}

	b := &Bridge{
		pc:       pc,
		inbound:  buffer.NewFrameRing[*rtp.Packet](size),
		controls: make(chan []byte, 64),
		closedCh: make(chan struct{}),
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("peer connection state", "state", state.String())
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(state)
		}
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			b.inbound.CloseWrite()
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		slog.Debug("remote audio track", "codec", track.Codec().MimeType)
		go b.readTrack(track)
	})

	return b, nil
}

// NewClientBridge builds the offering side: a sendrecv opus track and the
// control data channel are created up front so they land in the offer.
func NewClientBridge(cfg Config) (*Bridge, error) {
	b, err := newBridge(cfg)
	if err != nil {
		return nil, err
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "souschef-mic",
	)
	if err != nil {
		b.pc.Close()
		return nil, fmt.Errorf("rtc: create local track: %w", err)
	}
	if _, err := b.pc.AddTrack(track); err != nil {
		b.pc.Close()
		return nil, fmt.Errorf("rtc: add local track: %w", err)
	}
	b.localTrack = track

	dc, err := b.pc.CreateDataChannel(ControlChannelLabel, nil)
	if err != nil {
		b.pc.Close()
		return nil, fmt.Errorf("rtc: create control channel: %w", err)
	}
	b.adoptDataChannel(dc)

	return b, nil
}

// NewServerBridge builds the answering side. The control channel arrives
// from the client; the local track is added so the agent can speak back.
func NewServerBridge(cfg Config) (*Bridge, error) {
	b, err := newBridge(cfg)
	if err != nil {
		return nil, err
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "souschef-agent",
	)
	if err != nil {
		b.pc.Close()
		return nil, fmt.Errorf("rtc: create local track: %w", err)
	}
	if _, err := b.pc.AddTrack(track); err != nil {
		b.pc.Close()
		return nil, fmt.Errorf("rtc: add local track: %w", err)
	}
	b.localTrack = track

	b.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ControlChannelLabel {
			slog.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		b.adoptDataChannel(dc)
	})

	return b, nil
}

func (b *Bridge) adoptDataChannel(dc *webrtc.DataChannel) {
	b.mu.Lock()
	b.dc = dc
	b.mu.Unlock()

	dc.OnOpen(func() {
		slog.Debug("control channel open")
		b.mu.Lock()
		b.dcOpen = true
		b.mu.Unlock()
	})
	dc.OnClose(func() {
		b.mu.Lock()
		b.dcOpen = false
		b.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		b.controlsIn.Add(1)
		select {
		case b.controls <- msg.Data:
		case <-b.closedCh:
		}
	})
}

func (b *Bridge) readTrack(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("track read ended", "error", err)
			}
			b.inbound.CloseWrite()
			return
		}
		b.packetsIn.Add(1)
		b.bytesIn.Add(uint64(len(pkt.Payload)))
		_ = b.inbound.Add(pkt)
	}
}

// Offer creates the local offer and waits for ICE gathering, returning the
// complete SDP.
func (b *Bridge) Offer(ctx context.Context) (string, error) {
	offer, err := b.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("rtc: create offer: %w", err)
	}
	if err := b.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("rtc: set local description: %w", err)
	}
	select {
	case <-webrtc.GatheringCompletePromise(b.pc):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return b.pc.LocalDescription().SDP, nil
}

// SetAnswer installs the remote answer on the offering side.
func (b *Bridge) SetAnswer(sdp string) error {
	err := b.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
	if err != nil {
		return fmt.Errorf("rtc: set remote description: %w", err)
	}
	return nil
}

// AcceptOffer handles a remote offer on the answering side and returns the
// complete answer SDP.
func (b *Bridge) AcceptOffer(ctx context.Context, sdp string) (string, error) {
	err := b.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
	if err != nil {
		return "", fmt.Errorf("rtc: set remote description: %w", err)
	}
	answer, err := b.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("rtc: create answer: %w", err)
	}
	if err := b.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("rtc: set local description: %w", err)
	}
	select {
	case <-webrtc.GatheringCompletePromise(b.pc):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return b.pc.LocalDescription().SDP, nil
}

// Connect performs the offer/answer exchange against an HTTP endpoint: the
// offer SDP is POSTed, the response body is the answer SDP.
func (b *Bridge) Connect(ctx context.Context, endpoint, token string) error {
	offer, err := b.Offer(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(offer)))
	if err != nil {
		return fmt.Errorf("rtc: build offer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("rtc: send offer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("rtc: offer rejected: status %d: %s", resp.StatusCode, body)
	}
	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rtc: read answer: %w", err)
	}
	return b.SetAnswer(string(answer))
}

// WriteAudio sends one opus RTP packet on the local track.
func (b *Bridge) WriteAudio(pkt *rtp.Packet) error {
	b.mu.Lock()
	track := b.localTrack
	b.mu.Unlock()
	if track == nil {
		return ErrNoAudioTrack
	}
	if err := track.WriteRTP(pkt); err != nil {
		return fmt.Errorf("rtc: write audio: %w", err)
	}
	b.packetsOut.Add(1)
	b.bytesOut.Add(uint64(len(pkt.Payload)))
	return nil
}

// ReadAudio returns the next inbound opus packet, blocking until one
// arrives. Returns io.EOF after the remote track ends.
func (b *Bridge) ReadAudio() (*rtp.Packet, error) {
	return b.inbound.Next()
}

// Audio returns an iterator over inbound opus packets. The iterator ends
// cleanly when the remote track does.
func (b *Bridge) Audio() iter.Seq2[*rtp.Packet, error] {
	return func(yield func(*rtp.Packet, error) bool) {
		for {
			pkt, err := b.inbound.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(pkt, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// SendControl sends one raw control payload on the data channel.
func (b *Bridge) SendControl(data []byte) error {
	b.mu.Lock()
	dc, open := b.dc, b.dcOpen
	b.mu.Unlock()
	if dc == nil || !open {
		return ErrControlNotOpen
	}
	if err := dc.Send(data); err != nil {
		return fmt.Errorf("rtc: send control: %w", err)
	}
	b.controlsOut.Add(1)
	return nil
}

// Controls returns an iterator over raw inbound control payloads. Decoding
// is the caller's concern; a bad payload must not end the stream.
func (b *Bridge) Controls() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			select {
			case data := <-b.controls:
				if !yield(data, nil) {
					return
				}
			case <-b.closedCh:
				return
			}
		}
	}
}

// Stats returns a snapshot of traffic counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		AudioPacketsIn:  b.packetsIn.Load(),
		AudioPacketsOut: b.packetsOut.Load(),
		AudioBytesIn:    b.bytesIn.Load(),
		AudioBytesOut:   b.bytesOut.Load(),
		PacketsDropped:  b.inbound.Dropped(),
		ControlsIn:      b.controlsIn.Load(),
		ControlsOut:     b.controlsOut.Load(),
	}
}

// Close tears down the data channel and peer connection. Safe to call more
// than once.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closedCh)
		b.inbound.CloseWrite()
		b.mu.Lock()
		dc := b.dc
		b.mu.Unlock()
		if dc != nil {
			_ = dc.Close()
		}
		err = b.pc.Close()
	})
	return err
}
