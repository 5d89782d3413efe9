// Package serve implements the 'souschef serve' subcommand: the kitchen
// signaling and session server. It mints room tokens, accepts websocket and
// WebRTC connections, fans control events out to every client in a room, and
// keeps the authoritative per-room session state.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthware/souschef/pkg/kitchen"
	"github.com/hearthware/souschef/pkg/kv"
	"github.com/hearthware/souschef/pkg/roomtoken"
	"github.com/hearthware/souschef/pkg/rtc"
	"github.com/hearthware/souschef/pkg/storage"
)

// Config is the server configuration, filled from environment variables and
// flag overrides.
type Config struct {
	Addr        string   `env:"SOUSCHEF_ADDR" envDefault:":8090"`
	PublicURL   string   `env:"SOUSCHEF_PUBLIC_URL"`
	APIKey      string   `env:"SOUSCHEF_API_KEY"`
	APISecret   string   `env:"SOUSCHEF_API_SECRET"`
	DataDir     string   `env:"SOUSCHEF_DATA_DIR"`
	SnapshotDir string   `env:"SOUSCHEF_SNAPSHOT_DIR"`
	STUNServers []string `env:"SOUSCHEF_STUN" envSeparator:","`
}

// serverSessionID keys the authoritative room session in the kv store, so a
// restarted server resumes the same session (and its timer deadlines).
const serverSessionID = "live"

const maxControlBody = 64 << 10

// Server is the kitchen signaling/session server.
type Server struct {
	cfg    Config
	minter *roomtoken.Minter

	kvStore   kv.Store
	sessions  *kitchen.SessionStore
	snapshots storage.Store // nil when snapshot archiving is disabled

	mu    sync.Mutex
	rooms map[string]*Room
}

// New creates a server. DataDir selects badger-backed persistence; without
// it sessions live in memory and die with the process.
func New(cfg Config) (*Server, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("serve: API key and secret are required")
	}

	var store kv.Store
	if cfg.DataDir != "" {
		b, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.DataDir})
		if err != nil {
			return nil, fmt.Errorf("serve: open data dir: %w", err)
		}
		store = b
	} else {
		store = kv.NewMemory()
	}

	var snaps storage.Store
	if cfg.SnapshotDir != "" {
		local, err := storage.NewLocal(cfg.SnapshotDir)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("serve: open snapshot dir: %w", err)
		}
		snaps = local
	}

	return &Server{
		cfg:       cfg,
		minter:    &roomtoken.Minter{APIKey: cfg.APIKey, Secret: cfg.APISecret},
		kvStore:   store,
		sessions:  kitchen.NewSessionStore(store),
		snapshots: snaps,
		rooms:     make(map[string]*Room),
	}, nil
}

// Close releases the kv store.
func (s *Server) Close() error {
	return s.kvStore.Close()
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", s.handleToken)
	mux.HandleFunc("POST /api/rtc/offer", s.handleOffer)
	mux.HandleFunc("POST /api/control", s.handleControl)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	return mux
}

// Room is one live kitchen: the authoritative session plus every attached
// downlink (websocket conns and WebRTC bridges).
type Room struct {
	name    string
	session *kitchen.Session

	mu      sync.Mutex
	conns   map[*kitchen.WSServerConn]struct{}
	bridges map[*rtc.Bridge]struct{}
}

// Session returns the room's authoritative session.
func (r *Room) Session() *kitchen.Session { return r.session }

func (r *Room) attachConn(c *kitchen.WSServerConn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

func (r *Room) detachConn(c *kitchen.WSServerConn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
}

func (r *Room) attachBridge(b *rtc.Bridge) {
	r.mu.Lock()
	r.bridges[b] = struct{}{}
	r.mu.Unlock()
}

func (r *Room) detachBridge(b *rtc.Bridge) {
	r.mu.Lock()
	delete(r.bridges, b)
	r.mu.Unlock()
}

// Broadcast fans a control event out to every attached client. Send failures
// are logged and skipped; a dead conn is reaped by its own read loop.
func (r *Room) Broadcast(ctx context.Context, e *kitchen.ControlEvent) {
	raw, err := json.Marshal(e)
	if err != nil {
		slog.Error("marshal control", "room", r.name, "err", err)
		return
	}

	r.mu.Lock()
	conns := make([]*kitchen.WSServerConn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	bridges := make([]*rtc.Bridge, 0, len(r.bridges))
	for b := range r.bridges {
		bridges = append(bridges, b)
	}
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.SendControl(ctx, e.Payload, e.Time.Time()); err != nil {
			slog.Warn("ws send control", "room", r.name, "err", err)
		}
	}
	for _, b := range bridges {
		if err := b.SendControl(raw); err != nil {
			slog.Warn("rtc send control", "room", r.name, "err", err)
		}
	}
}

// room returns the named room, creating and restoring it on first use.
func (s *Server) room(ctx context.Context, name string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[name]; ok {
		return r
	}

	sess := kitchen.NewSession(name, serverSessionID)
	if err := s.sessions.Restore(ctx, sess); err != nil {
		slog.Warn("restore session", "room", name, "err", err)
	}
	r := &Room{
		name:    name,
		session: sess,
		conns:   make(map[*kitchen.WSServerConn]struct{}),
		bridges: make(map[*rtc.Bridge]struct{}),
	}
	s.rooms[name] = r
	return r
}

func (s *Server) persist(ctx context.Context, r *Room) {
	if err := s.sessions.Save(ctx, r.session.Snapshot()); err != nil {
		slog.Warn("persist session", "room", r.name, "err", err)
	}
}

// authorize validates the Bearer token and its room grant.
func (s *Server) authorize(r *http.Request, room string) (roomtoken.Claims, error) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return roomtoken.Claims{}, errors.New("missing bearer token")
	}
	claims, err := roomtoken.Verify(token, s.cfg.APIKey, s.cfg.APISecret)
	if err != nil {
		return roomtoken.Claims{}, err
	}
	if claims.Grant.Room != "" && claims.Grant.Room != room {
		return roomtoken.Claims{}, fmt.Errorf("token is scoped to room %q", claims.Grant.Room)
	}
	return claims, nil
}

// validName reports whether s is usable as a room or identity name. Names
// end up in kv key segments and snapshot file paths, so path and key
// separators (and anything unprintable) are rejected.
func validName(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	if strings.ContainsAny(s, "/\\:") || strings.Contains(s, "..") {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return false
		}
	}
	return true
}

// roomParam extracts and validates the room query parameter.
func roomParam(r *http.Request) (string, error) {
	name := r.URL.Query().Get("room")
	if name == "" {
		return "", errors.New("room query parameter is required")
	}
	if !validName(name) {
		return "", fmt.Errorf("invalid room name %q", name)
	}
	return name, nil
}

func httpError(w http.ResponseWriter, code int, err error) {
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "err", err)
	}
}

type tokenRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	TTLSecs  int    `json:"ttl_seconds,omitempty"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	URL      string `json:"url,omitempty"`
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxControlBody)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Room == "" || req.Identity == "" {
		httpError(w, http.StatusBadRequest, errors.New("room and identity are required"))
		return
	}
	if !validName(req.Room) {
		httpError(w, http.StatusBadRequest, fmt.Errorf("invalid room name %q", req.Room))
		return
	}
	if !validName(req.Identity) {
		httpError(w, http.StatusBadRequest, fmt.Errorf("invalid identity %q", req.Identity))
		return
	}

	yes := true
	token, err := s.minter.Mint(roomtoken.MintOptions{
		Identity: req.Identity,
		Name:     req.Name,
		TTL:      time.Duration(req.TTLSecs) * time.Second,
		Grant: roomtoken.Grant{
			Room:           req.Room,
			RoomJoin:       true,
			CanPublish:     &yes,
			CanSubscribe:   &yes,
			CanPublishData: &yes,
		},
	})
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:    token,
		URL:      s.cfg.PublicURL,
		Room:     req.Room,
		Identity: req.Identity,
	})
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	roomName, err := roomParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	claims, err := s.authorize(r, roomName)
	if err != nil {
		httpError(w, http.StatusUnauthorized, err)
		return
	}

	sdp, err := io.ReadAll(io.LimitReader(r.Body, 256<<10))
	if err != nil || len(sdp) == 0 {
		httpError(w, http.StatusBadRequest, errors.New("missing SDP offer body"))
		return
	}

	room := s.room(r.Context(), roomName)

	bridge, err := rtc.NewServerBridge(rtc.Config{STUNServers: s.cfg.STUNServers})
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	answer, err := bridge.AcceptOffer(r.Context(), string(sdp))
	if err != nil {
		bridge.Close()
		httpError(w, http.StatusBadRequest, fmt.Errorf("accept offer: %w", err))
		return
	}

	room.attachBridge(bridge)
	go s.serveBridge(room, bridge, claims.Identity)

	slog.Info("rtc peer joined", "room", roomName, "identity", claims.Identity)
	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, answer)
}

// serveBridge drains a bridge's inbound streams until it dies, then detaches
// it from the room.
func (s *Server) serveBridge(room *Room, bridge *rtc.Bridge, identity string) {
	defer func() {
		room.detachBridge(bridge)
		bridge.Close()
		slog.Info("rtc peer left", "room", room.name, "identity", identity)
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, err := range bridge.Audio() {
			if err != nil {
				return
			}
			room.session.CountAudioFrames(1, 0, 0)
		}
	}()
	go func() {
		defer wg.Done()
		for raw, err := range bridge.Controls() {
			if err != nil {
				return
			}
			s.applyControl(context.Background(), room, raw)
		}
	}()
	wg.Wait()
}

// applyControl runs one raw control through the room session and, when it
// applied cleanly, broadcasts and persists it. Decode and domain errors are
// reported to the caller but never kill a connection.
func (s *Server) applyControl(ctx context.Context, room *Room, raw []byte) error {
	e, err := room.session.ApplyRaw(raw)
	if err != nil {
		slog.Warn("apply control", "room", room.name, "err", err)
		return err
	}
	room.Broadcast(ctx, e)
	s.persist(ctx, room)
	return nil
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	roomName, err := roomParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	claims, err := s.authorize(r, roomName)
	if err != nil {
		httpError(w, http.StatusUnauthorized, err)
		return
	}
	if claims.Grant.CanPublishData != nil && !*claims.Grant.CanPublishData {
		httpError(w, http.StatusForbidden, errors.New("token may not publish data"))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxControlBody))
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	room := s.room(r.Context(), roomName)
	if err := s.applyControl(r.Context(), room, raw); err != nil {
		httpError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"applied": true})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	roomName, err := roomParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.authorize(r, roomName); err != nil {
		httpError(w, http.StatusUnauthorized, err)
		return
	}

	room := s.room(r.Context(), roomName)

	if r.URL.Query().Get("once") != "" {
		writeJSON(w, http.StatusOK, room.session.Snapshot())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusNotImplemented, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	changes, cancel := room.session.Watch()
	defer cancel()

	send := func() bool {
		data, err := json.Marshal(room.session.Snapshot())
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}
	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-changes:
			if !send() {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomName, err := roomParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	claims, err := s.authorize(r, roomName)
	if err != nil {
		httpError(w, http.StatusUnauthorized, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	room := s.room(r.Context(), roomName)
	conn := kitchen.NewWSServerConn(ws)
	room.attachConn(conn)
	slog.Info("ws peer joined", "room", roomName, "identity", claims.Identity)
	defer func() {
		room.detachConn(conn)
		conn.Close()
		slog.Info("ws peer left", "room", roomName, "identity", claims.Identity)
	}()

	s.serveUplink(room, conn, claims.Identity)
}

// serveUplink drains a websocket conn's uplink streams until the peer goes
// away. Audio is counted and dropped (there is no agent backend in this
// server), camera frames are archived when a snapshot store is configured.
func (s *Server) serveUplink(room *Room, conn *kitchen.WSServerConn, identity string) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for _, err := range conn.AudioFrames() {
			if err != nil {
				return
			}
			room.session.CountAudioFrames(1, 0, 0)
		}
	}()

	go func() {
		defer wg.Done()
		for ev, err := range conn.Stats() {
			if err != nil {
				return
			}
			slog.Debug("client stats", "room", room.name, "identity", identity,
				"control_events", ev.Stats.ControlEvents,
				"frames_dropped", ev.Stats.FramesDropped)
		}
	}()

	go func() {
		defer wg.Done()
		for frame, err := range conn.CameraFrames() {
			if err != nil {
				return
			}
			s.archiveCameraFrame(room, frame)
		}
	}()

	wg.Wait()
}

func (s *Server) archiveCameraFrame(room *Room, frame *kitchen.CameraFrame) {
	if s.snapshots == nil {
		return
	}
	path := storage.SnapshotPath(room.name, serverSessionID, frame.Time.Time())
	if err := s.snapshots.Put(context.Background(), path, frame.Data); err != nil {
		slog.Warn("archive camera frame", "room", room.name, "err", err)
		return
	}
	slog.Info("camera frame archived", "room", room.name, "path", path, "bytes", len(frame.Data))
}
