package kitchen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hearthware/souschef/pkg/jsontime"
	"github.com/hearthware/souschef/pkg/kv"
)

// SessionStore persists session state so in-flight timers and the grocery
// list survive a client restart. Each session occupies a small keyspace:
//
//	session:<room>:<id>:meta          recipe, step cursor, grocery, dishes
//	session:<room>:<id>:timer:<tid>   one record per live timer
//
// Timer deadlines are absolute, so a restored countdown picks up exactly
// where it left off.
type SessionStore struct {
	kv kv.Store
}

// NewSessionStore wraps a kv.Store.
func NewSessionStore(store kv.Store) *SessionStore {
	return &SessionStore{kv: store}
}

// metaRecord is the msgpack layout of the non-timer session state.
type metaRecord struct {
	Recipe    *Recipe     `msgpack:"recipe"`
	Step      int         `msgpack:"step"`
	Grocery   GroceryList `msgpack:"grocery"`
	Dishes    []Dish      `msgpack:"dishes"`
	Tab       int         `msgpack:"tab"`
	SavedAtMS int64       `msgpack:"saved_at_ms"`
}

// timerRecord is the msgpack layout of one timer. Times are explicit epoch
// milliseconds; a PausedMS of -1 means the timer is running.
type timerRecord struct {
	ID          string `msgpack:"id"`
	Label       string `msgpack:"label"`
	DurationMS  int64  `msgpack:"duration_ms"`
	CreatedAtMS int64  `msgpack:"created_at_ms"`
	DeadlineMS  int64  `msgpack:"deadline_ms"`
	PausedMS    int64  `msgpack:"paused_ms"`
}

func toTimerRecord(t *Timer) timerRecord {
	rec := timerRecord{
		ID:          t.ID,
		Label:       t.Label,
		DurationMS:  t.Duration.Milliseconds(),
		CreatedAtMS: t.CreatedAt.Time().UnixMilli(),
		PausedMS:    -1,
	}
	if !t.Deadline.IsZero() {
		rec.DeadlineMS = t.Deadline.Time().UnixMilli()
	}
	if t.Paused != nil {
		rec.PausedMS = t.Paused.Milliseconds()
	}
	return rec
}

func (rec *timerRecord) timer() *Timer {
	t := &Timer{
		ID:        rec.ID,
		Label:     rec.Label,
		Duration:  jsontime.DurationMS(time.Duration(rec.DurationMS) * time.Millisecond),
		CreatedAt: jsontime.Milli(time.UnixMilli(rec.CreatedAtMS)),
	}
	if rec.DeadlineMS != 0 {
		t.Deadline = jsontime.Milli(time.UnixMilli(rec.DeadlineMS))
	}
	if rec.PausedMS >= 0 {
		p := jsontime.DurationMS(time.Duration(rec.PausedMS) * time.Millisecond)
		t.Paused = &p
	}
	return t
}

func metaKey(room, id string) kv.Key {
	return kv.Key{"session", room, id, "meta"}
}

func timerPrefix(room, id string) kv.Key {
	return kv.Key{"session", room, id, "timer"}
}

// Save writes the snapshot. Timers removed since the last save are pruned in
// the same batch, so the stored keyspace always mirrors the snapshot.
func (ss *SessionStore) Save(ctx context.Context, snap *Snapshot) error {
	meta := metaRecord{
		Recipe:    snap.Recipe,
		Step:      snap.Step,
		Grocery:   snap.Grocery,
		Dishes:    snap.Dishes,
		Tab:       int(snap.Tab),
		SavedAtMS: snap.TakenAt.Time().UnixMilli(),
	}
	metaBytes, err := msgpack.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("kitchen: encode session meta: %w", err)
	}

	set := []kv.Entry{{Key: metaKey(snap.Room, snap.ID), Value: metaBytes}}
	live := make(map[string]bool, len(snap.Timers))
	for _, t := range snap.Timers {
		live[t.ID] = true
		rec := toTimerRecord(t)
		b, err := msgpack.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("kitchen: encode timer %s: %w", t.ID, err)
		}
		set = append(set, kv.Entry{
			Key:   append(timerPrefix(snap.Room, snap.ID), t.ID),
			Value: b,
		})
	}

	// Prune timers that no longer exist.
	var del []kv.Key
	for entry, err := range ss.kv.List(ctx, timerPrefix(snap.Room, snap.ID)) {
		if err != nil {
			return fmt.Errorf("kitchen: list stored timers: %w", err)
		}
		tid := entry.Key[len(entry.Key)-1]
		if !live[tid] {
			del = append(del, entry.Key)
		}
	}

	if err := ss.kv.Batch(ctx, set, del); err != nil {
		return fmt.Errorf("kitchen: save session: %w", err)
	}
	return nil
}

// Load reads a stored snapshot. A session that was never saved returns
// (nil, nil). A corrupt record is logged and discarded so the caller starts
// fresh instead of crash-looping on bad state.
func (ss *SessionStore) Load(ctx context.Context, room, id string) (*Snapshot, error) {
	metaBytes, err := ss.kv.Get(ctx, metaKey(room, id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kitchen: load session meta: %w", err)
	}

	var meta metaRecord
	if err := msgpack.Unmarshal(metaBytes, &meta); err != nil {
		slog.Warn("discarding corrupt session meta", "room", room, "session", id, "error", err)
		return nil, nil
	}

	snap := &Snapshot{
		ID:      id,
		Room:    room,
		Recipe:  meta.Recipe,
		Step:    meta.Step,
		Grocery: meta.Grocery,
		Dishes:  meta.Dishes,
		Tab:     Tab(meta.Tab),
	}

	for entry, err := range ss.kv.List(ctx, timerPrefix(room, id)) {
		if err != nil {
			return nil, fmt.Errorf("kitchen: load timers: %w", err)
		}
		var rec timerRecord
		if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
			slog.Warn("discarding corrupt timer record", "room", room, "session", id, "key", entry.Key.String(), "error", err)
			continue
		}
		snap.Timers = append(snap.Timers, rec.timer())
	}

	return snap, nil
}

// Restore loads persisted state into sess. Missing state is a no-op.
func (ss *SessionStore) Restore(ctx context.Context, sess *Session) error {
	snap, err := ss.Load(ctx, sess.Room(), sess.ID())
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	sess.restore(snap)
	return nil
}

// Delete removes all stored state for a session.
func (ss *SessionStore) Delete(ctx context.Context, room, id string) error {
	del := []kv.Key{metaKey(room, id)}
	for entry, err := range ss.kv.List(ctx, timerPrefix(room, id)) {
		if err != nil {
			return fmt.Errorf("kitchen: list session keys: %w", err)
		}
		del = append(del, entry.Key)
	}
	return ss.kv.Batch(ctx, nil, del)
}
