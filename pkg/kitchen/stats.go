package kitchen

import "github.com/hearthware/souschef/pkg/jsontime"

// Stats holds cumulative session counters. Cheap to copy and diff, so
// monitors can poll snapshots and publish only what changed.
type Stats struct {
	EventsByType   map[string]uint64 `json:"events_by_type,omitempty"`
	ControlEvents  uint64            `json:"control_events"`
	AudioFramesIn  uint64            `json:"audio_frames_in"`
	AudioFramesOut uint64            `json:"audio_frames_out"`
	FramesDropped  uint64            `json:"frames_dropped"`
	LastEventAt    jsontime.Milli    `json:"last_event_at,omitzero"`
}

func (st *Stats) countEvent(typ string) {
	if st.EventsByType == nil {
		st.EventsByType = make(map[string]uint64)
	}
	st.EventsByType[typ]++
	st.ControlEvents++
	st.LastEventAt = jsontime.NowEpochMilli()
}

func (st *Stats) countAudio(in, out, dropped uint64) {
	st.AudioFramesIn += in
	st.AudioFramesOut += out
	st.FramesDropped += dropped
}

// Clone returns a deep copy.
func (st *Stats) Clone() *Stats {
	v := *st
	if st.EventsByType != nil {
		v.EventsByType = make(map[string]uint64, len(st.EventsByType))
		for k, n := range st.EventsByType {
			v.EventsByType[k] = n
		}
	}
	return &v
}

// Delta describes which counters moved between two snapshots. Nil fields
// did not change.
type Delta struct {
	ControlEvents  *uint64           `json:"control_events,omitempty"`
	AudioFramesIn  *uint64           `json:"audio_frames_in,omitempty"`
	AudioFramesOut *uint64           `json:"audio_frames_out,omitempty"`
	FramesDropped  *uint64           `json:"frames_dropped,omitempty"`
	EventsByType   map[string]uint64 `json:"events_by_type,omitempty"`
}

// Diff compares st against a previous snapshot and returns the changed
// counters, or nil when nothing moved.
func (st *Stats) Diff(prev *Stats) *Delta {
	if prev == nil {
		prev = &Stats{}
	}
	var d Delta
	changed := false

	if st.ControlEvents != prev.ControlEvents {
		n := st.ControlEvents
		d.ControlEvents = &n
		changed = true
	}
	if st.AudioFramesIn != prev.AudioFramesIn {
		n := st.AudioFramesIn
		d.AudioFramesIn = &n
		changed = true
	}
	if st.AudioFramesOut != prev.AudioFramesOut {
		n := st.AudioFramesOut
		d.AudioFramesOut = &n
		changed = true
	}
	if st.FramesDropped != prev.FramesDropped {
		n := st.FramesDropped
		d.FramesDropped = &n
		changed = true
	}
	for typ, n := range st.EventsByType {
		if prev.EventsByType[typ] != n {
			if d.EventsByType == nil {
				d.EventsByType = make(map[string]uint64)
			}
			d.EventsByType[typ] = n
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return &d
}
