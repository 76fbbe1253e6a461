package featrack

import (
	"sort"

	"github.com/pkg/errors"
)

// Feature is a single 2D keypoint. Scale and Angle are optional (zero when the detector does not estimate them)
type Feature struct {
	Location Point
	Scale    float64
	Angle    float64
}

// Descriptor is a fixed-length appearance vector for a Feature detected at the same frame
type Descriptor []float64

// TrackState is one observation of a track at one frame
type TrackState struct {
	Frame      int64
	Feature    *Feature
	Descriptor Descriptor
}

// Track is an identity of a single physical point followed across frames.
// States are kept strictly increasing by frame.
type Track struct {
	id     int64
	states []TrackState
}

// NewTrack creates track with given ID and initial states.
// At least one state is required; states must carry a feature and be strictly increasing by frame.
func NewTrack(id int64, states ...TrackState) (*Track, error) {
	if len(states) == 0 {
		return nil, errors.Wrapf(ErrInvalidState, "track %d has no initial state", id)
	}
	track := Track{
		id:     id,
		states: make([]TrackState, 0, len(states)),
	}
	for _, state := range states {
		if state.Feature == nil {
			return nil, errors.Wrapf(ErrInvalidState, "track %d: state at frame %d has no feature", id, state.Frame)
		}
		if !track.Append(state) {
			return nil, errors.Wrapf(ErrInvalidState, "track %d: state at frame %d is out of order", id, state.Frame)
		}
	}
	return &track, nil
}

// ID returns track's identifier
func (track *Track) ID() int64 {
	return track.id
}

// Size returns number of states
func (track *Track) Size() int {
	return len(track.states)
}

// FirstFrame returns frame of the earliest state
func (track *Track) FirstFrame() int64 {
	return track.states[0].Frame
}

// LastFrame returns frame of the latest state
func (track *Track) LastFrame() int64 {
	return track.states[len(track.states)-1].Frame
}

// States returns copy of track's states
func (track *Track) States() []TrackState {
	states := make([]TrackState, len(track.states))
	copy(states, track.states)
	return states
}

// Frames returns frames the track has states at, in increasing order
func (track *Track) Frames() []int64 {
	frames := make([]int64, len(track.states))
	for i := range track.states {
		frames[i] = track.states[i].Frame
	}
	return frames
}

// Append adds state at the end iff its frame is after the last one
func (track *Track) Append(state TrackState) bool {
	if len(track.states) > 0 && state.Frame <= track.LastFrame() {
		return false
	}
	track.states = append(track.states, state)
	return true
}

// Insert puts state into frame order iff no state occupies its frame yet
func (track *Track) Insert(state TrackState) bool {
	idx, found := track.search(state.Frame)
	if found {
		return false
	}
	track.states = append(track.states, TrackState{})
	copy(track.states[idx+1:], track.states[idx:])
	track.states[idx] = state
	return true
}

// StateAt returns state at exactly given frame
func (track *Track) StateAt(frame int64) (TrackState, bool) {
	idx, found := track.search(frame)
	if !found {
		return TrackState{}, false
	}
	return track.states[idx], true
}

// HasFrame reports whether track has a state at given frame
func (track *Track) HasFrame(frame int64) bool {
	_, found := track.search(frame)
	return found
}

// Clone returns deep copy of the track's state sequence.
// Features and descriptors are shared since they are never mutated.
func (track *Track) Clone() *Track {
	states := make([]TrackState, len(track.states), cap(track.states)+1)
	copy(states, track.states)
	return &Track{
		id:     track.id,
		states: states,
	}
}

func (track *Track) search(frame int64) (int, bool) {
	idx := sort.Search(len(track.states), func(i int) bool {
		return track.states[i].Frame >= frame
	})
	return idx, idx < len(track.states) && track.states[idx].Frame == frame
}
