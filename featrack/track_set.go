package featrack

import (
	"sort"

	"github.com/pkg/errors"
)

// TrackSet is an immutable snapshot of tracks.
// Every transformation returns a new TrackSet and leaves the receiver as it was.
// Tracks stored in a set are never mutated: code which needs to change a track clones it first.
type TrackSet struct {
	tracks []*Track
	index  map[int64]int
}

// NewTrackSet creates set from copies of given tracks. Track IDs must be unique
func NewTrackSet(tracks []*Track) (*TrackSet, error) {
	set := TrackSet{
		tracks: make([]*Track, 0, len(tracks)),
		index:  make(map[int64]int, len(tracks)),
	}
	for _, track := range tracks {
		if track == nil || track.Size() == 0 {
			return nil, errors.Wrap(ErrInvalidState, "track set can't hold empty track")
		}
		if _, ok := set.index[track.ID()]; ok {
			return nil, errors.Wrapf(ErrDuplicateTrackID, "track %d", track.ID())
		}
		set.index[track.ID()] = len(set.tracks)
		set.tracks = append(set.tracks, track.Clone())
	}
	return &set, nil
}

// newTrackSetUnchecked is for tracks already known to have unique IDs
func newTrackSetUnchecked(tracks []*Track) *TrackSet {
	set := TrackSet{
		tracks: tracks,
		index:  make(map[int64]int, len(tracks)),
	}
	for i, track := range tracks {
		set.index[track.ID()] = i
	}
	return &set
}

// WithTracks creates a new set from given tracks
func (set *TrackSet) WithTracks(tracks []*Track) (*TrackSet, error) {
	return NewTrackSet(tracks)
}

// Size returns number of tracks. Nil set is empty
func (set *TrackSet) Size() int {
	if set == nil {
		return 0
	}
	return len(set.tracks)
}

// Empty reports whether set has no tracks
func (set *TrackSet) Empty() bool {
	return set.Size() == 0
}

// Tracks returns copies of all tracks in storage order
func (set *TrackSet) Tracks() []*Track {
	if set == nil {
		return nil
	}
	tracks := make([]*Track, len(set.tracks))
	for i, track := range set.tracks {
		tracks[i] = track.Clone()
	}
	return tracks
}

// Track returns copy of track with given ID
func (set *TrackSet) Track(id int64) (*Track, bool) {
	if set == nil {
		return nil, false
	}
	idx, ok := set.index[id]
	if !ok {
		return nil, false
	}
	return set.tracks[idx].Clone(), true
}

// Contains reports whether track with given ID is in the set
func (set *TrackSet) Contains(id int64) bool {
	if set == nil {
		return false
	}
	_, ok := set.index[id]
	return ok
}

// AllTrackIDs returns IDs of all tracks in ascending order
func (set *TrackSet) AllTrackIDs() []int64 {
	ids := make([]int64, 0, set.Size())
	for _, track := range set.tracksOrNil() {
		ids = append(ids, track.ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NextTrackID returns ID which is free to use for a new track: max(ids)+1, or 0 for an empty set
func (set *TrackSet) NextTrackID() int64 {
	if set.Empty() {
		return 0
	}
	maxID := set.tracks[0].ID()
	for _, track := range set.tracks[1:] {
		if track.ID() > maxID {
			maxID = track.ID()
		}
	}
	return maxID + 1
}

// FirstFrame returns minimum frame across all tracks. False for an empty set
func (set *TrackSet) FirstFrame() (int64, bool) {
	if set.Empty() {
		return 0, false
	}
	first := set.tracks[0].FirstFrame()
	for _, track := range set.tracks[1:] {
		if track.FirstFrame() < first {
			first = track.FirstFrame()
		}
	}
	return first, true
}

// LastFrame returns maximum frame across all tracks. False for an empty set
func (set *TrackSet) LastFrame() (int64, bool) {
	if set.Empty() {
		return 0, false
	}
	last := set.tracks[0].LastFrame()
	for _, track := range set.tracks[1:] {
		if track.LastFrame() > last {
			last = track.LastFrame()
		}
	}
	return last, true
}

// AllFrameIDs returns every frame covered by any track, ascending
func (set *TrackSet) AllFrameIDs() []int64 {
	seen := make(map[int64]struct{})
	for _, track := range set.tracksOrNil() {
		for _, state := range track.states {
			seen[state.Frame] = struct{}{}
		}
	}
	frames := make([]int64, 0, len(seen))
	for frame := range seen {
		frames = append(frames, frame)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })
	return frames
}

// ActiveTracks returns tracks having a state at exactly given frame
func (set *TrackSet) ActiveTracks(frame int64) *TrackSet {
	return set.filter(func(track *Track) bool {
		return track.HasFrame(frame)
	})
}

// InactiveTracks returns tracks without a state at given frame
func (set *TrackSet) InactiveTracks(frame int64) *TrackSet {
	return set.filter(func(track *Track) bool {
		return !track.HasFrame(frame)
	})
}

// NewTracks returns tracks which start at given frame
func (set *TrackSet) NewTracks(frame int64) *TrackSet {
	return set.filter(func(track *Track) bool {
		return track.FirstFrame() == frame
	})
}

// TerminatedTracks returns tracks which end at given frame
func (set *TrackSet) TerminatedTracks(frame int64) *TrackSet {
	return set.filter(func(track *Track) bool {
		return track.LastFrame() == frame
	})
}

// PercentageTracked returns fraction of tracks active at frameA that are also active at frameB.
// Zero when nothing is active at frameA
func (set *TrackSet) PercentageTracked(frameA, frameB int64) float64 {
	active := set.ActiveTracks(frameA)
	if active.Empty() {
		return 0
	}
	kept := 0
	for _, track := range active.tracks {
		if track.HasFrame(frameB) {
			kept++
		}
	}
	return float64(kept) / float64(active.Size())
}

// FrameFeatures returns features observed at given frame, aligned with ActiveTracks(frame)
func (set *TrackSet) FrameFeatures(frame int64) []Feature {
	features := make([]Feature, 0)
	for _, track := range set.tracksOrNil() {
		if state, ok := track.StateAt(frame); ok {
			features = append(features, *state.Feature)
		}
	}
	return features
}

// FrameDescriptors returns descriptors observed at given frame, aligned with ActiveTracks(frame)
func (set *TrackSet) FrameDescriptors(frame int64) []Descriptor {
	descriptors := make([]Descriptor, 0)
	for _, track := range set.tracksOrNil() {
		if state, ok := track.StateAt(frame); ok {
			descriptors = append(descriptors, state.Descriptor)
		}
	}
	return descriptors
}

func (set *TrackSet) filter(keep func(track *Track) bool) *TrackSet {
	tracks := make([]*Track, 0)
	for _, track := range set.tracksOrNil() {
		if keep(track) {
			tracks = append(tracks, track)
		}
	}
	return newTrackSetUnchecked(tracks)
}

func (set *TrackSet) tracksOrNil() []*Track {
	if set == nil {
		return nil
	}
	return set.tracks
}

// at returns stored track by position. Callers must not mutate it
func (set *TrackSet) at(i int) *Track {
	return set.tracks[i]
}

// lookup returns stored track by ID. Callers must not mutate it
func (set *TrackSet) lookup(id int64) (*Track, bool) {
	idx, ok := set.index[id]
	if !ok {
		return nil, false
	}
	return set.tracks[idx], true
}
