package featrack

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// frameImage lets fake detector know which frame it looks at
type frameImage struct {
	frame int64
}

func (img frameImage) Width() int  { return 640 }
func (img frameImage) Height() int { return 480 }

type fakeDetector struct {
	frames map[int64][]Feature
	calls  int
}

func (d *fakeDetector) Detect(img Image, mask Image) ([]Feature, error) {
	d.calls++
	fi, ok := img.(frameImage)
	if !ok {
		return nil, errors.New("unexpected image type")
	}
	return d.frames[fi.frame], nil
}

// locationExtractor describes a feature by its location
type locationExtractor struct {
	calls int
}

func (e *locationExtractor) Extract(img Image, features []Feature, mask Image) ([]Descriptor, error) {
	e.calls++
	descriptors := make([]Descriptor, len(features))
	for i, f := range features {
		descriptors[i] = Descriptor{f.Location.X, f.Location.Y}
	}
	return descriptors, nil
}

// equalityMatcher pairs features whose descriptors are identical
type equalityMatcher struct{}

func (equalityMatcher) Match(featuresA []Feature, descriptorsA []Descriptor, featuresB []Feature, descriptorsB []Descriptor) ([]Match, error) {
	matches := make([]Match, 0)
	used := make(map[int]bool)
	for i := range descriptorsA {
		for j := range descriptorsB {
			if used[j] || !cmp.Equal(descriptorsA[i], descriptorsB[j]) {
				continue
			}
			used[j] = true
			matches = append(matches, Match{Left: i, Right: j})
			break
		}
	}
	return matches, nil
}

// scriptedMatcher returns fixed answer
type scriptedMatcher struct {
	matches []Match
	err     error
}

func (m scriptedMatcher) Match(featuresA []Feature, descriptorsA []Descriptor, featuresB []Feature, descriptorsB []Descriptor) ([]Match, error) {
	return m.matches, m.err
}

type recordingCloser struct {
	frames []int64
}

func (c *recordingCloser) Stitch(frame int64, set *TrackSet, img Image, mask Image) (*TrackSet, error) {
	c.frames = append(c.frames, frame)
	return set, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func feat(x, y float64) Feature {
	return Feature{Location: Point{X: x, Y: y}}
}

func newTestTracker(detector Detector, matcher Matcher, opts ...Option) *FeatureTracker {
	base := []Option{
		WithDetector(detector),
		WithExtractor(&locationExtractor{}),
		WithMatcher(matcher),
		WithLogger(quietLogger()),
	}
	return NewFeatureTracker(append(base, opts...)...)
}

func checkInvariants(t *testing.T, set *TrackSet) {
	t.Helper()
	seen := make(map[int64]struct{})
	for _, track := range set.Tracks() {
		if _, ok := seen[track.ID()]; ok {
			t.Errorf("Duplicate track ID %d", track.ID())
		}
		seen[track.ID()] = struct{}{}
		frames := track.Frames()
		for i := 1; i < len(frames); i++ {
			if frames[i] <= frames[i-1] {
				t.Errorf("Track %d frames are not strictly increasing: %v", track.ID(), frames)
				break
			}
		}
	}
}

func TestTrackNotConfigured(t *testing.T) {
	tracker := NewFeatureTracker(WithDetector(&fakeDetector{}), WithLogger(quietLogger()))
	_, err := tracker.Track(nil, 0, frameImage{0}, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestTrackMaskMismatch(t *testing.T) {
	tracker := newTestTracker(&fakeDetector{}, equalityMatcher{})
	_, err := tracker.Track(nil, 0, frameImage{0}, NewImageSize(320, 240))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) || mismatch.MaskWidth != 320 || mismatch.ImageWidth != 640 {
		t.Errorf("Expected DimensionMismatchError with sizes, got %v", err)
	}
	// Empty mask is ignored
	if _, err := tracker.Track(nil, 0, frameImage{0}, NewImageSize(0, 0)); err != nil {
		t.Errorf("Empty mask should be accepted, got %v", err)
	}
	// Same size mask is fine
	if _, err := tracker.Track(nil, 0, frameImage{0}, NewImageSize(640, 480)); err != nil {
		t.Errorf("Same size mask should be accepted, got %v", err)
	}
}

func TestTrackFirstFrame(t *testing.T) {
	detector := &fakeDetector{frames: map[int64][]Feature{
		3: {feat(1, 1), feat(2, 2), feat(3, 3)},
	}}
	closer := &recordingCloser{}
	tracker := newTestTracker(detector, equalityMatcher{}, WithLoopCloser(closer))
	set, err := tracker.Track(nil, 3, frameImage{3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if set.Size() != 3 {
		t.Fatalf("Expected 3 tracks, got %d", set.Size())
	}
	for i, track := range set.Tracks() {
		if track.ID() != int64(i) {
			t.Errorf("Expected ID %d at position %d, got %d", i, i, track.ID())
		}
		if track.Size() != 1 || track.FirstFrame() != 3 {
			t.Errorf("Track %d should be a singleton at frame 3, got frames %v", track.ID(), track.Frames())
		}
		state, _ := track.StateAt(3)
		if state.Feature.Location.X != float64(i+1) {
			t.Errorf("Track %d should hold feature %d in detection order, got x=%f", track.ID(), i, state.Feature.Location.X)
		}
	}
	if diff := cmp.Diff([]int64{3}, closer.frames); diff != "" {
		t.Errorf("Loop closer frames mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackExtendsMatchedTrack(t *testing.T) {
	track, err := NewTrack(7, TrackState{Frame: 5, Feature: &Feature{Location: Point{X: 10, Y: 10}}, Descriptor: Descriptor{10, 10}})
	if err != nil {
		t.Fatal(err)
	}
	prev := mustSet(t, track)
	detector := &fakeDetector{frames: map[int64][]Feature{
		6: {feat(10, 10)},
	}}
	tracker := newTestTracker(detector, equalityMatcher{})
	set, err := tracker.Track(prev, 6, frameImage{6}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{7}, set.AllTrackIDs()); diff != "" {
		t.Errorf("Track IDs mismatch (-want +got):\n%s", diff)
	}
	extended, _ := set.Track(7)
	if diff := cmp.Diff([]int64{5, 6}, extended.Frames()); diff != "" {
		t.Errorf("Track 7 frames mismatch (-want +got):\n%s", diff)
	}
	// Previous snapshot is untouched
	old, _ := prev.Track(7)
	if old.Size() != 1 {
		t.Errorf("Expected previous set to keep 1 state, got %d", old.Size())
	}
}

func TestTrackCreatesTracksForUnmatched(t *testing.T) {
	prev := mustSet(t, mustTrack(t, 2, 0), mustTrack(t, 11, 0))
	detector := &fakeDetector{frames: map[int64][]Feature{
		1: {feat(0, 0), feat(5, 5), feat(6, 6)},
	}}
	// Index 0 of the new frame continues track 2 (first active), indices 1 and 2 are new
	tracker := newTestTracker(detector, scriptedMatcher{matches: []Match{{Left: 0, Right: 0}}})
	set, err := tracker.Track(prev, 1, frameImage{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{2, 11, 12, 13}, set.AllTrackIDs()); diff != "" {
		t.Errorf("Track IDs mismatch (-want +got):\n%s", diff)
	}
	created, _ := set.Track(12)
	state, _ := created.StateAt(1)
	if state.Feature.Location.X != 5 {
		t.Errorf("Track 12 should hold first unmatched feature, got x=%f", state.Feature.Location.X)
	}
	checkInvariants(t, set)
}

func TestTrackConsumesIndexEvenWhenRefused(t *testing.T) {
	prev := mustSet(t, mustTrack(t, 0, 0))
	detector := &fakeDetector{frames: map[int64][]Feature{
		1: {feat(1, 1), feat(2, 2)},
	}}
	// Both features match track 0: only the first becomes its state, neither starts a new track
	tracker := newTestTracker(detector, scriptedMatcher{matches: []Match{{Left: 0, Right: 0}, {Left: 0, Right: 1}}})
	set, err := tracker.Track(prev, 1, frameImage{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if set.Size() != 1 {
		t.Errorf("Expected 1 track, got %d", set.Size())
	}
	track, _ := set.Track(0)
	state, _ := track.StateAt(1)
	if track.Size() != 2 || state.Feature.Location.X != 1 {
		t.Errorf("Expected track 0 to get the first matched feature only, got frames %v", track.Frames())
	}
}

func TestTrackMatchingFailure(t *testing.T) {
	prev := mustSet(t, mustTrack(t, 0, 0))
	detector := &fakeDetector{frames: map[int64][]Feature{1: {feat(1, 1)}}}
	closer := &recordingCloser{}
	tracker := newTestTracker(detector, scriptedMatcher{err: errors.New("no geometry")}, WithLoopCloser(closer))
	set, err := tracker.Track(prev, 1, frameImage{1}, nil)
	if err != nil {
		t.Fatalf("Matching failure should not be an error, got %v", err)
	}
	if set != prev {
		t.Error("Expected previous set to be returned unchanged")
	}
	if len(closer.frames) != 0 {
		t.Errorf("Loop closer should not run on skipped frame, ran on %v", closer.frames)
	}
}

func TestTrackOutOfRangeMatchesSkipped(t *testing.T) {
	prev := mustSet(t, mustTrack(t, 0, 0))
	detector := &fakeDetector{frames: map[int64][]Feature{1: {feat(1, 1)}}}
	tracker := newTestTracker(detector, scriptedMatcher{matches: []Match{{Left: 3, Right: 0}, {Left: 0, Right: 9}}})
	set, err := tracker.Track(prev, 1, frameImage{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{0, 1}, set.AllTrackIDs()); diff != "" {
		t.Errorf("Track IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackStitchesReprocessedFrame(t *testing.T) {
	prev := mustSet(t,
		mustTrack(t, 3, 3, 4),
		mustTrack(t, 4, 3, 4),
		mustTrack(t, 9, 5),
		mustTrack(t, 10, 5),
	)
	detector := &fakeDetector{}
	extractor := &locationExtractor{}
	tracker := NewFeatureTracker(
		WithDetector(detector),
		WithExtractor(extractor),
		WithMatcher(scriptedMatcher{matches: []Match{{Left: 0, Right: 0}, {Left: 1, Right: 1}}}),
		WithLogger(quietLogger()),
	)
	set, err := tracker.Track(prev, 5, frameImage{5}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if detector.calls != 0 || extractor.calls != 0 {
		t.Errorf("Stored observations should be reused, detector called %d times, extractor %d", detector.calls, extractor.calls)
	}
	if diff := cmp.Diff([]int64{3, 4}, set.AllTrackIDs()); diff != "" {
		t.Errorf("Track IDs mismatch (-want +got):\n%s", diff)
	}
	for _, track := range set.Tracks() {
		if diff := cmp.Diff([]int64{3, 4, 5}, track.Frames()); diff != "" {
			t.Errorf("Track %d frames mismatch (-want +got):\n%s", track.ID(), diff)
		}
	}
	// Track 3 got track 9's observation
	track3, _ := set.Track(3)
	state, _ := track3.StateAt(5)
	if state.Feature.Location.X != 9 {
		t.Errorf("Expected track 3 to inherit track 9 state, got x=%f", state.Feature.Location.X)
	}
}

func TestTrackReprocessingIsIdempotent(t *testing.T) {
	detector := &fakeDetector{frames: map[int64][]Feature{
		0: {feat(1, 1), feat(2, 2)},
		1: {feat(1, 1), feat(2, 2), feat(3, 3)},
	}}
	tracker := newTestTracker(detector, equalityMatcher{})
	var set *TrackSet
	var err error
	for _, frame := range []int64{0, 1} {
		set, err = tracker.Track(set, frame, frameImage{frame}, nil)
		if err != nil {
			t.Fatal(err)
		}
	}
	again, err := tracker.Track(set, 1, frameImage{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(set.AllTrackIDs(), again.AllTrackIDs()); diff != "" {
		t.Errorf("Track IDs changed on reprocessing (-want +got):\n%s", diff)
	}
	for _, track := range again.Tracks() {
		before, _ := set.Track(track.ID())
		if diff := cmp.Diff(before.Frames(), track.Frames()); diff != "" {
			t.Errorf("Track %d frames changed on reprocessing (-want +got):\n%s", track.ID(), diff)
		}
	}
}

func TestTrackOutOfOrderPrefersPrecedingFrame(t *testing.T) {
	detector := &fakeDetector{frames: map[int64][]Feature{
		0: {feat(1, 1)},
		4: {feat(7, 7)},
		1: {feat(1, 1), feat(7, 7)},
	}}
	tracker := newTestTracker(detector, equalityMatcher{})
	var set *TrackSet
	var err error
	for _, frame := range []int64{0, 4, 1} {
		set, err = tracker.Track(set, frame, frameImage{frame}, nil)
		if err != nil {
			t.Fatal(err)
		}
		checkInvariants(t, set)
	}
	// Frame 4 had nothing matching frame 0 so it started track 1; frame 1 is anchored on frame 0
	track0, _ := set.Track(0)
	if diff := cmp.Diff([]int64{0, 1}, track0.Frames()); diff != "" {
		t.Errorf("Track 0 frames mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{0, 1, 2}, set.AllTrackIDs()); diff != "" {
		t.Errorf("Track IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackOutOfOrderInsertsIntoLastFrameTracks(t *testing.T) {
	prev := mustSet(t, mustTrack(t, 0, 2, 6))
	detector := &fakeDetector{frames: map[int64][]Feature{4: {feat(0, 4)}}}
	// Frame 3 has nothing, so anchor is the last frame 6 and the state is inserted
	tracker := newTestTracker(detector, scriptedMatcher{matches: []Match{{Left: 0, Right: 0}}})
	set, err := tracker.Track(prev, 4, frameImage{4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	track, _ := set.Track(0)
	if diff := cmp.Diff([]int64{2, 4, 6}, track.Frames()); diff != "" {
		t.Errorf("Track 0 frames mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackRandomSequenceKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	frames := make(map[int64][]Feature)
	for frame := int64(0); frame < 12; frame++ {
		n := 3 + rng.Intn(5)
		for i := 0; i < n; i++ {
			// Small grid so that many features repeat across frames
			frames[frame] = append(frames[frame], feat(float64(rng.Intn(4)), float64(rng.Intn(4))))
		}
	}
	order := []int64{0, 1, 2, 5, 3, 4, 8, 6, 7, 2, 9, 11, 10, 5}
	tracker := newTestTracker(&fakeDetector{frames: frames}, equalityMatcher{})
	var set *TrackSet
	var err error
	for _, frame := range order {
		set, err = tracker.Track(set, frame, frameImage{frame}, nil)
		if err != nil {
			t.Fatal(err)
		}
		checkInvariants(t, set)
	}
}
