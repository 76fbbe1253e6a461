package featrack

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FeatureTracker extends a set of feature tracks one frame at a time.
// It holds no per-call state: the whole tracking history lives in the TrackSet passed to Track.
type FeatureTracker struct {
	detector  Detector
	extractor Extractor
	matcher   Matcher
	// Optional
	closer    LoopCloser
	logger    *slog.Logger
	sessionID uuid.UUID
}

// Option configures FeatureTracker
type Option func(*FeatureTracker)

// WithDetector sets feature detector
func WithDetector(detector Detector) Option {
	return func(ft *FeatureTracker) {
		ft.detector = detector
	}
}

// WithExtractor sets descriptor extractor
func WithExtractor(extractor Extractor) Option {
	return func(ft *FeatureTracker) {
		ft.extractor = extractor
	}
}

// WithMatcher sets feature matcher
func WithMatcher(matcher Matcher) Option {
	return func(ft *FeatureTracker) {
		ft.matcher = matcher
	}
}

// WithLoopCloser sets optional loop closer
func WithLoopCloser(closer LoopCloser) Option {
	return func(ft *FeatureTracker) {
		ft.closer = closer
	}
}

// WithLogger sets logger. Default is slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(ft *FeatureTracker) {
		if logger != nil {
			ft.logger = logger
		}
	}
}

// NewFeatureTracker creates tracker with given collaborators
func NewFeatureTracker(opts ...Option) *FeatureTracker {
	ft := &FeatureTracker{
		logger:    slog.Default(),
		sessionID: uuid.New(),
	}
	for _, opt := range opts {
		opt(ft)
	}
	ft.logger = ft.logger.With("session", ft.sessionID.String())
	return ft
}

// SessionID returns identifier used to tag this tracker's log records
func (ft *FeatureTracker) SessionID() uuid.UUID {
	return ft.sessionID
}

// CheckConfiguration returns ErrNotConfigured if detector, extractor or matcher is missing
func (ft *FeatureTracker) CheckConfiguration() error {
	missing := make([]string, 0, 3)
	if ft.detector == nil {
		missing = append(missing, "detector")
	}
	if ft.extractor == nil {
		missing = append(missing, "extractor")
	}
	if ft.matcher == nil {
		missing = append(missing, "matcher")
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrNotConfigured, "missing %v", missing)
	}
	return nil
}

// Track extends prev with observations of given frame and returns the new set.
//
// A nil (or empty) prev starts tracking: every detected feature becomes a track with IDs 0..N-1.
// If prev already has tracks at frame, their stored observations are reused and the frame is
// stitched to the anchor frame instead of extended. Frames may arrive in any order.
// When matching fails prev is returned as is. prev itself is never modified.
func (ft *FeatureTracker) Track(prev *TrackSet, frame int64, img Image, mask Image) (*TrackSet, error) {
	if err := ft.CheckConfiguration(); err != nil {
		return nil, err
	}
	if !isEmptyImage(mask) && (img == nil || img.Width() != mask.Width() || img.Height() != mask.Height()) {
		mismatch := &DimensionMismatchError{
			MaskWidth:  mask.Width(),
			MaskHeight: mask.Height(),
		}
		if img != nil {
			mismatch.ImageWidth = img.Width()
			mismatch.ImageHeight = img.Height()
		}
		return nil, mismatch
	}
	start := time.Now()
	defer func() {
		trackDuration.Observe(time.Since(start).Seconds())
	}()
	logger := ft.logger.With("frame", frame)

	existing := prev.ActiveTracks(frame)
	features, descriptors, err := ft.observe(logger, existing, frame, img, mask)
	if err != nil {
		return nil, err
	}

	if prev.Empty() {
		return ft.trackFirst(frame, features, descriptors, img, mask)
	}

	anchor := ft.anchorFrame(prev, frame)
	anchorSet := prev.ActiveTracks(anchor)
	matches, err := ft.matcher.Match(anchorSet.FrameFeatures(anchor), anchorSet.FrameDescriptors(anchor), features, descriptors)
	if err != nil {
		matchingFailures.Inc()
		logger.Warn("featrack: feature matching failed, frame skipped", "anchor", anchor, "error", err)
		return prev, nil
	}

	var updated *TrackSet
	if !existing.Empty() {
		updated, err = ft.stitch(logger, prev, existing, anchorSet, anchor, matches)
		if err != nil {
			return nil, err
		}
		framesTracked.WithLabelValues("stitch").Inc()
	} else {
		updated = ft.extend(logger, prev, anchorSet, frame, matches, features, descriptors)
		framesTracked.WithLabelValues("extend").Inc()
	}

	if ft.closer != nil {
		updated, err = ft.closer.Stitch(frame, updated, img, mask)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't close loops on frame %d", frame)
		}
	}
	return updated, nil
}

// observe returns features and descriptors of the current frame.
// Observations already stored in tracks are reused; otherwise detector and extractor run.
func (ft *FeatureTracker) observe(logger *slog.Logger, existing *TrackSet, frame int64, img Image, mask Image) ([]Feature, []Descriptor, error) {
	var features []Feature
	var descriptors []Descriptor
	if !existing.Empty() {
		logger.Debug("featrack: using existing features", "tracks", existing.Size())
		features = existing.FrameFeatures(frame)
		descriptors = existing.FrameDescriptors(frame)
	}
	if len(features) == 0 {
		logger.Debug("featrack: computing new features")
		detected, err := ft.detector.Detect(img, mask)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Can't detect features on frame %d", frame)
		}
		features = detected
		descriptors = nil
	}
	if len(descriptors) == 0 {
		logger.Debug("featrack: computing new descriptors", "features", len(features))
		extracted, err := ft.extractor.Extract(img, features, mask)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Can't extract descriptors on frame %d", frame)
		}
		descriptors = extracted
	}
	if len(descriptors) != len(features) {
		return nil, nil, errors.Errorf("frame %d: %d descriptors for %d features", frame, len(descriptors), len(features))
	}
	return features, descriptors, nil
}

// trackFirst turns every observation into a singleton track
func (ft *FeatureTracker) trackFirst(frame int64, features []Feature, descriptors []Descriptor, img Image, mask Image) (*TrackSet, error) {
	tracks := make([]*Track, 0, len(features))
	for i := range features {
		tracks = append(tracks, newSingleton(int64(i), frame, features[i], descriptors[i]))
	}
	tracksCreated.Add(float64(len(tracks)))
	framesTracked.WithLabelValues("first").Inc()
	set := newTrackSetUnchecked(tracks)
	if ft.closer != nil {
		// Let loop closer register the first frame
		closed, err := ft.closer.Stitch(frame, set, img, mask)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't close loops on frame %d", frame)
		}
		return closed, nil
	}
	return set, nil
}

// anchorFrame picks previously tracked frame to match against.
// Normally it is the last tracked frame; when tracking out of order the directly preceding frame is preferred
func (ft *FeatureTracker) anchorFrame(prev *TrackSet, frame int64) int64 {
	last, _ := prev.LastFrame()
	if last >= frame && frame > 0 {
		if !prev.ActiveTracks(frame - 1).Empty() {
			return frame - 1
		}
	}
	return last
}

// stitch fuses chains which already exist at the current frame with the anchor frame chains they match
func (ft *FeatureTracker) stitch(logger *slog.Logger, prev, existing, anchorSet *TrackSet, anchor int64, matches []Match) (*TrackSet, error) {
	requests := make([]FusionRequest, 0, len(matches))
	for _, m := range matches {
		if m.Left < 0 || m.Left >= anchorSet.Size() || m.Right < 0 || m.Right >= existing.Size() {
			logger.Warn("featrack: match index out of range, skipped", "left", m.Left, "right", m.Right)
			continue
		}
		requests = append(requests, fusionRequest(anchorSet.at(m.Left), existing.at(m.Right)))
	}
	result, err := MergeTracks(prev, requests)
	if err != nil {
		return nil, errors.Wrap(err, "Can't stitch tracks")
	}
	tracksMerged.Add(float64(result.Merged))
	logger.Debug("featrack: stitched existing tracks", "anchor", anchor, "linked", result.Merged)
	return result.Tracks, nil
}

// fusionRequest orders two tracks: the chain which starts earlier continues, ties go to the lower ID
func fusionRequest(a, b *Track) FusionRequest {
	if b.FirstFrame() < a.FirstFrame() || (b.FirstFrame() == a.FirstFrame() && b.ID() < a.ID()) {
		a, b = b, a
	}
	return FusionRequest{Continuing: a.ID(), Retiring: b.ID()}
}

// extend adds matched observations to anchor tracks and starts new tracks for the rest
func (ft *FeatureTracker) extend(logger *slog.Logger, prev, anchorSet *TrackSet, frame int64, matches []Match, features []Feature, descriptors []Descriptor) *TrackSet {
	// Copy-on-write: only tracks receiving a state are cloned
	modified := make(map[int64]*Track)
	consumed := make([]bool, len(features))
	added := 0
	for _, m := range matches {
		if m.Left < 0 || m.Left >= anchorSet.Size() || m.Right < 0 || m.Right >= len(features) {
			logger.Warn("featrack: match index out of range, skipped", "left", m.Left, "right", m.Right)
			continue
		}
		stored := anchorSet.at(m.Left)
		track, ok := modified[stored.ID()]
		if !ok {
			track = stored.Clone()
		}
		feature := features[m.Right]
		state := TrackState{
			Frame:      frame,
			Feature:    &feature,
			Descriptor: descriptors[m.Right],
		}
		if track.Append(state) || track.Insert(state) {
			modified[track.ID()] = track
			added++
		}
		consumed[m.Right] = true
	}
	statesAdded.Add(float64(added))

	tracks := make([]*Track, 0, prev.Size()+len(features))
	for _, track := range prev.tracks {
		if changed, ok := modified[track.ID()]; ok {
			tracks = append(tracks, changed)
			continue
		}
		tracks = append(tracks, track)
	}
	nextID := prev.NextTrackID()
	created := 0
	for i := range features {
		if consumed[i] {
			continue
		}
		tracks = append(tracks, newSingleton(nextID, frame, features[i], descriptors[i]))
		nextID++
		created++
	}
	tracksCreated.Add(float64(created))
	logger.Debug("featrack: extended tracks", "extended", added, "created", created)
	return newTrackSetUnchecked(tracks)
}

func newSingleton(id int64, frame int64, feature Feature, descriptor Descriptor) *Track {
	return &Track{
		id: id,
		states: []TrackState{{
			Frame:      frame,
			Feature:    &feature,
			Descriptor: descriptor,
		}},
	}
}
