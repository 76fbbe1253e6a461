package closing

import (
	"log/slog"

	"github.com/LdDl/featrack-go/featrack"
	"github.com/LdDl/featrack-go/matching"
	"github.com/pkg/errors"
)

// GapCloser reconnects tracks broken by short detection gaps.
// A track lost during the last few frames is fused with a track born at the current frame
// when the newborn lies close to the lost track's predicted position and looks alike.
// It implements featrack.LoopCloser and keeps no state between calls.
type GapCloser struct {
	// Max number of frames a track may be missing. Default 5
	window int64
	// Gate on distance between predicted and observed location (pixels). Default 20.0
	maxPixelDistance float64
	// Gate on descriptor distance. Default 0.5
	maxDescriptorDistance float64
	// Number of latest states used to fit motion model. Default 10
	historyLen int
	logger     *slog.Logger
}

// NewGapCloserDefault creates default instance of GapCloser
func NewGapCloserDefault() *GapCloser {
	return &GapCloser{
		window:                5,
		maxPixelDistance:      20.0,
		maxDescriptorDistance: 0.5,
		historyLen:            10,
		logger:                slog.Default(),
	}
}

// NewGapCloser creates new instance of GapCloser
func NewGapCloser(window int64, maxPixelDistance, maxDescriptorDistance float64) *GapCloser {
	return &GapCloser{
		window:                window,
		maxPixelDistance:      maxPixelDistance,
		maxDescriptorDistance: maxDescriptorDistance,
		historyLen:            10,
		logger:                slog.Default(),
	}
}

// SetLogger sets closer's logger
func (closer *GapCloser) SetLogger(logger *slog.Logger) {
	if logger != nil {
		closer.logger = logger
	}
}

// SetHistoryLen sets number of latest states used to fit motion model
func (closer *GapCloser) SetHistoryLen(historyLen int) {
	closer.historyLen = historyLen
}

// Stitch fuses tracks lost within the window with tracks born at frame
func (closer *GapCloser) Stitch(frame int64, set *featrack.TrackSet, img featrack.Image, mask featrack.Image) (*featrack.TrackSet, error) {
	newborn := make([]*featrack.Track, 0)
	lost := make([]*featrack.Track, 0)
	for _, track := range set.Tracks() {
		last := track.LastFrame()
		switch {
		case track.FirstFrame() == frame:
			newborn = append(newborn, track)
		case last < frame && frame-last <= closer.window:
			lost = append(lost, track)
		}
	}
	if len(newborn) == 0 || len(lost) == 0 {
		return set, nil
	}

	// rows = lost tracks, columns = newborn tracks
	scores := make([][]float64, len(lost))
	for i, track := range lost {
		scores[i] = make([]float64, len(newborn))
		predicted, err := predictLocation(track, frame, closer.historyLen)
		if err != nil {
			return nil, errors.Wrap(err, "Can't predict lost track position")
		}
		lastState, _ := track.StateAt(track.LastFrame())
		for j, candidate := range newborn {
			state, _ := candidate.StateAt(frame)
			if predicted.DistanceTo(state.Feature.Location) > closer.maxPixelDistance {
				continue
			}
			descriptorDistance := matching.DescriptorDistance(lastState.Descriptor, state.Descriptor)
			if descriptorDistance > closer.maxDescriptorDistance {
				continue
			}
			scores[i][j] = 1.0 / (1.0 + descriptorDistance)
		}
	}

	assignments := matching.AssignMax(scores)
	if len(assignments) == 0 {
		return set, nil
	}
	requests := make([]featrack.FusionRequest, 0, len(assignments))
	for _, pair := range assignments {
		requests = append(requests, featrack.FusionRequest{
			Continuing: lost[pair[0]].ID(),
			Retiring:   newborn[pair[1]].ID(),
		})
	}
	result, err := featrack.MergeTracks(set, requests)
	if err != nil {
		return nil, errors.Wrap(err, "Can't merge reconnected tracks")
	}
	closer.logger.Debug("closing: reconnected lost tracks", "frame", frame, "candidates", len(lost), "newborn", len(newborn), "merged", result.Merged)
	return result.Tracks, nil
}
