package closing

import (
	"github.com/LdDl/featrack-go/featrack"
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// predictLocation estimates where track's feature is at given frame.
// Constant velocity Kalman filter is fed with the latest historyLen states of the track,
// then advanced one step per frame up to the requested frame.
func predictLocation(track *featrack.Track, frame int64, historyLen int) (featrack.Point, error) {
	states := track.States()
	if historyLen > 0 && len(states) > historyLen {
		states = states[len(states)-historyLen:]
	}
	start := states[0].Feature.Location

	/* Kalman filter props */
	ux := 0.0
	uy := 0.0
	stdDevA := 2.0
	stdDevMx := 0.1
	stdDevMy := 0.1
	kf := kalman_filter.NewKalman2D(1.0, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(start.X, start.Y))

	current := states[0].Frame
	for _, state := range states[1:] {
		for ; current < state.Frame; current++ {
			kf.Predict()
		}
		location := state.Feature.Location
		err := kf.Update(location.X, location.Y)
		if err != nil {
			return featrack.Point{}, errors.Wrapf(err, "Can't update motion model of track %d at frame %d", track.ID(), state.Frame)
		}
	}
	for ; current < frame; current++ {
		kf.Predict()
	}
	x, y := kf.GetState()
	return featrack.NewPoint(x, y), nil
}
