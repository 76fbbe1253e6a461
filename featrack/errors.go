package featrack

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotConfigured is returned when a required collaborator (detector, extractor or matcher) is missing
	ErrNotConfigured = errors.New("feature tracker is not configured")
	// ErrDimensionMismatch is returned when a non-empty mask differs in size from the image
	ErrDimensionMismatch = errors.New("mask and image dimensions differ")
	// ErrInvalidState is returned when a track is created without a valid initial state
	ErrInvalidState = errors.New("invalid track state")
	// ErrDuplicateTrackID is returned when two tracks with the same ID are put into one set
	ErrDuplicateTrackID = errors.New("duplicate track id")
)

// DimensionMismatchError describes image and mask sizes which do not agree
type DimensionMismatchError struct {
	ImageWidth  int
	ImageHeight int
	MaskWidth   int
	MaskHeight  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: image is %dx%d, mask is %dx%d", ErrDimensionMismatch.Error(), e.ImageWidth, e.ImageHeight, e.MaskWidth, e.MaskHeight)
}

// Is makes errors.Is(err, ErrDimensionMismatch) hold for *DimensionMismatchError
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
