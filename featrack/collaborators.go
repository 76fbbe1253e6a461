package featrack

// Match pairs index Left in the first feature set with index Right in the second one
type Match struct {
	Left  int
	Right int
}

// Detector finds features in an image. Mask may be nil. It must not modify the image
type Detector interface {
	Detect(img Image, mask Image) ([]Feature, error)
}

// Extractor computes one descriptor per feature, in the same order as given features
type Extractor interface {
	Extract(img Image, features []Feature, mask Image) ([]Descriptor, error)
}

// Matcher pairs features of two frames.
// A non-nil error means matching is impossible for this pair of frames; empty matches with nil error are valid.
type Matcher interface {
	Match(featuresA []Feature, descriptorsA []Descriptor, featuresB []Feature, descriptorsB []Descriptor) ([]Match, error)
}

// LoopCloser may merge tracks which revisit previously seen locations.
// It receives every tracked frame, the first one included, so it can seed its own state.
type LoopCloser interface {
	Stitch(frame int64, set *TrackSet, img Image, mask Image) (*TrackSet, error)
}
