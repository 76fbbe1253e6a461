package matching

import (
	"github.com/LdDl/featrack-go/featrack"
	"github.com/pkg/errors"
)

// MatchingAlgorithm is for algorithm type for pairing descriptors of two frames
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy takes closest pairs first; faster but potentially suboptimal
	MatchingAlgorithmGreedy
)

// String returns algorithm name as used in configuration files
func (algorithm MatchingAlgorithm) String() string {
	switch algorithm {
	case MatchingAlgorithmHungarian:
		return "hungarian"
	case MatchingAlgorithmGreedy:
		return "greedy"
	default:
		return "unknown"
	}
}

// ParseMatchingAlgorithm converts name to MatchingAlgorithm
func ParseMatchingAlgorithm(name string) (MatchingAlgorithm, error) {
	switch name {
	case "hungarian":
		return MatchingAlgorithmHungarian, nil
	case "greedy":
		return MatchingAlgorithmGreedy, nil
	default:
		return 0, errors.Errorf("unknown matching algorithm '%s'", name)
	}
}

var (
	// ErrSizeMismatch is returned when features and descriptors of one frame are not aligned
	ErrSizeMismatch = errors.New("features and descriptors count differ")
)

// DescriptorMatcher pairs features of two frames by descriptor distance.
// It implements featrack.Matcher.
type DescriptorMatcher struct {
	// Pairs further apart than this are never matched. Default 0.7
	maxDistance float64
	// Algorithm to use for matching
	algorithm MatchingAlgorithm
}

// NewDescriptorMatcherDefault creates matcher using Hungarian assignment and max distance 0.7
func NewDescriptorMatcherDefault() *DescriptorMatcher {
	return &DescriptorMatcher{
		maxDistance: 0.7,
		algorithm:   MatchingAlgorithmHungarian,
	}
}

// NewDescriptorMatcher creates new instance of DescriptorMatcher
func NewDescriptorMatcher(maxDistance float64, algorithm MatchingAlgorithm) *DescriptorMatcher {
	return &DescriptorMatcher{
		maxDistance: maxDistance,
		algorithm:   algorithm,
	}
}

// Match pairs features of frame A with features of frame B. Each index is used at most once
func (matcher *DescriptorMatcher) Match(featuresA []featrack.Feature, descriptorsA []featrack.Descriptor, featuresB []featrack.Feature, descriptorsB []featrack.Descriptor) ([]featrack.Match, error) {
	if len(featuresA) != len(descriptorsA) {
		return nil, errors.Wrapf(ErrSizeMismatch, "first frame: %d features, %d descriptors", len(featuresA), len(descriptorsA))
	}
	if len(featuresB) != len(descriptorsB) {
		return nil, errors.Wrapf(ErrSizeMismatch, "second frame: %d features, %d descriptors", len(featuresB), len(descriptorsB))
	}
	if len(descriptorsA) == 0 || len(descriptorsB) == 0 {
		return []featrack.Match{}, nil
	}

	distances := make([][]float64, len(descriptorsA))
	for i := range descriptorsA {
		distances[i] = make([]float64, len(descriptorsB))
		for j := range descriptorsB {
			distances[i][j] = DescriptorDistance(descriptorsA[i], descriptorsB[j])
		}
	}

	switch matcher.algorithm {
	case MatchingAlgorithmGreedy:
		return matcher.matchGreedy(distances), nil
	default:
		return matcher.matchHungarian(distances), nil
	}
}

func (matcher *DescriptorMatcher) matchHungarian(distances [][]float64) []featrack.Match {
	scores := make([][]float64, len(distances))
	for i := range distances {
		scores[i] = make([]float64, len(distances[i]))
		for j, distance := range distances[i] {
			// Zero score keeps a pair out of the assignment
			if distance <= matcher.maxDistance {
				scores[i][j] = similarity(distance)
			}
		}
	}
	assignments := AssignMax(scores)
	matches := make([]featrack.Match, 0, len(assignments))
	for _, pair := range assignments {
		matches = append(matches, featrack.Match{Left: pair[0], Right: pair[1]})
	}
	return matches
}

func (matcher *DescriptorMatcher) matchGreedy(distances [][]float64) []featrack.Match {
	priorityQueue := make(distanceHeap, 0)
	for i := range distances {
		for j, distance := range distances[i] {
			if distance <= matcher.maxDistance {
				priorityQueue.Push(&candidatePair{left: i, right: j, distance: distance})
			}
		}
	}
	// Prevent reuse of indices on either side
	reservedLeft := make(map[int]struct{})
	reservedRight := make(map[int]struct{})
	matches := make([]featrack.Match, 0)
	for priorityQueue.Len() > 0 {
		pair := priorityQueue.Pop()
		if _, ok := reservedLeft[pair.left]; ok {
			continue
		}
		if _, ok := reservedRight[pair.right]; ok {
			continue
		}
		reservedLeft[pair.left] = struct{}{}
		reservedRight[pair.right] = struct{}{}
		matches = append(matches, featrack.Match{Left: pair.left, Right: pair.right})
	}
	return matches
}
