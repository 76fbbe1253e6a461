package main

import (
	"os"

	"github.com/LdDl/featrack-go/config"
	"github.com/LdDl/featrack-go/featrack"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FrameRecord is one frame of pre-computed observations
type FrameRecord struct {
	Frame    int64           `yaml:"frame"`
	Width    int             `yaml:"width"`
	Height   int             `yaml:"height"`
	Features []FeatureRecord `yaml:"features"`
}

// FeatureRecord is a feature together with its descriptor
type FeatureRecord struct {
	X          float64   `yaml:"x"`
	Y          float64   `yaml:"y"`
	Scale      float64   `yaml:"scale"`
	Angle      float64   `yaml:"angle"`
	Descriptor []float64 `yaml:"descriptor"`
}

// replayImage is a frame whose observations are already known
type replayImage struct {
	record FrameRecord
}

func (img replayImage) Width() int  { return img.record.Width }
func (img replayImage) Height() int { return img.record.Height }

// replayDetector returns features stored in replayImage
type replayDetector struct{}

func (replayDetector) Detect(img featrack.Image, mask featrack.Image) ([]featrack.Feature, error) {
	replay, ok := img.(replayImage)
	if !ok {
		return nil, errors.Errorf("replay detector can't handle %T", img)
	}
	features := make([]featrack.Feature, len(replay.record.Features))
	for i, f := range replay.record.Features {
		features[i] = featrack.Feature{
			Location: featrack.NewPoint(f.X, f.Y),
			Scale:    f.Scale,
			Angle:    f.Angle,
		}
	}
	return features, nil
}

// replayExtractor returns descriptors stored in replayImage.
// Features are expected in the order the replay detector produced them
type replayExtractor struct{}

func (replayExtractor) Extract(img featrack.Image, features []featrack.Feature, mask featrack.Image) ([]featrack.Descriptor, error) {
	replay, ok := img.(replayImage)
	if !ok {
		return nil, errors.Errorf("replay extractor can't handle %T", img)
	}
	if len(features) != len(replay.record.Features) {
		return nil, errors.Errorf("frame %d: asked for %d descriptors, %d recorded", replay.record.Frame, len(features), len(replay.record.Features))
	}
	descriptors := make([]featrack.Descriptor, len(features))
	for i, f := range replay.record.Features {
		descriptors[i] = featrack.Descriptor(f.Descriptor)
	}
	return descriptors, nil
}

func init() {
	config.RegisterDetector("replay", func(params map[string]any) (featrack.Detector, error) {
		return replayDetector{}, nil
	})
	config.RegisterExtractor("replay", func(params map[string]any) (featrack.Extractor, error) {
		return replayExtractor{}, nil
	})
}

// loadFrames reads frames file: a YAML document with top-level "frames" list
func loadFrames(path string) ([]FrameRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read frames '%s'", path)
	}
	var doc struct {
		Frames []FrameRecord `yaml:"frames"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "Can't decode frames '%s'", path)
	}
	return doc.Frames, nil
}
