package config

import (
	"log/slog"

	"github.com/LdDl/featrack-go/closing"
	"github.com/LdDl/featrack-go/featrack"
	"github.com/LdDl/featrack-go/matching"
	"github.com/pkg/errors"
)

// Build creates feature tracker described by cfg. Nil logger means slog.Default()
func Build(cfg *Config, logger *slog.Logger) (*featrack.FeatureTracker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	detector, err := newDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}
	extractor, err := newExtractor(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	algorithm, err := matching.ParseMatchingAlgorithm(cfg.Matcher.Algorithm)
	if err != nil {
		return nil, err
	}
	opts := []featrack.Option{
		featrack.WithDetector(detector),
		featrack.WithExtractor(extractor),
		featrack.WithMatcher(matching.NewDescriptorMatcher(cfg.Matcher.MaxDistance, algorithm)),
		featrack.WithLogger(logger),
	}
	if lc := cfg.LoopCloser; lc != nil {
		closer := closing.NewGapCloser(lc.Window, lc.MaxPixelDistance, lc.MaxDescriptorDistance)
		closer.SetHistoryLen(lc.HistoryLen)
		closer.SetLogger(logger)
		opts = append(opts, featrack.WithLoopCloser(closer))
	}
	tracker := featrack.NewFeatureTracker(opts...)
	if err := tracker.CheckConfiguration(); err != nil {
		return nil, errors.Wrap(err, "Built tracker is incomplete")
	}
	return tracker, nil
}
