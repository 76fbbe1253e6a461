package config

import (
	"sort"
	"sync"

	"github.com/LdDl/featrack-go/featrack"
	"github.com/pkg/errors"
)

// DetectorFactory creates detector from component parameters
type DetectorFactory func(params map[string]any) (featrack.Detector, error)

// ExtractorFactory creates extractor from component parameters
type ExtractorFactory func(params map[string]any) (featrack.Extractor, error)

var (
	registryMu sync.RWMutex
	detectors  = make(map[string]DetectorFactory)
	extractors = make(map[string]ExtractorFactory)
)

// RegisterDetector makes detector available under given type name. Registering a name twice replaces the factory
func RegisterDetector(name string, factory DetectorFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	detectors[name] = factory
}

// RegisterExtractor makes extractor available under given type name. Registering a name twice replaces the factory
func RegisterExtractor(name string, factory ExtractorFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	extractors[name] = factory
}

// Detectors returns registered detector names, sorted
func Detectors() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(detectors)
}

// Extractors returns registered extractor names, sorted
func Extractors() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(extractors)
}

func newDetector(component ComponentConfig) (featrack.Detector, error) {
	registryMu.RLock()
	factory, ok := detectors[component.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown detector type '%s'", component.Type)
	}
	detector, err := factory(component.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't create detector '%s'", component.Type)
	}
	return detector, nil
}

func newExtractor(component ComponentConfig) (featrack.Extractor, error) {
	registryMu.RLock()
	factory, ok := extractors[component.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown extractor type '%s'", component.Type)
	}
	extractor, err := factory(component.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't create extractor '%s'", component.Type)
	}
	return extractor, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
