package factory

import (
	"fmt"
	"sort"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
)

// AccumulatorFactory defines a function that creates the accumulator of an analysis mode.
type AccumulatorFactory func(cfg *config.Config) (model.Accumulator, error)

// registry holds the mapping of analysis modes to their factory functions.
var registry = make(map[string]AccumulatorFactory)

// RegisterMode registers a new analysis mode with its factory function.
func RegisterMode(name string, factory AccumulatorFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("analysis mode '%s' already registered", name))
	}
	registry[name] = factory
}

// Modes returns the registered mode names.
func Modes() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create creates a fresh accumulator for the given mode.
func Create(mode string, cfg *config.Config) (model.Accumulator, error) {
	factory, ok := registry[mode]
	if !ok {
		return nil, fmt.Errorf("unknown analysis mode: '%s' (registered: %v)", mode, Modes())
	}
	acc, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating analysis mode '%s': %w", mode, err)
	}
	return acc, nil
}
