package replayenv

import (
	"github.com/replayfs/replayfs/src/internal/cmdutil"
)

// ConfigOption is a functional option that modifies a Configuration.
type ConfigOption = func(*Configuration)

// ApplyOptions applies the functional options 'opts' to the config 'config',
// modifying its values.
func ApplyOptions(config *Configuration, opts ...ConfigOption) {
	for _, opt := range opts {
		opt(config)
	}
}

// ConfigFromOptions is for use in tests: it returns the default configuration with opts applied.
func ConfigFromOptions(opts ...ConfigOption) (*Configuration, error) {
	result := NewConfiguration()
	if err := cmdutil.PopulateDefaults(result); err != nil {
		return nil, err
	}
	ApplyOptions(result, opts...)
	return result, nil
}

// WithDBPath stores data in a bolt database at path.
func WithDBPath(path string) ConfigOption {
	return func(config *Configuration) {
		config.Backend = BackendBolt
		config.DBPath = path
	}
}

// WithMemoryBackend keeps all data in memory.
func WithMemoryBackend() ConfigOption {
	return func(config *Configuration) {
		config.Backend = BackendMemory
	}
}

// WithNoSync skips fsync on commit.
func WithNoSync() ConfigOption {
	return func(config *Configuration) {
		config.NoSync = true
	}
}

// WithMaxFragments caps the fragments of a single read.
func WithMaxFragments(n int) ConfigOption {
	return func(config *Configuration) {
		config.MaxFragments = n
	}
}

// WithMaxPages caps the number of allocated pages.
func WithMaxPages(n uint64) ConfigOption {
	return func(config *Configuration) {
		config.MaxPages = n
	}
}
