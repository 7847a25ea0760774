package flake

import "sync"

var (
	defaultMu  sync.Mutex
	defaultGen *Generator
)

// Default returns the process-wide generator, creating it from zero Settings
// on first use.
func Default() (*Generator, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultGen == nil {
		gen, err := NewGenerator(Settings{})
		if err != nil {
			return nil, err
		}
		defaultGen = gen
	}
	return defaultGen, nil
}

// SetDefault replaces the process-wide generator. Passing nil resets it, so
// the next Default call creates a fresh one.
func SetDefault(gen *Generator) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultGen = gen
}

// Next mints an ID from the process-wide generator.
func Next() (uint64, error) {
	gen, err := Default()
	if err != nil {
		return 0, err
	}
	return gen.Next()
}
