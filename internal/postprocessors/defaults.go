package postprocessors

import (
	"fmt"
	"regexp"

	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/postprocessors/chunker"
	"github.com/custodia-labs/opptrack/internal/postprocessors/normaliser"
)

// DefaultOrder is the chain run on every page: clean the text, then
// split it.
var DefaultOrder = []string{normaliser.Name, chunker.Name}

// DefaultRegistry returns a registry holding the built-in processors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, b := range map[string]Builder{
		normaliser.Name: buildNormaliser,
		chunker.Name:    buildChunker,
	} {
		if err := r.Register(name, b); err != nil {
			panic(err)
		}
	}
	return r
}

// buildNormaliser reads "boilerplate", extra line patterns to drop.
func buildNormaliser(s Settings) (driven.PostProcessor, error) {
	var opts []normaliser.Option
	for _, pattern := range s.Strings("boilerplate") {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("boilerplate pattern %q: %w", pattern, err)
		}
		opts = append(opts, normaliser.WithBoilerplate(re))
	}
	return normaliser.New(opts...), nil
}

// buildChunker reads "chunk_size" and "overlap", both in runes. A
// non-positive size keeps the default; an explicit overlap of zero is
// honoured.
func buildChunker(s Settings) (driven.PostProcessor, error) {
	var opts []chunker.Option
	if size, ok := s.Int("chunk_size"); ok && size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := s.Int("overlap"); ok {
		if overlap < 0 {
			return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
		}
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	return chunker.New(opts...), nil
}
