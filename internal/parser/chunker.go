package parser

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// ErrInvalidChunkConfig is returned when the overlap is not smaller than the chunk size.
var ErrInvalidChunkConfig = errors.New("invalid chunk config")

// ChunkConfig defines chunking parameters. Sizes are measured in characters.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig returns the ingestion defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    500,
		Overlap: 50,
	}
}

// Validate checks that the config can drive a splitter.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidChunkConfig, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, c.Overlap, c.Size)
	}
	return nil
}

// NewSplitter builds a recursive character splitter that prefers paragraph
// breaks, then line breaks, then spaces.
func NewSplitter(cfg ChunkConfig) textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.Size),
		textsplitter.WithChunkOverlap(cfg.Overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)
}

// SplitDocuments splits every document into chunks. Each chunk receives its
// own copy of the parent's metadata. Documents with no visible text produce
// no chunks.
func SplitDocuments(docs []schema.Document, cfg ChunkConfig) ([]schema.Document, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	splitter := NewSplitter(cfg)

	var chunks []schema.Document
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		parts, err := splitter.SplitText(doc.PageContent)
		if err != nil {
			return nil, fmt.Errorf("split %v: %w", doc.Metadata["source"], err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, schema.Document{
				PageContent: part,
				Metadata:    maps.Clone(doc.Metadata),
			})
		}
	}
	return chunks, nil
}
