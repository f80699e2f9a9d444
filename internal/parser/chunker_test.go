package parser

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

func TestChunkConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChunkConfig
		wantErr bool
	}{
		{"defaults", DefaultChunkConfig(), false},
		{"no overlap", ChunkConfig{Size: 100}, false},
		{"zero size", ChunkConfig{Size: 0}, true},
		{"overlap equals size", ChunkConfig{Size: 50, Overlap: 50}, true},
		{"negative overlap", ChunkConfig{Size: 50, Overlap: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidChunkConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitDocuments_ShortDocumentIsOneChunk(t *testing.T) {
	docs := []schema.Document{{
		PageContent: "The capital of Freedonia is Fredville.",
		Metadata:    map[string]any{"source": "source_documents/a.txt"},
	}}

	chunks, err := SplitDocuments(docs, DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, docs[0].PageContent, chunks[0].PageContent)
	assert.Equal(t, "source_documents/a.txt", chunks[0].Metadata["source"])
}

func TestSplitDocuments_RespectsChunkSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Paragraph sentence with several plain words in it. ")
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	docs := []schema.Document{{
		PageContent: b.String(),
		Metadata:    map[string]any{"source": "long.txt", "page": 1},
	}}

	cfg := DefaultChunkConfig()
	chunks, err := SplitDocuments(docs, cfg)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.PageContent), cfg.Size, "chunk %d too long", i)
		assert.NotEmpty(t, strings.TrimSpace(c.PageContent))
		assert.Equal(t, docs[0].Metadata, c.Metadata)
	}
}

func TestSplitDocuments_MetadataIsCopiedPerChunk(t *testing.T) {
	docs := []schema.Document{{
		PageContent: strings.Repeat("word ", 300),
		Metadata:    map[string]any{"source": "copy.txt"},
	}}

	chunks, err := SplitDocuments(docs, ChunkConfig{Size: 100, Overlap: 10})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	chunks[0].Metadata["source"] = "mutated"
	assert.Equal(t, "copy.txt", chunks[1].Metadata["source"])
	assert.Equal(t, "copy.txt", docs[0].Metadata["source"])
}

func TestSplitDocuments_SkipsBlankDocuments(t *testing.T) {
	docs := []schema.Document{
		{PageContent: "", Metadata: map[string]any{"source": "empty.txt"}},
		{PageContent: "  \n\t ", Metadata: map[string]any{"source": "blank.txt"}},
		{PageContent: "real text", Metadata: map[string]any{"source": "real.txt"}},
	}

	chunks, err := SplitDocuments(docs, DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "real.txt", chunks[0].Metadata["source"])
}

func TestSplitDocuments_InvalidConfig(t *testing.T) {
	_, err := SplitDocuments([]schema.Document{{PageContent: "x"}}, ChunkConfig{Size: 10, Overlap: 20})
	assert.ErrorIs(t, err, ErrInvalidChunkConfig)
}
