// Package models defines records persisted by the database-backed vector stores.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Chunk is one stored piece of a source document with its embedding.
type Chunk struct {
	ID *surrealmodels.RecordID `json:"id,omitempty"`

	// Content
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`

	// Search
	Embedding []float32 `json:"embedding,omitempty"`
	Score     float64   `json:"score,omitempty"` // only set by similarity queries

	CreatedAt time.Time `json:"created,omitempty"`
}

// ChunkInput is the input structure for inserting chunks.
type ChunkInput struct {
	Content   string         `json:"content"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

// StoreInfo records which embedding model produced a store's vectors.
type StoreInfo struct {
	EmbeddingModel string    `json:"embedding_model" yaml:"embedding_model"`
	Dimension      int       `json:"dimension" yaml:"dimension"`
	CreatedAt      time.Time `json:"created" yaml:"created"`
}
