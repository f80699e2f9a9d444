package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/privategpt-go/internal/models"
)

const (
	manifestFile = "manifest.yaml"
	chunksFile   = "chunks.jsonl"
)

type localRecord struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

// LocalStore keeps chunks in a directory: a YAML manifest naming the
// embedding model and an append-only JSON-lines chunk file.
type LocalStore struct {
	dir      string
	embedder embeddings.Embedder
	model    string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir string, embedder embeddings.Embedder, model string) *LocalStore {
	return &LocalStore{dir: dir, embedder: embedder, model: model}
}

// Exists reports whether the manifest and at least one chunk are present.
func (s *LocalStore) Exists(_ context.Context) (bool, error) {
	if _, err := os.Stat(filepath.Join(s.dir, manifestFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat manifest: %w", err)
	}
	info, err := os.Stat(filepath.Join(s.dir, chunksFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat chunks: %w", err)
	}
	return info.Size() > 0, nil
}

// Open loads the store into memory.
func (s *LocalStore) Open(ctx context.Context) (Handle, error) {
	ok, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, s.dir)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var info models.StoreInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := checkModel(info.EmbeddingModel, s.model); err != nil {
		return nil, err
	}

	records, err := readRecords(filepath.Join(s.dir, chunksFile))
	if err != nil {
		return nil, err
	}
	return &localHandle{dir: s.dir, embedder: s.embedder, info: info, records: records}, nil
}

// CreateFrom embeds docs and replaces any previous store contents. The old
// store is left intact if embedding fails.
func (s *LocalStore) CreateFrom(ctx context.Context, docs []schema.Document) (Handle, error) {
	records, err := buildRecords(ctx, s.embedder, docs)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	info := models.StoreInfo{EmbeddingModel: s.model, CreatedAt: time.Now().UTC()}
	if len(records) > 0 {
		info.Dimension = len(records[0].Embedding)
	}
	if err := writeManifest(s.dir, info); err != nil {
		return nil, err
	}
	if err := rewriteRecords(filepath.Join(s.dir, chunksFile), records); err != nil {
		return nil, err
	}
	return &localHandle{dir: s.dir, embedder: s.embedder, info: info, records: records}, nil
}

func buildRecords(ctx context.Context, embedder embeddings.Embedder, docs []schema.Document) ([]localRecord, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	vectors, err := embedDocuments(ctx, embedder, docs)
	if err != nil {
		return nil, err
	}
	records := make([]localRecord, len(docs))
	for i, d := range docs {
		records[i] = localRecord{
			ID:        uuid.NewString(),
			Content:   d.PageContent,
			Metadata:  maps.Clone(d.Metadata),
			Embedding: vectors[i],
		}
	}
	return records, nil
}

type localHandle struct {
	mu       sync.RWMutex
	dir      string
	embedder embeddings.Embedder
	info     models.StoreInfo
	records  []localRecord
}

func (h *localHandle) Add(ctx context.Context, docs []schema.Document) error {
	records, err := buildRecords(ctx, h.embedder, docs)
	if err != nil || len(records) == 0 {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dim := len(records[0].Embedding)
	if h.info.Dimension == 0 {
		h.info.Dimension = dim
		if err := writeManifest(h.dir, h.info); err != nil {
			return err
		}
	} else if dim != h.info.Dimension {
		return fmt.Errorf("%w: vectors have dimension %d, store has %d", ErrEmbeddingMismatch, dim, h.info.Dimension)
	}

	f, err := os.OpenFile(filepath.Join(h.dir, chunksFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open chunks: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return fmt.Errorf("append chunk: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chunks: %w", err)
	}

	h.records = append(h.records, records...)
	return nil
}

func (h *localHandle) Sources(_ context.Context) (map[string]struct{}, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]struct{})
	for _, r := range h.records {
		if s, ok := r.Metadata[SourceKey].(string); ok {
			out[s] = struct{}{}
		}
	}
	return out, nil
}

func (h *localHandle) SimilaritySearch(ctx context.Context, query string, k int) ([]schema.Document, error) {
	if k <= 0 {
		return []schema.Document{}, nil
	}
	q, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.info.Dimension != 0 && len(q) != h.info.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, store has %d", ErrEmbeddingMismatch, len(q), h.info.Dimension)
	}

	type scored struct {
		idx   int
		score float64
	}
	hits := make([]scored, len(h.records))
	for i, r := range h.records {
		hits[i] = scored{idx: i, score: cosine(q, r.Embedding)}
	}
	slices.SortStableFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	n := min(k, len(hits))
	docs := make([]schema.Document, n)
	for i := range n {
		r := h.records[hits[i].idx]
		docs[i] = schema.Document{
			PageContent: r.Content,
			Metadata:    maps.Clone(r.Metadata),
			Score:       float32(hits[i].score),
		}
	}
	return docs, nil
}

func (h *localHandle) DeleteSources(_ context.Context, sources []string) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	drop := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		drop[s] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	kept := make([]localRecord, 0, len(h.records))
	for _, r := range h.records {
		s, _ := r.Metadata[SourceKey].(string)
		if _, ok := drop[s]; ok {
			continue
		}
		kept = append(kept, r)
	}
	removed := len(h.records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := rewriteRecords(filepath.Join(h.dir, chunksFile), kept); err != nil {
		return 0, err
	}
	h.records = kept
	return removed, nil
}

func (h *localHandle) Count(_ context.Context) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records), nil
}

func (h *localHandle) Close(_ context.Context) error {
	return nil
}

func writeManifest(dir string, info models.StoreInfo) error {
	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func readRecords(path string) ([]localRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunks: %w", err)
	}
	defer f.Close()

	var records []localRecord
	dec := json.NewDecoder(f)
	for {
		var r localRecord
		if err := dec.Decode(&r); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode chunk %d: %w", len(records), err)
		}
		records = append(records, r)
	}
	return records, nil
}

// rewriteRecords replaces path atomically via a temp file and rename.
func rewriteRecords(path string, records []localRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), chunksFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp chunks: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write chunk: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp chunks: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
