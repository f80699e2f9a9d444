//go:build integration

package vectorstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tmc/langchaingo/schema"

	"github.com/raphaelgruber/privategpt-go/internal/db"
)

var (
	surrealCfg db.Config
	pgDSN      string
)

func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	surreal, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v2.3.7",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Postgres container: %v", err)
	}

	surrealEndpoint, err := surreal.PortEndpoint(ctx, "8000/tcp", "ws")
	if err != nil {
		log.Fatalf("Failed to get SurrealDB endpoint: %v", err)
	}
	surrealCfg = db.Config{
		URL:       surrealEndpoint + "/rpc",
		Namespace: "test",
		Database:  "vectorstore",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}
	pgEndpoint, err := pg.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		log.Fatalf("Failed to get Postgres endpoint: %v", err)
	}
	pgDSN = fmt.Sprintf("postgres://test:test@%s/test?sslmode=disable", pgEndpoint)

	code := m.Run()

	_ = surreal.Terminate(ctx)
	_ = pg.Terminate(ctx)
	os.Exit(code)
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Open(ctx)
	assert.ErrorIs(t, err, ErrStoreNotFound)

	h, err := s.CreateFrom(ctx, []schema.Document{
		doc("a.txt", "go go go"),
		doc("b.txt", "rust rust"),
	})
	require.NoError(t, err)
	require.NoError(t, h.Add(ctx, []schema.Document{doc("c.txt", "python database")}))
	require.NoError(t, h.Close(ctx))

	ok, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	h, err = s.Open(ctx)
	require.NoError(t, err)
	defer h.Close(ctx)

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sources, err := h.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a.txt": {}, "b.txt": {}, "c.txt": {}}, sources)

	results, err := h.SimilaritySearch(ctx, "rust", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.txt", SourceOf(results[0]))

	deleted, err := h.DeleteSources(ctx, []string{"b.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	n, err = h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSurrealStore(t *testing.T) {
	exerciseStore(t, NewSurrealStore(surrealCfg, newKeywordEmbedder(), "test-model", nil))
}

func TestPGStore(t *testing.T) {
	exerciseStore(t, NewPGStore(pgDSN, newKeywordEmbedder(), "test-model", 6))
}

func TestPGStore_DimensionCheck(t *testing.T) {
	s := NewPGStore(pgDSN, newKeywordEmbedder(), "test-model", 1024)
	_, err := s.CreateFrom(context.Background(), []schema.Document{doc("a", "go")})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}
