// Package db provides SurrealDB connectivity and chunk queries for the
// SurrealDB vector store backend.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrade fails under HTTP/2 ALPN; pin wss to HTTP/1.1.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// Client wraps a SurrealDB connection with auto-reconnect.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger logger.Logger
}

// NewClient connects, signs in and selects the namespace and database.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())
	codec := surrealcbor.New()

	// gorillaws appends /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	log.Debug("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	log.Debug("SurrealDB connection established", "namespace", cfg.Namespace, "database", cfg.Database)
	return &Client{conn: conn, db: db, cfg: cfg, logger: sdkLogger}, nil
}

// Close closes the SurrealDB connection.
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// DB returns the underlying SurrealDB client for queries.
func (c *Client) DB() *surrealdb.DB {
	return c.db
}

// InitSchema defines the chunk and store_meta tables. The HNSW index is
// created for vectors of the given dimension.
func (c *Client) InitSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("init schema: invalid embedding dimension %d", dimension)
	}
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL(dimension), nil); err != nil {
		return fmt.Errorf("init schema: %w", wrapQueryError(err))
	}
	return nil
}

// Query executes a SurrealQL query with parameters.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]any) (*[]surrealdb.QueryResult[any], error) {
	return surrealdb.Query[any](ctx, c.db, sql, vars)
}

// WipeData deletes all chunks and store metadata while keeping the schema.
func (c *Client) WipeData(ctx context.Context) error {
	for _, table := range []string{"chunk", "store_meta"} {
		if _, err := surrealdb.Query[any](ctx, c.db, fmt.Sprintf("DELETE %s", table), nil); err != nil {
			return fmt.Errorf("delete %s: %w", table, wrapQueryError(err))
		}
	}
	return nil
}
