package db

import "fmt"

const schemaTemplate = `
    -- ==========================================================================
    -- CHUNK TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS source ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS metadata ON chunk TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created ON chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chunk_source ON chunk FIELDS source;
    DEFINE INDEX IF NOT EXISTS chunk_embedding ON chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;

    -- ==========================================================================
    -- STORE METADATA (single row: store_meta:current)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS store_meta SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS embedding_model ON store_meta TYPE string;
    DEFINE FIELD IF NOT EXISTS dimension ON store_meta TYPE int;
    DEFINE FIELD IF NOT EXISTS created ON store_meta TYPE datetime DEFAULT time::now();
`

// SchemaSQL returns the schema definition for embeddings of the given dimension.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(schemaTemplate, dimension)
}
