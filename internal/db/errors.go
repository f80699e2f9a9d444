package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when concurrent ingestion runs write the same records.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the store has no metadata row yet.
	ErrNotFound = errors.New("not found")

	// ErrSchemaMissing indicates a query ran before InitSchema.
	ErrSchemaMissing = errors.New("schema not initialized")
)

// wrapQueryError maps known SurrealDB query failures onto sentinel errors.
// Other errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
		if strings.Contains(msg, "does not exist") {
			return fmt.Errorf("%w: %s", ErrSchemaMissing, msg)
		}
	}

	return err
}
