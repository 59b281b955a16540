package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for store operations. Use errors.Is() to check for
// these in calling code.
var (
	// ErrAlreadyExists indicates a conversation or message with the same
	// ID already exists. Can occur on CREATE during concurrent retries.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict
	// from concurrent writes to the same record. Callers should retry.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested conversation or message does
	// not exist.
	ErrNotFound = errors.New("not found")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the
// appropriate sentinel if it matches a known pattern. Returns the
// original error otherwise.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already exists") {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}
