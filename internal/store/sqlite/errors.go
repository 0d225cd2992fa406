package sqlite

import (
	"context"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/punchamoorthee/txledger/internal/store"
)

// classify maps driver errors onto the store error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, store.ErrStorageUnavailable, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%s: %w: %w", op, store.ErrConstraintViolation, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrProtocol:
			return fmt.Errorf("%s: %w: %w", op, store.ErrStorageUnavailable, err)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	// database/sql pool errors (closed db, bad conn)
	return fmt.Errorf("%s: %w: %w", op, store.ErrStorageUnavailable, err)
}
