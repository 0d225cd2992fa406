package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/punchamoorthee/txledger/internal/store"
)

// classify maps pgx errors onto the store error taxonomy using SQLSTATE classes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, store.ErrStorageUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), // integrity constraint violation
			strings.HasPrefix(pgErr.Code, "22"): // data exception
			return fmt.Errorf("%s: %w: %w", op, store.ErrConstraintViolation, err)
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
			strings.HasPrefix(pgErr.Code, "57P"), // operator intervention
			pgErr.Code == "40001", pgErr.Code == "40P01":
			return fmt.Errorf("%s: %w: %w", op, store.ErrStorageUnavailable, err)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	// anything else came from the pool or the network
	return fmt.Errorf("%s: %w: %w", op, store.ErrStorageUnavailable, err)
}
