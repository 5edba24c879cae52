package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jv-vogler/cm42-central/internal/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx so reads can run inside or
// outside a commit.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// withTx executes a function within a database transaction.
// It automatically handles begin, rollback on error, and commit on success.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("failed to rollback transaction: %v", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}

// nullInt64ToPtr converts sql.NullInt64 to *int.
func nullInt64ToPtr(nv sql.NullInt64) *int {
	if nv.Valid {
		val := int(nv.Int64)
		return &val
	}
	return nil
}

func nullInt64ToUser(nv sql.NullInt64) *types.UserID {
	if nv.Valid {
		val := types.UserID(nv.Int64)
		return &val
	}
	return nil
}

func nullTimeToPtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time.UTC()
		return &val
	}
	return nil
}

// intPtrArg turns an optional int into a driver argument (nil stores NULL).
func intPtrArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func userPtrArg(v *types.UserID) any {
	if v == nil {
		return nil
	}
	return v.ToInt()
}

func timePtrArg(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}
