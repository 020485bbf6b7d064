package pgx

import (
	"context"

	"raven/pkg/ai"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SnapshotDBStorage implements the store.SnapshotStorage interface using
// PostgreSQL with pgvector for the persisted node embeddings. The encoder is
// attached to restored stores so they can answer text similarity queries.
type SnapshotDBStorage struct {
	conn    pgxIConn
	encoder ai.TextEncoder
}

// NewSnapshotDBStorageWithConnection creates a new SnapshotDBStorage using
// an existing database connection.
func NewSnapshotDBStorageWithConnection(
	conn pgxIConn,
	encoder ai.TextEncoder,
) *SnapshotDBStorage {
	return &SnapshotDBStorage{
		conn:    conn,
		encoder: encoder,
	}
}
