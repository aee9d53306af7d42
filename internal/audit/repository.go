package audit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed schema.sql
var schema string

// DB is what the change log needs from a pgxpool.Pool or a pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// WindowParams selects a slice of the change log. An invalid Limit returns
// every matching row.
type WindowParams struct {
	FromAt   pgtype.Timestamptz
	ToAt     pgtype.Timestamptz
	Actor    pgtype.Text
	Resource pgtype.Text
	Action   pgtype.Text
	Offset   int32
	Limit    pgtype.Int4
}

// Repository stores the change log in PostgreSQL.
type Repository struct {
	db DB
}

// NewRepository constructs a Repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the audit_logs table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

const insertEntry = `INSERT INTO audit_logs (actor, action, entity, entity_id, occurred_at)
VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`

// Insert appends e.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	at := pgtype.Timestamptz{}
	if !e.At.IsZero() {
		at = pgtype.Timestamptz{Time: e.At, Valid: true}
	}
	if _, err := r.db.Exec(ctx, insertEntry, e.Actor, e.Action, e.Resource, e.RecordID, at); err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

const selectWindow = `SELECT occurred_at, actor, action, entity, entity_id
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id DESC
OFFSET $6
LIMIT $7`

// Window lists entries newest first.
func (r *Repository) Window(ctx context.Context, p WindowParams) ([]Entry, error) {
	rows, err := r.db.Query(ctx, selectWindow, p.FromAt, p.ToAt, p.Actor, p.Resource, p.Action, p.Offset, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query window: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			at pgtype.Timestamptz
			e  Entry
		)
		if err := rows.Scan(&at, &e.Actor, &e.Action, &e.Resource, &e.RecordID); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if at.Valid {
			e.At = at.Time
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return entries, nil
}
