package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "journal:repository"

// DefaultRecentLimit caps RecentCommands when no limit is given.
const DefaultRecentLimit = 50

// Repository provides database access for the command journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertCommand appends one resolved command.
func (r *Repository) InsertCommand(ctx context.Context, rec *CommandRecord) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO command_journal (id, type, status, error, duration_ms, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING seq`,
		rec.ID, rec.Type, rec.Status, rec.Error, rec.DurationMs, rec.CompletedAt).Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("%s - insert command %s: %w", repoLogPrefix, rec.ID, err)
	}
	return nil
}

// RecentCommands returns the newest records first. cmdType filters by command type when non-empty.
func (r *Repository) RecentCommands(ctx context.Context, cmdType string, limit int) ([]CommandRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	slog.Debug(fmt.Sprintf("%s - RecentCommands type=%q limit=%d", repoLogPrefix, cmdType, limit))

	var (
		rows pgx.Rows
		err  error
	)
	if cmdType == "" {
		rows, err = r.pool.Query(ctx,
			`SELECT seq, id, type, status, error, duration_ms, completed_at
			 FROM command_journal
			 ORDER BY completed_at DESC, seq DESC
			 LIMIT $1`, limit)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT seq, id, type, status, error, duration_ms, completed_at
			 FROM command_journal
			 WHERE type = $1
			 ORDER BY completed_at DESC, seq DESC
			 LIMIT $2`, cmdType, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - query recent commands: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var rec CommandRecord
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.Type, &rec.Status, &rec.Error,
			&rec.DurationMs, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("%s - scan command: %w", repoLogPrefix, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - iterate commands: %w", repoLogPrefix, err)
	}
	return out, nil
}

// Clear truncates the journal. Schema is preserved.
func (r *Repository) Clear(ctx context.Context) error {
	slog.Info(fmt.Sprintf("%s - Clearing command journal", repoLogPrefix))
	if _, err := r.pool.Exec(ctx, `TRUNCATE TABLE command_journal RESTART IDENTITY`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", repoLogPrefix, err)
	}
	return nil
}
