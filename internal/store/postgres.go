package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/omnisig/relay/internal/tx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Repo is the Postgres-backed Store.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo applies pending migrations and returns the repo.
func NewRepo(ctx context.Context, logger *logrus.Logger, pool *pgxpool.Pool) (*Repo, error) {
	if err := migrate(ctx, logger, pool); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func migrate(ctx context.Context, logger *logrus.Logger, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var exists bool
		err = pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", name, err)
		}
		if exists {
			continue
		}

		sqlBytes, er := migrations.ReadFile("migrations/" + name)
		if er != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, er)
		}
		if _, er = pool.Exec(ctx, string(sqlBytes)); er != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, er)
		}
		if _, er = pool.Exec(ctx,
			`INSERT INTO schema_migrations (name) VALUES ($1)`, name); er != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, er)
		}
		logger.WithField("migration", name).Info("applied migration")
	}
	return nil
}

const txColumns = `id, to_address, value, data, status, chain, hash, metadata, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, params CreateParams) (tx.Transaction, error) {
	status := params.Status
	if status == "" {
		status = tx.StatusPending
	}
	if !status.Valid() {
		return tx.Transaction{}, fmt.Errorf("invalid status: %s", status)
	}

	meta, err := json.Marshal(params.Metadata)
	if err != nil {
		return tx.Transaction{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (to_address, value, data, status, chain, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+txColumns,
		params.To, params.Value, params.Data, string(status), params.Chain, meta)
	return scanTx(row)
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (tx.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	record, err := scanTx(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return tx.Transaction{}, tx.ErrNotFound
	}
	return record, err
}

// FetchPending returns every non-archived record; the queue client computes
// deltas and the resolver/executor filter by status.
func (r *Repo) FetchPending(ctx context.Context) ([]tx.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txColumns+` FROM transactions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer rows.Close()

	var out []tx.Transaction
	for rows.Next() {
		record, er := scanTx(rows)
		if er != nil {
			return nil, er
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// UpdateStatus applies a transition. The WHERE clause only matches rows in a
// legal predecessor status, so terminal regressions and illegal edges can
// never be written, even under concurrent writers.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, status tx.Status, hash string) (tx.Transaction, error) {
	if !status.Valid() {
		return tx.Transaction{}, fmt.Errorf("invalid status: %s", status)
	}
	preds := tx.Predecessors(status)
	from := make([]string, 0, len(preds))
	for _, p := range preds {
		from = append(from, string(p))
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE transactions
		SET status = $2,
		    hash = CASE WHEN $3 <> '' THEN $3 ELSE hash END,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($4)
		RETURNING `+txColumns,
		id, string(status), hash, from)

	record, err := scanTx(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Missing, terminal, or an illegal edge; distinguish for the caller.
		current, er := r.Get(ctx, id)
		if er != nil {
			return tx.Transaction{}, er
		}
		if current.Status.IsTerminal() {
			return tx.Transaction{}, tx.ErrTerminalStatus
		}
		return tx.Transaction{}, fmt.Errorf("%w: %s to %s", tx.ErrInvalidTransition, current.Status, status)
	}
	return record, err
}

func (r *Repo) Remove(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM transactions WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to remove transactions: %w", err)
	}
	return nil
}

// Prune removes terminal records past the retention window.
func (r *Repo) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM transactions
		WHERE status IN ('CONFIRMED', 'FAILED', 'REJECTED')
		  AND updated_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to prune transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTx(row rowScanner) (tx.Transaction, error) {
	var record tx.Transaction
	var status string
	var meta []byte
	err := row.Scan(
		&record.ID,
		&record.To,
		&record.Value,
		&record.Data,
		&status,
		&record.Chain,
		&record.Hash,
		&meta,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return tx.Transaction{}, err
	}
	record.Status = tx.Status(status)
	if len(meta) > 0 {
		if er := json.Unmarshal(meta, &record.Metadata); er != nil {
			return tx.Transaction{}, fmt.Errorf("failed to unmarshal metadata: %w", er)
		}
	}
	return record, nil
}
