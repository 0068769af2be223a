package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DefaultTable is the table created by the bundled migrations.
const DefaultTable = "ride_items"

// Postgres stores documents in a jsonb column keyed by (pk, sk).
type Postgres struct {
	db *sqlx.DB
	q  queries
}

type queries struct {
	get, put, putIfAbsent, update, updateCond, exists, del, query string
}

// NewPostgres returns a Store over table; an empty table means DefaultTable.
func NewPostgres(db *sqlx.DB, table string) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	t := pq.QuoteIdentifier(table)
	return &Postgres{
		db: db,
		q: queries{
			get: `SELECT data FROM ` + t + ` WHERE pk = $1 AND sk = $2`,
			put: `INSERT INTO ` + t + ` (pk, sk, data) VALUES ($1, $2, $3::jsonb)
				ON CONFLICT (pk, sk) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
			putIfAbsent: `INSERT INTO ` + t + ` (pk, sk, data) VALUES ($1, $2, $3::jsonb)
				ON CONFLICT (pk, sk) DO NOTHING`,
			update: `UPDATE ` + t + ` SET data = data || $3::jsonb, updated_at = NOW()
				WHERE pk = $1 AND sk = $2`,
			updateCond: `UPDATE ` + t + ` SET data = data || $3::jsonb, updated_at = NOW()
				WHERE pk = $1 AND sk = $2 AND data->>$4 = ANY($5)`,
			exists: `SELECT EXISTS (SELECT 1 FROM ` + t + ` WHERE pk = $1 AND sk = $2)`,
			del:    `DELETE FROM ` + t + ` WHERE pk = $1 AND sk = $2`,
			query: `SELECT pk, sk, data, created_at FROM ` + t + `
				WHERE pk = $1 AND sk LIKE $2 ESCAPE '\'
				ORDER BY created_at %s, sk %s
				LIMIT $3`,
		},
	}
}

func (p *Postgres) w(q sqlx.ExtContext) *pgWriter { return &pgWriter{q: q, sql: &p.q} }

func (p *Postgres) Get(ctx context.Context, key Key) ([]byte, error) {
	return p.w(p.db).Get(ctx, key)
}

func (p *Postgres) Put(ctx context.Context, key Key, doc any) error {
	return p.w(p.db).Put(ctx, key, doc)
}

func (p *Postgres) PutIfAbsent(ctx context.Context, key Key, doc any) error {
	return p.w(p.db).PutIfAbsent(ctx, key, doc)
}

func (p *Postgres) Update(ctx context.Context, key Key, patch map[string]any, cond *Condition) error {
	return p.w(p.db).Update(ctx, key, patch, cond)
}

func (p *Postgres) Delete(ctx context.Context, key Key) error {
	return p.w(p.db).Delete(ctx, key)
}

type row struct {
	PK        string    `db:"pk"`
	SK        string    `db:"sk"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
}

func (p *Postgres) Query(ctx context.Context, pk, skPrefix string, opts QueryOptions) ([]Record, error) {
	dir := "ASC"
	if opts.NewestFirst {
		dir = "DESC"
	}
	var limit sql.NullInt64
	if opts.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(opts.Limit), Valid: true}
	}
	var rows []row
	q := fmt.Sprintf(p.q.query, dir, dir)
	if err := sqlx.SelectContext(ctx, p.db, &rows, q, pk, escapeLike(skPrefix)+"%", limit); err != nil {
		return nil, fmt.Errorf("kv: query %s: %w", pk, err)
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = Record{Key: Key{PK: r.PK, SK: r.SK}, Data: r.Data, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// Transact runs fn inside a database transaction, rolling back on any error.
func (p *Postgres) Transact(ctx context.Context, fn func(tx Writer) error) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kv: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(p.w(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("kv: commit: %w", err)
	}
	return nil
}

type pgWriter struct {
	q   sqlx.ExtContext
	sql *queries
}

func (w *pgWriter) Get(ctx context.Context, key Key) ([]byte, error) {
	var data []byte
	err := sqlx.GetContext(ctx, w.q, &data, w.sql.get, key.PK, key.SK)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return data, nil
}

func (w *pgWriter) Put(ctx context.Context, key Key, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := w.q.ExecContext(ctx, w.sql.put, key.PK, key.SK, string(data)); err != nil {
		return fmt.Errorf("kv: put %s: %w", key, err)
	}
	return nil
}

func (w *pgWriter) PutIfAbsent(ctx context.Context, key Key, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	res, err := w.q.ExecContext(ctx, w.sql.putIfAbsent, key.PK, key.SK, string(data))
	if err != nil {
		return fmt.Errorf("kv: put %s: %w", key, err)
	}
	return requireRow(res, ErrConditionFailed)
}

func (w *pgWriter) Update(ctx context.Context, key Key, patch map[string]any, cond *Condition) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("kv: encode patch: %w", err)
	}
	var res sql.Result
	if cond == nil {
		res, err = w.q.ExecContext(ctx, w.sql.update, key.PK, key.SK, string(raw))
	} else {
		res, err = w.q.ExecContext(ctx, w.sql.updateCond, key.PK, key.SK, string(raw), cond.Attr, pq.Array(cond.In))
	}
	if err != nil {
		return fmt.Errorf("kv: update %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("kv: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if cond == nil {
		return ErrNotFound
	}
	// Zero rows under a condition: tell a missing record apart from a failed check.
	var exists bool
	if err := sqlx.GetContext(ctx, w.q, &exists, w.sql.exists, key.PK, key.SK); err != nil {
		return fmt.Errorf("kv: update %s: %w", key, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConditionFailed
}

func (w *pgWriter) Delete(ctx context.Context, key Key) error {
	if _, err := w.q.ExecContext(ctx, w.sql.del, key.PK, key.SK); err != nil {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}
	return nil
}

func requireRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("kv: rows affected: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
