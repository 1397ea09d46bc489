package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"
)

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db, now: time.Now}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_rates (
  venue TEXT NOT NULL,
  symbol TEXT NOT NULL,
  rate_8h REAL NOT NULL,
  spread REAL,
  bid REAL,
  ask REAL,
  table_id TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY(venue, symbol)
);
CREATE INDEX IF NOT EXISTS idx_latest_rates_symbol ON latest_rates(symbol);

CREATE TABLE IF NOT EXISTS latest_table (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  table_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
`)
	return err
}

// UpsertLatest 在一个事务里替换当前表：不在新表里的 (venue, symbol) 会被删除
func (r *Repo) UpsertLatest(ctx context.Context, table model.Table) error {
	if table.Empty() {
		return nil
	}
	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	ts := table.LastUpdated.UnixMilli()
	now := r.now().UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO latest_rates(venue, symbol, rate_8h, spread, bid, ask, table_id, ts_ms, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue, symbol) DO UPDATE SET
		rate_8h=excluded.rate_8h, spread=excluded.spread, bid=excluded.bid, ask=excluded.ask,
		table_id=excluded.table_id, ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range table.Rows {
		for _, venue := range row.Venues() {
			var spread, bid, ask sql.NullFloat64
			if s, ok := row.Spreads[venue]; ok {
				spread = sql.NullFloat64{Float64: s, Valid: true}
			}
			if q, ok := row.Quotes[venue]; ok {
				bid = sql.NullFloat64{Float64: q.Bid, Valid: true}
				ask = sql.NullFloat64{Float64: q.Ask, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, venue, row.Symbol, row.Rates[venue], spread, bid, ask, table.ID, ts, now); err != nil {
				return fmt.Errorf("upsert %s %s: %w", venue, row.Symbol, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM latest_rates WHERE table_id <> ?`, table.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO latest_table(id, table_id, payload, ts_ms, updated_at) VALUES(1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		table_id=excluded.table_id, payload=excluded.payload, ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`, table.ID, string(payload), ts, now); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadLatest 返回最后一次写入的表，没有记录时返回 nil
func (r *Repo) LoadLatest(ctx context.Context) (*model.Table, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM latest_table WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t model.Table
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("decode latest table: %w", err)
	}
	return &t, nil
}

// RateRow latest_rates 的一行
type RateRow struct {
	Venue   string
	Symbol  string
	Rate8h  float64
	Spread  *float64
	TableID string
	TsMs    int64
}

// ListRates 按 symbol、venue 排序
func (r *Repo) ListRates(ctx context.Context) ([]RateRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT venue, symbol, rate_8h, spread, table_id, ts_ms FROM latest_rates ORDER BY symbol, venue`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RateRow
	for rows.Next() {
		var (
			rr     RateRow
			spread sql.NullFloat64
		)
		if err := rows.Scan(&rr.Venue, &rr.Symbol, &rr.Rate8h, &spread, &rr.TableID, &rr.TsMs); err != nil {
			return nil, err
		}
		if spread.Valid {
			v := spread.Float64
			rr.Spread = &v
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

var (
	_ port.Repository   = (*Repo)(nil)
	_ port.LatestLoader = (*Repo)(nil)
)
