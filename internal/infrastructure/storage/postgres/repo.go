package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"
)

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r, err := NewWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewWithDB 使用已打开的连接，测试里传入 sqlmock
func NewWithDB(db *sql.DB) (*Repo, error) {
	r := &Repo{db: db, now: time.Now}
	if err := r.migrate(context.Background()); err != nil {
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
  rate_8h DOUBLE PRECISION NOT NULL,
  spread DOUBLE PRECISION,
  bid DOUBLE PRECISION,
  ask DOUBLE PRECISION,
  table_id TEXT NOT NULL,
  ts_ms BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (venue, symbol)
);
CREATE INDEX IF NOT EXISTS idx_latest_rates_symbol ON latest_rates(symbol);
`)
	return err
}

const upsertRate = `INSERT INTO latest_rates(venue, symbol, rate_8h, spread, bid, ask, table_id, ts_ms, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (venue, symbol) DO UPDATE SET
rate_8h=EXCLUDED.rate_8h, spread=EXCLUDED.spread, bid=EXCLUDED.bid, ask=EXCLUDED.ask,
table_id=EXCLUDED.table_id, ts_ms=EXCLUDED.ts_ms, updated_at=EXCLUDED.updated_at`

const deleteStale = `DELETE FROM latest_rates WHERE table_id <> $1`

// UpsertLatest 一个事务内写入全部 (venue, symbol) 并删除不在当前表里的行
func (r *Repo) UpsertLatest(ctx context.Context, table model.Table) error {
	if table.Empty() {
		return nil
	}
	ts := table.LastUpdated.UnixMilli()
	now := r.now().UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

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
			if _, err := tx.ExecContext(ctx, upsertRate, venue, row.Symbol, row.Rates[venue], spread, bid, ask, table.ID, ts, now); err != nil {
				return fmt.Errorf("upsert %s %s: %w", venue, row.Symbol, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, deleteStale, table.ID); err != nil {
		return err
	}
	return tx.Commit()
}

var _ port.Repository = (*Repo)(nil)
