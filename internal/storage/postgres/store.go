package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_address  TEXT PRIMARY KEY,
	token_x       TEXT NOT NULL,
	token_y       TEXT NOT NULL,
	symbol_x      TEXT NOT NULL DEFAULT '',
	symbol_y      TEXT NOT NULL DEFAULT '',
	bin_step      INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pool_history (
	pool_address  TEXT NOT NULL,
	granularity   TEXT NOT NULL,
	bucket_ts     TIMESTAMPTZ NOT NULL,
	price         NUMERIC NOT NULL,
	volume        NUMERIC NOT NULL,
	fees          NUMERIC NOT NULL,
	liquidity_x   NUMERIC NOT NULL,
	liquidity_y   NUMERIC NOT NULL,
	bin_id        INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_address, granularity, bucket_ts)
);
`

// Store provides Postgres persistence for pool history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_address, token_x, token_y, symbol_x, symbol_y, bin_step, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				token_x = EXCLUDED.token_x,
				token_y = EXCLUDED.token_y,
				symbol_x = EXCLUDED.symbol_x,
				symbol_y = EXCLUDED.symbol_y,
				bin_step = EXCLUDED.bin_step,
				updated_at = now()
		`,
			strings.ToLower(pool.Address),
			pool.TokenX.Address,
			pool.TokenY.Address,
			pool.TokenX.Symbol,
			pool.TokenY.Symbol,
			int32(pool.BinStep),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// AppendPoint records a closed bucket. Re-recording the same bucket
// overwrites it.
func (s *Store) AppendPoint(ctx context.Context, pool string, point model.HistoricalDataPoint, granularity model.Granularity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_history (
			pool_address, granularity, bucket_ts, price, volume, fees, liquidity_x, liquidity_y, bin_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (pool_address, granularity, bucket_ts)
		DO UPDATE SET
			price = EXCLUDED.price,
			volume = EXCLUDED.volume,
			fees = EXCLUDED.fees,
			liquidity_x = EXCLUDED.liquidity_x,
			liquidity_y = EXCLUDED.liquidity_y,
			bin_id = EXCLUDED.bin_id
	`,
		strings.ToLower(pool),
		string(granularity),
		point.Timestamp.UTC(),
		point.Price.String(),
		point.Volume.String(),
		point.Fees.String(),
		point.LiquidityX.String(),
		point.LiquidityY.String(),
		point.BinID,
	)
	if err != nil {
		return fmt.Errorf("insert history point: %w", err)
	}
	return nil
}

// QueryWindow returns recorded points with start <= bucket <= end.
func (s *Store) QueryWindow(ctx context.Context, pool string, granularity model.Granularity, start, end time.Time) ([]model.HistoricalDataPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bucket_ts, price::text, volume::text, fees::text, liquidity_x::text, liquidity_y::text, bin_id
		FROM pool_history
		WHERE pool_address = $1 AND granularity = $2 AND bucket_ts BETWEEN $3 AND $4
		ORDER BY bucket_ts ASC
	`, strings.ToLower(pool), string(granularity), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]model.HistoricalDataPoint, 0)
	for rows.Next() {
		var (
			ts                              time.Time
			price, volume, fees, liqX, liqY string
			binID                           int32
		)
		if err := rows.Scan(&ts, &price, &volume, &fees, &liqX, &liqY, &binID); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		point, err := parsePoint(ts, price, volume, fees, liqX, liqY, binID)
		if err != nil {
			return nil, err
		}
		out = append(out, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Prune deletes points older than before.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pool_history WHERE bucket_ts < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func parsePoint(ts time.Time, price, volume, fees, liqX, liqY string, binID int32) (model.HistoricalDataPoint, error) {
	values := make([]decimal.Decimal, 5)
	for i, raw := range []string{price, volume, fees, liqX, liqY} {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return model.HistoricalDataPoint{}, fmt.Errorf("parse numeric %q: %w", raw, err)
		}
		values[i] = v
	}
	return model.HistoricalDataPoint{
		Timestamp:  ts.UTC(),
		Price:      values[0],
		Volume:     values[1],
		Fees:       values[2],
		LiquidityX: values[3],
		LiquidityY: values[4],
		BinID:      binID,
	}, nil
}
