package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/trogers1052/price-ingest/internal/apperror"
	"github.com/trogers1052/price-ingest/internal/models"
)

// createPriceTableSQL matches db/migrations/000001 so a writer pointed at an
// unmigrated database still produces the same table.
const createPriceTableSQL = `
	CREATE TABLE IF NOT EXISTS price_data_daily (
		date   DATE           NOT NULL,
		symbol VARCHAR(20)    NOT NULL,
		open   NUMERIC(18, 6) NOT NULL CHECK (open >= 0),
		high   NUMERIC(18, 6) NOT NULL CHECK (high >= 0),
		low    NUMERIC(18, 6) NOT NULL CHECK (low >= 0),
		close  NUMERIC(18, 6) NOT NULL CHECK (close >= 0),
		volume BIGINT         NOT NULL CHECK (volume >= 0),
		PRIMARY KEY (date, symbol)
	)
`

const createStageSQL = `
	CREATE TEMP TABLE price_data_daily_stage
		(LIKE price_data_daily INCLUDING DEFAULTS)
		ON COMMIT DROP
`

const stageSQL = `
	INSERT INTO price_data_daily_stage (date, symbol, open, high, low, close, volume)
	SELECT * FROM unnest($1::date[], $2::varchar[], $3::numeric[], $4::numeric[], $5::numeric[], $6::numeric[], $7::bigint[])
`

// mergeSQL applies the whole stage in one statement. xmax = 0 marks a row
// version created by this statement rather than updated by it.
const mergeSQL = `
	WITH merged AS (
		INSERT INTO price_data_daily AS target (date, symbol, open, high, low, close, volume)
		SELECT date, symbol, open, high, low, close, volume
		FROM price_data_daily_stage
		ON CONFLICT (date, symbol) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
		RETURNING (target.xmax = 0) AS inserted
	)
	SELECT
		COUNT(*) FILTER (WHERE inserted),
		COUNT(*) FILTER (WHERE NOT inserted)
	FROM merged
`

// ApplyBatch makes price_data_daily reflect the batch: existing (date, symbol)
// keys are overwritten and new keys inserted, all in one transaction. On any
// error the transaction is rolled back and the table is left untouched. An
// empty batch returns a zero report without opening a transaction.
func (db *DB) ApplyBatch(ctx context.Context, batch models.Batch) (models.ApplyReport, error) {
	if len(batch) == 0 {
		return models.ApplyReport{}, nil
	}

	records := batch.Dedupe()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.ApplyReport{}, apperror.NewApplyError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	report, err := db.applyInTx(ctx, tx, records)
	if err != nil {
		return models.ApplyReport{}, apperror.NewApplyError(err)
	}

	if err := tx.Commit(); err != nil {
		return models.ApplyReport{}, apperror.NewApplyError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	slog.Info("applied price batch",
		"records", len(records),
		"duplicates", len(batch)-len(records),
		"inserted", report.Inserted,
		"updated", report.Updated)
	return report, nil
}

func (db *DB) applyInTx(ctx context.Context, tx *sql.Tx, records models.Batch) (models.ApplyReport, error) {
	if db.statementTimeout > 0 {
		q := fmt.Sprintf("SET LOCAL statement_timeout = %d", db.statementTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return models.ApplyReport{}, fmt.Errorf("failed to set statement timeout: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, createPriceTableSQL); err != nil {
		return models.ApplyReport{}, fmt.Errorf("failed to ensure price table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createStageSQL); err != nil {
		return models.ApplyReport{}, fmt.Errorf("failed to create staging table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, stageSQL, stageArgs(records)...); err != nil {
		return models.ApplyReport{}, fmt.Errorf("failed to stage %d price records: %w", len(records), err)
	}

	var inserted, updated int
	if err := tx.QueryRowContext(ctx, mergeSQL).Scan(&inserted, &updated); err != nil {
		return models.ApplyReport{}, fmt.Errorf("failed to merge staged price records: %w", err)
	}

	return models.ApplyReport{Inserted: inserted, Updated: updated}, nil
}

// stageArgs lays the batch out column-wise for unnest
func stageArgs(records models.Batch) []any {
	n := len(records)
	dates := make([]string, n)
	symbols := make([]string, n)
	opens := make([]string, n)
	highs := make([]string, n)
	lows := make([]string, n)
	closes := make([]string, n)
	volumes := make([]int64, n)

	for i, r := range records {
		dates[i] = r.Date.Format(models.DateLayout)
		symbols[i] = r.Symbol
		opens[i] = r.Open.String()
		highs[i] = r.High.String()
		lows[i] = r.Low.String()
		closes[i] = r.Close.String()
		volumes[i] = r.Volume
	}

	return []any{
		pq.Array(dates),
		pq.Array(symbols),
		pq.Array(opens),
		pq.Array(highs),
		pq.Array(lows),
		pq.Array(closes),
		pq.Array(volumes),
	}
}

const selectPriceColumns = `SELECT date, symbol, open, high, low, close, volume FROM price_data_daily`

// GetPriceDataBySymbolAndDate retrieves price data for a specific symbol and date
func (db *DB) GetPriceDataBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*models.PriceRecord, error) {
	query := selectPriceColumns + ` WHERE symbol = $1 AND date = $2`

	var p models.PriceRecord
	err := db.conn.QueryRowContext(ctx, query, symbol, date.Format(models.DateLayout)).Scan(
		&p.Date, &p.Symbol, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("price data for %s on %s: %w", symbol, date.Format(models.DateLayout), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price data: %w", err)
	}
	return &p, nil
}

// GetPriceDataBySymbol retrieves the most recent price data for a symbol, newest first
func (db *DB) GetPriceDataBySymbol(ctx context.Context, symbol string, limit int) ([]models.PriceRecord, error) {
	query := selectPriceColumns + ` WHERE symbol = $1 ORDER BY date DESC LIMIT $2`
	return db.queryPrices(ctx, query, symbol, limit)
}

// GetPriceDataRange retrieves price data for a symbol within a date range, oldest first
func (db *DB) GetPriceDataRange(ctx context.Context, symbol string, startDate, endDate time.Time) ([]models.PriceRecord, error) {
	query := selectPriceColumns + ` WHERE symbol = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`
	return db.queryPrices(ctx, query, symbol, startDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
}

// GetAllPriceData retrieves every row ordered by key
func (db *DB) GetAllPriceData(ctx context.Context) ([]models.PriceRecord, error) {
	return db.queryPrices(ctx, selectPriceColumns+` ORDER BY date, symbol`)
}

// CountPriceData returns the number of rows in the target table
func (db *DB) CountPriceData(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_data_daily`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count price data: %w", err)
	}
	return n, nil
}

// DeletePriceDataOlderThan removes price data older than a specified date
func (db *DB) DeletePriceDataOlderThan(ctx context.Context, date time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM price_data_daily WHERE date < $1`, date.Format(models.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price data: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) queryPrices(ctx context.Context, query string, args ...any) ([]models.PriceRecord, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get price data: %w", err)
	}
	defer rows.Close()

	var prices []models.PriceRecord
	for rows.Next() {
		var p models.PriceRecord
		if err := rows.Scan(&p.Date, &p.Symbol, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price data: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read price data: %w", err)
	}
	return prices, nil
}
