//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

// Package warehouse runs metric queries against the SQL warehouse.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	_ "github.com/lib/pq" // PostgreSQL/Redshift driver

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/envconfig"
)

// DefaultBrandSafetyTable is the aggregate the unscored rate is computed from.
const DefaultBrandSafetyTable = "agg_partner_measured_brandsafety"

// WarehouseError provides structured error information for warehouse operations
type WarehouseError struct {
	Op  string // Operation that failed (e.g., "connect", "query", "scan")
	Err error
}

func (e *WarehouseError) Error() string {
	return fmt.Sprintf("warehouse %s: %v", e.Op, e.Err)
}

func (e *WarehouseError) Unwrap() error {
	return e.Err
}

// Options configures the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// Option represents a configuration function for Options.
type Option func(*Options)

func WithConnectionPool(maxOpen, maxIdle int) Option {
	return func(o *Options) {
		o.MaxOpenConns = maxOpen
		o.MaxIdleConns = maxIdle
	}
}

func WithConnMaxLifetime(lifetime time.Duration) Option {
	return func(o *Options) {
		o.ConnMaxLifetime = lifetime
	}
}

func WithQueryTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.QueryTimeout = timeout
	}
}

// Warehouse wraps a database handle.
type Warehouse struct {
	db     *sql.DB
	opts   Options
	logger *slog.Logger
}

// Open connects using the environment's warehouse configuration and verifies
// the connection.
func Open(ctx context.Context, cfg envconfig.WarehouseConfig, options ...Option) (*Warehouse, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	dsn := cfg.ResolveDSN()
	if dsn == "" {
		return nil, &core.ConfigurationError{Key: "warehouse.dsn"}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &WarehouseError{Op: "connect", Err: err}
	}

	w := NewWithDB(db, options...)
	if w.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(w.opts.MaxOpenConns)
	}
	if w.opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(w.opts.MaxIdleConns)
	}
	if w.opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(w.opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &WarehouseError{Op: "ping", Err: err}
	}
	return w, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB, options ...Option) *Warehouse {
	opts := Options{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
		QueryTimeout:    5 * time.Minute,
	}
	for _, option := range options {
		option(&opts)
	}
	return &Warehouse{db: db, opts: opts, logger: slog.Default()}
}

// Close releases the handle.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

const unscoredRateQuery = `
SELECT
    SUM(imps) AS total_impressions,
    SUM(CASE WHEN adt_rating_id = 0 AND vio_rating_id = 0 AND alc_rating_id = 0 AND drg_rating_id = 0
        AND off_rating_id = 0 AND hat_rating_id = 0 THEN imps ELSE 0 END) AS unscored_impressions
FROM %s
WHERE measurement_source_id IN (2, 3, 7, 12, 13, 14, 15)
    AND hit_date = $1`

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// UnscoredRate returns the percentage of impressions on hitDate that carry no
// brand-safety rating. ok is false when the day has no impressions.
func (w *Warehouse) UnscoredRate(ctx context.Context, table, hitDate string) (rate float64, ok bool, err error) {
	if table == "" {
		table = DefaultBrandSafetyTable
	}
	if !identifierPattern.MatchString(table) {
		return 0, false, &core.ValidationError{Field: "table", Value: table, Msg: "not a valid identifier"}
	}

	if w.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.QueryTimeout)
		defer cancel()
	}

	query := fmt.Sprintf(unscoredRateQuery, table)
	w.logger.InfoContext(ctx, "querying unscored rate", "table", table, "hit_date", hitDate)

	var total, unscored sql.NullFloat64
	if err := w.db.QueryRowContext(ctx, query, hitDate).Scan(&total, &unscored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, &WarehouseError{Op: "query", Err: err}
	}

	if !total.Valid || total.Float64 == 0 {
		return 0, false, nil
	}
	return unscored.Float64 / total.Float64 * 100.0, true, nil
}
