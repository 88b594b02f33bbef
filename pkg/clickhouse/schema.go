package clickhouse

import "fmt"

// Schema returns the idempotent DDL for the bar and analysis-result tables in database db.
func Schema(db string) []string {
	if db == "" {
		db = "flashscan"
	}
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db)}
	for _, tf := range []string{"1m", "5m", "15m", "1h"} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.candles_%s (
    bucket DateTime64(3, 'UTC'),
    symbol LowCardinality(String),
    open Float64,
    high Float64,
    low Float64,
    close Float64,
    vol Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, bucket)`, db, tf))
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.flash_runs (
    run_id String,
    symbol LowCardinality(String),
    timeframe LowCardinality(String),
    from_ts DateTime64(3, 'UTC'),
    to_ts DateTime64(3, 'UTC'),
    grace_period UInt32,
    bars UInt32,
    active UInt32,
    closed UInt32,
    stunted UInt32,
    issues UInt32,
    started_at DateTime64(3, 'UTC'),
    duration_ms Int64
) ENGINE = MergeTree
ORDER BY (symbol, started_at)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.flashes (
    run_id String,
    flash_id UInt32,
    state LowCardinality(String),
    origin_time DateTime64(3, 'UTC'),
    age UInt32,
    stage LowCardinality(String),
    flash_open Float64, flash_high Float64, flash_low Float64, flash_duration UInt32,
    window_open Float64, window_high Float64, window_low Float64, window_duration UInt32,
    hold_open Float64, hold_high Float64, hold_low Float64, hold_duration UInt32,
    bias Int8,
    max_favorable Float64,
    max_adverse Float64,
    degenerate UInt8
) ENGINE = MergeTree
ORDER BY (run_id, flash_id)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.flash_tally (
    run_id String,
    ts DateTime64(3, 'UTC'),
    active_bullish UInt32,
    active_bearish UInt32,
    closed_bullish UInt32,
    closed_bearish UInt32,
    stunted UInt32
) ENGINE = MergeTree
ORDER BY (run_id, ts)`, db),
	)
	return stmts
}
