package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run kinds.
const (
	KindLiquidity = "liquidity"
	KindCrafting  = "crafting"
	KindArbitrage = "arbitrage"
)

// RunRecord is one persisted engine run.
type RunRecord struct {
	ID         int64           `json:"-"`
	RunID      string          `json:"run_id"`
	Timestamp  string          `json:"timestamp"`
	Kind       string          `json:"kind"`
	Source     string          `json:"source"`
	Count      int             `json:"count"`
	TopValue   float64         `json:"top_value"`
	DurationMs int64           `json:"duration_ms"`
	Params     json.RawMessage `json:"params"`
}

// InsertRun records a run and returns it with its generated ids.
func (d *DB) InsertRun(kind, source string, count int, topValue float64, duration time.Duration, params interface{}) (RunRecord, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return RunRecord{}, fmt.Errorf("encode run params: %w", err)
	}
	if source == "" {
		source = "live"
	}
	rec := RunRecord{
		RunID:      uuid.New().String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Kind:       kind,
		Source:     source,
		Count:      count,
		TopValue:   topValue,
		DurationMs: duration.Milliseconds(),
		Params:     json.RawMessage(paramsJSON),
	}
	result, err := d.sql.Exec(
		"INSERT INTO runs (run_id, timestamp, kind, source, count, top_value, duration_ms, params_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.RunID, rec.Timestamp, rec.Kind, rec.Source, rec.Count, rec.TopValue, rec.DurationMs, string(paramsJSON),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	rec.ID, _ = result.LastInsertId()
	return rec, nil
}

const runColumns = `id, run_id, timestamp, kind, source, count, top_value,
	COALESCE(duration_ms, 0), COALESCE(params_json, '{}')`

func scanRun(row interface{ Scan(...any) error }) (RunRecord, error) {
	var r RunRecord
	var paramsStr string
	err := row.Scan(&r.ID, &r.RunID, &r.Timestamp, &r.Kind, &r.Source, &r.Count, &r.TopValue, &r.DurationMs, &paramsStr)
	r.Params = json.RawMessage(paramsStr)
	return r, err
}

// GetRuns returns the last N runs (newest first).
func (d *DB) GetRuns(limit int) []RunRecord {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query("SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return []RunRecord{}
	}
	defer rows.Close()

	records := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records
}

// GetRun returns a run by its public run id, or nil if none exists.
func (d *DB) GetRun(runID string) *RunRecord {
	r, err := scanRun(d.sql.QueryRow("SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID))
	if err != nil {
		return nil
	}
	return &r
}

// LatestRun returns the newest run of a kind, or nil.
func (d *DB) LatestRun(kind string) *RunRecord {
	r, err := scanRun(d.sql.QueryRow("SELECT "+runColumns+" FROM runs WHERE kind = ? ORDER BY id DESC LIMIT 1", kind))
	if err != nil {
		return nil
	}
	return &r
}

var resultTables = []string{"liquidity_results", "crafting_results", "arbitrage_results"}

// DeleteRun deletes a run and its result rows.
func (d *DB) DeleteRun(runID string) error {
	r := d.GetRun(runID)
	if r == nil {
		return sql.ErrNoRows
	}
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	for _, table := range resultTables {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", r.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM runs WHERE id = ?", r.ID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ClearRuns deletes runs older than the given number of days.
func (d *DB) ClearRuns(olderThanDays int) (int64, error) {
	if olderThanDays < 0 {
		return 0, errors.New("olderThanDays must be >= 0")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)

	tx, err := d.sql.Begin()
	if err != nil {
		return 0, err
	}
	for _, table := range resultTables {
		_, err := tx.Exec("DELETE FROM "+table+" WHERE run_id IN (SELECT id FROM runs WHERE timestamp < ?)", cutoff)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("delete %s: %w", table, err)
		}
	}
	result, err := tx.Exec("DELETE FROM runs WHERE timestamp < ?", cutoff)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	count, _ := result.RowsAffected()
	return count, nil
}
