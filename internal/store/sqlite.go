package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "tradecoach/internal/errors"
)

// SQLiteStore implements AnalysisStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based analysis store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL,
		outcome TEXT NOT NULL,
		success INTEGER NOT NULL,
		overall INTEGER NOT NULL,
		risk_discipline INTEGER NOT NULL,
		execution_quality INTEGER NOT NULL,
		consistency INTEGER NOT NULL,
		professionalism INTEGER NOT NULL,
		trade_json TEXT NOT NULL,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_symbol ON analyses(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertAnalysis = `
	INSERT INTO analyses (id, created_at, symbol, model, outcome, success, overall, risk_discipline, execution_quality, consistency, professionalism, trade_json, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insert(ctx context.Context, db execer, rec *AnalysisRecord) error {
	tradeJSON, err := json.Marshal(rec.Trade)
	if err != nil {
		return fmt.Errorf("failed to encode trade: %w", err)
	}
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	success := 0
	if rec.Success {
		success = 1
	}
	score := rec.Score()

	_, err = db.ExecContext(ctx, insertAnalysis,
		rec.ID, rec.CreatedAt.UTC(), rec.Symbol, rec.Result.Model, rec.Outcome, success,
		score.Overall, score.RiskDiscipline, score.ExecutionQuality, score.Consistency, score.Professionalism,
		string(tradeJSON), string(resultJSON))
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// SaveAnalysis saves an analysis.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	return insert(ctx, s.db, rec)
}

// SaveAnalyses saves several analyses in one transaction.
func (s *SQLiteStore) SaveAnalyses(ctx context.Context, recs []*AnalysisRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if err := insert(ctx, tx, rec); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const selectAnalysis = "SELECT id, created_at, symbol, outcome, success, trade_json, result_json FROM analyses"

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (AnalysisRecord, error) {
	var rec AnalysisRecord
	var success int
	var tradeJSON, resultJSON string

	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.Symbol, &rec.Outcome, &success, &tradeJSON, &resultJSON); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(tradeJSON), &rec.Trade); err != nil {
		return rec, fmt.Errorf("failed to decode trade: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return rec, fmt.Errorf("failed to decode analysis: %w", err)
	}
	rec.Success = success == 1
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// GetAnalyses retrieves analyses, newest first.
func (s *SQLiteStore) GetAnalyses(ctx context.Context, filter AnalysisFilter) ([]AnalysisRecord, error) {
	query := selectAnalysis + " WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Model != "" {
		query += " AND model = ?"
		args = append(args, filter.Model)
	}
	if !filter.StartDate.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// GetAnalysis retrieves one analysis by ID.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error) {
	rec, err := scanAnalysis(s.db.QueryRowContext(ctx, selectAnalysis+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "analysis %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &rec, nil
}
