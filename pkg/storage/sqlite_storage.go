package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"

	sqliteCreateTable = `CREATE TABLE IF NOT EXISTS local_params (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	sqliteSelectParam = `SELECT value FROM local_params WHERE key = ?`
	sqliteUpsertParam = `INSERT INTO local_params (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`
)

// SQLiteStorage keeps local parameters in a single-file SQLite database.
type SQLiteStorage struct {
	logger *zap.Logger
	path   string
	db     *sql.DB
}

func NewSQLiteStorage(path string, logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStorage{
		logger: logger.Named("sqlite"),
		path:   path,
	}
}

func (s *SQLiteStorage) Initialize() error {
	db, err := sql.Open(sqliteDriverName, s.path)
	if err != nil {
		return errors.Wrap(err, "failed to open sqlite database")
	}

	// A single connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(sqliteCreateTable)
	if err != nil {
		_ = db.Close()
		return errors.Wrap(err, "failed to create local_params table")
	}

	s.db = db
	s.logger.Info("storage initialized", zap.String("path", s.path))
	return nil
}

func (s *SQLiteStorage) LocalParam(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNotInitialized
	}

	var value string
	err := s.db.QueryRowContext(ctx, sqliteSelectParam, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "failed to read local param")
	}

	return value, true, nil
}

func (s *SQLiteStorage) SetLocalParam(ctx context.Context, key string, value string) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	_, err := s.db.ExecContext(ctx, sqliteUpsertParam, key, value)
	return errors.Wrap(err, "failed to write local param")
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Wrap(err, "failed to close sqlite database")
}
