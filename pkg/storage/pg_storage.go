package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	pgCreateTable = `CREATE TABLE IF NOT EXISTS local_params (
	key   text PRIMARY KEY,
	value text NOT NULL
)`
	pgSelectParam = `SELECT value FROM local_params WHERE key = $1`
	pgUpsertParam = `INSERT INTO local_params (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
)

// PGQuerier is the part of *pgx.Conn and *pgxpool.Pool used by PGStorage.
type PGQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStorage keeps local parameters in a Postgres table.
type PGStorage struct {
	logger *zap.Logger
	db     PGQuerier
	close  func(ctx context.Context) error
}

func NewPGStorage(db PGQuerier, logger *zap.Logger) *PGStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGStorage{
		logger: logger.Named("postgres"),
		db:     db,
	}
}

// ConnectPGStorage opens a dedicated connection described by dsn.
func ConnectPGStorage(ctx context.Context, dsn string, logger *zap.Logger) (*PGStorage, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}
	s := NewPGStorage(conn, logger)
	s.close = conn.Close
	return s, nil
}

func (s *PGStorage) Initialize() error {
	if s.db == nil {
		return ErrNotInitialized
	}

	_, err := s.db.Exec(context.Background(), pgCreateTable)
	if err != nil {
		return errors.Wrap(err, "failed to create local_params table")
	}

	s.logger.Info("storage initialized")
	return nil
}

func (s *PGStorage) LocalParam(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNotInitialized
	}

	var value string
	err := s.db.QueryRow(ctx, pgSelectParam, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "failed to read local param")
	}

	return value, true, nil
}

func (s *PGStorage) SetLocalParam(ctx context.Context, key string, value string) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	_, err := s.db.Exec(ctx, pgUpsertParam, key, value)
	return errors.Wrap(err, "failed to write local param")
}

func (s *PGStorage) Close() error {
	if s.close == nil {
		return nil
	}
	return errors.Wrap(s.close(context.Background()), "failed to close postgres connection")
}
