package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/txengine/internal/csvio"
	"github.com/ruralpay/txengine/internal/models"
)

// SnapshotStore exports the final account snapshots of a run. Stores are
// write-only: a run never reads earlier snapshots back.
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, runID string, snapshots []models.Snapshot) error
}

const createSnapshotTable = `
	CREATE TABLE IF NOT EXISTS account_snapshots (
		run_id     TEXT        NOT NULL,
		client     INTEGER     NOT NULL,
		available  NUMERIC     NOT NULL,
		held       NUMERIC     NOT NULL,
		total      NUMERIC     NOT NULL,
		locked     BOOLEAN     NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, client)
	)`

type PostgresSnapshotStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresSnapshotStore(db *sql.DB) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db, now: time.Now}
}

// EnsureSchema creates the snapshot table when it does not exist.
func (s *PostgresSnapshotStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSnapshotTable); err != nil {
		return fmt.Errorf("creating account_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshots writes every snapshot of the run in a single transaction.
func (s *PostgresSnapshotStore) SaveSnapshots(ctx context.Context, runID string, snapshots []models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := s.now()
	for _, snap := range snapshots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO account_snapshots (run_id, client, available, held, total, locked, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			runID, int(snap.Client),
			csvio.FormatAmount(snap.Available),
			csvio.FormatAmount(snap.Held),
			csvio.FormatAmount(snap.Total),
			snap.Locked, createdAt,
		); err != nil {
			return fmt.Errorf("inserting snapshot for client %d: %w", snap.Client, err)
		}
	}

	return tx.Commit()
}

type RedisSnapshotStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{redis: client, ttl: ttl}
}

// SnapshotKey is the hash holding a run's snapshots, keyed by client id.
func SnapshotKey(runID string) string {
	return fmt.Sprintf("txengine:run:%s:accounts", runID)
}

// SaveSnapshots stores the run as one hash, each field a JSON snapshot.
func (s *RedisSnapshotStore) SaveSnapshots(ctx context.Context, runID string, snapshots []models.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	values := make([]any, 0, len(snapshots)*2)
	for _, row := range csvio.JSONSnapshots(slices.Values(snapshots)) {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		values = append(values, strconv.FormatUint(uint64(row.Client), 10), string(data))
	}

	key := SnapshotKey(runID)
	if err := s.redis.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("storing snapshots for run %s: %w", runID, err)
	}
	if s.ttl > 0 {
		if err := s.redis.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("setting expiry for run %s: %w", runID, err)
		}
	}
	return nil
}
