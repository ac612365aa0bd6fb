package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coursaly/payment-reconciler/internal/audit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) Open(ctx context.Context, e audit.Entry) (int64, error) {
	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.pool.QueryRow(ctx, `INSERT INTO audit_logs (gateway, environment_id, payload, headers, status, received_at)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		e.Gateway, e.EnvironmentID, e.Payload, headers, audit.StatusReceived, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) Close(ctx context.Context, id int64, status audit.Status, entityType, entityID, note string) error {
	ct, err := s.pool.Exec(ctx, `UPDATE audit_logs
		SET status=$2, entity_type=$3, entity_id=$4, note=$5, closed_at=$6
		WHERE id=$1 AND closed_at IS NULL`,
		id, status, entityType, entityID, note, time.Now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Closed entries are immutable.
		s.log.Warn("audit close skipped", "id", id, "status", status)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (audit.Entry, error) {
	var e audit.Entry
	var headers []byte
	err := s.pool.QueryRow(ctx, `SELECT id, gateway, environment_id, payload, headers, status, COALESCE(entity_type,''), COALESCE(entity_id,''), COALESCE(note,''), received_at, closed_at
		FROM audit_logs WHERE id=$1`, id).
		Scan(&e.ID, &e.Gateway, &e.EnvironmentID, &e.Payload, &headers, &e.Status, &e.EntityType, &e.EntityID, &e.Note, &e.ReceivedAt, &e.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Entry{}, audit.ErrNotFound
	}
	if err != nil {
		return audit.Entry{}, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &e.Headers); err != nil {
			return audit.Entry{}, err
		}
	}
	return e, nil
}
