package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/coursaly/payment-reconciler/internal/transaction/application"
	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository reads per-tenant gateway configuration. The engine
// never writes these rows.
type SettingsRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewSettingsRepository(log *slog.Logger, pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{log: log, pool: pool}
}

func (r *SettingsRepository) FindActive(ctx context.Context, environmentID int64, gateway string) (domain.GatewaySetting, error) {
	var s domain.GatewaySetting
	var creds []byte
	err := r.pool.QueryRow(ctx, `SELECT id, environment_id, gateway, credentials, active, centralized
		FROM payment_gateway_settings
		WHERE environment_id=$1 AND gateway=$2 AND active`, environmentID, gateway).
		Scan(&s.ID, &s.EnvironmentID, &s.Gateway, &creds, &s.Active, &s.Centralized)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GatewaySetting{}, application.ErrNoGatewayConfig
	}
	if err != nil {
		return domain.GatewaySetting{}, err
	}
	if len(creds) > 0 {
		if err := json.Unmarshal(creds, &s.Credentials); err != nil {
			return domain.GatewaySetting{}, err
		}
	}
	return s, nil
}
