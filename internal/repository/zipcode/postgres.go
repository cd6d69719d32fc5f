package zipcode

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

func (r *postgresRepo) IsServiceable(ctx context.Context, zipcode string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_zipcodes WHERE zipcode = $1)`, zipcode).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *postgresRepo) Add(ctx context.Context, zipcode string) error {
	cmd, err := r.pool.Exec(ctx, `INSERT INTO service_zipcodes (zipcode) VALUES ($1) ON CONFLICT DO NOTHING`, zipcode)
	if err != nil {
		r.logger.Error("zipcode repo: add", zap.String("zipcode", zipcode), zap.Error(err))
		return err
	}
	r.logger.Debug("zipcode repo: added", zap.String("zipcode", zipcode), zap.Bool("new", cmd.RowsAffected() == 1))
	return nil
}
