package coupon

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error) {
	const q = `
SELECT id::text, promo_code, amount, description
FROM discount_codes
WHERE promo_code = $1
`
	var c domain.DiscountCode
	err := r.pool.QueryRow(ctx, q, code).Scan(&c.ID, &c.PromoCode, &c.Amount, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, c domain.DiscountCode) (*domain.DiscountCode, error) {
	const q = `
INSERT INTO discount_codes (promo_code, amount, description)
VALUES ($1, $2, $3)
ON CONFLICT (promo_code) DO UPDATE
SET amount = EXCLUDED.amount,
    description = EXCLUDED.description
RETURNING id::text
`
	out := c
	if err := r.pool.QueryRow(ctx, q, c.PromoCode, c.Amount, c.Description).Scan(&out.ID); err != nil {
		r.logger.Error("coupon repo: upsert", zap.String("promo_code", c.PromoCode), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("coupon repo: upserted", zap.String("promo_code", out.PromoCode), zap.String("id", out.ID))
	return &out, nil
}
