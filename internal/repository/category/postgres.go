package category

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

func (r *postgresRepo) List(ctx context.Context) ([]domain.Category, error) {
	const q = `
SELECT id::text, title, slug, created_at
FROM categories
ORDER BY title ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	const q = `
SELECT id::text, title, slug, created_at
FROM categories
WHERE slug = $1
`
	var c domain.Category
	if err := r.pool.QueryRow(ctx, q, slug).Scan(&c.ID, &c.Title, &c.Slug, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	const q = `
INSERT INTO categories (title, slug)
VALUES ($1, $2)
ON CONFLICT (slug) DO UPDATE
SET title = COALESCE(NULLIF(EXCLUDED.title, ''), categories.title)
RETURNING id::text, title, created_at
`
	out := domain.Category{Slug: c.Slug}
	if err := r.pool.QueryRow(ctx, q, c.Title, c.Slug).Scan(&out.ID, &out.Title, &out.CreatedAt); err != nil {
		r.logger.Error("category repo: upsert", zap.String("slug", c.Slug), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("category repo: upserted", zap.String("slug", out.Slug), zap.String("id", out.ID))
	return &out, nil
}
