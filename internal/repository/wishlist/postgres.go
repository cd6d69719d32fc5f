package wishlist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
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

func (r *postgresRepo) Get(ctx context.Context, userID string) (*domain.Wishlist, error) {
	var w domain.Wishlist
	err := r.pool.QueryRow(ctx, `SELECT id::text, user_id, wishlisted_date FROM wishlists WHERE user_id = $1`, userID).
		Scan(&w.ID, &w.UserID, &w.WishlistedDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT wi.id::text, wi.created_at,
       i.id::text, i.title, i.slug, i.price, i.discount_price, COALESCE(i.label, ''), COALESCE(i.label_name, ''), i.description, i.list_on_frontpage, i.created_at
FROM wishlisted_items wi
JOIN items i ON i.id = wi.item_id
WHERE wi.wishlist_id = $1
ORDER BY wi.created_at DESC
`, w.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	w.Items = []domain.WishlistedItem{}
	for rows.Next() {
		var wi domain.WishlistedItem
		var discount decimal.NullDecimal
		if err := rows.Scan(&wi.ID, &wi.CreatedAt,
			&wi.Item.ID, &wi.Item.Title, &wi.Item.Slug, &wi.Item.Price, &discount, &wi.Item.Label, &wi.Item.LabelName,
			&wi.Item.Description, &wi.Item.ListOnFrontpage, &wi.Item.CreatedAt); err != nil {
			return nil, err
		}
		if discount.Valid {
			d := discount.Decimal
			wi.Item.DiscountPrice = &d
		}
		w.Items = append(w.Items, wi)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *postgresRepo) Add(ctx context.Context, userID, itemID string) (*domain.Wishlist, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var wishlistID string
	err = tx.QueryRow(ctx, `
INSERT INTO wishlists (user_id, wishlisted_date)
VALUES ($1, now())
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id::text
`, userID).Scan(&wishlistID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO wishlisted_items (wishlist_id, user_id, item_id)
VALUES ($1, $2, $3)
ON CONFLICT (wishlist_id, item_id) DO NOTHING
`, wishlistID, userID, itemID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("wishlist repo: item added", zap.String("user_id", userID), zap.String("item_id", itemID))
	return r.Get(ctx, userID)
}

func (r *postgresRepo) Remove(ctx context.Context, userID, itemID string) error {
	cmd, err := r.pool.Exec(ctx, `
DELETE FROM wishlisted_items wi
USING wishlists w
WHERE wi.wishlist_id = w.id AND w.user_id = $1 AND wi.item_id = $2
`, userID, itemID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.Debug("wishlist repo: item removed", zap.String("user_id", userID), zap.String("item_id", itemID))
	return nil
}
