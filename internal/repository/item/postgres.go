package item

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const itemColumns = `
SELECT id::text, title, slug, price, discount_price, COALESCE(label, ''), COALESCE(label_name, ''), description, list_on_frontpage, created_at
FROM items
`

func (r *postgresRepo) ListFrontpage(ctx context.Context, limit, offset int) (Page, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE list_on_frontpage`).Scan(&total); err != nil {
		return Page{}, err
	}
	items, err := r.list(ctx, itemColumns+`WHERE list_on_frontpage ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return Page{}, err
	}
	r.logger.Debug("item repo: frontpage", zap.Int("offset", offset), zap.Int("count", len(items)), zap.Int("total", total))
	return Page{Items: items, Total: total}, nil
}

func (r *postgresRepo) ListAll(ctx context.Context) ([]domain.Item, error) {
	return r.list(ctx, itemColumns+`ORDER BY created_at DESC, id`)
}

func (r *postgresRepo) Search(ctx context.Context, query string) ([]domain.Item, error) {
	pattern := "%" + escapeLike(query) + "%"
	return r.list(ctx, itemColumns+`WHERE title ILIKE $1 ORDER BY title ASC`, pattern)
}

func (r *postgresRepo) GetBySlug(ctx context.Context, slug string) (*domain.Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, itemColumns+`WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("item repo: not found", zap.String("slug", slug))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("item repo: get", zap.String("slug", slug), zap.Error(err))
		return nil, err
	}
	items := []domain.Item{*it}
	if err := r.attachCategories(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (r *postgresRepo) Upsert(ctx context.Context, it domain.Item, categorySlugs []string) (*domain.Item, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var discount decimal.NullDecimal
	if it.DiscountPrice != nil {
		discount = decimal.NewNullDecimal(*it.DiscountPrice)
	}

	const q = `
INSERT INTO items (title, slug, price, discount_price, label, label_name, description, list_on_frontpage)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
ON CONFLICT (slug) DO UPDATE SET
    title = EXCLUDED.title,
    price = EXCLUDED.price,
    discount_price = EXCLUDED.discount_price,
    label = EXCLUDED.label,
    label_name = EXCLUDED.label_name,
    description = EXCLUDED.description,
    list_on_frontpage = EXCLUDED.list_on_frontpage
RETURNING id::text, created_at
`
	out := it
	err = tx.QueryRow(ctx, q, it.Title, it.Slug, it.Price, discount, it.Label, it.LabelName, it.Description, it.ListOnFrontpage).
		Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		r.logger.Error("item repo: upsert", zap.String("slug", it.Slug), zap.Error(err))
		return nil, err
	}

	if categorySlugs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM item_categories WHERE item_id = $1`, out.ID); err != nil {
			return nil, err
		}
		out.Categories = nil
		for _, slug := range categorySlugs {
			var c domain.Category
			err := tx.QueryRow(ctx, `
INSERT INTO categories (title, slug) VALUES ($1::text, $1::text)
ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
RETURNING id::text, title, slug, created_at
`, slug).Scan(&c.ID, &c.Title, &c.Slug, &c.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("ensure category %q: %w", slug, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO item_categories (item_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, out.ID, c.ID); err != nil {
				return nil, err
			}
			out.Categories = append(out.Categories, c)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("item repo: upserted", zap.String("slug", out.Slug), zap.String("id", out.ID))
	return &out, nil
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...any) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.attachCategories(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *postgresRepo) attachCategories(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	pos := make(map[string]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
		pos[it.ID] = i
	}
	rows, err := r.pool.Query(ctx, `
SELECT ic.item_id::text, c.id::text, c.title, c.slug, c.created_at
FROM item_categories ic
JOIN categories c ON c.id = ic.category_id
WHERE ic.item_id = ANY($1::uuid[])
ORDER BY c.title
`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID string
		var c domain.Category
		if err := rows.Scan(&itemID, &c.ID, &c.Title, &c.Slug, &c.CreatedAt); err != nil {
			return err
		}
		if i, ok := pos[itemID]; ok {
			items[i].Categories = append(items[i].Categories, c)
		}
	}
	return rows.Err()
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var it domain.Item
	var discount decimal.NullDecimal
	if err := row.Scan(&it.ID, &it.Title, &it.Slug, &it.Price, &discount, &it.Label, &it.LabelName, &it.Description, &it.ListOnFrontpage, &it.CreatedAt); err != nil {
		return nil, err
	}
	if discount.Valid {
		d := discount.Decimal
		it.DiscountPrice = &d
	}
	return &it, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
