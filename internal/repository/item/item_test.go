package item

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/migrate"
)

func TestPostgres_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	discount := decimal.RequireFromString("15.50")
	created, err := repo.Upsert(ctx, domain.Item{
		Title:         "Blue Shirt",
		Slug:          "blue-shirt",
		Price:         decimal.RequireFromString("20.00"),
		DiscountPrice: &discount,
		Label:         domain.LabelPrimary,
		LabelName:     domain.LabelNameSale,
		Description:   "Cotton",
	}, []string{"shirts", "summer"})
	require.NoError(t, err)
	require.Len(t, created.Categories, 2)

	got, err := repo.GetBySlug(ctx, "blue-shirt")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.NotNil(t, got.DiscountPrice)
	assert.True(t, discount.Equal(*got.DiscountPrice))
	assert.Len(t, got.Categories, 2)

	updated, err := repo.Upsert(ctx, domain.Item{Title: "Blue Shirt", Slug: "blue-shirt", Price: decimal.NewFromInt(18)}, []string{"shirts"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	got, err = repo.GetBySlug(ctx, "blue-shirt")
	require.NoError(t, err)
	assert.Nil(t, got.DiscountPrice)
	assert.Len(t, got.Categories, 1)

	_, err = repo.GetBySlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_FrontpageAndSearch(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	for _, it := range []domain.Item{
		{Title: "Red Hoodie", Slug: "red-hoodie", Price: decimal.NewFromInt(40), ListOnFrontpage: true},
		{Title: "Green Hoodie", Slug: "green-hoodie", Price: decimal.NewFromInt(42), ListOnFrontpage: true},
		{Title: "Socks 100%", Slug: "socks", Price: decimal.NewFromInt(5)},
	} {
		_, err := repo.Upsert(ctx, it, nil)
		require.NoError(t, err)
	}

	page, err := repo.ListFrontpage(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)

	found, err := repo.Search(ctx, "hoodie")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = repo.Search(ctx, "100%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "socks", found[0].Slug)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func prepare(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if err := migrate.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE item_categories, items, categories RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}
