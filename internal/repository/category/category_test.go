package category

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/migrate"
)

func TestPostgres_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	cat, err := repo.Upsert(ctx, domain.Category{Title: "Shirts", Slug: "shirts"})
	require.NoError(t, err)
	assert.NotEmpty(t, cat.ID)
	assert.Equal(t, "shirts", cat.Slug)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Shirts", list[0].Title)
}

func TestPostgres_UpsertUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	first, err := repo.Upsert(ctx, domain.Category{Title: "Outwear", Slug: "outwear"})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, domain.Category{Title: "Outerwear", Slug: "outwear"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Outerwear", second.Title)

	kept, err := repo.Upsert(ctx, domain.Category{Slug: "outwear"})
	require.NoError(t, err)
	assert.Equal(t, "Outerwear", kept.Title)

	got, err := repo.GetBySlug(ctx, "outwear")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = repo.GetBySlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func prepare(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if err := migrate.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE item_categories, categories RESTART IDENTITY CASCADE`); err != nil {
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
