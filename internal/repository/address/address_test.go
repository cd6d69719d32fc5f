package address

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

func TestPostgres_CRUD(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	home, err := repo.Create(ctx, domain.Address{UserID: "u1", AddressType: domain.AddressHome, StreetAddress: "1 Main", Country: "IN", Zipcode: "560001", Default: true})
	require.NoError(t, err)
	office, err := repo.Create(ctx, domain.Address{UserID: "u1", AddressType: domain.AddressOffice, StreetAddress: "2 Park", Country: "IN", Zipcode: "560002", Default: true})
	require.NoError(t, err)

	list, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, office.ID, list[0].ID)
	assert.True(t, list[0].Default)
	assert.False(t, list[1].Default)

	_, err = repo.Get(ctx, "u2", home.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	home.StreetAddress = "1A Main"
	updated, err := repo.Update(ctx, *home)
	require.NoError(t, err)
	assert.Equal(t, "1A Main", updated.StreetAddress)

	assert.ErrorIs(t, repo.Delete(ctx, "u2", home.ID), domain.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "u1", home.ID))
}

func TestPostgres_DeleteKeepsOrders(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	addr, err := repo.Create(ctx, domain.Address{UserID: "u1", StreetAddress: "1 Main", Country: "IN", Zipcode: "560001"})
	require.NoError(t, err)

	var orderPK string
	require.NoError(t, pool.QueryRow(ctx, `
INSERT INTO orders (user_id, order_id, ordered, stage, billing_address_id)
VALUES ('u1', 'abcdefghij0123456789', true, 'delivered', $1)
RETURNING id::text`, addr.ID).Scan(&orderPK))

	require.NoError(t, repo.Delete(ctx, "u1", addr.ID))

	var billing *string
	require.NoError(t, pool.QueryRow(ctx, `SELECT billing_address_id::text FROM orders WHERE id = $1`, orderPK).Scan(&billing))
	assert.Nil(t, billing)
}

func prepare(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if err := migrate.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE orders, addresses RESTART IDENTITY CASCADE`); err != nil {
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
