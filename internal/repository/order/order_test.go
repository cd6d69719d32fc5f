package order

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/migrate"
)

func TestPostgres_AddRemoveDecrement(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	itemA := insertItem(ctx, t, pool, "item-a", "10.00")
	itemB := insertItem(ctx, t, pool, "item-b", "4.50")
	repo := NewPostgres(pool, nil)

	_, err := repo.GetActive(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	o, err := repo.AddItem(ctx, "u1", itemA)
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 1, o.Lines[0].Quantity)
	assert.False(t, o.Ordered)
	assert.Equal(t, domain.StageCart, o.Stage)

	o, err = repo.AddItem(ctx, "u1", itemA)
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 2, o.Lines[0].Quantity)

	_, err = repo.AddItem(ctx, "u1", itemB)
	require.NoError(t, err)
	n, err := repo.CountLines(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := repo.DecrementItem(ctx, "u1", itemA)
	require.NoError(t, err)
	assert.False(t, removed)
	removed, err = repo.DecrementItem(ctx, "u1", itemA)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = repo.DecrementItem(ctx, "u1", itemA)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.RemoveItem(ctx, "u1", itemB))
	assert.ErrorIs(t, repo.RemoveItem(ctx, "u1", itemB), domain.ErrNotFound)
	assert.ErrorIs(t, repo.RemoveItem(ctx, "nobody", itemB), domain.ErrNotFound)

	o, err = repo.GetActive(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, o.Lines)
}

func TestPostgres_ConcurrentFirstAddKeepsOneCart(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	item := insertItem(ctx, t, pool, "item-a", "10.00")
	repo := NewPostgres(pool, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AddItem(ctx, "racer", item)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var carts int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = 'racer' AND NOT ordered`).Scan(&carts))
	assert.Equal(t, 1, carts)

	o, err := repo.GetActive(ctx, "racer")
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 8, o.Lines[0].Quantity)
}

func TestPostgres_PlaceAndFulfill(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	item := insertItem(ctx, t, pool, "item-a", "10.00")
	repo := NewPostgres(pool, nil)

	cart, err := repo.AddItem(ctx, "u1", item)
	require.NoError(t, err)
	_, err = repo.AttachNewAddress(ctx, "u1", domain.Address{StreetAddress: "1 Main", Country: "IN", Zipcode: "560001"})
	require.NoError(t, err)

	in := PlaceInput{OrderPK: cart.ID, UserID: "u1", ChargeID: "ch_1", Amount: decimal.RequireFromString("10.00"), AmountMinor: 1000, Currency: "inr"}
	placed, err := repo.Place(ctx, in)
	require.NoError(t, err)
	assert.True(t, placed.Ordered)
	assert.Len(t, placed.OrderID, 20)
	assert.Equal(t, domain.StageInTransit, placed.Stage)
	require.NotNil(t, placed.Payment)
	assert.Equal(t, "ch_1", placed.Payment.ChargeID)
	for _, l := range placed.Lines {
		assert.True(t, l.Ordered)
	}

	again, err := repo.Place(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, placed.OrderID, again.OrderID)

	_, err = repo.Place(ctx, PlaceInput{OrderPK: cart.ID, UserID: "u1", ChargeID: "ch_2", Amount: decimal.RequireFromString("10.00"), AmountMinor: 1000, Currency: "inr"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetActive(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	byPublic, err := repo.GetByPublicID(ctx, placed.OrderID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, byPublic.ID)

	require.NoError(t, repo.CompareAndSetStage(ctx, placed.ID, domain.StageInTransit, domain.StageShipped))
	assert.ErrorIs(t, repo.CompareAndSetStage(ctx, placed.ID, domain.StageInTransit, domain.StageShipped), domain.ErrStageConflict)
	assert.ErrorIs(t, repo.CompareAndSetStage(ctx, "00000000-0000-0000-0000-000000000000", domain.StageInTransit, domain.StageShipped), domain.ErrNotFound)

	assert.ErrorIs(t, repo.GrantRefund(ctx, placed.ID), domain.ErrInvalidTransition)
	refund, err := repo.RequestRefund(ctx, placed.ID, "damaged", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, placed.OrderID, refund.OrderID)
	require.NoError(t, repo.GrantRefund(ctx, placed.ID))

	final, err := repo.GetByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageShipped, final.Stage)
	assert.Equal(t, domain.RefundGranted, final.RefundStatus)

	var accepted bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT refund_accepted FROM refunds WHERE id = $1`, refund.ID).Scan(&accepted))
	assert.True(t, accepted)

	list, err := repo.ListPlaced(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Lines, 1)
}

func TestPostgres_ConcurrentStageAdvanceSingleWinner(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	item := insertItem(ctx, t, pool, "item-a", "10.00")
	repo := NewPostgres(pool, nil)
	cart, err := repo.AddItem(ctx, "u1", item)
	require.NoError(t, err)
	_, err = repo.Place(ctx, PlaceInput{OrderPK: cart.ID, UserID: "u1", ChargeID: "ch_x", Amount: decimal.NewFromInt(10), AmountMinor: 1000, Currency: "inr"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.CompareAndSetStage(ctx, cart.ID, domain.StageInTransit, domain.StageShipped)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrStageConflict), "unexpected error %v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestPostgres_PlaceRejectsCartChangedAfterCharge(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	itemA := insertItem(ctx, t, pool, "item-a", "10.00")
	itemB := insertItem(ctx, t, pool, "item-b", "4.50")
	repo := NewPostgres(pool, nil)

	cart, err := repo.AddItem(ctx, "u1", itemA)
	require.NoError(t, err)
	_, err = repo.AddItem(ctx, "u1", itemB)
	require.NoError(t, err)

	_, err = repo.Place(ctx, PlaceInput{OrderPK: cart.ID, UserID: "u1", ChargeID: "ch_stale", Amount: decimal.RequireFromString("10.00"), AmountMinor: 1000, Currency: "inr"})
	require.ErrorIs(t, err, ErrTotalChanged)

	still, err := repo.GetActive(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, still.Ordered)
	assert.Empty(t, still.OrderID)
	assert.Nil(t, still.Payment)
	for _, l := range still.Lines {
		assert.False(t, l.Ordered)
	}

	var payments int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE charge_id = 'ch_stale'`).Scan(&payments))
	assert.Zero(t, payments)

	placed, err := repo.Place(ctx, PlaceInput{OrderPK: cart.ID, UserID: "u1", ChargeID: "ch_fresh", Amount: decimal.RequireFromString("14.50"), AmountMinor: 1450, Currency: "inr"})
	require.NoError(t, err)
	assert.True(t, placed.Ordered)
	assert.Len(t, placed.Lines, 2)
}

func TestPostgres_RepeatRefundRequestsUntilGranted(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	item := insertItem(ctx, t, pool, "item-a", "10.00")
	repo := NewPostgres(pool, nil)
	cart, err := repo.AddItem(ctx, "u1", item)
	require.NoError(t, err)
	_, err = repo.Place(ctx, PlaceInput{OrderPK: cart.ID, UserID: "u1", ChargeID: "ch_r", Amount: decimal.NewFromInt(10), AmountMinor: 1000, Currency: "inr"})
	require.NoError(t, err)

	first, err := repo.RequestRefund(ctx, cart.ID, "damaged", "a@example.com")
	require.NoError(t, err)
	second, err := repo.RequestRefund(ctx, cart.ID, "still damaged", "a@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	o, err := repo.GetByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundRequested, o.RefundStatus)

	require.NoError(t, repo.GrantRefund(ctx, cart.ID))

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM refunds WHERE order_id = $1 AND NOT refund_accepted`, cart.ID).Scan(&pending))
	assert.Zero(t, pending)

	_, err = repo.RequestRefund(ctx, cart.ID, "again", "a@example.com")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	var total int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM refunds WHERE order_id = $1`, cart.ID).Scan(&total))
	assert.Equal(t, 2, total)
}

func TestPostgres_CouponAttachAndRemoveDeletesCode(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	item := insertItem(ctx, t, pool, "item-a", "10.00")
	repo := NewPostgres(pool, nil)

	var couponID string
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO discount_codes (promo_code, amount) VALUES ('SAVE5', 5) RETURNING id::text`).Scan(&couponID))

	assert.ErrorIs(t, repo.SetCoupon(ctx, "u1", couponID), domain.ErrNotFound)
	_, err := repo.AddItem(ctx, "u1", item)
	require.NoError(t, err)
	require.NoError(t, repo.SetCoupon(ctx, "u1", couponID))

	o, err := repo.GetActive(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, o.Coupon)
	assert.Equal(t, "SAVE5", o.Coupon.PromoCode)

	require.NoError(t, repo.RemoveCoupon(ctx, "u1"))
	assert.ErrorIs(t, repo.RemoveCoupon(ctx, "u1"), domain.ErrNotFound)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM discount_codes WHERE id = $1`, couponID).Scan(&count))
	assert.Zero(t, count)
}

func TestPostgres_AttachAddressRequiresCart(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	prepare(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	_, err := repo.AttachNewAddress(ctx, "u1", domain.Address{StreetAddress: "1 Main", Country: "IN", Zipcode: "560001"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM addresses`).Scan(&n))
	assert.Zero(t, n)
}

func prepare(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if err := migrate.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE refunds, order_items, orders, payments, discount_codes, addresses, item_categories, items, categories RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func insertItem(ctx context.Context, t *testing.T, pool *pgxpool.Pool, slug, price string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `INSERT INTO items (title, slug, price) VALUES ($1::text, $1::text, $2::numeric) RETURNING id::text`, slug, price).Scan(&id)
	if err != nil {
		t.Fatalf("insert item: %v", err)
	}
	return id
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
