package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/metrics"
	"storefront/internal/migrate"
	"storefront/internal/payment"
	addressrepo "storefront/internal/repository/address"
	categoryrepo "storefront/internal/repository/category"
	couponrepo "storefront/internal/repository/coupon"
	itemrepo "storefront/internal/repository/item"
	orderrepo "storefront/internal/repository/order"
	wishlistrepo "storefront/internal/repository/wishlist"
	zipcoderepo "storefront/internal/repository/zipcode"
	addresssvc "storefront/internal/service/address"
	cartsvc "storefront/internal/service/cart"
	catalogsvc "storefront/internal/service/catalog"
	checkoutsvc "storefront/internal/service/checkout"
	fulfillmentsvc "storefront/internal/service/fulfillment"
	wishlistsvc "storefront/internal/service/wishlist"
)

func TestCheckoutFlow_Integration(t *testing.T) {
	ctx := context.Background()
	pool := integrationPool(ctx, t)
	defer pool.Close()
	if err := migrate.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE refunds, order_items, orders, payments, discount_codes, addresses, wishlisted_items, wishlists, item_categories, items, categories, service_zipcodes RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := pool.Exec(ctx, `
INSERT INTO items (title, slug, price, discount_price) VALUES ('Mug', 'mug', 12.00, 10.00);
INSERT INTO discount_codes (promo_code, amount) VALUES ('SAVE5', 5);
INSERT INTO service_zipcodes (zipcode) VALUES ('560001');`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	router := integrationRouter(t, pool)
	user := map[string]string{userHeader: "u1"}
	call := func(method, path, body string, headers map[string]string) (int, map[string]any) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		var out map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		return rec.Code, out
	}

	code, _ := call(http.MethodPost, "/cart/items/mug", "", user)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(http.MethodPost, "/cart/items/mug", "", user)
	require.Equal(t, http.StatusOK, code)

	code, body := call(http.MethodPost, "/checkout/payment", `{"stripeToken":"tok_visa"}`, user)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, checkoutsvc.MsgNoAddress, body["message"])

	code, _ = call(http.MethodPost, "/checkout/address", `{"streetAddress":"1 Main","country":"IN","zipcode":"560001"}`, user)
	require.Equal(t, http.StatusCreated, code)
	code, body = call(http.MethodPost, "/checkout/coupon", `{"code":"SAVE5"}`, user)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "15", body["order"].(map[string]any)["pricing"].(map[string]any)["total"])

	code, body = call(http.MethodPost, "/checkout/payment", `{"stripeToken":"`+payment.TokenDeclined+`"}`, user)
	require.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "Your card was declined.", body["message"])
	code, _ = call(http.MethodGet, "/cart", "", user)
	require.Equal(t, http.StatusOK, code)

	code, body = call(http.MethodPost, "/checkout/payment", `{"stripeToken":"tok_visa"}`, user)
	require.Equal(t, http.StatusCreated, code)
	placed := body["order"].(map[string]any)
	orderID := placed["orderId"].(string)
	orderPK := placed["id"].(string)
	assert.Len(t, orderID, 20)
	assert.Equal(t, true, placed["flags"].(map[string]any)["inTransit"])

	code, _ = call(http.MethodPost, "/checkout/payment", `{"stripeToken":"tok_visa"}`, user)
	assert.Equal(t, http.StatusNotFound, code)

	admin := map[string]string{adminHeader: "secret"}
	code, _ = call(http.MethodPost, "/admin/orders/"+orderPK+"/advance", `{"stage":"shipped"}`, admin)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(http.MethodPost, "/admin/orders/"+orderPK+"/advance", `{"stage":"shipped","expected":"in_transit"}`, admin)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = call(http.MethodPost, "/refunds", `{"refCode":"`+orderID+`","message":"cracked","email":"u1@example.com"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = call(http.MethodPost, "/refunds", `{"refCode":"`+orderID+`","message":"cracked","email":"u1@example.com"}`, user)
	require.Equal(t, http.StatusCreated, code)
	code, body = call(http.MethodPost, "/admin/orders/"+orderPK+"/refund/grant", "", admin)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["order"].(map[string]any)["flags"].(map[string]any)["refundGranted"])

	code, _ = call(http.MethodPost, "/orders/"+orderID+"/cancel", "", user)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(http.MethodPost, "/orders/"+orderID+"/cancel", "", user)
	assert.Equal(t, http.StatusConflict, code)

	code, body = call(http.MethodGet, "/orders", "", user)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["orders"], 1)
}

func integrationRouter(t *testing.T, pool *pgxpool.Pool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	orders := orderrepo.NewPostgres(pool, logger)
	items := itemrepo.NewPostgres(pool, logger)

	router, err := buildRouter(logger, pool, Deps{
		CatalogSvc: catalogsvc.New(items, categoryrepo.NewPostgres(pool, nil)),
		CartSvc:    cartsvc.New(orders, items, logger),
		CheckoutSvc: checkoutsvc.New(checkoutsvc.Deps{
			Orders:   orders,
			Coupons:  couponrepo.NewPostgres(pool, nil),
			Zipcodes: zipcoderepo.NewPostgres(pool, nil),
			Gateway:  payment.NewSandboxGateway(),
			Metrics:  m,
			Logger:   logger,
		}, checkoutsvc.Options{Currency: "inr", PlacementRetries: 1}),
		FulfillmentSvc:  fulfillmentsvc.New(orders, nil, m, nil, logger),
		AddressSvc:      addresssvc.New(addressrepo.NewPostgres(pool, logger), nil),
		WishlistSvc:     wishlistsvc.New(wishlistrepo.NewPostgres(pool, nil), items),
		Metrics:         m,
		MetricsGatherer: reg,
		AdminToken:      "secret",
	})
	require.NoError(t, err)
	return router
}

func integrationPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
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
