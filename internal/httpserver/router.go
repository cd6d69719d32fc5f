package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/idempotency"
	"storefront/internal/metrics"
	addresssvc "storefront/internal/service/address"
	cartsvc "storefront/internal/service/cart"
	catalogsvc "storefront/internal/service/catalog"
	checkoutsvc "storefront/internal/service/checkout"
	fulfillmentsvc "storefront/internal/service/fulfillment"
)

type catalogService interface {
	Frontpage(ctx context.Context, page int) (*catalogsvc.Page, error)
	All(ctx context.Context) ([]domain.Item, error)
	Search(ctx context.Context, query string) ([]domain.Item, error)
	Get(ctx context.Context, slug string) (*domain.Item, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

type cartService interface {
	AddItem(ctx context.Context, userID, slug string) (*domain.Order, error)
	RemoveItem(ctx context.Context, userID, slug string) error
	DecrementItem(ctx context.Context, userID, slug string) (bool, error)
	GetActive(ctx context.Context, userID string) (*cartsvc.Summary, error)
	ItemCount(ctx context.Context, userID string) (int, error)
}

type checkoutService interface {
	AttachBillingAddress(ctx context.Context, userID string, in addresssvc.Input) (*domain.Address, error)
	UseSavedAddress(ctx context.Context, userID, addressID string) error
	ApplyCoupon(ctx context.Context, userID, code string) (*domain.Order, error)
	RemoveCoupon(ctx context.Context, userID string) error
	CheckZipcode(ctx context.Context, zipcode string) (bool, error)
	Pay(ctx context.Context, userID string, in checkoutsvc.PayInput) (*domain.Order, error)
}

type fulfillmentService interface {
	PlacedOrders(ctx context.Context, userID string) ([]domain.Order, error)
	Advance(ctx context.Context, orderPK string, to domain.Stage, expected *domain.Stage) (*domain.Order, error)
	Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error)
	RequestRefund(ctx context.Context, in fulfillmentsvc.RefundInput) (*domain.Refund, error)
	GrantRefund(ctx context.Context, orderPK string) (*domain.Order, error)
}

type addressService interface {
	Create(ctx context.Context, userID string, in addresssvc.Input) (*domain.Address, error)
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID, id string) (*domain.Address, error)
	Update(ctx context.Context, userID, id string, in addresssvc.Input) (*domain.Address, error)
	Delete(ctx context.Context, userID, id string) error
}

type wishlistService interface {
	Get(ctx context.Context, userID string) (*domain.Wishlist, error)
	Add(ctx context.Context, userID, slug string) (*domain.Wishlist, error)
	Remove(ctx context.Context, userID, slug string) error
}

// Deps bundles the services behind the routes.
type Deps struct {
	CatalogSvc     catalogService
	CartSvc        cartService
	CheckoutSvc    checkoutService
	FulfillmentSvc fulfillmentService
	AddressSvc     addressService
	WishlistSvc    wishlistService

	Metrics          *metrics.Metrics
	MetricsGatherer  prometheus.Gatherer
	IdempotencyStore idempotency.Store
	IdempotencyTTL   time.Duration
	AdminToken       string
	CORSOrigins      []string
}

func (d Deps) validate() error {
	switch {
	case d.CatalogSvc == nil:
		return errors.New("catalog service required")
	case d.CartSvc == nil:
		return errors.New("cart service required")
	case d.CheckoutSvc == nil:
		return errors.New("checkout service required")
	case d.FulfillmentSvc == nil:
		return errors.New("fulfillment service required")
	case d.AddressSvc == nil:
		return errors.New("address service required")
	case d.WishlistSvc == nil:
		return errors.New("wishlist service required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.IdempotencyStore == nil {
		deps.IdempotencyStore = idempotency.NewMemoryStore()
	}
	if deps.IdempotencyTTL <= 0 {
		deps.IdempotencyTTL = 24 * time.Hour
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	if len(deps.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = deps.CORSOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, userHeader, idempotency.HeaderKey)
		router.Use(cors.New(corsCfg))
	}

	h := &handlers{deps: deps, logger: logger}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", gin.WrapH(metrics.Handler(deps.MetricsGatherer)))

	router.GET("/items", h.frontpage)
	router.GET("/items/all", h.allItems)
	router.GET("/items/search", h.searchItems)
	router.GET("/items/:slug", h.getItem)
	router.GET("/categories", h.categories)
	router.GET("/zipcodes/:zipcode", h.checkZipcode)

	user := router.Group("/", userMiddleware())
	user.GET("/cart", h.getCart)
	user.GET("/cart/count", h.cartCount)
	user.POST("/cart/items/:slug", h.addToCart)
	user.DELETE("/cart/items/:slug", h.removeFromCart)
	user.POST("/cart/items/:slug/decrement", h.decrementCartItem)

	user.POST("/checkout/address", h.attachAddress)
	user.POST("/checkout/coupon", h.applyCoupon)
	user.DELETE("/checkout/coupon", h.removeCoupon)
	user.POST("/checkout/payment",
		idempotency.Middleware(deps.IdempotencyStore, deps.IdempotencyTTL, currentUser, logger),
		h.pay)

	user.GET("/orders", h.listOrders)
	user.POST("/orders/:orderId/cancel", h.cancelOrder)
	user.POST("/refunds", h.requestRefund)

	user.GET("/addresses", h.listAddresses)
	user.POST("/addresses", h.createAddress)
	user.GET("/addresses/:id", h.getAddress)
	user.PUT("/addresses/:id", h.updateAddress)
	user.DELETE("/addresses/:id", h.deleteAddress)

	user.GET("/wishlist", h.getWishlist)
	user.POST("/wishlist/:slug", h.addToWishlist)
	user.DELETE("/wishlist/:slug", h.removeFromWishlist)

	admin := router.Group("/admin", adminMiddleware(deps.AdminToken))
	admin.POST("/orders/:id/advance", h.advanceOrder)
	admin.POST("/orders/:id/refund/grant", h.grantRefund)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}
