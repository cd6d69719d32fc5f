package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	categoryrepo "storefront/internal/repository/category"
	couponrepo "storefront/internal/repository/coupon"
	itemrepo "storefront/internal/repository/item"
	zipcoderepo "storefront/internal/repository/zipcode"
)

type itemSeed struct {
	Title      string
	Slug       string
	Price      string
	Discount   string
	Label      string
	LabelName  string
	Frontpage  bool
	Categories []string
}

var categories = []domain.Category{
	{Title: "Shirts", Slug: "shirts"},
	{Title: "Accessories", Slug: "accessories"},
	{Title: "Kitchen", Slug: "kitchen"},
}

var items = []itemSeed{
	{Title: "Demo T-Shirt", Slug: "demo-shirt", Price: "19.99", Discount: "14.99", Label: domain.LabelDanger, LabelName: domain.LabelNameSale, Frontpage: true, Categories: []string{"shirts"}},
	{Title: "Demo Hoodie", Slug: "demo-hoodie", Price: "49.00", Label: domain.LabelPrimary, LabelName: domain.LabelNameNew, Frontpage: true, Categories: []string{"shirts"}},
	{Title: "Demo Cap", Slug: "demo-cap", Price: "12.50", Frontpage: true, Categories: []string{"accessories"}},
	{Title: "Demo Tote", Slug: "demo-tote", Price: "9.00", Discount: "7.00", Label: domain.LabelSecondary, LabelName: domain.LabelNameOffer, Frontpage: true, Categories: []string{"accessories"}},
	{Title: "Demo Mug", Slug: "demo-mug", Price: "12.99", Frontpage: true, Categories: []string{"kitchen"}},
	{Title: "Demo Bottle", Slug: "demo-bottle", Price: "15.00", Categories: []string{"kitchen", "accessories"}},
}

var coupons = []domain.DiscountCode{
	{PromoCode: "WELCOME5", Amount: decimal.NewFromInt(5), Description: "5 off the first order"},
	{PromoCode: "BIG50", Amount: decimal.NewFromInt(50), Description: "50 off"},
}

var zipcodes = []string{"560001", "560034", "110001", "400001"}

// Apply inserts demo catalog, coupons and serviceable zipcodes for manual
// testing. Every write is an upsert so repeated runs converge.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	cats := categoryrepo.NewPostgres(pool, logger)
	for _, c := range categories {
		if _, err := cats.Upsert(ctx, c); err != nil {
			return fmt.Errorf("upsert category %s: %w", c.Slug, err)
		}
	}

	itemRepo := itemrepo.NewPostgres(pool, logger)
	for _, s := range items {
		it, err := s.item()
		if err != nil {
			return err
		}
		if _, err := itemRepo.Upsert(ctx, it, s.Categories); err != nil {
			return fmt.Errorf("upsert item %s: %w", s.Slug, err)
		}
	}

	couponRepo := couponrepo.NewPostgres(pool, logger)
	for _, c := range coupons {
		if _, err := couponRepo.Upsert(ctx, c); err != nil {
			return fmt.Errorf("upsert coupon %s: %w", c.PromoCode, err)
		}
	}

	zips := zipcoderepo.NewPostgres(pool, logger)
	for _, z := range zipcodes {
		if err := zips.Add(ctx, z); err != nil {
			return fmt.Errorf("add zipcode %s: %w", z, err)
		}
	}

	logger.Info("seed applied",
		zap.Int("categories", len(categories)),
		zap.Int("items", len(items)),
		zap.Int("coupons", len(coupons)),
		zap.Int("zipcodes", len(zipcodes)),
	)
	return nil
}

func (s itemSeed) item() (domain.Item, error) {
	price, err := decimal.NewFromString(s.Price)
	if err != nil {
		return domain.Item{}, fmt.Errorf("seed item %s price: %w", s.Slug, err)
	}
	it := domain.Item{
		Title:           s.Title,
		Slug:            s.Slug,
		Price:           price,
		Label:           s.Label,
		LabelName:       s.LabelName,
		Description:     s.Title + " for demo purposes",
		ListOnFrontpage: s.Frontpage,
	}
	if s.Discount != "" {
		d, err := decimal.NewFromString(s.Discount)
		if err != nil {
			return domain.Item{}, fmt.Errorf("seed item %s discount: %w", s.Slug, err)
		}
		it.DiscountPrice = &d
	}
	return it, nil
}
