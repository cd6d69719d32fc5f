package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/pricing"
)

const orderIDAttempts = 5

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresRepo struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	newOrderID func() (string, error)
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger), newOrderID: domain.NewOrderID}
}

const orderSelect = `
SELECT o.id::text, o.user_id, COALESCE(o.order_id, ''), o.ordered, o.start_date, o.ordered_date,
       o.stage, o.refund_status, o.updated_at,
       a.id::text, a.address_type, a.street_address, a.apartment_address, a.country, a.zipcode, a.default_address, a.created_at,
       p.id::text, p.charge_id, p.amount, p.currency, p.created_at,
       d.id::text, d.promo_code, d.amount, d.description
FROM orders o
LEFT JOIN addresses a ON a.id = o.billing_address_id
LEFT JOIN payments p ON p.id = o.payment_id
LEFT JOIN discount_codes d ON d.id = o.coupon_id
`

func (r *postgresRepo) GetActive(ctx context.Context, userID string) (*domain.Order, error) {
	return r.fetchOrder(ctx, r.pool, orderSelect+`WHERE o.user_id = $1 AND NOT o.ordered`, userID)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.fetchOrder(ctx, r.pool, orderSelect+`WHERE o.id = $1`, id)
}

func (r *postgresRepo) GetByPublicID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.fetchOrder(ctx, r.pool, orderSelect+`WHERE o.order_id = $1 AND o.ordered`, orderID)
}

func (r *postgresRepo) ListPlaced(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, orderSelect+`WHERE o.user_id = $1 AND o.ordered ORDER BY o.ordered_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range orders {
		lines, err := fetchLines(ctx, r.pool, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func (r *postgresRepo) CountLines(ctx context.Context, userID string) (int, error) {
	const q = `
SELECT COUNT(oi.id)
FROM orders o
JOIN order_items oi ON oi.order_id = o.id
WHERE o.user_id = $1 AND NOT o.ordered
`
	var n int
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *postgresRepo) AddItem(ctx context.Context, userID, itemID string) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	orderPK, err := lockOrCreateActive(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	var qty int
	err = tx.QueryRow(ctx, `
INSERT INTO order_items (order_id, user_id, item_id)
VALUES ($1, $2, $3)
ON CONFLICT (order_id, item_id) DO UPDATE SET quantity = order_items.quantity + 1
RETURNING quantity
`, orderPK, userID, itemID).Scan(&qty)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := touch(ctx, tx, orderPK); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	r.logger.Debug("cart item added", zap.String("user_id", userID), zap.String("item_id", itemID), zap.Int("quantity", qty))
	return r.GetByID(ctx, orderPK)
}

func (r *postgresRepo) RemoveItem(ctx context.Context, userID, itemID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	orderPK, err := lockActive(ctx, tx, userID)
	if err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1 AND item_id = $2`, orderPK, itemID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := touch(ctx, tx, orderPK); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) DecrementItem(ctx context.Context, userID, itemID string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	orderPK, err := lockActive(ctx, tx, userID)
	if err != nil {
		return false, err
	}

	removed := false
	cmd, err := tx.Exec(ctx, `
UPDATE order_items SET quantity = quantity - 1
WHERE order_id = $1 AND item_id = $2 AND quantity > 1
`, orderPK, itemID)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		cmd, err = tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1 AND item_id = $2`, orderPK, itemID)
		if err != nil {
			return false, err
		}
		if cmd.RowsAffected() == 0 {
			return false, domain.ErrNotFound
		}
		removed = true
	}
	if err := touch(ctx, tx, orderPK); err != nil {
		return false, err
	}
	return removed, tx.Commit(ctx)
}

func (r *postgresRepo) AttachNewAddress(ctx context.Context, userID string, addr domain.Address) (*domain.Address, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	orderPK, err := lockActive(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	out := addr
	out.UserID = userID
	err = tx.QueryRow(ctx, `
INSERT INTO addresses (user_id, address_type, street_address, apartment_address, country, zipcode, default_address)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
RETURNING id::text, created_at
`, userID, addr.AddressType, addr.StreetAddress, addr.ApartmentAddress, addr.Country, addr.Zipcode, addr.Default).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET billing_address_id = $2, updated_at = now() WHERE id = $1`, orderPK, out.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) AttachAddress(ctx context.Context, userID, addressID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	orderPK, err := lockActive(ctx, tx, userID)
	if err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `
UPDATE orders SET billing_address_id = a.id, updated_at = now()
FROM addresses a
WHERE orders.id = $1 AND a.id = $2 AND a.user_id = $3
`, orderPK, addressID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) SetCoupon(ctx context.Context, userID, couponID string) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders SET coupon_id = $2, updated_at = now()
WHERE user_id = $1 AND NOT ordered
`, userID, couponID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RemoveCoupon detaches the coupon and deletes the discount code row itself.
func (r *postgresRepo) RemoveCoupon(ctx context.Context, userID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var orderPK string
	var couponID *string
	err = tx.QueryRow(ctx, `
SELECT id::text, coupon_id::text FROM orders
WHERE user_id = $1 AND NOT ordered
FOR UPDATE
`, userID).Scan(&orderPK, &couponID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if couponID == nil {
		return domain.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET coupon_id = NULL, updated_at = now() WHERE id = $1`, orderPK); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM discount_codes WHERE id = $1`, *couponID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Info("coupon removed and deleted", zap.String("order_pk", orderPK), zap.String("coupon_id", *couponID))
	return nil
}

// Place records the payment and flips the cart to a placed order. Replaying
// the same charge against an already placed order returns that order. The
// cart row stays locked while its total is checked against the charge, so
// cart edits either land before the check or wait for the placement.
func (r *postgresRepo) Place(ctx context.Context, in PlaceInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ordered bool
	err = tx.QueryRow(ctx, `SELECT ordered FROM orders WHERE id = $1 FOR UPDATE`, in.OrderPK).Scan(&ordered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if !ordered {
		if err := r.checkTotal(ctx, tx, in); err != nil {
			return nil, err
		}
	}

	var paymentID string
	err = tx.QueryRow(ctx, `
INSERT INTO payments (charge_id, user_id, amount, currency)
VALUES ($1, $2, $3, $4)
ON CONFLICT (charge_id) DO UPDATE SET charge_id = EXCLUDED.charge_id
RETURNING id::text
`, in.ChargeID, in.UserID, in.Amount, in.Currency).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	placed, err := r.flipOrdered(ctx, tx, in.OrderPK, paymentID)
	if err != nil {
		return nil, err
	}
	if !placed {
		var existingPayment *string
		err := tx.QueryRow(ctx, `SELECT payment_id::text FROM orders WHERE id = $1 AND ordered`, in.OrderPK).Scan(&existingPayment)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}
		if existingPayment == nil || *existingPayment != paymentID {
			return nil, domain.ErrNotFound
		}
		r.logger.Info("order already placed for charge", zap.String("order_pk", in.OrderPK), zap.String("charge_id", in.ChargeID))
		return r.GetByID(ctx, in.OrderPK)
	}

	if _, err := tx.Exec(ctx, `UPDATE order_items SET ordered = true WHERE order_id = $1`, in.OrderPK); err != nil {
		return nil, fmt.Errorf("mark lines ordered: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, in.OrderPK)
}

func (r *postgresRepo) checkTotal(ctx context.Context, tx pgx.Tx, in PlaceInput) error {
	current, err := r.fetchOrder(ctx, tx, orderSelect+`WHERE o.id = $1`, in.OrderPK)
	if err != nil {
		return err
	}
	if got := pricing.ToMinorUnits(pricing.OrderTotal(*current)); got != in.AmountMinor {
		r.logger.Warn("cart changed after charge",
			zap.String("order_pk", in.OrderPK),
			zap.String("charge_id", in.ChargeID),
			zap.Int64("charged_minor", in.AmountMinor),
			zap.Int64("current_minor", got),
		)
		return fmt.Errorf("%w: charged %d, cart totals %d", ErrTotalChanged, in.AmountMinor, got)
	}
	return nil
}

func (r *postgresRepo) flipOrdered(ctx context.Context, tx pgx.Tx, orderPK, paymentID string) (bool, error) {
	for i := 0; i < orderIDAttempts; i++ {
		publicID, err := r.newOrderID()
		if err != nil {
			return false, err
		}
		sp, err := tx.Begin(ctx)
		if err != nil {
			return false, err
		}
		cmd, err := sp.Exec(ctx, `
UPDATE orders
SET ordered = true,
    order_id = $2,
    payment_id = $3,
    stage = 'in_transit',
    ordered_date = now(),
    updated_at = now()
WHERE id = $1 AND NOT ordered
`, orderPK, publicID, paymentID)
		if err != nil {
			_ = sp.Rollback(ctx)
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_id_key" {
				r.logger.Warn("order id collision, retrying", zap.String("order_pk", orderPK))
				continue
			}
			return false, fmt.Errorf("place order: %w", err)
		}
		if err := sp.Commit(ctx); err != nil {
			return false, err
		}
		return cmd.RowsAffected() == 1, nil
	}
	return false, errors.New("order id collision")
}

func (r *postgresRepo) CompareAndSetStage(ctx context.Context, orderPK string, from, to domain.Stage) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders SET stage = $3, updated_at = now()
WHERE id = $1 AND ordered AND stage = $2
`, orderPK, string(from), string(to))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	if err := r.exists(ctx, orderPK); err != nil {
		return err
	}
	return domain.ErrStageConflict
}

// RequestRefund stores a refund request. Repeat requests before a grant add
// another Refund row; a granted refund rejects further requests.
func (r *postgresRepo) RequestRefund(ctx context.Context, orderPK, reason, email string) (*domain.Refund, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var publicID string
	err = tx.QueryRow(ctx, `
UPDATE orders SET refund_status = 'requested', updated_at = now()
WHERE id = $1 AND ordered AND refund_status <> 'granted'
RETURNING order_id
`, orderPK).Scan(&publicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := r.exists(ctx, orderPK); err != nil {
				return nil, err
			}
			return nil, domain.ErrInvalidTransition
		}
		return nil, err
	}

	refund := domain.Refund{OrderPK: orderPK, OrderID: publicID, Reason: reason, Email: email}
	err = tx.QueryRow(ctx, `
INSERT INTO refunds (order_id, reason, email)
VALUES ($1, $2, $3)
RETURNING id::text, refund_accepted, created_at
`, orderPK, reason, email).Scan(&refund.ID, &refund.Accepted, &refund.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *postgresRepo) GrantRefund(ctx context.Context, orderPK string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
UPDATE orders SET refund_status = 'granted', updated_at = now()
WHERE id = $1 AND refund_status = 'requested'
`, orderPK)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if err := r.exists(ctx, orderPK); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}
	if _, err := tx.Exec(ctx, `UPDATE refunds SET refund_accepted = true WHERE order_id = $1`, orderPK); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) exists(ctx context.Context, orderPK string) error {
	var found bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1 AND ordered)`, orderPK).Scan(&found); err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) fetchOrder(ctx context.Context, q querier, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	lines, err := fetchLines(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

// lockOrCreateActive returns the user's cart, creating it when absent. The
// partial unique index on orders(user_id) WHERE NOT ordered makes concurrent
// first adds converge on one row.
func lockOrCreateActive(ctx context.Context, tx pgx.Tx, userID string) (string, error) {
	if _, err := tx.Exec(ctx, `
INSERT INTO orders (user_id, ordered_date)
VALUES ($1, now())
ON CONFLICT (user_id) WHERE NOT ordered DO NOTHING
`, userID); err != nil {
		return "", err
	}
	return lockActive(ctx, tx, userID)
}

func lockActive(ctx context.Context, tx pgx.Tx, userID string) (string, error) {
	var orderPK string
	err := tx.QueryRow(ctx, `
SELECT id::text FROM orders
WHERE user_id = $1 AND NOT ordered
FOR UPDATE
`, userID).Scan(&orderPK)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return orderPK, nil
}

func touch(ctx context.Context, tx pgx.Tx, orderPK string) error {
	_, err := tx.Exec(ctx, `UPDATE orders SET updated_at = now() WHERE id = $1`, orderPK)
	return err
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o           domain.Order
		stage       string
		refund      string
		addrID      *string
		addrType    *string
		street      *string
		apartment   *string
		country     *string
		zipcode     *string
		addrDefault *bool
		addrCreated *time.Time
		payID       *string
		chargeID    *string
		payAmount   decimal.NullDecimal
		payCurrency *string
		payCreated  *time.Time
		couponID    *string
		promo       *string
		couponAmt   decimal.NullDecimal
		couponDesc  *string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderID, &o.Ordered, &o.StartDate, &o.OrderedDate,
		&stage, &refund, &o.UpdatedAt,
		&addrID, &addrType, &street, &apartment, &country, &zipcode, &addrDefault, &addrCreated,
		&payID, &chargeID, &payAmount, &payCurrency, &payCreated,
		&couponID, &promo, &couponAmt, &couponDesc,
	)
	if err != nil {
		return nil, err
	}
	o.Stage = domain.Stage(stage)
	o.RefundStatus = domain.RefundStatus(refund)

	if addrID != nil {
		o.BillingAddressID = addrID
		o.BillingAddress = &domain.Address{
			ID:               *addrID,
			UserID:           o.UserID,
			AddressType:      deref(addrType),
			StreetAddress:    deref(street),
			ApartmentAddress: deref(apartment),
			Country:          deref(country),
			Zipcode:          deref(zipcode),
			Default:          addrDefault != nil && *addrDefault,
		}
		if addrCreated != nil {
			o.BillingAddress.CreatedAt = *addrCreated
		}
	}
	if payID != nil {
		o.Payment = &domain.Payment{
			ID:       *payID,
			ChargeID: deref(chargeID),
			UserID:   o.UserID,
			Amount:   payAmount.Decimal,
			Currency: deref(payCurrency),
		}
		if payCreated != nil {
			o.Payment.CreatedAt = *payCreated
		}
	}
	if couponID != nil {
		o.Coupon = &domain.DiscountCode{
			ID:          *couponID,
			PromoCode:   deref(promo),
			Amount:      couponAmt.Decimal,
			Description: deref(couponDesc),
		}
	}
	return &o, nil
}

func fetchLines(ctx context.Context, q querier, orderPK string) ([]domain.OrderItem, error) {
	const linesQuery = `
SELECT oi.id::text, oi.order_id::text, oi.user_id, oi.quantity, oi.ordered, oi.created_at,
       i.id::text, i.title, i.slug, i.price, i.discount_price, COALESCE(i.label, ''), COALESCE(i.label_name, ''),
       i.description, i.list_on_frontpage, i.created_at
FROM order_items oi
JOIN items i ON i.id = oi.item_id
WHERE oi.order_id = $1
ORDER BY oi.created_at ASC, oi.id ASC
`
	rows, err := q.Query(ctx, linesQuery, orderPK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []domain.OrderItem{}
	for rows.Next() {
		var line domain.OrderItem
		var discount decimal.NullDecimal
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.UserID, &line.Quantity, &line.Ordered, &line.CreatedAt,
			&line.Item.ID, &line.Item.Title, &line.Item.Slug, &line.Item.Price, &discount,
			&line.Item.Label, &line.Item.LabelName, &line.Item.Description, &line.Item.ListOnFrontpage, &line.Item.CreatedAt,
		); err != nil {
			return nil, err
		}
		if discount.Valid {
			d := discount.Decimal
			line.Item.DiscountPrice = &d
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
