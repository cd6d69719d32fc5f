package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/payment"
	orderrepo "storefront/internal/repository/order"
	addresssvc "storefront/internal/service/address"
)

type stubOrders struct {
	active      *domain.Order
	activeErr   error
	attachErr   error
	attached    domain.Address
	couponID    string
	setErr      error
	removeErr   error
	placeErrs   []error
	placeCalls  int
	lastPlace   orderrepo.PlaceInput
	savedAddrID string
}

func (s *stubOrders) GetActive(_ context.Context, _ string) (*domain.Order, error) {
	return s.active, s.activeErr
}

func (s *stubOrders) AttachNewAddress(_ context.Context, _ string, addr domain.Address) (*domain.Address, error) {
	if s.attachErr != nil {
		return nil, s.attachErr
	}
	s.attached = addr
	addr.ID = "addr-1"
	return &addr, nil
}

func (s *stubOrders) AttachAddress(_ context.Context, _, addressID string) error {
	s.savedAddrID = addressID
	return s.attachErr
}

func (s *stubOrders) SetCoupon(_ context.Context, _, couponID string) error {
	s.couponID = couponID
	return s.setErr
}

func (s *stubOrders) RemoveCoupon(_ context.Context, _ string) error {
	return s.removeErr
}

func (s *stubOrders) Place(_ context.Context, in orderrepo.PlaceInput) (*domain.Order, error) {
	s.placeCalls++
	s.lastPlace = in
	if len(s.placeErrs) > 0 {
		err := s.placeErrs[0]
		s.placeErrs = s.placeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	placed := *s.active
	placed.Ordered = true
	placed.OrderID = "abcdefghij0123456789"
	placed.Stage = domain.StageInTransit
	return &placed, nil
}

type stubCoupons map[string]domain.DiscountCode

func (s stubCoupons) GetByCode(_ context.Context, code string) (*domain.DiscountCode, error) {
	c, ok := s[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

type stubZipcodes map[string]bool

func (s stubZipcodes) IsServiceable(_ context.Context, zip string) (bool, error) {
	return s[zip], nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc     *Service
	orders  *stubOrders
	gateway *payment.SandboxGateway
	pub     *capturePublisher
	metrics *metrics.Metrics
}

func cartOrder() *domain.Order {
	addrID := "addr-1"
	return &domain.Order{
		ID:               "order-pk",
		UserID:           "u1",
		BillingAddressID: &addrID,
		Stage:            domain.StageCart,
		Lines: []domain.OrderItem{{
			Item:     domain.Item{ID: "i1", Slug: "mug", Price: decimal.RequireFromString("10.00")},
			Quantity: 2,
		}},
		Coupon: &domain.DiscountCode{ID: "c1", PromoCode: "SAVE5", Amount: decimal.NewFromInt(5)},
	}
}

func newFixture(order *domain.Order) *fixture {
	f := &fixture{
		orders:  &stubOrders{active: order},
		gateway: payment.NewSandboxGateway(),
		pub:     &capturePublisher{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	if order == nil {
		f.orders.activeErr = domain.ErrNotFound
	}
	f.svc = New(Deps{
		Orders:    f.orders,
		Coupons:   stubCoupons{"SAVE5": {ID: "c1", PromoCode: "SAVE5", Amount: decimal.NewFromInt(5)}},
		Zipcodes:  stubZipcodes{"560001": true},
		Gateway:   f.gateway,
		Publisher: f.pub,
		Metrics:   f.metrics,
	}, Options{Currency: "inr", PlacementRetries: 2, RetryBackoff: time.Millisecond})
	return f
}

func TestPay_Success(t *testing.T) {
	f := newFixture(cartOrder())

	placed, err := f.svc.Pay(context.Background(), "u1", PayInput{SourceToken: "tok_visa", PaymentOption: OptionStripe})
	require.NoError(t, err)
	assert.True(t, placed.Ordered)
	assert.Equal(t, domain.StageInTransit, placed.Stage)

	assert.Equal(t, 1, f.gateway.Calls())
	assert.True(t, decimal.NewFromInt(15).Equal(f.orders.lastPlace.Amount))
	assert.Equal(t, "inr", f.orders.lastPlace.Currency)
	assert.NotEmpty(t, f.orders.lastPlace.ChargeID)
	assert.Equal(t, []string{events.TypeOrderPlaced}, f.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Charges.WithLabelValues("succeeded")))
}

func TestPay_RejectedBeforeGateway(t *testing.T) {
	noAddress := cartOrder()
	noAddress.BillingAddressID = nil

	empty := cartOrder()
	empty.Lines = nil

	freebie := cartOrder()
	freebie.Coupon.Amount = decimal.NewFromInt(25)

	cases := []struct {
		name  string
		order *domain.Order
		in    PayInput
		want  string
	}{
		{name: "no address", order: noAddress, in: PayInput{SourceToken: "tok_visa"}, want: MsgNoAddress},
		{name: "empty cart", order: empty, in: PayInput{SourceToken: "tok_visa"}, want: MsgEmptyCart},
		{name: "non positive total", order: freebie, in: PayInput{SourceToken: "tok_visa"}, want: MsgNothingToPay},
		{name: "missing token", order: cartOrder(), in: PayInput{}, want: MsgFailed},
		{name: "paypal", order: cartOrder(), in: PayInput{SourceToken: "tok_visa", PaymentOption: OptionPayPal}, want: MsgFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(tc.order)
			_, err := f.svc.Pay(context.Background(), "u1", tc.in)
			require.True(t, domain.IsValidation(err), "got %v", err)
			msg, _ := domain.UserMessage(err)
			assert.Equal(t, tc.want, msg)
			assert.Zero(t, f.gateway.Calls())
			assert.Zero(t, f.orders.placeCalls)
		})
	}
}

func TestPay_NoActiveOrder(t *testing.T) {
	f := newFixture(nil)
	_, err := f.svc.Pay(context.Background(), "u1", PayInput{SourceToken: "tok_visa"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.gateway.Calls())
}

func TestPay_GatewayFailureLeavesCart(t *testing.T) {
	cases := []struct {
		token    string
		category payment.Category
		message  string
	}{
		{payment.TokenDeclined, payment.CardDeclined, "Your card was declined."},
		{payment.TokenRateLimited, payment.RateLimited, "Rate limit error"},
		{payment.TokenInvalid, payment.InvalidRequest, "Invalid request error"},
		{payment.TokenUnauthenticated, payment.AuthenticationFailed, "Not authenticated"},
		{payment.TokenError, payment.Unknown, "Something went wrong"},
	}
	for _, tc := range cases {
		t.Run(string(tc.category), func(t *testing.T) {
			f := newFixture(cartOrder())
			_, err := f.svc.Pay(context.Background(), "u1", PayInput{SourceToken: tc.token})

			var gerr *payment.GatewayError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tc.category, gerr.Category)
			assert.Equal(t, tc.message, gerr.UserMessage())
			assert.Zero(t, f.orders.placeCalls)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Charges.WithLabelValues(string(tc.category))))

			if tc.category == payment.Unknown {
				assert.Equal(t, []string{events.TypeGatewayUnknown}, f.pub.types())
			} else {
				assert.Empty(t, f.pub.types())
			}
		})
	}
}

func TestPay_PlacementRetriedThenSucceeds(t *testing.T) {
	f := newFixture(cartOrder())
	f.orders.placeErrs = []error{errors.New("conn reset"), nil}

	_, err := f.svc.Pay(context.Background(), "u1", PayInput{SourceToken: "tok_visa"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.orders.placeCalls)
}

func TestPay_PersistentPlacementFailureIsReconciliation(t *testing.T) {
	f := newFixture(cartOrder())
	boom := errors.New("db down")
	f.orders.placeErrs = []error{boom, boom, boom}

	_, err := f.svc.Pay(context.Background(), "u1", PayInput{SourceToken: "tok_visa"})

	var rec *ReconciliationError
	require.ErrorAs(t, err, &rec)
	assert.Equal(t, "order-pk", rec.OrderPK)
	assert.NotEmpty(t, rec.ChargeID)
	assert.ErrorIs(t, err, boom)

	var gerr *payment.GatewayError
	assert.False(t, errors.As(err, &gerr))
	assert.Equal(t, 3, f.orders.placeCalls)
	assert.Equal(t, []string{events.TypeReconciliationRequired}, f.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reconciliations))

	msg, ok := domain.UserMessage(err)
	require.True(t, ok)
	assert.Equal(t, MsgReconciliation, msg)
}

func TestPay_CartChangedDuringChargeIsReconciliation(t *testing.T) {
	f := newFixture(cartOrder())
	f.orders.placeErrs = []error{fmt.Errorf("%w: charged 1500, cart totals 2500", orderrepo.ErrTotalChanged)}

	_, err := f.svc.Pay(context.Background(), "u1", PayInput{SourceToken: "tok_visa"})

	var rec *ReconciliationError
	require.ErrorAs(t, err, &rec)
	assert.ErrorIs(t, err, orderrepo.ErrTotalChanged)
	assert.Equal(t, 1, f.orders.placeCalls)
	assert.Equal(t, int64(1500), f.orders.lastPlace.AmountMinor)
	assert.Equal(t, []string{events.TypeReconciliationRequired}, f.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reconciliations))
}

func TestPay_RetryReusesCharge(t *testing.T) {
	f := newFixture(cartOrder())
	f.orders.placeErrs = []error{domain.ErrNotFound}

	_, err := f.svc.Pay(context.Background(), "u1", PayInput{SourceToken: "tok_visa"})
	var rec *ReconciliationError
	require.ErrorAs(t, err, &rec)
	assert.Equal(t, 1, f.orders.placeCalls)
	first := rec.ChargeID

	_, err = f.svc.Pay(context.Background(), "u1", PayInput{SourceToken: "tok_visa"})
	require.NoError(t, err)
	assert.Equal(t, first, f.orders.lastPlace.ChargeID)
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "order-abc-1500", IdempotencyKey("abc", 1500))
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(cartOrder())

	_, err := f.svc.ApplyCoupon(context.Background(), "u1", "save5")
	require.ErrorIs(t, err, domain.ErrNotFound)
	msg, _ := domain.UserMessage(err)
	assert.Equal(t, MsgCouponInvalid, msg)
	assert.Empty(t, f.orders.couponID)

	_, err = f.svc.ApplyCoupon(context.Background(), "u1", " SAVE5 ")
	require.NoError(t, err)
	assert.Equal(t, "c1", f.orders.couponID)
}

func TestRemoveCoupon_NoneAttached(t *testing.T) {
	f := newFixture(cartOrder())
	f.orders.removeErr = domain.ErrNotFound
	err := f.svc.RemoveCoupon(context.Background(), "u1")
	msg, _ := domain.UserMessage(err)
	assert.Equal(t, MsgNoCoupon, msg)
}

func TestAttachBillingAddress(t *testing.T) {
	f := newFixture(cartOrder())

	addr, err := f.svc.AttachBillingAddress(context.Background(), "u1", addresssvc.Input{StreetAddress: "1 Main", Country: "in", Zipcode: "560001"})
	require.NoError(t, err)
	assert.Equal(t, "addr-1", addr.ID)
	assert.Equal(t, "IN", f.orders.attached.Country)

	_, err = f.svc.AttachBillingAddress(context.Background(), "u1", addresssvc.Input{})
	assert.True(t, domain.IsValidation(err))

	f.orders.attachErr = domain.ErrNotFound
	_, err = f.svc.AttachBillingAddress(context.Background(), "u1", addresssvc.Input{StreetAddress: "1 Main", Country: "IN", Zipcode: "560001"})
	msg, _ := domain.UserMessage(err)
	assert.Equal(t, MsgNoActiveOrder, msg)
}

func TestCheckZipcode(t *testing.T) {
	f := newFixture(cartOrder())
	ok, err := f.svc.CheckZipcode(context.Background(), " 560001 ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CheckZipcode(context.Background(), "999999")
	require.NoError(t, err)
	assert.False(t, ok)
}
