package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/pos-checkout/internal/domain/auth"
	"github.com/xenking/pos-checkout/internal/domain/cart"
	"github.com/xenking/pos-checkout/internal/domain/pricing"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// UnavailableError wraps a failure of an external data source. Callers must
// not price anything when they see it.
type UnavailableError struct {
	Source string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// View is a read-only picture of a session, priced at the time it was taken.
type View struct {
	ID            string
	State         State
	Lines         []cart.Line
	Promotion     *promotion.Promotion
	BOGOProductID string
	Quote         pricing.Result
	Snapshot      *Snapshot
	Method        Method
}

// StockedProduct is a catalog entry with the stock left after the session's
// cart and BOGO reservation.
type StockedProduct struct {
	product.Product
	Available int
}

// Options configures a Service. Zero fields get defaults.
type Options struct {
	// Resolver defaults to DefaultTaxRate pricing when nil.
	Resolver       *pricing.Resolver
	Publisher      Publisher
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	Now            func() time.Time
	NewID          func() string
}

type sessionEntry struct {
	mu sync.Mutex
	s  *Session
}

// Service hosts checkout sessions for the terminals and commits completed
// payments.
type Service struct {
	products   product.Repository
	promotions promotion.Repository
	txs        Repository
	publisher  Publisher
	resolver   pricing.Resolver
	assembler  *Assembler
	now        func() time.Time
	newID      func() string
	tracer     trace.Tracer

	transactions       metric.Int64Counter
	capacityRejections metric.Int64Counter
	abandoned          metric.Int64Counter

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewService creates a checkout Service.
func NewService(
	products product.Repository,
	promotions promotion.Repository,
	txs Repository,
	opts Options,
) (*Service, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.Resolver == nil {
		r := pricing.NewResolver(pricing.DefaultTaxRate)
		opts.Resolver = &r
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}

	s := &Service{
		products:   products,
		promotions: promotions,
		txs:        txs,
		publisher:  opts.Publisher,
		resolver:   *opts.Resolver,
		assembler:  &Assembler{newID: opts.NewID, now: opts.Now},
		now:        opts.Now,
		newID:      opts.NewID,
		tracer:     opts.TracerProvider.Tracer("pos.checkout"),
		sessions:   map[string]*sessionEntry{},
	}

	meter := opts.MeterProvider.Meter("pos.checkout")
	var err error
	if s.transactions, err = meter.Int64Counter("pos.checkout.transactions",
		metric.WithDescription("Completed checkout transactions"),
	); err != nil {
		return nil, errors.Wrap(err, "transactions counter")
	}
	if s.capacityRejections, err = meter.Int64Counter("pos.checkout.capacity_rejections",
		metric.WithDescription("Cart edits rejected for exceeding available stock"),
	); err != nil {
		return nil, errors.Wrap(err, "capacity rejections counter")
	}
	if s.abandoned, err = meter.Int64Counter("pos.checkout.abandoned",
		metric.WithDescription("Checkouts cancelled before payment"),
	); err != nil {
		return nil, errors.Wrap(err, "abandoned counter")
	}
	return s, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishCompleted(context.Context, Transaction) error { return nil }

func (s *Service) entry(id string) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// with runs fn holding the session's lock.
func (s *Service) with(id string, fn func(sess *Session) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.s)
}

func (s *Service) view(sess *Session) View {
	v := View{
		ID:        sess.ID,
		State:     sess.State(),
		Lines:     sess.cart.Lines(),
		Promotion: sess.Promotion(),
		Quote:     sess.Quote(s.now(), s.resolver),
		Method:    sess.Method(),
	}
	v.BOGOProductID = v.Quote.BOGOProductID
	if snap := sess.Snapshot(); snap != nil {
		cp := *snap
		v.Snapshot = &cp
	}
	return v
}

func (s *Service) product(ctx context.Context, id string) (product.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return product.Product{}, err
		}
		return product.Product{}, &UnavailableError{Source: "catalog", Err: err}
	}
	return *p, nil
}

func (s *Service) listPromotions(ctx context.Context) ([]promotion.Promotion, error) {
	all, err := s.promotions.List(ctx)
	if err != nil {
		return nil, &UnavailableError{Source: "promotions", Err: err}
	}
	return all, nil
}

// OpenSession starts an idle checkout for a terminal.
func (s *Service) OpenSession(ctx context.Context) View {
	sess := NewSession(s.newID())
	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{s: sess}
	s.mu.Unlock()

	zctx.From(ctx).Debug("Session opened", zap.String("session_id", sess.ID))
	return s.view(sess)
}

// CloseSession discards a session and its cart.
func (s *Service) CloseSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Session returns the current view of a session.
func (s *Service) Session(_ context.Context, id string) (View, error) {
	var v View
	err := s.with(id, func(sess *Session) error {
		v = s.view(sess)
		return nil
	})
	return v, err
}

// Products lists the catalog filtered by f with stock adjusted for the
// session's cart.
func (s *Service) Products(ctx context.Context, id string, f product.Filter) ([]StockedProduct, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, &UnavailableError{Source: "catalog", Err: err}
	}
	found := product.Search(all, f)

	out := make([]StockedProduct, 0, len(found))
	err = s.with(id, func(sess *Session) error {
		for _, p := range found {
			out = append(out, StockedProduct{Product: p, Available: sess.Available(p)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) edit(ctx context.Context, id string, fn func(sess *Session) error) (View, error) {
	var v View
	err := s.with(id, func(sess *Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		v = s.view(sess)
		return nil
	})
	var capErr *cart.CapacityError
	if errors.As(err, &capErr) {
		s.capacityRejections.Add(ctx, 1)
		zctx.From(ctx).Info("Cart edit rejected",
			zap.String("session_id", id),
			zap.String("product_id", capErr.ProductID),
			zap.Int("requested", capErr.Requested),
			zap.Int("available", capErr.Available),
		)
	}
	return v, err
}

// AddItem adds one unit of productID to the session's cart.
func (s *Service) AddItem(ctx context.Context, id, productID string) (View, error) {
	p, err := s.product(ctx, productID)
	if err != nil {
		return View{}, err
	}
	return s.edit(ctx, id, func(sess *Session) error {
		return sess.AddItem(p)
	})
}

// SetQuantity sets the quantity of productID; zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, id, productID string, qty int) (View, error) {
	p, err := s.product(ctx, productID)
	if err != nil {
		return View{}, err
	}
	return s.edit(ctx, id, func(sess *Session) error {
		return sess.SetQuantity(p, qty)
	})
}

// RemoveItem drops productID from the session's cart.
func (s *Service) RemoveItem(ctx context.Context, id, productID string) (View, error) {
	return s.edit(ctx, id, func(sess *Session) error {
		return sess.RemoveItem(productID)
	})
}

// EligiblePromotions returns the promotions redeemable against the session's
// cart right now.
func (s *Service) EligiblePromotions(ctx context.Context, id string) ([]promotion.Promotion, error) {
	all, err := s.listPromotions(ctx)
	if err != nil {
		return nil, err
	}
	var out []promotion.Promotion
	err = s.with(id, func(sess *Session) error {
		out = promotion.Eligible(all, s.now(), sess.cart.ProductIDs())
		return nil
	})
	return out, err
}

// SelectPromotion applies promotionID to the session.
func (s *Service) SelectPromotion(ctx context.Context, id, promotionID, bogoProductID string) (View, error) {
	all, err := s.listPromotions(ctx)
	if err != nil {
		return View{}, err
	}
	promo, ok := promotion.Find(all, promotionID)
	if !ok {
		return View{}, promotion.ErrNotFound
	}
	return s.edit(ctx, id, func(sess *Session) error {
		return sess.SelectPromotion(promo, bogoProductID, s.now())
	})
}

// ClearPromotion removes the session's promotion selection.
func (s *Service) ClearPromotion(ctx context.Context, id string) (View, error) {
	return s.edit(ctx, id, func(sess *Session) error {
		return sess.ClearPromotion()
	})
}

// Checkout freezes the session's order for payment.
func (s *Service) Checkout(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	err := s.with(id, func(sess *Session) error {
		var err error
		snap, err = sess.Freeze(s.now(), s.resolver)
		return err
	})
	if err == nil {
		zctx.From(ctx).Info("Checkout frozen",
			zap.String("session_id", id),
			zap.String("total", snap.Total.StringFixed(2)),
			zap.String("promotion_id", snap.PromotionID()),
		)
	}
	return snap, err
}

// BeginPayment moves the session to payment with the given tender kind.
func (s *Service) BeginPayment(ctx context.Context, id string, m Method) (View, error) {
	return s.edit(ctx, id, func(sess *Session) error {
		return sess.BeginPayment(m)
	})
}

// CancelPayment abandons the checkout and returns to cart building.
func (s *Service) CancelPayment(ctx context.Context, id string) (View, error) {
	v, err := s.edit(ctx, id, func(sess *Session) error {
		return sess.Cancel()
	})
	if err == nil {
		s.abandoned.Add(ctx, 1)
		zctx.From(ctx).Info("Checkout abandoned", zap.String("session_id", id))
	}
	return v, err
}

// ConfirmPayment validates the tender, stores the transaction and starts a
// fresh checkout on the session. A failed publish is logged but does not fail
// the payment.
func (s *Service) ConfirmPayment(ctx context.Context, id string, t Tender) (Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.ConfirmPayment",
		trace.WithAttributes(attribute.String("pos.session_id", id)),
	)
	defer span.End()

	lg := zctx.From(ctx)
	var tx Transaction
	err := s.with(id, func(sess *Session) error {
		var err error
		if tx, err = sess.Settle(t, s.assembler, auth.Cashier(ctx)); err != nil {
			return err
		}
		if err := s.txs.Create(ctx, &tx); err != nil {
			return &UnavailableError{Source: "transaction store", Err: err}
		}
		if err := sess.Complete(); err != nil {
			return err
		}
		sess.Reset()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Transaction{}, err
	}

	span.SetAttributes(
		attribute.String("pos.transaction_id", tx.ID),
		attribute.String("pos.method", string(tx.Method)),
	)
	s.transactions.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(tx.Method))))
	lg.Info("Payment completed",
		zap.String("session_id", id),
		zap.String("transaction_id", tx.ID),
		zap.String("method", string(tx.Method)),
		zap.String("total", tx.Total.StringFixed(2)),
	)

	if err := s.publisher.PublishCompleted(ctx, tx); err != nil {
		lg.Warn("Publish transaction event failed",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
	}
	return tx, nil
}

// History returns a filtered page of committed transactions.
func (s *Service) History(ctx context.Context, q HistoryQuery) (HistoryPage, error) {
	page, err := s.txs.List(ctx, q.Normalize())
	if err != nil {
		return HistoryPage{}, &UnavailableError{Source: "transaction store", Err: err}
	}
	return page, nil
}
