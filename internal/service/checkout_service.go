package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxHistory caps one page of a session's checkout history.
const maxHistory = 50

// CheckoutServiceImpl implements ports.CheckoutService. One run walks
// Idle → Processing → Confirmed → FetchingChainData → CreatingAttestation → Done.
// Anything failing before the payment is confirmed ends in Error with the cart intact.
// After confirmation the paid lines are taken out of the cart, later failures are
// recorded as warnings, and the run still ends in Done.
type CheckoutServiceImpl struct {
	carts        ports.CartService
	prices       ports.PriceService
	payments     ports.PaymentService
	chain        ports.ChainDataService
	attestations ports.AttestationService
	checkouts    ports.CheckoutRepository
	guard        ports.CheckoutGuard
	metrics      ports.CheckoutMetrics
	merchant     string
	pointsPerUSD decimal.Decimal
	timeouts     CheckoutTimeouts
	log          zerolog.Logger
	now          func() time.Time
}

// CheckoutDeps groups the collaborators of a CheckoutServiceImpl.
type CheckoutDeps struct {
	Carts        ports.CartService
	Prices       ports.PriceService
	Payments     ports.PaymentService
	Chain        ports.ChainDataService
	Attestations ports.AttestationService
	Checkouts    ports.CheckoutRepository
	Guard        ports.CheckoutGuard
	Metrics      ports.CheckoutMetrics
}

// CheckoutTimeouts bounds a run. Run covers everything from taking the guard to the
// confirmed payment, Step bounds each store, chain and attestation call, and GuardTTL
// must exceed Run plus Step so the paid lines leave the cart while the guard is held.
type CheckoutTimeouts struct {
	GuardTTL time.Duration
	Run      time.Duration
	Step     time.Duration
}

func (t CheckoutTimeouts) withDefaults() CheckoutTimeouts {
	if t.Step <= 0 {
		t.Step = 20 * time.Second
	}
	if t.Run <= 0 {
		t.Run = 4 * time.Minute
	}
	if t.GuardTTL <= 0 {
		t.GuardTTL = 5 * time.Minute
	}
	return t
}

// NewCheckoutService creates a new CheckoutServiceImpl.
func NewCheckoutService(
	deps CheckoutDeps,
	merchant string,
	pointsPerUSD decimal.Decimal,
	timeouts CheckoutTimeouts,
	log zerolog.Logger,
) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		carts:        deps.Carts,
		prices:       deps.Prices,
		payments:     deps.Payments,
		chain:        deps.Chain,
		attestations: deps.Attestations,
		checkouts:    deps.Checkouts,
		guard:        deps.Guard,
		metrics:      metricsOrNoop(deps.Metrics),
		merchant:     merchant,
		pointsPerUSD: pointsPerUSD,
		timeouts:     timeouts.withDefaults(),
		log:          log,
		now:          time.Now,
	}
}

// Quote prices the session's cart at the current oracle price. Nothing is locked:
// the amount charged at checkout is re-read.
func (s *CheckoutServiceImpl) Quote(ctx context.Context, sessionID uuid.UUID) (*ports.CheckoutQuote, error) {
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, apperror.ErrEmptyCart()
	}

	usd := cart.Total()
	price, err := s.prices.CurrentEthUsdPrice(ctx)
	if err != nil {
		return nil, err
	}

	return &ports.CheckoutQuote{
		Items:       cart.Lines(),
		UsdTotal:    usd,
		EthTotal:    usdToEthAt(usd, price),
		EthUsdPrice: price,
		Points:      domain.LoyaltyPoints(usd, s.pointsPerUSD),
		QuotedAt:    s.now(),
	}, nil
}

// Checkout runs the pipeline for the session's cart. A second call while one is
// running for the same session fails with CHK_001 and has no effect.
func (s *CheckoutServiceImpl) Checkout(ctx context.Context, sessionID uuid.UUID) (*domain.CheckoutSession, error) {
	token, acquired, err := s.guard.Acquire(ctx, sessionID, s.timeouts.GuardTTL)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("acquire checkout guard: %w", err))
	}
	if !acquired {
		return nil, apperror.ErrCheckoutInProgress()
	}
	defer s.release(ctx, sessionID, token)

	// Reaching a confirmed payment shares one deadline, which ends before the guard expires.
	deadline := time.Now().Add(s.timeouts.Run)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := s.now()
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, apperror.ErrEmptyCart()
	}
	lines := cart.Lines()

	session := domain.NewCheckoutSession(sessionID, s.merchant, start)
	session.Items = cart.ItemNames()
	session.UsdTotal = cart.Total()
	if err := s.checkouts.Create(ctx, session); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create checkout: %w", err))
	}
	log := s.log.With().Str("checkout_id", session.ID.String()).Str("session_id", sessionID.String()).Logger()

	s.advance(ctx, log, session, domain.CheckoutStateProcessing)

	buyer, err := s.payments.BuyerAddress()
	if err != nil {
		return nil, s.fail(ctx, log, session, start, err)
	}
	price, err := s.prices.CurrentEthUsdPrice(ctx)
	if err != nil {
		return nil, s.fail(ctx, log, session, start, err)
	}

	intent := domain.PurchaseIntent{
		Buyer:    buyer,
		Merchant: s.merchant,
		UsdTotal: session.UsdTotal,
		EthTotal: usdToEthAt(session.UsdTotal, price),
		Items:    session.Items,
	}
	session.Buyer = buyer
	session.EthTotal = intent.EthTotal
	session.EthUsdPrice = price

	// Once the wallet is asked to sign, the run is no longer cancellable by the caller.
	runCtx, cancelRun := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancelRun()

	paid, err := s.payments.Pay(runCtx, intent)
	if err != nil {
		return nil, s.fail(runCtx, log, session, start, err)
	}
	session.TxHash = paid.TxHash
	s.advance(runCtx, log, session, domain.CheckoutStateConfirmed)
	log.Info().Str("tx_hash", paid.TxHash).Uint64("block", paid.BlockNumber).Msg("Payment confirmed")

	// The paid lines leave the cart before any slow post-payment call, so no later
	// run can charge them again. Lines added meanwhile stay.
	settleCtx, cancelSettle := s.stepContext(runCtx)
	err = s.carts.Settle(settleCtx, sessionID, lines)
	cancelSettle()
	if err != nil {
		s.warn(log, session, "cart", fmt.Errorf("paid items not removed from cart: %w", err))
	}

	s.advance(runCtx, log, session, domain.CheckoutStateFetchingChainData)
	fetchCtx, cancelFetch := s.stepContext(runCtx)
	receipt, err := s.chain.Fetch(fetchCtx, paid.TxHash)
	cancelFetch()
	if err != nil {
		// The attestation records confirmed on-chain data, so without it there is nothing to attest.
		s.warn(log, session, "chain_data", fmt.Errorf("on-chain data unavailable, attestation skipped: %w", err))
	} else {
		session.Receipt = receipt
		s.advance(runCtx, log, session, domain.CheckoutStateCreatingAttestation)

		data := intent.Attestation(paid.TxHash, s.now(), s.pointsPerUSD)
		attestCtx, cancelAttest := s.stepContext(runCtx)
		id, err := s.attestations.Create(attestCtx, data)
		cancelAttest()
		if err != nil {
			s.warn(log, session, "attestation", fmt.Errorf("loyalty attestation not recorded: %w", err))
		} else {
			session.AttestationID = id
		}
	}

	s.advance(runCtx, log, session, domain.CheckoutStateDone)
	s.metrics.CheckoutFinished(domain.CheckoutStateDone, "", s.now().Sub(start))

	log.Info().
		Str("tx_hash", session.TxHash).
		Str("attestation_id", session.AttestationID).
		Int("warnings", len(session.Warnings)).
		Msg("Checkout completed")

	return session, nil
}

// GetCheckout returns a checkout run owned by the session.
func (s *CheckoutServiceImpl) GetCheckout(ctx context.Context, sessionID, checkoutID uuid.UUID) (*domain.CheckoutSession, error) {
	session, err := s.checkouts.GetByID(ctx, checkoutID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get checkout: %w", err))
	}
	if session == nil || session.SessionID != sessionID {
		return nil, apperror.ErrCheckoutNotFound()
	}
	return session, nil
}

// ListCheckouts returns the session's most recent runs, newest first.
// limit is clamped to [1, 50].
func (s *CheckoutServiceImpl) ListCheckouts(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.CheckoutSession, error) {
	if limit < 1 || limit > maxHistory {
		limit = maxHistory
	}
	sessions, err := s.checkouts.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list checkouts: %w", err))
	}
	if sessions == nil {
		sessions = []domain.CheckoutSession{}
	}
	return sessions, nil
}

func (s *CheckoutServiceImpl) advance(ctx context.Context, log zerolog.Logger, session *domain.CheckoutSession, next domain.CheckoutState) {
	from := session.State
	if !session.Advance(next, s.now()) {
		log.Error().Str("from", string(from)).Str("to", string(next)).Msg("Illegal checkout transition")
		return
	}
	s.persist(ctx, log, session)
	log.Debug().Str("from", string(from)).Str("to", string(next)).Msg("Checkout state changed")
}

func (s *CheckoutServiceImpl) fail(ctx context.Context, log zerolog.Logger, session *domain.CheckoutSession, start time.Time, err error) error {
	code, msg := "SYS_001", "Internal server error"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code, msg = appErr.Code, appErr.Message
	} else {
		err = apperror.InternalError(err)
	}

	session.Fail(code, msg, s.now())
	s.persist(ctx, log, session)
	s.metrics.CheckoutFinished(domain.CheckoutStateError, code, s.now().Sub(start))

	log.Warn().Err(err).Str("error_code", code).Msg("Checkout failed, cart kept")
	return err
}

// warn records a post-payment problem. The payment stands and the run continues.
func (s *CheckoutServiceImpl) warn(log zerolog.Logger, session *domain.CheckoutSession, step string, err error) {
	session.Warn(err.Error())
	s.metrics.PostPaymentWarning(step)
	log.Warn().Err(err).Str("step", step).Str("tx_hash", session.TxHash).Msg("Post-payment step failed")
}

// stepContext bounds one call by the step timeout. It ignores the parent's
// cancellation and deadline, so post-payment work is not starved by a slow payment.
func (s *CheckoutServiceImpl) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeouts.Step)
}

func (s *CheckoutServiceImpl) release(ctx context.Context, sessionID uuid.UUID, token string) {
	ctx, cancel := s.stepContext(ctx)
	defer cancel()

	released, err := s.guard.Release(ctx, sessionID, token)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to release checkout guard")
		return
	}
	if !released {
		s.log.Warn().Str("session_id", sessionID.String()).Msg("Checkout guard expired before the run finished")
	}
}

func (s *CheckoutServiceImpl) persist(ctx context.Context, log zerolog.Logger, session *domain.CheckoutSession) {
	ctx, cancel := s.stepContext(ctx)
	defer cancel()
	if err := s.checkouts.Update(ctx, session); err != nil {
		log.Error().Err(err).Str("state", string(session.State)).Msg("Failed to persist checkout")
	}
}
