package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	storeredis "clarity-storefront/internal/adapter/storage/redis"
	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/internal/core/ports/mocks"
	"clarity-storefront/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type checkoutTestDeps struct {
	svc          *CheckoutServiceImpl
	carts        *mocks.MockCartService
	prices       *mocks.MockPriceService
	payments     *mocks.MockPaymentService
	chain        *mocks.MockChainDataService
	attestations *mocks.MockAttestationService
	checkouts    *mocks.MockCheckoutRepository
	metrics      *mocks.MockCheckoutMetrics
	guard        ports.CheckoutGuard

	mu     sync.Mutex
	states []domain.CheckoutState
}

func setupCheckoutService(t *testing.T) *checkoutTestDeps {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return setupCheckoutServiceWithGuard(t, storeredis.NewCheckoutGuard(client))
}

func setupCheckoutServiceWithGuard(t *testing.T, guard ports.CheckoutGuard) *checkoutTestDeps {
	ctrl := gomock.NewController(t)
	d := &checkoutTestDeps{
		carts:        mocks.NewMockCartService(ctrl),
		prices:       mocks.NewMockPriceService(ctrl),
		payments:     mocks.NewMockPaymentService(ctrl),
		chain:        mocks.NewMockChainDataService(ctrl),
		attestations: mocks.NewMockAttestationService(ctrl),
		checkouts:    mocks.NewMockCheckoutRepository(ctrl),
		metrics:      mocks.NewMockCheckoutMetrics(ctrl),
		guard:        guard,
	}
	deps := CheckoutDeps{
		Carts:        d.carts,
		Prices:       d.prices,
		Payments:     d.payments,
		Chain:        d.chain,
		Attestations: d.attestations,
		Checkouts:    d.checkouts,
		Guard:        d.guard,
		Metrics:      d.metrics,
	}
	d.svc = NewCheckoutService(deps, testMerchantAddr.Hex(), decimal.NewFromInt(1), testCheckoutTimeouts, zerolog.Nop())
	return d
}

// recordStates accepts every persisted state change and keeps the sequence.
func (d *checkoutTestDeps) recordStates() {
	d.checkouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	d.checkouts.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s *domain.CheckoutSession) error {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.states = append(d.states, s.State)
			return nil
		}).AnyTimes()
}

func (d *checkoutTestDeps) recorded() []domain.CheckoutState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.CheckoutState(nil), d.states...)
}

func testCart() *domain.Cart {
	cart := domain.NewCart()
	cart.Add(domain.CartItem{ProductID: 1, Name: "Dyson Airwrap", UnitPrice: decimal.RequireFromString("1.99"), Quantity: 1})
	cart.Add(domain.CartItem{ProductID: 2, Name: "Dyson Supersonic 2", UnitPrice: decimal.RequireFromString("0.78"), Quantity: 1})
	return cart
}

var testCheckoutTimeouts = CheckoutTimeouts{GuardTTL: time.Minute, Run: 50 * time.Second, Step: 5 * time.Second}

const checkoutTxHash = "0xab12000000000000000000000000000000000000000000000000000000000000"

// expectPaid sets up a cart worth 2.77 USD priced at 2000 USD/ETH and a successful payment.
func (d *checkoutTestDeps) expectPaid(t *testing.T, sessionID uuid.UUID) {
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil)
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.NewFromInt(2000), nil)
	d.payments.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, intent domain.PurchaseIntent) (*ports.PaymentResult, error) {
			assert.Equal(t, "0.001385", intent.EthTotal.StringFixed(6))
			return &ports.PaymentResult{TxHash: checkoutTxHash, BlockNumber: 42}, nil
		})
}

func TestCheckoutService_Checkout_Success(t *testing.T) {
	d := setupCheckoutService(t)
	ctx := context.Background()
	sessionID := uuid.New()

	d.recordStates()
	d.expectPaid(t, sessionID)
	receipt := &domain.TransactionReceipt{Hash: checkoutTxHash, BlockNumber: 42, Status: domain.ReceiptStatusSuccess}
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).Return(receipt, nil)
	d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, data domain.AttestationData) (string, error) {
			assert.Equal(t, testBuyerAddr.Hex(), data.Buyer)
			assert.Equal(t, testMerchantAddr.Hex(), data.Merchant)
			assert.Equal(t, "0.001385", data.Eth)
			assert.Equal(t, "2.77", data.Usd)
			assert.Equal(t, "2.77", data.Points)
			assert.Equal(t, domain.TransactionTypePurchase, data.TransactionType)
			assert.Equal(t, checkoutTxHash, data.TxHash)
			assert.Equal(t, []string{"Dyson Airwrap", "Dyson Supersonic 2"}, data.Items)
			return "0xatt1", nil
		})
	d.carts.EXPECT().Settle(gomock.Any(), sessionID, testCart().Lines()).Return(nil).Times(1)
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	session, err := d.svc.Checkout(ctx, sessionID)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutStateDone, session.State)
	assert.Equal(t, checkoutTxHash, session.TxHash)
	assert.Equal(t, "0xatt1", session.AttestationID)
	assert.Equal(t, receipt, session.Receipt)
	assert.Equal(t, "2.77", session.UsdTotal.StringFixed(2))
	assert.Equal(t, "2000", session.EthUsdPrice.String())
	assert.Empty(t, session.Warnings)
	assert.NotNil(t, session.CompletedAt)
	assert.Equal(t, []domain.CheckoutState{
		domain.CheckoutStateProcessing,
		domain.CheckoutStateConfirmed,
		domain.CheckoutStateFetchingChainData,
		domain.CheckoutStateCreatingAttestation,
		domain.CheckoutStateDone,
	}, d.recorded())
}

func TestCheckoutService_Checkout_PaymentRejectedKeepsCart(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.recordStates()
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil)
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.NewFromInt(2000), nil)
	d.payments.EXPECT().Pay(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUserRejected())
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateError, "WALLET_002", gomock.Any())
	// no Settle expectation: the cart must survive a failed payment

	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "WALLET_002")
	assert.Equal(t, []domain.CheckoutState{
		domain.CheckoutStateProcessing,
		domain.CheckoutStateError,
	}, d.recorded())
}

func TestCheckoutService_Checkout_NoWallet(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.recordStates()
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil)
	d.payments.EXPECT().BuyerAddress().Return("", apperror.ErrNoWalletProvider())
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateError, "WALLET_001", gomock.Any())

	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "WALLET_001")
}

func TestCheckoutService_Checkout_PriceUnavailable(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.recordStates()
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil)
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.Zero, apperror.ErrOracleUnavailable(errors.New("rpc down")))
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateError, "PRICE_001", gomock.Any())

	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "PRICE_001")
}

func TestCheckoutService_Checkout_PlainErrorBecomesInternal(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.recordStates()
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil)
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.NewFromInt(2000), nil)
	d.payments.EXPECT().Pay(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateError, "SYS_001", gomock.Any())

	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "SYS_001")
}

func TestCheckoutService_Checkout_ChainDataFailureSkipsAttestation(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.recordStates()
	d.expectPaid(t, sessionID)
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).Return(nil, apperror.ErrChainUnavailable(errors.New("timeout")))
	d.metrics.EXPECT().PostPaymentWarning("chain_data")
	d.carts.EXPECT().Settle(gomock.Any(), sessionID, gomock.Any()).Return(nil)
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	session, err := d.svc.Checkout(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutStateDone, session.State)
	assert.Empty(t, session.AttestationID)
	assert.Nil(t, session.Receipt)
	require.Len(t, session.Warnings, 1)
	assert.Contains(t, session.Warnings[0], "attestation skipped")
	assert.NotContains(t, d.recorded(), domain.CheckoutStateCreatingAttestation)
}

func TestCheckoutService_Checkout_AttestationFailureIsWarning(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.recordStates()
	d.expectPaid(t, sessionID)
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).Return(&domain.TransactionReceipt{Hash: checkoutTxHash}, nil)
	d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).Return("", apperror.ErrAttestationCreateFailed(errors.New("503")))
	d.metrics.EXPECT().PostPaymentWarning("attestation")
	d.carts.EXPECT().Settle(gomock.Any(), sessionID, gomock.Any()).Return(nil)
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	session, err := d.svc.Checkout(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutStateDone, session.State)
	assert.Equal(t, checkoutTxHash, session.TxHash)
	assert.Empty(t, session.AttestationID)
	require.Len(t, session.Warnings, 1)
	assert.Contains(t, session.Warnings[0], "loyalty attestation not recorded")
}

func TestCheckoutService_Checkout_CartSettleFailureIsWarning(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.recordStates()
	d.expectPaid(t, sessionID)
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).Return(&domain.TransactionReceipt{Hash: checkoutTxHash}, nil)
	d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).Return("0xatt2", nil)
	d.carts.EXPECT().Settle(gomock.Any(), sessionID, gomock.Any()).Return(apperror.InternalError(errors.New("redis down")))
	d.metrics.EXPECT().PostPaymentWarning("cart")
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	session, err := d.svc.Checkout(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateDone, session.State)
	assert.Len(t, session.Warnings, 1)
}

func TestCheckoutService_Checkout_EmptyCart(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(domain.NewCart(), nil).Times(2)

	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "CART_002")

	// the guard was released, so a retry gets past it again
	_, err = d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "CART_002")
}

func TestCheckoutService_Checkout_CreateFails(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil)
	d.checkouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "SYS_001")
}

func TestCheckoutService_Checkout_GuardError(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockCheckoutGuard(ctrl)
	d := setupCheckoutServiceWithGuard(t, guard)
	sessionID := uuid.New()

	guard.EXPECT().Acquire(gomock.Any(), sessionID, time.Minute).Return("", false, errors.New("redis down"))

	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "SYS_001")
}

func TestCheckoutService_Checkout_ReleasesWithOwnToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockCheckoutGuard(ctrl)
	d := setupCheckoutServiceWithGuard(t, guard)
	sessionID := uuid.New()

	guard.EXPECT().Acquire(gomock.Any(), sessionID, time.Minute).Return("run-token", true, nil)
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(domain.NewCart(), nil)
	// a lapsed guard is only logged
	guard.EXPECT().Release(gomock.Any(), sessionID, "run-token").Return(false, nil)

	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "CART_002")
}

func TestCheckoutService_Checkout_ConcurrentCallsPayOnce(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})

	d.recordStates()
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil).Times(1)
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.NewFromInt(2000), nil)
	d.payments.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.PurchaseIntent) (*ports.PaymentResult, error) {
			close(entered)
			<-release
			return &ports.PaymentResult{TxHash: checkoutTxHash, BlockNumber: 42}, nil
		}).Times(1)
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).Return(&domain.TransactionReceipt{Hash: checkoutTxHash}, nil)
	d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).Return("0xatt3", nil)
	d.carts.EXPECT().Settle(gomock.Any(), sessionID, gomock.Any()).Return(nil).Times(1)
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	type result struct {
		session *domain.CheckoutSession
		err     error
	}
	first := make(chan result, 1)
	go func() {
		s, err := d.svc.Checkout(context.Background(), sessionID)
		first <- result{s, err}
	}()

	<-entered
	_, err := d.svc.Checkout(context.Background(), sessionID)
	requireCode(t, err, "CHK_001")
	close(release)

	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, domain.CheckoutStateDone, r.session.State)
}

func TestCheckoutService_Checkout_IgnoresCallerCancellationAfterSigning(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.recordStates()
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil)
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.NewFromInt(2000), nil)
	d.payments.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(
		func(runCtx context.Context, _ domain.PurchaseIntent) (*ports.PaymentResult, error) {
			cancel()
			assert.NoError(t, runCtx.Err())
			return &ports.PaymentResult{TxHash: checkoutTxHash, BlockNumber: 42}, nil
		})
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).DoAndReturn(
		func(runCtx context.Context, _ string) (*domain.TransactionReceipt, error) {
			assert.NoError(t, runCtx.Err())
			return &domain.TransactionReceipt{Hash: checkoutTxHash}, nil
		})
	d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).Return("0xatt4", nil)
	d.carts.EXPECT().Settle(gomock.Any(), sessionID, gomock.Any()).Return(nil)
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	session, err := d.svc.Checkout(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "0xatt4", session.AttestationID)
}

func TestCheckoutService_Quote(t *testing.T) {
	d := setupCheckoutService(t)
	ctx := context.Background()
	sessionID := uuid.New()

	d.carts.EXPECT().GetCart(ctx, sessionID).Return(testCart(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(ctx).Return(decimal.NewFromInt(2000), nil)

	quote, err := d.svc.Quote(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, quote.Items, 2)
	assert.Equal(t, "2.77", quote.UsdTotal.StringFixed(2))
	assert.Equal(t, "0.001385", quote.EthTotal.StringFixed(6))
	assert.Equal(t, "2.77", quote.Points.StringFixed(2))
}

func TestCheckoutService_Quote_EmptyCart(t *testing.T) {
	d := setupCheckoutService(t)
	ctx := context.Background()
	sessionID := uuid.New()

	d.carts.EXPECT().GetCart(ctx, sessionID).Return(domain.NewCart(), nil)

	_, err := d.svc.Quote(ctx, sessionID)
	requireCode(t, err, "CART_002")
}

func TestCheckoutService_GetCheckout(t *testing.T) {
	d := setupCheckoutService(t)
	ctx := context.Background()
	sessionID := uuid.New()
	stored := domain.NewCheckoutSession(sessionID, testMerchantAddr.Hex(), time.Now())

	t.Run("owned by session", func(t *testing.T) {
		d.checkouts.EXPECT().GetByID(ctx, stored.ID).Return(stored, nil)
		got, err := d.svc.GetCheckout(ctx, sessionID, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, got.ID)
	})

	t.Run("other session", func(t *testing.T) {
		d.checkouts.EXPECT().GetByID(ctx, stored.ID).Return(stored, nil)
		_, err := d.svc.GetCheckout(ctx, uuid.New(), stored.ID)
		requireCode(t, err, "CHK_002")
	})

	t.Run("missing", func(t *testing.T) {
		id := uuid.New()
		d.checkouts.EXPECT().GetByID(ctx, id).Return(nil, nil)
		_, err := d.svc.GetCheckout(ctx, sessionID, id)
		requireCode(t, err, "CHK_002")
	})

	t.Run("database error", func(t *testing.T) {
		id := uuid.New()
		d.checkouts.EXPECT().GetByID(ctx, id).Return(nil, errors.New("conn reset"))
		_, err := d.svc.GetCheckout(ctx, sessionID, id)
		requireCode(t, err, "SYS_001")
	})
}

func TestCheckoutService_ListCheckouts(t *testing.T) {
	d := setupCheckoutService(t)
	ctx := context.Background()
	sessionID := uuid.New()
	run := domain.NewCheckoutSession(sessionID, testMerchantAddr.Hex(), time.Now())

	t.Run("passes the limit through", func(t *testing.T) {
		d.checkouts.EXPECT().ListBySession(ctx, sessionID, 5).Return([]domain.CheckoutSession{*run}, nil)
		got, err := d.svc.ListCheckouts(ctx, sessionID, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, run.ID, got[0].ID)
	})

	t.Run("clamps out of range limits", func(t *testing.T) {
		d.checkouts.EXPECT().ListBySession(ctx, sessionID, 50).Return(nil, nil).Times(2)
		got, err := d.svc.ListCheckouts(ctx, sessionID, 0)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		_, err = d.svc.ListCheckouts(ctx, sessionID, 500)
		require.NoError(t, err)
	})

	t.Run("database error", func(t *testing.T) {
		d.checkouts.EXPECT().ListBySession(ctx, sessionID, 10).Return(nil, errors.New("conn reset"))
		_, err := d.svc.ListCheckouts(ctx, sessionID, 10)
		requireCode(t, err, "SYS_001")
	})
}

func TestCheckoutService_Checkout_SecondCallDuringPostPaymentSteps(t *testing.T) {
	tests := []struct {
		name  string
		block func(d *checkoutTestDeps, entered, release chan struct{})
	}{
		{
			name: "fetching chain data",
			block: func(d *checkoutTestDeps, entered, release chan struct{}) {
				d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).DoAndReturn(
					func(context.Context, string) (*domain.TransactionReceipt, error) {
						close(entered)
						<-release
						return &domain.TransactionReceipt{Hash: checkoutTxHash}, nil
					})
				d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).Return("0xatt5", nil)
			},
		},
		{
			name: "creating attestation",
			block: func(d *checkoutTestDeps, entered, release chan struct{}) {
				d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).Return(&domain.TransactionReceipt{Hash: checkoutTxHash}, nil)
				d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
					func(context.Context, domain.AttestationData) (string, error) {
						close(entered)
						<-release
						return "0xatt5", nil
					})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupCheckoutService(t)
			sessionID := uuid.New()
			entered := make(chan struct{})
			release := make(chan struct{})

			d.recordStates()
			d.expectPaid(t, sessionID)
			d.carts.EXPECT().Settle(gomock.Any(), sessionID, gomock.Any()).Return(nil).Times(1)
			tt.block(d, entered, release)
			d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

			done := make(chan error, 1)
			go func() {
				_, err := d.svc.Checkout(context.Background(), sessionID)
				done <- err
			}()

			<-entered
			_, err := d.svc.Checkout(context.Background(), sessionID)
			requireCode(t, err, "CHK_001")
			close(release)
			require.NoError(t, <-done)
		})
	}
}

func TestCheckoutService_Checkout_PostPaymentStepsAreBounded(t *testing.T) {
	d := setupCheckoutService(t)
	sessionID := uuid.New()

	requireStepDeadline := func(ctx context.Context) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "post-payment calls must carry a deadline")
		assert.LessOrEqual(t, time.Until(deadline), testCheckoutTimeouts.Step)
	}

	d.recordStates()
	d.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(testCart(), nil)
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.NewFromInt(2000), nil)
	d.payments.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.PurchaseIntent) (*ports.PaymentResult, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok, "the payment runs under the run deadline")
			assert.LessOrEqual(t, time.Until(deadline), testCheckoutTimeouts.Run)
			return &ports.PaymentResult{TxHash: checkoutTxHash, BlockNumber: 42}, nil
		})
	d.carts.EXPECT().Settle(gomock.Any(), sessionID, gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ uuid.UUID, _ []domain.CartItem) error {
			requireStepDeadline(ctx)
			return nil
		})
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).DoAndReturn(
		func(ctx context.Context, _ string) (*domain.TransactionReceipt, error) {
			requireStepDeadline(ctx)
			return &domain.TransactionReceipt{Hash: checkoutTxHash}, nil
		})
	d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.AttestationData) (string, error) {
			requireStepDeadline(ctx)
			return "0xatt6", nil
		})
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	_, err := d.svc.Checkout(context.Background(), sessionID)
	require.NoError(t, err)
}

func TestCheckoutService_Checkout_StalledChainFetchTimesOut(t *testing.T) {
	d := setupCheckoutService(t)
	d.svc.timeouts.Step = 50 * time.Millisecond
	sessionID := uuid.New()

	d.recordStates()
	d.expectPaid(t, sessionID)
	d.carts.EXPECT().Settle(gomock.Any(), sessionID, gomock.Any()).Return(nil)
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).DoAndReturn(
		func(ctx context.Context, _ string) (*domain.TransactionReceipt, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	d.metrics.EXPECT().PostPaymentWarning("chain_data")
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	session, err := d.svc.Checkout(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateDone, session.State)
	require.Len(t, session.Warnings, 1)
	assert.Contains(t, session.Warnings[0], "deadline exceeded")
}

// TestCheckoutService_Checkout_GuardLapseDoesNotChargeTwice runs against a real
// Redis cart and guard: the first run stalls after payment long enough for its
// guard to expire, and a second run must not find anything left to pay for.
func TestCheckoutService_Checkout_GuardLapseDoesNotChargeTwice(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := storeredis.NewCheckoutGuard(client)
	carts := NewCartService(storeredis.NewCartStore(client, time.Hour), zerolog.Nop())
	d := setupCheckoutServiceWithGuard(t, guard)
	d.svc.carts = carts

	ctx := context.Background()
	sessionID := uuid.New()
	_, err := carts.AddItem(ctx, sessionID, 1, 1)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, sessionID, 2, 1)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var payments int
	var paymentsMu sync.Mutex

	d.recordStates()
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil).AnyTimes()
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.NewFromInt(2000), nil).AnyTimes()
	d.payments.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domain.PurchaseIntent) (*ports.PaymentResult, error) {
			paymentsMu.Lock()
			defer paymentsMu.Unlock()
			payments++
			return &ports.PaymentResult{TxHash: checkoutTxHash, BlockNumber: 42}, nil
		}).AnyTimes()
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).DoAndReturn(
		func(context.Context, string) (*domain.TransactionReceipt, error) {
			close(entered)
			<-release
			return &domain.TransactionReceipt{Hash: checkoutTxHash}, nil
		})
	d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).Return("0xatt7", nil)
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	done := make(chan error, 1)
	go func() {
		_, err := d.svc.Checkout(ctx, sessionID)
		done <- err
	}()

	<-entered
	mr.FastForward(2 * time.Minute)
	require.False(t, mr.Exists("checkout:lock:"+sessionID.String()), "guard should have lapsed")

	_, err = d.svc.Checkout(ctx, sessionID)
	requireCode(t, err, "CART_002")

	// a later run holds the slot when the stalled run finishes
	token, ok, err := guard.Acquire(ctx, sessionID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	close(release)
	require.NoError(t, <-done)

	paymentsMu.Lock()
	assert.Equal(t, 1, payments, "the cart was paid for once")
	paymentsMu.Unlock()

	held, err := mr.Get("checkout:lock:" + sessionID.String())
	require.NoError(t, err)
	assert.Equal(t, token, held, "the stalled run must not free the later run's slot")

	cart, err := carts.GetCart(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCheckoutService_Checkout_KeepsItemsAddedDuringPayment(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	carts := NewCartService(storeredis.NewCartStore(client, time.Hour), zerolog.Nop())
	d := setupCheckoutServiceWithGuard(t, storeredis.NewCheckoutGuard(client))
	d.svc.carts = carts

	ctx := context.Background()
	sessionID := uuid.New()
	_, err := carts.AddItem(ctx, sessionID, 1, 1)
	require.NoError(t, err)

	d.recordStates()
	d.payments.EXPECT().BuyerAddress().Return(testBuyerAddr.Hex(), nil)
	d.prices.EXPECT().CurrentEthUsdPrice(gomock.Any()).Return(decimal.NewFromInt(2000), nil)
	d.payments.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domain.PurchaseIntent) (*ports.PaymentResult, error) {
			// the shopper adds another product while the transaction is mined
			_, err := carts.AddItem(ctx, sessionID, 2, 1)
			require.NoError(t, err)
			return &ports.PaymentResult{TxHash: checkoutTxHash, BlockNumber: 42}, nil
		})
	d.chain.EXPECT().Fetch(gomock.Any(), checkoutTxHash).Return(&domain.TransactionReceipt{Hash: checkoutTxHash}, nil)
	d.attestations.EXPECT().Create(gomock.Any(), gomock.Any()).Return("0xatt8", nil)
	d.metrics.EXPECT().CheckoutFinished(domain.CheckoutStateDone, "", gomock.Any())

	session, err := d.svc.Checkout(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dyson Airwrap"}, session.Items)

	cart, err := carts.GetCart(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Dyson Supersonic 2", cart.Items[2].Name)
}
