package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const priceFlightKey = "eth-usd"

// PriceServiceImpl implements ports.PriceService against a Chainlink aggregator.
// Concurrent readers share one in-flight oracle read.
type PriceServiceImpl struct {
	oracle  ports.PriceOracle
	network ports.NetworkInspector
	chainID uint64
	timeout time.Duration
	metrics ports.CheckoutMetrics
	log     zerolog.Logger
	now     func() time.Time

	flight singleflight.Group

	mu     sync.RWMutex
	latest ports.PriceQuote
	has    bool
}

// NewPriceService creates a new PriceServiceImpl. timeout bounds each oracle read.
func NewPriceService(
	oracle ports.PriceOracle,
	network ports.NetworkInspector,
	chainID uint64,
	timeout time.Duration,
	metrics ports.CheckoutMetrics,
	log zerolog.Logger,
) *PriceServiceImpl {
	return &PriceServiceImpl{
		oracle:  oracle,
		network: network,
		chainID: chainID,
		timeout: timeout,
		metrics: metricsOrNoop(metrics),
		log:     log,
		now:     time.Now,
	}
}

// CurrentEthUsdPrice reads the oracle's latest round and returns USD per ETH rounded to cents.
func (s *PriceServiceImpl) CurrentEthUsdPrice(ctx context.Context) (decimal.Decimal, error) {
	// The shared read must not die with whichever caller started it.
	ch := s.flight.DoChan(priceFlightKey, func() (any, error) {
		return s.readPrice(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return decimal.Zero, apperror.ErrOracleUnavailable(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

// UsdToEth converts a USD amount at the current oracle price, rounded to 6 places.
// Non-positive amounts convert to zero without reading the oracle.
func (s *PriceServiceImpl) UsdToEth(ctx context.Context, usd decimal.Decimal) (decimal.Decimal, error) {
	if !usd.IsPositive() {
		return decimal.Zero, nil
	}
	price, err := s.CurrentEthUsdPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return usdToEthAt(usd, price), nil
}

// usdToEthAt converts at a known price. Callers guarantee price > 0.
func usdToEthAt(usd, price decimal.Decimal) decimal.Decimal {
	if !usd.IsPositive() {
		return decimal.Zero
	}
	return usd.Div(price).Round(domain.EthDecimals)
}

// Latest returns the last price read successfully.
func (s *PriceServiceImpl) Latest() (ports.PriceQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has
}

func (s *PriceServiceImpl) readPrice(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := verifyChain(ctx, s.network, s.chainID); err != nil {
		return decimal.Zero, asAppError(err, apperror.ErrOracleUnavailable)
	}

	decimals, err := s.oracle.Decimals(ctx)
	if err != nil {
		return decimal.Zero, apperror.ErrOracleUnavailable(fmt.Errorf("oracle decimals: %w", err))
	}
	round, err := s.oracle.LatestRoundData(ctx)
	if err != nil {
		return decimal.Zero, apperror.ErrOracleUnavailable(fmt.Errorf("oracle latest round: %w", err))
	}
	if round == nil || round.Answer == nil || round.Answer.Sign() <= 0 {
		return decimal.Zero, apperror.ErrOracleUnavailable(fmt.Errorf("oracle returned no positive answer"))
	}

	price := decimal.NewFromBigInt(round.Answer, -int32(decimals)).Round(domain.UsdDecimals)

	s.mu.Lock()
	s.latest = ports.PriceQuote{Price: price, UpdatedAt: s.now()}
	s.has = true
	s.mu.Unlock()

	s.metrics.PriceObserved(price)
	s.log.Debug().Str("eth_usd", price.StringFixed(domain.UsdDecimals)).Msg("Oracle price read")

	return price, nil
}
