package service

import (
	"context"
	"time"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"

	"github.com/rs/zerolog"
)

// PriceTicker keeps the displayed ETH/USD quote fresh. It shares nothing with
// running checkouts beyond PriceService.Latest.
type PriceTicker struct {
	prices   ports.PriceService
	interval time.Duration
	log      zerolog.Logger
}

// NewPriceTicker creates a ticker that refreshes every interval.
func NewPriceTicker(prices ports.PriceService, interval time.Duration, log zerolog.Logger) *PriceTicker {
	return &PriceTicker{prices: prices, interval: interval, log: log}
}

// Run refreshes once immediately and then on every tick until ctx is cancelled.
func (t *PriceTicker) Run(ctx context.Context) {
	t.refresh(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info().Msg("Price ticker stopped")
			return
		case <-ticker.C:
			t.refresh(ctx)
		}
	}
}

func (t *PriceTicker) refresh(ctx context.Context) {
	price, err := t.prices.CurrentEthUsdPrice(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn().Err(err).Msg("Price refresh failed")
		}
		return
	}
	t.log.Debug().Str("eth_usd", price.StringFixed(domain.UsdDecimals)).Msg("Price refreshed")
}
