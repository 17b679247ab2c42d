package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"

	"github.com/shopspring/decimal"
)

// verifyChain fails with CHAIN_001 when the endpoint serves a different chain.
// RPC failures come back as plain errors for the caller to classify.
func verifyChain(ctx context.Context, net ports.NetworkInspector, expected uint64) error {
	id, err := net.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("reading chain id: %w", err)
	}
	if !id.IsUint64() {
		return apperror.ErrWrongNetwork(expected, 0)
	}
	if id.Uint64() != expected {
		return apperror.ErrWrongNetwork(expected, id.Uint64())
	}
	return nil
}

// asAppError returns err unchanged when it already carries an error code, else wrap(err).
func asAppError(err error, wrap func(error) *apperror.AppError) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return wrap(err)
}

type noopMetrics struct{}

func (noopMetrics) CheckoutFinished(domain.CheckoutState, string, time.Duration) {}
func (noopMetrics) PostPaymentWarning(string)                                    {}
func (noopMetrics) PriceObserved(decimal.Decimal)                                {}

func metricsOrNoop(m ports.CheckoutMetrics) ports.CheckoutMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
