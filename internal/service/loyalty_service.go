package service

import (
	"context"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
)

// LoyaltyServiceImpl implements ports.LoyaltyService over a buyer's attestations.
type LoyaltyServiceImpl struct {
	attestations ports.AttestationService
	name         string
	schemaID     string
	merchants    []domain.CoalitionMerchant
}

// NewLoyaltyService creates a new LoyaltyServiceImpl for the named coalition.
func NewLoyaltyService(attestations ports.AttestationService, name, schemaID string, merchants []domain.CoalitionMerchant) *LoyaltyServiceImpl {
	return &LoyaltyServiceImpl{
		attestations: attestations,
		name:         name,
		schemaID:     schemaID,
		merchants:    merchants,
	}
}

// Summary aggregates the buyer's decoded attestations per coalition merchant.
func (s *LoyaltyServiceImpl) Summary(ctx context.Context, buyer string) (*domain.CoalitionSummary, error) {
	history, err := s.attestations.ListForBuyer(ctx, buyer)
	if err != nil {
		return nil, err
	}
	summary := domain.BuildCoalitionSummary(s.name, s.schemaID, buyer, s.merchants, history.Records)
	return &summary, nil
}
