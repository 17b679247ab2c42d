package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// maxAttestationPages caps how many index pages one buyer listing walks.
const maxAttestationPages = 20

// AttestationServiceImpl implements ports.AttestationService.
type AttestationServiceImpl struct {
	network   ports.AttestationNetwork
	codec     ports.AttestationCodec
	schemaID  string
	indexMode string
	merchant  string
	wallet    ports.WalletSigner
	log       zerolog.Logger
	now       func() time.Time
}

// NewAttestationService creates a new AttestationServiceImpl. wallet may be nil;
// only Template needs it.
func NewAttestationService(
	network ports.AttestationNetwork,
	codec ports.AttestationCodec,
	schemaID string,
	indexMode string,
	merchant string,
	wallet ports.WalletSigner,
	log zerolog.Logger,
) *AttestationServiceImpl {
	return &AttestationServiceImpl{
		network:   network,
		codec:     codec,
		schemaID:  schemaID,
		indexMode: indexMode,
		merchant:  merchant,
		wallet:    wallet,
		log:       log,
		now:       time.Now,
	}
}

// Create writes a loyalty attestation indexed under the lowercased buyer address
// and returns the id the network assigned.
func (s *AttestationServiceImpl) Create(ctx context.Context, data domain.AttestationData) (string, error) {
	if err := data.Validate(); err != nil {
		return "", apperror.Validation(err.Error())
	}

	encoded, err := s.codec.Encode(domain.PurchaseSchemaFields, data)
	if err != nil {
		return "", apperror.ErrAttestationCreateFailed(fmt.Errorf("encode attestation: %w", err))
	}

	id, err := s.network.CreateAttestation(ctx, ports.CreateAttestationRequest{
		SchemaID:      s.schemaID,
		Data:          encoded,
		IndexingValue: data.IndexingValue(),
	})
	if err != nil {
		return "", asAppError(err, apperror.ErrAttestationCreateFailed)
	}
	if id == "" {
		return "", apperror.ErrAttestationCreateFailed(errors.New("network returned no attestation id"))
	}

	s.log.Info().
		Str("attestation_id", id).
		Str("schema_id", s.schemaID).
		Str("tx_hash", data.TxHash).
		Str("buyer", data.IndexingValue()).
		Msg("Attestation created")

	return id, nil
}

// ListForBuyer returns every attestation indexed under buyer, decoded where possible,
// with stats folded over the decoded ones. A record that fails to decode is kept
// with its raw fields and a decode_error.
func (s *AttestationServiceImpl) ListForBuyer(ctx context.Context, buyer string) (*ports.BuyerAttestations, error) {
	if !common.IsHexAddress(buyer) {
		return nil, apperror.Validation("buyer must be an address")
	}
	indexing := strings.ToLower(buyer)

	var rows []domain.AttestationRecord
	for page := 1; page <= maxAttestationPages; page++ {
		res, err := s.network.QueryAttestations(ctx, ports.AttestationQuery{
			IndexingValue: indexing,
			Page:          page,
			Mode:          s.indexMode,
		})
		if err != nil {
			return nil, asAppError(err, apperror.ErrAttestationQueryFailed)
		}
		rows = append(rows, res.Rows...)
		if len(res.Rows) == 0 || len(rows) >= res.Total {
			break
		}
	}

	schemas := make(map[string][]domain.SchemaField)
	records := make([]domain.AttestationRecord, len(rows))
	for i, row := range rows {
		records[i] = s.decode(ctx, row, schemas)
	}

	return &ports.BuyerAttestations{
		Buyer:   indexing,
		Records: records,
		Stats:   domain.ComputeStats(records),
	}, nil
}

// Get returns one attestation by id, decoded against its schema.
func (s *AttestationServiceImpl) Get(ctx context.Context, id string) (*domain.AttestationRecord, error) {
	row, err := s.network.GetAttestation(ctx, id)
	if err != nil {
		return nil, asAppError(err, apperror.ErrAttestationQueryFailed)
	}
	if row == nil {
		return nil, apperror.ErrAttestationNotFound(id)
	}
	record := s.decode(ctx, *row, make(map[string][]domain.SchemaField))
	return &record, nil
}

// VerifySchema checks that the configured schema exists with the purchase field layout.
func (s *AttestationServiceImpl) VerifySchema(ctx context.Context) (*ports.SchemaStatus, error) {
	schema, err := s.network.GetSchema(ctx, s.schemaID)
	if err != nil {
		return nil, asAppError(err, apperror.ErrAttestationQueryFailed)
	}
	if schema == nil {
		return nil, apperror.ErrSchemaNotFound(s.schemaID)
	}
	return &ports.SchemaStatus{
		Schema:  schema,
		Matches: domain.MatchesPurchaseSchema(schema.Fields),
	}, nil
}

// RegisterSchema creates a schema on the network. Without fields it registers the purchase layout.
func (s *AttestationServiceImpl) RegisterSchema(ctx context.Context, schema domain.Schema) (string, error) {
	if strings.TrimSpace(schema.Name) == "" {
		return "", apperror.Validation("schema name is required")
	}
	if len(schema.Fields) == 0 {
		schema.Fields = domain.PurchaseSchemaFields
	}

	id, err := s.network.CreateSchema(ctx, schema)
	if err != nil {
		return "", asAppError(err, apperror.ErrAttestationCreateFailed)
	}
	s.log.Info().Str("schema_id", id).Str("name", schema.Name).Msg("Schema registered")
	return id, nil
}

// Template prefills an attestation for the connected wallet and configured merchant.
func (s *AttestationServiceImpl) Template(_ context.Context) (*domain.AttestationData, error) {
	if s.wallet == nil {
		return nil, apperror.ErrNoWalletProvider()
	}
	return &domain.AttestationData{
		Buyer:           s.wallet.Address().Hex(),
		Merchant:        s.merchant,
		Eth:             "0",
		Usd:             "0",
		Items:           []string{},
		Time:            uint64(s.now().Unix()),
		Points:          "0",
		TransactionType: domain.TransactionTypePurchase,
	}, nil
}

// decode fills in Decoded or DecodeError. schemas memoises schema lookups for one call.
func (s *AttestationServiceImpl) decode(ctx context.Context, row domain.AttestationRecord, schemas map[string][]domain.SchemaField) domain.AttestationRecord {
	fields, ok := schemas[row.SchemaID]
	if !ok {
		schema, err := s.network.GetSchema(ctx, row.SchemaID)
		switch {
		case err != nil:
			row.DecodeError = fmt.Sprintf("fetch schema %s: %v", row.SchemaID, err)
		case schema == nil || len(schema.Fields) == 0:
			row.DecodeError = fmt.Sprintf("schema %s not found", row.SchemaID)
		default:
			fields = schema.Fields
		}
		schemas[row.SchemaID] = fields
	}
	if fields == nil {
		if row.DecodeError == "" {
			row.DecodeError = fmt.Sprintf("schema %s unavailable", row.SchemaID)
		}
		s.log.Warn().Str("attestation_id", row.ID).Str("reason", row.DecodeError).Msg("Attestation left undecoded")
		return row
	}

	data, err := s.codec.Decode(fields, row.Data)
	if err != nil {
		row.DecodeError = err.Error()
		s.log.Warn().Err(err).Str("attestation_id", row.ID).Msg("Attestation left undecoded")
		return row
	}
	row.Decoded = data
	return row
}
