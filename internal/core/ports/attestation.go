package ports

import (
	"context"

	"clarity-storefront/internal/core/domain"
)

// CreateAttestationRequest is a schema-typed record to write.
type CreateAttestationRequest struct {
	SchemaID      string
	Data          string // 0x-prefixed ABI encoding of the schema fields
	IndexingValue string
}

// AttestationQuery selects attestations by indexing value.
type AttestationQuery struct {
	IndexingValue string
	Page          int
	Mode          string // onchain, offchain
}

// AttestationPage is one page of index results. Records carry raw data only.
type AttestationPage struct {
	Rows  []domain.AttestationRecord
	Total int
	Page  int
	Size  int
}

// AttestationNetwork is the external attestation protocol: writer plus index service.
type AttestationNetwork interface {
	CreateAttestation(ctx context.Context, req CreateAttestationRequest) (string, error)
	QueryAttestations(ctx context.Context, q AttestationQuery) (*AttestationPage, error)
	GetAttestation(ctx context.Context, id string) (*domain.AttestationRecord, error)
	GetSchema(ctx context.Context, schemaID string) (*domain.Schema, error)
	CreateSchema(ctx context.Context, schema domain.Schema) (string, error)
}

// AttestationCodec converts between attestation data and its on-chain encoding.
type AttestationCodec interface {
	Encode(fields []domain.SchemaField, data domain.AttestationData) (string, error)
	Decode(fields []domain.SchemaField, raw string) (*domain.AttestationData, error)
}
