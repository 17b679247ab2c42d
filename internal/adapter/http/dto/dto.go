package dto

import (
	"time"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
)

// SessionResponse is the response body for a new storefront session.
type SessionResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

// AddCartItemRequest is the request body for adding a product to the cart.
// A zero quantity adds one unit.
type AddCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"omitempty,gte=0,lte=99"`
}

// CartLineResponse is one cart line with its subtotal.
type CartLineResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

// CartResponse is the cart ordered by product id with a two-decimal USD total.
type CartResponse struct {
	Items     []CartLineResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	TotalUsd  string             `json:"total_usd"`
}

// NewCartResponse renders a cart.
func NewCartResponse(cart *domain.Cart) CartResponse {
	items := cart.Lines()
	resp := CartResponse{
		Items:    make([]CartLineResponse, 0, len(items)),
		TotalUsd: cart.Total().StringFixed(2),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, newCartLine(it))
		resp.ItemCount += it.Quantity
	}
	return resp
}

func newCartLine(it domain.CartItem) CartLineResponse {
	return CartLineResponse{
		ProductID: it.ProductID,
		Name:      it.Name,
		UnitPrice: it.UnitPrice.StringFixed(2),
		Quantity:  it.Quantity,
		Subtotal:  it.Subtotal().StringFixed(2),
	}
}

// PriceResponse is the displayed ETH/USD price.
type PriceResponse struct {
	EthUsd    string    `json:"eth_usd"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuoteResponse is what the buyer would pay for the current cart.
type QuoteResponse struct {
	Items       []CartLineResponse `json:"items"`
	UsdTotal    string             `json:"usd_total"`
	EthTotal    string             `json:"eth_total"`
	EthUsdPrice string             `json:"eth_usd_price"`
	Points      string             `json:"points"`
	QuotedAt    time.Time          `json:"quoted_at"`
}

// NewQuoteResponse renders a checkout quote. ETH is shown with six decimals.
func NewQuoteResponse(q *ports.CheckoutQuote) QuoteResponse {
	resp := QuoteResponse{
		Items:       make([]CartLineResponse, 0, len(q.Items)),
		UsdTotal:    q.UsdTotal.StringFixed(2),
		EthTotal:    q.EthTotal.StringFixed(6),
		EthUsdPrice: q.EthUsdPrice.StringFixed(2),
		Points:      q.Points.StringFixed(2),
		QuotedAt:    q.QuotedAt,
	}
	for _, it := range q.Items {
		resp.Items = append(resp.Items, newCartLine(it))
	}
	return resp
}

// CreateAttestationRequest is the request body for a manual attestation.
type CreateAttestationRequest struct {
	Buyer           string   `json:"buyer" binding:"required,eth_address"`
	Merchant        string   `json:"merchant" binding:"required,eth_address"`
	Eth             string   `json:"eth" binding:"required,decimal_amount"`
	Usd             string   `json:"usd" binding:"required,decimal_amount"`
	Items           []string `json:"items" binding:"required,min=1,max=50,dive,required,max=200"`
	Time            uint64   `json:"time"`
	Points          string   `json:"points" binding:"required,decimal_amount"`
	TransactionType string   `json:"transactiontype" binding:"required,oneof=purchase refund exchange"`
	TxHash          string   `json:"txHash" binding:"required,tx_hash"`
}

// ToDomain converts the request. A zero time means now.
func (r CreateAttestationRequest) ToDomain(now time.Time) domain.AttestationData {
	ts := r.Time
	if ts == 0 {
		ts = uint64(now.Unix())
	}
	return domain.AttestationData{
		Buyer:           r.Buyer,
		Merchant:        r.Merchant,
		Eth:             r.Eth,
		Usd:             r.Usd,
		Items:           r.Items,
		Time:            ts,
		Points:          r.Points,
		TransactionType: domain.TransactionType(r.TransactionType),
		TxHash:          r.TxHash,
	}
}

// CreateAttestationResponse carries the id assigned by the attestation network.
type CreateAttestationResponse struct {
	AttestationID string `json:"attestation_id"`
}

// SchemaFieldRequest is one typed schema field.
type SchemaFieldRequest struct {
	Name string `json:"name" binding:"required,safe_id,max=64"`
	Type string `json:"type" binding:"required,oneof=string address uint256 string[] bytes32 bool"`
}

// RegisterSchemaRequest is the request body for schema registration.
type RegisterSchemaRequest struct {
	Name        string               `json:"name" binding:"required,max=100"`
	Description string               `json:"description" binding:"max=500"`
	Fields      []SchemaFieldRequest `json:"data" binding:"required,min=1,max=32,dive"`
}

// ToDomain converts the request.
func (r RegisterSchemaRequest) ToDomain() domain.Schema {
	fields := make([]domain.SchemaField, 0, len(r.Fields))
	for _, f := range r.Fields {
		fields = append(fields, domain.SchemaField{Name: f.Name, Type: f.Type})
	}
	return domain.Schema{Name: r.Name, Description: r.Description, Fields: fields}
}

// RegisterSchemaResponse carries the id of the new schema.
type RegisterSchemaResponse struct {
	SchemaID string `json:"schema_id"`
}

// SchemaStatusResponse reports whether the configured schema fits purchase records.
type SchemaStatusResponse struct {
	Schema  *domain.Schema `json:"schema"`
	Matches bool           `json:"matches"`
}

// BuyerAttestationsResponse is a buyer's attestation history with totals.
type BuyerAttestationsResponse struct {
	Buyer   string                     `json:"buyer"`
	Records []domain.AttestationRecord `json:"records"`
	Stats   domain.LoyaltyStats        `json:"stats"`
	Tier    *domain.PointsTier         `json:"tier,omitempty"`
}

// NewBuyerAttestationsResponse renders a buyer's history.
func NewBuyerAttestationsResponse(b *ports.BuyerAttestations) BuyerAttestationsResponse {
	records := b.Records
	if records == nil {
		records = []domain.AttestationRecord{}
	}
	return BuyerAttestationsResponse{
		Buyer:   b.Buyer,
		Records: records,
		Stats:   b.Stats,
		Tier:    domain.TierFor(b.Stats.TotalPoints),
	}
}
