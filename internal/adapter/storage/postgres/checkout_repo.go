package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clarity-storefront/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const checkoutColumns = `id, session_id, state, buyer, merchant, usd_total, eth_total, eth_usd_price,
		items, tx_hash, receipt, attestation_id, warnings, error_code, error_message,
		created_at, updated_at, completed_at`

// CheckoutRepo implements ports.CheckoutRepository. It is an audit trail of
// checkout runs; carts live in Redis.
type CheckoutRepo struct {
	pool Pool
}

// NewCheckoutRepo creates a new CheckoutRepo.
func NewCheckoutRepo(pool Pool) *CheckoutRepo {
	return &CheckoutRepo{pool: pool}
}

// Create inserts a new checkout run.
func (r *CheckoutRepo) Create(ctx context.Context, s *domain.CheckoutSession) error {
	row, err := toCheckoutRow(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO checkout_sessions (` + checkoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.pool.Exec(ctx, query,
		s.ID, s.SessionID, s.State, s.Buyer, s.Merchant,
		row.usdTotal, row.ethTotal, row.ethUsdPrice,
		row.items, s.TxHash, row.receipt, s.AttestationID, row.warnings,
		s.ErrorCode, s.ErrorMessage,
		s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout: %w", err)
	}
	return nil
}

// Update writes the mutable fields of a checkout run.
func (r *CheckoutRepo) Update(ctx context.Context, s *domain.CheckoutSession) error {
	row, err := toCheckoutRow(s)
	if err != nil {
		return err
	}

	query := `UPDATE checkout_sessions SET state = $1, buyer = $2, eth_total = $3, eth_usd_price = $4,
		tx_hash = $5, receipt = $6, attestation_id = $7, warnings = $8, error_code = $9, error_message = $10,
		updated_at = $11, completed_at = $12
		WHERE id = $13`

	tag, err := r.pool.Exec(ctx, query,
		s.State, s.Buyer, row.ethTotal, row.ethUsdPrice,
		s.TxHash, row.receipt, s.AttestationID, row.warnings, s.ErrorCode, s.ErrorMessage,
		s.UpdatedAt, s.CompletedAt,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("update checkout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("checkout not found: %s", s.ID)
	}
	return nil
}

// GetByID fetches a checkout run. Returns nil, nil when it does not exist.
func (r *CheckoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CheckoutSession, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkout_sessions WHERE id = $1`

	s, err := scanCheckout(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get checkout: %w", err)
	}
	return s, nil
}

// ListBySession returns the most recent runs for a session, newest first.
func (r *CheckoutRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.CheckoutSession, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkout_sessions
		WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkouts: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckoutSession
	for rows.Next() {
		s, err := scanCheckout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout row: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkout rows: %w", err)
	}
	return out, nil
}

// checkoutRow holds the column encodings that differ from the domain types.
// Amounts travel as decimal strings so NUMERIC keeps full precision.
type checkoutRow struct {
	usdTotal    string
	ethTotal    string
	ethUsdPrice string
	items       []byte
	receipt     []byte
	warnings    []byte
}

func toCheckoutRow(s *domain.CheckoutSession) (*checkoutRow, error) {
	items := s.Items
	if items == nil {
		items = []string{}
	}
	warnings := s.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode checkout items: %w", err)
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("encode checkout warnings: %w", err)
	}
	var receiptJSON []byte
	if s.Receipt != nil {
		if receiptJSON, err = json.Marshal(s.Receipt); err != nil {
			return nil, fmt.Errorf("encode checkout receipt: %w", err)
		}
	}

	return &checkoutRow{
		usdTotal:    s.UsdTotal.String(),
		ethTotal:    s.EthTotal.String(),
		ethUsdPrice: s.EthUsdPrice.String(),
		items:       itemsJSON,
		receipt:     receiptJSON,
		warnings:    warningsJSON,
	}, nil
}

func scanCheckout(row pgx.Row) (*domain.CheckoutSession, error) {
	var (
		s           domain.CheckoutSession
		r           checkoutRow
		completedAt *time.Time
	)
	err := row.Scan(
		&s.ID, &s.SessionID, &s.State, &s.Buyer, &s.Merchant,
		&r.usdTotal, &r.ethTotal, &r.ethUsdPrice,
		&r.items, &s.TxHash, &r.receipt, &s.AttestationID, &r.warnings,
		&s.ErrorCode, &s.ErrorMessage,
		&s.CreatedAt, &s.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	s.CompletedAt = completedAt

	if s.UsdTotal, err = decimal.NewFromString(r.usdTotal); err != nil {
		return nil, fmt.Errorf("decode usd_total: %w", err)
	}
	if s.EthTotal, err = decimal.NewFromString(r.ethTotal); err != nil {
		return nil, fmt.Errorf("decode eth_total: %w", err)
	}
	if s.EthUsdPrice, err = decimal.NewFromString(r.ethUsdPrice); err != nil {
		return nil, fmt.Errorf("decode eth_usd_price: %w", err)
	}
	if err := json.Unmarshal(r.items, &s.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(r.warnings) > 0 {
		if err := json.Unmarshal(r.warnings, &s.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	if len(r.receipt) > 0 {
		s.Receipt = &domain.TransactionReceipt{}
		if err := json.Unmarshal(r.receipt, s.Receipt); err != nil {
			return nil, fmt.Errorf("decode receipt: %w", err)
		}
	}
	return &s, nil
}
