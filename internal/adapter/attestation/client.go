package attestation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx answer from the attestation network.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attestation network returned %d: %s", e.Status, e.Message)
}

// Client implements ports.AttestationNetwork over the network's HTTP JSON API.
// Calls go through a circuit breaker so a down network fails fast instead of
// holding checkout runs for the full timeout.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	breaker    *gobreaker.CircuitBreaker[*apiResponse]
	log        zerolog.Logger
}

type apiResponse struct {
	status int
	body   []byte
}

// envelope is the wrapper every API response uses.
type envelope[T any] struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       T      `json:"data"`
}

// NewClient creates a client for baseURL. A nil httpClient gets a default one bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*apiResponse](gobreaker.Settings{
		Name:        "attestation-network",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Client errors are the caller's fault, not the network's.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Attestation network circuit breaker changed state")
		},
	})
	return c
}

type createAttestationBody struct {
	SchemaID      string `json:"schemaId"`
	Data          string `json:"data"`
	IndexingValue string `json:"indexingValue"`
}

// CreateAttestation writes a record and returns its attestation id.
func (c *Client) CreateAttestation(ctx context.Context, req ports.CreateAttestationRequest) (string, error) {
	var out envelope[struct {
		AttestationID string `json:"attestationId"`
	}]
	body := createAttestationBody{SchemaID: req.SchemaID, Data: req.Data, IndexingValue: req.IndexingValue}
	if _, err := c.do(ctx, http.MethodPost, "/attestations", body, &out); err != nil {
		return "", err
	}
	return out.Data.AttestationID, nil
}

type recordWire struct {
	ID              string          `json:"id"`
	AttestationID   string          `json:"attestationId"`
	SchemaID        string          `json:"schemaId"`
	FullSchemaID    string          `json:"fullSchemaId"`
	Attester        string          `json:"attester"`
	ValidUntil      json.RawMessage `json:"validUntil"`
	AttestTimestamp json.RawMessage `json:"attestTimestamp"`
	Revoked         bool            `json:"revoked"`
	Data            string          `json:"data"`
}

func (w recordWire) toDomain() domain.AttestationRecord {
	id := w.AttestationID
	if id == "" {
		id = w.ID
	}
	schemaID := w.FullSchemaID
	if schemaID == "" {
		schemaID = w.SchemaID
	}
	return domain.AttestationRecord{
		ID:              id,
		SchemaID:        schemaID,
		Attester:        w.Attester,
		ValidUntil:      rawScalar(w.ValidUntil),
		AttestTimestamp: rawScalar(w.AttestTimestamp),
		Revoked:         w.Revoked,
		Data:            w.Data,
	}
}

// rawScalar renders a JSON string or number as text. The index returns both forms.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// QueryAttestations lists one page of records for an indexing value.
func (c *Client) QueryAttestations(ctx context.Context, q ports.AttestationQuery) (*ports.AttestationPage, error) {
	params := url.Values{}
	params.Set("indexingValue", q.IndexingValue)
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.Mode != "" {
		params.Set("mode", q.Mode)
	}

	var out envelope[struct {
		Rows  []recordWire `json:"rows"`
		Total int          `json:"total"`
		Page  int          `json:"page"`
		Size  int          `json:"size"`
	}]
	if _, err := c.do(ctx, http.MethodGet, "/index/attestations?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}

	page := &ports.AttestationPage{
		Rows:  make([]domain.AttestationRecord, 0, len(out.Data.Rows)),
		Total: out.Data.Total,
		Page:  out.Data.Page,
		Size:  out.Data.Size,
	}
	for _, row := range out.Data.Rows {
		page.Rows = append(page.Rows, row.toDomain())
	}
	return page, nil
}

// GetAttestation fetches one record. Returns nil, nil when it does not exist.
func (c *Client) GetAttestation(ctx context.Context, id string) (*domain.AttestationRecord, error) {
	var out envelope[*recordWire]
	found, err := c.do(ctx, http.MethodGet, "/index/attestations/"+url.PathEscape(id), nil, &out)
	if err != nil || !found || out.Data == nil {
		return nil, err
	}
	record := out.Data.toDomain()
	return &record, nil
}

// GetSchema fetches a schema. Returns nil, nil when it does not exist.
func (c *Client) GetSchema(ctx context.Context, schemaID string) (*domain.Schema, error) {
	var out envelope[*domain.Schema]
	found, err := c.do(ctx, http.MethodGet, "/index/schemas/"+url.PathEscape(schemaID), nil, &out)
	if err != nil || !found {
		return nil, err
	}
	return out.Data, nil
}

// CreateSchema registers a schema and returns its id.
func (c *Client) CreateSchema(ctx context.Context, schema domain.Schema) (string, error) {
	var out envelope[struct {
		SchemaID string `json:"schemaId"`
	}]
	if _, err := c.do(ctx, http.MethodPost, "/schemas", schema, &out); err != nil {
		return "", err
	}
	return out.Data.SchemaID, nil
}

// do sends one request through the breaker and decodes the envelope into out.
// A 404 reports found=false with no error.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (bool, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return false, fmt.Errorf("encode request: %w", err)
		}
	}

	res, err := c.breaker.Execute(func() (*apiResponse, error) {
		return c.send(ctx, method, path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("attestation network unavailable: %w", err)
		}
		return false, err
	}
	if res.status == http.StatusNotFound {
		return false, nil
	}

	if err := json.Unmarshal(res.body, out); err != nil {
		return false, fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return true, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*apiResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Attestation network call")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &apiResponse{status: resp.StatusCode}, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	return &apiResponse{status: resp.StatusCode, body: raw}, nil
}

func errorMessage(raw []byte) string {
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return env.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
