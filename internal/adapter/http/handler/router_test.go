package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clarity-storefront/internal/adapter/metrics"
	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerMocks struct {
	tokens       *mocks.MockTokenService
	carts        *mocks.MockCartService
	checkout     *mocks.MockCheckoutService
	attestations *mocks.MockAttestationService
	limiter      *mocks.MockRateLimiter
}

func setupTestRouter(t *testing.T, withLimiter bool) (*gin.Engine, routerMocks, *metrics.Prometheus) {
	ctrl := gomock.NewController(t)
	m := routerMocks{
		tokens:       mocks.NewMockTokenService(ctrl),
		carts:        mocks.NewMockCartService(ctrl),
		checkout:     mocks.NewMockCheckoutService(ctrl),
		attestations: mocks.NewMockAttestationService(ctrl),
		limiter:      mocks.NewMockRateLimiter(ctrl),
	}
	prom := metrics.NewPrometheus("test")

	deps := RouterDeps{
		Tokens:       m.tokens,
		Carts:        m.carts,
		Prices:       mocks.NewMockPriceService(ctrl),
		Checkout:     m.checkout,
		Chain:        mocks.NewMockChainDataService(ctrl),
		Attestations: m.attestations,
		Loyalty:      mocks.NewMockLoyaltyService(ctrl),
		Metrics:      prom,
		Mode:         gin.TestMode,
		Logger:       zerolog.Nop(),
	}
	if withLimiter {
		deps.RateLimiter = m.limiter
	}
	return SetupRouter(deps), m, prom
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_SessionRoutesRequireToken(t *testing.T) {
	r, _, _ := setupTestRouter(t, false)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/cart/items"},
		{http.MethodDelete, "/api/v1/cart"},
		{http.MethodGet, "/api/v1/checkout/quote"},
		{http.MethodPost, "/api/v1/checkout"},
		{http.MethodGet, "/api/v1/checkout/history"},
		{http.MethodGet, "/api/v1/checkout/" + uuid.NewString()},
	} {
		w := serve(r, route.method, route.path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestRouter_SessionCartRoundTrip(t *testing.T) {
	r, m, _ := setupTestRouter(t, false)
	sessionID := uuid.New()

	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{SessionID: sessionID}, nil)
	m.carts.EXPECT().GetCart(gomock.Any(), sessionID).Return(domain.NewCart(), nil)

	w := serve(r, http.MethodGet, "/api/v1/cart", "tok")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"total_usd":"0.00"`)
}

func TestRouter_StaticAttestationRoutesWinOverID(t *testing.T) {
	r, m, _ := setupTestRouter(t, false)

	m.attestations.EXPECT().Template(gomock.Any()).Return(&domain.AttestationData{}, nil)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/attestations/template", "").Code)

	m.attestations.EXPECT().VerifySchema(gomock.Any()).Return(&ports.SchemaStatus{}, nil)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/attestations/schema", "").Code)

	m.attestations.EXPECT().Get(gomock.Any(), "0x2a").Return(&domain.AttestationRecord{ID: "0x2a"}, nil)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/attestations/0x2a", "").Code)
}

func TestRouter_HistoryIsNotACheckoutID(t *testing.T) {
	r, m, _ := setupTestRouter(t, false)
	sessionID := uuid.New()

	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{SessionID: sessionID}, nil)
	m.checkout.EXPECT().ListCheckouts(gomock.Any(), sessionID, 10).Return([]domain.CheckoutSession{}, nil)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/checkout/history", "tok").Code)
}

func TestRouter_CheckoutRateLimited(t *testing.T) {
	r, m, _ := setupTestRouter(t, true)
	sessionID := uuid.New()

	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{SessionID: sessionID}, nil)
	m.limiter.EXPECT().Allow(gomock.Any(), "session:"+sessionID.String()+":checkout", int64(10), time.Minute).
		Return(&ports.RateLimitResult{Allowed: false, Limit: 10, ResetAt: time.Now().Add(30 * time.Second).Unix()}, nil)

	w := serve(r, http.MethodPost, "/api/v1/checkout", "tok")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_ProductsAndMetrics(t *testing.T) {
	r, _, _ := setupTestRouter(t, false)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/products", "").Code)

	w := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `test_http_requests_total{method="GET",route="/api/v1/products",status="200"} 1`), body)
}

func TestRouter_Health(t *testing.T) {
	r, _, _ := setupTestRouter(t, false)
	w := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}
