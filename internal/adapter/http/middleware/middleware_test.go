package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clarity-storefront/internal/core/ports"
	"clarity-storefront/internal/core/ports/mocks"
	"clarity-storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sessionRouter(tokens ports.TokenService) *gin.Engine {
	router := gin.New()
	router.GET("/test", SessionAuth(tokens, zerolog.Nop()), func(c *gin.Context) {
		id, ok := SessionID(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok, "session_id": id.String()})
	})
	return router
}

func TestSessionAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := sessionRouter(mocks.NewMockTokenService(ctrl))

	for _, header := range []string{"", "Bearer", "Basic abc", "bearer abc"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		assert.Equal(t, "AUTH_001", decodeError(t, w).ErrorCode)
	}
}

func TestSessionAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate("expired").Return(nil, errors.New("token is expired"))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()
	sessionRouter(tokens).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuth_SetsSessionID(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockTokenService(ctrl)
	sessionID := uuid.New()
	tokens.EXPECT().Validate("good").Return(&ports.TokenClaims{SessionID: sessionID}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	sessionRouter(tokens).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), sessionID.String())
}

func TestSessionID_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := SessionID(c)
	assert.False(t, ok)

	c.Set(CtxSessionID, "not-a-uuid")
	_, ok = SessionID(c)
	assert.False(t, ok)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) { response.OK(c, nil) })

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := w.Header().Get(HeaderRequestID)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Contains(t, w.Body.String(), id)
	})

	t.Run("reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, "edge-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "edge-123", w.Header().Get(HeaderRequestID))
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 200))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Len(t, w.Header().Get(HeaderRequestID), 36)
	})
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	router := gin.New()
	router.Use(RequestID(), RequestLogger(log))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for path, level := range map[string]string{"/ok": "info", "/bad": "warn", "/boom": "error"} {
		buf.Reset()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), path)
		assert.Equal(t, level, entry["level"], path)
		assert.Equal(t, path, entry["path"])
		assert.NotEmpty(t, entry["request_id"])
	}
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_001", decodeError(t, w).ErrorCode)
}

func TestMaxBodySize(t *testing.T) {
	router := gin.New()
	router.Use(MaxBodySize(8))
	router.POST("/test", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("well past eight bytes")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

type observation struct {
	route, method string
	status        int
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (r *recordingObserver) ObserveHTTP(route, method string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{route, method, status})
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	obs := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(obs))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, obs.seen, 2)
	assert.Equal(t, observation{"/items/:id", http.MethodGet, http.StatusNoContent}, obs.seen[0])
	assert.Equal(t, observation{"unmatched", http.MethodGet, http.StatusNotFound}, obs.seen[1])
}
