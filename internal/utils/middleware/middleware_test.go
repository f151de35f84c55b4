package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpdf/server/internal/module/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		assert.NotEmpty(t, GetRequestID(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s *stubValidator) ValidateAccessToken(string) (*auth.Claims, error) {
	return s.claims, s.err
}

func TestRequireAuth_SetsOrgAndUser(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	validator := &stubValidator{claims: &auth.Claims{UserID: userID, OrgID: orgID, Email: "dev@example.com"}}

	r := gin.New()
	r.Use(RequireAuth(validator))
	r.GET("/me", func(c *gin.Context) {
		assert.Equal(t, userID, GetUserID(c))
		assert.Equal(t, orgID, GetOrgID(c))
		assert.True(t, IsAuthenticated(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AuthorizationHeader, BearerPrefix+"token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequireAuth(&stubValidator{}))
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	r := gin.New()
	r.Use(RequireAuth(&stubValidator{err: auth.ErrInvalidToken}))
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AuthorizationHeader, BearerPrefix+"bad")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestOptionalAuth_ContinuesWithoutToken(t *testing.T) {
	r := gin.New()
	r.Use(OptionalAuth(&stubValidator{}))
	r.GET("/me", func(c *gin.Context) {
		assert.False(t, IsAuthenticated(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdempotencyRequired_RejectsMissingKey(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyRequired())
	r.POST("/checkout", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_KEY_REQUIRED")
}

func TestIdempotencyRequired_AllowsGet(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyRequired())
	r.GET("/plans", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(nil))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
