package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/logger"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingAudit struct {
	logs []*models.AuditLog
	err  error
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return r.err
}

var testTokens = stubValidator{
	"super": {AdminID: "root", Role: models.RoleSuperAdmin},
	"admin": {AdminID: "a1", Role: models.RoleAdmin},
	"guest": {AdminID: "g1", Role: models.RoleGuest},
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(testTokens))
	router.GET("/things/:id", handlers...)
	router.POST("/things/:id", handlers...)
	return router
}

func do(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTSetsPrincipal(t *testing.T) {
	var principal *models.Principal
	var actor string
	router := newRouter(func(c *gin.Context) {
		principal = PrincipalFrom(c)
		actor = c.GetString(logger.ActorKey)
		c.Status(http.StatusNoContent)
	})

	rec := do(router, http.MethodGet, "/things/1", "admin")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, principal)
	assert.Equal(t, "a1", principal.AdminID)
	assert.True(t, principal.BatchScoped())
	assert.Equal(t, "a1", actor)
}

func TestJWTRejectsMissingOrInvalidToken(t *testing.T) {
	router := newRouter(func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/things/1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/things/1", "forged").Code)

	req := httptest.NewRequest(http.MethodGet, "/things/1", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRBAC(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	router := newRouter(RBAC(string(models.RoleSuperAdmin), "SELF"), ok)

	assert.Equal(t, http.StatusNoContent, do(router, http.MethodGet, "/things/a1", "super").Code)
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodGet, "/things/a1", "admin").Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/things/other", "admin").Code)

	writers := newRouter(RequireWriter(), ok)
	assert.Equal(t, http.StatusNoContent, do(writers, http.MethodPost, "/things/1", "admin").Code)
	assert.Equal(t, http.StatusForbidden, do(writers, http.MethodPost, "/things/1", "guest").Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	audit := &recordingAudit{}
	router := newRouter(Audit(audit, nil, models.AuditActionUpdate, "students"), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	do(router, http.MethodPost, "/things/s1", "admin")
	do(router, http.MethodPost, "/things/bad", "admin")

	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, "a1", *log.AdminID)
	assert.Equal(t, "s1", *log.ResourceID)
	assert.Equal(t, "students", log.Resource)
	require.NotNil(t, log.NewValues)
	assert.Contains(t, *log.NewValues, `"status":200`)
}

func TestAuditIgnoresStoreFailure(t *testing.T) {
	audit := &recordingAudit{err: errors.New("db down")}
	router := newRouter(Audit(audit, nil, models.AuditActionDelete, "students"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, do(router, http.MethodPost, "/things/s1", "super").Code)
}

func TestRateLimiterRefills(t *testing.T) {
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, 60)
	limiter.now = func() time.Time { return clock }

	assert.True(t, limiter.Allow("1.2.3.4"))
	assert.True(t, limiter.Allow("1.2.3.4"))
	assert.False(t, limiter.Allow("1.2.3.4"))
	assert.True(t, limiter.Allow("5.6.7.8"))

	clock = clock.Add(time.Second)
	assert.True(t, limiter.Allow("1.2.3.4"))
	assert.False(t, limiter.Allow("1.2.3.4"))
}

func TestRateLimiterSweepsOncePerIdleWindow(t *testing.T) {
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	start := clock
	limiter := NewRateLimiter(1, 60)
	limiter.maxBuckets = 2
	limiter.now = func() time.Time { return clock }

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	assert.Equal(t, start, limiter.lastSweep)

	clock = clock.Add(500 * time.Millisecond)
	limiter.Allow("10.0.0.3")
	assert.Equal(t, start, limiter.lastSweep)
	assert.Len(t, limiter.buckets, 3)

	clock = start.Add(2 * time.Second)
	limiter.Allow("10.0.0.4")
	assert.Equal(t, clock, limiter.lastSweep)
	assert.Len(t, limiter.buckets, 1)
	assert.Contains(t, limiter.buckets, "10.0.0.4")
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/login", NewRateLimiter(1, 1).Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/login", "").Code)
	rec := do(router, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
