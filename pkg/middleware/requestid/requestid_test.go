package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (*httptest.ResponseRecorder, string, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var fromGin, fromCtx string
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, fromGin, fromCtx
}

func TestMiddlewareKeepsIncomingID(t *testing.T) {
	rec, fromGin, fromCtx := serve("req-123")
	assert.Equal(t, "req-123", rec.Header().Get(headerKey))
	assert.Equal(t, "req-123", fromGin)
	assert.Equal(t, "req-123", fromCtx)
}

func TestMiddlewareReplacesOversizedID(t *testing.T) {
	rec, fromGin, _ := serve(strings.Repeat("x", maxLength+1))
	assert.Len(t, fromGin, 36)
	assert.Equal(t, fromGin, rec.Header().Get(headerKey))
}

func TestFromContextEmpty(t *testing.T) {
	assert.Equal(t, "", FromContext(context.Background()))
}
