package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
)

func discardLogger() *zap.Logger { return zap.NewNop() }

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleErrorMapsKindToStatusAndEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContextOnly(rec, gin.New())

	HandleError(c, apperrors.NotFoundf("song", "song %q not found", "abc"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"RESOURCE_NOT_FOUND"`)
}

func TestHandleErrorDefaultsPlainErrorsToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContextOnly(rec, gin.New())

	HandleError(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
}

func TestCORSWildcardAllowsAnyOrigin(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS([]string{"*"}))
	engine.GET("/songs", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/songs", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnlistedOrigin(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS([]string{"https://allowed.example"}))
	engine.GET("/songs", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/songs", nil)
	req.Header.Set("Origin", "https://not-allowed.example")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDGeneratesWhenAbsentAndEchoesWhenPresent(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/songs", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/songs", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied", rec.Header().Get("X-Request-ID"))

	req2 := httptest.NewRequest(http.MethodGet, "/songs", nil)
	rec2 := httptest.NewRecorder()
	engine.ServeHTTP(rec2, req2)

	assert.NotEmpty(t, rec2.Header().Get("X-Request-ID"))
}

func TestRecoveryConvertsPanicToEnvelope(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery(discardLogger()))
	engine.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
