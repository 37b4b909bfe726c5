package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddlewareRecordsRequestCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	engine := gin.New()
	engine.Use(m.Middleware())
	engine.GET("/songs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/songs/abc", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	m.Handler()(newGinContext(metricsRec, metricsReq))

	body := metricsRec.Body.String()
	if !strings.Contains(body, "openkaraoke_http_requests_total") {
		t.Fatal("expected exposition format to contain the requests-total metric")
	}
	if !strings.Contains(body, `endpoint="/songs/:id"`) {
		t.Fatal("expected the matched route template, not the raw path, as a label")
	}
}

func newGinContext(w http.ResponseWriter, r *http.Request) *gin.Context {
	c, _ := gin.CreateTestContextOnly(w, gin.New())
	c.Request = r
	return c
}
