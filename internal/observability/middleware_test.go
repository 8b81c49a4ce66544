package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/expertmesh/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRequestMiddlewareLabelsRoutes(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(logger), RequestMetricsMiddleware("expertd-mw"))
	r.GET("/providers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	unmatched := httpRequests.WithLabelValues("expertd-mw", "GET", unmatchedRoute, "404")
	before := testutil.ToFloat64(unmatched)

	for _, path := range []string{"/providers/python-code-expert", "/random/a", "/random/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	matched := testutil.ToFloat64(httpRequests.WithLabelValues("expertd-mw", "GET", "/providers/:id", "200"))
	if matched != 1 {
		t.Fatalf("expected one matched request, got %v", matched)
	}
	if got := testutil.ToFloat64(unmatched) - before; got != 2 {
		t.Fatalf("expected unmatched paths to share one label, got %v", got)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected three log lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"resource_id":"python-code-expert"`) || !strings.Contains(lines[0], `"route":"/providers/:id"`) {
		t.Fatalf("unexpected matched log line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"warn"`) {
		t.Fatalf("expected 404 logged at warn: %s", lines[1])
	}
}
