package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/governance"
	"github.com/danmuck/expertmesh/internal/network"
	"github.com/danmuck/expertmesh/internal/stats"
	"github.com/danmuck/expertmesh/internal/testutil/testlog"
	"github.com/danmuck/expertmesh/internal/testutil/tlstest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := network.NewService(network.DefaultServiceConfig(),
		network.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	require.NoError(t, err)
	require.NoError(t, svc.Bootstrap(context.Background()))

	cfg := Config{NodeID: "test-node", RateLimitPerMinute: 600, RateLimitBurst: 50}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, svc)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test-node", decode[map[string]any](t, rec)["node"])

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "expertmesh_")
}

func TestProviderRoutes(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Providers []map[string]any `json:"providers"`
	}](t, rec)
	assert.Len(t, listed.Providers, 4)

	rec = do(t, s, http.MethodGet, "/providers/python-code-expert", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Python Code Expert", decode[map[string]any](t, rec)["name"])

	rec = do(t, s, http.MethodGet, "/providers/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPut, "/providers/blockchain-expert/status", map[string]string{"status": "inactive"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodPut, "/providers/blockchain-expert/status", map[string]string{"status": "retired"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/providers", nil)
	listed = decode[struct {
		Providers []map[string]any `json:"providers"`
	}](t, rec)
	assert.Len(t, listed.Providers, 3)

	rec = do(t, s, http.MethodGet, "/providers?status=all", nil)
	listed = decode[struct {
		Providers []map[string]any `json:"providers"`
	}](t, rec)
	assert.Len(t, listed.Providers, 4)
}

func TestProviderStatusRequiresAdminToken(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, func(cfg *Config) { cfg.AdminToken = "operator-secret" })
	path := "/providers/creative-writing-expert/status"

	rec := do(t, s, http.MethodPut, path, map[string]string{"status": "inactive"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	raw, err := json.Marshal(map[string]string{"status": "inactive"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPut, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer operator-secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "inactive", decode[map[string]any](t, rec)["status"])

	rec = do(t, s, http.MethodGet, "/providers/creative-writing-expert", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitQueryRoute(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/queries", map[string]any{
		"id":      "krebs",
		"text":    "Write a poem about the Krebs cycle in Python code",
		"maxCost": 5.0,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[execution.QueryResult](t, rec)
	assert.True(t, result.Success)
	assert.InDelta(t, 1.6, result.TotalCost, 1e-9)
	assert.Len(t, result.Selections, 3)

	rec = do(t, s, http.MethodGet, "/queries/krebs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodGet, "/queries/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/queries", map[string]any{
		"text":    "Write a poem about the Krebs cycle in Python code",
		"maxCost": 0.01,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decode[execution.QueryResult](t, rec)
	assert.False(t, result.Success)
	assert.Equal(t, execution.NoSuitableExperts, result.Error)

	rec = do(t, s, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[stats.Snapshot](t, rec)
	assert.Equal(t, 2, snap.TotalQueries)
	assert.Equal(t, 1, snap.SuccessfulQueries)

	rec = do(t, s, http.MethodGet, "/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0x1234567890abcdef1234567890abcdef12345678")
}

func TestSubmitQueryRejectsMalformedRequests(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, nil)

	for name, body := range map[string]any{
		"missing text":     map[string]any{"maxCost": 1.0},
		"missing maxCost":  map[string]any{"text": "python"},
		"negative maxCost": map[string]any{"text": "python", "maxCost": -1},
		"wrong type":       map[string]any{"text": "python", "maxCost": "lots"},
	} {
		rec := do(t, s, http.MethodPost, "/queries", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestQueryRateLimit(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, func(c *Config) {
		c.RateLimitPerMinute = 1
		c.RateLimitBurst = 2
	})

	body := map[string]any{"text": "python script", "maxCost": 1.0}
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/queries", body).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/queries", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodPost, "/queries", body).Code)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/providers", nil).Code)
}

func TestProposalLifecycleRoutes(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/proposals", map[string]any{
		"proposer": "alice",
		"provider": map[string]any{
			"name":            "Rust Expert",
			"providerAddress": "0xrust",
			"capabilities":    []string{"rust", "code_generation"},
			"pricing":         map[string]any{"costPerCall": 0.6, "currency": "USDC"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	proposal := decode[governance.Proposal](t, rec)
	assert.Equal(t, governance.StatusPending, proposal.Status)

	rec = do(t, s, http.MethodGet, "/proposals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), proposal.ID)

	rec = do(t, s, http.MethodPost, "/proposals/"+proposal.ID+"/votes", map[string]any{"voter": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var last governance.VoteResult
	for i := 0; i < governance.Quorum; i++ {
		rec = do(t, s, http.MethodPost, "/proposals/"+proposal.ID+"/votes", map[string]any{
			"voter":   fmt.Sprintf("voter-%d", i),
			"support": i < 8,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		last = decode[governance.VoteResult](t, rec)
	}
	assert.True(t, last.Resolved)
	assert.Equal(t, governance.StatusApproved, last.Proposal.Status)
	require.NotNil(t, last.Provider)

	rec = do(t, s, http.MethodPost, "/proposals/"+proposal.ID+"/votes", map[string]any{"voter": "late", "support": true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodGet, "/providers/"+last.Provider.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/proposals/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/proposals", map[string]any{"proposer": "alice", "provider": map[string]any{"name": "x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/proposals?status=all", nil)
	assert.True(t, strings.Contains(rec.Body.String(), `"approved"`))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, func(c *Config) { c.ListenAddr = "127.0.0.1:0" })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeTLS(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, "expertmesh-test-ca")
	certFile, keyFile := ca.IssueServerCert(t, dir, "127.0.0.1")
	s := newTestServer(t, func(c *Config) {
		c.TLSCertFile = certFile
		c.TLSKeyFile = keyFile
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	transport := &http.Transport{TLSClientConfig: ca.ClientConfig()}
	client := &http.Client{Transport: transport, Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("https://%s/health", ln.Addr().String()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	transport.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
