package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/expertmesh/internal/auth"
	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/governance"
	"github.com/danmuck/expertmesh/internal/ledger"
	"github.com/danmuck/expertmesh/internal/observability"
	"github.com/danmuck/expertmesh/internal/routing"
	"github.com/danmuck/expertmesh/internal/stats"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// Backend is the node surface the HTTP layer exposes.
type Backend interface {
	SubmitQuery(ctx context.Context, q routing.Query) execution.QueryResult
	QueryResult(queryID string) (execution.QueryResult, bool)
	ListActiveProviders() []experts.Provider
	ListProviders() []experts.Provider
	GetProvider(id string) (experts.Provider, error)
	SetProviderStatus(id string, status experts.Status) (experts.Provider, error)
	SubmitProposal(proposer string, spec experts.Spec) (governance.Proposal, error)
	Vote(proposalID, voter string, support bool) (governance.VoteResult, error)
	GetProposal(proposalID string) (governance.Proposal, error)
	ListPendingProposals() []governance.Proposal
	ListProposals() []governance.Proposal
	GetNetworkStats() stats.Snapshot
	Balances() []ledger.Entry
}

// Config is the HTTP slice of the node configuration.
type Config struct {
	NodeID             string
	ListenAddr         string
	CORSOrigins        []string
	RateLimitPerMinute int
	RateLimitBurst     int

	// AdminToken guards provider status changes. Empty leaves them open.
	AdminToken string

	TLSCertFile string
	TLSKeyFile  string
}

// Server serves Backend over HTTP.
type Server struct {
	cfg     Config
	backend Backend
	router  *gin.Engine
	limiter *rateLimiter
	admin   auth.Validator
	started time.Time
}

// New builds the engine and registers every route.
func New(cfg Config, backend Backend) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.NodeID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		backend: backend,
		router:  r,
		limiter: newRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		admin:   auth.ForToken(cfg.AdminToken),
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done. TLS is used when both cert and key
// files are configured.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	useTLS := s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != ""
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("node", s.cfg.NodeID).
			Str("addr", ln.Addr().String()).
			Bool("tls", useTLS).
			Msg("server.Serve")
		if useTLS {
			errCh <- srv.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Str("node", s.cfg.NodeID).Msg("server.Serve stopped")
	return nil
}

// requireAdmin rejects requests whose bearer token fails the admin validator.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.admin.Validate(auth.BearerToken(c.GetHeader("Authorization"))); err != nil {
			log.Warn().Str("client", c.ClientIP()).Str("path", c.FullPath()).Msg("server.requireAdmin denied")
			writeError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
