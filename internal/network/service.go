package network

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/expertmesh/internal/capability"
	"github.com/danmuck/expertmesh/internal/catalog"
	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/governance"
	"github.com/danmuck/expertmesh/internal/ledger"
	"github.com/danmuck/expertmesh/internal/observability"
	"github.com/danmuck/expertmesh/internal/routing"
	"github.com/danmuck/expertmesh/internal/stats"
	"github.com/danmuck/expertmesh/internal/store"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// persistTimeout bounds each write-through call. Persistence runs detached from
// the request context so a canceled caller still leaves durable state consistent.
const persistTimeout = 5 * time.Second

// Service is one expertmesh node: the registry, ledger, proposal table and
// query history plus the components that operate on them.
type Service struct {
	cfg  ServiceConfig
	opts options

	tagger      capability.Tagger
	registry    *experts.Registry
	router      *routing.Router
	policy      routing.SelectionPolicy
	ledger      *ledger.Ledger
	history     *execution.History
	coordinator *execution.Coordinator
	governance  *governance.Module
	stats       *stats.Aggregator
	tracer      trace.Tracer

	// persistMu orders snapshot-then-write so a stale snapshot never lands
	// after a newer one.
	persistMu sync.Mutex
}

// NewService wires a node from cfg. Call Bootstrap before serving.
func NewService(cfg ServiceConfig, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	digester, err := execution.NewDigester(cfg.Digest)
	if err != nil {
		return nil, err
	}

	registry := experts.NewRegistry()
	registry.SetNowFunc(o.now)
	credits := ledger.New()
	history := execution.NewHistory(cfg.HistoryLimit)

	coordinator, err := execution.NewCoordinator(execution.Config{
		Registry:         registry,
		Ledger:           credits,
		Responder:        o.responder,
		Digester:         digester,
		History:          history,
		SimulationFactor: cfg.SimulationFactor,
		Sleep:            o.sleep,
		Now:              o.now,
	})
	if err != nil {
		return nil, err
	}
	gov, err := governance.NewModule(governance.Config{
		Registry:     registry,
		Now:          o.now,
		NewID:        o.newID,
		UniqueVoters: cfg.UniqueVoters,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:         cfg,
		opts:        o,
		tagger:      o.tagger,
		registry:    registry,
		router:      routing.NewRouter(),
		policy:      o.policy,
		ledger:      credits,
		history:     history,
		coordinator: coordinator,
		governance:  gov,
		stats:       stats.NewAggregator(registry, history, credits, gov),
		tracer:      observability.Tracer(),
	}, nil
}

// Config returns the resolved node configuration.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Bootstrap restores persisted state, then seeds the catalog when the registry
// is still empty.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.restore(ctx); err != nil {
		return err
	}
	if s.registry.Count() > 0 {
		log.Info().
			Str("node", s.cfg.NodeID).
			Int("providers", s.registry.Count()).
			Msg("network.Service.Bootstrap restored")
		return nil
	}

	providers, err := catalog.Resolve(s.cfg.CatalogPath)
	if err != nil {
		return err
	}
	if _, err := catalog.Seed(s.registry, providers); err != nil {
		return err
	}
	for _, p := range s.registry.List() {
		s.persistProvider(p.ID)
	}
	log.Info().
		Str("node", s.cfg.NodeID).
		Str("catalog", s.cfg.CatalogPath).
		Int("providers", s.registry.Count()).
		Msg("network.Service.Bootstrap seeded")
	return nil
}

func (s *Service) restore(ctx context.Context) error {
	st := s.opts.store
	if st == nil {
		return nil
	}
	providers, err := st.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("restore providers: %w", err)
	}
	for _, p := range providers {
		if _, err := s.registry.Register(p); err != nil {
			return fmt.Errorf("restore provider %s: %w", p.ID, err)
		}
	}

	proposals, err := st.ListProposals(ctx)
	if err != nil {
		return fmt.Errorf("restore proposals: %w", err)
	}
	for _, p := range proposals {
		if err := s.governance.Restore(p); err != nil {
			return fmt.Errorf("restore proposal %s: %w", p.ID, err)
		}
	}

	credits, err := st.ListCredits(ctx)
	if err != nil {
		return fmt.Errorf("restore credits: %w", err)
	}
	for _, e := range credits {
		if err := s.ledger.Restore(e.Address, e.Amount); err != nil {
			return fmt.Errorf("restore credit %s: %w", e.Address, err)
		}
	}

	results, err := st.ListQueryResults(ctx, s.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("restore query results: %w", err)
	}
	for _, r := range results {
		s.history.Record(r)
	}
	return nil
}

// SubmitQuery tags, routes and executes one query. Routing and execution
// failures come back as an unsuccessful result, never as an error.
func (s *Service) SubmitQuery(ctx context.Context, q routing.Query) execution.QueryResult {
	q.ID = strings.TrimSpace(q.ID)
	if q.ID == "" {
		q.ID = s.opts.newID()
	}
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}
	ctx, span := s.tracer.Start(ctx, "network.SubmitQuery", trace.WithAttributes(
		attribute.String("query.id", q.ID),
		attribute.Float64("query.max_cost", q.MaxCost),
	))
	defer span.End()

	tags := s.tagger.Tag(q.Text)
	var ranked, accepted []routing.Selection
	if validBudget(q.MaxCost) {
		ranked = s.router.Score(q, tags, s.registry.ListActive())
		accepted = s.policy.Accept(ranked, q.MaxCost)
	} else {
		log.Warn().Str("query_id", q.ID).Float64("max_cost", q.MaxCost).Msg("network.Service.SubmitQuery invalid budget")
	}
	span.SetAttributes(
		attribute.StringSlice("query.capabilities", tags),
		attribute.Int("query.candidates", len(ranked)),
	)
	log.Debug().
		Str("query_id", q.ID).
		Strs("capabilities", tags).
		Int("candidates", len(ranked)).
		Int("accepted", len(accepted)).
		Msg("network.Service.SubmitQuery routed")

	result := s.coordinator.Run(ctx, q, tags, accepted)

	// Accounting may have been applied for a prefix of accepted even when the
	// query failed, so persist every accepted provider and its balance.
	for _, sel := range accepted {
		p, err := s.registry.Get(sel.ProviderID)
		if err != nil {
			continue
		}
		s.persistProvider(p.ID)
		s.persistCredit(p.ProviderAddress)
	}
	s.persist("query result", func(ctx context.Context, st store.Store) error {
		return st.PutQueryResult(ctx, result)
	})
	return result
}

// validBudget rejects NaN and negative budgets. +Inf is an unlimited budget.
func validBudget(maxCost float64) bool {
	return !math.IsNaN(maxCost) && maxCost >= 0
}

// QueryResult returns a recorded result by query id.
func (s *Service) QueryResult(queryID string) (execution.QueryResult, bool) {
	return s.history.Get(queryID)
}

// ListActiveProviders returns active providers in registration order.
func (s *Service) ListActiveProviders() []experts.Provider {
	return s.registry.ListActive()
}

// ListProviders returns every provider in registration order.
func (s *Service) ListProviders() []experts.Provider {
	return s.registry.List()
}

func (s *Service) GetProvider(id string) (experts.Provider, error) {
	return s.registry.Get(id)
}

// SetProviderStatus moves a provider between active, inactive and under review.
func (s *Service) SetProviderStatus(id string, status experts.Status) (experts.Provider, error) {
	p, err := s.registry.SetStatus(id, status)
	if err != nil {
		return experts.Provider{}, err
	}
	s.persistProvider(p.ID)
	log.Info().Str("provider_id", p.ID).Str("status", string(status)).Msg("network.Service.SetProviderStatus")
	return p, nil
}

func (s *Service) SubmitProposal(proposer string, spec experts.Spec) (governance.Proposal, error) {
	p, err := s.governance.Submit(proposer, spec)
	if err != nil {
		return governance.Proposal{}, err
	}
	s.persistProposal(p.ID)
	return p, nil
}

func (s *Service) Vote(proposalID, voter string, support bool) (governance.VoteResult, error) {
	res, err := s.governance.Vote(proposalID, voter, support)
	if err != nil {
		return governance.VoteResult{}, err
	}
	s.persistProposal(res.Proposal.ID)
	if res.Provider != nil {
		s.persistProvider(res.Provider.ID)
	}
	return res, nil
}

func (s *Service) GetProposal(proposalID string) (governance.Proposal, error) {
	return s.governance.Get(proposalID)
}

func (s *Service) ListPendingProposals() []governance.Proposal {
	return s.governance.ListPending()
}

func (s *Service) ListProposals() []governance.Proposal {
	return s.governance.List()
}

// GetNetworkStats returns a snapshot with the default top provider count.
func (s *Service) GetNetworkStats() stats.Snapshot {
	return s.stats.Snapshot(stats.DefaultTopProviders)
}

// Balances returns every credited address.
func (s *Service) Balances() []ledger.Entry {
	return s.ledger.Entries()
}

// SweepExpired rejects overdue proposals and persists them.
func (s *Service) SweepExpired() []governance.Proposal {
	swept := s.governance.SweepExpired()
	for _, p := range swept {
		s.persistProposal(p.ID)
	}
	return swept
}

// Run blocks until ctx is done, sweeping expired proposals and logging a
// heartbeat every sweep interval.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("node", s.cfg.NodeID).Msg("network.Service.Run shutdown")
			return nil
		case <-ticker.C:
			swept := s.SweepExpired()
			snap := s.GetNetworkStats()
			log.Info().
				Str("node", s.cfg.NodeID).
				Int("providers", snap.TotalProviders).
				Int("queries", snap.TotalQueries).
				Int("pending_proposals", snap.PendingProposals).
				Int("swept", len(swept)).
				Msg("network.Service.heartbeat")
		}
	}
}

// Close releases the store.
func (s *Service) Close() error {
	if s.opts.store == nil {
		return nil
	}
	return s.opts.store.Close()
}

// The persist* helpers read the current in-memory record under persistMu, so
// the last write for any key always carries the newest value.

func (s *Service) persistProvider(id string) {
	s.persistLocked("provider", func(ctx context.Context, st store.Store) error {
		p, err := s.registry.Get(id)
		if err != nil {
			return err
		}
		return st.PutProvider(ctx, p)
	})
}

func (s *Service) persistProposal(id string) {
	s.persistLocked("proposal", func(ctx context.Context, st store.Store) error {
		p, err := s.governance.Get(id)
		if err != nil {
			return err
		}
		return st.PutProposal(ctx, p)
	})
}

func (s *Service) persistCredit(address string) {
	if strings.TrimSpace(address) == "" {
		return
	}
	s.persistLocked("credit", func(ctx context.Context, st store.Store) error {
		return st.PutCredit(ctx, address, s.ledger.Balance(address))
	})
}

func (s *Service) persistLocked(kind string, write func(context.Context, store.Store) error) {
	if s.opts.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.persist(kind, write)
}

// persist failures are logged; the in-memory state stays authoritative.
func (s *Service) persist(kind string, write func(context.Context, store.Store) error) {
	st := s.opts.store
	if st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := write(ctx, st); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("kind", kind).Msg("network.Service.persist failed")
	}
}
