package governance

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Registrar is the registry surface governance mutates on approval.
type Registrar interface {
	Register(p experts.Provider) (experts.Provider, error)
}

// Config wires a Module. Zero values take the package defaults.
type Config struct {
	Registry          Registrar
	Now               func() time.Time
	NewID             func() string
	Quorum            int
	ApprovalThreshold float64
	VotingPeriod      time.Duration

	// UniqueVoters rejects a second ballot from the same voter on one proposal.
	UniqueVoters bool
}

type proposalEntry struct {
	mu     sync.Mutex
	p      Proposal
	voters map[string]struct{}
}

// Module owns the proposal table.
type Module struct {
	registry     Registrar
	now          func() time.Time
	newID        func() string
	quorum       int
	threshold    float64
	period       time.Duration
	uniqueVoters bool

	mu        sync.RWMutex
	order     []string
	proposals map[string]*proposalEntry
}

func NewModule(cfg Config) (*Module, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("governance: registry is required")
	}
	m := &Module{
		registry:     cfg.Registry,
		now:          cfg.Now,
		newID:        cfg.NewID,
		quorum:       cfg.Quorum,
		threshold:    cfg.ApprovalThreshold,
		period:       cfg.VotingPeriod,
		uniqueVoters: cfg.UniqueVoters,
		proposals:    make(map[string]*proposalEntry),
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.quorum <= 0 {
		m.quorum = Quorum
	}
	if m.threshold <= 0 {
		m.threshold = ApprovalThreshold
	}
	if m.period <= 0 {
		m.period = VotingPeriod
	}
	return m, nil
}

// Submit opens a pending proposal with a deadline one voting period from now.
func (m *Module) Submit(proposer string, spec experts.Spec) (Proposal, error) {
	proposer = strings.TrimSpace(proposer)
	if proposer == "" {
		return Proposal{}, fmt.Errorf("%w: proposer is required", ErrInvalidSpec)
	}
	spec = spec.Normalize()
	if err := experts.ValidateSpec(spec); err != nil {
		return Proposal{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	now := m.now()
	p := Proposal{
		ID:             m.newID(),
		Proposer:       proposer,
		Spec:           spec,
		VotingDeadline: now.Add(m.period),
		Status:         StatusPending,
		CreatedAt:      now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proposals[p.ID]; ok {
		return Proposal{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidSpec, p.ID)
	}
	m.proposals[p.ID] = &proposalEntry{p: p, voters: make(map[string]struct{})}
	m.order = append(m.order, p.ID)

	log.Info().
		Str("proposal_id", p.ID).
		Str("proposer", proposer).
		Str("provider_name", spec.Name).
		Time("deadline", p.VotingDeadline).
		Msg("governance.Module.Submit")
	return p.clone(), nil
}

// Vote records one ballot. The ballot that brings the total to quorum resolves
// the proposal, registering the provider on approval, before the lock is released.
func (m *Module) Vote(proposalID, voter string, support bool) (VoteResult, error) {
	voter = strings.TrimSpace(voter)
	if voter == "" {
		return VoteResult{}, fmt.Errorf("%w: voter is required", ErrInvalidBallot)
	}
	e, err := m.entry(proposalID)
	if err != nil {
		return VoteResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.p.Status != StatusPending {
		return VoteResult{}, fmt.Errorf("%w: proposal %s is %s", ErrVotingClosed, e.p.ID, e.p.Status)
	}
	if m.now().After(e.p.VotingDeadline) {
		return VoteResult{}, fmt.Errorf("%w: proposal %s deadline %s", ErrVotingExpired, e.p.ID, e.p.VotingDeadline.Format(time.RFC3339))
	}
	if m.uniqueVoters {
		if _, ok := e.voters[voter]; ok {
			return VoteResult{}, fmt.Errorf("%w: %s on %s", ErrDuplicateVote, voter, e.p.ID)
		}
	}

	next := e.p
	if support {
		next.VotesFor++
	} else {
		next.VotesAgainst++
	}
	if next.VotesFor < 0 || next.VotesAgainst < 0 {
		panic(fmt.Sprintf("governance: negative vote count on %s", next.ID))
	}

	result := VoteResult{}
	if next.TotalVotes() >= m.quorum {
		resolved, provider, err := m.resolve(next)
		if err != nil {
			return VoteResult{}, err
		}
		next = resolved
		result.Resolved = true
		result.Provider = provider
	}

	e.p = next
	e.voters[voter] = struct{}{}
	observability.RecordVote(support)
	if result.Resolved {
		observability.RecordProposalResolved(string(next.Status))
	}
	log.Info().
		Str("proposal_id", next.ID).
		Str("voter", voter).
		Bool("support", support).
		Int("votes_for", next.VotesFor).
		Int("votes_against", next.VotesAgainst).
		Str("status", string(next.Status)).
		Msg("governance.Module.Vote")

	result.Proposal = next.clone()
	return result, nil
}

// resolve computes the terminal status for a proposal at quorum. On approval the
// provider is registered first so a registry failure leaves the proposal untouched.
func (m *Module) resolve(p Proposal) (Proposal, *experts.Provider, error) {
	now := m.now()
	if p.ApprovalRate() < m.threshold {
		p.Status = StatusRejected
		p.ResolvedAt = now
		return p, nil, nil
	}

	registered, err := m.registry.Register(experts.Provider{
		ID:          providerIDFor(p.ID),
		Spec:        p.Spec,
		Performance: experts.DefaultPerformance(),
		Status:      experts.StatusActive,
		CreatedAt:   now,
	})
	if err != nil {
		return Proposal{}, nil, fmt.Errorf("governance: register approved provider: %w", err)
	}
	p.Status = StatusApproved
	p.ResolvedAt = now
	p.ProviderID = registered.ID
	return p, &registered, nil
}

// SweepExpired rejects pending proposals whose deadline has passed and returns them.
func (m *Module) SweepExpired() []Proposal {
	now := m.now()
	var swept []Proposal
	for _, e := range m.entries() {
		e.mu.Lock()
		if e.p.Status == StatusPending && now.After(e.p.VotingDeadline) {
			e.p.Status = StatusRejected
			e.p.ResolvedAt = now
			swept = append(swept, e.p.clone())
			observability.RecordProposalResolved(string(StatusRejected))
		}
		e.mu.Unlock()
	}
	if len(swept) > 0 {
		log.Info().Int("count", len(swept)).Msg("governance.Module.SweepExpired")
	}
	return swept
}

// Get returns a proposal by id.
func (m *Module) Get(proposalID string) (Proposal, error) {
	e, err := m.entry(proposalID)
	if err != nil {
		return Proposal{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.clone(), nil
}

// ListPending returns pending proposals in submission order.
func (m *Module) ListPending() []Proposal {
	return m.list(func(p Proposal) bool { return p.Status == StatusPending })
}

// List returns every proposal in submission order.
func (m *Module) List() []Proposal {
	return m.list(nil)
}

// Restore loads a persisted proposal. Existing ids are left unchanged.
func (m *Module) Restore(p Proposal) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: restore without id", ErrInvalidSpec)
	}
	if p.VotesFor < 0 || p.VotesAgainst < 0 {
		return fmt.Errorf("%w: negative votes on %s", ErrInvalidSpec, p.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proposals[p.ID]; ok {
		return nil
	}
	m.proposals[p.ID] = &proposalEntry{p: p.clone(), voters: make(map[string]struct{})}
	m.order = append(m.order, p.ID)
	return nil
}

func (m *Module) list(keep func(Proposal) bool) []Proposal {
	var out []Proposal
	for _, e := range m.entries() {
		e.mu.Lock()
		p := e.p.clone()
		e.mu.Unlock()
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *Module) entries() []*proposalEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*proposalEntry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.proposals[id])
	}
	return out
}

func (m *Module) entry(proposalID string) (*proposalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, proposalID)
	}
	return e, nil
}

func providerIDFor(proposalID string) string {
	return "expert-" + strings.ToLower(strings.TrimSpace(proposalID))
}
