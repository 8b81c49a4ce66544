package governance

import (
	"errors"
	"time"

	"github.com/danmuck/expertmesh/internal/experts"
)

// Quorum is the total vote count at which a proposal resolves.
const Quorum = 10

// ApprovalThreshold is the minimum votesFor/(votesFor+votesAgainst) to approve.
const ApprovalThreshold = 0.66

const VotingPeriod = 7 * 24 * time.Hour

var (
	ErrNotFound      = errors.New("proposal not found")
	ErrVotingClosed  = errors.New("voting closed")
	ErrVotingExpired = errors.New("voting expired")
	ErrInvalidSpec   = errors.New("invalid proposal")
	ErrDuplicateVote = errors.New("duplicate vote")
	ErrInvalidBallot = errors.New("invalid ballot")
)

// Status is the proposal lifecycle marker. Pending is the only non-terminal value.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Proposal asks the network to admit a provider built from Spec.
type Proposal struct {
	ID             string       `json:"id"`
	Proposer       string       `json:"proposer"`
	Spec           experts.Spec `json:"provider"`
	VotesFor       int          `json:"votesFor"`
	VotesAgainst   int          `json:"votesAgainst"`
	VotingDeadline time.Time    `json:"votingDeadline"`
	Status         Status       `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
	ResolvedAt     time.Time    `json:"resolvedAt,omitzero"`

	// ProviderID is set once an approved proposal has registered its provider.
	ProviderID string `json:"providerId,omitempty"`
}

func (p Proposal) TotalVotes() int {
	return p.VotesFor + p.VotesAgainst
}

// ApprovalRate is votesFor over total votes, or 0 with no votes.
func (p Proposal) ApprovalRate() float64 {
	total := p.TotalVotes()
	if total == 0 {
		return 0
	}
	return float64(p.VotesFor) / float64(total)
}

func (p Proposal) clone() Proposal {
	p.Spec.Capabilities = append([]string(nil), p.Spec.Capabilities...)
	return p
}

// VoteResult reports the proposal after a vote and, on approval, the admitted provider.
type VoteResult struct {
	Proposal Proposal          `json:"proposal"`
	Resolved bool              `json:"resolved"`
	Provider *experts.Provider `json:"provider,omitempty"`
}
