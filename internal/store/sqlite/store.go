// Package sqlite provides a SQLite-backed store.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/governance"
	"github.com/danmuck/expertmesh/internal/ledger"
	"github.com/danmuck/expertmesh/internal/store"
	"github.com/danmuck/expertmesh/internal/store/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists network state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

const providerColumns = `id, name, specialty, provider_address, model_hash, capabilities,
	cost_per_call, currency, total_calls, success_rate, average_latency_ms, user_rating,
	status, created_at, updated_at`

// PutProvider upserts one provider record.
func (s *Store) PutProvider(ctx context.Context, p experts.Provider) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("provider id is required")
	}
	caps, err := json.Marshal(p.Capabilities)
	if err != nil {
		return fmt.Errorf("encode capabilities: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO providers (`+providerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   specialty = excluded.specialty,
		   provider_address = excluded.provider_address,
		   model_hash = excluded.model_hash,
		   capabilities = excluded.capabilities,
		   cost_per_call = excluded.cost_per_call,
		   currency = excluded.currency,
		   total_calls = excluded.total_calls,
		   success_rate = excluded.success_rate,
		   average_latency_ms = excluded.average_latency_ms,
		   user_rating = excluded.user_rating,
		   status = excluded.status,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at`,
		p.ID,
		p.Name,
		p.Specialty,
		p.ProviderAddress,
		p.ModelHash,
		string(caps),
		p.Pricing.CostPerCall,
		string(p.Pricing.Currency),
		int64(p.Performance.TotalCalls),
		p.Performance.SuccessRate,
		p.Performance.AverageLatencyMS,
		p.Performance.UserRating,
		string(p.Status),
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put provider %s: %w", p.ID, err)
	}
	return nil
}

// GetProvider returns one provider by id.
func (s *Store) GetProvider(ctx context.Context, id string) (experts.Provider, error) {
	if err := s.ready(ctx); err != nil {
		return experts.Provider{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)
	p, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return experts.Provider{}, fmt.Errorf("%w: provider %s", store.ErrNotFound, id)
	}
	if err != nil {
		return experts.Provider{}, fmt.Errorf("get provider %s: %w", id, err)
	}
	return p, nil
}

// ListProviders returns providers in first-write order.
func (s *Store) ListProviders(ctx context.Context) ([]experts.Provider, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []experts.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProvider(row scanner) (experts.Provider, error) {
	var (
		p                    experts.Provider
		caps, currency, stat string
		totalCalls           int64
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.ProviderAddress,
		&p.ModelHash,
		&caps,
		&p.Pricing.CostPerCall,
		&currency,
		&totalCalls,
		&p.Performance.SuccessRate,
		&p.Performance.AverageLatencyMS,
		&p.Performance.UserRating,
		&stat,
		&createdAt,
		&updatedAt,
	); err != nil {
		return experts.Provider{}, err
	}
	if err := json.Unmarshal([]byte(caps), &p.Capabilities); err != nil {
		return experts.Provider{}, fmt.Errorf("decode capabilities: %w", err)
	}
	p.Pricing.Currency = experts.Currency(currency)
	p.Performance.TotalCalls = uint64(totalCalls)
	p.Status = experts.Status(stat)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

const proposalColumns = `id, proposer, spec, votes_for, votes_against, voting_deadline,
	status, created_at, resolved_at, provider_id`

// PutProposal upserts one proposal record.
func (s *Store) PutProposal(ctx context.Context, p governance.Proposal) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("proposal id is required")
	}
	spec, err := json.Marshal(p.Spec)
	if err != nil {
		return fmt.Errorf("encode proposal spec: %w", err)
	}
	var resolvedAt sql.NullInt64
	if !p.ResolvedAt.IsZero() {
		resolvedAt = sql.NullInt64{Int64: toMillis(p.ResolvedAt), Valid: true}
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO proposals (`+proposalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   proposer = excluded.proposer,
		   spec = excluded.spec,
		   votes_for = excluded.votes_for,
		   votes_against = excluded.votes_against,
		   voting_deadline = excluded.voting_deadline,
		   status = excluded.status,
		   created_at = excluded.created_at,
		   resolved_at = excluded.resolved_at,
		   provider_id = excluded.provider_id`,
		p.ID,
		p.Proposer,
		string(spec),
		p.VotesFor,
		p.VotesAgainst,
		toMillis(p.VotingDeadline),
		string(p.Status),
		toMillis(p.CreatedAt),
		resolvedAt,
		p.ProviderID,
	)
	if err != nil {
		return fmt.Errorf("put proposal %s: %w", p.ID, err)
	}
	return nil
}

// GetProposal returns one proposal by id.
func (s *Store) GetProposal(ctx context.Context, id string) (governance.Proposal, error) {
	if err := s.ready(ctx); err != nil {
		return governance.Proposal{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return governance.Proposal{}, fmt.Errorf("%w: proposal %s", store.ErrNotFound, id)
	}
	if err != nil {
		return governance.Proposal{}, fmt.Errorf("get proposal %s: %w", id, err)
	}
	return p, nil
}

// ListProposals returns proposals in first-write order.
func (s *Store) ListProposals(ctx context.Context) ([]governance.Proposal, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+proposalColumns+` FROM proposals ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []governance.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return out, nil
}

func scanProposal(row scanner) (governance.Proposal, error) {
	var (
		p                   governance.Proposal
		spec, stat          string
		deadline, createdAt int64
		resolvedAt          sql.NullInt64
	)
	if err := row.Scan(
		&p.ID,
		&p.Proposer,
		&spec,
		&p.VotesFor,
		&p.VotesAgainst,
		&deadline,
		&stat,
		&createdAt,
		&resolvedAt,
		&p.ProviderID,
	); err != nil {
		return governance.Proposal{}, err
	}
	if err := json.Unmarshal([]byte(spec), &p.Spec); err != nil {
		return governance.Proposal{}, fmt.Errorf("decode proposal spec: %w", err)
	}
	p.VotingDeadline = fromMillis(deadline)
	p.Status = governance.Status(stat)
	p.CreatedAt = fromMillis(createdAt)
	if resolvedAt.Valid {
		p.ResolvedAt = fromMillis(resolvedAt.Int64)
	}
	return p, nil
}

// PutCredit records the current balance of an address.
func (s *Store) PutCredit(ctx context.Context, address string, amount float64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("address is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO credits (address, amount) VALUES (?, ?)
		 ON CONFLICT(address) DO UPDATE SET amount = excluded.amount`,
		address, amount,
	)
	if err != nil {
		return fmt.Errorf("put credit %s: %w", address, err)
	}
	return nil
}

// ListCredits returns balances sorted by address.
func (s *Store) ListCredits(ctx context.Context) ([]ledger.Entry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT address, amount FROM credits ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.Address, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return out, nil
}

// PutQueryResult upserts one query result.
func (s *Store) PutQueryResult(ctx context.Context, r execution.QueryResult) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(r.QueryID) == "" {
		return fmt.Errorf("query id is required")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode query result: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO query_results (query_id, success, total_cost, completed_at, body)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(query_id) DO UPDATE SET
		   success = excluded.success,
		   total_cost = excluded.total_cost,
		   completed_at = excluded.completed_at,
		   body = excluded.body`,
		r.QueryID, r.Success, r.TotalCost, toMillis(r.CompletedAt), string(body),
	)
	if err != nil {
		return fmt.Errorf("put query result %s: %w", r.QueryID, err)
	}
	return nil
}

// ListQueryResults returns up to limit of the most recent results, oldest first.
func (s *Store) ListQueryResults(ctx context.Context, limit int) ([]execution.QueryResult, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT body FROM (
		   SELECT rowid AS seq, body FROM query_results ORDER BY rowid DESC LIMIT ?
		 ) ORDER BY seq ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list query results: %w", err)
	}
	defer rows.Close()

	var out []execution.QueryResult
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan query result: %w", err)
		}
		var r execution.QueryResult
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode query result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query results: %w", err)
	}
	return out, nil
}
