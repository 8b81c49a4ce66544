package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/observability"
	"github.com/danmuck/expertmesh/internal/routing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSimulationFactor divides a provider's average latency to get the
// simulated invocation delay. It is a tuning knob, not a physical model.
const DefaultSimulationFactor = 10

var ErrExecutionFailure = errors.New("execution failed")

// CallRecorder is the registry surface the coordinator needs.
type CallRecorder interface {
	Get(id string) (experts.Provider, error)
	IncrementCallCount(id string) (experts.Provider, error)
}

// Crediter is the ledger surface the coordinator needs.
type Crediter interface {
	Credit(address string, amount float64) (float64, error)
}

// Config wires a Coordinator. Nil optional fields take defaults.
type Config struct {
	Registry         CallRecorder
	Ledger           Crediter
	Responder        Responder
	Digester         Digester
	History          *History
	SimulationFactor int

	// Sleep waits for the simulated delay; it must return early with ctx.Err().
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Coordinator runs accepted selections in rank order.
type Coordinator struct {
	registry  CallRecorder
	ledger    Crediter
	responder Responder
	digester  Digester
	history   *History
	factor    int
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
	tracer    trace.Tracer
}

func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("execution: registry is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("execution: ledger is required")
	}
	c := &Coordinator{
		registry:  cfg.Registry,
		ledger:    cfg.Ledger,
		responder: cfg.Responder,
		digester:  cfg.Digester,
		history:   cfg.History,
		factor:    cfg.SimulationFactor,
		sleep:     cfg.Sleep,
		now:       cfg.Now,
		tracer:    observability.Tracer(),
	}
	if c.responder == nil {
		c.responder = TemplateResponder{}
	}
	if c.digester == nil {
		c.digester = XXHashDigester{}
	}
	if c.history == nil {
		c.history = NewHistory(0)
	}
	if c.factor <= 0 {
		c.factor = DefaultSimulationFactor
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// History exposes recorded results.
func (c *Coordinator) History() *History {
	return c.history
}

// SimulatedDelay is the wait applied for one provider invocation.
func (c *Coordinator) SimulatedDelay(p experts.Provider) time.Duration {
	if p.Performance.AverageLatencyMS <= 0 {
		return 0
	}
	return time.Duration(p.Performance.AverageLatencyMS) * time.Millisecond / time.Duration(c.factor)
}

// Run executes accepted selections and records the result. tags are the
// detected capabilities, carried into the result for callers.
func (c *Coordinator) Run(ctx context.Context, q routing.Query, tags []string, accepted []routing.Selection) QueryResult {
	started := c.now()
	ctx, span := c.tracer.Start(ctx, "execution.Run", trace.WithAttributes(
		attribute.String("query.id", q.ID),
		attribute.Int("query.selections", len(accepted)),
	))
	defer span.End()

	result := c.run(ctx, q, tags, accepted, started)
	c.history.Record(result)

	observability.RecordQuery(result.Success, result.TotalCost, time.Duration(result.ExecutionTimeMS)*time.Millisecond)
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
		log.Warn().
			Str("query_id", q.ID).
			Str("error", result.Error).
			Msg("execution.Coordinator.Run failed")
		return result
	}
	log.Info().
		Str("query_id", q.ID).
		Strs("providers", result.ProviderIDs()).
		Float64("total_cost", result.TotalCost).
		Int64("execution_ms", result.ExecutionTimeMS).
		Msg("execution.Coordinator.Run complete")
	return result
}

func (c *Coordinator) run(ctx context.Context, q routing.Query, tags []string, accepted []routing.Selection, started time.Time) QueryResult {
	if len(accepted) == 0 {
		return failureResult(q.ID, tags, NoSuitableExperts, started, c.now())
	}

	responses := make([]providerResponse, 0, len(accepted))
	for _, sel := range accepted {
		text, err := c.invoke(ctx, q, sel)
		if err != nil {
			reason := fmt.Errorf("%w: provider %s: %v", ErrExecutionFailure, sel.ProviderID, err)
			return failureResult(q.ID, tags, reason.Error(), started, c.now())
		}
		responses = append(responses, providerResponse{
			providerID: sel.ProviderID,
			name:       sel.ProviderName,
			text:       text,
		})
	}

	selections := append([]routing.Selection(nil), accepted...)
	result := QueryResult{
		QueryID:          q.ID,
		Success:          true,
		CombinedResponse: combine(responses),
		Selections:       selections,
		Capabilities:     tags,
		TotalCost:        routing.TotalCost(selections),
	}
	result.ProofDigest = digestHex(c.digester, q.ID, result.ProviderIDs())
	result.CompletedAt = c.now()
	result.ExecutionTimeMS = result.CompletedAt.Sub(started).Milliseconds()
	return result
}

// invoke simulates one provider call then applies its accounting.
func (c *Coordinator) invoke(ctx context.Context, q routing.Query, sel routing.Selection) (string, error) {
	ctx, span := c.tracer.Start(ctx, "execution.invoke", trace.WithAttributes(
		attribute.String("provider.id", sel.ProviderID),
		attribute.Float64("provider.cost", sel.EstimatedCost),
	))
	defer span.End()

	provider, err := c.registry.Get(sel.ProviderID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if err := c.sleep(ctx, c.SimulatedDelay(provider)); err != nil {
		span.RecordError(err)
		return "", err
	}
	text, err := c.responder.Respond(ctx, provider, q)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if _, err := c.registry.IncrementCallCount(provider.ID); err != nil {
		span.RecordError(err)
		return "", err
	}
	if _, err := c.ledger.Credit(provider.ProviderAddress, sel.EstimatedCost); err != nil {
		span.RecordError(err)
		return "", err
	}
	observability.RecordProviderCall(provider.ID, sel.EstimatedCost)
	log.Debug().
		Str("query_id", q.ID).
		Str("provider_id", provider.ID).
		Float64("credited", sel.EstimatedCost).
		Msg("execution.Coordinator.invoke complete")
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
