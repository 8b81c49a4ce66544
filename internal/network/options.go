package network

import (
	"context"
	"time"

	"github.com/danmuck/expertmesh/internal/capability"
	"github.com/danmuck/expertmesh/internal/execution"
	"github.com/danmuck/expertmesh/internal/routing"
	"github.com/danmuck/expertmesh/internal/store"
	"github.com/google/uuid"
)

type options struct {
	store     store.Store
	now       func() time.Time
	newID     func() string
	tagger    capability.Tagger
	policy    routing.SelectionPolicy
	responder execution.Responder
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option overrides a Service collaborator.
type Option func(*options)

// WithStore enables write-through persistence and restore on Bootstrap.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

func WithNowFunc(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDFunc sets the generator for query and proposal ids.
func WithIDFunc(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func WithTagger(t capability.Tagger) Option {
	return func(o *options) { o.tagger = t }
}

func WithPolicy(p routing.SelectionPolicy) Option {
	return func(o *options) { o.policy = p }
}

func WithResponder(r execution.Responder) Option {
	return func(o *options) { o.responder = r }
}

// WithSleep replaces the simulated invocation wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

func defaultOptions() options {
	return options{
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		tagger: capability.NewKeywordTagger(),
		policy: routing.GreedyPolicy{},
	}
}
