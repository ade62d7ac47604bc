package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/stylemesh/artifact"
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/runner"
	"github.com/hupe1980/stylemesh/session"
)

// Provider submits a prompt to an agent under a session and streams the
// resulting events. The events channel is closed before the error channel,
// which carries at most one error.
type Provider interface {
	Submit(ctx context.Context, agent core.Agent, sessionID string, prompt core.Content) (<-chan core.Event, <-chan error, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, agent core.Agent, sessionID string, prompt core.Content) (<-chan core.Event, <-chan error, error)

// Submit implements Provider.
func (f ProviderFunc) Submit(ctx context.Context, agent core.Agent, sessionID string, prompt core.Content) (<-chan core.Event, <-chan error, error) {
	return f(ctx, agent, sessionID, prompt)
}

// RunnerProviderOptions configures a RunnerProvider.
type RunnerProviderOptions struct {
	SessionStore    core.SessionStore
	ArtifactStore   core.ArtifactStore
	MaxModelCalls   int
	EventBufferSize int
	Logger          logging.Logger
}

// RunnerProvider executes submissions through one runner per agent. Each
// submission gets its own store session, deleted once the stream ends.
type RunnerProvider struct {
	opts RunnerProviderOptions

	mu      sync.Mutex
	runners map[core.Agent]*runner.Runner
}

var _ Provider = (*RunnerProvider)(nil)

// NewRunnerProvider creates a RunnerProvider with in-memory stores by default.
func NewRunnerProvider(optFns ...func(o *RunnerProviderOptions)) *RunnerProvider {
	opts := RunnerProviderOptions{
		MaxModelCalls:   25,
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}

	return &RunnerProvider{opts: opts, runners: make(map[core.Agent]*runner.Runner)}
}

// Submit implements Provider.
func (p *RunnerProvider) Submit(ctx context.Context, agent core.Agent, sessionID string, prompt core.Content) (<-chan core.Event, <-chan error, error) {
	// Identical concurrent invocations share a logical session id, so the
	// store key carries a per-submission suffix.
	key := sessionID + ":" + core.NewID()

	if _, err := p.opts.SessionStore.Create(key); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	_, events, errs, err := p.runnerFor(agent).Run(ctx, key, prompt)
	if err != nil {
		_ = p.opts.SessionStore.Delete(key)
		return nil, nil, err
	}

	outEvents := make(chan core.Event, p.opts.EventBufferSize)
	outErrs := make(chan error, 1)

	go func() {
		defer close(outErrs)
		defer func() {
			if err := p.opts.SessionStore.Delete(key); err != nil {
				p.opts.Logger.Warn("provider.session.delete_failed", "session_id", key, "error", err.Error())
			}
		}()

		for ev := range events {
			select {
			case outEvents <- ev:
			case <-ctx.Done():
			}
		}

		close(outEvents)

		if err, ok := <-errs; ok && err != nil {
			outErrs <- err
		}
	}()

	return outEvents, outErrs, nil
}

func (p *RunnerProvider) runnerFor(agent core.Agent) *runner.Runner {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.runners[agent]; ok {
		return r
	}

	r := runner.New(agent, func(o *runner.Options) {
		o.SessionStore = p.opts.SessionStore
		o.ArtifactStore = p.opts.ArtifactStore
		o.MaxModelCalls = p.opts.MaxModelCalls
		o.EventBufferSize = p.opts.EventBufferSize
		o.Logger = p.opts.Logger
	})
	p.runners[agent] = r

	return r
}
