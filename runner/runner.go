package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/stylemesh/artifact"
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/session"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run (0 = unlimited).
	MaxModelCalls int
	// SessionStore persists conversation history and state.
	SessionStore core.SessionStore
	// ArtifactStore holds binary outputs of tools.
	ArtifactStore core.ArtifactStore
	// Logger receives structured runner logs.
	Logger logging.Logger
}

// Runner executes one agent against sessions of a session store: it creates
// the run context, streams events, applies their side effects and persists
// history. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	logger        logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

var _ core.Runner = (*Runner)(nil)

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   25,
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

	return &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		artifactStore:   opts.ArtifactStore,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Agent returns the agent driven by this runner.
func (r *Runner) Agent() core.Agent { return r.agent }

// Run starts an asynchronous invocation. The session must exist; an unknown
// id fails with an error wrapping core.ErrSessionNotFound. The events channel
// is closed before the error channel.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	sess.AddEvent(userEvent)

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		runID,
		core.InfoOf(r.agent),
		userContent,
		func(o *core.RunContextOptions) {
			o.MaxModelCalls = r.maxModelCalls
			o.Emit = agentEmit
			o.Resume = resumeCh
			o.Session = sess
			o.SessionStore = r.sessionStore
			o.ArtifactStore = r.artifactStore
			o.Logger = r.logger
		},
	)

	var agentErr error

	go func() {
		defer close(agentEmit)
		agentErr = r.runAgent(runCtx)
	}()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			cancel()
		}()

		procErr := r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh)
		if procErr != nil {
			cancel()
		}

		// Drain so the agent goroutine has finished before agentErr is read.
		for range agentEmit {
		}

		close(eventsCh)

		switch {
		case procErr != nil:
			errorsCh <- procErr
		case agentErr != nil:
			errorsCh <- fmt.Errorf("agent execution failed: %w", agentErr)
		}

		close(errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

func (r *Runner) runAgent(runCtx *core.RunContext) error {
	if err := r.agent.Start(runCtx); err != nil {
		return err
	}

	defer func() {
		if err := r.agent.Stop(runCtx); err != nil {
			r.logger.Warn("runner.agent.stop_failed", "agent", r.agent.Name(), "error", err.Error())
		}
	}()

	return r.agent.Run(runCtx)
}

// processEvents persists and forwards agent events until the agent closes
// its emit channel or the run is cancelled.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
) error {
	for {
		select {
		case <-runCtx.Done():
			return nil
		case ev, ok := <-agentEmit:
			if !ok {
				return nil
			}

			if err := r.applyEventActions(sessionID, ev); err != nil {
				return fmt.Errorf("failed to process event actions: %w", err)
			}

			if !ev.IsPartial() {
				if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
					return fmt.Errorf("failed to append event to session: %w", err)
				}
			}

			select {
			case <-runCtx.Done():
				return nil
			case eventsCh <- ev:
				r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "session_id", sessionID, "partial", ev.IsPartial())
			}

			if !ev.IsPartial() {
				select {
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (r *Runner) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	for id, size := range ev.Actions.ArtifactDelta {
		r.logger.Debug("runner.event.artifact", "artifact_id", id, "bytes", size, "session_id", sessionID)
	}

	return nil
}
