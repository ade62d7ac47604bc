package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/model"
)

// Options configures an Orchestrator.
type Options struct {
	// MaxAttempts is used when a call passes maxAttempts <= 0. Default 3.
	MaxAttempts int
	// BackoffUnit is multiplied by 2^attempt between attempts. Default 1s.
	BackoffUnit time.Duration
	// MinResponseLength is the shortest accepted reply in characters. Default 10.
	MinResponseLength int
	// RetryableMarkers override DefaultRetryableMarkers.
	RetryableMarkers []string
	// RefusalMarkers override DefaultRefusalMarkers.
	RefusalMarkers []string
	// Fallbacks maps an agent role to its canned reply.
	Fallbacks map[string]string
	// Sleep waits between attempts. It must return early with ctx.Err() on cancellation.
	Sleep    func(ctx context.Context, d time.Duration) error
	Logger   logging.Logger
	Recorder Recorder
}

// Result is the outcome of Run.
type Result struct {
	Text     string
	Attempts int
	// Fallback is set when Text is the role's canned reply.
	Fallback bool
}

// Orchestrator invokes agents through a Provider, retrying transient
// failures with exponential backoff and degrading to a per-role fallback.
// It holds no per-call state and is safe for concurrent use.
type Orchestrator struct {
	provider    Provider
	maxAttempts int
	backoffUnit time.Duration
	minLength   int
	classifier  *Classifier
	refusals    []string
	fallbacks   map[string]string
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *logging.ComponentLogger
	recorder    Recorder
}

// New creates an Orchestrator bound to provider.
func New(provider Provider, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxAttempts:       3,
		BackoffUnit:       time.Second,
		MinResponseLength: 10,
		Sleep:             Sleep,
		Logger:            logging.NoOpLogger{},
		Recorder:          Nop(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	refusals := opts.RefusalMarkers
	if len(refusals) == 0 {
		refusals = DefaultRefusalMarkers
	}

	lowered := make([]string, 0, len(refusals))
	for _, r := range refusals {
		lowered = append(lowered, strings.ToLower(r))
	}

	return &Orchestrator{
		provider:    provider,
		maxAttempts: opts.MaxAttempts,
		backoffUnit: opts.BackoffUnit,
		minLength:   opts.MinResponseLength,
		classifier:  NewClassifier(opts.RetryableMarkers),
		refusals:    lowered,
		fallbacks:   maps.Clone(opts.Fallbacks),
		sleep:       opts.Sleep,
		logger:      logging.NewComponentLogger(opts.Logger, "orchestrator"),
		recorder:    opts.Recorder,
	}
}

// Fallback returns the canned reply registered for role.
func (o *Orchestrator) Fallback(role string) (string, bool) {
	fb, ok := o.fallbacks[role]
	return fb, ok
}

// Invoke sends input to agent and returns the validated reply or, once every
// retryable attempt failed, the fallback of the agent's role. Failures that
// match no retryable marker are returned unchanged without further attempts.
func (o *Orchestrator) Invoke(ctx context.Context, agent core.Agent, input string, maxAttempts int) (string, error) {
	res, err := o.Run(ctx, agent, core.NewUserContent(input), maxAttempts)
	if err != nil {
		return "", err
	}

	return res.Text, nil
}

// Run is Invoke for multi-part content, reporting attempts and fallback use.
func (o *Orchestrator) Run(ctx context.Context, agent core.Agent, content core.Content, maxAttempts int) (Result, error) {
	if agent == nil {
		return Result{}, ErrNilAgent
	}

	if isEmpty(content) {
		return Result{}, ErrEmptyInput
	}

	if maxAttempts <= 0 {
		maxAttempts = o.maxAttempts
	}

	role := agent.Role()
	log := o.logger.With("agent", agent.Name(), "role", role)
	start := time.Now()

	for attempt := range maxAttempts {
		sessionID := ContentSessionID(content, attempt)

		log.Info("orchestrator.attempt.start",
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"session_id", sessionID,
			"has_tools", agent.HasTools(),
		)
		o.recorder.Attempt(role)

		text, err := o.attempt(ctx, log, agent, sessionID, content)
		if err == nil {
			log.Info("orchestrator.attempt.succeeded", "attempt", attempt+1, "chars", utf8.RuneCountInString(text))
			o.recorder.Invocation(role, "success", time.Since(start))

			return Result{Text: text, Attempts: attempt + 1}, nil
		}

		if ctx.Err() != nil {
			o.recorder.Invocation(role, "cancelled", time.Since(start))
			return Result{Attempts: attempt + 1}, ctx.Err()
		}

		class := o.classifier.Class(err)
		o.recorder.Failure(role, class)

		if !o.classifier.IsRetryable(err) {
			log.Error("orchestrator.attempt.terminal", "attempt", attempt+1, "error", err.Error())
			o.recorder.Invocation(role, "error", time.Since(start))

			return Result{Attempts: attempt + 1}, err
		}

		log.Warn("orchestrator.attempt.retryable", "attempt", attempt+1, "class", class, "error", err.Error())

		if attempt < maxAttempts-1 {
			delay := o.backoff(attempt)
			log.Debug("orchestrator.backoff", "attempt", attempt+1, "delay", delay)

			if err := o.sleep(ctx, delay); err != nil {
				o.recorder.Invocation(role, "cancelled", time.Since(start))
				return Result{Attempts: attempt + 1}, err
			}

			continue
		}

		if fb, ok := o.fallbacks[role]; ok {
			log.Warn("orchestrator.fallback.used", "attempts", maxAttempts, "last_error", err.Error())
			o.recorder.Fallback(role)
			o.recorder.Invocation(role, "fallback", time.Since(start))

			return Result{Text: fb, Attempts: maxAttempts, Fallback: true}, nil
		}

		log.Error("orchestrator.exhausted", "attempts", maxAttempts, "error", err.Error())
		o.recorder.Invocation(role, "exhausted", time.Since(start))

		return Result{Attempts: maxAttempts}, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, maxAttempts, err)
	}

	return Result{}, ErrAttemptsExhausted
}

// attempt performs one provider round trip and validates the final reply.
func (o *Orchestrator) attempt(ctx context.Context, log *logging.ComponentLogger, agent core.Agent, sessionID string, content core.Content) (string, error) {
	events, errs, err := o.provider.Submit(ctx, agent, sessionID, content)
	if err != nil {
		return "", err
	}

	var (
		final   *core.Event
		lastErr error
	)

	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			if calls := ev.GetFunctionCalls(); len(calls) > 0 {
				names := make([]string, 0, len(calls))
				for _, c := range calls {
					names = append(names, c.Name)
				}

				log.Debug("orchestrator.event.tool_calls", "session_id", sessionID, "tools", names)
			}

			if ev.IsFinalResponse() {
				final = &ev
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			if err != nil {
				lastErr = err
			}
		}
	}

	if lastErr != nil {
		return "", lastErr
	}

	if final == nil {
		return "", ErrNoFinalResponse
	}

	return o.validate(final.Text())
}

func (o *Orchestrator) validate(text string) (string, error) {
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < o.minLength {
		return "", fmt.Errorf("%w: %d characters", ErrResponseTooShort, n)
	}

	lower := strings.ToLower(text)
	for _, marker := range o.refusals {
		if strings.Contains(lower, marker) {
			return "", fmt.Errorf("%w: reply contains %q", ErrToolFailure, marker)
		}
	}

	return text, nil
}

func (o *Orchestrator) backoff(attempt int) time.Duration {
	return o.backoffUnit * time.Duration(1<<attempt)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isEmpty(c core.Content) bool {
	if strings.TrimSpace(model.ContentText(c)) != "" {
		return false
	}

	for _, p := range c.Parts {
		if _, ok := p.(core.FilePart); ok {
			return false
		}
	}

	return true
}
