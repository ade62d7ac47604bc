// Package workflow runs the fashion analysis pipeline in the background:
// analyze the photo, recommend outfits, visualize them and save the result.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/store"
	"github.com/hupe1980/stylemesh/stylist"
	"github.com/hupe1980/stylemesh/visual"
)

// Status of a workflow run.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DefaultStylePrompt styles the outfit visualizations.
const DefaultStylePrompt = "professional fashion photography, high quality, realistic lighting"

var (
	// ErrMissingFields is returned by Start for incomplete requests.
	ErrMissingFields = errors.New("missing required fields")
	// ErrNotFound is returned for unknown sessions.
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("workflow engine closed")
)

// Analyzer runs the fashion agents.
type Analyzer interface {
	AnalyzePhoto(ctx context.Context, req stylist.AnalysisRequest) (*stylist.Analysis, error)
	RecommendOutfits(ctx context.Context, req stylist.RecommendationRequest) (*stylist.Recommendations, error)
}

// Visualizer renders outfits onto the user's photo.
type Visualizer interface {
	GenerateMultiple(ctx context.Context, req visual.MultipleRequest) (*visual.MultipleResult, error)
}

// Request starts an analysis.
type Request struct {
	UserID          string         `json:"userId"`
	PhotoURL        string         `json:"photoUrl"`
	UserPreferences map[string]any `json:"userPreferences"`
	Occasion        string         `json:"occasion"`
	Constraints     string         `json:"constraints,omitempty"`
}

// Validate reports missing required fields.
func (r Request) Validate() error {
	var missing []string
	if r.UserID == "" {
		missing = append(missing, "userId")
	}
	if r.PhotoURL == "" {
		missing = append(missing, "photoUrl")
	}
	if r.UserPreferences == nil {
		missing = append(missing, "userPreferences")
	}
	if strings.TrimSpace(r.Occasion) == "" {
		missing = append(missing, "occasion")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	return nil
}

// Job is the state of a workflow run.
type Job struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"-"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Options configures an Engine.
type Options struct {
	// Concurrency bounds the number of pipelines running at once.
	Concurrency int64
	// Timeout bounds a single pipeline; 0 disables it.
	Timeout     time.Duration
	StylePrompt string
	Logger      logging.Logger
	Now         func() time.Time
}

// Engine schedules and tracks workflow runs.
type Engine struct {
	analyzer   Analyzer
	visualizer Visualizer
	repo       store.Repository
	opts       Options
	sem        *semaphore.Weighted
	logger     *logging.ComponentLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	jobs     map[string]*Job
	runs     map[string]*run
	reserved map[string]bool
	closed   bool
}

// run is a scheduled pipeline.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Engine. visualizer may be nil to skip visualization.
func New(analyzer Analyzer, visualizer Visualizer, repo store.Repository, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Concurrency: 4,
		Timeout:     5 * time.Minute,
		StylePrompt: DefaultStylePrompt,
		Logger:      logging.NoOpLogger{},
		Now:         time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		analyzer:   analyzer,
		visualizer: visualizer,
		repo:       repo,
		opts:       opts,
		sem:        semaphore.NewWeighted(opts.Concurrency),
		logger:     logging.NewComponentLogger(opts.Logger, "workflow"),
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]*Job),
		runs:       make(map[string]*run),
		reserved:   make(map[string]bool),
	}
}

// NewSessionID returns "<userID>-<unix millis>".
func NewSessionID(userID string, t time.Time) string {
	return fmt.Sprintf("%s-%d", userID, t.UnixMilli())
}

// Start validates req, schedules the pipeline and returns the session id.
// The pipeline outlives ctx; it is bound to the engine instead.
func (e *Engine) Start(ctx context.Context, req Request) (string, error) {
	return e.StartSession(ctx, "", req)
}

// Reserve claims a fresh session id for userID without starting a run.
// The id is skipped by later reservations until it is started or released,
// so callers can store inputs under it first.
func (e *Engine) Reserve(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: userId", ErrMissingFields)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", ErrClosed
	}

	sessionID, err := e.freeID(ctx, userID, e.opts.Now())
	if err != nil {
		return "", err
	}

	e.reserved[sessionID] = true

	return sessionID, nil
}

// Release gives back a reserved id that was never started.
func (e *Engine) Release(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.reserved, sessionID)
}

// freeID returns the first unused id at or after now, stepping one
// millisecond at a time. Callers must hold e.mu.
func (e *Engine) freeID(ctx context.Context, userID string, now time.Time) (string, error) {
	for {
		sessionID := NewSessionID(userID, now)

		if e.jobs[sessionID] == nil && !e.reserved[sessionID] {
			taken, err := e.persisted(ctx, userID, sessionID)
			if err != nil {
				return "", err
			}
			if !taken {
				return sessionID, nil
			}
		}

		now = now.Add(time.Millisecond)
	}
}

func (e *Engine) persisted(ctx context.Context, userID, sessionID string) (bool, error) {
	_, err := e.repo.GetResult(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", sessionID, err)
	}

	return true, nil
}

// StartSession is Start with a caller chosen session id, typically one
// obtained from Reserve. An empty id generates one. Ids already in use
// are rejected.
func (e *Engine) StartSession(ctx context.Context, sessionID string, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrClosed
	}

	now := e.opts.Now()
	switch {
	case sessionID == "":
		id, err := e.freeID(ctx, req.UserID, now)
		if err != nil {
			e.mu.Unlock()
			return "", err
		}
		sessionID = id
	case e.reserved[sessionID]:
		delete(e.reserved, sessionID)
	case e.jobs[sessionID] != nil:
		e.mu.Unlock()
		return "", fmt.Errorf("session %s already started", sessionID)
	default:
		taken, err := e.persisted(ctx, req.UserID, sessionID)
		if err != nil {
			e.mu.Unlock()
			return "", err
		}
		if taken {
			e.mu.Unlock()
			return "", fmt.Errorf("session %s already exists", sessionID)
		}
	}

	runCtx, cancel := context.WithCancel(e.ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}

	e.jobs[sessionID] = &Job{SessionID: sessionID, UserID: req.UserID, Status: StatusProcessing, StartedAt: now}
	e.runs[sessionID] = r
	e.wg.Add(1)
	e.mu.Unlock()

	e.logger.Info("workflow.started", "session_id", sessionID, "user_id", req.UserID, "occasion", req.Occasion)

	go e.execute(runCtx, r, sessionID, req)

	return sessionID, nil
}

func (e *Engine) execute(ctx context.Context, r *run, sessionID string, req Request) {
	defer e.wg.Done()
	defer func() {
		r.cancel()

		e.mu.Lock()
		if e.runs[sessionID] == r {
			delete(e.runs, sessionID)
		}
		e.mu.Unlock()

		close(r.done)
	}()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.finish(sessionID, err)
		return
	}
	defer e.sem.Release(1)

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	_, err := e.Run(ctx, sessionID, req)
	e.finish(sessionID, err)
}

func (e *Engine) finish(sessionID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, ok := e.jobs[sessionID]
	if !ok {
		return
	}

	job.FinishedAt = e.opts.Now()

	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		e.logger.Error("workflow.failed", "session_id", sessionID, "error", err.Error())
		return
	}

	// completed runs are served from the store
	delete(e.jobs, sessionID)
	e.logger.Info("workflow.completed", "session_id", sessionID, "duration", job.FinishedAt.Sub(job.StartedAt))
}

// Run executes the pipeline synchronously and saves the record.
func (e *Engine) Run(ctx context.Context, sessionID string, req Request) (*Record, error) {
	log := e.logger.WithSession(sessionID, "")

	analysis, err := e.analyzer.AnalyzePhoto(ctx, stylist.AnalysisRequest{
		PhotoURL:        req.PhotoURL,
		UserPreferences: req.UserPreferences,
		Occasion:        req.Occasion,
		Constraints:     req.Constraints,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze photo: %w", err)
	}
	log.Debug("workflow.step.completed", "step", "analyze-photo", "fallback", analysis.Fallback)

	budget, _ := req.UserPreferences["budget"].(string)

	recs, err := e.analyzer.RecommendOutfits(ctx, stylist.RecommendationRequest{
		AnalysisResult:  analysis.Analysis,
		UserPreferences: req.UserPreferences,
		Occasion:        req.Occasion,
		BudgetRange:     budget,
	})
	if err != nil {
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}
	log.Debug("workflow.step.completed", "step", "generate-recommendations", "fallback", recs.Fallback)

	record := &Record{
		UserID:          req.UserID,
		SessionID:       sessionID,
		OriginalPhoto:   req.PhotoURL,
		Analysis:        rawJSON(analysis.Analysis),
		Recommendations: rawJSON(recs.Recommendations),
		Visualizations:  []visual.OutfitVisualization{},
		Timestamp:       e.opts.Now(),
		UserPreferences: req.UserPreferences,
		Occasion:        req.Occasion,
		Constraints:     req.Constraints,
		Fallback:        analysis.Fallback || recs.Fallback,
	}

	record.Visualizations = e.visualize(ctx, log, sessionID, req.PhotoURL, record.Outfits())

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}

	if err := e.repo.SaveResult(ctx, &store.Result{
		SessionID: sessionID,
		UserID:    req.UserID,
		Occasion:  req.Occasion,
		Payload:   payload,
		CreatedAt: record.Timestamp,
	}); err != nil {
		return nil, fmt.Errorf("save results: %w", err)
	}
	log.Debug("workflow.step.completed", "step", "save-results")

	return record, nil
}

// visualize never fails the pipeline; errors yield an empty list.
func (e *Engine) visualize(ctx context.Context, log *logging.ComponentLogger, sessionID, photoURL string, outfits []stylist.Outfit) []visual.OutfitVisualization {
	if e.visualizer == nil || len(outfits) == 0 {
		return []visual.OutfitVisualization{}
	}

	res, err := e.visualizer.GenerateMultiple(ctx, visual.MultipleRequest{
		UserPhotoURL: photoURL,
		Outfits:      outfits,
		StylePrompt:  e.opts.StylePrompt,
		SessionID:    sessionID,
	})
	if err != nil {
		log.Warn("workflow.visualize.failed", "error", err.Error())
		return []visual.OutfitVisualization{}
	}

	log.Debug("workflow.step.completed", "step", "generate-visualizations", "total_generated", res.TotalGenerated)

	return res.Visualizations
}

// Status returns the state of a session owned by userID.
func (e *Engine) Status(ctx context.Context, userID, sessionID string) (*Job, error) {
	e.mu.Lock()
	job, ok := e.jobs[sessionID]
	if ok && job.UserID == userID {
		cp := *job
		e.mu.Unlock()
		return &cp, nil
	}
	e.mu.Unlock()

	res, err := e.repo.GetResult(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &Job{
		SessionID:  sessionID,
		UserID:     userID,
		Status:     StatusCompleted,
		FinishedAt: res.CreatedAt,
	}, nil
}

// Forget drops the tracked state of a session. A running pipeline is
// cancelled and awaited, so nothing is saved for the session afterwards.
// It reports whether the session was tracked.
func (e *Engine) Forget(ctx context.Context, sessionID string) (bool, error) {
	e.mu.Lock()
	_, tracked := e.jobs[sessionID]
	delete(e.jobs, sessionID)
	delete(e.reserved, sessionID)
	r := e.runs[sessionID]
	e.mu.Unlock()

	if r == nil {
		return tracked, nil
	}

	r.cancel()

	select {
	case <-r.done:
		return tracked, nil
	case <-ctx.Done():
		return tracked, ctx.Err()
	}
}

// Wait blocks until every scheduled run has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops accepting runs, cancels running ones and waits for them or ctx.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
