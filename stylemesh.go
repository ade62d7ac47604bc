// Package stylemesh assembles the fashion stylist: it builds one agent per
// catalogue entry, routes every call through the retrying orchestrator and
// exposes the stylist service on top.
//
// Most applications interact with this package by:
//  1. Creating a StyleMesh via New() with a model resolver
//  2. Using Stylist() for the typed fashion operations
//  3. Calling Run or Invoke for raw access to a role's agent
//
// All defaults are in-memory and safe for local development and testing.
package stylemesh

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/stylemesh/artifact"
	"github.com/hupe1980/stylemesh/config"
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/orchestrator"
	"github.com/hupe1980/stylemesh/session"
	"github.com/hupe1980/stylemesh/stylist"
)

// Options configures the StyleMesh instance.
type Options struct {
	// Catalog defaults to the embedded agent catalogue.
	Catalog *config.Catalog
	// Resolve returns the model of a catalogue entry. Defaults to a Models
	// value without clients, which only serves the mock provider.
	Resolve stylist.ModelResolver

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore

	// MaxModelCalls bounds the model turns of one agent invocation.
	MaxModelCalls int

	MaxAttempts       int
	BackoffUnit       time.Duration
	MinResponseLength int
	RetryableMarkers  []string
	RefusalMarkers    []string
	Recorder          orchestrator.Recorder

	// PhotoLoader resolves photo URLs for analysis; nil fetches over HTTP.
	PhotoLoader   stylist.PhotoLoader
	MaxPhotoBytes int64

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// StyleMesh aggregates the agents, the orchestrator and the stylist service.
type StyleMesh struct {
	catalog      *config.Catalog
	agents       map[string]core.Agent
	orchestrator *orchestrator.Orchestrator
	stylist      *stylist.Service
}

// New creates a StyleMesh. Any unset store is initialized in memory.
func New(optFns ...func(o *Options)) (*StyleMesh, error) {
	opts := Options{
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MaxModelCalls: 25,
		MaxAttempts:   3,
		BackoffUnit:   time.Second,
		Recorder:      orchestrator.Nop(),
		MaxPhotoBytes: 10 << 20,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Catalog == nil {
		cat, err := config.LoadCatalog("")
		if err != nil {
			return nil, err
		}
		opts.Catalog = cat
	}

	if opts.Resolve == nil {
		opts.Resolve = Models{}.Resolve
	}

	agents, err := stylist.NewAgents(opts.Catalog, opts.Resolve)
	if err != nil {
		return nil, fmt.Errorf("build agents: %w", err)
	}

	provider := orchestrator.NewRunnerProvider(func(o *orchestrator.RunnerProviderOptions) {
		o.SessionStore = opts.SessionStore
		o.ArtifactStore = opts.ArtifactStore
		o.MaxModelCalls = opts.MaxModelCalls
		o.Logger = opts.Logger
	})

	orch := orchestrator.New(provider, func(o *orchestrator.Options) {
		o.MaxAttempts = opts.MaxAttempts
		o.BackoffUnit = opts.BackoffUnit
		if opts.MinResponseLength > 0 {
			o.MinResponseLength = opts.MinResponseLength
		}
		o.RetryableMarkers = opts.RetryableMarkers
		o.RefusalMarkers = opts.RefusalMarkers
		o.Fallbacks = opts.Catalog.Fallbacks
		o.Logger = opts.Logger
		o.Recorder = opts.Recorder
	})

	svc := stylist.New(orch, agents, func(o *stylist.Options) {
		o.MaxAttempts = opts.MaxAttempts
		o.MaxPhotoBytes = opts.MaxPhotoBytes
		o.Loader = opts.PhotoLoader
		o.Logger = opts.Logger
	})

	return &StyleMesh{
		catalog:      opts.Catalog,
		agents:       agents,
		orchestrator: orch,
		stylist:      svc,
	}, nil
}

// Stylist returns the typed fashion operations.
func (m *StyleMesh) Stylist() *stylist.Service { return m.stylist }

// Catalog returns the agent catalogue in use.
func (m *StyleMesh) Catalog() *config.Catalog { return m.catalog }

// Agent returns the agent serving role.
func (m *StyleMesh) Agent(role string) (core.Agent, bool) {
	a, ok := m.agents[role]
	return a, ok
}

// Run sends content to the agent of role with retries and fallback.
func (m *StyleMesh) Run(ctx context.Context, role string, content core.Content) (orchestrator.Result, error) {
	a, ok := m.agents[role]
	if !ok {
		return orchestrator.Result{}, fmt.Errorf("%w: %s", stylist.ErrAgentNotConfigured, role)
	}

	return m.orchestrator.Run(ctx, a, content, 0)
}

// Invoke is Run for a plain text prompt.
func (m *StyleMesh) Invoke(ctx context.Context, role, input string) (string, error) {
	res, err := m.Run(ctx, role, core.NewUserContent(input))
	if err != nil {
		return "", err
	}

	return res.Text, nil
}
