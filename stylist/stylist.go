// Package stylist implements the fashion agents: photo analysis, outfit
// recommendation, trend research and newsletter formatting. Every call goes
// through the orchestrator, so transient model failures are retried and
// exhausted roles answer with their configured fallback.
package stylist

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/stylemesh/config"
	"github.com/hupe1980/stylemesh/core"
	internalutil "github.com/hupe1980/stylemesh/internal/util"
	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/orchestrator"
)

//go:embed prompts/*.tmpl
var prompts embed.FS

var (
	// ErrNoTopics is returned by ResearchTrends for an empty topic list.
	ErrNoTopics = errors.New("No topics provided.") //nolint:staticcheck
	// ErrNoContent is returned by FormatContent for empty content.
	ErrNoContent = errors.New("No content provided.") //nolint:staticcheck
	// ErrAgentNotConfigured is returned when no agent serves a role.
	ErrAgentNotConfigured = errors.New("agent not configured")
	// ErrInvalidRequest marks requests with missing fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// Invoker runs an agent with retries and fallbacks.
type Invoker interface {
	Run(ctx context.Context, agent core.Agent, content core.Content, maxAttempts int) (orchestrator.Result, error)
}

// Options configures a Service.
type Options struct {
	// MaxAttempts per call; 0 uses the invoker's default.
	MaxAttempts int
	// HTTPClient fetches photos by URL.
	HTTPClient *http.Client
	// MaxPhotoBytes bounds fetched photos.
	MaxPhotoBytes int64
	// Loader resolves photo URLs; nil uses a PhotoFetcher built from
	// HTTPClient and MaxPhotoBytes.
	Loader PhotoLoader
	Logger logging.Logger
}

// Service exposes the fashion agents.
type Service struct {
	invoker     Invoker
	agents      map[string]core.Agent
	maxAttempts int
	loader      PhotoLoader
	logger      *logging.ComponentLogger
}

// New creates a Service. agents maps a role (config.Role*) to the agent serving it.
func New(invoker Invoker, agents map[string]core.Agent, optFns ...func(o *Options)) *Service {
	opts := Options{
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		MaxPhotoBytes: 10 << 20,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Loader == nil {
		opts.Loader = NewPhotoFetcher(opts.HTTPClient, opts.MaxPhotoBytes)
	}

	return &Service{
		invoker:     invoker,
		agents:      agents,
		maxAttempts: opts.MaxAttempts,
		loader:      opts.Loader,
		logger:      logging.NewComponentLogger(opts.Logger, "stylist"),
	}
}

// Photo is an image attached to an analysis request.
type Photo struct {
	Data     []byte
	MIMEType string
}

// AnalysisRequest asks for a photo analysis. Photo takes precedence over PhotoURL.
type AnalysisRequest struct {
	PhotoURL        string         `json:"photo_url"`
	UserPreferences map[string]any `json:"user_preferences"`
	Occasion        string         `json:"occasion"`
	Constraints     string         `json:"constraints,omitempty"`
	Photo           *Photo         `json:"-"`
}

// Analysis is the result of AnalyzePhoto. Analysis holds compact JSON when
// the model answered with valid JSON and the raw text otherwise.
type Analysis struct {
	Analysis string `json:"analysis"`
	Fallback bool   `json:"fallback,omitempty"`
}

// AnalyzePhoto analyzes a photo for body type, colour palette and current style.
func (s *Service) AnalyzePhoto(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	if req.Photo == nil && req.PhotoURL == "" {
		return nil, fmt.Errorf("%w: photo_url is required", ErrInvalidRequest)
	}

	photo := req.Photo
	if photo == nil {
		var err error
		if photo, err = s.loader.Fetch(ctx, req.PhotoURL); err != nil {
			return nil, err
		}
	}

	prompt, err := render("analysis.tmpl", map[string]any{
		"preferences": preferences(req.UserPreferences),
		"occasion":    req.Occasion,
		"constraints": req.Constraints,
	})
	if err != nil {
		return nil, err
	}

	content := core.NewUserContent(prompt, core.NewImagePart(photo.Data, photo.MIMEType))

	res, err := s.run(ctx, config.RolePhotoAnalysis, content)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	return &Analysis{Analysis: NormalizeJSON(res.Text), Fallback: res.Fallback}, nil
}

// RecommendationRequest asks for outfit recommendations.
type RecommendationRequest struct {
	AnalysisResult  string         `json:"analysis_result"`
	UserPreferences map[string]any `json:"user_preferences"`
	Occasion        string         `json:"occasion"`
	BudgetRange     string         `json:"budget_range"`
	// TrendContext optionally carries research output to weave in.
	TrendContext string `json:"trend_context,omitempty"`
}

// Recommendations is the result of RecommendOutfits.
type Recommendations struct {
	Recommendations string `json:"recommendations"`
	Fallback        bool   `json:"fallback,omitempty"`
}

// RecommendOutfits creates outfit recommendations from an analysis.
func (s *Service) RecommendOutfits(ctx context.Context, req RecommendationRequest) (*Recommendations, error) {
	if strings.TrimSpace(req.AnalysisResult) == "" {
		return nil, fmt.Errorf("%w: analysis_result is required", ErrInvalidRequest)
	}

	prompt, err := render("recommendation.tmpl", map[string]any{
		"analysis":    req.AnalysisResult,
		"preferences": preferences(req.UserPreferences),
		"occasion":    req.Occasion,
		"budget":      req.BudgetRange,
		"trends":      strings.TrimSpace(req.TrendContext),
	})
	if err != nil {
		return nil, err
	}

	res, err := s.run(ctx, config.RoleOutfitRecommendation, core.NewUserContent(prompt))
	if err != nil {
		return nil, fmt.Errorf("recommendation failed: %w", err)
	}

	return &Recommendations{Recommendations: NormalizeJSON(res.Text), Fallback: res.Fallback}, nil
}

// TextResult is the result of the newsletter agents.
type TextResult struct {
	Content  string `json:"content"`
	Fallback bool   `json:"fallback,omitempty"`
}

// ResearchTrends researches the topics on the web and connects the findings.
func (s *Service) ResearchTrends(ctx context.Context, topics []string) (*TextResult, error) {
	topics = cleanTopics(topics)
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	prompt, err := render("research.tmpl", map[string]any{"topics": strings.Join(topics, ", ")})
	if err != nil {
		return nil, err
	}

	res, err := s.run(ctx, config.RoleTrendResearch, core.NewUserContent(prompt))
	if err != nil {
		return nil, err
	}

	return &TextResult{Content: res.Text, Fallback: res.Fallback}, nil
}

// FormatContent turns raw research into a markdown newsletter.
func (s *Service) FormatContent(ctx context.Context, raw string, topics []string) (*TextResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoContent
	}

	prompt, err := render("format.tmpl", map[string]any{
		"topics":  strings.Join(cleanTopics(topics), ", "),
		"content": raw,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.run(ctx, config.RoleNewsletterFormat, core.NewUserContent(prompt))
	if err != nil {
		return nil, err
	}

	return &TextResult{Content: res.Text, Fallback: res.Fallback}, nil
}

func (s *Service) run(ctx context.Context, role string, content core.Content) (orchestrator.Result, error) {
	a, ok := s.agents[role]
	if !ok {
		return orchestrator.Result{}, fmt.Errorf("%w: %s", ErrAgentNotConfigured, role)
	}

	start := time.Now()

	res, err := s.invoker.Run(ctx, a, content, s.maxAttempts)
	if err != nil {
		s.logger.Error("stylist.call.failed", "role", role, "agent", a.Name(), "duration", time.Since(start), "error", err.Error())
		return res, err
	}

	s.logger.Info("stylist.call.completed",
		"role", role,
		"agent", a.Name(),
		"attempts", res.Attempts,
		"fallback", res.Fallback,
		"duration", time.Since(start),
	)

	return res, nil
}

func render(name string, data map[string]any) (string, error) {
	b, err := prompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}

	out, err := internalutil.RenderTemplate(string(b), data)
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}

	return strings.TrimSpace(out), nil
}

func preferences(p map[string]any) string {
	if len(p) == 0 {
		return "{}"
	}

	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprint(p)
	}

	return string(b)
}

func cleanTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
