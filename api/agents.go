package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/stylist"
	"github.com/hupe1980/stylemesh/visual"
)

// AgentHandler serves the stateless agent endpoints.
type AgentHandler struct {
	stylist    Stylist
	visualizer Visualizer
	logger     *logging.ComponentLogger
}

// NewAgentHandler creates an AgentHandler. visualizer may be nil.
func NewAgentHandler(s Stylist, v Visualizer, logger logging.Logger) *AgentHandler {
	return &AgentHandler{stylist: s, visualizer: v, logger: logging.NewComponentLogger(logger, "api.agents")}
}

// RegisterRoutes registers agent routes.
func (h *AgentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/gemini", func(r chi.Router) {
		r.Post("/analyze-photo", h.AnalyzePhoto)
		r.Post("/recommend-outfit", h.RecommendOutfit)
	})

	r.Route("/api/agents", func(r chi.Router) {
		r.Post("/research", h.Research)
		r.Post("/format", h.Format)
	})

	r.Route("/api/flux", func(r chi.Router) {
		r.Post("/generate-outfit-visualization", h.GenerateVisualization)
		r.Post("/generate-multiple-outfits", h.GenerateMultiple)
	})
}

// AnalyzePhoto analyzes a photo referenced by URL.
func (h *AgentHandler) AnalyzePhoto(w http.ResponseWriter, r *http.Request) {
	var req stylist.AnalysisRequest
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	res, err := h.stylist.AnalyzePhoto(r.Context(), req)
	if err != nil {
		h.agentError(w, "Analysis failed", err)
		return
	}

	JSON(w, http.StatusOK, res)
}

// RecommendOutfit creates outfit recommendations from an analysis.
func (h *AgentHandler) RecommendOutfit(w http.ResponseWriter, r *http.Request) {
	var req stylist.RecommendationRequest
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	res, err := h.stylist.RecommendOutfits(r.Context(), req)
	if err != nil {
		h.agentError(w, "Recommendation failed", err)
		return
	}

	JSON(w, http.StatusOK, res)
}

// Research researches a list of topics.
func (h *AgentHandler) Research(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topics []string `json:"topics"`
	}
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	res, err := h.stylist.ResearchTrends(r.Context(), req.Topics)
	if err != nil {
		h.agentError(w, "Research failed", err)
		return
	}

	JSON(w, http.StatusOK, res)
}

// Format turns research into a newsletter.
func (h *AgentHandler) Format(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawContent string   `json:"raw_content"`
		Topics     []string `json:"topics"`
	}
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	res, err := h.stylist.FormatContent(r.Context(), req.RawContent, req.Topics)
	if err != nil {
		h.agentError(w, "Formatting failed", err)
		return
	}

	JSON(w, http.StatusOK, res)
}

// GenerateVisualization renders one outfit description.
func (h *AgentHandler) GenerateVisualization(w http.ResponseWriter, r *http.Request) {
	if h.visualizer == nil {
		Error(w, http.StatusServiceUnavailable, "visualization disabled")
		return
	}

	var req visual.Request
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	img, err := h.visualizer.Generate(r.Context(), req)
	if err != nil {
		h.agentError(w, "Failed to generate outfit visualization", err)
		return
	}

	JSON(w, http.StatusOK, map[string]any{"success": true, "visualization": img})
}

// GenerateMultiple renders a list of outfits.
func (h *AgentHandler) GenerateMultiple(w http.ResponseWriter, r *http.Request) {
	if h.visualizer == nil {
		Error(w, http.StatusServiceUnavailable, "visualization disabled")
		return
	}

	var req visual.MultipleRequest
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	res, err := h.visualizer.GenerateMultiple(r.Context(), req)
	if err != nil {
		h.agentError(w, "Failed to generate outfit visualizations", err)
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"visualizations":  res.Visualizations,
		"total_generated": res.TotalGenerated,
	})
}

func (h *AgentHandler) agentError(w http.ResponseWriter, prefix string, err error) {
	switch {
	case errors.Is(err, stylist.ErrNoTopics), errors.Is(err, stylist.ErrNoContent):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, stylist.ErrPhotoFetch),
		errors.Is(err, stylist.ErrInvalidRequest),
		errors.Is(err, visual.ErrInvalidRequest):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		msg := err.Error()
		if !strings.HasPrefix(strings.ToLower(msg), strings.ToLower(prefix)) {
			msg = prefix + ": " + msg
		}

		h.logger.Error("api.agent.failed", "operation", prefix, "error", err.Error())
		Error(w, http.StatusInternalServerError, msg)
	}
}
