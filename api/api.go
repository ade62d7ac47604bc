// Package api exposes the stylist agents, outfit visualization and the
// fashion analysis workflow over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hupe1980/stylemesh/stylist"
	"github.com/hupe1980/stylemesh/visual"
	"github.com/hupe1980/stylemesh/workflow"
)

const maxBodySize = 1 << 20

// Stylist runs the fashion agents.
type Stylist interface {
	AnalyzePhoto(ctx context.Context, req stylist.AnalysisRequest) (*stylist.Analysis, error)
	RecommendOutfits(ctx context.Context, req stylist.RecommendationRequest) (*stylist.Recommendations, error)
	ResearchTrends(ctx context.Context, topics []string) (*stylist.TextResult, error)
	FormatContent(ctx context.Context, raw string, topics []string) (*stylist.TextResult, error)
}

// Visualizer renders outfits.
type Visualizer interface {
	Generate(ctx context.Context, req visual.Request) (*visual.GeneratedImage, error)
	GenerateMultiple(ctx context.Context, req visual.MultipleRequest) (*visual.MultipleResult, error)
}

// Workflow schedules fashion analyses.
type Workflow interface {
	Reserve(ctx context.Context, userID string) (string, error)
	Release(sessionID string)
	StartSession(ctx context.Context, sessionID string, req workflow.Request) (string, error)
	Status(ctx context.Context, userID, sessionID string) (*workflow.Job, error)
	Forget(ctx context.Context, sessionID string) (bool, error)
}

// ImageStore keeps uploaded photos and generated images.
type ImageStore interface {
	Put(sessionID, name string, data []byte) (string, error)
	Open(sessionID, imageID string) ([]byte, string, error)
	Delete(url string) error
	DeleteSession(sessionID string) error
}

var (
	_ Stylist    = (*stylist.Service)(nil)
	_ Visualizer = (*visual.Service)(nil)
	_ Workflow   = (*workflow.Engine)(nil)
	_ ImageStore = (*visual.Images)(nil)
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}

	return true
}

// ownsSession reports whether sessionID was created for userID.
func ownsSession(userID, sessionID string) bool {
	return userID != "" && strings.HasPrefix(sessionID, userID+"-")
}
