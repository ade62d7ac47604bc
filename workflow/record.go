package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/stylemesh/stylist"
	"github.com/hupe1980/stylemesh/visual"
)

// Record is the saved result of an analysis session.
type Record struct {
	UserID          string                       `json:"userId"`
	SessionID       string                       `json:"sessionId"`
	OriginalPhoto   string                       `json:"originalPhoto"`
	Analysis        json.RawMessage              `json:"analysis"`
	Recommendations json.RawMessage              `json:"recommendations"`
	Visualizations  []visual.OutfitVisualization `json:"visualizations"`
	Timestamp       time.Time                    `json:"timestamp"`
	UserPreferences map[string]any               `json:"userPreferences"`
	Occasion        string                       `json:"occasion"`
	Constraints     string                       `json:"constraints,omitempty"`
	// Fallback is set when an agent answered with its fallback reply.
	Fallback bool `json:"fallback,omitempty"`
}

// DecodeRecord parses a stored payload.
func DecodeRecord(payload []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Outfits returns the recommended outfits.
func (r *Record) Outfits() []stylist.Outfit {
	return stylist.ParseOutfits(string(r.Recommendations))
}

// Outfit returns the outfit at index.
func (r *Record) Outfit(index int) (stylist.Outfit, bool) {
	outfits := r.Outfits()
	if index < 0 || index >= len(outfits) {
		return nil, false
	}
	return outfits[index], true
}

// VisualizationFor returns the image of an outfit, matched by name or by
// its positional default name.
func (r *Record) VisualizationFor(index int) *visual.GeneratedImage {
	outfit, ok := r.Outfit(index)
	if !ok {
		return nil
	}

	name := outfit.Name("")
	positional := fmt.Sprintf("Outfit %d", index+1)

	for _, v := range r.Visualizations {
		if v.Visualization != nil && (v.OutfitName == name || v.OutfitName == positional) {
			return v.Visualization
		}
	}

	return nil
}

// HasVisualizations reports whether any outfit image was generated.
func (r *Record) HasVisualizations() bool {
	for _, v := range r.Visualizations {
		if v.Visualization != nil {
			return true
		}
	}
	return false
}

// Summary is the history view of a record.
type Summary struct {
	SessionID         string         `json:"sessionId"`
	Timestamp         time.Time      `json:"timestamp"`
	Occasion          string         `json:"occasion"`
	AnalysisData      AnalysisData   `json:"analysisData"`
	OriginalPhoto     string         `json:"originalPhoto"`
	PreviewOutfit     stylist.Outfit `json:"previewOutfit"`
	HasVisualizations bool           `json:"hasVisualizations"`
}

// AnalysisData condenses an analysis for the history view.
type AnalysisData struct {
	BodyType       string   `json:"bodyType,omitempty"`
	DominantColors []string `json:"dominantColors,omitempty"`
	OutfitCount    int      `json:"outfitCount"`
}

// Summarize builds the history view of r.
func (r *Record) Summarize() Summary {
	s := Summary{
		SessionID:         r.SessionID,
		Timestamp:         r.Timestamp,
		Occasion:          r.Occasion,
		OriginalPhoto:     r.OriginalPhoto,
		HasVisualizations: r.HasVisualizations(),
	}

	if a, ok := stylist.ParseAnalysis(string(r.Analysis)); ok {
		s.AnalysisData.BodyType = a.BodyAnalysis.BodyType
		colors := a.ColorAnalysis.BestColors
		if len(colors) > 3 {
			colors = colors[:3]
		}
		s.AnalysisData.DominantColors = colors
	}

	outfits := r.Outfits()
	s.AnalysisData.OutfitCount = len(outfits)
	if len(outfits) > 0 {
		s.PreviewOutfit = outfits[0]
	}

	return s
}

// rawJSON keeps valid JSON as is and encodes anything else as a JSON string.
func rawJSON(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}

	b, _ := json.Marshal(s)

	return b
}
