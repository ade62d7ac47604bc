package stylist

import (
	"bytes"
	"encoding/json"
	"strings"
)

// NormalizeJSON returns compact JSON when text (optionally wrapped in a
// markdown code fence) is valid JSON, and text unchanged otherwise.
func NormalizeJSON(text string) string {
	candidate := stripFence(strings.TrimSpace(text))

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(candidate)); err != nil {
		return text
	}

	return buf.String()
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// PhotoAnalysis is the subset of an analysis used for summaries.
type PhotoAnalysis struct {
	BodyAnalysis struct {
		BodyType string `json:"body_type"`
	} `json:"body_analysis"`
	ColorAnalysis struct {
		SkinUndertone string   `json:"skin_undertone"`
		BestColors    []string `json:"best_colors"`
	} `json:"color_analysis"`
	RecommendationsSummary string `json:"recommendations_summary"`
}

// ParseAnalysis decodes an analysis; ok is false for non-JSON answers.
func ParseAnalysis(s string) (PhotoAnalysis, bool) {
	var a PhotoAnalysis
	if err := json.Unmarshal([]byte(stripFence(strings.TrimSpace(s))), &a); err != nil {
		return PhotoAnalysis{}, false
	}
	return a, true
}

// Outfit is one recommended outfit kept as decoded JSON.
type Outfit map[string]any

// Name returns the outfit name or def.
func (o Outfit) Name(def string) string {
	if n, ok := o["name"].(string); ok && n != "" {
		return n
	}
	return def
}

// Item returns the garment and colour of an item slot (top, bottom, shoes).
func (o Outfit) Item(slot string) (item, color string) {
	items, _ := o["items"].(map[string]any)
	entry, _ := items[slot].(map[string]any)

	item, _ = entry["item"].(string)
	color, _ = entry["color"].(string)

	return item, color
}

// ParseOutfits extracts outfit_recommendations from a recommendations reply.
func ParseOutfits(s string) []Outfit {
	var r struct {
		Outfits []Outfit `json:"outfit_recommendations"`
	}

	if err := json.Unmarshal([]byte(stripFence(strings.TrimSpace(s))), &r); err != nil {
		return nil
	}

	return r.Outfits
}
