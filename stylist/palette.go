package stylist

import (
	"fmt"
	"strings"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/tool"
)

// ColorPaletteTool is the name of the colour palette lookup.
const ColorPaletteTool = "color_palette"

// Palette is the colour guidance for a skin undertone.
type Palette struct {
	Undertone string   `json:"undertone"`
	Best      []string `json:"best_colors"`
	Neutrals  []string `json:"neutrals"`
	Avoid     []string `json:"avoid"`
	Season    string   `json:"season,omitempty"`
	Accents   []string `json:"seasonal_accents,omitempty"`
}

type paletteArgs struct {
	SkinUndertone string `json:"skin_undertone" description:"Skin undertone from the photo analysis" enum:"warm,cool,neutral,olive"`
	Season        string `json:"season,omitempty" description:"Season the outfits are for" enum:"spring,summer,autumn,fall,winter"`
}

var palettes = map[string]Palette{
	"warm": {
		Best:     []string{"rust", "olive", "mustard", "coral", "camel", "warm red"},
		Neutrals: []string{"cream", "ivory", "chocolate brown", "khaki"},
		Avoid:    []string{"icy pastels", "stark white", "blue-based pink"},
	},
	"cool": {
		Best:     []string{"navy", "emerald", "sapphire", "raspberry", "lavender", "true red"},
		Neutrals: []string{"charcoal", "pure white", "grey", "black"},
		Avoid:    []string{"orange", "mustard", "warm beige"},
	},
	"neutral": {
		Best:     []string{"jade", "soft pink", "dusty blue", "teal", "plum"},
		Neutrals: []string{"taupe", "off-white", "soft grey", "navy"},
		Avoid:    []string{"neon shades"},
	},
	"olive": {
		Best:     []string{"burgundy", "forest green", "teal", "gold", "deep purple"},
		Neutrals: []string{"espresso", "warm white", "stone", "charcoal"},
		Avoid:    []string{"pastel yellow", "lime", "pale orange"},
	},
}

var seasonAccents = map[string][]string{
	"spring": {"peach", "mint", "buttercup yellow"},
	"summer": {"sky blue", "watermelon", "seafoam"},
	"autumn": {"terracotta", "burnt orange", "moss"},
	"winter": {"cranberry", "ink blue", "pine"},
}

// LookupPalette returns the palette for an undertone, with accents for
// season when one is given. "fall" is accepted for autumn.
func LookupPalette(undertone, season string) (Palette, error) {
	undertone = strings.ToLower(strings.TrimSpace(undertone))

	p, ok := palettes[undertone]
	if !ok {
		return Palette{}, fmt.Errorf("unknown skin undertone %q", undertone)
	}

	p.Undertone = undertone

	season = strings.ToLower(strings.TrimSpace(season))
	if season == "fall" {
		season = "autumn"
	}

	if season != "" {
		accents, ok := seasonAccents[season]
		if !ok {
			return Palette{}, fmt.Errorf("unknown season %q", season)
		}
		p.Season = season
		p.Accents = accents
	}

	return p, nil
}

// NewColorPaletteTool exposes LookupPalette to the recommendation agent.
func NewColorPaletteTool() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		ColorPaletteTool,
		"Return the flattering colours, neutrals and colours to avoid for a skin undertone, optionally with seasonal accents.",
		paletteArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			undertone, _ := args["skin_undertone"].(string)
			season, _ := args["season"].(string)

			p, err := LookupPalette(undertone, season)
			if err != nil {
				return nil, err
			}

			toolCtx.Logger().Debug("stylist.palette", "undertone", p.Undertone, "season", p.Season)

			return p, nil
		},
	)
}
