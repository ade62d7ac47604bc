// Package visual renders recommended outfits onto the user's photo. Only the
// clothing is edited; the generated images are kept as session artifacts.
package visual

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/stylist"
)

const (
	// DefaultStylePrompt is used when a request carries no style.
	DefaultStylePrompt = "high fashion photography"
	// Width and Height of generated images (3:4).
	Width  = 768
	Height = 1024
)

// ErrInvalidRequest marks requests with missing fields.
var ErrInvalidRequest = errors.New("invalid request")

// Editor edits the clothing of a photo according to prompt.
type Editor interface {
	Edit(ctx context.Context, src *stylist.Photo, prompt string) (*stylist.Photo, error)
}

// Recorder receives visualization outcomes ("success" or "error").
type Recorder interface {
	Visualization(status string)
}

type nopRecorder struct{}

func (nopRecorder) Visualization(string) {}

// Request asks for one outfit visualization.
type Request struct {
	UserPhotoURL      string `json:"user_photo_url"`
	OutfitDescription string `json:"outfit_description"`
	StylePrompt       string `json:"style_prompt"`
	// SessionID groups the generated image; empty creates a new group.
	SessionID string `json:"session_id,omitempty"`
}

// GeneratedImage describes a stored visualization.
type GeneratedImage struct {
	ImageURL string `json:"image_url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// MultipleRequest asks for one visualization per outfit.
type MultipleRequest struct {
	UserPhotoURL string           `json:"user_photo_url"`
	Outfits      []stylist.Outfit `json:"outfits"`
	StylePrompt  string           `json:"style_prompt"`
	SessionID    string           `json:"session_id,omitempty"`
}

// OutfitVisualization is the outcome for one outfit. Exactly one of
// Visualization and Error is set.
type OutfitVisualization struct {
	OutfitName    string          `json:"outfit_name"`
	Visualization *GeneratedImage `json:"visualization,omitempty"`
	Error         string          `json:"error,omitempty"`
	OutfitData    stylist.Outfit  `json:"outfit_data"`
}

// MultipleResult is returned by GenerateMultiple.
type MultipleResult struct {
	Visualizations []OutfitVisualization `json:"visualizations"`
	TotalGenerated int                   `json:"total_generated"`
}

// Options configures a Service.
type Options struct {
	// Parallelism bounds concurrent edits in GenerateMultiple.
	Parallelism int
	Recorder    Recorder
	Logger      logging.Logger
}

// Service generates outfit visualizations.
type Service struct {
	editor      Editor
	images      *Images
	parallelism int
	recorder    Recorder
	logger      *logging.ComponentLogger
}

// New creates a Service.
func New(editor Editor, images *Images, optFns ...func(o *Options)) *Service {
	opts := Options{
		Parallelism: 3,
		Recorder:    nopRecorder{},
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}

	return &Service{
		editor:      editor,
		images:      images,
		parallelism: opts.Parallelism,
		recorder:    opts.Recorder,
		logger:      logging.NewComponentLogger(opts.Logger, "visual"),
	}
}

// Prompt builds the clothing edit instruction.
func Prompt(outfitDescription, style string) string {
	if style == "" {
		style = DefaultStylePrompt
	}

	return fmt.Sprintf(`Edit only the clothing in this image. Replace the current outfit with: %s.
PRESERVE COMPLETELY: person's face, skin tone, body shape, pose, background, lighting.
CHANGE ONLY: the clothing items to match the new outfit description.
Style: %s. Keep original photo quality and lighting. Portrait orientation, 3:4 aspect ratio.`, outfitDescription, style)
}

// Describe turns the top, bottom and shoes of an outfit into a description.
func Describe(o stylist.Outfit) string {
	slots := []struct{ slot, def string }{
		{"top", "shirt"},
		{"bottom", "pants"},
		{"shoes", "shoes"},
	}

	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		item, color := o.Item(s.slot)
		if item == "" {
			item = s.def
		}
		if color == "" {
			color = "neutral"
		}
		parts = append(parts, fmt.Sprintf("%s in %s color", item, color))
	}

	return strings.Join(parts, ",\n")
}

// Generate renders one outfit description onto the user's photo.
func (s *Service) Generate(ctx context.Context, req Request) (*GeneratedImage, error) {
	if req.UserPhotoURL == "" || strings.TrimSpace(req.OutfitDescription) == "" {
		return nil, fmt.Errorf("%w: user_photo_url and outfit_description are required", ErrInvalidRequest)
	}

	photo, err := s.images.Fetch(ctx, req.UserPhotoURL)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return s.render(ctx, photo, sessionID, "outfit", req.OutfitDescription, req.StylePrompt)
}

// GenerateMultiple renders every outfit. A failing outfit is reported in its
// entry and does not fail the batch; results keep the input order.
func (s *Service) GenerateMultiple(ctx context.Context, req MultipleRequest) (*MultipleResult, error) {
	if req.UserPhotoURL == "" {
		return nil, fmt.Errorf("%w: user_photo_url is required", ErrInvalidRequest)
	}

	out := &MultipleResult{Visualizations: make([]OutfitVisualization, len(req.Outfits))}
	if len(req.Outfits) == 0 {
		return out, nil
	}

	photo, err := s.images.Fetch(ctx, req.UserPhotoURL)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var generated atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for i, outfit := range req.Outfits {
		g.Go(func() error {
			v := OutfitVisualization{
				OutfitName: outfit.Name(fmt.Sprintf("Outfit %d", i+1)),
				OutfitData: outfit,
			}

			img, err := s.render(gctx, photo, sessionID, fmt.Sprintf("outfit-%d", i), Describe(outfit), req.StylePrompt)
			if err != nil {
				s.logger.Warn("visual.outfit.failed", "session_id", sessionID, "outfit", i+1, "error", err.Error())
				v.Error = err.Error()
			} else {
				v.Visualization = img
				generated.Add(1)
			}

			out.Visualizations[i] = v

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.TotalGenerated = int(generated.Load())

	s.logger.Info("visual.batch.completed", "session_id", sessionID, "outfits", len(req.Outfits), "total_generated", out.TotalGenerated)

	return out, nil
}

func (s *Service) render(ctx context.Context, photo *stylist.Photo, sessionID, name, description, style string) (*GeneratedImage, error) {
	start := time.Now()

	edited, err := s.editor.Edit(ctx, photo, Prompt(description, style))
	if err != nil {
		s.recorder.Visualization("error")
		return nil, fmt.Errorf("failed to generate outfit visualization: %w", err)
	}

	url, err := s.images.Put(sessionID, name, edited.Data)
	if err != nil {
		s.recorder.Visualization("error")
		return nil, err
	}

	s.recorder.Visualization("success")
	s.logger.Debug("visual.outfit.generated", "session_id", sessionID, "url", url, "duration", time.Since(start))

	return &GeneratedImage{ImageURL: url, Width: Width, Height: Height}, nil
}
