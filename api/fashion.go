package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/store"
	"github.com/hupe1980/stylemesh/stylist"
	"github.com/hupe1980/stylemesh/visual"
	"github.com/hupe1980/stylemesh/workflow"
)

// FashionHandler serves the per-user analysis workflow, history and favourites.
type FashionHandler struct {
	workflow      Workflow
	repo          store.Repository
	images        ImageStore
	maxPhotoBytes int64
	now           func() time.Time
	logger        *logging.ComponentLogger
}

// NewFashionHandler creates a FashionHandler.
func NewFashionHandler(wf Workflow, repo store.Repository, images ImageStore, maxPhotoBytes int64, logger logging.Logger) *FashionHandler {
	return &FashionHandler{
		workflow:      wf,
		repo:          repo,
		images:        images,
		maxPhotoBytes: maxPhotoBytes,
		now:           time.Now,
		logger:        logging.NewComponentLogger(logger, "api.fashion"),
	}
}

// RegisterRoutes registers the fashion routes.
func (h *FashionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/fashion", func(r chi.Router) {
		// images are embedded by URL and cannot carry the identity header
		r.Get("/images/{sessionId}/{imageId}", h.Image)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Post("/analyze", h.Analyze)
			r.Get("/status/{sessionId}", h.Status)
			r.Get("/results/{sessionId}", h.Results)
			r.Get("/history", h.History)
			r.Get("/favorites", h.ListFavorites)
			r.Post("/favorites", h.UpdateFavorite)
			r.Post("/favorites/check", h.CheckFavorite)
			r.Delete("/delete", h.Delete)
			r.Post("/download", h.Download)
		})
	})
}

type analyzeRequest struct {
	PhotoFile       string         `json:"photoFile"`
	Occasion        string         `json:"occasion"`
	Constraints     string         `json:"constraints"`
	UserPreferences map[string]any `json:"userPreferences"`
}

// Analyze stores the uploaded photo and starts the analysis workflow.
func (h *FashionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req analyzeRequest
	// base64 inflates by 4/3
	if !decode(w, r, h.maxPhotoBytes*4/3+maxBodySize, &req) {
		return
	}

	if req.PhotoFile == "" || strings.TrimSpace(req.Occasion) == "" || req.UserPreferences == nil {
		Error(w, http.StatusBadRequest, "Missing required fields: photoFile, occasion, userPreferences")
		return
	}

	photo, err := stylist.DecodeDataURL(req.PhotoFile)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.maxPhotoBytes > 0 && int64(len(photo.Data)) > h.maxPhotoBytes {
		Error(w, http.StatusRequestEntityTooLarge, "photo too large")
		return
	}

	sessionID, err := h.workflow.Reserve(r.Context(), userID)
	if err != nil {
		h.logger.Error("api.fashion.reserve_failed", "user_id", userID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to start fashion analysis")
		return
	}

	photoURL, err := h.images.Put(sessionID, "photo", photo.Data)
	if err != nil {
		h.workflow.Release(sessionID)
		h.logger.Error("api.fashion.upload_failed", "session_id", sessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to start fashion analysis")
		return
	}

	if _, err := h.workflow.StartSession(r.Context(), sessionID, workflow.Request{
		UserID:          userID,
		PhotoURL:        photoURL,
		UserPreferences: req.UserPreferences,
		Occasion:        req.Occasion,
		Constraints:     req.Constraints,
	}); err != nil {
		h.workflow.Release(sessionID)
		// only this upload; the session may hold images of another run
		if derr := h.images.Delete(photoURL); derr != nil {
			h.logger.Warn("api.fashion.cleanup_failed", "session_id", sessionID, "error", derr.Error())
		}
		if errors.Is(err, workflow.ErrMissingFields) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("api.fashion.start_failed", "session_id", sessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to start fashion analysis")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"sessionId":  sessionID,
		"workflowId": sessionID,
		"photoUrl":   photoURL,
		"message":    "Fashion analysis started",
	})
}

// Status reports the state of an analysis.
func (h *FashionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionId")

	if !ownsSession(userID, sessionID) {
		Error(w, http.StatusNotFound, "Session not found")
		return
	}

	job, err := h.workflow.Status(r.Context(), userID, sessionID)
	if errors.Is(err, workflow.ErrNotFound) {
		Error(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("api.fashion.status_failed", "session_id", sessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to check status")
		return
	}

	resp := map[string]any{"status": job.Status, "sessionId": sessionID}

	switch job.Status {
	case workflow.StatusProcessing:
		resp["message"] = "Analysis in progress..."
	case workflow.StatusFailed:
		resp["error"] = job.Error
	case workflow.StatusCompleted:
		if rec, err := h.record(r, userID, sessionID); err == nil {
			resp["results"] = rec
		}
	}

	JSON(w, http.StatusOK, resp)
}

// Results returns the saved record of an analysis.
func (h *FashionHandler) Results(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionId")

	if !ownsSession(userID, sessionID) {
		Error(w, http.StatusNotFound, "Session not found")
		return
	}

	rec, err := h.record(r, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("api.fashion.results_failed", "session_id", sessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to fetch results")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

// History lists summaries of the user's analyses, newest first.
func (h *FashionHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	results, err := h.repo.ListResults(r.Context(), userID)
	if err != nil {
		h.logger.Error("api.fashion.history_failed", "user_id", userID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to fetch history")
		return
	}

	history := make([]workflow.Summary, 0, len(results))
	for _, res := range results {
		rec, err := workflow.DecodeRecord(res.Payload)
		if err != nil {
			h.logger.Warn("api.fashion.history_skip", "session_id", res.SessionID, "error", err.Error())
			continue
		}
		history = append(history, rec.Summarize())
	}

	resp := map[string]any{"success": true, "history": history, "total": len(history)}
	if len(history) == 0 {
		resp["message"] = "No outfit history found"
	}

	JSON(w, http.StatusOK, resp)
}

// ListFavorites returns the user's saved outfits.
func (h *FashionHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	favs, err := h.repo.ListFavorites(r.Context(), userID)
	if err != nil {
		h.logger.Error("api.fashion.favorites_failed", "user_id", userID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to fetch favorites")
		return
	}

	if favs == nil {
		favs = []*store.Favorite{}
	}

	JSON(w, http.StatusOK, map[string]any{"success": true, "favorites": favs, "total": len(favs)})
}

type favoriteRequest struct {
	SessionID   string `json:"sessionId"`
	OutfitIndex *int   `json:"outfitIndex"`
	Action      string `json:"action"`
}

// UpdateFavorite adds or removes a favourite outfit.
func (h *FashionHandler) UpdateFavorite(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req favoriteRequest
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	if req.SessionID == "" || req.OutfitIndex == nil || req.Action == "" {
		Error(w, http.StatusBadRequest, "Missing required fields: sessionId, outfitIndex, action")
		return
	}

	if req.Action != "add" && req.Action != "remove" {
		Error(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	idx := *req.OutfitIndex

	rec, err := h.record(r, userID, req.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "Session results not found")
		return
	}
	if err != nil {
		h.logger.Error("api.fashion.favorite_failed", "session_id", req.SessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to process favorite")
		return
	}

	outfit, ok := rec.Outfit(idx)
	if !ok {
		Error(w, http.StatusNotFound, "Outfit not found")
		return
	}

	if req.Action == "add" {
		fav := &store.Favorite{
			UserID:        userID,
			SessionID:     req.SessionID,
			OutfitIndex:   idx,
			OutfitName:    outfit.Name(fmt.Sprintf("Outfit %d", idx+1)),
			OriginalPhoto: rec.OriginalPhoto,
			Occasion:      rec.Occasion,
		}

		if fav.Outfit, err = json.Marshal(outfit); err == nil {
			if img := rec.VisualizationFor(idx); img != nil {
				fav.ImageURL = img.ImageURL
			}
			err = h.repo.AddFavorite(r.Context(), fav)
		}
	} else {
		err = h.repo.RemoveFavorite(r.Context(), userID, req.SessionID, idx)
	}

	if err != nil {
		h.logger.Error("api.fashion.favorite_failed", "session_id", req.SessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to process favorite")
		return
	}

	favs, err := h.repo.ListFavorites(r.Context(), userID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "Failed to process favorite")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"action":         req.Action,
		"isFavorited":    req.Action == "add",
		"totalFavorites": len(favs),
	})
}

// CheckFavorite reports whether an outfit is saved.
func (h *FashionHandler) CheckFavorite(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req favoriteRequest
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	if req.SessionID == "" || req.OutfitIndex == nil {
		Error(w, http.StatusBadRequest, "Missing required fields: sessionId, outfitIndex")
		return
	}

	ok, err := h.repo.IsFavorite(r.Context(), userID, req.SessionID, *req.OutfitIndex)
	if err != nil {
		h.logger.Error("api.fashion.favorite_check_failed", "session_id", req.SessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to check favorites")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"success": true, "isFavorited": ok})
}

// Delete removes a session with its images and favourites.
func (h *FashionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "Missing required field: sessionId")
		return
	}

	if !ownsSession(userID, req.SessionID) {
		Error(w, http.StatusForbidden, "Unauthorized access to session")
		return
	}

	// a running pipeline must stop before its result can be removed
	tracked, err := h.workflow.Forget(r.Context(), req.SessionID)
	if err != nil {
		h.logger.Error("api.fashion.cancel_failed", "session_id", req.SessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to process delete request")
		return
	}

	existed, err := h.repo.DeleteSession(r.Context(), userID, req.SessionID)
	if err != nil {
		h.logger.Error("api.fashion.delete_failed", "session_id", req.SessionID, "error", err.Error())
		Error(w, http.StatusInternalServerError, "Failed to process delete request")
		return
	}

	if err := h.images.DeleteSession(req.SessionID); err != nil {
		h.logger.Warn("api.fashion.delete_images_failed", "session_id", req.SessionID, "error", err.Error())
	}

	existed = existed || tracked

	message := "Session deleted"
	if !existed {
		message = "No results found for this session"
	}

	JSON(w, http.StatusOK, map[string]any{"success": true, "message": message, "deleted": existed})
}

// Image serves a stored photo or visualization.
func (h *FashionHandler) Image(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.images.Open(chi.URLParam(r, "sessionId"), chi.URLParam(r, "imageId"))
	if err != nil {
		if errors.Is(err, visual.ErrImageNotFound) {
			Error(w, http.StatusNotFound, "Image not found")
			return
		}
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=31536000")
	_, _ = w.Write(data)
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)

// Download returns a generated image as an attachment.
func (h *FashionHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req struct {
		SessionID   string `json:"sessionId"`
		OutfitIndex *int   `json:"outfitIndex"`
		ImageURL    string `json:"imageUrl"`
		OutfitName  string `json:"outfitName"`
	}
	if !decode(w, r, maxBodySize, &req) {
		return
	}

	if req.SessionID == "" || req.OutfitIndex == nil || req.ImageURL == "" {
		Error(w, http.StatusBadRequest, "Missing required fields: sessionId, outfitIndex, imageUrl")
		return
	}

	if !ownsSession(userID, req.SessionID) {
		Error(w, http.StatusForbidden, "Unauthorized access to session")
		return
	}

	sessionID, imageID, ok := visual.ParseURL(req.ImageURL)
	if !ok || sessionID != req.SessionID {
		Error(w, http.StatusBadRequest, "imageUrl does not belong to the session")
		return
	}

	data, mime, err := h.images.Open(sessionID, imageID)
	if err != nil {
		Error(w, http.StatusNotFound, "Image not found")
		return
	}

	name := req.OutfitName
	if name == "" {
		name = fmt.Sprintf("Outfit-%d", *req.OutfitIndex+1)
	}
	name = strings.ToLower(strings.Join(strings.Fields(unsafeFilename.ReplaceAllString(name, "")), "-"))

	filename := fmt.Sprintf("%s-%s-HD%s", name, h.now().Format(time.DateOnly), extensionFor(mime))

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (h *FashionHandler) record(r *http.Request, userID, sessionID string) (*workflow.Record, error) {
	res, err := h.repo.GetResult(r.Context(), userID, sessionID)
	if err != nil {
		return nil, err
	}

	return workflow.DecodeRecord(res.Payload)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
