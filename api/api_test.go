package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stylemesh/artifact"
	"github.com/hupe1980/stylemesh/metrics"
	"github.com/hupe1980/stylemesh/store"
	"github.com/hupe1980/stylemesh/stylist"
	"github.com/hupe1980/stylemesh/visual"
	"github.com/hupe1980/stylemesh/workflow"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

const recsJSON = `{"outfit_recommendations":[{"name":"Office Ease","items":{"top":{"item":"blouse","color":"ivory"}}},{"name":"After Hours"}]}`

type mockStylist struct {
	mock.Mock

	// block holds AnalyzePhoto until closed or cancelled
	block chan struct{}
}

func (m *mockStylist) AnalyzePhoto(ctx context.Context, req stylist.AnalysisRequest) (*stylist.Analysis, error) {
	args := m.Called(req.PhotoURL)

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	res, _ := args.Get(0).(*stylist.Analysis)
	return res, args.Error(1)
}

func (m *mockStylist) RecommendOutfits(_ context.Context, req stylist.RecommendationRequest) (*stylist.Recommendations, error) {
	args := m.Called(req.Occasion)
	res, _ := args.Get(0).(*stylist.Recommendations)
	return res, args.Error(1)
}

func (m *mockStylist) ResearchTrends(_ context.Context, topics []string) (*stylist.TextResult, error) {
	args := m.Called(topics)
	res, _ := args.Get(0).(*stylist.TextResult)
	return res, args.Error(1)
}

func (m *mockStylist) FormatContent(_ context.Context, raw string, topics []string) (*stylist.TextResult, error) {
	args := m.Called(raw, topics)
	res, _ := args.Get(0).(*stylist.TextResult)
	return res, args.Error(1)
}

type copyEditor struct{}

func (copyEditor) Edit(_ context.Context, src *stylist.Photo, _ string) (*stylist.Photo, error) {
	return src, nil
}

type testServer struct {
	handler   http.Handler
	stylist   *mockStylist
	engine    *workflow.Engine
	repo      *store.SQLiteStore
	images    *visual.Images
	artifacts *artifact.InMemoryStore
	metrics   *metrics.PrometheusRecorder
}

func newTestServer(t *testing.T, withVisual bool, wfOpts ...func(o *workflow.Options)) *testServer {
	t.Helper()

	repo, err := store.NewSQLite(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ms := &mockStylist{}
	artifacts := artifact.NewInMemoryStore()
	images := visual.NewImages(artifacts, nil)
	rec := metrics.NewPrometheusRecorder(prometheus.NewRegistry())

	var vis *visual.Service
	var wfVis workflow.Visualizer
	if withVisual {
		vis = visual.New(copyEditor{}, images, func(o *visual.Options) { o.Recorder = rec })
		wfVis = vis
	}

	engine := workflow.New(ms, wfVis, repo, wfOpts...)
	t.Cleanup(func() { _ = engine.Close(context.Background()) })

	d := Deps{
		Stylist:       ms,
		Workflow:      engine,
		Repo:          repo,
		Images:        images,
		Metrics:       rec,
		MaxPhotoBytes: 1 << 20,
	}
	if vis != nil {
		d.Visualizer = vis
	}

	return &testServer{
		handler:   NewRouter(d),
		stylist:   ms,
		engine:    engine,
		repo:      repo,
		images:    images,
		artifacts: artifacts,
		metrics:   rec,
	}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())

	return out
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"foo":"bar"}`, w.Body.String())
}

func TestPingAndMetrics(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"stylemesh"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stylemesh_http_requests_total")
}

func TestAgentEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	s.stylist.On("AnalyzePhoto", "https://example.com/me.jpg").Return(&stylist.Analysis{Analysis: `{"body_analysis":{}}`}, nil).Once()
	s.stylist.On("AnalyzePhoto", "https://example.com/missing.jpg").Return(nil, errors.Join(stylist.ErrPhotoFetch, errors.New("unexpected status 404"))).Once()
	s.stylist.On("RecommendOutfits", "work").Return(nil, errors.New("recommendation failed: quota exceeded")).Once()
	s.stylist.On("ResearchTrends", []string(nil)).Return(nil, stylist.ErrNoTopics).Once()
	s.stylist.On("ResearchTrends", []string{"denim"}).Return(&stylist.TextResult{Content: "denim report"}, nil).Once()
	s.stylist.On("FormatContent", "notes", []string{"denim"}).Return(&stylist.TextResult{Content: "# Denim"}, nil).Once()

	w := s.do(t, http.MethodPost, "/api/gemini/analyze-photo", "", map[string]any{"photo_url": "https://example.com/me.jpg", "occasion": "work"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"analysis":"{\"body_analysis\":{}}"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/gemini/analyze-photo", "", map[string]any{"photo_url": "https://example.com/missing.jpg"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "failed to load image")

	w = s.do(t, http.MethodPost, "/api/gemini/recommend-outfit", "", map[string]any{"analysis_result": "{}", "occasion": "work"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "recommendation failed: quota exceeded", decodeBody(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/agents/research", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No topics provided.", decodeBody(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/agents/research", "", map[string]any{"topics": []string{"denim"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "denim report", decodeBody(t, w)["content"])

	w = s.do(t, http.MethodPost, "/api/agents/format", "", map[string]any{"raw_content": "notes", "topics": []string{"denim"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# Denim", decodeBody(t, w)["content"])

	s.stylist.AssertExpectations(t)
}

func TestAgentEndpoints_BadBody(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/agents/research", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFluxEndpoints(t *testing.T) {
	disabled := newTestServer(t, false)
	w := disabled.do(t, http.MethodPost, "/api/flux/generate-outfit-visualization", "", map[string]any{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s := newTestServer(t, true)
	photo := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)

	w = s.do(t, http.MethodPost, "/api/flux/generate-outfit-visualization", "", map[string]any{
		"user_photo_url":     photo,
		"outfit_description": "camel coat",
		"style_prompt":       "editorial",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	vis := body["visualization"].(map[string]any)
	assert.Equal(t, float64(768), vis["width"])
	assert.Equal(t, float64(1024), vis["height"])

	img := s.do(t, http.MethodGet, vis["image_url"].(string), "", nil)
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/jpeg", img.Header().Get("Content-Type"))

	w = s.do(t, http.MethodPost, "/api/flux/generate-outfit-visualization", "", map[string]any{"user_photo_url": photo})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/flux/generate-multiple-outfits", "", map[string]any{
		"user_photo_url": photo,
		"outfits":        []map[string]any{{"name": "A"}, {}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body = decodeBody(t, w)
	assert.Equal(t, float64(2), body["total_generated"])
	assert.Len(t, body["visualizations"], 2)
}

func TestFashion_RequiresIdentity(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/api/fashion/history", "/api/fashion/favorites", "/api/fashion/status/u-1"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestFashion_EndToEnd(t *testing.T) {
	s := newTestServer(t, true)

	s.stylist.On("AnalyzePhoto", mock.MatchedBy(func(url string) bool {
		return strings.HasPrefix(url, visual.ImagePathPrefix+"user_1-")
	})).Return(&stylist.Analysis{Analysis: `{"body_analysis":{"body_type":"rectangle"},"color_analysis":{"best_colors":["teal","rust"]}}`}, nil)
	s.stylist.On("RecommendOutfits", "wedding").Return(&stylist.Recommendations{Recommendations: recsJSON}, nil)

	w := s.do(t, http.MethodPost, "/api/fashion/analyze", "user_1", map[string]any{"occasion": "wedding"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/fashion/analyze", "user_1", map[string]any{
		"photoFile":       "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes),
		"occasion":        "wedding",
		"userPreferences": map[string]any{"budget": "$200"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sessionID := decodeBody(t, w)["sessionId"].(string)
	require.True(t, strings.HasPrefix(sessionID, "user_1-"))

	s.engine.Wait()

	// status
	w = s.do(t, http.MethodGet, "/api/fashion/status/"+sessionID, "user_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody(t, w)
	assert.Equal(t, "completed", status["status"])
	assert.NotNil(t, status["results"])

	w = s.do(t, http.MethodGet, "/api/fashion/status/"+sessionID, "user_2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// results
	w = s.do(t, http.MethodGet, "/api/fashion/results/"+sessionID, "user_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "wedding", data["occasion"])
	assert.Len(t, data["visualizations"], 2)

	// history
	w = s.do(t, http.MethodGet, "/api/fashion/history", "user_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decodeBody(t, w)
	assert.Equal(t, float64(1), hist["total"])
	entry := hist["history"].([]any)[0].(map[string]any)
	assert.Equal(t, true, entry["hasVisualizations"])
	assert.Equal(t, "rectangle", entry["analysisData"].(map[string]any)["bodyType"])

	w = s.do(t, http.MethodGet, "/api/fashion/history", "user_2", nil)
	assert.Equal(t, "No outfit history found", decodeBody(t, w)["message"])

	// favourites
	w = s.do(t, http.MethodPost, "/api/fashion/favorites", "user_1", map[string]any{"sessionId": sessionID, "outfitIndex": 0, "action": "add"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, w)["totalFavorites"])

	w = s.do(t, http.MethodPost, "/api/fashion/favorites", "user_1", map[string]any{"sessionId": sessionID, "outfitIndex": 0, "action": "add"})
	assert.Equal(t, float64(1), decodeBody(t, w)["totalFavorites"])

	w = s.do(t, http.MethodPost, "/api/fashion/favorites", "user_1", map[string]any{"sessionId": sessionID, "outfitIndex": 9, "action": "add"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/fashion/favorites", "user_1", map[string]any{"sessionId": sessionID, "action": "add"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/fashion/favorites/check", "user_1", map[string]any{"sessionId": sessionID, "outfitIndex": 0})
	assert.Equal(t, true, decodeBody(t, w)["isFavorited"])

	w = s.do(t, http.MethodGet, "/api/fashion/favorites", "user_1", nil)
	favs := decodeBody(t, w)
	assert.Equal(t, float64(1), favs["total"])
	fav := favs["favorites"].([]any)[0].(map[string]any)
	assert.Equal(t, "Office Ease", fav["outfitName"])
	assert.NotEmpty(t, fav["imageUrl"])

	// download
	w = s.do(t, http.MethodPost, "/api/fashion/download", "user_1", map[string]any{
		"sessionId": sessionID, "outfitIndex": 0, "imageUrl": fav["imageUrl"], "outfitName": "Office Ease!",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="office-ease-`)
	assert.Equal(t, jpegBytes, w.Body.Bytes())

	w = s.do(t, http.MethodPost, "/api/fashion/download", "user_2", map[string]any{
		"sessionId": sessionID, "outfitIndex": 0, "imageUrl": fav["imageUrl"],
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/fashion/favorites", "user_1", map[string]any{"sessionId": sessionID, "outfitIndex": 0, "action": "remove"})
	assert.Equal(t, false, decodeBody(t, w)["isFavorited"])

	// delete
	w = s.do(t, http.MethodDelete, "/api/fashion/delete", "user_2", map[string]any{"sessionId": sessionID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodDelete, "/api/fashion/delete", "user_1", map[string]any{"sessionId": sessionID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["deleted"])

	w = s.do(t, http.MethodGet, "/api/fashion/results/"+sessionID, "user_1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, fav["imageUrl"].(string), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFashion_FailedWorkflowStatus(t *testing.T) {
	s := newTestServer(t, false)

	s.stylist.On("AnalyzePhoto", mock.Anything).Return(nil, errors.New("PermissionDenied: quota exceeded"))

	w := s.do(t, http.MethodPost, "/api/fashion/analyze", "user_1", map[string]any{
		"photoFile":       base64.StdEncoding.EncodeToString(jpegBytes),
		"occasion":        "brunch",
		"userPreferences": map[string]any{},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sessionID := decodeBody(t, w)["sessionId"].(string)

	s.engine.Wait()

	w = s.do(t, http.MethodGet, "/api/fashion/status/"+sessionID, "user_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody(t, w)
	assert.Equal(t, "failed", status["status"])
	assert.Contains(t, status["error"], "PermissionDenied")
}

func fixedNow() func(o *workflow.Options) {
	now := time.UnixMilli(1_750_000_000_000)
	return func(o *workflow.Options) { o.Now = func() time.Time { return now } }
}

func analyzeBody(occasion string) map[string]any {
	return map[string]any{
		"photoFile":       "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes),
		"occasion":        occasion,
		"userPreferences": map[string]any{"budget": "$200"},
	}
}

func TestFashion_SameMillisecondUploads(t *testing.T) {
	s := newTestServer(t, false, fixedNow())
	s.stylist.block = make(chan struct{})

	s.stylist.On("AnalyzePhoto", mock.Anything).Return(&stylist.Analysis{Analysis: `{"body_analysis":{}}`}, nil)
	s.stylist.On("RecommendOutfits", "wedding").Return(&stylist.Recommendations{Recommendations: recsJSON}, nil)

	var sessions, photos []string
	for range 2 {
		w := s.do(t, http.MethodPost, "/api/fashion/analyze", "user_1", analyzeBody("wedding"))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		body := decodeBody(t, w)
		sessions = append(sessions, body["sessionId"].(string))
		photos = append(photos, body["photoUrl"].(string))
	}

	assert.Equal(t, []string{"user_1-1750000000000", "user_1-1750000000001"}, sessions)

	for _, p := range photos {
		w := s.do(t, http.MethodGet, p, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, p)
	}

	close(s.stylist.block)
	s.engine.Wait()

	// saved results keep their ids
	w := s.do(t, http.MethodPost, "/api/fashion/analyze", "user_1", analyzeBody("wedding"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "user_1-1750000000002", decodeBody(t, w)["sessionId"])

	s.engine.Wait()

	for _, id := range sessions {
		_, err := s.repo.GetResult(context.Background(), "user_1", id)
		assert.NoError(t, err, id)
	}
}

type rejectingWorkflow struct {
	*workflow.Engine
}

func (rejectingWorkflow) StartSession(context.Context, string, workflow.Request) (string, error) {
	return "", errors.New("queue full")
}

func TestFashion_StartFailureKeepsOtherImages(t *testing.T) {
	s := newTestServer(t, false, fixedNow())

	d := Deps{
		Stylist:       s.stylist,
		Workflow:      rejectingWorkflow{s.engine},
		Repo:          s.repo,
		Images:        s.images,
		Metrics:       s.metrics,
		MaxPhotoBytes: 1 << 20,
	}
	handler := NewRouter(d)

	const sessionID = "user_1-1750000000000"

	other, err := s.images.Put(sessionID, "outfit-0", jpegBytes)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(analyzeBody("gala")))

	req := httptest.NewRequest(http.MethodPost, "/api/fashion/analyze", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserHeader, "user_1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	ids, err := s.artifacts.List(sessionID)
	require.NoError(t, err)
	_, otherID, _ := visual.ParseURL(other)
	assert.Equal(t, []string{otherID}, ids)

	// the reservation was released
	id, err := s.engine.Reserve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, sessionID, id)
}

func TestFashion_DeleteWhileProcessing(t *testing.T) {
	s := newTestServer(t, false)
	s.stylist.block = make(chan struct{})
	defer close(s.stylist.block)

	s.stylist.On("AnalyzePhoto", mock.Anything).Return(&stylist.Analysis{Analysis: `{"body_analysis":{}}`}, nil)
	s.stylist.On("RecommendOutfits", "brunch").Return(&stylist.Recommendations{Recommendations: recsJSON}, nil).Maybe()

	w := s.do(t, http.MethodPost, "/api/fashion/analyze", "user_1", analyzeBody("brunch"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sessionID := decodeBody(t, w)["sessionId"].(string)

	w = s.do(t, http.MethodDelete, "/api/fashion/delete", "user_1", map[string]any{"sessionId": sessionID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["deleted"])

	s.engine.Wait()

	w = s.do(t, http.MethodGet, "/api/fashion/status/"+sessionID, "user_1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/fashion/results/"+sessionID, "user_1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/fashion/history", "user_1", nil)
	assert.Equal(t, "No outfit history found", decodeBody(t, w)["message"])
	s.stylist.AssertNotCalled(t, "RecommendOutfits", "brunch")
}

func TestOwnsSession(t *testing.T) {
	assert.True(t, ownsSession("u1", "u1-123"))
	assert.False(t, ownsSession("u1", "u12-123"))
	assert.False(t, ownsSession("", "-123"))
}
