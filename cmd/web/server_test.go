package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aura-farm-transformer/internal/archive"
	"aura-farm-transformer/internal/openai"
	"aura-farm-transformer/internal/session"
	"aura-farm-transformer/internal/styles"
	"aura-farm-transformer/internal/visitor"
)

type fakeTransformer struct {
	calls int
	urls  []string
	err   error

	lastStyle styles.Style
	lastN     int
	lastSize  string
}

func (f *fakeTransformer) Transform(_ context.Context, _ string, _ []byte, style styles.Style, n int, size string) ([]string, error) {
	f.calls++
	f.lastStyle = style
	f.lastN = n
	f.lastSize = size
	return f.urls, f.err
}

type fakePackager struct {
	calls    int
	data     []byte
	failures []archive.FetchError

	lastURLs []string
}

func (f *fakePackager) Package(_ context.Context, urls []string, _ styles.Style) ([]byte, []archive.FetchError, error) {
	f.calls++
	f.lastURLs = urls
	return f.data, f.failures, nil
}

func newTestServer(t *testing.T) (*server, *fakeTransformer, *fakePackager) {
	t.Helper()

	ai := &fakeTransformer{urls: []string{"https://img.test/1", "https://img.test/2"}}
	pk := &fakePackager{data: []byte("PK\x05\x06fake")}

	s := &server{
		ai:       ai,
		packager: pk,
		sessions: session.NewStore(),
		visitors: visitor.NewTracker(visitor.Options{
			Path: filepath.Join(t.TempDir(), "visitor_data.json"),
		}),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		requestTimeout: 5 * time.Second,
		sizes:          openai.Sizes,
	}
	return s, ai, pk
}

func transformForm(t *testing.T, withImage bool, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if withImage {
		part, err := w.CreateFormFile("image", "cat.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("not-really-a-png"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestTransformWithoutImageNeverCallsService(t *testing.T) {
	s, ai, _ := newTestServer(t)

	body, contentType := transformForm(t, false, map[string]string{
		"api_key": "sk-test",
		"style":   "Ghibli",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/transform", body)
	req.Header.Set("content-type", contentType)
	rec := httptest.NewRecorder()

	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "upload an image")
	assert.Zero(t, ai.calls)
}

func TestTransformWithoutAPIKeyNeverCallsService(t *testing.T) {
	s, ai, _ := newTestServer(t)

	body, contentType := transformForm(t, true, map[string]string{
		"style": "Ghibli",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/transform", body)
	req.Header.Set("content-type", contentType)
	rec := httptest.NewRecorder()

	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "API key")
	assert.Zero(t, ai.calls)
}

func TestTransformSuccessCachesResultsForSession(t *testing.T) {
	s, ai, _ := newTestServer(t)
	mux := s.routes()

	body, contentType := transformForm(t, true, map[string]string{
		"api_key": "sk-test",
		"style":   "minecraft",
		"count":   "2",
		"size":    "512x512",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/transform", body)
	req.Header.Set("content-type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, styles.Minecraft, ai.lastStyle)
	assert.Equal(t, 2, ai.lastN)
	assert.Equal(t, "512x512", ai.lastSize)

	var resp transformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Images, 2)
	assert.Equal(t, "https://img.test/1", resp.Images[0].URL)
	assert.Empty(t, resp.Warning)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// Redisplay from the session cache.
	req = httptest.NewRequest(http.MethodGet, "/api/results", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var results resultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Equal(t, "Minecraft", results.Style)
	assert.Equal(t, []string{"https://img.test/1", "https://img.test/2"}, results.Images)
}

func TestTransformShortResultCarriesWarning(t *testing.T) {
	s, ai, _ := newTestServer(t)
	ai.urls = []string{"https://img.test/1"}

	body, contentType := transformForm(t, true, map[string]string{
		"api_key": "sk-test",
		"style":   "Humanize",
		"count":   "3",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/transform", body)
	req.Header.Set("content-type", contentType)
	rec := httptest.NewRecorder()

	s.routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Warning, "1 of 3")
}

func TestTransformRejectsUnknownStyleAndBadCount(t *testing.T) {
	s, ai, _ := newTestServer(t)
	mux := s.routes()

	for _, fields := range []map[string]string{
		{"api_key": "sk", "style": "picasso"},
		{"api_key": "sk", "style": "Ghibli", "count": "5"},
		{"api_key": "sk", "style": "Ghibli", "size": "2048x2048"},
	} {
		body, contentType := transformForm(t, true, fields)
		req := httptest.NewRequest(http.MethodPost, "/api/transform", body)
		req.Header.Set("content-type", contentType)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	assert.Zero(t, ai.calls)
}

func TestArchiveStreamsZipWithDownloadName(t *testing.T) {
	s, _, pk := newTestServer(t)
	mux := s.routes()

	// Seed the session cache directly.
	s.sessions.Update("client", func(st *session.State) {
		st.Style = styles.ChickenJockey
		st.Images = []string{"https://img.test/1", "https://img.test/2"}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/archive", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "client"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, pk.calls)
	assert.Equal(t, []string{"https://img.test/1", "https://img.test/2"}, pk.lastURLs)
	assert.Equal(t, "application/zip", rec.Header().Get("content-type"))
	assert.Contains(t, rec.Header().Get("content-disposition"), "aura_farm_chicken-jockey_transformations.zip")
	assert.Equal(t, "0", rec.Header().Get("x-fetch-failures"))
	assert.Equal(t, pk.data, rec.Body.Bytes())
}

func TestArchiveWithoutResults(t *testing.T) {
	s, _, pk := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/archive", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, pk.calls)
}

func TestVisitCountsOncePerSession(t *testing.T) {
	s, _, _ := newTestServer(t)
	mux := s.routes()

	req := httptest.NewRequest(http.MethodPost, "/api/visit", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var first visitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, 1, first.Total)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// Same session again: still one visitor.
	req = httptest.NewRequest(http.MethodPost, "/api/visit", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var second visitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, 1, second.Total)

	// A different client counts.
	req = httptest.NewRequest(http.MethodPost, "/api/visit", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var third visitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &third))
	assert.Equal(t, 2, third.Total)
}

func TestStylesListing(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/styles", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chicken-Jockey")
	assert.Contains(t, rec.Body.String(), "1024x1024")
}
