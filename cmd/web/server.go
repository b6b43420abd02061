package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"aura-farm-transformer/internal/archive"
	"aura-farm-transformer/internal/rating"
	"aura-farm-transformer/internal/session"
	"aura-farm-transformer/internal/styles"
	"aura-farm-transformer/internal/visitor"
)

const sessionCookie = "af_session"

type transformer interface {
	Transform(ctx context.Context, apiKey string, image []byte, style styles.Style, n int, size string) ([]string, error)
}

type packager interface {
	Package(ctx context.Context, urls []string, style styles.Style) ([]byte, []archive.FetchError, error)
}

type server struct {
	ai       transformer
	packager packager
	sessions *session.Store
	visitors *visitor.Tracker
	logger   *slog.Logger

	requestTimeout time.Duration
	sizes          []string
}

type apiError struct {
	Error string `json:"error"`
}

type visitResponse struct {
	Total int `json:"total"`
}

type transformResponse struct {
	Images  []rawImage `json:"images"`
	Warning string     `json:"warning,omitempty"`
}

type rawImage struct {
	URL    string        `json:"url"`
	Rating rating.Rating `json:"rating"`
}

type resultsResponse struct {
	Style  string   `json:"style"`
	Images []string `json:"images"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/styles", s.handleStyles)
	mux.HandleFunc("/api/visit", s.handleVisit)
	mux.HandleFunc("/api/transform", s.handleTransform)
	mux.HandleFunc("/api/results", s.handleResults)
	mux.HandleFunc("/api/archive", s.handleArchive)
	return mux
}

func (s *server) handleStyles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	names := make([]string, 0, len(styles.All()))
	for _, st := range styles.All() {
		names = append(names, string(st))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"styles": names,
		"sizes":  s.sizes,
		"counts": []int{1, 2, 3, 4},
	})
}

// handleVisit is the page-load gate: it issues a session cookie when the
// client has none and records the session with the visitor tracker.
func (s *server) handleVisit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	key := s.sessionKey(w, r)
	state := s.sessions.Get(key)

	total, err := s.visitors.Record(state.ID)
	if err != nil {
		s.logger.Error("visitor tracking failed", "err", err)
	}
	writeJSON(w, http.StatusOK, visitResponse{Total: total})
}

func (s *server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	const maxUploadBytes = 25 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	// Validation happens before anything touches the image service.
	apiKey := strings.TrimSpace(r.FormValue("api_key"))
	if apiKey == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Please provide your OpenAI API key."})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Please upload an image to transform."})
		return
	}
	defer file.Close()

	imgBytes, err := io.ReadAll(file)
	if err != nil || len(imgBytes) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Please upload an image to transform."})
		return
	}

	style, ok := styles.Parse(r.FormValue("style"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "unknown transformation style"})
		return
	}

	count := 1
	if raw := strings.TrimSpace(r.FormValue("count")); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 1 || count > 4 {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "count must be between 1 and 4"})
			return
		}
	}

	size := strings.TrimSpace(r.FormValue("size"))
	if size == "" {
		size = s.sizes[0]
	}
	if !validSize(s.sizes, size) {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "unsupported image size"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	urls, err := s.ai.Transform(ctx, apiKey, imgBytes, style, count, size)
	if err != nil {
		s.logger.Error("transformation failed", "style", style, "err", err)
		writeJSON(w, http.StatusBadGateway, apiError{Error: "Error transforming image: " + err.Error()})
		return
	}

	key := s.sessionKey(w, r)
	s.sessions.Update(key, func(st *session.State) {
		st.Style = style
		st.Count = count
		st.Size = size
		st.Images = append([]string(nil), urls...)
	})

	resp := transformResponse{Images: make([]rawImage, 0, len(urls))}
	for _, url := range urls {
		resp.Images = append(resp.Images, rawImage{URL: url, Rating: rating.New(nil)})
	}
	if len(urls) != count {
		resp.Warning = fmt.Sprintf("service returned %d of %d requested images", len(urls), count)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	state := s.sessions.Get(s.sessionKey(w, r))
	writeJSON(w, http.StatusOK, resultsResponse{
		Style:  string(state.Style),
		Images: state.Images,
	})
}

func (s *server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	state := s.sessions.Get(s.sessionKey(w, r))
	if len(state.Images) == 0 {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no transformations to download yet"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	data, failures, err := s.packager.Package(ctx, state.Images, state.Style)
	if err != nil {
		s.logger.Error("packaging failed", "err", err)
		writeJSON(w, http.StatusBadGateway, apiError{Error: "failed to build archive"})
		return
	}

	for _, f := range failures {
		s.logger.Warn("archive item skipped", "index", f.Index, "status", f.Status, "err", f.Err)
	}

	w.Header().Set("content-type", "application/zip")
	w.Header().Set("content-disposition", `attachment; filename="`+archive.Filename(state.Style)+`"`)
	w.Header().Set("x-fetch-failures", strconv.Itoa(len(failures)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// sessionKey reads the session cookie, minting one for new clients. The
// cookie value doubles as the store key; the visitor-tracking id lives
// inside the session state.
func (s *server) sessionKey(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	value := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return value
}

func validSize(sizes []string, size string) bool {
	for _, s := range sizes {
		if s == size {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
