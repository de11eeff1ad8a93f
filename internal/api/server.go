// Package api provides the HTTP server for studychat.
//
// Routes:
//
//	GET  /                 → Chat UI
//	GET  /static/*         → Static assets (CSS, JS)
//	POST /save-settings    → Store API key + student level {"apiKey":"...","studentLevel":"..."}
//	GET  /api/settings     → Current level and whether a key is configured (never the key)
//	POST /chat             → Forward a message {"message":"..."} → {"reply":"..."}
//	GET  /health           → Health check (also pings the settings store)
//	GET  /api/metrics      → JSON metrics snapshot (or SSE stream)
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hartyporpoise/studychat/internal/chat"
	"github.com/hartyporpoise/studychat/internal/config"
	"github.com/hartyporpoise/studychat/internal/metrics"
	"github.com/hartyporpoise/studychat/internal/settings"
)

const (
	// maxRequestBodyBytes caps incoming JSON request bodies at 1 MB.
	maxRequestBodyBytes = 1 << 20

	// shutdownTimeout bounds how long Run waits for in-flight requests.
	shutdownTimeout = 10 * time.Second
)

// Forwarder relays one chat message. Implemented by *chat.Forwarder.
type Forwarder interface {
	Forward(ctx context.Context, message string) (string, error)
}

// Server is the studychat HTTP server.
type Server struct {
	cfg       *config.Config
	store     settings.Store
	forwarder Forwarder
	metrics   *metrics.Collector
	log       *slog.Logger
	mux       *http.ServeMux
	handler   http.Handler
	started   time.Time
}

// NewServer creates a Server with all routes registered.
func NewServer(cfg *config.Config, store settings.Store, fwd Forwarder, mc *metrics.Collector, log *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		forwarder: fwd,
		metrics:   mc,
		log:       log,
		mux:       http.NewServeMux(),
		started:   time.Now(),
	}
	s.registerRoutes()
	s.handler = s.withRequestID(s.withAccessLog(s.mux))
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves on addr (e.g. "0.0.0.0:3000") until ctx is cancelled, then
// drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// ReadHeaderTimeout prevents slow-loris: clients that send headers very
		// slowly would otherwise hold a goroutine open indefinitely.
		ReadHeaderTimeout: 10 * time.Second,
		// IdleTimeout closes keep-alive connections that sit idle too long.
		IdleTimeout: 120 * time.Second,
		// WriteTimeout left unset: the metrics SSE stream is long-lived. Chat
		// calls are bounded by the provider timeout instead.
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("studychat listening", "addr", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleUI)
	s.mux.Handle("/static/", readOnly(http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles)))))

	// Settings + chat
	s.mux.HandleFunc("/save-settings", s.handleSaveSettings)
	s.mux.HandleFunc("/api/settings", s.handleGetSettings)
	s.mux.HandleFunc("/chat", s.handleChat)

	// Utility
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/metrics", s.handleMetrics)
}

// ─────────────────────────────────────────────────────────────────────────
// UI
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	f, err := staticFiles.Open("index.html")
	if err != nil {
		http.Error(w, "UI not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.Copy(w, f)
}

// ─────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────

type saveSettingsRequest struct {
	APIKey       string `json:"apiKey"`
	StudentLevel string `json:"studentLevel"`
}

// handleSaveSettings overwrites both stored values. Neither field is
// validated: an empty key clears it, an unknown level is stored as given.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req saveSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	level := settings.Level(req.StudentLevel)
	if level != "" && !level.Known() {
		s.log.WarnContext(r.Context(), "storing unknown student level", "student_level", req.StudentLevel)
	}

	err := s.store.Save(r.Context(), settings.Settings{APIKey: req.APIKey, StudentLevel: level})
	if err != nil {
		s.log.ErrorContext(r.Context(), "save settings", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	s.metrics.RecordSettingsSave()
	s.log.InfoContext(r.Context(), "settings saved",
		"api_key_set", req.APIKey != "",
		"student_level", req.StudentLevel)

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleGetSettings lets the UI preselect the stored level.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st, err := s.store.Get(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "read settings", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"studentLevel":     st.StudentLevel,
		"apiKeyConfigured": st.HasAPIKey(),
		"levels":           settings.Levels(),
	})
}

// ─────────────────────────────────────────────────────────────────────────
// Chat
// ─────────────────────────────────────────────────────────────────────────

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.forwarder.Forward(r.Context(), req.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	case errors.Is(err, chat.ErrAPIKeyMissing):
		writeError(w, http.StatusBadRequest, chat.ErrAPIKeyMissing.Error())
	default:
		// The cause was logged by the forwarder; callers get the generic text.
		writeError(w, http.StatusInternalServerError, chat.ErrProvider.Error())
	}
}

// ─────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	storeOK := true
	if err := s.store.Ping(r.Context()); err != nil {
		storeOK = false
		s.log.WarnContext(r.Context(), "store ping failed", "err", err)
	}
	status, code := "ok", http.StatusOK
	if !storeOK {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"store":          settings.Backend(s.cfg.StoreURL),
		"store_ok":       storeOK,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

// ─────────────────────────────────────────────────────────────────────────
// Metrics
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.Header.Get("Accept") == "text/event-stream" {
		s.streamMetrics(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) streamMetrics(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			data, _ := json.Marshal(s.metrics.Snapshot())
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────

// readOnly rejects everything but GET and HEAD.
func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
