package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kadirpekel/worldcore/bus"
	"github.com/kadirpekel/worldcore/core"
	"github.com/kadirpekel/worldcore/logctx"
	"github.com/kadirpekel/worldcore/observability"
	"github.com/kadirpekel/worldcore/world"
)

// server wires the world.Facade behind chi routes and a websocket
// event stream. It is intentionally thin: every real decision
// (turn-taking, tool execution, persistence) lives in the packages it
// calls into.
type server struct {
	facade  *world.Facade
	metrics *observability.Metrics

	mu     sync.RWMutex
	worlds map[string]*core.World
}

func newServer(facade *world.Facade, metrics *observability.Metrics) *server {
	return &server{facade: facade, metrics: metrics, worlds: make(map[string]*core.World)}
}

func (s *server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.metricsMiddleware)

	r.Post("/worlds", s.handleCreateWorld)
	r.Get("/worlds/{worldID}", s.handleGetWorld)
	r.Post("/worlds/{worldID}/agents", s.handleAddAgent)
	r.Post("/worlds/{worldID}/messages", s.handleSubmitMessage)
	r.Post("/worlds/{worldID}/messages/{messageID}", s.handleEditMessage)
	r.Post("/worlds/{worldID}/cancel/{chatID}", s.handleCancelChat)
	r.Get("/worlds/{worldID}/stream", s.handleStream)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) { s.metrics.Handler().ServeHTTP(w, req) })

	return r
}

// metricsMiddleware writes a debug log line with each request's method,
// chi route pattern, status and duration; it records no metrics. The
// pattern comes straight from the router, the approach the rest of the
// corpus uses to avoid regex path matching.
func (s *server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		logctx.Default().Debug("http request", "method", r.Method, "path", pattern, "status", ww.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type createWorldRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *server) handleCreateWorld(w http.ResponseWriter, r *http.Request) {
	var req createWorldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	wd, err := s.facade.CreateWorld(r.Context(), req.Name, req.Description)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	s.worlds[wd.ID] = wd
	s.mu.Unlock()

	respondJSON(w, http.StatusCreated, wd)
}

func (s *server) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	wd, ok := s.lookupWorld(r)
	if !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, wd)
}

type addAgentRequest struct {
	Name         string  `json:"name"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	AutoReply    bool    `json:"auto_reply"`
}

func (s *server) handleAddAgent(w http.ResponseWriter, r *http.Request) {
	wd, ok := s.lookupWorld(r)
	if !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}

	var req addAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	agent := &core.Agent{
		Name:         req.Name,
		Provider:     req.Provider,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		AutoReply:    req.AutoReply,
	}
	if err := s.facade.AddAgent(r.Context(), wd, agent); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, agent)
}

type submitMessageRequest struct {
	Content string `json:"content"`
}

func (s *server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	wd, ok := s.lookupWorld(r)
	if !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}

	var req submitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := s.facade.SubmitMessage(r.Context(), wd, req.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, msg)
}

type editMessageRequest struct {
	ChatID     string `json:"chat_id"`
	NewContent string `json:"new_content"`
}

func (s *server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	wd, ok := s.lookupWorld(r)
	if !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}
	messageID := chi.URLParam(r, "messageID")

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	edited, err := s.facade.Edits.EditUserMessage(r.Context(), wd, req.ChatID, messageID, req.NewContent)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, edited)
}

func (s *server) handleCancelChat(w http.ResponseWriter, r *http.Request) {
	worldID := chi.URLParam(r, "worldID")
	chatID := chi.URLParam(r, "chatID")
	s.facade.CancelChat(worldID, chatID)
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and relays every bus event for
// the world as a JSON frame, until the client disconnects.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	worldID := chi.URLParam(r, "worldID")
	b, ok := s.facade.Bus(worldID)
	if !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	kinds := []bus.EventKind{bus.KindMessage, bus.KindSSE, bus.KindTool, bus.KindActivity, bus.KindSystem, bus.KindLog}
	var unsubs []func()
	for _, kind := range kinds {
		k := kind
		unsubs = append(unsubs, b.Subscribe(k, func(ev bus.Event) {
			if err := conn.WriteJSON(map[string]any{"kind": string(k), "payload": ev.Payload}); err != nil {
				return
			}
		}))
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	// Block until the client disconnects; inbound messages on this
	// socket are not part of the protocol (submission goes through
	// the HTTP POST endpoints), so discard anything we read.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *server) lookupWorld(r *http.Request) (*core.World, bool) {
	worldID := chi.URLParam(r, "worldID")
	s.mu.RLock()
	defer s.mu.RUnlock()
	wd, ok := s.worlds[worldID]
	return wd, ok
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
