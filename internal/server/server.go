// Package server is the session host's inbound HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/wattwise/internal/agent"
	"github.com/user/wattwise/internal/gateway"
	"github.com/user/wattwise/internal/realtime"
	"github.com/user/wattwise/internal/session"
	"github.com/user/wattwise/internal/types"
)

// ArtifactFetcher retrieves artifact content by canonical path. The host
// does not own the store; it delegates to the tool service.
type ArtifactFetcher interface {
	FetchArtifact(ctx context.Context, path string) ([]byte, error)
}

// Server wires the chat API, session operations, artifact pass-through
// and the realtime channel.
type Server struct {
	addr      string
	sessions  *session.Manager
	queue     *gateway.Queue
	hub       *realtime.Hub
	artifacts ArtifactFetcher
	logger    *slog.Logger
	http      *http.Server
}

func New(addr string, sessions *session.Manager, queue *gateway.Queue, hub *realtime.Hub, artifacts ArtifactFetcher, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		sessions:  sessions,
		queue:     queue,
		hub:       hub,
		artifacts: artifacts,
		logger:    logger.With("component", "http"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /export", s.handleExport)
	mux.HandleFunc("GET /ws", s.hub.HandleWS)
	mux.HandleFunc("GET /reports/{file}", s.handleArtifact)
	mux.HandleFunc("GET /visualizations/{file}", s.handleArtifact)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start runs the server until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("session host listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response  string   `json:"response"`
	SessionID string   `json:"sessionId"`
	Artifacts []string `json:"artifacts,omitempty"`
	Degraded  bool     `json:"degraded,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}

	var sid types.SessionID
	if req.SessionID == "" {
		sid = s.sessions.Create()
	} else {
		sid = types.SessionID(req.SessionID)
		if !s.sessions.Exists(sid) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
	}

	type outcome struct {
		turn *agent.Turn
		err  error
	}
	done := make(chan outcome, 1)
	s.queue.Enqueue(&gateway.Inbound{
		ID:        types.NewTurnID(),
		SessionID: sid,
		Text:      req.Message,
		// Detached so a dropped client does not cancel the queued turn.
		Ctx: context.WithoutCancel(r.Context()),
		OnComplete: func(turn *agent.Turn, err error) {
			done <- outcome{turn: turn, err: err}
		},
	})

	out := <-done
	if out.err != nil {
		s.writeTurnError(w, out.err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  out.turn.Answer,
		SessionID: string(sid),
		Artifacts: out.turn.Artifacts,
		Degraded:  out.turn.Degraded,
	})
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, agent.ErrInferenceUnavailable):
		writeError(w, http.StatusBadGateway, "inference_unavailable")
	case errors.Is(err, agent.ErrTurnTimeout):
		writeError(w, http.StatusGatewayTimeout, "turn_timeout")
	default:
		s.logger.Error("turn failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type resetRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.sessions.Reset(types.SessionID(req.SessionID)); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sid := types.SessionID(r.URL.Query().Get("sessionId"))
	data, err := s.sessions.Export(sid)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="conversation.json"`)
	w.Write(data)
}

// handleArtifact passes artifact GETs through to the tool service, which
// owns the store.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	content, err := s.artifacts.FetchArtifact(r.Context(), r.URL.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
