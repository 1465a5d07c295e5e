package toolsvc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/wattwise/internal/artifact"
	"github.com/user/wattwise/internal/auth"
	"github.com/user/wattwise/internal/types"
)

// Server is the tool service's HTTP surface: the credential handshake,
// tool dispatch and immutable artifact retrieval.
type Server struct {
	addr      string
	auth      *auth.Service
	executor  *Executor
	artifacts *artifact.Store
	logger    *slog.Logger
	http      *http.Server
}

func NewServer(addr string, authSvc *auth.Service, executor *Executor, artifacts *artifact.Store, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		auth:      authSvc,
		executor:  executor,
		artifacts: artifacts,
		logger:    logger.With("component", "toolsvc-http"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth", s.handleAuth)
	mux.HandleFunc("GET /tools", s.requireToken(s.handleTools))
	mux.HandleFunc("POST /api/tool", s.requireToken(s.handleTool))
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
		s.logger.Info("tool service listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
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

type authRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.auth.Authenticate(req.ClientID, req.ClientSecret)
	if err != nil {
		s.logger.Warn("handshake rejected", "client_id", req.ClientID)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.logger.Info("client authenticated", "client_id", req.ClientID)
	writeJSON(w, http.StatusOK, authResponse{
		Token:     token,
		ExpiresIn: int(s.auth.TTL().Seconds()),
	})
}

// requireToken guards a handler with bearer-token verification. Expired
// tokens get a distinguishable error code so clients renew instead of
// giving up.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := s.auth.Verify(token); err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token_expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	decls, err := s.executor.Declarations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list tools")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": decls})
}

type toolRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Seq       int             `json:"seq"`
	ID        string          `json:"id"`
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result := s.executor.Execute(r.Context(), types.ToolCall{
		Seq:       req.Seq,
		ID:        req.ID,
		Name:      req.Tool,
		Arguments: req.Arguments,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	content, err := s.artifacts.GetByPath(r.Context(), r.URL.Path)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid artifact path")
		return
	}
	// Artifacts are write-once, so clients may cache forever.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
