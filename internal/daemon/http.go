package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/graphbridge/internal/dispatch"
	berrors "git.home.luguber.info/inful/graphbridge/internal/errors"
	"git.home.luguber.info/inful/graphbridge/internal/graph"
	"git.home.luguber.info/inful/graphbridge/internal/metrics"
)

// Server exposes the compile endpoint, Prometheus exposition, and health check.
type Server struct {
	addr       string
	dispatcher *dispatch.Dispatcher
	server     *http.Server
}

// NewServer builds the HTTP surface on the given listen address.
func NewServer(addr string, dispatcher *dispatch.Dispatcher, reg *metrics.PromRegistry) *Server {
	s := &Server{
		addr:       addr,
		dispatcher: dispatcher,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /compile", s.handleCompile)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg.Registry(), promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// ListenAndServe binds the listen address and serves until Shutdown or the
// context is cancelled. Binding is done up front so startup failures surface
// immediately instead of after partial initialization.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}

	slog.Info("HTTP server started", "addr", s.addr)

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// compileRequest is the wire form of a compilation request.
type compileRequest struct {
	Source    string                `json:"source"`
	ArgShapes []graph.ArgumentShape `json:"arg_shapes,omitempty"`
	Metadata  graph.Metadata        `json:"metadata"`
}

// errorResponse carries the failure kind alongside the message so callers can
// distinguish unsupported constructs from internal faults.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var body compileRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	req, err := graph.NewCompilationRequest(body.Source, body.ArgShapes, body.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	artifact, err := s.dispatcher.Compile(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(artifact)
}

func statusForError(err error) int {
	switch berrors.KindOf(err) {
	case berrors.KindAnalysisUnavailable:
		return http.StatusServiceUnavailable
	case berrors.KindUnsupportedConstruct:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := errorResponse{Error: err.Error()}
	if code != http.StatusBadRequest {
		resp.Kind = string(berrors.KindOf(err))
	}
	_ = json.NewEncoder(w).Encode(resp)
}
