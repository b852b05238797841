package approval

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/davebot/dave/internal/models"
)

//go:embed page.html
var pageHTML []byte

const (
	// DefaultPort is probed first; busy ports fall through to the next one.
	DefaultPort = 8080

	// maxPortProbes bounds the sequential port search.
	maxPortProbes = 100

	// defaultPollTimeout is how long GET /status blocks server-side before
	// answering 204. Keeps browser connections from hanging indefinitely.
	defaultPollTimeout = 28 * time.Second
)

// decisionRoutes maps POST paths to decision kinds.
var decisionRoutes = map[string]models.DecisionKind{
	"/approve":        models.DecisionApprove,
	"/reject":         models.DecisionReject,
	"/feedback":       models.DecisionFeedback,
	"/user_input":     models.DecisionUserInput,
	"/resume_run":     models.DecisionResumeRun,
	"/delete_run":     models.DecisionDeleteRun,
	"/generate_task":  models.DecisionGenerateTask,
	"/start_analysis": models.DecisionStartAnalysis,
}

// Server exposes a Channel over HTTP for the browser approval page. It runs
// on its own goroutine and never blocks process exit.
type Server struct {
	channel     *Channel
	logger      *slog.Logger
	pollTimeout time.Duration

	httpSrv *http.Server
	port    int
}

// NewServer creates a server bridging the given channel.
func NewServer(ch *Channel, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		channel:     ch,
		logger:      logger,
		pollTimeout: defaultPollTimeout,
	}
}

// SetPollTimeout overrides how long GET /status blocks before answering 204.
// Must be called before Start.
func (s *Server) SetPollTimeout(d time.Duration) {
	if d > 0 {
		s.pollTimeout = d
	}
}

// Start binds the first free port at or above startPort and begins serving.
// It returns the bound port. Binding failure across the whole probe range
// is fatal for the run: the caller must abort before any destructive work.
func (s *Server) Start(startPort int) (int, error) {
	if startPort <= 0 {
		startPort = DefaultPort
	}

	var ln net.Listener
	var err error
	for i := 0; i < maxPortProbes; i++ {
		port := startPort + i
		ln, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			s.port = port
			break
		}
		s.logger.Info("port in use, trying next", "port", port)
	}
	if ln == nil {
		return 0, fmt.Errorf("no free port in range %d-%d: %w",
			startPort, startPort+maxPortProbes-1, err)
	}

	s.httpSrv = &http.Server{Handler: corsMiddleware(s.router())}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("approval server stopped", "error", err)
		}
	}()

	s.logger.Info("approval server listening", "url", s.URL())
	return s.port, nil
}

// Port returns the bound port, valid after Start.
func (s *Server) Port() int { return s.port }

// URL returns the approval page address, valid after Start.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d/", s.port)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pageHTML)
	})

	mux.HandleFunc("GET /status", s.handleStatus)

	for path, kind := range decisionRoutes {
		mux.HandleFunc("POST "+path, s.decisionHandler(kind))
	}

	return mux
}

// handleStatus long-polls the outbound feed: 200 with exactly one event, or
// 204 when nothing arrived within the window.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	event, ok := s.channel.NextEvent(s.pollTimeout)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) decisionHandler(kind models.DecisionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "cannot read request body")
			return
		}

		decision, err := models.ParseDecision(kind, body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if !s.channel.PostDecision(decision) {
			// First decision wins; acknowledge the duplicate anyway so the
			// browser does not surface a spurious error.
			s.logger.Info("duplicate decision ignored", "kind", kind)
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"result": fmt.Sprintf("decision %q received", kind),
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
