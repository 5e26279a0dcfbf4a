// Package restserver implements the query API (spec.md §6 "External query
// interface") as a gorilla/mux HTTP server, grounded in
// RESTServerController's router setup and lifecycle, with content
// negotiation via the teacher's JSON/MessagePack response formatter.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/stbrinkmann/shadowscan/internal/log"
	"github.com/stbrinkmann/shadowscan/internal/pipeline"
	"github.com/stbrinkmann/shadowscan/pkg/responseformat"
)

// Store is the read surface the server needs: a completed run, looked up
// by ID, and the latest completed run.
type Store interface {
	Get(runID string) (*pipeline.Result, bool)
	Latest() (*pipeline.Result, bool)
}

// Config configures the listen address and optional TLS material.
type Config struct {
	ListenAddr string
	Port       int
	Cert, Key  string
}

// Server is a query API controller over completed shadow computation runs.
type Server struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	cfg       Config
	store     Store
	server    http.Server
	formatter *responseformat.Formatter
}

// New builds a Server and wires its routes, mirroring
// RESTServerController.NewRESTServerController's router construction.
func New(ctx context.Context, wg *sync.WaitGroup, cfg Config, store Store) *Server {
	if cfg.ListenAddr == "" {
		log.Info("restserver: listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		cfg.ListenAddr = "0.0.0.0"
	}

	s := &Server{
		ctx:       ctx,
		wg:        wg,
		cfg:       cfg,
		store:     store,
		formatter: responseformat.NewFormatter(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/runs/{run_id}/summary", s.getSummary)
	router.HandleFunc("/runs/{run_id}/monthly", s.getMonthly)
	router.HandleFunc("/runs/{run_id}/seasonal", s.getSeasonal)
	router.HandleFunc("/runs/latest", s.getLatest)
	router.HandleFunc("/healthz", s.getHealth)
	router.Use(requestLogMiddleware)

	s.server.Addr = fmt.Sprintf("%s:%d", cfg.ListenAddr, cfg.Port)
	s.server.Handler = router
	return s
}

// statusRecorder captures the status code and body size a handler writes,
// since http.ResponseWriter exposes neither after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// requestLogMiddleware records each query to the HTTP log buffer (spec.md
// §6's query endpoints), the same request-log shape the teacher's
// management API exposes for its own HTTP traffic.
func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, req)
		runID := mux.Vars(req)["run_id"]
		log.LogHTTPRequest(req.Method, req.URL.Path, rec.status, time.Since(start), rec.size, req.RemoteAddr, req.UserAgent(), runID, nil)
	})
}

// Handler returns the server's http.Handler, for tests that want to drive
// requests directly without binding a listening socket.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server in a background goroutine, the same
// WaitGroup-tracked shape the teacher's StartController uses.
func (s *Server) Start() {
	log.Info("starting query API server...")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		if s.cfg.Cert != "" && s.cfg.Key != "" {
			err = s.server.ListenAndServeTLS(s.cfg.Cert, s.cfg.Key)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("query API server error: %v", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) getSummary(w http.ResponseWriter, req *http.Request) {
	runID := mux.Vars(req)["run_id"]
	result, ok := s.store.Get(runID)
	if !ok {
		http.Error(w, "error: run not found", http.StatusNotFound)
		return
	}
	if err := s.formatter.WriteResponse(w, req, result.Summary, nil); err != nil {
		http.Error(w, "error: unable to marshal response", http.StatusInternalServerError)
	}
}

func (s *Server) getMonthly(w http.ResponseWriter, req *http.Request) {
	runID := mux.Vars(req)["run_id"]
	result, ok := s.store.Get(runID)
	if !ok {
		http.Error(w, "error: run not found", http.StatusNotFound)
		return
	}
	if err := s.formatter.WriteResponse(w, req, result.Monthly, nil); err != nil {
		http.Error(w, "error: unable to marshal response", http.StatusInternalServerError)
	}
}

func (s *Server) getSeasonal(w http.ResponseWriter, req *http.Request) {
	runID := mux.Vars(req)["run_id"]
	result, ok := s.store.Get(runID)
	if !ok {
		http.Error(w, "error: run not found", http.StatusNotFound)
		return
	}
	if err := s.formatter.WriteResponse(w, req, result.Seasonal, nil); err != nil {
		http.Error(w, "error: unable to marshal response", http.StatusInternalServerError)
	}
}

func (s *Server) getLatest(w http.ResponseWriter, req *http.Request) {
	result, ok := s.store.Latest()
	if !ok {
		http.Error(w, "error: no completed runs yet", http.StatusNotFound)
		return
	}
	if err := s.formatter.WriteResponse(w, req, result.Summary, nil); err != nil {
		http.Error(w, "error: unable to marshal response", http.StatusInternalServerError)
	}
}

func (s *Server) getHealth(w http.ResponseWriter, req *http.Request) {
	if err := s.formatter.WriteResponse(w, req, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}, nil); err != nil {
		http.Error(w, "error: unable to marshal response", http.StatusInternalServerError)
	}
}
