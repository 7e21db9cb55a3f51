package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"mission-runner/internal/logging"
	"mission-runner/internal/report"
	"mission-runner/internal/runner"
)

// StatusProvider exposes the live runner status.
type StatusProvider interface {
	Snapshot() runner.Snapshot
}

type Server struct {
	Status  StatusProvider
	Metrics http.Handler
	Info    report.Overview
	tpl     *template.Template
	mux     *http.ServeMux
}

//go:embed templates/index.html
var content embed.FS

func NewServer(status StatusProvider, metrics http.Handler, info report.Overview) *Server {
	tpl := template.Must(template.New("index.html").Funcs(template.FuncMap{
		"reward": report.FormatReward,
		"inc":    func(i int) int { return i + 1 },
	}).ParseFS(content, "templates/index.html"))
	s := &Server{Status: status, Metrics: metrics, Info: info, tpl: tpl, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/trials", s.handleTrials)
	if s.Metrics != nil {
		s.mux.Handle("/metrics", s.Metrics)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Info("admin server listening", "addr", ln.Addr().String())
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	snap := s.Status.Snapshot()
	data := struct {
		Info    report.Overview
		Status  runner.Snapshot
		Summary report.Summary
	}{
		Info:    s.Info,
		Status:  snap,
		Summary: report.Summarize(snap.Results),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Status.Snapshot()
	snap.Results = nil
	writeJSON(w, snap)
}

func (s *Server) handleTrials(w http.ResponseWriter, r *http.Request) {
	snap := s.Status.Snapshot()
	writeJSON(w, map[string]any{
		"summary": report.Summarize(snap.Results),
		"results": snap.Results,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
