// Package dashboard serves a read-only view of tracked backtest runs.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/zerotheta/internal/tracking"
)

// RunStore is the read side of the run tracker.
type RunStore interface {
	ListExperiments() ([]string, error)
	ListRuns(experiment string) ([]*tracking.Run, error)
	GetRun(id string) (*tracking.Run, error)
}

type Server struct {
	router    *chi.Mux
	server    *http.Server
	store     RunStore
	logger    logrus.FieldLogger
	port      int
	authToken string
	pages     *template.Template
}

type Config struct {
	Port      int
	AuthToken string
}

// RunView is the dashboard row for one run.
type RunView struct {
	ID          string             `json:"id"`
	Experiment  string             `json:"experiment"`
	Name        string             `json:"name"`
	Status      string             `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	Duration    string             `json:"duration"`
	TotalProfit float64            `json:"total_profit"`
	WinRate     float64            `json:"win_rate"`
	Trades      int                `json:"trades"`
	Sharpe      float64            `json:"sharpe_ratio"`
	Params      map[string]string  `json:"params,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Error       string             `json:"error,omitempty"`
	IsProfit    bool               `json:"-"`
}

// PageData feeds the index template.
type PageData struct {
	Experiments []string
	Selected    string
	Runs        []RunView
	LastUpdate  time.Time
}

func NewServer(cfg Config, store RunStore, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		router:    chi.NewRouter(),
		store:     store,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
		pages:     template.Must(template.New("dashboard").Funcs(templateFuncs).Parse(pageTemplates)),
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/", s.handleIndex)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/experiments", s.handleExperiments)
	s.router.Get("/api/runs", s.handleRuns)
	s.router.Get("/api/runs/{id}", s.handleRun)
	s.router.Get("/partials/runs", s.handleRunsPartial)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting dashboard server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := s.pageData(r.URL.Query().Get("experiment"))
	if err != nil {
		s.logger.WithError(err).Error("Failed to load runs")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, "index", data)
}

func (s *Server) handleRunsPartial(w http.ResponseWriter, r *http.Request) {
	data, err := s.pageData(r.URL.Query().Get("experiment"))
	if err != nil {
		s.logger.WithError(err).Error("Failed to load runs")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, "runs", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.WithError(err).Errorf("Failed to execute %s template", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleExperiments(w http.ResponseWriter, _ *http.Request) {
	names, err := s.store.ListExperiments()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list experiments")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, names)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	experiment := r.URL.Query().Get("experiment")
	if experiment == "" {
		http.Error(w, "experiment query parameter is required", http.StatusBadRequest)
		return
	}
	runs, err := s.store.ListRuns(experiment)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list runs")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, convertRunsToViews(runs, false))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(id)
	if err != nil {
		if errors.Is(err, tracking.ErrRunNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).WithField("run_id", id).Error("Failed to load run")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, convertRunToView(run, true))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// pageData lists experiments and the runs of selected, defaulting to the
// first experiment.
func (s *Server) pageData(selected string) (*PageData, error) {
	experiments, err := s.store.ListExperiments()
	if err != nil {
		return nil, err
	}
	sort.Strings(experiments)
	if selected == "" && len(experiments) > 0 {
		selected = experiments[0]
	}

	data := &PageData{Experiments: experiments, Selected: selected, LastUpdate: time.Now()}
	if selected == "" {
		return data, nil
	}
	runs, err := s.store.ListRuns(selected)
	if err != nil {
		return nil, err
	}
	data.Runs = convertRunsToViews(runs, false)
	return data, nil
}

func convertRunsToViews(runs []*tracking.Run, detail bool) []RunView {
	views := make([]RunView, 0, len(runs))
	for _, r := range runs {
		views = append(views, convertRunToView(r, detail))
	}
	return views
}

func convertRunToView(r *tracking.Run, detail bool) RunView {
	v := RunView{
		ID:          r.ID,
		Experiment:  r.Experiment,
		Name:        r.Name,
		Status:      string(r.Status),
		StartedAt:   r.StartedAt,
		TotalProfit: r.Metrics["t/total_profit"],
		WinRate:     r.Metrics["win_rate"],
		Trades:      int(r.Metrics["t/total_wins"] + r.Metrics["t/total_losses"]),
		Sharpe:      r.Metrics["stat/sharpe_ratio"],
		Error:       r.Error,
	}
	if d := r.Duration(); d > 0 {
		v.Duration = d.Round(time.Millisecond).String()
	}
	v.IsProfit = v.TotalProfit > 0
	if detail {
		v.Params = r.Params
		v.Metrics = r.Metrics
	}
	return v
}
