package fixture

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roadedit/internal/backend"
	"roadedit/internal/geom"
	"roadedit/internal/logging"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	saves    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadedit_fixture_requests_total",
				Help: "Requests served by the fixture backend",
			},
			[]string{"route", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "roadedit_fixture_request_duration_seconds",
				Help: "Fixture backend request latency",
			},
			[]string{"route"},
		),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadedit_fixture_saves_total",
			Help: "Geometry saves accepted",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.saves)
	return m
}

type Server struct {
	store   *Store
	logger  *slog.Logger
	reg     *prometheus.Registry
	metrics *metrics
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func New(store *Store, opts ...Option) *Server {
	s := &Server{store: store, logger: logging.NewNop(), reg: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.reg)
	return s
}

// Handler routes the backend endpoints, an empty imagery index and metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/maps/{id}", s.getMap)
	r.Post("/load-map-db/{id}", s.saveMap)
	r.Get("/tasks/", s.listTasks)
	r.Put("/status/{id}", s.refreshStatus)
	r.Post("/vec-by-task/{id}", s.vectorize)
	r.Post("/predict-by-coord/", s.predictByCoord)
	r.Get("/meta", s.imageryIndex)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.metrics.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.logger.Debug("fixture request", "method", r.Method, "route", route, "status", status)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) getMap(w http.ResponseWriter, r *http.Request) {
	doc, status, err := s.store.Map(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrUnknownTask):
		writeDetail(w, http.StatusNotFound, "result not found")
	case status == backend.StatusPending:
		writeDetail(w, http.StatusAccepted, "task still running")
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) saveMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Save(id, body); err != nil {
		s.logger.Warn("save rejected", "task_id", id, "err", err)
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.metrics.saves.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "task_id": id})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	rows := s.store.Rows()
	if rows == nil {
		rows = []backend.TaskRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) refreshStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.Refresh(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) vectorize(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Vectorize(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrUnknownTask):
		writeDetail(w, http.StatusNotFound, "task not found")
	case errors.Is(err, ErrNotFinished):
		writeDetail(w, http.StatusBadRequest, "task not finished")
	default:
		writeJSON(w, http.StatusOK, job)
	}
}

func (s *Server) predictByCoord(w http.ResponseWriter, r *http.Request) {
	b, err := geom.ParseBBox(strings.Join(r.URL.Query()["bbox"], ","))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	job := s.store.Predict(b)
	s.logger.Info("prediction queued", "task_id", job.TaskID, "bbox", b.QueryParam())
	writeJSON(w, http.StatusOK, map[string]any{"task_id": job.TaskID, "status": job.Status, "bbox": b.Slice()})
}

func (s *Server) imageryIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
}
