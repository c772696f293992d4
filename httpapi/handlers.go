// Package httpapi exposes a health.Registry over HTTP: readiness/liveness/
// startup/critical probe views, a full report, check listing and manual
// triggering, and a live WebSocket status stream.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r3e-network/healthcheck/health"
	"github.com/r3e-network/healthcheck/metrics"
)

// Server exposes a health.Registry's reports over HTTP.
type Server struct {
	service  string
	registry *health.Registry
	metrics  *metrics.Metrics
	router   *mux.Router
}

// NewServer builds a Server and registers its routes. metrics may be nil to
// skip HTTP/report metrics recording.
func NewServer(service string, registry *health.Registry, m *metrics.Metrics) *Server {
	s := &Server{service: service, registry: registry, metrics: m, router: mux.NewRouter()}
	s.registerRoutes()
	return s
}

// Router returns the underlying mux.Router, e.g. for embedding in a larger
// application router.
func (s *Server) Router() *mux.Router { return s.router }

// ListenAndServe serves the router on addr until ctx is done or an
// unrecoverable server error occurs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.router.Use(s.metricsMiddleware)

	s.router.HandleFunc("/health", s.handleFullReport).Methods(http.MethodGet)
	s.router.HandleFunc("/health/startup", s.handleView("startup", s.registry.GetStartupStatus)).Methods(http.MethodGet)
	s.router.HandleFunc("/health/readiness", s.handleView("readiness", s.registry.GetReadinessStatus)).Methods(http.MethodGet)
	s.router.HandleFunc("/health/liveness", s.handleView("liveness", s.registry.GetLivenessStatus)).Methods(http.MethodGet)
	s.router.HandleFunc("/health/critical", s.handleView("critical", s.registry.GetCriticalStatus)).Methods(http.MethodGet)
	s.router.HandleFunc("/health/checks", s.handleListChecks).Methods(http.MethodGet)
	s.router.HandleFunc("/health/checks/{name}/trigger", s.handleTriggerCheck).Methods(http.MethodPost)
	s.router.HandleFunc("/health/stream", s.handleStream).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) handleFullReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.registry.CreateReport(r.Context(), health.CreateReportRequest{})
	s.writeReport(w, "full", report, err)
}

// handleView adapts one of the registry's probe-view methods (all sharing
// the (ctx) (*ReportDTO, error) shape) into an HTTP handler. The response
// status is 200 when the view's gating field is satisfied, 503 otherwise.
func (s *Server) handleView(view string, fn func(context.Context) (*health.ReportDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := fn(r.Context())
		s.writeReport(w, view, report, err)
	}
}

func (s *Server) writeReport(w http.ResponseWriter, view string, report *health.ReportDTO, err error) {
	if err != nil {
		if health.IsCode(err, health.CodeNotRunning) {
			writeError(w, http.StatusServiceUnavailable, err.Error(), string(health.CodeNotRunning))
			return
		}
		internalError(w, err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.RecordReportGenerated(s.service, view)
	}

	status := http.StatusOK
	switch view {
	case "readiness", "startup":
		if !report.Ready {
			status = http.StatusServiceUnavailable
		}
	case "liveness":
		if !report.Live {
			status = http.StatusServiceUnavailable
		}
	case "critical":
		if report.CriticalFault {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, report)
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"checks": s.registry.GetRegisteredHealthChecks(),
	})
}

func (s *Server) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.registry.TriggerUpdateForHealthCheck(name); err != nil {
		if health.IsCode(err, health.CodeNoSuchCheck) {
			notFound(w, err.Error())
			return
		}
		internalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"triggered": name})
}

// metricsMiddleware records HTTP metrics for each request, resolving the
// recorded path to the matched route's template so dynamic segments (like
// /health/checks/{name}/trigger) don't explode cardinality.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		s.metrics.IncrementInFlight()
		defer s.metrics.DecrementInFlight()

		wrapped := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		s.metrics.RecordHTTPRequest(s.service, r.Method, path, strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusCapturingWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
