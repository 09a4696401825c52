package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"rebalanced/internal/obsmetrics"
)

// NewRouter builds the daemon's full HTTP surface around s.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")

	r.HandleFunc("/api/disks", s.handleListDisks).Methods("GET")
	r.HandleFunc("/api/disks/{id}/include", s.handleSetDiskIncluded(true)).Methods("POST")
	r.HandleFunc("/api/disks/{id}/exclude", s.handleSetDiskIncluded(false)).Methods("POST")

	r.HandleFunc("/api/scan", s.handleStartScan).Methods("POST")

	r.HandleFunc("/api/plan", s.handleCreatePlan).Methods("POST")
	r.HandleFunc("/api/plan/{id}", s.handleGetPlan).Methods("GET")
	r.HandleFunc("/api/plan/{id}/execute", s.handleExecutePlan).Methods("POST")
	r.HandleFunc("/api/plan/{id}/cancel", s.handleCancelPlan).Methods("POST")

	r.HandleFunc("/api/settings", s.handleGetSettings).Methods("GET")
	r.HandleFunc("/api/settings", s.handleUpdateSettings).Methods("POST")

	r.HandleFunc("/api/events", s.handleEvents).Methods("GET")

	r.Handle("/metrics", obsmetrics.Handler()).Methods("GET")
	r.HandleFunc("/ws/monitor", s.handleMonitorWS).Methods("GET")

	return r
}

// statusRecorder captures the status code a handler wrote so the metrics
// middleware can label its counters after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		timer := obsmetrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		route := routeTemplate(req)
		timer.ObserveDurationVec(obsmetrics.APIRequestDuration, route)
		obsmetrics.APIRequestsTotal.WithLabelValues(route, statusClass(rec.status)).Inc()
	})
}

func routeTemplate(req *http.Request) string {
	if route := mux.CurrentRoute(req); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return req.URL.Path
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// keepAliveInterval controls how often the SSE handler writes a comment
// ping to keep intermediaries from closing an idle connection.
const keepAliveInterval = 15 * time.Second
