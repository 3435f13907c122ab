// Package app HTTP handlers for the profiler's demo endpoints.
package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"lockprof/pkg/timeline"
	"lockprof/pkg/timelinehtml"
)

// loggingMiddleware records each request's path, method, and latency
// at debug level.
func (app *App) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		app.logger.WithFields(map[string]interface{}{
			"path":     r.URL.Path,
			"method":   r.Method,
			"duration": time.Since(start).String(),
		}).Debug("handled request")
	})
}

// registerHandlers configures the demo server's HTTP routes:
//
//   - GET /snapshot: the tracer's raw LockSnapshot as JSON
//   - GET /report: the aggregated Report as JSON
//   - GET /timeline.html: a rendered swimlane timeline
//   - GET /metrics: Prometheus exposition for this session
func (app *App) registerHandlers(router *mux.Router) {
	router.Use(app.loggingMiddleware)

	router.HandleFunc("/snapshot", app.snapshotHandler).Methods(http.MethodGet)
	router.HandleFunc("/report", app.reportHandler).Methods(http.MethodGet)
	router.HandleFunc("/timeline.html", app.timelineHandler).Methods(http.MethodGet)
	router.Handle("/metrics", app.metrics.Handler()).Methods(http.MethodGet)
}

func (app *App) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap := app.session.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		app.logger.WithError(err).Error("failed to encode snapshot")
	}
}

func (app *App) reportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := app.session.Reduce(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		app.logger.WithError(err).Error("failed to encode report")
	}
}

func (app *App) timelineHandler(w http.ResponseWriter, r *http.Request) {
	snap := app.session.Snapshot()
	report, err := app.session.Reduce(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// timeline.Build indexes lockLabels by lock_hash, matching
	// timelinehtml's LockLabels usage — not by report.LockStats'
	// position, which skips any hash that never produced an outermost
	// acquire and would misalign labels onto the wrong lock.
	model := timeline.Build(report.Pairs, snap.LockHashes)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := timelinehtml.Render(model, app.config.Timeline.PixelsPerSecond)
	if _, err := w.Write([]byte(html)); err != nil {
		app.logger.WithError(err).Error("failed to write timeline")
	}
}
