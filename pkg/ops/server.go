package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/openarchive/statspipe/pkg/async"
	"github.com/openarchive/statspipe/pkg/export"
	"github.com/openarchive/statspipe/pkg/observability"
	"github.com/openarchive/statspipe/pkg/records"
	"github.com/openarchive/statspipe/pkg/search"
	"github.com/openarchive/statspipe/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ExportTrigger starts one export run. retry asks for bounded retries on
// failure instead of a single attempt.
type ExportTrigger interface {
	Run(ctx context.Context, opts export.RunOptions, retry bool) error
}

// ReconcileTrigger starts one reconciliation run.
type ReconcileTrigger interface {
	Run(ctx context.Context, start, end *time.Time) error
}

// StatsBuilder computes per-record statistics snapshots.
type StatsBuilder interface {
	BuildRecordStats(ctx context.Context, recordID, familyID string) stats.Snapshot
}

// Server is the ops HTTP server.
type Server struct {
	router    *mux.Router
	exporter  ExportTrigger
	reconcile ReconcileTrigger
	stats     StatsBuilder
	resolver  records.Resolver
	search    search.Client
	index     string
	logger    *observability.Logger

	// One run of each kind at a time.
	exportRunning    atomic.Bool
	reconcileRunning atomic.Bool
}

// NewServer creates the ops server and registers its routes. registry backs
// the /metrics endpoint; recordsIndex is the index queried for stored
// statistics.
func NewServer(exporter ExportTrigger, reconcile ReconcileTrigger, statsBuilder StatsBuilder, resolver records.Resolver, sc search.Client, recordsIndex string, registry *prometheus.Registry, logger *observability.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		exporter:  exporter,
		reconcile: reconcile,
		stats:     statsBuilder,
		resolver:  resolver,
		search:    sc,
		index:     recordsIndex,
		logger:    logger,
	}
	s.setupRoutes(registry)
	return s
}

// setupRoutes configures all the ops routes
func (s *Server) setupRoutes(registry *prometheus.Registry) {
	s.router.HandleFunc("/healthz", s.health).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	s.router.HandleFunc("/tasks/export", s.triggerExport).Methods("POST")
	s.router.HandleFunc("/tasks/reconcile", s.triggerReconcile).Methods("POST")
	s.router.HandleFunc("/records/{id}/stats", s.recordStats).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// triggerRequest is the optional body of a task trigger. Timestamps are
// RFC 3339.
type triggerRequest struct {
	Start          *time.Time `json:"start,omitempty"`
	End            *time.Time `json:"end,omitempty"`
	UpdateBookmark *bool      `json:"update_bookmark,omitempty"`
	Retry          bool       `json:"retry,omitempty"`
}

func (s *Server) triggerExport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTrigger(w, r)
	if !ok {
		return
	}

	opts := export.RunOptions{
		Start:          req.Start,
		End:            req.End,
		UpdateBookmark: true,
	}
	if req.UpdateBookmark != nil {
		opts.UpdateBookmark = *req.UpdateBookmark
	}

	if !s.exportRunning.CompareAndSwap(false, true) {
		s.respondJSON(w, http.StatusConflict, map[string]string{"error": "an export run is already in progress"})
		return
	}

	async.SafeGo(context.Background(), 0, "triggered export", s.logger, func(ctx context.Context) error {
		defer s.exportRunning.Store(false)
		return s.exporter.Run(ctx, opts, req.Retry)
	})

	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) triggerReconcile(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTrigger(w, r)
	if !ok {
		return
	}

	if !s.reconcileRunning.CompareAndSwap(false, true) {
		s.respondJSON(w, http.StatusConflict, map[string]string{"error": "a reconciliation run is already in progress"})
		return
	}

	async.SafeGo(context.Background(), 0, "triggered reconciliation", s.logger, func(ctx context.Context) error {
		defer s.reconcileRunning.Store(false)
		return s.reconcile.Run(ctx, req.Start, req.End)
	})

	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// recordStats computes the live statistics snapshot for one record. Metrics
// that could not be computed are listed under "dropped" instead of failing
// the request. With ?stored=1 the snapshot already written into the record's
// searchable representation is returned instead.
func (s *Server) recordStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if r.URL.Query().Get("stored") == "1" {
		stored, err := stats.FetchRecordStats(r.Context(), s.search, s.index, id)
		if err != nil {
			s.logger.WithError(err).WithField("record_id", id).Error("stored stats fetch failed")
			s.respondJSON(w, http.StatusBadGateway, map[string]string{"error": "stored stats fetch failed"})
			return
		}
		if stored == nil {
			s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"record_id": id,
			"stats":     stored,
		})
		return
	}

	rec, err := s.resolver.Resolve(r.Context(), id)
	if errors.Is(err, records.ErrNotFound) {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
		return
	} else if err != nil {
		s.logger.WithError(err).WithField("record_id", id).Error("record resolution failed")
		s.respondJSON(w, http.StatusBadGateway, map[string]string{"error": "record resolution failed"})
		return
	}

	snap := s.stats.BuildRecordStats(r.Context(), rec.ID, rec.FamilyID)

	dropped := make([]string, 0, len(snap.Dropped))
	for metric := range snap.Dropped {
		dropped = append(dropped, metric)
	}
	sort.Strings(dropped)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"record_id": rec.ID,
		"family_id": rec.FamilyID,
		"stats":     snap.Metrics,
		"dropped":   dropped,
	})
}

func (s *Server) decodeTrigger(w http.ResponseWriter, r *http.Request) (triggerRequest, bool) {
	var req triggerRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return req, false
	}
	return req, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("failed to write response")
	}
}
