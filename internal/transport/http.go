package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crewlog/crewlog/internal/domain/event"
	"github.com/crewlog/crewlog/internal/netmon"
	"github.com/crewlog/crewlog/internal/syncer"
)

// Server wires HTTP handlers over the activity log and the sync engine.
type Server struct {
	events  *event.Service
	engine  *syncer.Engine
	monitor *netmon.Monitor
	logger  *slog.Logger
}

// NewRouter creates the HTTP router consumed by dashboards and the sync
// indicator.
func NewRouter(events *event.Service, engine *syncer.Engine, monitor *netmon.Monitor, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := &Server{events: events, engine: engine, monitor: monitor, logger: logger}

	r := chi.NewRouter()
	r.Get("/health", srv.handleHealth)

	r.Post("/events", srv.handleCreateEvent)
	r.Post("/events/batch", srv.handleCreateBatch)

	r.Get("/projects/{projectID}/activity", srv.handleProjectActivity)
	r.Get("/projects/{projectID}/activity/counts", srv.handleCounts)
	r.Get("/orgs/{orgID}/activity", srv.handleOrgActivity)
	r.Get("/properties/{propertyID}/activity", srv.handlePropertyActivity)

	r.Get("/sync/status", srv.handleSyncStatus)
	r.Post("/sync/trigger", srv.handleSyncTrigger)
	r.Post("/sync/retry-failed", srv.handleRetryFailed)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in event.CreateEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev, err := s.events.CreateEvent(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var inputs []event.CreateEventInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	events, err := s.events.CreateBatch(r.Context(), inputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, events)
}

func (s *Server) handleProjectActivity(w http.ResponseWriter, r *http.Request) {
	opts := pageOptionsFromQuery(r)
	page, err := s.events.GetProjectActivity(r.Context(), chi.URLParam(r, "projectID"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleOrgActivity(w http.ResponseWriter, r *http.Request) {
	opts := pageOptionsFromQuery(r)
	page, err := s.events.GetRecentActivity(r.Context(), chi.URLParam(r, "orgID"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePropertyActivity(w http.ResponseWriter, r *http.Request) {
	opts := pageOptionsFromQuery(r)
	homeownerOnly := r.URL.Query().Get("homeowner_only") == "true"
	page, err := s.events.GetPropertyActivity(r.Context(), chi.URLParam(r, "propertyID"), homeownerOnly, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	var counts map[string]int
	var err error
	switch r.URL.Query().Get("group") {
	case "category":
		counts, err = s.events.GetEventCountByCategory(r.Context(), projectID, since)
	case "", "type":
		counts, err = s.events.GetEventCountByType(r.Context(), projectID, since)
	default:
		http.Error(w, "invalid group parameter", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

// SyncStatusResponse extends the engine status with the connectivity
// snapshot for the sync indicator.
type SyncStatusResponse struct {
	syncer.Status
	Network netmon.Status `json:"network"`
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SyncStatusResponse{Status: status, Network: s.monitor.Snapshot()})
}

func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.SyncPending(r.Context()))
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.RetryFailed(r.Context()))
}

func pageOptionsFromQuery(r *http.Request) event.PageOptions {
	q := r.URL.Query()

	opts := event.PageOptions{Cursor: q.Get("cursor")}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			opts.Limit = limit
		}
	}

	opts.Filter = event.Filter{
		EventTypes:       q["event_type"],
		EntityType:       q.Get("entity_type"),
		WorkCategoryCode: q.Get("work_category_code"),
		Trade:            q.Get("trade"),
		StageCode:        q.Get("stage_code"),
	}
	if raw := q.Get("homeowner_visible"); raw != "" {
		visible := raw == "true"
		opts.Filter.HomeownerVisible = &visible
	}
	return opts
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *event.ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, event.ErrInvalidCursor):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
