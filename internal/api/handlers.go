// Package api exposes the zone ledger and training-load tables over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paceload/internal/service"
	"paceload/internal/store"
)

// DefaultRangeDays is the window used when a list request omits from.
const DefaultRangeDays = 84

// Handler serves the HTTP API.
type Handler struct {
	zones  *service.ZoneService
	query  *service.QueryService
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(zones *service.ZoneService, query *service.QueryService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{zones: zones, query: query, logger: logger, now: time.Now}
}

// Routes returns the router with every endpoint mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/athletes/{athleteID}", func(r chi.Router) {
		r.Get("/zones", h.getZones)
		r.Post("/zones", h.createZones)
		r.Get("/zones/versions", h.listZoneVersions)
		r.Get("/activity-zone-times", h.activityZoneTimes)
		r.Get("/weekly-zone-times", h.weeklyZoneTimes)
		r.Get("/monotony-strain", h.monotonyStrain)
		r.Get("/recompute-jobs", h.recomputeJobs)
	})
	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) getZones(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := athleteParam(w, r)
	if !ok {
		return
	}
	asOf := store.Day(h.now())
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		d, err := store.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = d
	}

	v, err := h.query.ResolveVersion(r.Context(), athleteID, asOf)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toZonesView(athleteID, asOf, v))
}

func (h *Handler) createZones(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := athleteParam(w, r)
	if !ok {
		return
	}

	var req CreateZonesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	effectiveFrom, err := store.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "effective_from must be YYYY-MM-DD")
		return
	}

	res, err := h.zones.InsertVersion(r.Context(), athleteID, effectiveFrom, req.Zones)
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", verr.Error())
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.JobID != "" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (h *Handler) listZoneVersions(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := athleteParam(w, r)
	if !ok {
		return
	}
	versions, err := h.zones.Versions(r.Context(), athleteID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	items := mapSlice(versions, func(v store.ZoneVersion) ZoneVersionView {
		return ZoneVersionView{EffectiveFrom: store.FormatDate(v.EffectiveFrom), Generation: v.Generation, Zones: v.Zones}
	})
	writeJSON(w, http.StatusOK, ListResponse[ZoneVersionView]{AthleteID: athleteID, Items: items})
}

func (h *Handler) activityZoneTimes(w http.ResponseWriter, r *http.Request) {
	athleteID, from, to, ok := h.rangeParams(w, r)
	if !ok {
		return
	}
	rows, err := h.query.ActivityZoneTimes(r.Context(), athleteID, from, to)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[ActivityZoneTimeView]{
		AthleteID: athleteID,
		Items:     mapSlice(rows, toActivityZoneTimeView),
	})
}

func (h *Handler) weeklyZoneTimes(w http.ResponseWriter, r *http.Request) {
	athleteID, from, to, ok := h.rangeParams(w, r)
	if !ok {
		return
	}
	rows, err := h.query.WeeklyZoneTimes(r.Context(), athleteID, from, to)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[WeeklyZoneTimeView]{
		AthleteID: athleteID,
		Items:     mapSlice(rows, toWeeklyZoneTimeView),
	})
}

func (h *Handler) monotonyStrain(w http.ResponseWriter, r *http.Request) {
	athleteID, from, to, ok := h.rangeParams(w, r)
	if !ok {
		return
	}
	rows, err := h.query.WeeklyMonotonyStrain(r.Context(), athleteID, from, to)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[MonotonyStrainView]{
		AthleteID: athleteID,
		Items:     mapSlice(rows, toMonotonyStrainView),
	})
}

func (h *Handler) recomputeJobs(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := athleteParam(w, r)
	if !ok {
		return
	}
	jobs, err := h.query.ListJobs(r.Context(), athleteID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[RecomputeJobView]{
		AthleteID: athleteID,
		Items:     mapSlice(jobs, toRecomputeJobView),
	})
}

func athleteParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "athleteID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "athlete id must be a positive integer")
		return 0, false
	}
	return id, true
}

// rangeParams reads from/to. to defaults to today and from to
// DefaultRangeDays before to.
func (h *Handler) rangeParams(w http.ResponseWriter, r *http.Request) (athleteID int64, from, to time.Time, ok bool) {
	athleteID, ok = athleteParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	to = store.Day(h.now())
	if raw := q.Get("to"); raw != "" {
		d, err := store.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "to must be YYYY-MM-DD")
			return 0, from, to, false
		}
		to = d
	}
	from = to.AddDate(0, 0, -DefaultRangeDays)
	if raw := q.Get("from"); raw != "" {
		d, err := store.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "from must be YYYY-MM-DD")
			return 0, from, to, false
		}
		from = d
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "invalid_request", "from must not be after to")
		return 0, from, to, false
	}
	return athleteID, from, to, true
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
