package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appai "github.com/bryanwahyu/mailposture/internal/application/ai"
	appscans "github.com/bryanwahyu/mailposture/internal/application/scans"
	domai "github.com/bryanwahyu/mailposture/internal/domain/ai"
	"github.com/bryanwahyu/mailposture/internal/domain/alerts"
	domain "github.com/bryanwahyu/mailposture/internal/domain/scans"
	"github.com/bryanwahyu/mailposture/internal/domain/scanerrors"
	"github.com/bryanwahyu/mailposture/internal/middleware"
)

// Deps groups what the HTTP surface needs. AI, Alerts and Errors are optional;
// their routes answer 404 when unset.
type Deps struct {
	Scans       *appscans.Service
	AI          *appai.Service
	Alerts      alerts.Repository
	Errors      scanerrors.Repository
	Health      map[string]middleware.HealthChecker
	APIKeys     map[string]string
	Limiter     *middleware.RateLimiter
	CORSOrigins []string
	Logger      *slog.Logger
}

type Router struct {
	scansSvc *appscans.Service
	aiSvc    *appai.Service
	alerts   alerts.Repository
	errors   scanerrors.Repository
	logger   *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := &Router{scansSvc: d.Scans, aiSvc: d.AI, alerts: d.Alerts, errors: d.Errors, logger: d.Logger}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.Logging(r.logger))
	mux.Use(middleware.APIKeyAuth(d.APIKeys))
	if d.Limiter != nil {
		mux.Use(middleware.RateLimitMiddleware(d.Limiter))
	}

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.Health))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)

		rt.Post("/scans", r.wrap(r.handleTriggerScan))
		rt.Get("/scans", r.wrap(r.handlePaginate))
		rt.Get("/scans/latest", r.wrap(r.handleLatest))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Get("/scans/{id}/score", r.wrap(r.handleScore))
		rt.Get("/scans/{id}/errors", r.wrap(r.handleScanErrors))
		rt.Post("/diff", r.wrap(r.handleDiff))
		rt.Get("/summary", r.wrap(r.handleSummary))
		rt.Get("/domains/{id}/alerts", r.wrap(r.handleAlerts))
		rt.Post("/ai/analyze", r.wrap(r.handleAIAnalyze))
		rt.Get("/ai/analyze", r.wrap(r.handleAIAnalyzeList))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

var errNotConfigured = errors.New("not configured")

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrScanNotFound), errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, errNotConfigured):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrInvalidDomain), errors.Is(err, middleware.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, "ai quota exceeded")
		default:
			r.logger.ErrorContext(req.Context(), "request failed",
				slog.String("path", req.URL.Path),
				slog.Any("err", err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20)).Decode(v); err != nil {
		return errors.Join(middleware.ErrValidation, err)
	}
	return middleware.ValidateStruct(v)
}

type triggerScanRequest struct {
	Domain   string `json:"domain" validate:"required,maildomain"`
	DomainID string `json:"domain_id" validate:"omitempty,max=64"`
}

// POST /v1/{tenant}/scans
// Body: {"domain": "example.com", "domain_id": "<optional>"}
func (r *Router) handleTriggerScan(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	var body triggerScanRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}

	done := middleware.ScanStarted()
	res, err := r.scansSvc.TriggerScan(req.Context(), appscans.TriggerScanCommand{
		TenantID: tenant,
		DomainID: body.DomainID,
		Domain:   middleware.SanitizeString(body.Domain),
	})
	done(res.Scan.Summary.Overall, err)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, res)
}

// GET /v1/{tenant}/scans?page=&page_size=
func (r *Router) handlePaginate(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	res, err := r.scansSvc.Paginate(req.Context(), tenant, page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/{tenant}/scans/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.scansSvc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.ScanResult{}
	}
	return writeJSON(w, http.StatusOK, list)
}

func scanIDParam(req *http.Request) (domain.ScanID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return "", err
	}
	return domain.ScanID(id), nil
}

// GET /v1/{tenant}/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := scanIDParam(req)
	if err != nil {
		return err
	}
	scan, err := r.scansSvc.Get(req.Context(), chi.URLParam(req, "tenant"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, scan)
}

// GET /v1/{tenant}/scans/{id}/score
func (r *Router) handleScore(w http.ResponseWriter, req *http.Request) error {
	id, err := scanIDParam(req)
	if err != nil {
		return err
	}
	score, err := r.scansSvc.Score(req.Context(), chi.URLParam(req, "tenant"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, score)
}

// GET /v1/{tenant}/scans/{id}/errors?limit=
func (r *Router) handleScanErrors(w http.ResponseWriter, req *http.Request) error {
	if r.errors == nil {
		return errNotConfigured
	}
	id, err := scanIDParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.errors.ListByScan(req.Context(), chi.URLParam(req, "tenant"), string(id), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*scanerrors.ScanError{}
	}
	return writeJSON(w, http.StatusOK, list)
}

type diffRequest struct {
	OldScanID string `json:"old_scan_id" validate:"required,uuid"`
	NewScanID string `json:"new_scan_id" validate:"required,uuid"`
}

// POST /v1/{tenant}/diff
// Body: {"old_scan_id": "<id>", "new_scan_id": "<id>"}
func (r *Router) handleDiff(w http.ResponseWriter, req *http.Request) error {
	var body diffRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	res, err := r.scansSvc.Diff(req.Context(), chi.URLParam(req, "tenant"),
		domain.ScanID(body.OldScanID), domain.ScanID(body.NewScanID))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.scansSvc.Summary(req.Context(), tenant, middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}

// GET /v1/{tenant}/domains/{id}/alerts?limit=
func (r *Router) handleAlerts(w http.ResponseWriter, req *http.Request) error {
	if r.alerts == nil {
		return errNotConfigured
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.alerts.ListByDomain(req.Context(), chi.URLParam(req, "tenant"), chi.URLParam(req, "id"), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*alerts.Alert{}
	}
	return writeJSON(w, http.StatusOK, list)
}

type analyzeRequest struct {
	ScanID string `json:"scan_id" validate:"required,uuid"`
}

// POST /v1/{tenant}/ai/analyze
// Body: {"scan_id": "<id>"}
func (r *Router) handleAIAnalyze(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return errNotConfigured
	}
	tenant := chi.URLParam(req, "tenant")

	var body analyzeRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}

	scan, err := r.scansSvc.Get(req.Context(), tenant, domain.ScanID(body.ScanID))
	if err != nil {
		return err
	}

	a, err := r.aiSvc.AnalyzeAndStore(req.Context(), tenant, scan)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, a)
}

// GET /v1/{tenant}/ai/analyze?page=&page_size=
func (r *Router) handleAIAnalyzeList(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return errNotConfigured
	}
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.aiSvc.ListAnalyses(req.Context(), tenant, page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}
