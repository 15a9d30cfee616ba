// Package api serves the carbon calculation HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/carbon-estimator/internal/biomass"
	"github.com/sells-group/carbon-estimator/internal/credits"
	"github.com/sells-group/carbon-estimator/internal/geometry"
	"github.com/sells-group/carbon-estimator/internal/resilience"
)

// Reducer computes the carbon stock of a region.
type Reducer interface {
	Reduce(ctx context.Context, region *geometry.Region) (*biomass.CarbonTotal, error)
}

// StatusReporter is implemented by reducers that can describe the health of
// their upstream. /api/info includes the report when available.
type StatusReporter interface {
	Status() biomass.Status
}

// Options configures the Handler.
type Options struct {
	FrontendOrigin string
	MaxBodyBytes   int64
	// DebugErrors adds stack traces to 5xx responses.
	DebugErrors bool
	Version     string
	Dataset     string
	// Static serves the browser UI for every non-API GET. Optional.
	Static http.Handler
}

// Handler provides the HTTP API endpoints.
type Handler struct {
	reducer Reducer
	opts    Options
}

// NewHandler creates a new API handler.
func NewHandler(reducer Reducer, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.FrontendOrigin == "" {
		opts.FrontendOrigin = "*"
	}
	return &Handler{reducer: reducer, opts: opts}
}

// CalculateRequest is the body of POST /api/calculate-carbon.
type CalculateRequest struct {
	Geometry json.RawMessage `json:"geometry"`
}

// CalculateResponse is the carbon total plus the credit estimate.
// Credits is null and Suggestions empty when the region holds no carbon.
type CalculateResponse struct {
	biomass.CarbonTotal
	Credits     *credits.Estimate    `json:"credits"`
	Suggestions []credits.Suggestion `json:"suggestions"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// Routes builds the router with middleware, API routes and the UI fallback.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{h.opts.FrontendOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(h.handleNotFound)
	r.MethodNotAllowed(h.handleMethodNotAllowed)

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(h.handleNotFound)
		r.MethodNotAllowed(h.handleMethodNotAllowed)

		r.Get("/health", h.handleHealth)
		r.Get("/info", h.handleInfo)
		r.Post("/calculate-carbon", h.handleCalculate)
	})

	if h.opts.Static != nil {
		r.Get("/*", h.opts.Static.ServeHTTP)
		r.Head("/*", h.opts.Static.ServeHTTP)
	}

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := map[string]any{
		"version":           h.opts.Version,
		"dataset":           h.opts.Dataset,
		"conversion_factor": credits.CarbonToCO2Factor,
	}
	if sr, ok := h.reducer.(StatusReporter); ok {
		info["earthengine"] = sr.Status()
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *Handler) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)

	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		respondError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	region, err := geometry.ParseGeoJSON(req.Geometry)
	if err != nil {
		if errors.Is(err, geometry.ErrMissing) {
			respondError(w, http.StatusBadRequest, ErrorResponse{Error: "geometry required (GeoJSON geometry)"})
			return
		}
		respondError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid geometry", Message: err.Error()})
		return
	}

	total, err := h.reducer.Reduce(r.Context(), region)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	resp := CalculateResponse{
		CarbonTotal: *total,
		Suggestions: []credits.Suggestion{},
	}
	if est, ok := credits.EstimateCredits(total.TotalTonnes); ok {
		resp.Credits = est
		resp.Suggestions = credits.Suggest(est)
	}

	respondJSON(w, http.StatusOK, resp)
}

// respondFailure maps a reducer error to 503 when Earth Engine is being
// short-circuited and 500 otherwise.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, resilience.ErrOpen) {
		status = http.StatusServiceUnavailable
	}

	zap.L().Error("api: calculation failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	)

	body := ErrorResponse{Error: "calculation failed", Message: err.Error()}
	if h.opts.DebugErrors {
		body.Details = eris.ToString(err, true)
	}
	respondError(w, status, body)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, body ErrorResponse) {
	respondJSON(w, status, body)
}
