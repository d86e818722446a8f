package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "dpcli/internal/errors"
	"dpcli/internal/forecast"
	"dpcli/internal/ledger"
)

type levelCtxKey struct{}

// ResultsHandler serves the artifacts of the latest forecast run.
type ResultsHandler struct {
	store    *ResultStore
	logger   *slog.Logger
	validate *validator.Validate
}

// NewResultsHandler creates a handler over the given store.
func NewResultsHandler(store *ResultStore, logger *slog.Logger) *ResultsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsHandler{
		store:    store,
		logger:   logger,
		validate: validator.New(),
	}
}

// Routes returns the chi router for the results API.
func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/summary", h.GetSummary)
	r.Get("/enrichment", h.GetEnrichment)

	r.Route("/levels/{level}", func(r chi.Router) {
		r.Use(h.levelCtx)
		r.Get("/", h.GetLevelResult)
		r.Get("/predictions", h.GetPredictions)
		r.Get("/entities", h.GetEntities)
	})

	return r
}

// levelCtx parses and validates the {level} URL parameter and resolves the
// stored result for it.
func (h *ResultsHandler) levelCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level, err := ledger.ParseLevel(chi.URLParam(r, "level"))
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.ErrValidation("level", err.Error())))
			return
		}
		if _, ok := h.store.Result(level); !ok {
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrLevelNotFound))
			return
		}
		ctx := context.WithValue(r.Context(), levelCtxKey{}, level)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func levelFromContext(ctx context.Context) ledger.Level {
	level, _ := ctx.Value(levelCtxKey{}).(ledger.Level)
	return level
}

// levelOverview is the per-level block of the run summary.
type levelOverview struct {
	Level           ledger.Level          `json:"level"`
	CutoffWeek      ledger.Week           `json:"cutoff_week"`
	Entities        int                   `json:"entities"`
	Predictions     int                   `json:"predictions"`
	OverallWMAPE    float64               `json:"overall_wmape"`
	DedicatedModels int                   `json:"dedicated_models"`
	FallbackFits    int                   `json:"fallback_fits"`
	Tiers           map[forecast.Tier]int `json:"confidence_tiers"`
}

// GetSummary returns a compact overview of the stored run across levels.
func (h *ResultsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if h.store.Empty() {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrRunNotFound))
		return
	}

	levels := h.store.Levels()
	overviews := make([]levelOverview, 0, len(levels))
	for _, level := range levels {
		result, _ := h.store.Result(level)
		tiers := make(map[forecast.Tier]int)
		for _, s := range result.Summaries {
			tiers[s.Confidence]++
		}
		overviews = append(overviews, levelOverview{
			Level:           level,
			CutoffWeek:      result.CutoffWeek,
			Entities:        len(result.Summaries),
			Predictions:     len(result.Predictions),
			OverallWMAPE:    result.OverallWMAPE,
			DedicatedModels: result.DedicatedModels,
			FallbackFits:    result.FallbackFits,
			Tiers:           tiers,
		})
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   overviews,
		"count":  len(overviews),
	})
}

// GetEnrichment returns the enrichment audit report of the stored run.
func (h *ResultsHandler) GetEnrichment(w http.ResponseWriter, r *http.Request) {
	report, ok := h.store.Report()
	if !ok {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrRunNotFound))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   report,
	})
}

// GetLevelResult returns the complete result document for one level.
func (h *ResultsHandler) GetLevelResult(w http.ResponseWriter, r *http.Request) {
	result, _ := h.store.Result(levelFromContext(r.Context()))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// predictionQuery carries the validated query parameters of the prediction
// and entity listing endpoints.
type predictionQuery struct {
	Entity     string `validate:"omitempty,max=128"`
	Confidence string `validate:"omitempty,oneof=High Medium Low"`
	Limit      int    `validate:"gte=0,lte=100000"`
}

func (h *ResultsHandler) parseQuery(r *http.Request) (predictionQuery, *apierrors.APIError) {
	q := predictionQuery{
		Entity:     r.URL.Query().Get("entity"),
		Confidence: r.URL.Query().Get("confidence"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, apierrors.ErrValidation("limit", "must be an integer")
		}
		q.Limit = limit
	}

	if err := h.validate.Struct(q); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			field := errs[0].Field()
			return q, apierrors.ErrValidation(field, "invalid value for "+field)
		}
		return q, apierrors.ErrValidationFailed
	}
	return q, nil
}

// GetPredictions returns the prediction rows of one level, optionally
// filtered by entity and confidence tier and truncated to a limit.
func (h *ResultsHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	q, apiErr := h.parseQuery(r)
	if apiErr != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apiErr))
		return
	}

	result, _ := h.store.Result(levelFromContext(r.Context()))
	predictions := make([]forecast.Prediction, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		if q.Entity != "" && p.EntityID != q.Entity {
			continue
		}
		if q.Confidence != "" && p.Confidence != forecast.Tier(q.Confidence) {
			continue
		}
		predictions = append(predictions, p)
		if q.Limit > 0 && len(predictions) == q.Limit {
			break
		}
	}
	if q.Entity != "" && len(predictions) == 0 {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrEntityNotFound))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   predictions,
		"count":  len(predictions),
	})
}

// GetEntities returns the per-entity rollup of one level, optionally
// filtered by entity and confidence tier.
func (h *ResultsHandler) GetEntities(w http.ResponseWriter, r *http.Request) {
	q, apiErr := h.parseQuery(r)
	if apiErr != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apiErr))
		return
	}

	result, _ := h.store.Result(levelFromContext(r.Context()))
	summaries := make([]forecast.EntitySummary, 0, len(result.Summaries))
	for _, s := range result.Summaries {
		if q.Entity != "" && s.EntityID != q.Entity {
			continue
		}
		if q.Confidence != "" && s.Confidence != forecast.Tier(q.Confidence) {
			continue
		}
		summaries = append(summaries, s)
		if q.Limit > 0 && len(summaries) == q.Limit {
			break
		}
	}
	if q.Entity != "" && len(summaries) == 0 {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrEntityNotFound))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summaries,
		"count":  len(summaries),
	})
}
