package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhanya-cpu/disaster-ai-system/db/clickhouse"
	"github.com/dhanya-cpu/disaster-ai-system/decision/allocation"
	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
	"github.com/dhanya-cpu/disaster-ai-system/pkg/money"
)

// =============================================================================
// ALLOCATE ENDPOINT
// =============================================================================

// AllocateRequest is the API request for an allocation. Budget accepts a JSON
// number or a decimal string.
type AllocateRequest struct {
	SeverityLevel string           `json:"severity_level"`
	Budget        *decimal.Decimal `json:"budget"`
	MaxQuantities map[string]int64 `json:"max_quantities,omitempty"`
}

// AllocateResponse is the API response for an allocation. Exactly one of
// BudgetRemaining and BudgetShortfall is set.
type AllocateResponse struct {
	AllocationID    string             `json:"allocation_id"`
	Status          string             `json:"status"`
	SeverityLevel   string             `json:"severity_level"`
	ResourcePlan    map[string]int64   `json:"resource_plan"`
	TotalCost       string             `json:"total_cost"`
	BudgetRemaining *string            `json:"budget_remaining,omitempty"`
	BudgetShortfall *string            `json:"budget_shortfall,omitempty"`
	Currency        string             `json:"currency"`
	CostLines       []CostLineResponse `json:"cost_lines"`
	Method          string             `json:"method"`
	CatalogHash     string             `json:"catalog_hash"`
}

// CostLineResponse is a single cost line item
type CostLineResponse struct {
	Resource string `json:"resource"`
	Quantity int64  `json:"quantity"`
	Demand   int64  `json:"demand"`
	UnitCost string `json:"unit_cost"`
	Cost     string `json:"cost"`
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.allocationErrors.WithLabelValues("INVALID_REQUEST").Inc()
		s.jsonError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Budget == nil {
		s.metrics.allocationErrors.WithLabelValues("INVALID_REQUEST").Inc()
		s.jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "budget is required", Field: "budget"})
		return
	}

	start := time.Now()
	res, err := s.engine.Allocate(r.Context(), allocation.Request{
		SeverityLevel: req.SeverityLevel,
		Budget:        *req.Budget,
		MaxQuantities: req.MaxQuantities,
	})
	if err != nil {
		s.allocationError(w, r, err)
		return
	}
	s.metrics.allocationDuration.WithLabelValues(res.Method).Observe(time.Since(start).Seconds())
	s.metrics.allocationsTotal.WithLabelValues(res.Severity.String(), string(res.Status), res.Method).Inc()
	if res.Status == allocation.StatusInsufficientBudget {
		s.metrics.shortfallTotal.WithLabelValues(string(res.Currency)).Add(res.Shortfall().InexactFloat64())
	}

	id := uuid.New()
	if s.audit != nil {
		if err := s.audit.RecordAllocation(r.Context(), clickhouse.NewAllocationRecord(id, res, time.Now())); err != nil {
			// The allocation itself succeeded; a lost audit row is logged, not returned.
			s.log.Error().Err(err).Str("allocation_id", id.String()).Msg("Failed to record allocation")
		}
	}

	s.jsonResponse(w, http.StatusOK, buildAllocateResponse(id, res))
}

func (s *Server) allocationError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = "UNKNOWN"
	}
	s.metrics.allocationErrors.WithLabelValues(code).Inc()

	status := http.StatusInternalServerError
	if apperrors.IsClientError(err) {
		status = http.StatusBadRequest
	} else {
		s.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Allocation failed")
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var coded *apperrors.Error
	if errors.As(err, &coded) {
		resp.Error = coded.Message
		resp.Field = coded.Field
	}
	s.jsonResponse(w, status, resp)
}

func buildAllocateResponse(id uuid.UUID, res *allocation.Result) AllocateResponse {
	places := money.MinorUnits(res.Currency)
	lines := make([]CostLineResponse, len(res.Lines))
	for i, l := range res.Lines {
		lines[i] = CostLineResponse{
			Resource: l.Resource,
			Quantity: l.Quantity,
			Demand:   l.Demand,
			UnitCost: l.UnitCost.String(),
			Cost:     l.Cost.StringFixed(places),
		}
	}

	resp := AllocateResponse{
		AllocationID:  id.String(),
		Status:        string(res.Status),
		SeverityLevel: res.Severity.String(),
		ResourcePlan:  res.Plan,
		TotalCost:     res.TotalCost.StringFixed(places),
		Currency:      string(res.Currency),
		CostLines:     lines,
		Method:        res.Method,
		CatalogHash:   res.CatalogHash,
	}
	balance := res.Balance.StringFixed(places)
	if res.Status == allocation.StatusOptimal {
		resp.BudgetRemaining = &balance
	} else {
		resp.BudgetShortfall = &balance
	}
	return resp
}

// =============================================================================
// CATALOG ENDPOINT
// =============================================================================

// CatalogResponse describes the catalog the server allocates from.
type CatalogResponse struct {
	Name      string             `json:"name"`
	Currency  string             `json:"currency"`
	Hash      string             `json:"hash"`
	Resources []ResourceResponse `json:"resources"`
	FloorCost map[string]string  `json:"floor_cost"`
}

// ResourceResponse is one catalog resource.
type ResourceResponse struct {
	Name     string           `json:"name"`
	UnitCost string           `json:"unit_cost"`
	Demand   map[string]int64 `json:"demand"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resp, err := buildCatalogResponse(s.engine.Catalog())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func buildCatalogResponse(cat *catalog.Catalog) (*CatalogResponse, error) {
	resp := &CatalogResponse{
		Name:      cat.Name(),
		Currency:  string(cat.Currency()),
		Hash:      cat.Hash(),
		FloorCost: make(map[string]string, len(catalog.Levels())),
	}
	for _, res := range cat.Resources() {
		demand := make(map[string]int64, len(res.Demand))
		for l, q := range res.Demand {
			demand[l.String()] = q
		}
		resp.Resources = append(resp.Resources, ResourceResponse{
			Name:     res.Name,
			UnitCost: res.UnitCost.String(),
			Demand:   demand,
		})
	}
	for _, l := range catalog.Levels() {
		floor, err := cat.FloorCost(l)
		if err != nil {
			return nil, err
		}
		resp.FloorCost[l.String()] = money.Format(floor, cat.Currency())
	}
	return resp, nil
}
