package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhanya-cpu/disaster-ai-system/db/clickhouse"
	"github.com/dhanya-cpu/disaster-ai-system/decision/allocation"
	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
	"github.com/dhanya-cpu/disaster-ai-system/decision/ilp"
	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
)

type fakeAudit struct {
	mu      sync.Mutex
	records []*clickhouse.AllocationRecord
	pingErr error
	saveErr error
}

func (f *fakeAudit) RecordAllocation(_ context.Context, rec *clickhouse.AllocationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.saveErr
}

func (f *fakeAudit) Ping(context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, audit AuditStore) *Server {
	t.Helper()
	engine, err := allocation.NewEngine(catalog.Default(), nil, zerolog.Nop())
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Version = "test"
	return NewServer(engine, audit, cfg, zerolog.Nop())
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAllocate_Optimal(t *testing.T) {
	audit := &fakeAudit{}
	s := newTestServer(t, audit)

	rec := post(t, s, "/api/v1/allocate", `{"severity_level": "Low", "budget": 60000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AllocateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Optimal", resp.Status)
	assert.Equal(t, map[string]int64{"food_kits": 500, "medical_units": 20, "shelters": 100}, resp.ResourcePlan)
	assert.Equal(t, "59000.00", resp.TotalCost)
	require.NotNil(t, resp.BudgetRemaining)
	assert.Equal(t, "1000.00", *resp.BudgetRemaining)
	assert.Nil(t, resp.BudgetShortfall)
	assert.Equal(t, "USD", resp.Currency)
	require.Len(t, resp.CostLines, 3)
	assert.Equal(t, "food_kits", resp.CostLines[0].Resource)
	assert.Equal(t, "5000.00", resp.CostLines[0].Cost)

	_, err := uuid.Parse(resp.AllocationID)
	assert.NoError(t, err)
	require.Len(t, audit.records, 1)
	assert.Equal(t, resp.AllocationID, audit.records[0].ID.String())
	assert.Equal(t, "Optimal", audit.records[0].Status)
}

func TestAllocate_InsufficientBudget(t *testing.T) {
	s := newTestServer(t, nil)

	rec := post(t, s, "/optimize", `{"severity_level": "High", "budget": "2000000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "InsufficientBudget", raw["status"])
	assert.Equal(t, "2750000.00", raw["total_cost"])
	assert.Equal(t, "750000.00", raw["budget_shortfall"])
	assert.NotContains(t, raw, "budget_remaining")

	metrics := get(t, s, "/metrics").Body.String()
	assert.Contains(t, metrics, `relief_allocations_total{method="floor",severity_level="High",status="InsufficientBudget"} 1`)
	assert.Contains(t, metrics, `relief_budget_shortfall_total{currency="USD"} 750000`)
}

func TestAllocate_MaxQuantities(t *testing.T) {
	s := newTestServer(t, nil)

	rec := post(t, s, "/api/v1/allocate", `{"severity_level": "Low", "budget": 60000, "max_quantities": {"shelters": 150}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, s, "/api/v1/allocate", `{"severity_level": "Low", "budget": 60000, "max_quantities": {"shelters": 50}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CONSTRAINT", resp.Code)
	assert.Equal(t, "shelters", resp.Field)
}

func TestAllocate_ClientErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{"unknown severity", "/api/v1/allocate", `{"severity_level": "Unknown", "budget": 10000}`, "INVALID_SEVERITY_LEVEL"},
		{"catastrophic on legacy route", "/optimize", `{"severity_level": "Catastrophic", "budget": 100000}`, "INVALID_SEVERITY_LEVEL"},
		{"missing budget", "/api/v1/allocate", `{"severity_level": "Low"}`, ""},
		{"malformed json", "/api/v1/allocate", `{"severity_level":`, ""},
		{"non numeric budget", "/api/v1/allocate", `{"severity_level": "Low", "budget": "lots"}`, ""},
		{"unknown resource cap", "/api/v1/allocate", `{"severity_level": "Low", "budget": 1, "max_quantities": {"boats": 1}}`, "UNKNOWN_RESOURCE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

type failingSolver struct{ err error }

func (f failingSolver) Solve(context.Context, *ilp.Model) (*ilp.Solution, error) {
	return nil, f.err
}

func TestAllocate_ServerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"node limit", apperrors.NewSolverTimeoutError(10000), apperrors.ErrCodeSolverTimeout},
		{"deadline", context.DeadlineExceeded, apperrors.ErrCodeSolverTimeout},
		{"malformed model", apperrors.NewSolverInternalError("duplicate variable"), apperrors.ErrCodeSolverInternal},
		{"broken invariant", apperrors.NewInvariantViolationError("plan below demand"), apperrors.ErrCodeInvariantViolation},
		{"uncoded", errors.New("boom"), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := allocation.NewEngine(catalog.Default(), failingSolver{tt.err}, zerolog.Nop())
			require.NoError(t, err)
			s := NewServer(engine, nil, DefaultConfig(), zerolog.Nop())

			rec := post(t, s, "/api/v1/allocate", `{"severity_level": "Low", "budget": 60000}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)

			metrics := get(t, s, "/metrics").Body.String()
			assert.Contains(t, metrics, `relief_allocation_errors_total{code="`+tt.code+`"} 1`)
		})
	}
}

func TestAllocate_AuditFailureDoesNotFailRequest(t *testing.T) {
	s := newTestServer(t, &fakeAudit{saveErr: errors.New("clickhouse down")})
	rec := post(t, s, "/api/v1/allocate", `{"severity_level": "Medium", "budget": 454000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AllocateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.BudgetRemaining)
	assert.Equal(t, "0.00", *resp.BudgetRemaining)
}

func TestCatalogEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, "/api/v1/catalog")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CatalogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "default", resp.Name)
	assert.Equal(t, catalog.Default().Hash(), resp.Hash)
	require.Len(t, resp.Resources, 3)
	assert.Equal(t, "10", resp.Resources[0].UnitCost)
	assert.Equal(t, int64(3000), resp.Resources[0].Demand["Medium"])
	assert.Equal(t, map[string]string{"Low": "59000.00", "Medium": "454000.00", "High": "2750000.00"}, resp.FloorCost)
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		rec := get(t, newTestServer(t, nil), "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	})

	t.Run("root banner", func(t *testing.T) {
		rec := get(t, newTestServer(t, nil), "/")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "live")
	})

	t.Run("live", func(t *testing.T) {
		rec := get(t, newTestServer(t, nil), "/health/live")
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("ready without store", func(t *testing.T) {
		rec := get(t, newTestServer(t, nil), "/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ready with failing store", func(t *testing.T) {
		rec := get(t, newTestServer(t, &fakeAudit{pingErr: errors.New("refused")}), "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("version", func(t *testing.T) {
		rec := get(t, newTestServer(t, nil), "/version")
		assert.Contains(t, rec.Body.String(), `"version":"test"`)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	post(t, s, "/api/v1/allocate", `{"severity_level": "Low", "budget": 60000}`)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `relief_allocations_total{method="floor",severity_level="Low",status="Optimal"} 1`)
	assert.Contains(t, string(body), `relief_http_requests_total{code="200",method="POST",route="/api/v1/allocate"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/optimize", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
