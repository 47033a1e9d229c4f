package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/dhanya-cpu/disaster-ai-system/db/clickhouse"
	"github.com/dhanya-cpu/disaster-ai-system/decision/allocation"
	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
)

func allocate(t *testing.T, level, budget string) *allocation.Result {
	t.Helper()
	engine, err := allocation.NewEngine(catalog.Default(), nil, zerolog.Nop())
	require.NoError(t, err)
	res, err := engine.AllocateLevel(context.Background(), level, decimal.RequireFromString(budget))
	require.NoError(t, err)
	return res
}

// runApp runs the CLI and returns the exit code it would have used.
func runApp(t *testing.T, args ...string) int {
	t.Helper()
	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"relief", "--log-level", "error"}, args...))
	if err == nil {
		return ExitSuccess
	}
	coder, ok := err.(cli.ExitCoder)
	require.True(t, ok, "unexpected error type %T: %v", err, err)
	return coder.ExitCode()
}

func TestParseMaxQuantities(t *testing.T) {
	got, err := parseMaxQuantities([]string{"shelters=150", " food_kits = 900 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"shelters": 150, "food_kits": 900}, got)

	got, err = parseMaxQuantities(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range [][]string{
		{"shelters"},
		{"=10"},
		{"shelters=ten"},
		{"shelters=1", "shelters=2"},
	} {
		_, err := parseMaxQuantities(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCodeFor(allocate(t, "Low", "60000")))
	assert.Equal(t, ExitInsufficientBudget, exitCodeFor(allocate(t, "Low", "50000")))
}

func TestOutputJSON(t *testing.T) {
	t.Run("optimal", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResult(&buf, "json", allocate(t, "Low", "60000")))

		var out JSONOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "Optimal", out.Status)
		assert.Equal(t, "Low", out.SeverityLevel)
		assert.Equal(t, map[string]int64{"food_kits": 500, "medical_units": 20, "shelters": 100}, out.ResourcePlan)
		assert.Equal(t, "59000.00", out.TotalCost)
		require.NotNil(t, out.BudgetRemaining)
		assert.Equal(t, "1000.00", *out.BudgetRemaining)
		assert.Nil(t, out.BudgetShortfall)
	})

	t.Run("insufficient", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResult(&buf, "json", allocate(t, "Low", "50000")))

		var out JSONOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "InsufficientBudget", out.Status)
		assert.Nil(t, out.BudgetRemaining)
		require.NotNil(t, out.BudgetShortfall)
		assert.Equal(t, "9000.00", *out.BudgetShortfall)
	})
}

func TestOutputTableAndMarkdown(t *testing.T) {
	res := allocate(t, "Medium", "454000")

	var table bytes.Buffer
	require.NoError(t, writeResult(&table, "table", res))
	assert.Contains(t, table.String(), "RELIEF ALLOCATION")
	assert.Contains(t, table.String(), "Budget Remaining:")
	assert.Contains(t, table.String(), "medical_units")

	var md bytes.Buffer
	require.NoError(t, writeResult(&md, "markdown", res))
	assert.Contains(t, md.String(), "## Relief Allocation Report")
	assert.Contains(t, md.String(), "| **Status** | Optimal |")
	assert.Contains(t, md.String(), "| shelters | 800 | 800 | 500 | 400000.00 |")

	assert.Error(t, writeResult(&bytes.Buffer{}, "xml", res))
}

func TestWriteCatalogSummary(t *testing.T) {
	var buf bytes.Buffer
	cat := catalog.Default()
	require.NoError(t, writeCatalogSummary(&buf, cat))

	out := buf.String()
	assert.Contains(t, out, cat.Hash())
	assert.Contains(t, out, "59000.00 USD")
	assert.Contains(t, out, "454000.00 USD")
	assert.Contains(t, out, "2750000.00 USD")
}

func TestWriteAllocations(t *testing.T) {
	var empty bytes.Buffer
	writeAllocations(&empty, nil)
	assert.Contains(t, empty.String(), "No allocations recorded")

	rec := clickhouse.NewAllocationRecord(uuid.New(), allocate(t, "Low", "50000"),
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	var buf bytes.Buffer
	writeAllocations(&buf, []*clickhouse.AllocationRecord{rec})
	assert.Contains(t, buf.String(), "2024-03-01 12:00:00")
	assert.Contains(t, buf.String(), "InsufficientBudget")
	assert.Contains(t, buf.String(), "9000.00")
}

func TestApp_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"optimal", []string{"allocate", "-s", "Low", "-b", "60000", "-f", "json"}, ExitSuccess},
		{"insufficient budget", []string{"allocate", "-s", "Low", "-b", "50000", "-f", "json"}, ExitInsufficientBudget},
		{"invalid severity", []string{"allocate", "-s", "Extreme", "-b", "60000"}, ExitInvalidInput},
		{"invalid budget", []string{"allocate", "-s", "Low", "-b", "lots"}, ExitInvalidInput},
		{"unknown resource ceiling", []string{"allocate", "-s", "Low", "-b", "60000", "--max", "boats=3"}, ExitInvalidInput},
		{"bad solver", []string{"--solver", "simplex", "allocate", "-s", "Low", "-b", "60000"}, ExitInvalidInput},
		{"missing catalog file", []string{"--catalog", "does-not-exist.yaml", "catalog", "validate"}, ExitInvalidInput},
		{"validate default catalog", []string{"catalog", "validate"}, ExitSuccess},
		{"import without file", []string{"catalog", "import"}, ExitInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runApp(t, tt.args...))
		})
	}
}
