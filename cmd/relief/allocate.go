package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dhanya-cpu/disaster-ai-system/decision/allocation"
	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
	"github.com/dhanya-cpu/disaster-ai-system/pkg/money"
)

// =============================================================================
// ALLOCATE COMMAND
// =============================================================================

func allocateCommand() *cli.Command {
	return &cli.Command{
		Name:  "allocate",
		Usage: "Compute the cost-minimal relief plan for a severity level and budget",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "severity",
				Aliases:  []string{"s"},
				Usage:    "Severity level (Low, Medium, High)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "budget",
				Aliases:  []string{"b"},
				Usage:    "Available budget in catalog currency",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "max",
				Aliases: []string{"m"},
				Usage:   "Per-resource ceiling as name=quantity (repeatable)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
		},
		Action: runAllocate,
	}
}

func runAllocate(c *cli.Context) error {
	log := newLogger(c)

	budget, err := money.ParseAmount(c.String("budget"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalidInput)
	}
	maxQuantities, err := parseMaxQuantities(c.StringSlice("max"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalidInput)
	}

	cat, err := loadCatalog(c, log)
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalidInput)
	}
	solver, err := newSolver(c, log)
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalidInput)
	}
	engine, err := allocation.NewEngine(cat, solver, log)
	if err != nil {
		return cli.Exit(err.Error(), ExitEngineError)
	}

	res, err := engine.Allocate(c.Context, allocation.Request{
		SeverityLevel: c.String("severity"),
		Budget:        budget,
		MaxQuantities: maxQuantities,
	})
	if err != nil {
		if apperrors.IsClientError(err) {
			return cli.Exit(err.Error(), ExitInvalidInput)
		}
		return cli.Exit(err.Error(), ExitEngineError)
	}

	if err := writeResult(os.Stdout, c.String("format"), res); err != nil {
		return cli.Exit(err.Error(), ExitInvalidInput)
	}
	if code := exitCodeFor(res); code != ExitSuccess {
		return cli.Exit("", code)
	}
	return nil
}

func exitCodeFor(res *allocation.Result) int {
	if res.Status == allocation.StatusInsufficientBudget {
		return ExitInsufficientBudget
	}
	return ExitSuccess
}

// parseMaxQuantities parses name=quantity pairs.
func parseMaxQuantities(pairs []string) (map[string]int64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]int64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --max %q: want name=quantity", pair)
		}
		q, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --max %q: %w", pair, err)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("duplicate --max for %s", name)
		}
		out[name] = q
	}
	return out, nil
}

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

// JSONOutput mirrors the HTTP response body.
type JSONOutput struct {
	Status          string           `json:"status"`
	SeverityLevel   string           `json:"severity_level"`
	ResourcePlan    map[string]int64 `json:"resource_plan"`
	TotalCost       string           `json:"total_cost"`
	BudgetRemaining *string          `json:"budget_remaining,omitempty"`
	BudgetShortfall *string          `json:"budget_shortfall,omitempty"`
	Currency        string           `json:"currency"`
	Method          string           `json:"method"`
	CatalogHash     string           `json:"catalog_hash"`
}

func writeResult(w io.Writer, format string, res *allocation.Result) error {
	switch format {
	case "json":
		return outputJSON(w, res)
	case "markdown":
		return outputMarkdown(w, res)
	case "table", "":
		return outputTable(w, res)
	default:
		return fmt.Errorf("unknown output format %q (want table, json or markdown)", format)
	}
}

func outputJSON(w io.Writer, res *allocation.Result) error {
	places := money.MinorUnits(res.Currency)
	output := JSONOutput{
		Status:        string(res.Status),
		SeverityLevel: res.Severity.String(),
		ResourcePlan:  res.Plan,
		TotalCost:     res.TotalCost.StringFixed(places),
		Currency:      string(res.Currency),
		Method:        res.Method,
		CatalogHash:   res.CatalogHash,
	}
	balance := res.Balance.StringFixed(places)
	if res.Status == allocation.StatusOptimal {
		output.BudgetRemaining = &balance
	} else {
		output.BudgetShortfall = &balance
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func balanceLabel(res *allocation.Result) string {
	if res.Status == allocation.StatusOptimal {
		return "Budget Remaining"
	}
	return "Budget Shortfall"
}

func outputTable(w io.Writer, res *allocation.Result) error {
	places := money.MinorUnits(res.Currency)
	cur := string(res.Currency)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                    RELIEF ALLOCATION                         ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Severity:              %-37s ║\n", res.Severity)
	fmt.Fprintf(w, "║  Status:                %-37s ║\n", res.Status)
	fmt.Fprintf(w, "║  Budget:                %-37s ║\n", res.Budget.StringFixed(places)+" "+cur)
	fmt.Fprintf(w, "║  Total Cost:            %-37s ║\n", res.TotalCost.StringFixed(places)+" "+cur)
	fmt.Fprintf(w, "║  %-22s %-37s ║\n", balanceLabel(res)+":", res.Balance.StringFixed(places)+" "+cur)
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  %-20s %10s %10s %16s ║\n", "RESOURCE", "QUANTITY", "UNIT", "COST")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	for _, l := range res.Lines {
		fmt.Fprintf(w, "║  %-20s %10d %10s %16s ║\n",
			truncate(l.Resource, 20), l.Quantity, l.UnitCost.String(), l.Cost.StringFixed(places))
	}
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func outputMarkdown(w io.Writer, res *allocation.Result) error {
	places := money.MinorUnits(res.Currency)
	cur := string(res.Currency)

	fmt.Fprintln(w, "## Relief Allocation Report")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	fmt.Fprintf(w, "| **Severity** | %s |\n", res.Severity)
	fmt.Fprintf(w, "| **Status** | %s |\n", res.Status)
	fmt.Fprintf(w, "| **Budget** | %s %s |\n", res.Budget.StringFixed(places), cur)
	fmt.Fprintf(w, "| **Total Cost** | %s %s |\n", res.TotalCost.StringFixed(places), cur)
	fmt.Fprintf(w, "| **%s** | %s %s |\n", balanceLabel(res), res.Balance.StringFixed(places), cur)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Resource Plan")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Resource | Quantity | Required | Unit Cost | Cost |")
	fmt.Fprintln(w, "|----------|----------|----------|-----------|------|")
	for _, l := range res.Lines {
		fmt.Fprintf(w, "| %s | %d | %d | %s | %s |\n", l.Resource, l.Quantity, l.Demand, l.UnitCost.String(), l.Cost.StringFixed(places))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
