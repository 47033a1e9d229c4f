package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dhanya-cpu/disaster-ai-system/db/ingestion"
	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
	"github.com/dhanya-cpu/disaster-ai-system/pkg/money"
)

// =============================================================================
// CATALOG COMMANDS
// =============================================================================

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Inspect and import resource catalogs",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the resolved catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Value: "table",
						Usage: "Output format (table, yaml)",
					},
				},
				Action: runCatalogShow,
			},
			{
				Name:   "validate",
				Usage:  "Validate the catalog and print its hash and demand floor costs",
				Action: runCatalogValidate,
			},
			{
				Name:  "import",
				Usage: "Store the catalog in ClickHouse as a new snapshot",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "activate",
						Usage: "Make the snapshot the active version of the catalog",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Free-form origin recorded with the snapshot (default: catalog path)",
					},
				},
				Action: runCatalogImport,
			},
			{
				Name:  "snapshots",
				Usage: "List stored snapshots of a catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Value: "default",
						Usage: "Catalog name",
					},
				},
				Action: runCatalogSnapshots,
			},
		},
	}
}

func runCatalogShow(c *cli.Context) error {
	cat, err := loadCatalog(c, newLogger(c))
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalidInput)
	}
	switch c.String("format") {
	case "yaml":
		return catalog.Encode(os.Stdout, cat)
	case "table", "":
		writeCatalogTable(os.Stdout, cat)
		return nil
	default:
		return cli.Exit(fmt.Sprintf("unknown output format %q (want table or yaml)", c.String("format")), ExitInvalidInput)
	}
}

func writeCatalogTable(w io.Writer, cat *catalog.Catalog) {
	fmt.Fprintf(w, "Catalog: %s (%s)\n\n", cat.Name(), cat.Currency())
	fmt.Fprintf(w, "%-20s %12s", "RESOURCE", "UNIT COST")
	for _, l := range catalog.Levels() {
		fmt.Fprintf(w, " %10s", l)
	}
	fmt.Fprintln(w)
	for _, r := range cat.Resources() {
		fmt.Fprintf(w, "%-20s %12s", truncate(r.Name, 20), r.UnitCost.String())
		for _, l := range catalog.Levels() {
			fmt.Fprintf(w, " %10d", r.Demand[l])
		}
		fmt.Fprintln(w)
	}
}

func runCatalogValidate(c *cli.Context) error {
	cat, err := loadCatalog(c, newLogger(c))
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalidInput)
	}
	return writeCatalogSummary(os.Stdout, cat)
}

func writeCatalogSummary(w io.Writer, cat *catalog.Catalog) error {
	fmt.Fprintf(w, "✓ Catalog %q is valid\n", cat.Name())
	fmt.Fprintf(w, "  Resources: %d\n", cat.Len())
	fmt.Fprintf(w, "  Hash:      %s\n", cat.Hash())
	for _, l := range catalog.Levels() {
		floor, err := cat.FloorCost(l)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  Floor %-8s %s %s\n", string(l)+":", money.Format(floor, cat.Currency()), cat.Currency())
	}
	return nil
}

func runCatalogImport(c *cli.Context) error {
	log := newLogger(c)

	path := c.String("catalog")
	if path == "" {
		return cli.Exit("catalog import requires --catalog", ExitInvalidInput)
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalidInput)
	}

	store, err := openStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitEngineError)
	}
	defer store.Close()

	source := c.String("source")
	if source == "" {
		source = path
	}
	result, err := ingestion.NewImporter(store, log).Import(c.Context, cat, source, c.Bool("activate"))
	if err != nil {
		return cli.Exit(err.Error(), ExitEngineError)
	}

	fmt.Printf("Snapshot:  %s\n", result.SnapshotID)
	fmt.Printf("Catalog:   %s\n", result.Catalog)
	fmt.Printf("Hash:      %s\n", result.Hash)
	if result.Reused {
		fmt.Println("Stored:    reused existing snapshot")
	} else {
		fmt.Printf("Stored:    %d resources, %d demand rows\n", result.ResourceCount, result.DemandCount)
	}
	fmt.Printf("Active:    %t\n", result.Activated)
	return nil
}

func runCatalogSnapshots(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitEngineError)
	}
	defer store.Close()

	snapshots, err := store.ListSnapshots(c.Context, c.String("name"))
	if err != nil {
		return cli.Exit(err.Error(), ExitEngineError)
	}
	if len(snapshots) == 0 {
		fmt.Printf("No snapshots for catalog %q\n", c.String("name"))
		return nil
	}

	fmt.Printf("%-36s  %-6s  %-20s  %-12s  %s\n", "ID", "ACTIVE", "CREATED", "HASH", "SOURCE")
	for _, s := range snapshots {
		active := ""
		if s.IsActive {
			active = "*"
		}
		fmt.Printf("%-36s  %-6s  %-20s  %-12s  %s\n",
			s.ID, active, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Hash[:min(12, len(s.Hash))], s.Source)
	}
	return nil
}
