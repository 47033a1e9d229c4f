package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dhanya-cpu/disaster-ai-system/db/clickhouse"
	"github.com/dhanya-cpu/disaster-ai-system/pkg/money"
)

func dbCommand() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "ClickHouse maintenance",
		Subcommands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Create the catalog and allocation tables",
				Action: func(c *cli.Context) error {
					log := newLogger(c)
					store, err := openStore(c)
					if err != nil {
						return cli.Exit(err.Error(), ExitEngineError)
					}
					defer store.Close()

					if err := store.Migrate(c.Context); err != nil {
						return cli.Exit(err.Error(), ExitEngineError)
					}
					log.Info().Strs("tables", clickhouse.Tables()).Msg("Schema is up to date")
					return nil
				},
			},
			{
				Name:  "allocations",
				Usage: "List recorded allocations, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Maximum number of entries",
					},
				},
				Action: func(c *cli.Context) error {
					store, err := openStore(c)
					if err != nil {
						return cli.Exit(err.Error(), ExitEngineError)
					}
					defer store.Close()

					records, err := store.ListAllocations(c.Context, c.Int("limit"))
					if err != nil {
						return cli.Exit(err.Error(), ExitEngineError)
					}
					writeAllocations(os.Stdout, records)
					return nil
				},
			},
		},
	}
}

func writeAllocations(w io.Writer, records []*clickhouse.AllocationRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No allocations recorded")
		return
	}
	fmt.Fprintf(w, "%-20s  %-8s  %-18s  %14s  %14s  %14s\n", "CREATED", "LEVEL", "STATUS", "BUDGET", "TOTAL", "BALANCE")
	for _, r := range records {
		cur := money.Currency(r.Currency)
		fmt.Fprintf(w, "%-20s  %-8s  %-18s  %14s  %14s  %14s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.SeverityLevel,
			r.Status,
			money.Format(r.Budget, cur),
			money.Format(r.TotalCost, cur),
			money.Format(r.Balance, cur),
		)
	}
}
