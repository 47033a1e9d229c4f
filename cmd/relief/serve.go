package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dhanya-cpu/disaster-ai-system/api"
	"github.com/dhanya-cpu/disaster-ai-system/decision/allocation"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the allocation HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "Port to listen on",
				EnvVars: []string{"PORT"},
			},
			&cli.StringSliceFlag{
				Name:    "cors-origins",
				Value:   cli.NewStringSlice("*"),
				Usage:   "Allowed CORS origins",
				EnvVars: []string{"RELIEF_CORS_ORIGINS"},
			},
			&cli.BoolFlag{
				Name:    "record",
				Usage:   "Record every allocation in ClickHouse",
				EnvVars: []string{"RELIEF_RECORD"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	log := newLogger(c)

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

	var audit api.AuditStore
	if c.Bool("record") {
		store, err := openStore(c)
		if err != nil {
			return cli.Exit(err.Error(), ExitEngineError)
		}
		defer store.Close()
		audit = store
		log.Info().Str("database", c.String("clickhouse-database")).Msg("Recording allocations")
	}

	config := api.DefaultConfig()
	config.Port = c.Int("port")
	config.CORSOrigins = c.StringSlice("cors-origins")
	config.Version = version

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(engine, audit, config, log)
	if err := server.Run(ctx); err != nil {
		return cli.Exit(err.Error(), ExitEngineError)
	}
	return nil
}
