package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"delyzer.dev/delyzer"
	"delyzer.dev/delyzer/config"
	"delyzer.dev/delyzer/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves stored departures and delay statistics over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var (
	serveAddr   string
	logRequests bool
)

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8000", "Address to listen on")
	serveCmd.Flags().BoolVarP(&logRequests, "log-requests", "", false, "Log every request")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("log-requests") {
		cfg.Server.LogRequests = logRequests
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStorage(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	queries := delyzer.NewQueryService(s, loadCatalog(cfg.Catalog))
	router := server.NewRouter(queries, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LogRequests:    cfg.Server.LogRequests,
	})

	return server.ListenAndServe(ctx, cfg.Server.Addr, router)
}
