package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/discat/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local JSON API",
	Long: `Serve the local JSON API for downloads, sync and organize previews,
and run control. Prometheus metrics are exposed at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.openStorage(cmd.Context())
	if err != nil {
		return err
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:            a.cfg.Server.Addr,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Downloads:       a.downloader(st),
		Catalog:         a.client,
		Collection:      a.latest,
		Executor:        a.executor(),
		Registry:        a.registry(st),
		Logger:          a.logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}
