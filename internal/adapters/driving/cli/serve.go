package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/api"
	"github.com/custodia-labs/opptrack/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the HTTP API: health and configuration checks, document upload
and status, and the industry insight endpoints.

Uploaded documents are ingested by a background worker pool. Unless
--no-scheduler is set, interrupted documents are resumed and insights
rebuilt periodically.

Endpoints:
  GET    /health
  GET    /config/check[?probe=true]
  GET    /documents[?status=&industry=&limit=]
  POST   /documents                         (multipart: files, industry, outcome)
  GET    /documents/{id}
  DELETE /documents/{id}
  GET    /insights/industries[?limit=]
  GET    /insights/industries/{industry}
  GET    /insights/industries/{industry}/clusters
  GET    /insights/industries/{industry}/summary
  POST   /insights/industries/{industry}/rebuild`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().Bool("no-scheduler", false, "disable background resume and rebuild tasks")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if ingestService == nil || insightService == nil {
		return errors.New("services not configured")
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" && appConfig != nil {
		addr = appConfig.Server.Addr
	}
	if addr == "" {
		return errors.New("no listen address: set --addr or server.addr")
	}
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	ports := &api.Ports{
		Ingest:   ingestService,
		Insights: insightService,
		Config:   appConfig,
		Probe:    providerProbe,
	}
	if ingestQueue != nil {
		ingestQueue.Start()
		defer ingestQueue.Close()
		ports.Queue = ingestQueue
	}

	server, err := api.NewServer(ports)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	if scheduler != nil && !noScheduler {
		g.Go(func() error {
			return scheduler.Start(ctx)
		})
		g.Go(func() error {
			<-ctx.Done()
			return scheduler.Stop()
		})
	}
	g.Go(func() error {
		return server.Run(ctx, addr)
	})

	newPrinter(cmd.OutOrStdout()).Success("opptrack %s listening on http://%s", version, addr)
	logger.Info("HTTP API listening on %s", addr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
