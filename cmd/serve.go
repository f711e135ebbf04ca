package cmd

import (
	"context"
	"time"

	"github.com/bnema/mindstream-cli/internal/adapters/broadcast"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serverShutdownTimeout = 5 * time.Second

func newServeCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Broadcast headset records to websocket clients",
		Long:  "serve fans every record out to clients connected on /ws and exposes /health and Prometheus /metrics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), app)
		},
	}

	cmd.Flags().String("listen", "", "HTTP listen address (default "+defaultServeAddr+")")
	app.bindFlag(serveAddrKey, cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(ctx context.Context, app *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := app.logger.Named("broadcast")
	hub := broadcast.NewHub(logger, broadcast.NewMetrics(app.registry))
	go hub.Run(ctx)

	stream := app.openStream(ctx)
	defer app.stopStream(stream)

	server := broadcast.NewServer(hub, broadcast.ServerOptions{
		Gatherer:  app.registry,
		Connected: stream.IsConnected,
		Logger:    logger,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(app.config.GetString(serveAddrKey))
	}()

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- broadcast.Pump(ctx, stream, hub, app.config.GetDuration(servePollIntervalKey), logger)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	case err = <-pumpErr:
		err = streamError(err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancelShutdown()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("shutdown broadcast server", zap.Error(shutdownErr))
	}

	return err
}
