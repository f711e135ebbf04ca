package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mindstream",
		Short:         "MindWave headset acquisition CLI",
		Long:          "mindstream connects to the local ThinkGear bridge, waits for the MindWave headset to produce real readings, and streams, displays, records or broadcasts them.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	flags := rootCmd.PersistentFlags()
	flags.String("addr", "", "ThinkGear bridge address (default "+defaultDeviceAddr+")")
	flags.Float64("no-signal-level", 0, "poorSignalLevel reported before the headset has contact")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	app.bindFlag(deviceAddrKey, flags.Lookup("addr"))
	app.bindFlag(deviceNoSignalLevelKey, flags.Lookup("no-signal-level"))
	app.bindFlag(logLevelKey, flags.Lookup("log-level"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return app.start(cmd.ErrOrStderr())
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		app.stop()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newStreamCmd(app),
		newWatchCmd(app),
		newRecordCmd(app),
		newServeCmd(app),
	)

	return rootCmd
}
