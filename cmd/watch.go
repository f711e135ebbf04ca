package cmd

import (
	"github.com/bnema/mindstream-cli/internal/adapters/render/live"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show live headset readings in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			stream := app.openStream(ctx)
			defer app.stopStream(stream)

			err := live.Run(ctx, stream, cmd.OutOrStdout(), live.Options{Input: cmd.InOrStdin()})
			return streamError(err)
		},
	}
}
