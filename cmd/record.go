package cmd

import (
	"fmt"
	"time"

	"github.com/bnema/mindstream-cli/internal/application"
	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/spf13/cobra"
)

var defaultLabels = []string{"Red", "Green", "Blue"}

type recordFlags struct {
	user     string
	labels   []string
	rounds   int
	interval time.Duration
}

func newRecordCmd(app *app) *cobra.Command {
	var flags recordFlags

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a labelled training session",
		Long:  "record waits for the headset, then shows each label for --interval in shuffled rounds and saves every reading tagged with the label on screen.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.user, "user", "", "Profile name (required on first use)")
	cmd.Flags().StringSliceVar(&flags.labels, "label", defaultLabels, "Labels to cycle through")
	cmd.Flags().IntVar(&flags.rounds, "rounds", 3, "Times every label is shown")
	cmd.Flags().DurationVar(&flags.interval, "interval", 5*time.Second, "How long each label is shown")

	return cmd
}

func runRecord(cmd *cobra.Command, app *app, flags recordFlags) error {
	ctx := cmd.Context()
	if len(flags.labels) == 0 {
		return domain.ErrNoLabels
	}

	profile, err := app.recorder.ResolveProfile(ctx, flags.user)
	if err != nil {
		return err
	}

	stream := app.openStream(ctx)
	defer app.stopStream(stream)

	if err := waitForHeadset(cmd, stream); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, err := app.recorder.Record(ctx, stream, application.RecordOptions{
		User:         profile.Name,
		Labels:       flags.labels,
		Rounds:       flags.rounds,
		Interval:     flags.interval,
		PollInterval: streamPollInterval,
		OnLabel: func(label string, index, total int) {
			_, _ = fmt.Fprintf(out, "[%d/%d] %s\n", index+1, total, label)
		},
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "session %d for %s saved to %s (%d records)\n",
		result.Session.SessionNumber, result.Session.User, result.Location, len(result.Session.Data))
	return err
}
