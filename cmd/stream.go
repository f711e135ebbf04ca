package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/mindstream-cli/internal/adapters/render/live"
	"github.com/bnema/mindstream-cli/internal/application"
	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/spf13/cobra"
)

const streamPollInterval = 50 * time.Millisecond

func newStreamCmd(app *app) *cobra.Command {
	var count int
	var raw bool

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Print headset records as JSON lines",
		Long:  "stream waits for the headset to produce a real reading, then prints one JSON object per record until interrupted, --count records were written or the bridge hangs up.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStream(cmd, app, count, raw)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many records (0: unlimited)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Also print payloads that are not flattened readings")

	return cmd
}

func runStream(cmd *cobra.Command, app *app, count int, raw bool) error {
	ctx := cmd.Context()
	stream := app.openStream(ctx)
	defer app.stopStream(stream)

	err := waitForHeadset(cmd, stream)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}

	out := jsonLines{enc: json.NewEncoder(cmd.OutOrStdout()), limit: count, raw: raw}
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		if records, ok := stream.Data(); ok {
			full, err := out.write(records)
			if err != nil || full {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-stream.Done():
			if records, ok := stream.Data(); ok {
				if _, err := out.write(records); err != nil {
					return err
				}
			}
			return streamError(stream.Err())
		case <-ticker.C:
		}
	}
}

// waitForHeadset shows the connecting spinner on stderr so stdout carries
// records only.
func waitForHeadset(cmd *cobra.Command, stream *application.Stream) error {
	stderr := cmd.ErrOrStderr()
	waited, err := live.Connect(cmd.Context(), stream, stderr, live.Options{PollInterval: streamPollInterval})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(stderr, "connection made in %.2f seconds\n", waited.Seconds())
	return err
}

// streamError treats the bridge hanging up as a normal end of input.
func streamError(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type jsonLines struct {
	enc     *json.Encoder
	limit   int
	raw     bool
	written int
}

// write reports true once limit records have been written.
func (j *jsonLines) write(records []domain.Record) (bool, error) {
	for _, record := range records {
		if !j.raw && !record.IsReading() {
			continue
		}
		if err := j.enc.Encode(record); err != nil {
			return false, err
		}
		j.written++
		if j.limit > 0 && j.written >= j.limit {
			return true, nil
		}
	}
	return false, nil
}
