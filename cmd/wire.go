package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	tomlrepo "github.com/bnema/mindstream-cli/internal/adapters/repo/toml"
	"github.com/bnema/mindstream-cli/internal/adapters/thinkgear"
	"github.com/bnema/mindstream-cli/internal/application"
	"github.com/bnema/mindstream-cli/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// streamStopGrace bounds how long a command waits for the reader goroutine
// after Shutdown. It only notices the flag once the next frame arrives.
const streamStopGrace = 2 * time.Second

type app struct {
	config   *viper.Viper
	logger   *zap.Logger
	registry *prometheus.Registry
	recorder *application.Recorder
	clock    ports.Clock

	startErrs []error
}

func wireApp() (*app, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("wire config: %w", err)
	}

	profiles, err := tomlrepo.NewProfileRepository(config)
	if err != nil {
		return nil, fmt.Errorf("wire profile repository: %w", err)
	}

	sessions, err := tomlrepo.NewSessionRepository(config)
	if err != nil {
		return nil, fmt.Errorf("wire session repository: %w", err)
	}

	a := &app{
		config:   config,
		logger:   zap.NewNop(),
		registry: prometheus.NewRegistry(),
		clock:    ports.SystemClock{},
	}
	a.recorder = application.NewRecorder(profiles, sessions, a.clock, nil)

	return a, nil
}

func (a *app) bindFlag(key string, flag *pflag.Flag) {
	if err := a.config.BindPFlag(key, flag); err != nil {
		a.startErrs = append(a.startErrs, fmt.Errorf("bind flag %s: %w", flag.Name, err))
	}
}

// start finishes wiring once flags are parsed.
func (a *app) start(logOutput io.Writer) error {
	if len(a.startErrs) > 0 {
		return a.startErrs[0]
	}

	logger, err := newLogger(a.config.GetString(logLevelKey), logOutput)
	if err != nil {
		return err
	}
	a.logger = logger
	a.recorder = a.recorder.WithLogger(logger.Named("recorder"))

	return nil
}

func (a *app) stop() {
	_ = a.logger.Sync()
}

func (a *app) openStream(ctx context.Context) *application.Stream {
	opener := thinkgear.Opener{Config: thinkgear.Config{
		Addr:          a.config.GetString(deviceAddrKey),
		MaxFrameBytes: a.config.GetInt(deviceMaxFrameBytesKey),
		Metrics:       thinkgear.NewMetrics(a.registry),
		Logger:        a.logger.Named("thinkgear"),
	}}

	noSignalLevel := a.config.GetFloat64(deviceNoSignalLevelKey)
	return application.NewStream(ctx, opener, application.StreamOptions{
		NoSignalLevel: &noSignalLevel,
		Logger:        a.logger.Named("stream"),
		Metrics:       application.NewStreamMetrics(a.registry),
	})
}

// stopStream asks the stream to stop and gives the reader a short grace
// period to notice.
func (a *app) stopStream(stream *application.Stream) {
	stream.Shutdown()

	select {
	case <-stream.Done():
	case <-time.After(streamStopGrace):
		a.logger.Debug("stream still waiting for a frame after shutdown")
	}
}
