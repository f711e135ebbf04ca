package application

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/bnema/mindstream-cli/internal/ports"
	"go.uber.org/zap"
)

type StreamOptions struct {
	// NoSignalLevel is the poorSignalLevel the headset reports before it has
	// contact. Nil means domain.DefaultNoSignalLevel.
	NoSignalLevel *float64
	Logger        *zap.Logger
	Metrics       *StreamMetrics
}

// Stream runs a frame source on its own goroutine, holds records back until
// the headset produces a real reading and queues everything after that for
// the foreground to drain.
type Stream struct {
	noSignalLevel float64
	logger        *zap.Logger
	metrics       *StreamMetrics

	connected atomic.Bool
	stopping  atomic.Bool

	mu    sync.Mutex
	queue []domain.Record

	done chan struct{}
	err  error
}

// NewStream starts the background goroutine immediately. ctx bounds the
// initial connect only; stopping the stream is done through Shutdown.
// It never fails itself: a connect error is reported by Wait, Err and Done
// once the goroutine gives up, so WaitConnected is the synchronous check.
func NewStream(ctx context.Context, opener ports.SourceOpener, opts StreamOptions) *Stream {
	noSignalLevel := float64(domain.DefaultNoSignalLevel)
	if opts.NoSignalLevel != nil {
		noSignalLevel = *opts.NoSignalLevel
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Stream{
		noSignalLevel: noSignalLevel,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		done:          make(chan struct{}),
	}
	go s.run(ctx, opener)

	return s
}

func (s *Stream) run(ctx context.Context, opener ports.SourceOpener) {
	defer close(s.done)

	source, err := opener.Open(ctx)
	if err != nil {
		s.err = err
		s.logger.Debug("open frame source", zap.Error(err))
		return
	}

	for record, err := range source.Messages(s.stopping.Load) {
		if err != nil {
			s.err = err
			// Wait and Err report this to the caller.
			s.logger.Debug("stream terminated", zap.Error(err))
			return
		}

		if !s.connected.Load() {
			if record.IsPlaceholder(s.noSignalLevel) {
				continue
			}
			s.connected.Store(true)
			s.metrics.markConnected()
			s.logger.Info("headset connected")
		}

		s.enqueue(record)
	}

	s.logger.Debug("stream stopped")
}

func (s *Stream) enqueue(record domain.Record) {
	s.mu.Lock()
	s.queue = append(s.queue, record)
	s.mu.Unlock()
	s.metrics.queued()
}

// IsConnected reports whether a real reading has been seen. It never reverts
// for the lifetime of the stream, including after the background goroutine
// has failed.
func (s *Stream) IsConnected() bool {
	return s.connected.Load()
}

// Data drains every queued record in arrival order. The boolean is false
// when nothing was queued. It never blocks on the producer.
func (s *Stream) Data() ([]domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, false
	}

	drained := s.queue
	s.queue = nil
	return drained, true
}

// Shutdown asks the background goroutine to stop. It is observed once per
// record, so the goroutine exits after the next frame arrives or the socket
// fails.
func (s *Stream) Shutdown() {
	s.stopping.Store(true)
}

// Done is closed when the background goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the background goroutine exits and returns why it did:
// nil after Shutdown, io.EOF when the bridge hung up, or the connect/read
// error.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Err is the non-blocking form of Wait. It returns nil while the stream is
// still running.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close is Shutdown followed by Wait.
func (s *Stream) Close() error {
	s.Shutdown()
	return s.Wait()
}
