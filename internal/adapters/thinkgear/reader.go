package thinkgear

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"sync"

	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/bnema/mindstream-cli/internal/ports"
	"go.uber.org/zap"
)

const (
	DefaultAddr          = "127.0.0.1:13854"
	DefaultMaxFrameBytes = 64 << 10

	// Separator terminates every JSON object sent by the bridge.
	Separator byte = '\r'
)

type Config struct {
	Addr          string
	MaxFrameBytes int
	Metrics       *Metrics
	Logger        *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

type handshake struct {
	EnableRawOutput bool   `json:"enableRawOutput"`
	Format          string `json:"format"`
}

// Reader turns a ThinkGear connector socket into decoded records. It is
// owned by a single goroutine.
type Reader struct {
	conn      net.Conn
	br        *bufio.Reader
	metrics   *Metrics
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

var _ ports.FrameSource = (*Reader)(nil)

// Dial connects to the bridge and requests JSON output without raw samples.
// There is no retry and no connect timeout beyond what ctx imposes.
func Dial(ctx context.Context, cfg Config) (*Reader, error) {
	cfg = cfg.withDefaults()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", domain.ErrConnect, cfg.Addr, err)
	}

	payload, err := json.Marshal(handshake{EnableRawOutput: false, Format: "Json"})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("encode handshake: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w %s: send handshake: %w", domain.ErrConnect, cfg.Addr, err)
	}

	cfg.Logger.Info("connected to thinkgear bridge", zap.String("addr", cfg.Addr))
	return NewReader(conn, cfg), nil
}

// NewReader wraps an already configured connection.
func NewReader(conn net.Conn, cfg Config) *Reader {
	cfg = cfg.withDefaults()
	return &Reader{
		conn:    conn,
		br:      bufio.NewReaderSize(conn, cfg.MaxFrameBytes),
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Next blocks until the next decodable frame arrives. Malformed, oversized
// and schema-violating frames are skipped. io.EOF is returned as is when the
// bridge closes the connection; any other read error wraps
// domain.ErrStreamRead.
func (r *Reader) Next() (domain.Record, error) {
	for {
		frame, err := r.readFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.Record{}, io.EOF
			}
			return domain.Record{}, fmt.Errorf("%w: %w", domain.ErrStreamRead, err)
		}
		if frame == nil {
			r.metrics.dropped(dropOversize)
			r.logger.Debug("dropping oversized frame")
			continue
		}

		msg, ok := Decode(frame)
		if !ok {
			r.metrics.dropped(dropDecode)
			r.logger.Debug("dropping undecodable frame", zap.Int("bytes", len(frame)))
			continue
		}

		record, ok := Classify(msg)
		if !ok {
			r.metrics.dropped(dropSchema)
			r.logger.Debug("dropping categorized frame with missing channels")
			continue
		}

		r.metrics.frame()
		return record, nil
	}
}

// Messages exposes the reader as a lazy sequence. shutdown is evaluated once
// before each record; the connection is closed when iteration ends.
func (r *Reader) Messages(shutdown func() bool) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		defer r.Close()

		for !shutdown() {
			record, err := r.Next()
			if err != nil {
				yield(domain.Record{}, err)
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}

// readFrame returns the bytes before the next separator. A nil frame with a
// nil error means the frame exceeded the buffer and was discarded.
func (r *Reader) readFrame() ([]byte, error) {
	oversized := false
	for {
		chunk, err := r.br.ReadSlice(Separator)
		r.metrics.read(len(chunk))

		switch {
		case err == nil:
			if oversized {
				return nil, nil
			}
			frame := make([]byte, len(chunk)-1)
			copy(frame, chunk)
			return frame, nil
		case errors.Is(err, bufio.ErrBufferFull):
			oversized = true
		default:
			return nil, err
		}
	}
}
