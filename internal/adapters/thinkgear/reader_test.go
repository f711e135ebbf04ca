package thinkgear

import (
	"context"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bnema/mindstream-cli/internal/adapters/thinkgear/thinkgeartest"
	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectedReading() domain.Reading {
	return domain.Reading{
		domain.ChannelDelta: 1, domain.ChannelTheta: 2, domain.ChannelLowAlpha: 3, domain.ChannelHighAlpha: 4,
		domain.ChannelLowBeta: 5, domain.ChannelHighBeta: 6, domain.ChannelLowGamma: 7, domain.ChannelHighGamma: 8,
		domain.ChannelPoorSignalLevel: 0, domain.ChannelMeditation: 60, domain.ChannelAttention: 40,
	}
}

func dialBridge(t *testing.T, cfg Config) (*Reader, *thinkgeartest.Peer) {
	t.Helper()

	bridge := thinkgeartest.NewBridge(t)
	cfg.Addr = bridge.Addr()

	reader, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })

	return reader, bridge.Accept(t)
}

func TestDialSendsHandshake(t *testing.T) {
	_, peer := dialBridge(t, Config{})

	assert.JSONEq(t, `{"enableRawOutput":false,"format":"Json"}`, string(peer.Handshake))
}

func TestDialFailureIsSynchronous(t *testing.T) {
	bridge := thinkgeartest.NewBridge(t)
	addr := bridge.Addr()
	bridge.Close()

	_, err := Dial(context.Background(), Config{Addr: addr})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnect)
	assert.Contains(t, err.Error(), addr)
}

func TestReaderYieldsOneRecordPerDecodableFrame(t *testing.T) {
	reader, peer := dialBridge(t, Config{})

	peer.Send(t,
		thinkgeartest.NoSignalFrame,
		`{"eSense":`,
		thinkgeartest.CategorizedFrame,
		``,
		`[1,2,3]`,
		`null`,
		`{}`,
		thinkgeartest.BlinkFrame,
	)
	peer.Close()

	var got []domain.Record
	var streamErr error
	for record, err := range reader.Messages(func() bool { return false }) {
		if err != nil {
			streamErr = err
			break
		}
		got = append(got, record)
	}

	require.ErrorIs(t, streamErr, io.EOF)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Message{"poorSignalLevel": 200.0}, got[0].Raw)
	assert.Equal(t, expectedReading(), got[1].Reading)
	assert.Equal(t, domain.Message{"blinkStrength": 55.0}, got[2].Raw)
}

func TestReaderReassemblesFramesSplitAcrossWrites(t *testing.T) {
	reader, peer := dialBridge(t, Config{})

	half := len(thinkgeartest.CategorizedFrame) / 2
	peer.Write(t, thinkgeartest.CategorizedFrame[:half])
	peer.Write(t, thinkgeartest.CategorizedFrame[half:]+"\r"+thinkgeartest.NoSignalFrame+"\r")

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, expectedReading(), first.Reading)

	second, err := reader.Next()
	require.NoError(t, err)
	assert.True(t, second.IsPlaceholder(domain.DefaultNoSignalLevel))
}

func TestReaderDropsOversizedFrames(t *testing.T) {
	reader, peer := dialBridge(t, Config{MaxFrameBytes: 16})

	peer.Send(t, `{"blinkStrength":`+strings.Repeat("1", 64)+`}`, `{"a":1}`)

	record, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, domain.Message{"a": 1.0}, record.Raw)
}

func TestMessagesChecksShutdownOncePerRecord(t *testing.T) {
	reader, peer := dialBridge(t, Config{})
	peer.Send(t, thinkgeartest.BlinkFrame, thinkgeartest.BlinkFrame, thinkgeartest.BlinkFrame)

	var checks atomic.Int32
	shutdown := func() bool { return checks.Add(1) > 2 }

	count := 0
	for _, err := range reader.Messages(shutdown) {
		require.NoError(t, err)
		count++
	}

	assert.Equal(t, 2, count)
	assert.Equal(t, int32(3), checks.Load())

	_, err := reader.conn.Write([]byte("x"))
	require.ErrorIs(t, err, net.ErrClosed, "connection must be closed once iteration ends")
}

func TestMessagesStopsWhenConsumerBreaks(t *testing.T) {
	reader, peer := dialBridge(t, Config{})
	peer.Send(t, thinkgeartest.BlinkFrame, thinkgeartest.BlinkFrame)

	for _, err := range reader.Messages(func() bool { return false }) {
		require.NoError(t, err)
		break
	}

	_, err := reader.conn.Write([]byte("x"))
	require.ErrorIs(t, err, net.ErrClosed)
}

func TestReaderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	reader, peer := dialBridge(t, Config{Metrics: metrics})

	peer.Send(t, `{"eSense":`, `{"eSense":{},"eegPower":{}}`, thinkgeartest.BlinkFrame)

	_, err := reader.Next()
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.framesDropped.WithLabelValues(dropDecode)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.framesDropped.WithLabelValues(dropSchema)))
	assert.Greater(t, testutil.ToFloat64(metrics.bytes), 0.0)
}

func TestNewMetricsNilRegistry(t *testing.T) {
	var m *Metrics = NewMetrics(nil)
	assert.Nil(t, m)
	assert.NotPanics(t, func() {
		m.frame()
		m.dropped(dropDecode)
		m.read(10)
	})
}
