package application

import (
	"context"
	"errors"
	"io"
	"iter"
	"testing"
	"time"

	"github.com/bnema/mindstream-cli/internal/adapters/thinkgear"
	"github.com/bnema/mindstream-cli/internal/adapters/thinkgear/thinkgeartest"
	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/bnema/mindstream-cli/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 2 * time.Second

type sourceItem struct {
	record domain.Record
	err    error
}

// fakeSource feeds records from a channel and acknowledges each one after the
// stream has finished handling it.
type fakeSource struct {
	items     chan sourceItem
	processed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		items:     make(chan sourceItem),
		processed: make(chan struct{}, 1024),
	}
}

func (f *fakeSource) Messages(shutdown func() bool) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		for !shutdown() {
			item, ok := <-f.items
			if !ok {
				return
			}
			keepGoing := yield(item.record, item.err)
			f.processed <- struct{}{}
			if !keepGoing || item.err != nil {
				return
			}
		}
	}
}

func (f *fakeSource) opener() ports.SourceOpener {
	return ports.SourceOpenerFunc(func(context.Context) (ports.FrameSource, error) {
		return f, nil
	})
}

func (f *fakeSource) send(t *testing.T, item sourceItem) {
	t.Helper()

	select {
	case f.items <- item:
	case <-time.After(waitTimeout):
		t.Fatal("stream did not pull the next record")
	}
	select {
	case <-f.processed:
	case <-time.After(waitTimeout):
		t.Fatal("stream did not process the record")
	}
}

func placeholder() domain.Record {
	return domain.Record{Raw: domain.Message{"poorSignalLevel": 200.0}}
}

func reading(attention float64) domain.Record {
	return domain.Record{Reading: domain.Reading{
		domain.ChannelDelta: 1, domain.ChannelTheta: 2, domain.ChannelLowAlpha: 3, domain.ChannelHighAlpha: 4,
		domain.ChannelLowBeta: 5, domain.ChannelHighBeta: 6, domain.ChannelLowGamma: 7, domain.ChannelHighGamma: 8,
		domain.ChannelPoorSignalLevel: 0, domain.ChannelMeditation: 60, domain.ChannelAttention: attention,
	}}
}

func TestStreamGatesOnFirstRealReading(t *testing.T) {
	source := newFakeSource()
	stream := NewStream(context.Background(), source.opener(), StreamOptions{Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() {
		stream.Shutdown()
		close(source.items)
		_ = stream.Wait()
	})

	source.send(t, sourceItem{record: placeholder()})
	assert.False(t, stream.IsConnected())
	source.send(t, sourceItem{record: placeholder()})
	assert.False(t, stream.IsConnected())

	_, ok := stream.Data()
	assert.False(t, ok, "placeholders before the first reading must not be queued")

	source.send(t, sourceItem{record: reading(40)})
	assert.True(t, stream.IsConnected())

	records, ok := stream.Data()
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, reading(40), records[0])
}

func TestStreamForwardsPlaceholdersAfterConnecting(t *testing.T) {
	source := newFakeSource()
	stream := NewStream(context.Background(), source.opener(), StreamOptions{})
	t.Cleanup(func() {
		stream.Shutdown()
		close(source.items)
		_ = stream.Wait()
	})

	source.send(t, sourceItem{record: placeholder()})
	source.send(t, sourceItem{record: reading(10)})
	source.send(t, sourceItem{record: placeholder()})
	source.send(t, sourceItem{record: reading(20)})

	records, ok := stream.Data()
	require.True(t, ok)
	assert.Equal(t, []domain.Record{reading(10), placeholder(), reading(20)}, records)
	assert.True(t, stream.IsConnected())
}

func TestStreamTreatsRecordsWithoutSignalAsReal(t *testing.T) {
	source := newFakeSource()
	stream := NewStream(context.Background(), source.opener(), StreamOptions{})
	t.Cleanup(func() {
		stream.Shutdown()
		close(source.items)
		_ = stream.Wait()
	})

	blink := domain.Record{Raw: domain.Message{"blinkStrength": 55.0}}
	source.send(t, sourceItem{record: blink})

	assert.True(t, stream.IsConnected())
	records, ok := stream.Data()
	require.True(t, ok)
	assert.Equal(t, []domain.Record{blink}, records)
}

func TestStreamHonoursConfiguredNoSignalLevel(t *testing.T) {
	source := newFakeSource()
	level := 255.0
	stream := NewStream(context.Background(), source.opener(), StreamOptions{NoSignalLevel: &level})
	t.Cleanup(func() {
		stream.Shutdown()
		close(source.items)
		_ = stream.Wait()
	})

	source.send(t, sourceItem{record: domain.Record{Raw: domain.Message{"poorSignalLevel": 255.0}}})
	assert.False(t, stream.IsConnected())

	source.send(t, sourceItem{record: placeholder()})
	assert.True(t, stream.IsConnected())
}

func TestStreamAcceptsZeroAsNoSignalLevel(t *testing.T) {
	source := newFakeSource()
	level := 0.0
	stream := NewStream(context.Background(), source.opener(), StreamOptions{NoSignalLevel: &level})
	t.Cleanup(func() {
		stream.Shutdown()
		close(source.items)
		_ = stream.Wait()
	})

	source.send(t, sourceItem{record: domain.Record{Raw: domain.Message{"poorSignalLevel": 0.0}}})
	assert.False(t, stream.IsConnected())

	source.send(t, sourceItem{record: placeholder()})
	assert.True(t, stream.IsConnected())
	records, ok := stream.Data()
	require.True(t, ok)
	assert.Equal(t, []domain.Record{placeholder()}, records)
}

func TestStreamDataDrainsExactlyOnce(t *testing.T) {
	source := newFakeSource()
	stream := NewStream(context.Background(), source.opener(), StreamOptions{})
	t.Cleanup(func() {
		stream.Shutdown()
		close(source.items)
		_ = stream.Wait()
	})

	source.send(t, sourceItem{record: reading(1)})
	source.send(t, sourceItem{record: reading(2)})

	records, ok := stream.Data()
	require.True(t, ok)
	assert.Equal(t, []domain.Record{reading(1), reading(2)}, records)

	records, ok = stream.Data()
	assert.False(t, ok)
	assert.Nil(t, records)

	source.send(t, sourceItem{record: reading(3)})
	records, ok = stream.Data()
	require.True(t, ok)
	assert.Equal(t, []domain.Record{reading(3)}, records)
}

func TestStreamPreservesOrderUnderConcurrentDrain(t *testing.T) {
	const total = 500

	source := newFakeSource()
	stream := NewStream(context.Background(), source.opener(), StreamOptions{})

	go func() {
		for i := 0; i < total; i++ {
			source.items <- sourceItem{record: reading(float64(i))}
			<-source.processed
		}
		close(source.items)
	}()

	var got []domain.Record
	deadline := time.After(5 * time.Second)
	for len(got) < total {
		if records, ok := stream.Data(); ok {
			got = append(got, records...)
			continue
		}
		select {
		case <-deadline:
			t.Fatalf("received %d of %d records", len(got), total)
		default:
			time.Sleep(time.Millisecond)
		}
	}

	require.NoError(t, stream.Wait())
	for i, record := range got {
		assert.Equal(t, float64(i), record.Reading[domain.ChannelAttention])
	}
}

func TestStreamReadErrorEndsSessionButKeepsConnectedFlag(t *testing.T) {
	source := newFakeSource()
	stream := NewStream(context.Background(), source.opener(), StreamOptions{})

	readErr := errors.Join(domain.ErrStreamRead, errors.New("connection reset by peer"))
	source.send(t, sourceItem{record: reading(1)})
	source.send(t, sourceItem{err: readErr})

	select {
	case <-stream.Done():
	case <-time.After(waitTimeout):
		t.Fatal("stream did not stop after read error")
	}

	assert.ErrorIs(t, stream.Wait(), domain.ErrStreamRead)
	assert.ErrorIs(t, stream.Err(), domain.ErrStreamRead)
	assert.True(t, stream.IsConnected())

	records, ok := stream.Data()
	require.True(t, ok)
	assert.Len(t, records, 1)
	_, ok = stream.Data()
	assert.False(t, ok)
}

func TestStreamOpenFailureSurfacesThroughWait(t *testing.T) {
	openErr := errors.Join(domain.ErrConnect, errors.New("connection refused"))
	stream := NewStream(context.Background(), ports.SourceOpenerFunc(func(context.Context) (ports.FrameSource, error) {
		return nil, openErr
	}), StreamOptions{})

	require.ErrorIs(t, stream.Wait(), domain.ErrConnect)
	assert.False(t, stream.IsConnected())
	_, ok := stream.Data()
	assert.False(t, ok)
}

func TestStreamShutdownIsObservedOnNextRecord(t *testing.T) {
	source := newFakeSource()
	stream := NewStream(context.Background(), source.opener(), StreamOptions{})

	source.send(t, sourceItem{record: reading(1)})
	stream.Shutdown()
	assert.Nil(t, stream.Err(), "shutdown must not wait for the goroutine")

	// The goroutine is either blocked reading, in which case one more record
	// lets it observe the flag, or it has already seen the flag and exited.
	select {
	case source.items <- sourceItem{record: reading(2)}:
		<-source.processed
	case <-stream.Done():
	case <-time.After(waitTimeout):
		t.Fatal("stream neither pulled a record nor stopped")
	}

	require.NoError(t, stream.Wait())
	records, ok := stream.Data()
	require.True(t, ok)
	assert.Equal(t, reading(1), records[0])
	assert.LessOrEqual(t, len(records), 2)
}

func TestStreamMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewStreamMetrics(reg)

	source := newFakeSource()
	stream := NewStream(context.Background(), source.opener(), StreamOptions{Metrics: metrics})
	t.Cleanup(func() {
		stream.Shutdown()
		close(source.items)
		_ = stream.Wait()
	})

	source.send(t, sourceItem{record: placeholder()})
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.connected))

	source.send(t, sourceItem{record: reading(1)})
	source.send(t, sourceItem{record: placeholder()})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.connected))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.recordsQueued))
}

func TestStreamOverThinkGearBridge(t *testing.T) {
	bridge := thinkgeartest.NewBridge(t)
	stream := NewStream(context.Background(), thinkgear.Opener{Config: thinkgear.Config{Addr: bridge.Addr()}}, StreamOptions{})

	peer := bridge.Accept(t)
	peer.Send(t, thinkgeartest.NoSignalFrame, thinkgeartest.NoSignalFrame, `{"eSense":`, thinkgeartest.CategorizedFrame)

	require.Eventually(t, stream.IsConnected, waitTimeout, 5*time.Millisecond)

	var records []domain.Record
	require.Eventually(t, func() bool {
		got, ok := stream.Data()
		records = append(records, got...)
		return ok
	}, waitTimeout, 5*time.Millisecond)

	require.Len(t, records, 1)
	assert.Equal(t, reading(40), records[0])

	peer.Close()
	assert.ErrorIs(t, stream.Wait(), io.EOF)
	assert.True(t, stream.IsConnected())
}
