// Package thinkgeartest provides a fake ThinkGear connector for tests.
package thinkgeartest

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const acceptTimeout = 2 * time.Second

// Bridge listens on a loopback port and hands accepted clients to the test.
type Bridge struct {
	ln    net.Listener
	peers chan *Peer
	once  sync.Once
}

func NewBridge(t testing.TB) *Bridge {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	b := &Bridge{ln: ln, peers: make(chan *Peer, 4)}
	go b.acceptLoop()
	t.Cleanup(b.Close)

	return b
}

func (b *Bridge) Addr() string {
	return b.ln.Addr().String()
}

func (b *Bridge) Close() {
	b.once.Do(func() {
		_ = b.ln.Close()
	})
}

func (b *Bridge) acceptLoop() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}

		peer := &Peer{conn: conn, stop: make(chan struct{})}
		var raw json.RawMessage
		if err := json.NewDecoder(conn).Decode(&raw); err == nil {
			peer.Handshake = raw
		}
		b.peers <- peer
	}
}

// Accept waits for the next client and its handshake.
func (b *Bridge) Accept(t testing.TB) *Peer {
	t.Helper()

	select {
	case peer := <-b.peers:
		t.Cleanup(peer.Close)
		return peer
	case <-time.After(acceptTimeout):
		t.Fatal("timeout waiting for thinkgear client")
		return nil
	}
}

// Peer is one accepted client connection.
type Peer struct {
	Handshake json.RawMessage

	conn     net.Conn
	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// Send writes each frame followed by the separator.
func (p *Peer) Send(t testing.TB, frames ...string) {
	t.Helper()
	for _, frame := range frames {
		p.Write(t, frame+"\r")
	}
}

// Write writes raw bytes without appending a separator.
func (p *Peer) Write(t testing.TB, raw string) {
	t.Helper()

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.conn.Write([]byte(raw))
	require.NoError(t, err)
}

// Pump repeats frame every interval until the peer is closed or the write
// fails.
func (p *Peer) Pump(frame string, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.mu.Lock()
				_, err := p.conn.Write([]byte(frame + "\r"))
				p.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
}

func (p *Peer) Close() {
	p.stopOnce.Do(func() {
		close(p.stop)
		_ = p.conn.Close()
	})
}

// Frames used across tests.
const (
	NoSignalFrame    = `{"poorSignalLevel":200}`
	CategorizedFrame = `{"eSense":{"attention":40,"meditation":60},"eegPower":{"delta":1,"theta":2,"lowAlpha":3,"highAlpha":4,"lowBeta":5,"highBeta":6,"lowGamma":7,"highGamma":8},"poorSignalLevel":0}`
	BlinkFrame       = `{"blinkStrength":55}`
)
