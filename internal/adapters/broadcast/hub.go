package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bnema/mindstream-cli/internal/domain"
	"go.uber.org/zap"
)

const (
	clientBufferSize    = 256
	broadcastBufferSize = 256
)

const (
	MessageTypeReading = "reading"
	MessageTypeEvent   = "event"
)

// Message is the envelope written to every websocket client.
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func newMessage(record domain.Record) Message {
	msgType := MessageTypeEvent
	if record.IsReading() {
		msgType = MessageTypeReading
	}
	return Message{Type: msgType, Data: record.Values()}
}

// Client is one websocket subscriber.
type Client struct {
	ID   string
	send chan []byte
}

func newClient(id string) *Client {
	return &Client{ID: id, send: make(chan []byte, clientBufferSize)}
}

// Hub fans encoded records out to every registered client. A client whose
// buffer is full is disconnected instead of stalling the others.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	logger  *zap.Logger
	metrics *Metrics
}

func NewHub(logger *zap.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBufferSize),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Run owns the client set until ctx ends. Every client channel is closed on
// the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.metrics.setClients(0)
			h.logger.Debug("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.setClients(count)
			h.logger.Info("websocket client registered", zap.String("client_id", client.ID), zap.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.setClients(count)
			h.logger.Info("websocket client unregistered", zap.String("client_id", client.ID), zap.Int("clients", count))

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
					h.metrics.dropped(dropSlowClient)
					h.logger.Warn("websocket client too slow, disconnecting", zap.String("client_id", client.ID))
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.setClients(count)
		}
	}
}

// Register adds client to the hub. It returns false once the hub has
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues record for every client without blocking. The record is
// dropped when the hub is backed up.
func (h *Hub) Broadcast(record domain.Record) error {
	data, err := json.Marshal(newMessage(record))
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
		h.metrics.sent()
	default:
		h.metrics.dropped(dropHubFull)
		h.logger.Warn("broadcast queue full, dropping record")
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
