package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Source streams live snapshots of one collection for a room.
type Source interface {
	Collection() string
	Stream(ctx context.Context, roomID string, emit func(records any, count int, err error))
}

// Client represents a single WebSocket connection bound to a room.
type Client struct {
	hub     *Hub
	conn    *ws.Conn
	send    chan []byte
	roomID  string
	sources []Source
	logger  *slog.Logger
}

func NewClient(hub *Hub, conn *ws.Conn, roomID string, logger *slog.Logger, sources ...Source) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		roomID:  roomID,
		sources: sources,
		logger:  logger,
	}
}

// Run registers the client, starts one forwarder per source plus the write
// pump, and runs the read pump. When the connection closes the forwarders
// are stopped before the client is unregistered.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, src := range c.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.forward(ctx, src)
		}()
	}

	go c.writePump(ctx, cancel)
	c.readPump(ctx)

	cancel()
	wg.Wait()
	c.hub.Unregister(c)
}

func (c *Client) forward(ctx context.Context, src Source) {
	collection := src.Collection()
	src.Stream(ctx, c.roomID, func(records any, count int, err error) {
		msg := SnapshotMessage(collection, c.roomID, records, count)
		if err != nil {
			c.logger.Warn("stream error", "collection", collection, "room", c.roomID, "error", err)
			msg = ErrorMessage(collection, c.roomID, err)
		}
		data, err := json.Marshal(msg)
		if err != nil {
			c.logger.Error("marshal snapshot", "collection", collection, "error", err)
			return
		}
		select {
		case c.send <- data:
		case <-ctx.Done():
		}
	})
}

// readPump reads and discards all incoming messages. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
