package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/autosave"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 256 * 1024

	// Outbound queue per session
	sendBuffer = 64

	// Bound on the save triggered by a disconnect
	disconnectFlushTimeout = 10 * time.Second
)

// Client is one websocket session of a user
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// closed when the session ends
	done      chan struct{}
	closeOnce sync.Once

	userID int64

	service   services.SnapshotService
	scheduler *autosave.Scheduler

	logger zerolog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, userID int64, service services.SnapshotService, policy autosave.Policy, logger zerolog.Logger) *Client {
	c := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		userID:  userID,
		service: service,
		logger:  logger.With().Int64("userID", userID).Logger(),
	}
	c.scheduler = autosave.NewScheduler(policy, c.saveDraft, autosave.WithLogger(c.logger))
	return c
}

func (c *Client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// trySend queues data without blocking. It returns false when the queue is
// full; a closed session swallows the message.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// saveDraft is the scheduler's save function
func (c *Client) saveDraft(ctx context.Context, d autosave.Draft) error {
	out, err := c.service.AutoSave(ctx, c.userID, d)
	if err != nil {
		c.reply(errorMessage(err))
		return err
	}
	c.reply(autoSaveMessage(out))
	return nil
}

// readPump reads client messages until the connection drops, then flushes
// the pending draft
func (c *Client) readPump() {
	defer func() {
		defer c.hub.sessions.Done()
		c.hub.Unregister(c)
		c.close()

		ctx, cancel := context.WithTimeout(context.Background(), disconnectFlushTimeout)
		defer cancel()
		if err := c.scheduler.Stop(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Auto-save on disconnect failed")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info().Msg("WebSocket closed normally")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("Unexpected WebSocket close")
			} else {
				c.logger.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}

		c.handleMessage(message)
	}
}

// writePump writes queued messages and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
