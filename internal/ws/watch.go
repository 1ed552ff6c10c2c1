package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyper-ai-inc/workbench/internal/fs"
	"go.uber.org/zap"
)

// watchClient streams workspace events to one WebSocket connection
type watchClient struct {
	conn    *websocket.Conn
	watcher *fs.Watcher
	logger  *zap.Logger
	done    chan struct{}
}

func newWatchClient(conn *websocket.Conn, watcher *fs.Watcher, logger *zap.Logger) *watchClient {
	return &watchClient{
		conn:    conn,
		watcher: watcher,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// ReadPump discards client frames and signals when the connection ends
func (c *watchClient) ReadPump() {
	defer close(c.done)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump sends each event as a JSON text frame
func (c *watchClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.watcher.Stop()
		c.conn.Close()
	}()

	events := c.watcher.Events()
	for {
		select {
		case ev, ok := <-events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("watch send failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
