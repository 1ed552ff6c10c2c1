package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyper-ai-inc/workbench/internal/sessions"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// ResizePrefix marks a frame carrying a JSON resize request instead of input
const ResizePrefix byte = 0x01

// ResizeMessage is the payload following ResizePrefix
type ResizeMessage struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// parseResize reports whether data is a well-formed resize frame. Anything
// else, including a bare Ctrl-A, is terminal input.
func parseResize(data []byte) (cols, rows uint16, ok bool) {
	if len(data) < 2 || data[0] != ResizePrefix {
		return 0, 0, false
	}
	var msg ResizeMessage
	if err := json.Unmarshal(data[1:], &msg); err != nil {
		return 0, 0, false
	}
	if msg.Cols <= 0 || msg.Rows <= 0 || msg.Cols > 0xffff || msg.Rows > 0xffff {
		return 0, 0, false
	}
	return uint16(msg.Cols), uint16(msg.Rows), true
}

// terminalClient relays one WebSocket connection to one terminal session
type terminalClient struct {
	conn    *websocket.Conn
	session *sessions.Session
	logger  *zap.Logger
}

func newTerminalClient(conn *websocket.Conn, session *sessions.Session, logger *zap.Logger) *terminalClient {
	return &terminalClient{
		conn:    conn,
		session: session,
		logger:  logger,
	}
}

// ReadPump forwards client frames to the shell. When the connection drops the
// session is closed, which kills the shell.
func (c *terminalClient) ReadPump() {
	defer func() {
		c.session.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("terminal connection lost", zap.Error(err))
			}
			return
		}

		if cols, rows, ok := parseResize(data); ok {
			if err := c.session.Resize(cols, rows); err != nil {
				c.logger.Debug("resize failed", zap.Error(err))
			}
			continue
		}

		if err := c.session.Write(data); err != nil {
			if errors.Is(err, sessions.ErrSessionClosed) {
				return
			}
			c.logger.Debug("terminal input dropped", zap.Error(err))
		}
	}
}

// WritePump sends shell output to the client as binary frames
func (c *terminalClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.session.Close()
	}()

	output := c.session.Output()
	for {
		select {
		case chunk, ok := <-output:
			if !ok {
				c.writeExit()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				c.logger.Debug("terminal send failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeExit waits for the shell to be reaped and tells the client how it
// ended.
func (c *terminalClient) writeExit() {
	select {
	case <-c.session.Exited():
	case <-time.After(writeWait):
	}
	reason := "process exited"
	if err := c.session.ExitErr(); err != nil {
		reason += ": " + err.Error()
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
}

// rejectConn reports a fatal setup error to the client and closes the
// connection.
func rejectConn(conn *websocket.Conn, cause error) {
	deadline := time.Now().Add(writeWait)
	conn.SetWriteDeadline(deadline)
	conn.WriteMessage(websocket.TextMessage, []byte(cause.Error()+"\r\n"))
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"), deadline)
	conn.Close()
}
