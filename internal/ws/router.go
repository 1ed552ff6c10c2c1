package ws

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/hyper-ai-inc/workbench/internal/fs"
	"github.com/hyper-ai-inc/workbench/internal/sessions"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bridge is meant for trusted local use; any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Router handles WebSocket connections for terminals and file events
type Router struct {
	sessions  *sessions.Manager
	workspace *fs.Workspace
	logger    *zap.Logger
}

// NewRouter creates a new WebSocket router
func NewRouter(sm *sessions.Manager, workspace *fs.Workspace, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		sessions:  sm,
		workspace: workspace,
		logger:    logger.With(zap.String("component", "ws")),
	}
}

// HandleTerminal upgrades the request and attaches a fresh shell session to
// the connection. The session lives exactly as long as the connection.
func (r *Router) HandleTerminal(w http.ResponseWriter, req *http.Request) {
	opts := sessions.OpenOptions{
		Cols: queryDimension(req, "cols"),
		Rows: queryDimension(req, "rows"),
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session, err := r.sessions.Open(opts)
	if err != nil {
		r.logger.Error("failed to open terminal session", zap.Error(err))
		rejectConn(conn, err)
		return
	}

	client := newTerminalClient(conn, session, r.logger.With(zap.String("session_id", session.ID)))
	go client.ReadPump()
	go client.WritePump()
}

// HandleWatch upgrades the request and streams workspace change events until
// the client disconnects.
func (r *Router) HandleWatch(w http.ResponseWriter, req *http.Request) {
	// Register the watches before upgrading so no change after the handshake
	// is missed.
	watcher, err := fs.NewWatcher(r.workspace, r.logger)
	if err == nil {
		err = watcher.Start()
	}
	if err != nil {
		r.logger.Error("failed to start workspace watcher", zap.Error(err))
		http.Error(w, "failed to watch workspace", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", zap.Error(err))
		watcher.Stop()
		return
	}

	client := newWatchClient(conn, watcher, r.logger)
	go client.ReadPump()
	go client.WritePump()
}

// queryDimension parses a positive terminal dimension, returning 0 (use the
// default) for anything else.
func queryDimension(req *http.Request, name string) uint16 {
	v, err := strconv.ParseUint(req.URL.Query().Get(name), 10, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
