package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyper-ai-inc/workbench/internal/config"
	"github.com/hyper-ai-inc/workbench/internal/fs"
	"github.com/hyper-ai-inc/workbench/internal/sessions"
	"github.com/hyper-ai-inc/workbench/internal/webui"
	"github.com/hyper-ai-inc/workbench/internal/ws"
)

const maxBodySize = 64 << 20

var errBadRequest = errors.New("bad request")

type Server struct {
	workspace *fs.Workspace
	uploads   *fs.Uploads
	sessions  *sessions.Manager
	wsRouter  *ws.Router
	static    http.Handler
	logger    *zap.Logger
}

func NewServer(cfg config.Config, sm *sessions.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	workspace := fs.NewWorkspace(cfg.Root)
	return &Server{
		workspace: workspace,
		uploads:   fs.NewUploads(cfg.UploadDir),
		sessions:  sm,
		wsRouter:  ws.NewRouter(sm, workspace, logger),
		static:    webui.NewSPAHandler(cfg.StaticDir),
		logger:    logger.With(zap.String("component", "http")),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Workspace files
	mux.HandleFunc("GET /api/list-directory", s.handleListDirectory)
	mux.HandleFunc("GET /api/read-file", s.handleReadFile)
	mux.HandleFunc("GET /api/stat-file", s.handleStatFile)
	mux.HandleFunc("POST /api/create-file", s.handleCreateFile)
	mux.HandleFunc("POST /api/save-file", s.handleSaveFile)
	mux.HandleFunc("POST /api/delete-file", s.handleDeleteFile)
	mux.HandleFunc("POST /api/upload-file", s.handleUploadFile)

	// Terminals
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /terminal", s.wsRouter.HandleTerminal)
	mux.HandleFunc("GET /api/watch", s.wsRouter.HandleWatch)

	// Everything else is the editor UI
	mux.Handle("GET /", s.static)

	return withCORS(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListDirectory(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}

	entries, err := s.workspace.List(path)
	if err != nil {
		s.writeFSError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path parameter required")
		return
	}

	data, err := s.workspace.Read(path)
	if err != nil {
		s.writeFSError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleStatFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path parameter required")
		return
	}

	info, err := s.workspace.Stat(path)
	if err != nil {
		s.writeFSError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	content := ""
	if req.Content != nil {
		content = *req.Content
	}
	if err := s.workspace.Create(*req.FilePath, []byte(content)); err != nil {
		s.writeFSError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "File created successfully"})
}

func (s *Server) handleSaveFile(w http.ResponseWriter, r *http.Request) {
	var req saveFileRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.workspace.Save(*req.FilePath, []byte(*req.Content)); err != nil {
		s.writeFSError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "File saved successfully"})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	var req deleteFileRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.workspace.Delete(*req.FilePath); err != nil {
		s.writeFSError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	var req uploadFileRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	stored, err := s.uploads.Store(*req.Filename, []byte(*req.Content))
	if err != nil {
		s.writeFSError(w, err, http.StatusInternalServerError)
		return
	}
	s.logger.Info("file uploaded", zap.String("path", stored))
	writeJSON(w, http.StatusOK, messageResponse{Message: "File uploaded successfully"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list := s.sessions.List()
	infos := make([]sessions.Info, 0, len(list))
	for _, session := range list {
		infos = append(infos, session.Info())
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session.Info())
}

// decodeBody parses and validates a JSON request body, writing a 400 on
// failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, req validator) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeFSError maps workspace errors to HTTP statuses. notFound is the status
// used for missing paths.
func (s *Server) writeFSError(w http.ResponseWriter, err error, notFound int) {
	switch {
	case errors.Is(err, fs.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, fs.ErrInvalidFilename):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fs.ErrNotFound):
		writeError(w, notFound, err.Error())
	default:
		s.logger.Warn("filesystem operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
