package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/audiolibrelab/wavrec/internal/audio"
	"github.com/audiolibrelab/wavrec/internal/service"
)

// Server represents the web server for controlling wavrec remotely
type Server struct {
	service service.Service
	port    int
	mux     *http.ServeMux
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Status    string                    `json:"status"`
	Message   string                    `json:"message,omitempty"`
	Session   *service.RecordingSession `json:"session,omitempty"`
	OutputDir string                    `json:"output_dir"`
	Backend   string                    `json:"backend"`
}

// SourcesResponse represents the JSON response for sources endpoint
type SourcesResponse struct {
	Backend string             `json:"backend"`
	Sources []audio.DeviceInfo `json:"sources"`
}

// FilesResponse represents the JSON response for files endpoint
type FilesResponse struct {
	Files           []service.RecordingInfo `json:"files"`
	TotalCount      int                     `json:"total_count"`
	OutputDirectory string                  `json:"output_directory"`
}

// New creates a new web server instance around svc
func New(svc service.Service, port int) *Server {
	s := &Server{
		service: svc,
		port:    port,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/record/start", s.handleStartRecording)
	s.mux.HandleFunc("/record/stop", s.handleStopRecording)
	s.mux.HandleFunc("/config/select", s.handleSelectProfile)
	s.mux.HandleFunc("/sources", s.handleSources)
	s.mux.HandleFunc("/api/files", s.handleFiles)
	s.mux.HandleFunc("/api/files/stream/", s.handleFileStream)
	s.mux.HandleFunc("/api/files/download/", s.handleFileDownload)

	return s
}

// Handler returns the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the web server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting wavrec web server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%d", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%d", s.port))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// handleIndex lists the API since there is no bundled UI
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, `wavrec

GET  /status                       recording status
POST /record/start  (form: name)   start recording
POST /record/stop                  stop and save the recording
POST /config/select (form: profile) switch configuration profile
GET  /sources                      capture devices
GET  /api/files                    finished recordings
GET  /api/files/stream/{name}      stream a recording
GET  /api/files/download/{name}    download a recording
`)
}

// handleStartRecording starts a new session in the background
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "start_recording")
		return
	}

	name := r.FormValue("name")
	slog.Debug("Start request received", "name", name)

	if err := s.service.StartRecording(name); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, service.ErrAlreadyRecording) {
			code = http.StatusConflict
		}
		s.sendErrorResponse(w, code,
			fmt.Sprintf("Failed to start recording: %v", err),
			"name", name, "operation", "start_recording")
		return
	}

	_, session := s.service.GetRecordingStatus()
	response := map[string]interface{}{
		"success": true,
		"message": "Recording started",
	}
	if session != nil {
		response["session"] = session
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleStopRecording stops the current session and waits for the file
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.StopRecording(); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, service.ErrNotRecording) {
			code = http.StatusConflict
		}
		s.sendErrorResponse(w, code,
			fmt.Sprintf("Failed to stop recording: %v", err),
			"operation", "stop_recording")
		return
	}

	_, session := s.service.GetRecordingStatus()
	response := map[string]interface{}{
		"success": true,
		"message": "Recording saved",
	}
	if session != nil {
		response["session"] = session
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleStatus returns the current status and session info
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status, session := s.service.GetRecordingStatus()
	cfg := s.service.GetConfig()

	response := StatusResponse{
		Status:    string(status),
		Message:   s.generateStatusMessage(status, session),
		Session:   session,
		OutputDir: cfg.Output.Directory,
		Backend:   cfg.Audio.Backend,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleSelectProfile switches to another configuration profile
func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "select_profile")
		return
	}

	profile := r.FormValue("profile")
	if profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Profile name is required", "operation", "select_profile")
		return
	}

	if err := s.service.LoadProfile(profile); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "profile", profile, "operation", "select_profile")
		return
	}

	slog.Info("Profile selected", "profile", profile)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Profile '%s' selected", profile),
	})
}

// handleSources returns the devices the configured backend can record
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	devices, err := s.service.ListDevices()
	if err != nil {
		s.sendErrorResponse(w, http.StatusServiceUnavailable,
			fmt.Sprintf("Failed to list sources: %v", err), "operation", "list_sources")
		return
	}
	if devices == nil {
		devices = []audio.DeviceInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SourcesResponse{
		Backend: s.service.GetConfig().Audio.Backend,
		Sources: devices,
	})
}

// handleFiles returns the list of finished recordings
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	recordings, err := s.service.ListRecordings()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to read output directory: %v", err), "operation", "list_files")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(FilesResponse{
		Files:           recordings,
		TotalCount:      len(recordings),
		OutputDirectory: s.service.GetConfig().Output.Directory,
	})
}

// handleFileStream streams a recording
func (s *Server) handleFileStream(w http.ResponseWriter, r *http.Request) {
	s.serveRecording(w, r, "/api/files/stream/", false)
}

// handleFileDownload serves a recording as an attachment
func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	s.serveRecording(w, r, "/api/files/download/", true)
}

func (s *Server) serveRecording(w http.ResponseWriter, r *http.Request, prefix string, attachment bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, prefix)
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return
	}

	// Validate filename (prevent path traversal)
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}
	if strings.ToLower(filepath.Ext(filename)) != ".wav" {
		http.Error(w, "File type not supported", http.StatusForbidden)
		return
	}

	filePath := filepath.Join(s.service.GetConfig().Output.Directory, filename)
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "File not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error accessing file", http.StatusInternalServerError)
		}
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "Error accessing file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	}
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

// generateStatusMessage creates appropriate status messages based on current state
func (s *Server) generateStatusMessage(status service.RecordingStatus, session *service.RecordingSession) string {
	switch status {
	case service.StatusRecording:
		if session != nil {
			return fmt.Sprintf("Recording in progress - %s", session.Name)
		}
		return "Recording in progress"
	case service.StatusStopping:
		return "Saving recording"
	case service.StatusError:
		if errorDetails := s.service.GetLastError(); errorDetails != "" {
			return errorDetails
		}
		return "An error occurred during the operation"
	default:
		if errorDetails := s.service.GetLastError(); errorDetails != "" {
			return errorDetails
		}
		return ""
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
