// Package dashboard provides the REST API, the WebSocket event stream and a small HTML
// status page over the task registry.
package dashboard

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/jaakkos/agentbar/internal/app"
	"github.com/jaakkos/agentbar/internal/domain"
)

// APIResponse is the body of every mutating endpoint.
type APIResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status string `json:"status"`
	Port   int    `json:"port"`
	Tasks  int    `json:"tasks"`
}

// SettingsResponse is the body of POST /api/settings.
type SettingsResponse struct {
	Status   string       `json:"status"`
	Settings app.Settings `json:"settings"`
}

// Handler holds dependencies for the REST handlers.
type Handler struct {
	registry *app.Registry
	settings *app.SettingsService // optional; nil disables /api/settings
	events   *EventHub            // optional; nil disables /api/events
	logger   *log.Logger
	port     int
}

// HandlerOption configures optional dependencies for the handler.
type HandlerOption func(*Handler)

// WithSettings enables the settings endpoints.
func WithSettings(s *app.SettingsService) HandlerOption {
	return func(h *Handler) { h.settings = s }
}

// WithEventHub enables the WebSocket event stream.
func WithEventHub(hub *EventHub) HandlerOption {
	return func(h *Handler) { h.events = hub }
}

// WithPort sets the port reported by /health.
func WithPort(port int) HandlerOption {
	return func(h *Handler) { h.port = port }
}

// NewHandler creates a REST handler over registry.
func NewHandler(registry *app.Registry, logger *log.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes adds the REST, event and page routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/task/report", h.handleReport)
	mux.HandleFunc("/api/task/heartbeat", h.handleHeartbeat)
	mux.HandleFunc("/api/task/update_state", h.handleUpdateState)
	mux.HandleFunc("/api/task/update_state_by_path", h.handleUpdateStateByPath)
	mux.HandleFunc("/api/task/delete", h.handleDelete)
	mux.HandleFunc("/api/reset", h.handleReset)
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/dashboard", h.handleDashboard)
	mux.HandleFunc("/dashboard/", h.handleDashboard)
	if h.events != nil {
		mux.Handle("/api/events", h.events)
	}
}

type reportRequest struct {
	TaskID      string `json:"task_id"`
	Name        string `json:"name"`
	IDE         string `json:"ide"`
	WindowTitle string `json:"window_title"`
	IsFocused   bool   `json:"is_focused"`
	ProjectPath string `json:"project_path"`
	ActiveFile  string `json:"active_file"`
}

type heartbeatRequest struct {
	TaskID    string `json:"task_id"`
	IsFocused *bool  `json:"is_focused"`
}

// updateStateRequest serves both update_state (by task_id) and update_state_by_path.
type updateStateRequest struct {
	TaskID            string  `json:"task_id"`
	ProjectPath       string  `json:"project_path"`
	IDE               string  `json:"ide"`
	Status            *string `json:"status"`
	Progress          *int    `json:"progress"`
	Source            string  `json:"source"`
	EstimatedDuration *int64  `json:"estimated_duration"`
	CurrentStage      *string `json:"current_stage"`
}

// change validates the enum fields and builds the registry input.
func (req updateStateRequest) change() (app.StateChange, error) {
	src, err := domain.ParseSource(req.Source)
	if err != nil {
		return app.StateChange{}, err
	}
	ch := app.StateChange{
		Source:            src,
		Progress:          req.Progress,
		EstimatedDuration: req.EstimatedDuration,
		CurrentStage:      req.CurrentStage,
	}
	if req.Status != nil {
		st, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return app.StateChange{}, err
		}
		ch.Status = &st
	}
	return ch, nil
}

type taskIDRequest struct {
	TaskID string `json:"task_id"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req reportRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	out, err := h.registry.Report(app.ReportInput{
		TaskID:      req.TaskID,
		Name:        req.Name,
		IDE:         req.IDE,
		WindowTitle: req.WindowTitle,
		IsFocused:   req.IsFocused,
		ProjectPath: req.ProjectPath,
		ActiveFile:  req.ActiveFile,
	})
	h.writeOutcome(w, out, err)
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req heartbeatRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	out, err := h.registry.Heartbeat(req.TaskID, req.IsFocused)
	h.writeOutcome(w, out, err)
}

func (h *Handler) handleUpdateState(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req updateStateRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	ch, err := req.change()
	if err != nil {
		h.writeOutcome(w, app.Outcome{}, err)
		return
	}
	out, err := h.registry.UpdateState(req.TaskID, ch)
	h.writeOutcome(w, out, err)
}

func (h *Handler) handleUpdateStateByPath(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req updateStateRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	ch, err := req.change()
	if err != nil {
		h.writeOutcome(w, app.Outcome{}, err)
		return
	}
	out, err := h.registry.UpdateStateByPath(req.ProjectPath, req.IDE, ch)
	h.writeOutcome(w, out, err)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req taskIDRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, APIResponse{Status: "error", Error: "task_id is required"})
		return
	}
	if !h.registry.Delete(req.TaskID) {
		writeJSON(w, http.StatusNotFound, APIResponse{Status: "error", Error: "Task not found"})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Status: "ok"})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req taskIDRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	h.registry.Reset(req.TaskID)
	writeJSON(w, http.StatusOK, APIResponse{Status: "ok"})
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		writeJSON(w, http.StatusNotFound, APIResponse{Status: "error", Error: "settings are not available"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.settings.Get())
	case http.MethodPost:
		var patch app.SettingsPatch
		if !decodeBody(w, r, &patch, false) {
			return
		}
		s, err := h.settings.Update(patch)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				writeJSON(w, http.StatusBadRequest, APIResponse{Status: "error", Error: err.Error()})
				return
			}
			h.logger.Warn("settings update failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, APIResponse{Status: "error", Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, SettingsResponse{Status: "ok", Settings: s})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Error: "GET or POST required"})
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Port: h.port, Tasks: h.registry.Count()})
}

// writeOutcome maps a registry result onto HTTP: ok and ignored are 200, validation
// errors 400, unknown tasks 404.
func (h *Handler) writeOutcome(w http.ResponseWriter, out app.Outcome, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, APIResponse{Status: string(out.Status), Reason: out.Reason})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, APIResponse{Status: "error", Error: err.Error()})
	case errors.Is(err, domain.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, APIResponse{Status: "error", Error: "Task not found"})
	default:
		h.logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, APIResponse{Status: "error", Error: err.Error()})
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	writeJSON(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Error: method + " required"})
	return false
}

// decodeBody reads a JSON body into v. With allowEmpty an empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, APIResponse{Status: "error", Error: "invalid JSON body: " + err.Error()})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
