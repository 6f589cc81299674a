package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-grab/internal/config"
	"github.com/mmuslimabdulj/goat-grab/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-grab/internal/domain"
	"github.com/mmuslimabdulj/goat-grab/internal/usecase"
	"github.com/mmuslimabdulj/goat-grab/internal/validator"
	"github.com/mmuslimabdulj/goat-grab/view/pages"
)

// maxBodySize caps API request bodies
const maxBodySize = 8 << 10

// stateResponse is the JSON body of every form API call
type stateResponse struct {
	State domain.State `json:"state"`
	Error string       `json:"error,omitempty"`
}

type Handler struct {
	sessions       *usecase.SessionManager
	hub            *ws.Hub
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewHandler(sessions *usecase.SessionManager, hub *ws.Hub, allowedOrigins []string) *Handler {
	h := &Handler{
		sessions:       sessions,
		hub:            hub,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.isOriginAllowed(r.Header.Get("Origin"))
		},
	}
	return h
}

// isOriginAllowed checks if the origin is in the allowed list
func (h *Handler) isOriginAllowed(origin string) bool {
	// Empty origin is allowed (same-origin requests)
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// session resolves the caller's form, issuing a cookie for new sessions
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *usecase.FormController {
	var current string
	if c, err := r.Cookie(domain.SessionCookie); err == nil {
		current = c.Value
	}

	id, form := h.sessions.GetOrCreate(current)
	if id != current {
		http.SetCookie(w, &http.Cookie{
			Name:     domain.SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   r.TLS != nil,
		})
	}
	return form
}

// HandleHome serves the form page
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	form := h.session(w, r)
	component := pages.Home(form.Snapshot(), validator.Markers())
	if err := component.Render(r.Context(), w); err != nil {
		log.Printf("Render failed: %v", err)
	}
}

// HandleState returns the current form state
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	form := h.session(w, r)
	writeJSON(w, http.StatusOK, stateResponse{State: form.Snapshot()})
}

// HandleInput stores the text typed into the URL field
func (h *Handler) HandleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text, err := readField(w, r, "url")
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	form := h.session(w, r)
	state, err := form.SetURL(text)
	if err != nil {
		h.respond(w, r, statusFor(err), stateResponse{State: state, Error: messageFor(err)})
		return
	}
	h.respond(w, r, http.StatusOK, stateResponse{State: state})
}

// HandleSubmit sends the session's link to the backend and waits for the answer
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text, err := readField(w, r, "url")
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	form := h.session(w, r)

	// The field is optional; the last /api/input value is used otherwise
	if text != "" {
		if state, err := form.SetURL(text); err != nil {
			h.respond(w, r, statusFor(err), stateResponse{State: state, Error: messageFor(err)})
			return
		}
	}

	// In-flight requests are not cancelled when the browser goes away
	ctx := context.WithoutCancel(r.Context())

	start := time.Now()
	host := validator.Host(form.Snapshot().URL)
	state, err := form.Submit(ctx)
	if err != nil {
		h.respond(w, r, statusFor(err), stateResponse{State: state, Error: messageFor(err)})
		return
	}

	if state.Phase == domain.PhaseSuccess {
		log.Printf("Download ready host=%s took=%s", host, time.Since(start).Round(time.Millisecond))
	} else {
		log.Printf("Download failed host=%s took=%s err=%q", host, time.Since(start).Round(time.Millisecond), state.Error)
	}

	h.respond(w, r, http.StatusOK, stateResponse{State: state})
}

// HandleReset clears the form after a download
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	form := h.session(w, r)
	state, err := form.Reset()
	if err != nil {
		h.respond(w, r, statusFor(err), stateResponse{State: state, Error: messageFor(err)})
		return
	}
	h.respond(w, r, http.StatusOK, stateResponse{State: state})
}

// HandleDismissAlert closes the alert named by the id field
func (h *Handler) HandleDismissAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := readField(w, r, "id")
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	form := h.session(w, r)
	h.respond(w, r, http.StatusOK, stateResponse{State: form.DismissAlert(id)})
}

// HandleHealth reports liveness
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Count(),
	})
}

// HandleWebSocket upgrades HTTP to WebSocket for the caller's session
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(domain.SessionCookie)
	if err != nil || h.sessions.Get(c.Value) == nil {
		http.Error(w, "Session required", http.StatusUnauthorized)
		return
	}
	form := h.sessions.Get(c.Value)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, c.Value, form)
	h.hub.Register(client)

	config.Debugf("WebSocket connected clients=%d", h.hub.ClientCount(c.Value))

	// Start read/write pumps in goroutines
	go client.WritePump()
	go client.ReadPump()
}

// respond answers a form call. Plain browser form posts (no script) are
// sent back to the page, which renders the stored state.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, resp stateResponse) {
	if wantsPage(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, status, resp)
}

// wantsPage reports whether the caller is a browser navigation rather than app.js
func wantsPage(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// readField reads a single field from a JSON, urlencoded or multipart body
func readField(w http.ResponseWriter, r *http.Request, name string) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", err
		}
		return body[name], nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodySize); err != nil {
			return "", err
		}
	} else if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostFormValue(name), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, usecase.ErrInvalidURL):
		return domain.MsgInvalidURL
	case errors.Is(err, usecase.ErrBusy):
		return domain.MsgBusy
	default:
		return strings.TrimSpace(err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON encoding failed: %v", err)
	}
}
