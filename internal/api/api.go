// Package api exposes the companion [chat.Service] over HTTP/JSON.
//
// Routes:
//
//	POST /api/profile         create a user from a persona profile
//	PUT  /api/profile         replace a user's persona
//	GET  /api/profile         ?userId=
//	POST /api/session         open a session for a user
//	GET  /api/session         ?sessionId= (transcript) or ?userId= (history)
//	POST /api/chat            one conversation turn
//	POST /api/voice           speak arbitrary text
//	GET  /api/voices          TTS voice catalogue
//	POST /api/voices/clone    multipart voice cloning
//	GET  /api/personas        persona catalogue for onboarding wizards
//
// Errors are written as {"error": "..."} with a status derived from the
// chat package sentinels.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/MrWong99/carecompanion/internal/chat"
	"github.com/MrWong99/carecompanion/internal/observe"
	"github.com/MrWong99/carecompanion/internal/persona"
	"github.com/MrWong99/carecompanion/internal/store"
	"github.com/MrWong99/carecompanion/pkg/cue"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
	"github.com/MrWong99/carecompanion/pkg/types"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 25 << 20
)

// Handler serves the companion API.
type Handler struct {
	svc *chat.Service
}

// New creates a [Handler] backed by svc.
func New(svc *chat.Service) *Handler {
	return &Handler{svc: svc}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/profile", h.handleCreateProfile)
	mux.HandleFunc("PUT /api/profile", h.handleUpdateProfile)
	mux.HandleFunc("GET /api/profile", h.handleGetProfile)
	mux.HandleFunc("POST /api/session", h.handleCreateSession)
	mux.HandleFunc("GET /api/session", h.handleGetSession)
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/voice", h.handleVoice)
	mux.HandleFunc("GET /api/voices", h.handleListVoices)
	mux.HandleFunc("POST /api/voices/clone", h.handleCloneVoice)
	mux.HandleFunc("GET /api/personas", h.handlePersonas)
}

// ─── Wire types ──────────────────────────────────────────────────────────────

// UserResponse wraps a single user.
type UserResponse struct {
	User *store.User `json:"user"`
}

// ProfileUpdate is the PUT /api/profile body.
type ProfileUpdate struct {
	UserID string `json:"userId"`
	persona.Profile
}

// SessionRequest is the POST /api/session body.
type SessionRequest struct {
	UserID string `json:"userId"`
}

// SessionWithMessages is a session together with some or all of its messages.
type SessionWithMessages struct {
	store.Session
	Messages []store.Message `json:"messages"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session SessionWithMessages `json:"session"`
}

// SessionsResponse is the history listing; each session carries at most its
// last message.
type SessionsResponse struct {
	Sessions []SessionWithMessages `json:"sessions"`
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatMessage is the assistant message merged with its avatar cues.
type ChatMessage struct {
	store.Message
	cue.Cues
}

// ChatResponse wraps the assistant reply.
type ChatResponse struct {
	Message ChatMessage `json:"message"`
}

// VoiceRequest is the POST /api/voice body.
type VoiceRequest struct {
	Text       string             `json:"text"`
	Modulation persona.Modulation `json:"modulation"`
}

// VoiceResponse carries the spoken clip. AudioURL is null when speech is
// unavailable.
type VoiceResponse struct {
	AudioURL *string `json:"audioUrl"`
}

// VoicesResponse lists provider voices.
type VoicesResponse struct {
	Voices []types.VoiceProfile `json:"voices"`
}

// CloneResponse wraps a newly cloned voice.
type CloneResponse struct {
	Voice *types.VoiceProfile `json:"voice"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ─── Profile ─────────────────────────────────────────────────────────────────

func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var p persona.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	if p.Role == "" || p.Modulation == "" || p.Language == "" || p.Focus == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	u, err := h.svc.CreateUser(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{User: u})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	u, err := h.svc.UpdateUser(r.Context(), req.UserID, req.Profile)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: u})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("userId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	u, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: u})
}

// ─── Sessions ────────────────────────────────────────────────────────────────

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	sess, err := h.svc.StartSession(r.Context(), req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{
		Session: SessionWithMessages{Session: *sess, Messages: []store.Message{}},
	})
}

// handleGetSession returns one transcript when sessionId is given and the
// user's history otherwise.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, userID := q.Get("sessionId"), q.Get("userId")

	switch {
	case sessionID != "":
		t, err := h.svc.Transcript(r.Context(), sessionID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{
			Session: SessionWithMessages{Session: t.Session, Messages: t.Messages},
		})
	case userID != "":
		summaries, err := h.svc.Sessions(r.Context(), userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out := make([]SessionWithMessages, 0, len(summaries))
		for _, s := range summaries {
			msgs := []store.Message{}
			if s.LastMessage != nil {
				msgs = append(msgs, *s.LastMessage)
			}
			out = append(out, SessionWithMessages{Session: s.Session, Messages: msgs})
		}
		writeJSON(w, http.StatusOK, SessionsResponse{Sessions: out})
	default:
		writeError(w, http.StatusBadRequest, "User ID or Session ID is required")
	}
}

// ─── Chat ────────────────────────────────────────────────────────────────────

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.SessionID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	reply, err := h.svc.Reply(r.Context(), chat.Request{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Text:      req.Message,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Message: ChatMessage{Message: reply.Message, Cues: reply.Cues},
	})
}

// ─── Voice ───────────────────────────────────────────────────────────────────

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	url, err := h.svc.Voice(r.Context(), req.Text, req.Modulation)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var resp VoiceResponse
	if url != "" {
		resp.AudioURL = &url
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.svc.Voices(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VoicesResponse{Voices: voices})
}

// handleCloneVoice accepts multipart/form-data with a "name" field, an
// optional "description" and one or more "samples" files.
func (h *Handler) handleCloneVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := tts.CloneRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	for _, fh := range r.MultipartForm.File["samples"] {
		data, err := readSample(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read sample %q: %v", fh.Filename, err))
			return
		}
		req.Samples = append(req.Samples, tts.Sample{Filename: fh.Filename, Data: data})
	}

	v, err := h.svc.CloneVoice(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CloneResponse{Voice: v})
}

func readSample(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ─── Personas ────────────────────────────────────────────────────────────────

func (h *Handler) handlePersonas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, persona.Options())
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrUserNotFound), errors.Is(err, chat.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrVoiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, chat.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server-side failures are logged and
// their detail is not echoed to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, chat.ErrUserNotFound):
		msg = "User not found"
	case errors.Is(err, chat.ErrSessionNotFound):
		msg = "Session not found"
	case status >= http.StatusInternalServerError:
		observe.Logger(r.Context()).Error("api request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "err", err)
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

// decodeJSON reads a size-limited JSON body into v. It writes a 400 and
// returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
