package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/fixit/internal/chat"
	"github.com/garnizeh/fixit/internal/realtime"
	"github.com/garnizeh/fixit/pkg/models"
)

type ChatHandler struct {
	chat *chat.Service
	hub  *realtime.Hub
}

func NewChatHandler(c *chat.Service, hub *realtime.Hub) *ChatHandler {
	return &ChatHandler{chat: c, hub: hub}
}

func (h *ChatHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if _, ok := requireSelf(w, r, userID); !ok {
		return
	}
	threads, err := h.chat.ListThreadsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(threads))
}

type resolveThreadRequest struct {
	ParticipantID string `json:"participantId" validate:"required"`
	JobRequestID  string `json:"jobRequestId,omitempty"`
}

// ResolveThread returns the caller's thread with participantId, creating it when needed.
func (h *ChatHandler) ResolveThread(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req resolveThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.chat.ResolveOrCreateThread(r.Context(), c.ID, req.ParticipantID, req.JobRequestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	msgs, err := h.chat.ListMessages(r.Context(), mux.Vars(r)["threadId"], c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(msgs))
}

type sendMessageRequest struct {
	ThreadID string `json:"threadId" validate:"required"`
	SenderID string `json:"senderId,omitempty"`
	Text     string `json:"text"`
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SenderID != "" && req.SenderID != c.ID {
		writeError(w, r, fmt.Errorf("%w: senderId must be the caller", models.ErrForbidden))
		return
	}
	m, err := h.chat.SendMessage(r.Context(), req.ThreadID, c.ID, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type markReadRequest struct {
	ThreadID string `json:"threadId" validate:"required"`
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	changed, err := h.chat.MarkThreadRead(r.Context(), req.ThreadID, c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "messagesUpdated": changed})
}

func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if _, ok := requireSelf(w, r, userID); !ok {
		return
	}
	n, err := h.chat.UnreadCountForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// Stream upgrades to a websocket that receives the caller's chat and job events.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.hub.Serve(w, r, c.ID); err != nil {
		// the upgrader has already answered the client
		logger.Warn("websocket upgrade failed", slog.String("user_id", c.ID), slog.Any("err", err))
	}
}
