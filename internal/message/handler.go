package message

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gpconnect/internal/common"
)

// Handler wires the direct-messaging routes to the service layer.
type Handler struct {
	service MessageService
}

func NewHandler(service MessageService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the messaging endpoints on the given router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/messages/conversations", h.listConversations).Methods(http.MethodGet)
	r.HandleFunc("/messages/conversations/{otherUserId}", h.getOrCreateConversation).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/messages/unread-count", h.unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/messages/{conversationId}", h.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{conversationId}", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{conversationId}/read", h.markRead).Methods(http.MethodPut)
	r.HandleFunc("/messages/message/{messageId}", h.deleteMessage).Methods(http.MethodDelete)
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	summaries, err := h.service.ListConversations(r.Context(), userID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, summaries)
}

func (h *Handler) getOrCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	view, err := h.service.GetOrCreateConversation(r.Context(), userID, mux.Vars(r)["otherUserId"])
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"conversation": view})
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)

	views, err := h.service.ListMessages(r.Context(), mux.Vars(r)["conversationId"], userID, page, limit)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	var req struct {
		Content     string `json:"content"`
		MessageType string `json:"messageType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, common.ErrEmptyContent)
		return
	}

	view, err := h.service.SendMessage(r.Context(), mux.Vars(r)["conversationId"], userID, req.Content, req.MessageType)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, view)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	if err := h.service.MarkRead(r.Context(), mux.Vars(r)["conversationId"], userID); err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "Messages marked as read"})
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	if err := h.service.DeleteMessage(r.Context(), mux.Vars(r)["messageId"], userID); err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	n, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]int64{"unreadCount": n})
}

func queryInt(r *http.Request, key string, def int64) int64 {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}
