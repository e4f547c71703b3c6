package community

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"gpconnect/internal/common"
)

// Handler wires the community routes to the service layer. All routes sit
// behind the auth middleware, so the user id is always in the context.
type Handler struct {
	service CommunityService
}

func NewHandler(service CommunityService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the community endpoints on the given router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/communities", h.listCommunities).Methods(http.MethodGet)
	r.HandleFunc("/communities", h.createCommunity).Methods(http.MethodPost)
	r.HandleFunc("/communities/{id}", h.getCommunity).Methods(http.MethodGet)
	r.HandleFunc("/communities/{id}/join", h.joinCommunity).Methods(http.MethodPost)
	r.HandleFunc("/communities/{id}/leave", h.leaveCommunity).Methods(http.MethodPost)
	r.HandleFunc("/communities/{id}/messages", h.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/communities/{id}/messages", h.sendMessage).Methods(http.MethodPost)
}

func (h *Handler) listCommunities(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListCommunities(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) getCommunity(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetCommunity(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) createCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Avatar      string `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, common.ErrEmptyContent)
		return
	}

	view, err := h.service.CreateCommunity(r.Context(), req.Name, req.Description, req.Avatar, userID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, view)
}

func (h *Handler) joinCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	update, err := h.service.Join(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, update)
}

func (h *Handler) leaveCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	update, err := h.service.Leave(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, update)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	views, err := h.service.ListMessages(r.Context(), mux.Vars(r)["id"], userID)
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
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, common.ErrEmptyContent)
		return
	}

	view, err := h.service.SendMessage(r.Context(), mux.Vars(r)["id"], userID, req.Text)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, view)
}
