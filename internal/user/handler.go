package user

import (
	"net/http"

	"github.com/gorilla/mux"

	"gpconnect/internal/common"
)

// Handler exposes the identity directory lookups the messaging clients need.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the user lookup endpoints on the given router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/users/enrollment/{enrollment}", h.getByEnrollment).Methods(http.MethodGet)
}

func (h *Handler) getByEnrollment(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetUserByEnrollment(r.Context(), mux.Vars(r)["enrollment"])
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, profile)
}
