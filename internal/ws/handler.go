package ws

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gpconnect/internal/common"
)

// Handler upgrades authenticated requests to websocket sessions.
type Handler struct {
	hub       *Hub
	validator common.TokenValidator
	upgrader  websocket.Upgrader
}

// NewHandler builds the websocket handler. Cross-origin upgrades are only
// accepted from allowedOrigin, the same origin the CORS layer allows;
// requests without an Origin header (non-browser clients) pass.
func NewHandler(hub *Hub, validator common.TokenValidator, allowedOrigin string) *Handler {
	return &Handler{
		hub:       hub,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeWS handles GET /ws. The identity token must be valid at connection
// time; the connection is refused otherwise.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		http.Error(w, "missing authentication token", http.StatusUnauthorized)
		return
	}

	userID, err := h.validator.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	session := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
	h.hub.Register(session)

	go session.writePump()
	go session.readPump()
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
