package ws

import (
	"encoding/json"
	"log"

	"gpconnect/internal/common"
)

// Envelope is the wire shape of every broadcast: event name plus the
// post-mutation state payload.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type subscription struct {
	session *Session
	room    string
}

type outbound struct {
	room string
	data []byte
}

// Hub owns the process-wide subscription table: which sessions are in which
// room. All mutation happens inside the run loop, so the table is never
// touched from two goroutines; the channels are the only way in. The hub has
// an explicit lifecycle and is handed around as a dependency, never reached
// through a global.
type Hub struct {
	sessions     map[*Session]bool
	rooms        map[string]map[*Session]bool
	sessionRooms map[*Session]map[string]bool

	register    chan *Session
	unregister  chan *Session
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan outbound

	quit chan struct{}
	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[*Session]bool),
		rooms:        make(map[string]map[*Session]bool),
		sessionRooms: make(map[*Session]map[string]bool),
		register:     make(chan *Session),
		unregister:   make(chan *Session),
		subscribe:    make(chan subscription),
		unsubscribe:  make(chan subscription),
		broadcast:    make(chan outbound, 64),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the run loop.
func (h *Hub) Start() {
	go h.run()
}

// Stop shuts the run loop down and closes every session's send channel.
func (h *Hub) Stop() {
	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case s := <-h.register:
			h.sessions[s] = true
			log.Printf("session %s connected (user %s), %d online", s.ID, s.UserID, len(h.sessions))

		case s := <-h.unregister:
			if h.removeSession(s) {
				close(s.send)
			}

		case sub := <-h.subscribe:
			if !h.sessions[sub.session] {
				break
			}
			if h.rooms[sub.room] == nil {
				h.rooms[sub.room] = make(map[*Session]bool)
			}
			h.rooms[sub.room][sub.session] = true
			if h.sessionRooms[sub.session] == nil {
				h.sessionRooms[sub.session] = make(map[string]bool)
			}
			h.sessionRooms[sub.session][sub.room] = true

		case sub := <-h.unsubscribe:
			h.removeFromRoom(sub.session, sub.room)

		case out := <-h.broadcast:
			for s := range h.rooms[out.room] {
				select {
				case s.send <- out.data:
				default:
					// Slow consumer; drop the session rather than
					// block the whole room.
					if h.removeSession(s) {
						close(s.send)
					}
				}
			}

		case <-h.quit:
			for s := range h.sessions {
				close(s.send)
			}
			h.sessions = make(map[*Session]bool)
			h.rooms = make(map[string]map[*Session]bool)
			h.sessionRooms = make(map[*Session]map[string]bool)
			return
		}
	}
}

// Broadcast delivers the event to every session subscribed to the room.
// Fire-and-forget: no persistence, no delivery guarantee. Implements
// common.Broadcaster.
func (h *Hub) Broadcast(roomID, event string, payload interface{}) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		log.Printf("broadcast marshal error for %s: %v", event, err)
		return
	}

	select {
	case h.broadcast <- outbound{room: roomID, data: data}:
	case <-h.quit:
	}
}

// Register adds a connected session to the hub.
func (h *Hub) Register(s *Session) {
	select {
	case h.register <- s:
	case <-h.quit:
	}
}

// Unregister drops a session and all its subscriptions. Disconnection is
// terminal: a reconnecting client gets a fresh session and must re-join its
// rooms.
func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.quit:
	}
}

// JoinRoom subscribes the session to a room. Idempotent.
func (h *Hub) JoinRoom(s *Session, roomID string) {
	select {
	case h.subscribe <- subscription{session: s, room: roomID}:
	case <-h.quit:
	}
}

// LeaveRoom removes the session from a room. Idempotent.
func (h *Hub) LeaveRoom(s *Session, roomID string) {
	select {
	case h.unsubscribe <- subscription{session: s, room: roomID}:
	case <-h.quit:
	}
}

func (h *Hub) removeSession(s *Session) bool {
	if !h.sessions[s] {
		return false
	}
	delete(h.sessions, s)
	for room := range h.sessionRooms[s] {
		h.removeFromRoom(s, room)
	}
	delete(h.sessionRooms, s)
	log.Printf("session %s disconnected, %d online", s.ID, len(h.sessions))
	return true
}

func (h *Hub) removeFromRoom(s *Session, room string) {
	if members := h.rooms[room]; members != nil {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms := h.sessionRooms[s]; rooms != nil {
		delete(rooms, room)
	}
}

var _ common.Broadcaster = (*Hub)(nil)
