package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"gpconnect/internal/common"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum message size allowed from peer.
)

// Session is one authenticated websocket connection. Its lifecycle is
// Connecting -> Authenticated -> Subscribed* -> Disconnected; disconnection
// is terminal and forgets every subscription.
type Session struct {
	ID     string
	UserID string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// clientEvent is what clients send over the socket: room membership changes
// and typing notifications.
type clientEvent struct {
	Event string `json:"event"`
	Data  struct {
		CommunityID    string `json:"communityId"`
		ConversationID string `json:"conversationId"`
	} `json:"data"`
}

// readPump pumps client events from the websocket connection to the hub.
func (s *Session) readPump() {
	defer func() {
		s.hub.Unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("session %s read error: %v", s.ID, err)
			}
			break
		}

		var evt clientEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			log.Printf("session %s sent malformed event: %v", s.ID, err)
			continue
		}
		s.dispatch(evt)
	}
}

// dispatch handles one client event. No per-room authorization happens
// here; the messaging service authorizes before anything is broadcast.
func (s *Session) dispatch(evt clientEvent) {
	switch evt.Event {
	case "joinCommunity":
		if evt.Data.CommunityID != "" {
			s.hub.JoinRoom(s, common.CommunityRoom(evt.Data.CommunityID))
		}
	case "leaveCommunity":
		if evt.Data.CommunityID != "" {
			s.hub.LeaveRoom(s, common.CommunityRoom(evt.Data.CommunityID))
		}
	case "joinConversation":
		if evt.Data.ConversationID != "" {
			s.hub.JoinRoom(s, common.ConversationRoom(evt.Data.ConversationID))
		}
	case "leaveConversation":
		if evt.Data.ConversationID != "" {
			s.hub.LeaveRoom(s, common.ConversationRoom(evt.Data.ConversationID))
		}
	case common.EventTypingStart, common.EventTypingStop:
		if evt.Data.ConversationID != "" {
			s.hub.Broadcast(common.ConversationRoom(evt.Data.ConversationID), evt.Event, map[string]string{
				"conversationId": evt.Data.ConversationID,
				"userId":         s.UserID,
			})
		}
	default:
		log.Printf("session %s sent unknown event %q", s.ID, evt.Event)
	}
}

// writePump pumps broadcasts from the hub to the websocket connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
