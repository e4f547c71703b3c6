package common

import "fmt"

// Broadcast event names. Payload is always the post-mutation state, so a
// client converges from the latest event alone.
const (
	EventCommunityMessage = "community:message"
	EventMemberUpdate     = "community:memberUpdate"
	EventNewMessage       = "message:new"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
)

// CommunityRoom returns the broadcast room name for a community.
func CommunityRoom(communityID string) string {
	return fmt.Sprintf("community_%s", communityID)
}

// ConversationRoom returns the broadcast room name for a conversation.
func ConversationRoom(conversationID string) string {
	return fmt.Sprintf("conversation_%s", conversationID)
}
