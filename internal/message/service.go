package message

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gpconnect/internal/common"
	"gpconnect/internal/dbmongo"
)

// MessageService orchestrates 1:1 messaging: membership checks against the
// conversation's participant pair, durable append, summary update and the
// post-persistence broadcast.
type MessageService interface {
	GetOrCreateConversation(ctx context.Context, userID, otherUserID string) (*ConversationView, error)
	ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error)
	SendMessage(ctx context.Context, conversationID, senderID, content, messageType string) (*DirectMessageView, error)
	ListMessages(ctx context.Context, conversationID, userID string, page, limit int64) ([]*DirectMessageView, error)
	MarkRead(ctx context.Context, conversationID, userID string) error
	DeleteMessage(ctx context.Context, messageID, userID string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// ConversationView is a conversation from one participant's point of view.
type ConversationView struct {
	ID            string             `json:"_id"`
	OtherUser     *common.Profile    `json:"otherUser"`
	LastMessage   *DirectMessageView `json:"lastMessage,omitempty"`
	LastMessageAt time.Time          `json:"lastMessageAt"`
}

// ConversationSummary is a ConversationView plus the unread counter shown in
// the conversation list.
type ConversationSummary struct {
	ConversationView
	UnreadCount int64 `json:"unreadCount"`
}

// DirectMessageView is a direct message with its sender expanded.
type DirectMessageView struct {
	ID             string          `json:"_id"`
	ConversationID string          `json:"conversationId"`
	Sender         *common.Profile `json:"sender"`
	Content        string          `json:"content"`
	MessageType    string          `json:"messageType"`
	IsRead         bool            `json:"isRead"`
	ReadAt         *time.Time      `json:"readAt,omitempty"`
	IsEdited       bool            `json:"isEdited"`
	EditedAt       *time.Time      `json:"editedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

const (
	defaultPage  = 1
	defaultLimit = 50
)

type messageService struct {
	repo     Repository
	identity common.IdentityDirectory
	hub      common.Broadcaster
}

func NewMessageService(repo Repository, identity common.IdentityDirectory, hub common.Broadcaster) MessageService {
	return &messageService{repo: repo, identity: identity, hub: hub}
}

func (s *messageService) GetOrCreateConversation(ctx context.Context, userID, otherUserID string) (*ConversationView, error) {
	if userID == otherUserID {
		return nil, common.ErrSelfConversation
	}

	// The other end must exist in the identity directory before a
	// conversation is created for the pair.
	otherUser, err := s.identity.GetUser(ctx, otherUserID)
	if err != nil {
		return nil, err
	}

	conv, err := s.repo.GetOrCreateConversation(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}

	view := &ConversationView{
		ID:            conv.ID.Hex(),
		OtherUser:     otherUser,
		LastMessageAt: conv.LastMessageAt,
	}
	if conv.LastMessageID != nil {
		if msg, err := s.repo.GetMessage(ctx, *conv.LastMessageID); err == nil {
			view.LastMessage = s.toMessageView(ctx, msg)
		}
	}
	return view, nil
}

func (s *messageService) ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	conversations, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(conversations))
	for _, conv := range conversations {
		otherIDs = append(otherIDs, otherParticipant(conv, userID))
	}
	profiles, err := s.identity.GetUsers(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]*ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		otherID := otherParticipant(conv, userID)
		other := profiles[otherID]
		if other == nil {
			other = &common.Profile{ID: otherID}
		}

		summary := &ConversationSummary{
			ConversationView: ConversationView{
				ID:            conv.ID.Hex(),
				OtherUser:     other,
				LastMessageAt: conv.LastMessageAt,
			},
		}
		if conv.LastMessageID != nil {
			if msg, err := s.repo.GetMessage(ctx, *conv.LastMessageID); err == nil {
				summary.LastMessage = s.toMessageView(ctx, msg)
			}
		}
		if n, err := s.repo.CountUnread(ctx, conv.ID, userID); err == nil {
			summary.UnreadCount = n
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *messageService) SendMessage(ctx context.Context, conversationID, senderID, content, messageType string) (*DirectMessageView, error) {
	conv, err := s.authorizedConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.ErrEmptyContent
	}
	if messageType == "" {
		messageType = dbmongo.MessageTypeText
	}
	if !dbmongo.ValidMessageType(messageType) {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidType, messageType)
	}

	msg := &dbmongo.DirectMessage{
		ConversationID: conv.ID,
		Sender:         senderID,
		Content:        content,
		MessageType:    messageType,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	// Summary update is read-modify-write, last-writer-wins; the message
	// order clients see is always re-derived from createdAt.
	if err := s.repo.UpdateLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		return nil, err
	}

	view := s.toMessageView(ctx, msg)
	s.hub.Broadcast(common.ConversationRoom(conversationID), common.EventNewMessage, view)
	return view, nil
}

func (s *messageService) ListMessages(ctx context.Context, conversationID, userID string, page, limit int64) ([]*DirectMessageView, error) {
	conv, err := s.authorizedConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}

	messages, err := s.repo.ListMessages(ctx, conv.ID, page, limit)
	if err != nil {
		return nil, err
	}

	// Fetched most-recent-first for paging; reading a conversation marks
	// the other participant's messages read.
	if _, err := s.repo.MarkRead(ctx, conv.ID, userID); err != nil {
		return nil, err
	}

	senderIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.Sender)
	}
	profiles, err := s.identity.GetUsers(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological display order.
	views := make([]*DirectMessageView, len(messages))
	for i, m := range messages {
		sender := profiles[m.Sender]
		if sender == nil {
			sender = &common.Profile{ID: m.Sender}
		}
		views[len(messages)-1-i] = &DirectMessageView{
			ID:             m.ID.Hex(),
			ConversationID: m.ConversationID.Hex(),
			Sender:         sender,
			Content:        m.Content,
			MessageType:    m.MessageType,
			IsRead:         m.IsRead,
			ReadAt:         m.ReadAt,
			IsEdited:       m.IsEdited,
			EditedAt:       m.EditedAt,
			CreatedAt:      m.CreatedAt,
		}
	}
	return views, nil
}

func (s *messageService) MarkRead(ctx context.Context, conversationID, userID string) error {
	conv, err := s.authorizedConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	_, err = s.repo.MarkRead(ctx, conv.ID, userID)
	return err
}

func (s *messageService) DeleteMessage(ctx context.Context, messageID, userID string) error {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("message not found or unauthorized: %w", common.ErrNotFound)
	}
	return s.repo.DeleteMessage(ctx, oid, userID)
}

func (s *messageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnreadTotal(ctx, userID)
}

// authorizedConversation loads the conversation and verifies the caller is a
// participant and the conversation is active. Everything else reports the
// same conversation-not-found error, so participation is never revealed.
func (s *messageService) authorizedConversation(ctx context.Context, conversationID, userID string) (*dbmongo.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive || !isParticipant(conv, userID) {
		return nil, fmt.Errorf("conversation not found: %w", common.ErrNotFound)
	}
	return conv, nil
}

func (s *messageService) toMessageView(ctx context.Context, m *dbmongo.DirectMessage) *DirectMessageView {
	sender, err := s.identity.GetUser(ctx, m.Sender)
	if err != nil {
		sender = &common.Profile{ID: m.Sender}
	}
	return &DirectMessageView{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID.Hex(),
		Sender:         sender,
		Content:        m.Content,
		MessageType:    m.MessageType,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
		CreatedAt:      m.CreatedAt,
	}
}

func isParticipant(conv *dbmongo.Conversation, userID string) bool {
	for _, p := range conv.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func otherParticipant(conv *dbmongo.Conversation, userID string) string {
	for _, p := range conv.Participants {
		if p != userID {
			return p
		}
	}
	return userID
}
