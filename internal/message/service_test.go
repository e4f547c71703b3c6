package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"

	"gpconnect/internal/common"
	commonmocks "gpconnect/internal/common/mocks"
	"gpconnect/internal/dbmongo"
	"gpconnect/internal/message/mocks"
)

func newServiceForTest(t *testing.T) (*gomock.Controller, *mocks.MockRepository, *commonmocks.MockIdentityDirectory, *commonmocks.MockBroadcaster, MessageService) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	identity := commonmocks.NewMockIdentityDirectory(ctrl)
	hub := commonmocks.NewMockBroadcaster(ctrl)
	svc := NewMessageService(repo, identity, hub)
	return ctrl, repo, identity, hub, svc
}

func activeConversation(id primitive.ObjectID, participants ...string) *dbmongo.Conversation {
	return &dbmongo.Conversation{
		ID:           id,
		Participants: participants,
		IsActive:     true,
	}
}

func TestMessageService_GetOrCreateConversation(t *testing.T) {
	t.Run("self conversation is rejected", func(t *testing.T) {
		ctrl, _, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		_, err := svc.GetOrCreateConversation(context.Background(), "1", "1")
		assert.ErrorIs(t, err, common.ErrSelfConversation)
	})

	t.Run("other user must exist", func(t *testing.T) {
		ctrl, _, identity, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		identity.EXPECT().
			GetUser(gomock.Any(), "999").
			Return(nil, common.ErrNotFound).
			Times(1)

		_, err := svc.GetOrCreateConversation(context.Background(), "1", "999")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("same conversation regardless of which side asks", func(t *testing.T) {
		ctrl, repo, identity, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		convID := primitive.NewObjectID()
		conv := activeConversation(convID, "1", "2")

		identity.EXPECT().GetUser(gomock.Any(), "2").Return(&common.Profile{ID: "2", DisplayName: "Bilal"}, nil).Times(1)
		identity.EXPECT().GetUser(gomock.Any(), "1").Return(&common.Profile{ID: "1", DisplayName: "Asha"}, nil).Times(1)
		repo.EXPECT().GetOrCreateConversation(gomock.Any(), "1", "2").Return(conv, nil).Times(1)
		repo.EXPECT().GetOrCreateConversation(gomock.Any(), "2", "1").Return(conv, nil).Times(1)

		first, err := svc.GetOrCreateConversation(context.Background(), "1", "2")
		require.NoError(t, err)
		second, err := svc.GetOrCreateConversation(context.Background(), "2", "1")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Bilal", first.OtherUser.DisplayName)
		assert.Equal(t, "Asha", second.OtherUser.DisplayName)
	})
}

func TestMessageService_SendMessage(t *testing.T) {
	convID := primitive.NewObjectID()

	t.Run("non-participant sees conversation not found", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			GetConversation(gomock.Any(), convID.Hex()).
			Return(activeConversation(convID, "1", "2"), nil).
			Times(1)

		_, err := svc.SendMessage(context.Background(), convID.Hex(), "9", "hi", "")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("inactive conversation is hidden too", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		conv := activeConversation(convID, "1", "2")
		conv.IsActive = false
		repo.EXPECT().GetConversation(gomock.Any(), convID.Hex()).Return(conv, nil).Times(1)

		_, err := svc.SendMessage(context.Background(), convID.Hex(), "1", "hi", "")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("blank content is rejected after authorization", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			GetConversation(gomock.Any(), convID.Hex()).
			Return(activeConversation(convID, "1", "2"), nil).
			Times(1)

		_, err := svc.SendMessage(context.Background(), convID.Hex(), "1", "  \t ", "")
		assert.ErrorIs(t, err, common.ErrEmptyContent)
	})

	t.Run("unknown message type is rejected", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			GetConversation(gomock.Any(), convID.Hex()).
			Return(activeConversation(convID, "1", "2"), nil).
			Times(1)

		_, err := svc.SendMessage(context.Background(), convID.Hex(), "1", "hi", "video")
		assert.ErrorIs(t, err, common.ErrInvalidType)
	})

	t.Run("send persists, updates the summary, then broadcasts", func(t *testing.T) {
		ctrl, repo, identity, hub, svc := newServiceForTest(t)
		defer ctrl.Finish()

		msgID := primitive.NewObjectID()
		repo.EXPECT().
			GetConversation(gomock.Any(), convID.Hex()).
			Return(activeConversation(convID, "1", "2"), nil).
			Times(1)
		inserted := repo.EXPECT().
			InsertMessage(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, msg *dbmongo.DirectMessage) error {
				assert.Equal(t, "hello", msg.Content) // trimmed
				assert.Equal(t, dbmongo.MessageTypeText, msg.MessageType)
				assert.False(t, msg.IsRead)
				msg.ID = msgID
				return nil
			}).
			Times(1)
		summarized := repo.EXPECT().
			UpdateLastMessage(gomock.Any(), convID, msgID, gomock.Any()).
			Return(nil).
			Times(1).
			After(inserted)
		identity.EXPECT().
			GetUser(gomock.Any(), "1").
			Return(&common.Profile{ID: "1", DisplayName: "Asha"}, nil).
			Times(1)
		hub.EXPECT().
			Broadcast(common.ConversationRoom(convID.Hex()), common.EventNewMessage, gomock.Any()).
			Do(func(room, event string, payload interface{}) {
				view := payload.(*DirectMessageView)
				assert.Equal(t, msgID.Hex(), view.ID)
				assert.Equal(t, "hello", view.Content)
			}).
			Times(1).
			After(summarized)

		view, err := svc.SendMessage(context.Background(), convID.Hex(), "1", " hello ", "")
		require.NoError(t, err)
		assert.Equal(t, "hello", view.Content)
		assert.Equal(t, "Asha", view.Sender.DisplayName)
	})

	t.Run("failed insert broadcasts nothing", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			GetConversation(gomock.Any(), convID.Hex()).
			Return(activeConversation(convID, "1", "2"), nil).
			Times(1)
		repo.EXPECT().
			InsertMessage(gomock.Any(), gomock.Any()).
			Return(errors.New("write concern error")).
			Times(1)

		_, err := svc.SendMessage(context.Background(), convID.Hex(), "1", "hello", "")
		assert.Error(t, err)
	})
}

func TestMessageService_ListMessages(t *testing.T) {
	convID := primitive.NewObjectID()
	now := time.Now().UTC()

	t.Run("page comes back chronological and marks unread as read", func(t *testing.T) {
		ctrl, repo, identity, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		// Store order is most-recent-first for paging.
		stored := []*dbmongo.DirectMessage{
			{ID: primitive.NewObjectID(), ConversationID: convID, Sender: "2", Content: "newest", CreatedAt: now},
			{ID: primitive.NewObjectID(), ConversationID: convID, Sender: "1", Content: "oldest", CreatedAt: now.Add(-time.Minute)},
		}

		repo.EXPECT().
			GetConversation(gomock.Any(), convID.Hex()).
			Return(activeConversation(convID, "1", "2"), nil).
			Times(1)
		fetched := repo.EXPECT().
			ListMessages(gomock.Any(), convID, int64(1), int64(50)).
			Return(stored, nil).
			Times(1)
		repo.EXPECT().
			MarkRead(gomock.Any(), convID, "1").
			Return(int64(1), nil).
			Times(1).
			After(fetched)
		identity.EXPECT().
			GetUsers(gomock.Any(), gomock.Any()).
			Return(map[string]*common.Profile{"1": {ID: "1"}, "2": {ID: "2"}}, nil).
			Times(1)

		views, err := svc.ListMessages(context.Background(), convID.Hex(), "1", 0, 0)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "oldest", views[0].Content)
		assert.Equal(t, "newest", views[1].Content)
	})

	t.Run("outsider cannot read the history", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			GetConversation(gomock.Any(), convID.Hex()).
			Return(activeConversation(convID, "1", "2"), nil).
			Times(1)

		_, err := svc.ListMessages(context.Background(), convID.Hex(), "9", 1, 50)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestMessageService_MarkRead(t *testing.T) {
	convID := primitive.NewObjectID()

	t.Run("repeat calls are harmless", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			GetConversation(gomock.Any(), convID.Hex()).
			Return(activeConversation(convID, "1", "2"), nil).
			Times(2)
		gomock.InOrder(
			repo.EXPECT().MarkRead(gomock.Any(), convID, "1").Return(int64(3), nil),
			repo.EXPECT().MarkRead(gomock.Any(), convID, "1").Return(int64(0), nil),
		)

		require.NoError(t, svc.MarkRead(context.Background(), convID.Hex(), "1"))
		require.NoError(t, svc.MarkRead(context.Background(), convID.Hex(), "1"))
	})
}

func TestMessageService_DeleteMessage(t *testing.T) {
	t.Run("malformed id reports not found", func(t *testing.T) {
		ctrl, _, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		err := svc.DeleteMessage(context.Background(), "not-a-hex-id", "1")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("only the sender can delete", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		msgID := primitive.NewObjectID()
		repo.EXPECT().
			DeleteMessage(gomock.Any(), msgID, "2").
			Return(common.ErrNotFound).
			Times(1)

		err := svc.DeleteMessage(context.Background(), msgID.Hex(), "2")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestMessageService_ListConversations(t *testing.T) {
	ctrl, repo, identity, _, svc := newServiceForTest(t)
	defer ctrl.Finish()

	convID := primitive.NewObjectID()
	msgID := primitive.NewObjectID()
	now := time.Now().UTC()

	conv := activeConversation(convID, "1", "2")
	conv.LastMessageID = &msgID
	conv.LastMessageAt = now

	repo.EXPECT().
		ListConversations(gomock.Any(), "1").
		Return([]*dbmongo.Conversation{conv}, nil).
		Times(1)
	identity.EXPECT().
		GetUsers(gomock.Any(), []string{"2"}).
		Return(map[string]*common.Profile{"2": {ID: "2", DisplayName: "Bilal"}}, nil).
		Times(1)
	repo.EXPECT().
		GetMessage(gomock.Any(), msgID).
		Return(&dbmongo.DirectMessage{ID: msgID, ConversationID: convID, Sender: "2", Content: "ping", CreatedAt: now}, nil).
		Times(1)
	identity.EXPECT().
		GetUser(gomock.Any(), "2").
		Return(&common.Profile{ID: "2", DisplayName: "Bilal"}, nil).
		Times(1)
	repo.EXPECT().
		CountUnread(gomock.Any(), convID, "1").
		Return(int64(4), nil).
		Times(1)

	summaries, err := svc.ListConversations(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Bilal", summaries[0].OtherUser.DisplayName)
	assert.Equal(t, int64(4), summaries[0].UnreadCount)
	assert.Equal(t, "ping", summaries[0].LastMessage.Content)
}

func TestMessageService_UnreadCount(t *testing.T) {
	ctrl, repo, _, _, svc := newServiceForTest(t)
	defer ctrl.Finish()

	repo.EXPECT().CountUnreadTotal(gomock.Any(), "1").Return(int64(7), nil).Times(1)

	n, err := svc.UnreadCount(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
