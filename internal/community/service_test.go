package community

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"

	"gpconnect/internal/common"
	commonmocks "gpconnect/internal/common/mocks"
	"gpconnect/internal/community/mocks"
	"gpconnect/internal/dbmongo"
)

func newServiceForTest(t *testing.T) (*gomock.Controller, *mocks.MockRepository, *commonmocks.MockIdentityDirectory, *commonmocks.MockBroadcaster, CommunityService) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	identity := commonmocks.NewMockIdentityDirectory(ctrl)
	hub := commonmocks.NewMockBroadcaster(ctrl)
	svc := NewCommunityService(repo, identity, hub)
	return ctrl, repo, identity, hub, svc
}

func TestCommunityService_Join(t *testing.T) {
	communityID := primitive.NewObjectID()

	tests := []struct {
		name        string
		mockSetup   func(repo *mocks.MockRepository, hub *commonmocks.MockBroadcaster)
		expectError error
		wantCount   int
	}{
		{
			name: "successful join broadcasts post-mutation member set",
			mockSetup: func(repo *mocks.MockRepository, hub *commonmocks.MockBroadcaster) {
				updated := &dbmongo.Community{ID: communityID, Members: []string{"1", "2"}}
				joined := repo.EXPECT().
					AddMember(gomock.Any(), communityID.Hex(), "2").
					Return(updated, nil).
					Times(1)
				hub.EXPECT().
					Broadcast(common.CommunityRoom(communityID.Hex()), common.EventMemberUpdate,
						&MemberUpdate{Members: []string{"1", "2"}, MembersCount: 2}).
					Times(1).
					After(joined)
			},
			wantCount: 2,
		},
		{
			name: "already a member",
			mockSetup: func(repo *mocks.MockRepository, hub *commonmocks.MockBroadcaster) {
				repo.EXPECT().
					AddMember(gomock.Any(), communityID.Hex(), "2").
					Return(nil, common.ErrAlreadyMember).
					Times(1)
				// No broadcast on failure.
			},
			expectError: common.ErrAlreadyMember,
		},
		{
			name: "community missing",
			mockSetup: func(repo *mocks.MockRepository, hub *commonmocks.MockBroadcaster) {
				repo.EXPECT().
					AddMember(gomock.Any(), communityID.Hex(), "2").
					Return(nil, common.ErrNotFound).
					Times(1)
			},
			expectError: common.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, repo, _, hub, svc := newServiceForTest(t)
			defer ctrl.Finish()
			tt.mockSetup(repo, hub)

			update, err := svc.Join(context.Background(), communityID.Hex(), "2")

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, update)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantCount, update.MembersCount)
			}
		})
	}
}

func TestCommunityService_Leave(t *testing.T) {
	communityID := primitive.NewObjectID()

	t.Run("successful leave broadcasts post-mutation member set", func(t *testing.T) {
		ctrl, repo, _, hub, svc := newServiceForTest(t)
		defer ctrl.Finish()

		left := repo.EXPECT().
			RemoveMember(gomock.Any(), communityID.Hex(), "2").
			Return(&dbmongo.Community{ID: communityID, Members: []string{"1"}}, nil).
			Times(1)
		hub.EXPECT().
			Broadcast(common.CommunityRoom(communityID.Hex()), common.EventMemberUpdate,
				&MemberUpdate{Members: []string{"1"}, MembersCount: 1}).
			Times(1).
			After(left)

		update, err := svc.Leave(context.Background(), communityID.Hex(), "2")
		require.NoError(t, err)
		assert.Equal(t, 1, update.MembersCount)
	})

	t.Run("leaving twice reports NotMember without broadcasting", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			RemoveMember(gomock.Any(), communityID.Hex(), "2").
			Return(nil, common.ErrNotMember).
			Times(1)

		_, err := svc.Leave(context.Background(), communityID.Hex(), "2")
		assert.ErrorIs(t, err, common.ErrNotMember)
	})
}

func TestCommunityService_SendMessage(t *testing.T) {
	communityID := primitive.NewObjectID()

	t.Run("empty text is rejected before touching the store", func(t *testing.T) {
		ctrl, _, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		_, err := svc.SendMessage(context.Background(), communityID.Hex(), "1", "   \n ")
		assert.ErrorIs(t, err, common.ErrEmptyContent)
	})

	t.Run("non-member append fails and nothing is broadcast", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			AppendMessage(gomock.Any(), communityID.Hex(), gomock.Any()).
			Return(common.ErrForbidden).
			Times(1)

		_, err := svc.SendMessage(context.Background(), communityID.Hex(), "9", "hi")
		assert.ErrorIs(t, err, common.ErrForbidden)
	})

	t.Run("successful send broadcasts after persistence with sender expanded", func(t *testing.T) {
		ctrl, repo, identity, hub, svc := newServiceForTest(t)
		defer ctrl.Finish()

		appended := repo.EXPECT().
			AppendMessage(gomock.Any(), communityID.Hex(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, id string, msg *dbmongo.CommunityMessage) error {
				assert.Equal(t, "hello", msg.Text) // trimmed
				assert.Equal(t, "1", msg.Sender)
				assert.WithinDuration(t, time.Now().UTC(), msg.CreatedAt, time.Second)
				return nil
			}).
			Times(1)
		identity.EXPECT().
			GetUser(gomock.Any(), "1").
			Return(&common.Profile{ID: "1", DisplayName: "Asha"}, nil).
			Times(1)
		hub.EXPECT().
			Broadcast(common.CommunityRoom(communityID.Hex()), common.EventCommunityMessage, gomock.Any()).
			Do(func(room, event string, payload interface{}) {
				view := payload.(*MessageView)
				assert.Equal(t, "hello", view.Text)
				assert.Equal(t, "Asha", view.Sender.DisplayName)
			}).
			Times(1).
			After(appended)

		view, err := svc.SendMessage(context.Background(), communityID.Hex(), "1", "  hello  ")
		require.NoError(t, err)
		assert.Equal(t, "hello", view.Text)
	})
}

func TestCommunityService_ListMessages(t *testing.T) {
	communityID := primitive.NewObjectID()
	now := time.Now().UTC()

	t.Run("non-member is forbidden", func(t *testing.T) {
		ctrl, repo, _, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		repo.EXPECT().
			ListMessages(gomock.Any(), communityID.Hex()).
			Return(nil, &dbmongo.Community{ID: communityID, Members: []string{"1"}}, nil).
			Times(1)

		_, err := svc.ListMessages(context.Background(), communityID.Hex(), "9")
		assert.ErrorIs(t, err, common.ErrForbidden)
	})

	t.Run("messages come back oldest to newest", func(t *testing.T) {
		ctrl, repo, identity, _, svc := newServiceForTest(t)
		defer ctrl.Finish()

		msgs := []dbmongo.CommunityMessage{
			{ID: primitive.NewObjectID(), Sender: "2", Text: "second", CreatedAt: now.Add(time.Minute)},
			{ID: primitive.NewObjectID(), Sender: "1", Text: "first", CreatedAt: now},
		}
		repo.EXPECT().
			ListMessages(gomock.Any(), communityID.Hex()).
			Return(msgs, &dbmongo.Community{ID: communityID, Members: []string{"1", "2"}}, nil).
			Times(1)
		identity.EXPECT().
			GetUsers(gomock.Any(), gomock.Any()).
			Return(map[string]*common.Profile{
				"1": {ID: "1", DisplayName: "Asha"},
				"2": {ID: "2", DisplayName: "Bilal"},
			}, nil).
			Times(1)

		views, err := svc.ListMessages(context.Background(), communityID.Hex(), "1")
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "first", views[0].Text)
		assert.Equal(t, "second", views[1].Text)
		assert.Equal(t, "Bilal", views[1].Sender.DisplayName)
	})
}

// Mirrors the scenario: B cannot post to a community they haven't joined,
// joins, posts, and the message shows up last in chronological order for A.
func TestCommunityService_JoinThenSendScenario(t *testing.T) {
	ctrl, repo, identity, hub, svc := newServiceForTest(t)
	defer ctrl.Finish()

	communityID := primitive.NewObjectID()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	// B is not a member yet: the conditional append rejects the write.
	repo.EXPECT().
		AppendMessage(gomock.Any(), communityID.Hex(), gomock.Any()).
		Return(common.ErrForbidden).
		Times(1)
	_, err := svc.SendMessage(ctx, communityID.Hex(), "2", "hi")
	assert.ErrorIs(t, err, common.ErrForbidden)

	// B joins.
	repo.EXPECT().
		AddMember(gomock.Any(), communityID.Hex(), "2").
		Return(&dbmongo.Community{ID: communityID, Members: []string{"1", "2"}}, nil).
		Times(1)
	hub.EXPECT().
		Broadcast(common.CommunityRoom(communityID.Hex()), common.EventMemberUpdate, gomock.Any()).
		Times(1)
	update, err := svc.Join(ctx, communityID.Hex(), "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, update.Members)

	// Now the send succeeds.
	var stored dbmongo.CommunityMessage
	repo.EXPECT().
		AppendMessage(gomock.Any(), communityID.Hex(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, id string, msg *dbmongo.CommunityMessage) error {
			stored = *msg
			return nil
		}).
		Times(1)
	identity.EXPECT().GetUser(gomock.Any(), "2").Return(&common.Profile{ID: "2"}, nil).Times(1)
	hub.EXPECT().
		Broadcast(common.CommunityRoom(communityID.Hex()), common.EventCommunityMessage, gomock.Any()).
		Times(1)
	_, err = svc.SendMessage(ctx, communityID.Hex(), "2", "hi")
	require.NoError(t, err)

	// A lists messages: B's message is the last entry in ascending order.
	history := []dbmongo.CommunityMessage{
		{ID: primitive.NewObjectID(), Sender: "1", Text: "welcome", CreatedAt: base},
		stored,
	}
	repo.EXPECT().
		ListMessages(gomock.Any(), communityID.Hex()).
		Return(history, &dbmongo.Community{ID: communityID, Members: []string{"1", "2"}}, nil).
		Times(1)
	identity.EXPECT().
		GetUsers(gomock.Any(), gomock.Any()).
		Return(map[string]*common.Profile{"1": {ID: "1"}, "2": {ID: "2"}}, nil).
		Times(1)

	views, err := svc.ListMessages(ctx, communityID.Hex(), "1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "hi", views[1].Text)
	assert.Equal(t, "2", views[1].Sender.ID)
}

func TestCommunityService_CreateCommunity(t *testing.T) {
	ctrl, repo, identity, _, svc := newServiceForTest(t)
	defer ctrl.Finish()

	repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, c *dbmongo.Community) error {
			// Creator is implicitly a member at creation.
			assert.Equal(t, []string{"7"}, c.Members)
			c.ID = primitive.NewObjectID()
			return nil
		}).
		Times(1)
	identity.EXPECT().
		GetUsers(gomock.Any(), gomock.Any()).
		Return(map[string]*common.Profile{"7": {ID: "7", DisplayName: "Creator"}}, nil).
		Times(1)

	view, err := svc.CreateCommunity(context.Background(), " Robotics Club ", "Build robots", "", "7")
	require.NoError(t, err)
	assert.Equal(t, "Robotics Club", view.Name)
	assert.Equal(t, 1, view.MembersCount)
	assert.Equal(t, "🌐", view.Avatar)
}
