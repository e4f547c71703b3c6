package community

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gpconnect/internal/common"
	"gpconnect/internal/dbmongo"
)

// CommunityService orchestrates the membership store, the message log and
// the broadcast layer: authorize, mutate, broadcast the post-mutation state,
// respond. Broadcast happens only after confirmed persistence.
type CommunityService interface {
	ListCommunities(ctx context.Context) ([]*CommunityView, error)
	GetCommunity(ctx context.Context, communityID string) (*CommunityView, error)
	CreateCommunity(ctx context.Context, name, description, avatar, createdBy string) (*CommunityView, error)
	Join(ctx context.Context, communityID, userID string) (*MemberUpdate, error)
	Leave(ctx context.Context, communityID, userID string) (*MemberUpdate, error)
	SendMessage(ctx context.Context, communityID, senderID, text string) (*MessageView, error)
	ListMessages(ctx context.Context, communityID, userID string) ([]*MessageView, error)
}

// MemberUpdate is the post-mutation membership state broadcast after every
// join/leave, and returned to the caller.
type MemberUpdate struct {
	Members      []string `json:"members"`
	MembersCount int      `json:"membersCount"`
}

// MessageView is a community message with its sender expanded for display.
type MessageView struct {
	ID        string          `json:"_id"`
	Sender    *common.Profile `json:"sender"`
	Text      string          `json:"text"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CommunityView is a community with member profiles expanded.
type CommunityView struct {
	ID           string            `json:"_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Avatar       string            `json:"avatar"`
	Members      []*common.Profile `json:"members"`
	MembersCount int               `json:"membersCount"`
	CreatedBy    *common.Profile   `json:"createdBy,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type communityService struct {
	repo     Repository
	identity common.IdentityDirectory
	hub      common.Broadcaster
}

func NewCommunityService(repo Repository, identity common.IdentityDirectory, hub common.Broadcaster) CommunityService {
	return &communityService{repo: repo, identity: identity, hub: hub}
}

func (s *communityService) ListCommunities(ctx context.Context) ([]*CommunityView, error) {
	communities, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*CommunityView, 0, len(communities))
	for _, c := range communities {
		view, err := s.toView(ctx, c)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *communityService) GetCommunity(ctx context.Context, communityID string) (*CommunityView, error) {
	c, err := s.repo.GetByID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, c)
}

func (s *communityService) CreateCommunity(ctx context.Context, name, description, avatar, createdBy string) (*CommunityView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("community name: %w", common.ErrEmptyContent)
	}
	if avatar == "" {
		avatar = "🌐"
	}

	c := &dbmongo.Community{
		Name:        name,
		Description: description,
		Avatar:      avatar,
		CreatedBy:   createdBy,
		// The creator is implicitly a member at creation.
		Members: []string{createdBy},
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.toView(ctx, c)
}

func (s *communityService) Join(ctx context.Context, communityID, userID string) (*MemberUpdate, error) {
	c, err := s.repo.AddMember(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}

	update := &MemberUpdate{Members: c.Members, MembersCount: len(c.Members)}
	s.hub.Broadcast(common.CommunityRoom(communityID), common.EventMemberUpdate, update)
	return update, nil
}

func (s *communityService) Leave(ctx context.Context, communityID, userID string) (*MemberUpdate, error) {
	c, err := s.repo.RemoveMember(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}

	update := &MemberUpdate{Members: c.Members, MembersCount: len(c.Members)}
	s.hub.Broadcast(common.CommunityRoom(communityID), common.EventMemberUpdate, update)
	return update, nil
}

func (s *communityService) SendMessage(ctx context.Context, communityID, senderID, text string) (*MessageView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, common.ErrEmptyContent
	}

	msg := &dbmongo.CommunityMessage{
		ID:        primitive.NewObjectID(),
		Sender:    senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	// Membership is a precondition of the append itself; see repository.
	if err := s.repo.AppendMessage(ctx, communityID, msg); err != nil {
		return nil, err
	}

	sender, err := s.identity.GetUser(ctx, senderID)
	if err != nil {
		// The message is persisted; a failed profile expansion must not
		// hide it. Fall back to the bare id.
		sender = &common.Profile{ID: senderID}
	}

	view := &MessageView{
		ID:        msg.ID.Hex(),
		Sender:    sender,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
	s.hub.Broadcast(common.CommunityRoom(communityID), common.EventCommunityMessage, view)
	return view, nil
}

func (s *communityService) ListMessages(ctx context.Context, communityID, userID string) ([]*MessageView, error) {
	messages, c, err := s.repo.ListMessages(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if !contains(c.Members, userID) {
		return nil, fmt.Errorf("must be a member to view messages: %w", common.ErrForbidden)
	}

	// Oldest to newest. Array order is insertion order, which breaks ties
	// for equal timestamps; the sort is stable so that order survives.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	senderIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.Sender)
	}
	profiles, err := s.identity.GetUsers(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*MessageView, 0, len(messages))
	for _, m := range messages {
		sender := profiles[m.Sender]
		if sender == nil {
			sender = &common.Profile{ID: m.Sender}
		}
		views = append(views, &MessageView{
			ID:        m.ID.Hex(),
			Sender:    sender,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		})
	}
	return views, nil
}

func (s *communityService) toView(ctx context.Context, c *dbmongo.Community) (*CommunityView, error) {
	ids := append([]string{}, c.Members...)
	ids = append(ids, c.CreatedBy)
	profiles, err := s.identity.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	members := make([]*common.Profile, 0, len(c.Members))
	for _, id := range c.Members {
		if p := profiles[id]; p != nil {
			members = append(members, p)
		} else {
			members = append(members, &common.Profile{ID: id})
		}
	}

	return &CommunityView{
		ID:           c.ID.Hex(),
		Name:         c.Name,
		Description:  c.Description,
		Avatar:       c.Avatar,
		Members:      members,
		MembersCount: len(c.Members),
		CreatedBy:    profiles[c.CreatedBy],
		CreatedAt:    c.CreatedAt,
	}, nil
}

func contains(members []string, userID string) bool {
	for _, m := range members {
		if m == userID {
			return true
		}
	}
	return false
}
