package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"gpconnect/internal/common"
	"gpconnect/internal/dbmysql"
)

// Service exposes the identity directory to the messaging core: profile
// lookups plus token validation. Implements common.IdentityDirectory and
// common.TokenValidator.
type Service struct {
	repo UserRepository
}

func NewService(repo UserRepository) *Service {
	return &Service{repo: repo}
}

// GetUser resolves a user id to its display profile.
func (s *Service) GetUser(ctx context.Context, id string) (*common.Profile, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return nil, common.ErrNotFound
	}

	u, err := s.repo.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}

	return toProfile(u), nil
}

// GetUsers resolves a batch of ids in one query. Ids that don't resolve are
// simply absent from the result; callers render those senders as unknown.
func (s *Service) GetUsers(ctx context.Context, ids []string) (map[string]*common.Profile, error) {
	uids := make([]uint64, 0, len(ids))
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		uid, err := parseUserID(id)
		if err != nil || seen[uid] {
			continue
		}
		seen[uid] = true
		uids = append(uids, uid)
	}

	profiles := make(map[string]*common.Profile, len(uids))
	if len(uids) == 0 {
		return profiles, nil
	}

	users, err := s.repo.GetUsersByIDs(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("identity batch lookup failed: %w", err)
	}

	for _, u := range users {
		p := toProfile(u)
		profiles[p.ID] = p
	}

	return profiles, nil
}

// GetUserByEnrollment resolves an enrollment number to a profile, so a
// client can start a conversation from an enrollment number alone.
func (s *Service) GetUserByEnrollment(ctx context.Context, enrollment string) (*common.Profile, error) {
	u, err := s.repo.GetUserByEnrollment(ctx, enrollment)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}

	return toProfile(u), nil
}

// ValidateToken checks the opaque identity token and returns the user id it
// carries. Implements common.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims, err := common.ValidToken(tokenString)
	if err != nil {
		return "", common.ErrUnauthenticated
	}
	return strconv.FormatUint(claims.UserID, 10), nil
}

func toProfile(u *dbmysql.User) *common.Profile {
	return &common.Profile{
		ID:          strconv.FormatUint(u.UserID, 10),
		DisplayName: u.FullName,
		AvatarRef:   u.ProfilePic,
		Enrollment:  u.Enrollment,
	}
}

func parseUserID(id string) (uint64, error) {
	return strconv.ParseUint(id, 10, 64)
}
