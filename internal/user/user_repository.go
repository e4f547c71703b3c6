package user

import (
	"context"

	"gorm.io/gorm"

	"gpconnect/internal/dbmysql"
)

// UserRepository is the read-only access the messaging core has to the
// identity directory. Registration and profile mutation live in the auth
// service, not here.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID uint64) (*dbmysql.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []uint64) ([]*dbmysql.User, error)
	GetUserByEnrollment(ctx context.Context, enrollment string) (*dbmysql.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetUserByID(ctx context.Context, userID uint64) (*dbmysql.User, error) {
	var user dbmysql.User
	err := r.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, "active").First(&user).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) GetUsersByIDs(ctx context.Context, userIDs []uint64) ([]*dbmysql.User, error) {
	var users []*dbmysql.User
	err := r.db.WithContext(ctx).Where("user_id IN ? AND status = ?", userIDs, "active").Find(&users).Error
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) GetUserByEnrollment(ctx context.Context, enrollment string) (*dbmysql.User, error) {
	var user dbmysql.User
	err := r.db.WithContext(ctx).Where("enrollment = ? AND status = ?", enrollment, "active").First(&user).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}
