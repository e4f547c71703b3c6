package dbmysql

import (
	"time"
)

// User is the identity-directory record. The messaging core consumes it
// read-only; registration, OTP verification and the follow graph are owned
// by the auth service.
type User struct {
	UserID     uint64 `gorm:"primaryKey;autoIncrement"`
	FullName   string `gorm:"size:100;not null"`
	Email      string `gorm:"size:255;uniqueIndex;not null"`
	Enrollment string `gorm:"size:7;uniqueIndex;not null"`
	Department string `gorm:"size:20"`
	Bio        string `gorm:"type:text"`
	ProfilePic string `gorm:"size:255"`
	IsVerified bool   `gorm:"default:false"`
	Status     string `gorm:"size:20;default:active"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
