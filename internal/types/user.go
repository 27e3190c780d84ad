package types

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

type User struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email            string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password         string    `gorm:"not null;column:password" json:"-"`
	FirstName        string    `gorm:"not null;column:first_name" json:"first_name"`
	LastName         string    `gorm:"not null;column:last_name" json:"last_name"`
	IdentityNumber   string    `gorm:"uniqueIndex;column:identity_number" json:"identity_number"`
	Role             UserRole  `gorm:"not null;default:'USER';column:role" json:"role"`
	DocumentVerified bool      `gorm:"not null;default:false;column:document_verified" json:"document_verified"`
	PushToken        string    `gorm:"column:push_token" json:"push_token,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
