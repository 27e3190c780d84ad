package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Notification struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	Kind      string         `gorm:"not null;column:kind" json:"kind"`
	Title     string         `gorm:"column:title" json:"title"`
	Body      string         `gorm:"column:body" json:"body"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	Read      bool           `gorm:"not null;default:false;column:read" json:"read"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
