package types

import (
	"time"

	"github.com/google/uuid"
)

type ConsentType string

const (
	ConsentTypeKVKK         ConsentType = "KVKK"
	ConsentTypeOpenConsent  ConsentType = "OPEN_CONSENT"
	ConsentTypeLocation     ConsentType = "LOCATION"
	ConsentTypeNotification ConsentType = "NOTIFICATION"
	ConsentTypeMarketing    ConsentType = "MARKETING"
)

func ParseConsentType(s string) (ConsentType, bool) {
	switch ConsentType(s) {
	case ConsentTypeKVKK, ConsentTypeOpenConsent, ConsentTypeLocation,
		ConsentTypeNotification, ConsentTypeMarketing:
		return ConsentType(s), true
	}
	return "", false
}

type ConsentStatus string

const (
	ConsentStatusGiven   ConsentStatus = "GIVEN"
	ConsentStatusRevoked ConsentStatus = "REVOKED"
)

// Consent is one accepted (or later revoked) legal text for a user.
// Revocation keeps the row and stamps revoked_at; the consent history
// is append-only.
type Consent struct {
	ID          uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID     `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	Type        ConsentType   `gorm:"not null;column:type" json:"type"`
	Status      ConsentStatus `gorm:"not null;default:'GIVEN';column:status" json:"status"`
	ConsentText string        `gorm:"column:consent_text" json:"consent_text,omitempty"`
	Version     string        `gorm:"column:version" json:"version,omitempty"`
	IPAddress   string        `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent   string        `gorm:"column:user_agent" json:"user_agent,omitempty"`
	GivenAt     time.Time     `gorm:"not null;default:now();column:given_at" json:"given_at"`
	RevokedAt   *time.Time    `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:now()" json:"updated_at"`
}

func (Consent) TableName() string {
	return "user_consents"
}

// Active reports whether this row still grants the consent.
func (c *Consent) Active() bool {
	return c.Status == ConsentStatusGiven && c.RevokedAt == nil
}
