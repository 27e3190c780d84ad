package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentType string

const (
	DocumentTypeDrivingLicense DocumentType = "DRIVING_LICENSE"
	DocumentTypeIdentityCard   DocumentType = "IDENTITY_CARD"
	DocumentTypePassport       DocumentType = "PASSPORT"
)

func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(s) {
	case DocumentTypeDrivingLicense, DocumentTypeIdentityCard, DocumentTypePassport:
		return DocumentType(s), true
	}
	return "", false
}

type DocumentFace string

const (
	DocumentFaceFront DocumentFace = "FRONT"
	DocumentFaceBack  DocumentFace = "BACK"
)

func ParseDocumentFace(s string) (DocumentFace, bool) {
	switch DocumentFace(s) {
	case DocumentFaceFront, DocumentFaceBack:
		return DocumentFace(s), true
	}
	return "", false
}

type DocumentStatus string

const (
	DocumentStatusPending     DocumentStatus = "PENDING"
	DocumentStatusApproved    DocumentStatus = "APPROVED"
	DocumentStatusRejected    DocumentStatus = "REJECTED"
	DocumentStatusNeedsReview DocumentStatus = "NEEDS_REVIEW"
)

// ExtractedFields is the structured OCR output persisted on the document
// row once processing finishes. Absent fields stay empty.
type ExtractedFields struct {
	Name           string `json:"name,omitempty"`
	Surname        string `json:"surname,omitempty"`
	IdentityNumber string `json:"identity_number,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
	PassportNumber string `json:"passport_number,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
}

type Document struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	Type            DocumentType   `gorm:"not null;column:type;index:idx_documents_user_type_face" json:"type"`
	Face            DocumentFace   `gorm:"column:face;index:idx_documents_user_type_face" json:"face,omitempty"`
	Status          DocumentStatus `gorm:"not null;default:'PENDING';column:status;index" json:"status"`
	ImageBase64     string         `gorm:"column:image_base64;type:text" json:"-"`
	FileName        string         `gorm:"column:file_name" json:"file_name,omitempty"`
	FileType        string         `gorm:"column:file_type" json:"file_type,omitempty"`
	FileSize        int64          `gorm:"column:file_size" json:"file_size,omitempty"`
	OcrConfidence   *float64       `gorm:"column:ocr_confidence" json:"ocr_confidence,omitempty"`
	Extracted       datatypes.JSON `gorm:"column:extracted;type:jsonb" json:"extracted,omitempty"`
	RawText         string         `gorm:"column:raw_text;type:text" json:"-"`
	AutoApproved    bool           `gorm:"not null;default:false;column:auto_approved" json:"auto_approved"`
	RejectionReason string         `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID     `gorm:"type:uuid;column:reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Document) TableName() string { return "documents" }

// ExtractedFields decodes the jsonb column. A missing or malformed column
// yields the zero value.
func (d *Document) ExtractedFields() ExtractedFields {
	var out ExtractedFields
	if len(d.Extracted) == 0 {
		return out
	}
	_ = json.Unmarshal(d.Extracted, &out)
	return out
}
