package services

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/types"
)

// ExtractionResult is the structured output of one OCR pass. Fields the
// extractor could not find stay empty.
type ExtractionResult struct {
	Confidence     float64
	IdentityNumber string
	FirstName      string
	LastName       string
	BirthDate      string
	ExpiryDate     string
	LicenseNumber  string
	PassportNumber string
	RawText        string
}

// TextExtractor turns an image of a declared document kind into an
// ExtractionResult. Implementations must honour ctx cancellation.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte, docType types.DocumentType) (*ExtractionResult, error)
}

var (
	identityNumberRe = regexp.MustCompile(`\b(\d{11})\b`)
	licenseNumberRe  = regexp.MustCompile(`\b([A-Z]{1,2}\d{6,8})\b`)
	passportNumberRe = regexp.MustCompile(`\b([A-Z]\d{8})\b`)
	dateRe           = regexp.MustCompile(`\d{2}[./]\d{2}[./]\d{4}`)

	// Driving licences print the surname on line "1." and the first name
	// on line "2.".
	surnameLineRe   = regexp.MustCompile(`(?m)^\s*1\.?\s*([\p{Lu}][\p{L} ]*[\p{L}])\s*$`)
	firstNameLineRe = regexp.MustCompile(`(?m)^\s*2\.?\s*([\p{Lu}][\p{L} ]*[\p{L}])\s*$`)

	// Generic fallback: two capitalised tokens separated by whitespace.
	genericNameRe = regexp.MustCompile(`(\p{Lu}\p{Ll}+)\s+(\p{Lu}\p{Ll}+)`)
)

// ParseDocumentText extracts the structured fields for a document kind
// from raw OCR text. Confidence is not set here.
func ParseDocumentText(text string, docType types.DocumentType) *ExtractionResult {
	res := &ExtractionResult{RawText: text}

	switch docType {
	case types.DocumentTypeDrivingLicense:
		if m := identityNumberRe.FindStringSubmatch(text); m != nil {
			res.IdentityNumber = m[1]
		}
		if m := licenseNumberRe.FindStringSubmatch(text); m != nil {
			res.LicenseNumber = m[1]
		}
		parseLicenseNames(text, res)
	case types.DocumentTypeIdentityCard:
		if m := identityNumberRe.FindStringSubmatch(text); m != nil {
			res.IdentityNumber = m[1]
		}
		parseGenericNames(text, res)
	case types.DocumentTypePassport:
		if m := passportNumberRe.FindStringSubmatch(text); m != nil {
			res.PassportNumber = m[1]
		}
		if m := identityNumberRe.FindStringSubmatch(text); m != nil {
			res.IdentityNumber = m[1]
		}
		parseGenericNames(text, res)
	}

	parseDates(text, res)
	return res
}

func parseLicenseNames(text string, res *ExtractionResult) {
	if m := surnameLineRe.FindStringSubmatch(text); m != nil {
		res.LastName = strings.TrimSpace(m[1])
	}
	if m := firstNameLineRe.FindStringSubmatch(text); m != nil {
		res.FirstName = strings.TrimSpace(m[1])
	}
	if res.FirstName == "" || res.LastName == "" {
		parseGenericNames(text, res)
	}
}

func parseGenericNames(text string, res *ExtractionResult) {
	m := genericNameRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	if res.FirstName == "" {
		res.FirstName = m[1]
	}
	if res.LastName == "" {
		res.LastName = m[2]
	}
}

// parseDates takes the first date in the text as the birth date and the
// second, when present, as the expiry date.
func parseDates(text string, res *ExtractionResult) {
	dates := dateRe.FindAllString(text, 2)
	if len(dates) > 0 {
		res.BirthDate = dates[0]
	}
	if len(dates) > 1 {
		res.ExpiryDate = dates[1]
	}
}

// TextConfidence scores OCR text quality into [0.6, 0.98]: longer text
// and recognisable identity/name/date patterns raise the score.
func TextConfidence(text string) float64 {
	confidence := 0.6
	if len(text) > 100 {
		confidence += 0.15
	}
	if len(text) > 200 {
		confidence += 0.1
	}
	if identityNumberRe.MatchString(text) {
		confidence += 0.1
	}
	if genericNameRe.MatchString(text) {
		confidence += 0.05
	}
	if dateRe.MatchString(text) {
		confidence += 0.05
	}
	if confidence > 0.98 {
		confidence = 0.98
	}
	return confidence
}

// Mock confidences sit inside the per-kind ranges observed from real
// extractions (licence 0.89-0.97, identity card 0.85-0.94, passport
// 0.91-0.98) and are fixed so tests can rely on them.
const (
	MockConfidenceDrivingLicense = 0.93
	MockConfidenceIdentityCard   = 0.89
	MockConfidencePassport       = 0.94
)

type mockExtractor struct {
	log *logger.Logger
}

// NewMockExtractor returns the deterministic extractor used when
// OCR_MOCK_ENABLED is set. It treats the payload as pre-extracted text
// when it is valid UTF-8 and runs the regular field parsing over it, so
// development and tests can drive the full pipeline without a vision
// call.
func NewMockExtractor(log *logger.Logger) TextExtractor {
	return &mockExtractor{log: log.With("service", "MockExtractor")}
}

func (m *mockExtractor) Extract(ctx context.Context, image []byte, docType types.DocumentType) (*ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := ""
	if utf8.Valid(image) {
		text = string(image)
	}

	res := ParseDocumentText(text, docType)
	switch docType {
	case types.DocumentTypeDrivingLicense:
		res.Confidence = MockConfidenceDrivingLicense
	case types.DocumentTypeIdentityCard:
		res.Confidence = MockConfidenceIdentityCard
	case types.DocumentTypePassport:
		res.Confidence = MockConfidencePassport
	default:
		res.Confidence = MockConfidenceIdentityCard
	}

	m.log.Debug("Mock extraction completed", "docType", docType, "confidence", res.Confidence)
	return res, nil
}
