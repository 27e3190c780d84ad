package services

import (
	"context"
	"testing"

	"github.com/rentesla/mobile-backend/internal/types"
)

const licenseText = `TURKIYE CUMHURIYETI
SURUCU BELGESI
1. YILMAZ
2. MEHMET
3. 01.01.1990
12345678901
A1234567
4b. 15.06.2030`

func TestParseDocumentTextDrivingLicense(t *testing.T) {
	res := ParseDocumentText(licenseText, types.DocumentTypeDrivingLicense)

	if res.IdentityNumber != "12345678901" {
		t.Errorf("IdentityNumber = %q, want 12345678901", res.IdentityNumber)
	}
	if res.LicenseNumber != "A1234567" {
		t.Errorf("LicenseNumber = %q, want A1234567", res.LicenseNumber)
	}
	if res.LastName != "YILMAZ" {
		t.Errorf("LastName = %q, want YILMAZ", res.LastName)
	}
	if res.FirstName != "MEHMET" {
		t.Errorf("FirstName = %q, want MEHMET", res.FirstName)
	}
	if res.BirthDate != "01.01.1990" {
		t.Errorf("BirthDate = %q, want 01.01.1990", res.BirthDate)
	}
	if res.ExpiryDate != "15.06.2030" {
		t.Errorf("ExpiryDate = %q, want 15.06.2030", res.ExpiryDate)
	}
	if res.RawText != licenseText {
		t.Error("RawText should carry the input text")
	}
}

func TestParseDocumentTextIdentityCard(t *testing.T) {
	text := "TC KIMLIK KARTI\n98765432109\nAyse Kaya\n12.03.1985"
	res := ParseDocumentText(text, types.DocumentTypeIdentityCard)

	if res.IdentityNumber != "98765432109" {
		t.Errorf("IdentityNumber = %q, want 98765432109", res.IdentityNumber)
	}
	if res.FirstName != "Ayse" {
		t.Errorf("FirstName = %q, want Ayse", res.FirstName)
	}
	if res.LastName != "Kaya" {
		t.Errorf("LastName = %q, want Kaya", res.LastName)
	}
	if res.BirthDate != "12.03.1985" {
		t.Errorf("BirthDate = %q, want 12.03.1985", res.BirthDate)
	}
	if res.ExpiryDate != "" {
		t.Errorf("ExpiryDate = %q, want empty with a single date", res.ExpiryDate)
	}
}

func TestParseDocumentTextPassport(t *testing.T) {
	text := "PASSPORT\nU12345678\n12345678901\nMehmet Yilmaz\n01/01/1990\n01/01/2030"
	res := ParseDocumentText(text, types.DocumentTypePassport)

	if res.PassportNumber != "U12345678" {
		t.Errorf("PassportNumber = %q, want U12345678", res.PassportNumber)
	}
	if res.IdentityNumber != "12345678901" {
		t.Errorf("IdentityNumber = %q, want 12345678901", res.IdentityNumber)
	}
	if res.BirthDate != "01/01/1990" || res.ExpiryDate != "01/01/2030" {
		t.Errorf("dates = (%q, %q), want (01/01/1990, 01/01/2030)", res.BirthDate, res.ExpiryDate)
	}
}

func TestParseDocumentTextGenericFallback(t *testing.T) {
	// No numbered lines on this licence; names come from the generic
	// capitalised-pair fallback.
	text := "SURUCU BELGESI Mehmet Yilmaz 12345678901"
	res := ParseDocumentText(text, types.DocumentTypeDrivingLicense)

	if res.FirstName != "Mehmet" {
		t.Errorf("FirstName = %q, want Mehmet", res.FirstName)
	}
	if res.LastName != "Yilmaz" {
		t.Errorf("LastName = %q, want Yilmaz", res.LastName)
	}
}

func TestParseDocumentTextEmpty(t *testing.T) {
	res := ParseDocumentText("", types.DocumentTypeIdentityCard)
	if res.IdentityNumber != "" || res.FirstName != "" || res.LastName != "" {
		t.Errorf("empty text should extract nothing, got %+v", res)
	}
}

func TestTextConfidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0.6},
		{"identity number only", "12345678901", 0.7},
		{"name only", "Mehmet Yilmaz", 0.65},
		{"date only", "01.01.1990", 0.65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextConfidence(tt.text); got != tt.want {
				t.Errorf("TextConfidence(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}

	t.Run("rich text is capped", func(t *testing.T) {
		long := licenseText
		for len(long) <= 200 {
			long += "\n" + licenseText
		}
		got := TextConfidence(long)
		if got != 0.98 {
			t.Errorf("TextConfidence(long) = %v, want capped 0.98", got)
		}
	})
}

func TestMockExtractor(t *testing.T) {
	log := newTestLogger(t)
	extractor := NewMockExtractor(log)

	res, err := extractor.Extract(context.Background(), []byte(licenseText), types.DocumentTypeDrivingLicense)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Confidence != MockConfidenceDrivingLicense {
		t.Errorf("Confidence = %v, want %v", res.Confidence, MockConfidenceDrivingLicense)
	}
	if res.IdentityNumber != "12345678901" {
		t.Errorf("IdentityNumber = %q, want 12345678901", res.IdentityNumber)
	}

	res, err = extractor.Extract(context.Background(), []byte("98765432109 Ayse Kaya"), types.DocumentTypeIdentityCard)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Confidence != MockConfidenceIdentityCard {
		t.Errorf("Confidence = %v, want %v", res.Confidence, MockConfidenceIdentityCard)
	}
}

func TestMockExtractorHonoursCancellation(t *testing.T) {
	log := newTestLogger(t)
	extractor := NewMockExtractor(log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := extractor.Extract(ctx, []byte("x"), types.DocumentTypePassport); err == nil {
		t.Fatal("Extract() with cancelled context should fail")
	}
}
