package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/types"
)

type visionExtractor struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

// NewVisionExtractor fronts Google Cloud Vision document text detection.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS_JSON or
// GOOGLE_APPLICATION_CREDENTIALS; with neither set, application default
// credentials apply.
func NewVisionExtractor(log *logger.Logger) (TextExtractor, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "VisionExtractor")

	ctx := context.Background()
	var opts []option.ClientOption
	if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else if credsFile := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &visionExtractor{log: slog, client: client}, nil
}

func (v *visionExtractor) Extract(ctx context.Context, image []byte, docType types.DocumentType) (*ExtractionResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, fmt.Errorf("vision returned no responses")
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return nil, fmt.Errorf("no text detected in document")
	}

	text := fta.Text
	res := ParseDocumentText(text, docType)
	res.Confidence = TextConfidence(text)

	v.log.Debug("Vision extraction completed",
		"docType", docType,
		"textLen", len(text),
		"confidence", res.Confidence,
	)
	return res, nil
}

func (v *visionExtractor) Close() error {
	return v.client.Close()
}
