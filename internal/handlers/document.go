package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/middleware"
	"github.com/rentesla/mobile-backend/internal/services"
	"github.com/rentesla/mobile-backend/internal/types"
)

const maxUploadBytes = 10 << 20

type DocumentHandler struct {
	pipeline    services.DocumentPipeline
	adminReview services.AdminReviewService
	aggregator  services.VerificationAggregator
	cfg         services.OCRConfig
}

func NewDocumentHandler(pipeline services.DocumentPipeline, adminReview services.AdminReviewService, aggregator services.VerificationAggregator, cfg services.OCRConfig) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, adminReview: adminReview, aggregator: aggregator, cfg: cfg}
}

func (dh *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	docType, face, err := parseTypeAndFace(c.PostForm("type"), c.PostForm("face"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("file is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("file exceeds %d bytes", maxUploadBytes))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	doc, err := dh.pipeline.Upload(c.Request.Context(), userID, docType, face, image, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

func (dh *DocumentHandler) UploadBase64(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	var body struct {
		Image    string `json:"image"`
		Type     string `json:"type"`
		Face     string `json:"face"`
		FileName string `json:"fileName"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	docType, face, err := parseTypeAndFace(body.Type, body.Face)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	doc, err := dh.pipeline.UploadBase64(c.Request.Context(), userID, docType, face, body.Image, body.FileName)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

func (dh *DocumentHandler) List(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	dh.listForUser(c, userID)
}

func (dh *DocumentHandler) listForUser(c *gin.Context, userID uuid.UUID) {
	docs, err := dh.pipeline.ListDocuments(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

// UserDocuments serves the admin view of another user's documents.
func (dh *DocumentHandler) UserDocuments(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid user id"))
		return
	}
	dh.listForUser(c, userID)
}

func (dh *DocumentHandler) Get(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid document id"))
		return
	}
	doc, err := dh.pipeline.GetDocument(c.Request.Context(), documentID, userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

func (dh *DocumentHandler) Delete(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid document id"))
		return
	}
	if err := dh.pipeline.DeleteDocument(c.Request.Context(), documentID, userID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (dh *DocumentHandler) VerificationStatus(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	dh.verificationStatusForUser(c, userID)
}

// UserVerificationStatus serves the admin view of another user's
// verification state.
func (dh *DocumentHandler) UserVerificationStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid user id"))
		return
	}
	dh.verificationStatusForUser(c, userID)
}

func (dh *DocumentHandler) verificationStatusForUser(c *gin.Context, userID uuid.UUID) {
	verified, err := dh.aggregator.IsFullyVerified(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	docs, err := dh.pipeline.ListDocuments(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	byStatus := map[string]int{}
	for _, d := range docs {
		byStatus[string(d.Status)]++
	}
	RespondOK(c, gin.H{
		"verified":  verified,
		"documents": len(docs),
		"by_status": byStatus,
	})
}

func (dh *DocumentHandler) PendingReview(c *gin.Context) {
	docs, err := dh.adminReview.ListNeedsReview(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

func (dh *DocumentHandler) LowConfidence(c *gin.Context) {
	threshold := dh.cfg.ConfidenceThreshold
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid threshold"))
			return
		}
		threshold = parsed
	}
	docs, err := dh.adminReview.ListLowConfidence(c.Request.Context(), threshold)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"documents": docs, "threshold": threshold})
}

func (dh *DocumentHandler) Review(c *gin.Context) {
	adminID, _ := middleware.CurrentUserID(c)
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid document id"))
		return
	}
	var body struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	decision, err := services.ParseReviewDecision(body.Decision)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	doc, err := dh.adminReview.Review(c.Request.Context(), documentID, adminID, decision, body.Reason)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

func (dh *DocumentHandler) BulkReview(c *gin.Context) {
	adminID, _ := middleware.CurrentUserID(c)
	var body struct {
		DocumentIDs []string `json:"document_ids"`
		Decision    string   `json:"decision"`
		Reason      string   `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	decision, err := services.ParseReviewDecision(body.Decision)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(body.DocumentIDs))
	for _, raw := range body.DocumentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid document id %q", raw))
			return
		}
		ids = append(ids, id)
	}
	result, err := dh.adminReview.BulkReview(c.Request.Context(), ids, adminID, decision, body.Reason)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (dh *DocumentHandler) VerificationDetails(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid document id"))
		return
	}
	details, err := dh.adminReview.VerificationDetails(c.Request.Context(), documentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, details)
}

func (dh *DocumentHandler) Statistics(c *gin.Context) {
	stats, err := dh.adminReview.Statistics(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}

func parseTypeAndFace(rawType, rawFace string) (types.DocumentType, types.DocumentFace, error) {
	docType, ok := types.ParseDocumentType(rawType)
	if !ok {
		return "", "", fmt.Errorf("%w: unknown document type %q", services.ErrValidation, rawType)
	}
	face, ok := types.ParseDocumentFace(rawFace)
	if !ok {
		return "", "", fmt.Errorf("%w: unknown document face %q", services.ErrValidation, rawFace)
	}
	return docType, face, nil
}
