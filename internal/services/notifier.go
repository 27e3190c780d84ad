package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentesla/mobile-backend/internal/clients/redis"
	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/sse"
	"github.com/rentesla/mobile-backend/internal/types"
)

type NotificationKind string

const (
	NotificationDocumentUploaded     NotificationKind = "DOCUMENT_UPLOADED"
	NotificationDocumentApproved     NotificationKind = "DOCUMENT_APPROVED"
	NotificationDocumentRejected     NotificationKind = "DOCUMENT_REJECTED"
	NotificationDocumentNeedsReview  NotificationKind = "DOCUMENT_NEEDS_REVIEW"
	NotificationVerificationComplete NotificationKind = "VERIFICATION_COMPLETE"

	NotificationAdminReviewNeeded NotificationKind = "ADMIN_REVIEW_NEEDED"
	NotificationNewDocumentUpload NotificationKind = "NEW_DOCUMENT_UPLOAD"
	NotificationPendingSummary    NotificationKind = "PENDING_DOCUMENTS_SUMMARY"
)

var notificationTitles = map[NotificationKind]string{
	NotificationDocumentUploaded:     "Document received",
	NotificationDocumentApproved:     "Document approved",
	NotificationDocumentRejected:     "Document rejected",
	NotificationDocumentNeedsReview:  "Document under review",
	NotificationVerificationComplete: "Verification complete",
	NotificationAdminReviewNeeded:    "Document review needed",
	NotificationNewDocumentUpload:    "New document uploaded",
	NotificationPendingSummary:       "Pending documents",
}

var notificationBodies = map[NotificationKind]string{
	NotificationDocumentUploaded:     "We received your document and started processing it.",
	NotificationDocumentApproved:     "Your document has been approved.",
	NotificationDocumentRejected:     "Your document was rejected.",
	NotificationDocumentNeedsReview:  "Your document requires manual review. We will notify you once it is done.",
	NotificationVerificationComplete: "Your identity verification is complete. You can now rent vehicles.",
	NotificationAdminReviewNeeded:    "A document failed automatic verification and needs a manual decision.",
	NotificationNewDocumentUpload:    "A user uploaded a new identity document.",
	NotificationPendingSummary:       "There are documents waiting for review.",
}

// Notifier is the fire-and-forget sink for user and admin directed
// notifications. Delivery is best-effort: every failure is logged and
// swallowed so callers never fail because of it.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, kind NotificationKind, payload map[string]any)
	NotifyAdmins(ctx context.Context, kind NotificationKind, payload map[string]any)
}

type notifier struct {
	db               *gorm.DB
	log              *logger.Logger
	notificationRepo repos.NotificationRepo
	userRepo         repos.UserRepo
	hub              *sse.SSEHub
	bus              redis.NotificationBus
}

// NewNotifier persists every notification as a row, pushes it on the SSE
// hub, and publishes it to the Redis bus when one is configured (bus may
// be nil).
func NewNotifier(db *gorm.DB, log *logger.Logger, notificationRepo repos.NotificationRepo, userRepo repos.UserRepo, hub *sse.SSEHub, bus redis.NotificationBus) Notifier {
	return &notifier{
		db:               db,
		log:              log.With("service", "Notifier"),
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		hub:              hub,
		bus:              bus,
	}
}

func (n *notifier) NotifyUser(ctx context.Context, userID uuid.UUID, kind NotificationKind, payload map[string]any) {
	if userID == uuid.Nil {
		return
	}
	n.persist(ctx, userID, kind, payload)
	n.broadcast(ctx, userID.String(), kind, payload)
}

func (n *notifier) NotifyAdmins(ctx context.Context, kind NotificationKind, payload map[string]any) {
	admins, err := n.userRepo.GetAdmins(ctx, nil)
	if err != nil {
		n.log.Warn("Failed to load admins for notification", "kind", kind, "error", err)
	}
	for _, admin := range admins {
		n.persist(ctx, admin.ID, kind, payload)
	}
	n.broadcast(ctx, sse.AdminChannel, kind, payload)
}

func (n *notifier) persist(ctx context.Context, userID uuid.UUID, kind NotificationKind, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{}`)
	}
	row := &types.Notification{
		UserID: userID,
		Kind:   string(kind),
		Title:  notificationTitles[kind],
		Body:   notificationBodies[kind],
		Data:   data,
	}
	if _, err := n.notificationRepo.Create(ctx, nil, row); err != nil {
		n.log.Warn("Failed to persist notification", "userID", userID, "kind", kind, "error", err)
	}
}

func (n *notifier) broadcast(ctx context.Context, channel string, kind NotificationKind, payload map[string]any) {
	msg := sse.SSEMessage{
		Channel: channel,
		Event:   sse.SSEEventNotification,
		Data: map[string]any{
			"kind":    kind,
			"title":   notificationTitles[kind],
			"body":    notificationBodies[kind],
			"payload": payload,
		},
	}
	// With a bus, local delivery happens through the forwarder; pushing
	// on the hub here too would double-deliver to local clients.
	if n.bus != nil {
		if err := n.bus.Publish(ctx, msg); err != nil {
			n.log.Warn("Failed to publish notification to bus", "channel", channel, "kind", kind, "error", err)
			if n.hub != nil {
				n.hub.Broadcast(msg)
			}
		}
		return
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}
