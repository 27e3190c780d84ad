package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/types"
)

func newAggregatorFixture(t *testing.T) (*fakeUserRepo, *fakeDocumentRepo, *fakeNotifier, VerificationAggregator, *types.User) {
	t.Helper()
	log := newTestLogger(t)
	users := newFakeUserRepo()
	docs := newFakeDocumentRepo()
	notifier := newFakeNotifier()
	aggregator := NewVerificationAggregator(nil, log, users, docs, notifier)
	user := users.add(&types.User{
		Email:          "ayse@example.com",
		FirstName:      "Ayse",
		LastName:       "Kaya",
		IdentityNumber: "98765432109",
	})
	return users, docs, notifier, aggregator, user
}

func TestAggregatorRecompute(t *testing.T) {
	ctx := context.Background()
	users, docs, notifier, aggregator, user := newAggregatorFixture(t)

	verified, err := aggregator.IsFullyVerified(ctx, user.ID)
	if err != nil {
		t.Fatalf("IsFullyVerified() error = %v", err)
	}
	if verified {
		t.Fatal("user with no documents must not be verified")
	}

	// A pending document changes nothing.
	pending, _ := docs.Create(ctx, nil, &types.Document{
		UserID: user.ID,
		Type:   types.DocumentTypeIdentityCard,
		Face:   types.DocumentFaceFront,
		Status: types.DocumentStatusPending,
	})
	if err := aggregator.Recompute(ctx, user.ID); err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if u, _ := users.GetByID(ctx, nil, user.ID); u.DocumentVerified {
		t.Fatal("pending document must not verify the user")
	}

	// One approved accepted kind verifies the user, once.
	if err := docs.UpdateFields(ctx, nil, pending.ID, map[string]any{"status": types.DocumentStatusApproved}); err != nil {
		t.Fatal(err)
	}
	if err := aggregator.Recompute(ctx, user.ID); err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if u, _ := users.GetByID(ctx, nil, user.ID); !u.DocumentVerified {
		t.Fatal("approved document should verify the user")
	}
	if err := aggregator.Recompute(ctx, user.ID); err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if n := notifier.countKind(NotificationVerificationComplete); n != 1 {
		t.Errorf("verification-complete notifications = %d, want exactly 1", n)
	}

	// Losing the approval revokes silently.
	if err := docs.Delete(ctx, nil, pending.ID); err != nil {
		t.Fatal(err)
	}
	if err := aggregator.Recompute(ctx, user.ID); err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if u, _ := users.GetByID(ctx, nil, user.ID); u.DocumentVerified {
		t.Error("losing the approved document must revoke verification")
	}
	if n := notifier.countKind(NotificationVerificationComplete); n != 1 {
		t.Errorf("revocation must not emit another verification-complete, got %d", n)
	}
}

func TestAggregatorUnknownUser(t *testing.T) {
	_, _, _, aggregator, _ := newAggregatorFixture(t)
	if err := aggregator.Recompute(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Recompute() error = %v, want ErrUserNotFound", err)
	}
}
