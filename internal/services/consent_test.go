package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/types"
)

type consentFixture struct {
	users    *fakeUserRepo
	consents *fakeConsentRepo
	service  ConsentService
	user     *types.User
}

func newConsentFixture(t *testing.T) *consentFixture {
	t.Helper()
	log := newTestLogger(t)
	users := newFakeUserRepo()
	consents := newFakeConsentRepo()
	user := users.add(testUser())
	return &consentFixture{
		users:    users,
		consents: consents,
		service:  NewConsentService(log, users, consents),
		user:     user,
	}
}

func (fx *consentFixture) submit(t *testing.T, inputs ...ConsentInput) {
	t.Helper()
	if err := fx.service.Submit(context.Background(), fx.user.ID, inputs, "10.0.0.1", "test-agent"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
}

func TestConsentSubmitAndStatus(t *testing.T) {
	ctx := context.Background()
	fx := newConsentFixture(t)

	fx.submit(t,
		ConsentInput{Type: types.ConsentTypeKVKK, Given: true, Text: "kvkk text"},
		ConsentInput{Type: types.ConsentTypeOpenConsent, Given: true},
		ConsentInput{Type: types.ConsentTypeMarketing, Given: false},
	)

	status, err := fx.service.Status(ctx, fx.user.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.KVKK || !status.OpenConsent {
		t.Errorf("status = %+v, want KVKK and OpenConsent given", status)
	}
	if status.Marketing {
		t.Error("declined consent must not be recorded as given")
	}
	if !status.CanProceed {
		t.Error("KVKK plus open consent should allow proceeding")
	}

	active, err := fx.service.ListActive(ctx, fx.user.ID)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active consents = %d, want 2", len(active))
	}
	for _, c := range active {
		if c.IPAddress != "10.0.0.1" || c.UserAgent != "test-agent" {
			t.Errorf("consent audit fields = %q/%q, want request metadata", c.IPAddress, c.UserAgent)
		}
	}
}

func TestConsentMandatoryGate(t *testing.T) {
	ctx := context.Background()
	fx := newConsentFixture(t)

	fx.submit(t, ConsentInput{Type: types.ConsentTypeKVKK, Given: true})

	status, err := fx.service.Status(ctx, fx.user.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.CanProceed {
		t.Error("KVKK alone must not allow proceeding")
	}
}

func TestConsentRevoke(t *testing.T) {
	ctx := context.Background()
	fx := newConsentFixture(t)

	fx.submit(t,
		ConsentInput{Type: types.ConsentTypeKVKK, Given: true},
		ConsentInput{Type: types.ConsentTypeOpenConsent, Given: true},
	)
	if err := fx.service.Revoke(ctx, fx.user.ID, types.ConsentTypeKVKK); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	status, err := fx.service.Status(ctx, fx.user.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.KVKK {
		t.Error("revoked consent still reported active")
	}
	if status.CanProceed {
		t.Error("revoking KVKK must block proceeding")
	}

	// The revoked row stays in the history.
	all, err := fx.service.List(ctx, fx.user.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("history rows = %d, want 2", len(all))
	}

	if err := fx.service.Revoke(ctx, fx.user.ID, types.ConsentTypeKVKK); !errors.Is(err, ErrValidation) {
		t.Errorf("revoking twice = %v, want ErrValidation", err)
	}
}

func TestConsentSubmitValidation(t *testing.T) {
	ctx := context.Background()
	fx := newConsentFixture(t)

	if err := fx.service.Submit(ctx, fx.user.ID, nil, "", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty submission = %v, want ErrValidation", err)
	}
	err := fx.service.Submit(ctx, fx.user.ID, []ConsentInput{{Type: "BOGUS", Given: true}}, "", "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown type = %v, want ErrValidation", err)
	}
	err = fx.service.Submit(ctx, uuid.New(), []ConsentInput{{Type: types.ConsentTypeKVKK, Given: true}}, "", "")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user = %v, want ErrUserNotFound", err)
	}
}

func TestConsentStatistics(t *testing.T) {
	ctx := context.Background()
	fx := newConsentFixture(t)

	fx.submit(t,
		ConsentInput{Type: types.ConsentTypeKVKK, Given: true},
		ConsentInput{Type: types.ConsentTypeOpenConsent, Given: true},
		ConsentInput{Type: types.ConsentTypeLocation, Given: true},
	)
	fx.submit(t, ConsentInput{Type: types.ConsentTypeKVKK, Given: true})

	stats, err := fx.service.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.KVKKConsents != 2 || stats.OpenConsents != 1 || stats.LocationConsents != 1 {
		t.Errorf("stats = %+v, want kvkk 2, open 1, location 1", stats)
	}
}
