package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/pkg/workdays"
)

// overlappingApplication returns an application stuck in
// OVERLAP_DETECTED_PENDING_CONSENT plus its single consent record.
func overlappingApplication(t *testing.T, e *testEnv) (*domain.Application, *domain.OverlapConsent) {
	t.Helper()
	ctx := context.Background()
	seedApprovedNeighbor(t, e, otherUser, 10, 120, 0.01)

	app := mustCreateApp(t, e, applicant, domain.PermitISAG)
	res, err := e.coordSvc.SubmitCoordinates(ctx, applicant, app.ID, squareJSON(10.005, 120.005, 0.01))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	consents, err := e.consentSvc.List(ctx, applicant, app.ID)
	if err != nil || len(consents) != 1 {
		t.Fatalf("expected single consent, got %d (err %v)", len(consents), err)
	}
	return res.Application, &consents[0]
}

func TestConsentUploadAndVerify_StartsReviewClock(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	app, consent := overlappingApplication(t, e)

	got, err := e.consentSvc.Upload(ctx, applicant, consent.ID, []byte("signed consent"), "consent.pdf")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got.ConsentStatus != domain.ConsentUploaded {
		t.Fatalf("expected UPLOADED, got %s", got.ConsentStatus)
	}
	if got.ConsentFileURL == "" || got.ConsentUploadedAt == nil || got.ConsentUploadedBy != applicant.ID {
		t.Error("upload must record file url, timestamp, and uploader")
	}

	got, err = e.consentSvc.Verify(ctx, admin, consent.ID, "verify", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ConsentStatus != domain.ConsentVerified {
		t.Fatalf("expected VERIFIED, got %s", got.ConsentStatus)
	}

	cur, _ := e.apps.GetByID(ctx, app.ID)
	if cur.Status != domain.AppPendingCoordApproval {
		t.Fatalf("verifying the last consent must start coordinate review, got %s", cur.Status)
	}
	want := workdays.Add(e.now, 14)
	if cur.CoordinateReviewDeadline == nil || !cur.CoordinateReviewDeadline.Equal(want) {
		t.Errorf("expected review deadline %v, got %v", want, cur.CoordinateReviewDeadline)
	}
}

func TestConsentUpload_OnlyOwner(t *testing.T) {
	e := newTestEnv()
	_, consent := overlappingApplication(t, e)

	_, err := e.consentSvc.Upload(context.Background(), otherUser, consent.ID, []byte("x"), "consent.pdf")
	var ae *domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestConsentUpload_AfterVerificationConflicts(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	_, consent := overlappingApplication(t, e)

	if _, err := e.consentSvc.Upload(ctx, applicant, consent.ID, []byte("x"), "consent.pdf"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := e.consentSvc.Verify(ctx, admin, consent.ID, "verify", ""); err != nil {
		t.Fatalf("verify: %v", err)
	}

	_, err := e.consentSvc.Upload(ctx, applicant, consent.ID, []byte("y"), "consent.pdf")
	var sc *domain.StateConflictError
	if !errors.As(err, &sc) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
}

func TestConsentVerify_RejectAllowsReupload(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	app, consent := overlappingApplication(t, e)

	if _, err := e.consentSvc.Upload(ctx, applicant, consent.ID, []byte("x"), "consent.pdf"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := e.consentSvc.Verify(ctx, admin, consent.ID, "reject", ""); err == nil {
		t.Fatal("rejection without remarks must fail")
	}
	got, err := e.consentSvc.Verify(ctx, admin, consent.ID, "reject", "signature does not match permit holder")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.ConsentStatus != domain.ConsentRejected {
		t.Fatalf("expected REJECTED, got %s", got.ConsentStatus)
	}

	cur, _ := e.apps.GetByID(ctx, app.ID)
	if cur.Status != domain.AppOverlapPendingConsent {
		t.Errorf("rejection must keep the application waiting on consent, got %s", cur.Status)
	}

	// A corrected document cures the rejection.
	got, err = e.consentSvc.Upload(ctx, applicant, consent.ID, []byte("corrected"), "consent-v2.pdf")
	if err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	if got.ConsentStatus != domain.ConsentUploaded || got.VerificationRemarks != "" {
		t.Error("re-upload must clear the earlier verification outcome")
	}
}

func TestConsentUpload_MissingPrerequisite(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	_, consent := overlappingApplication(t, e)

	// The affected holder's boundary disappears before the upload.
	if err := e.ledger.Void(ctx, consent.AffectedApplicationID); err != nil {
		t.Fatalf("void: %v", err)
	}

	_, err := e.consentSvc.Upload(ctx, applicant, consent.ID, []byte("x"), "consent.pdf")
	var de *domain.DependencyError
	if !errors.As(err, &de) {
		t.Fatalf("expected DependencyError, got %v", err)
	}
}

func TestConsentVerify_RequiresAdminAndUploadedState(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	_, consent := overlappingApplication(t, e)

	_, err := e.consentSvc.Verify(ctx, applicant, consent.ID, "verify", "")
	var ae *domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	// Nothing uploaded yet.
	_, err = e.consentSvc.Verify(ctx, admin, consent.ID, "verify", "")
	var sc *domain.StateConflictError
	if !errors.As(err, &sc) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
}
