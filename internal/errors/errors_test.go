package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindBadFile, http.StatusBadRequest},
		{KindExistingVersion, http.StatusBadRequest},
		{KindPermissionDenied, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.kind.Status(); got != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.kind, tt.status, got)
		}
	}
}

func TestWrapKeepsKind(t *testing.T) {
	base := New(KindDuplicatePackage)
	wrapped := fmt.Errorf("creating package: %w", base)

	if got := KindOf(wrapped); got != KindDuplicatePackage {
		t.Fatalf("expected DuplicatePackage, got %s", got)
	}

	if got := Wrap(wrapped).Kind; got != KindDuplicatePackage {
		t.Fatalf("expected Wrap to keep DuplicatePackage, got %s", got)
	}

	if got := Wrap(wrapped, WithNotFound()).Kind; got != KindNotFound {
		t.Fatalf("expected option to override kind, got %s", got)
	}

	if base.Kind != KindDuplicatePackage {
		t.Fatalf("Wrap must not mutate the original error")
	}
}

func TestInternalMessageHidesDetail(t *testing.T) {
	err := Wrap(errors.New("bolt: database not open"), WithMessage("Could not fetch app list at this time"))

	if got := err.ClientMessage(); got != "Could not fetch app list at this time" {
		t.Fatalf("unexpected client message %q", got)
	}

	if !errors.Is(err, err.Err) {
		t.Fatalf("expected the cause to be reachable through Unwrap")
	}
}

func TestNeedsManualReviewMessage(t *testing.T) {
	noReason := New(KindNeedsManualReview)
	if got, want := noReason.ClientMessage(), "This app needs to be reviewed manually, please check you app using the click-review command"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	withReason := New(KindNeedsManualReview, WithDetail("security_policy_groups_safe"))
	if got, want := withReason.ClientMessage(), "This app needs to be reviewed manually (Error: security_policy_groups_safe)"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestKindOfForeignError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected Internal, got %s", got)
	}

	if Is(nil, KindInternal) {
		t.Fatalf("nil error must not match any kind")
	}
}
