package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Conflict("dup"), http.StatusConflict},
		{Unauthorized("nope", nil), http.StatusUnauthorized},
		{NotFound("missing"), http.StatusNotFound},
		{UploadFailure("upload", errors.New("s3")), http.StatusInternalServerError},
		{CreationFailure("create", errors.New("db")), http.StatusInternalServerError},
		{Internal("boom", nil), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Kind.String(), func(t *testing.T) {
			if got := tc.err.Status(); got != tc.want {
				t.Fatalf("expected status %d got %d", tc.want, got)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("db down")
	err := fmt.Errorf("register: %w", CreationFailure("failed to create user", cause))

	if KindOf(err) != KindCreationFailure {
		t.Fatalf("expected creation failure kind got %v", KindOf(err))
	}
	if !Is(err, KindCreationFailure) {
		t.Fatal("expected Is to match wrapped kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("expected unclassified errors to be internal")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Validation("all fields are required", "username")
	if err.Error() != "all fields are required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(err.Details) != 1 || err.Details[0] != "username" {
		t.Fatalf("unexpected details %v", err.Details)
	}

	wrapped := Internal("lookup failed", errors.New("timeout"))
	if wrapped.Error() != "lookup failed: timeout" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}
