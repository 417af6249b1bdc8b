package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestSentinelComparisonSurvivesCopies(t *testing.T) {
	err := NewValidation("role ids are required")

	if !stdErrors.Is(err, ErrValidation) {
		t.Fatal("expected copied validation error to match sentinel")
	}
	if stdErrors.Is(err, ErrIntegrity) {
		t.Fatal("validation error must not match integrity sentinel")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrResourceNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestTaxonomyStatusCodes(t *testing.T) {
	cases := map[*AppError]int{
		ErrValidation:       http.StatusBadRequest,
		ErrResourceNotFound: http.StatusNotFound,
		ErrConflict:         http.StatusConflict,
		ErrIntegrity:        http.StatusUnprocessableEntity,
	}
	for err, status := range cases {
		if err.StatusCode != status {
			t.Fatalf("%s: expected status %d got %d", err.Code, status, err.StatusCode)
		}
	}
}
