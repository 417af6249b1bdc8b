package validator

import "testing"

type samplePayload struct {
	Name  string `json:"name" validate:"required,min=3"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(&samplePayload{Name: "tenant-admin"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&samplePayload{Name: "ab", Email: "not-an-email"})
	if err == nil {
		t.Fatal("expected validation failure")
	}

	failures, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].Field != "name" {
		t.Fatalf("expected json field name, got %s", failures[0].Field)
	}
}
