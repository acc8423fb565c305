package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	UserID string `json:"user_id" validate:"required"`
	Reason string `json:"reason" validate:"required"`
	Days   int    `json:"days" validate:"gt=0"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		UserID: "user-1",
		Reason: "PAYMENT_OVERDUE",
		Days:   7,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		UserID: "",
		Reason: "",
		Days:   0,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	failures, ok := err.(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %T", err)
	}

	if len(failures) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(failures))
	}

	foundReason := false
	for _, f := range failures {
		if f.Field == "reason" {
			foundReason = true
		}
	}

	if !foundReason {
		t.Fatal("expected reason field to be present in validation errors")
	}
}

func TestFieldErrorsMessage(t *testing.T) {
	err := ValidateStruct(testPayload{UserID: "user-1", Reason: "x", Days: -1})
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	if msg == "" || msg == "validation failed" {
		t.Fatalf("expected descriptive message, got %q", msg)
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("carenet", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "carenet"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"carenet"`
	}

	if err := ValidateStruct(custom{Value: "carenet"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
