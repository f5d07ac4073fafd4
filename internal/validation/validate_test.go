package validation

import (
	"testing"
)

type sampleRequest struct {
	FirstName string   `json:"firstName" validate:"required,min=2,max=50"`
	Email     string   `json:"email" validate:"required,email"`
	Phone     string   `json:"phoneNumber" validate:"required,phone"`
	Skills    []string `json:"skills" validate:"required,min=1,dive,required"`
	Secret    string   `json:"-" validate:"omitempty,min=6"`
}

func fieldsByName(errs []FieldError) map[string]string {
	byName := make(map[string]string, len(errs))
	for _, fe := range errs {
		byName[fe.Field] = fe.Message
	}
	return byName
}

func TestStructValid(t *testing.T) {
	req := sampleRequest{
		FirstName: "Ana",
		Email:     "ana@example.com",
		Phone:     "0612345678",
		Skills:    []string{"go"},
	}

	if errs := Struct(req); errs != nil {
		t.Fatalf("expected no errors, got %+v", errs)
	}
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	errs := Struct(sampleRequest{})
	if len(errs) == 0 {
		t.Fatal("expected validation errors")
	}

	byName := fieldsByName(errs)
	for _, want := range []string{"firstName", "email", "phoneNumber", "skills"} {
		if _, ok := byName[want]; !ok {
			t.Errorf("expected an error keyed by json name %q, got %+v", want, errs)
		}
	}
}

func TestPhoneRule(t *testing.T) {
	base := sampleRequest{
		FirstName: "Ana",
		Email:     "ana@example.com",
		Skills:    []string{"go"},
	}

	cases := []struct {
		phone string
		valid bool
	}{
		{"0612345678", true},
		{"123456789012345", true},
		{"123", false},
		{"06 12 34 56 78", false},
		{"+33612345678", false},
		{"1234567890123456", false},
	}

	for _, tc := range cases {
		req := base
		req.Phone = tc.phone
		errs := Struct(req)
		_, failed := fieldsByName(errs)["phoneNumber"]
		if tc.valid && failed {
			t.Errorf("expected %q to be valid, got %+v", tc.phone, errs)
		}
		if !tc.valid && !failed {
			t.Errorf("expected %q to be rejected", tc.phone)
		}
	}
}

func TestMinMessageDependsOnKind(t *testing.T) {
	req := sampleRequest{
		FirstName: "A",
		Email:     "ana@example.com",
		Phone:     "0612345678",
		Skills:    []string{},
	}

	byName := fieldsByName(Struct(req))
	if msg := byName["firstName"]; msg != "must be at least 2 characters" {
		t.Errorf("unexpected string min message: %q", msg)
	}
	if msg := byName["skills"]; msg != "must contain at least 1 item(s)" {
		t.Errorf("unexpected slice min message: %q", msg)
	}
}
