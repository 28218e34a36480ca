package intake

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"mirror-backend/internal/diagnosis"
)

// ErrGuardFailed is wrapped by every *GuardError.
var ErrGuardFailed = errors.New("transition requirements not met")

// GuardError lists the fields blocking a transition.
type GuardError struct {
	Fields []diagnosis.FieldError
}

func (e *GuardError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Issue)
	}
	return fmt.Sprintf("%s: %s", ErrGuardFailed, strings.Join(parts, "; "))
}

func (e *GuardError) Unwrap() error { return ErrGuardFailed }

// Concerns offered on the intake step.
var Concerns = []string{
	"sagging",
	"double_chin",
	"wrinkles",
	"nasolabial_folds",
	"elasticity",
	"pores",
	"pigmentation",
	"redness",
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9-]{7,18}[0-9]$`)

// ConsentForm is submitted on the consent step.
type ConsentForm struct {
	PrivacyConsent     bool `json:"privacyConsent"`
	DisclaimerAccepted bool `json:"disclaimerAccepted"`
}

func (f ConsentForm) check() error {
	var fields []diagnosis.FieldError
	if !f.PrivacyConsent {
		fields = append(fields, diagnosis.FieldError{Field: "privacyConsent", Issue: "must be accepted"})
	}
	if !f.DisclaimerAccepted {
		fields = append(fields, diagnosis.FieldError{Field: "disclaimerAccepted", Issue: "must be accepted"})
	}
	return guardErr(fields)
}

// Upload is one submitted photo.
type Upload struct {
	FileName string
	Data     []byte
}

// IntakeForm is submitted on the intake step.
type IntakeForm struct {
	Concerns      []string
	Questionnaire diagnosis.Input
	Front         *Upload
	Side          *Upload
}

func (f IntakeForm) check() error {
	var fields []diagnosis.FieldError
	if f.Front == nil || len(f.Front.Data) == 0 {
		fields = append(fields, diagnosis.FieldError{Field: "photoFront", Issue: "is required"})
	}
	if len(f.Concerns) == 0 {
		fields = append(fields, diagnosis.FieldError{Field: "concerns", Issue: "select at least one"})
	}
	for _, c := range f.Concerns {
		if !slices.Contains(Concerns, c) {
			fields = append(fields, diagnosis.FieldError{Field: "concerns", Issue: fmt.Sprintf("unknown concern %q", c)})
		}
	}
	if err := f.Questionnaire.Validate(); err != nil {
		var verr *diagnosis.ValidationError
		if errors.As(err, &verr) {
			fields = append(fields, verr.Fields...)
		}
	}
	return guardErr(fields)
}

// ContactForm is submitted on the contact step.
type ContactForm struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	PreferredTime  string `json:"preferredTime"`
	MarketingOptIn bool   `json:"marketingOptIn"`
}

func (f ContactForm) check() error {
	var fields []diagnosis.FieldError
	if strings.TrimSpace(f.Name) == "" {
		fields = append(fields, diagnosis.FieldError{Field: "name", Issue: "is required"})
	}
	if !phonePattern.MatchString(strings.TrimSpace(f.Phone)) {
		fields = append(fields, diagnosis.FieldError{Field: "phone", Issue: "must be 9 to 20 digits, dashes or a leading plus"})
	}
	return guardErr(fields)
}

func guardErr(fields []diagnosis.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &GuardError{Fields: fields}
}
