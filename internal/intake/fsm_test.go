package intake

import (
	"errors"
	"testing"
)

func TestNext(t *testing.T) {
	cases := []struct {
		from State
		ev   Event
		want State
		ok   bool
	}{
		{StateConsent, EventConsent, StateIntake, true},
		{StateIntake, EventSubmitIntake, StateContact, true},
		{StateContact, EventBack, StateIntake, true},
		{StateContact, EventSubmitContact, StateConfirmation, true},
		{StateConsent, EventSubmitIntake, "", false},
		{StateIntake, EventBack, "", false},
		{StateIntake, EventSubmitContact, "", false},
		{StateConfirmation, EventBack, "", false},
		{StateConfirmation, EventSubmitContact, "", false},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.ev)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%s on %s: got %q err=%v", tc.ev, tc.from, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s on %s: expected ErrInvalidTransition, got %v", tc.ev, tc.from, err)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !StateConfirmation.Terminal() {
		t.Fatalf("confirmation should be terminal")
	}
	for _, s := range []State{StateConsent, StateIntake, StateContact} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestContactGuard(t *testing.T) {
	cases := []struct {
		phone string
		ok    bool
	}{
		{"010-1234-5678", true},
		{"+82-10-1234-5678", true},
		{"01012345678", true},
		{"12345678", false},
		{"010 1234 5678", false},
		{"phone-number", false},
		{"-010-1234-567", false},
	}
	for _, tc := range cases {
		err := ContactForm{Name: "Lee", Phone: tc.phone}.check()
		if (err == nil) != tc.ok {
			t.Fatalf("phone %q: err=%v", tc.phone, err)
		}
	}

	var gerr *GuardError
	if err := (ContactForm{Phone: "010-1234-5678"}).check(); !errors.As(err, &gerr) || gerr.Fields[0].Field != "name" {
		t.Fatalf("expected name guard error, got %v", err)
	}
}
