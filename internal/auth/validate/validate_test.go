package validate

import (
	"testing"
)

type sampleInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email,max=100"`
	Username string `validate:"required,max=32"`
	Password string `validate:"required,userpassword"`
}

func TestPasswordStrength(t *testing.T) {
	cases := []struct {
		pw   string
		want bool
	}{
		{"Abcd1234", true},
		{"alllower1", false}, // no uppercase
		{"ALLUPPER1", false}, // no lowercase
		{"NoDigitsHere", false},
		{"Ab1", false}, // too short
		{"Abcdefg1", true},
		{"", false},
	}
	for _, c := range cases {
		if got := PasswordStrength(c.pw); got != c.want {
			t.Errorf("PasswordStrength(%q) = %v, want %v", c.pw, got, c.want)
		}
	}
}

func TestStruct_Valid(t *testing.T) {
	v := New()
	in := sampleInput{Name: "Al", Email: "al@x.com", Username: "al", Password: "Abcd1234"}
	if msgs := Struct(v, in); msgs != nil {
		t.Fatalf("Struct returned messages for valid input: %v", msgs)
	}
}

func TestStruct_AccumulatesAllErrors(t *testing.T) {
	v := New()
	in := sampleInput{} // everything missing
	msgs := Struct(v, in)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4: %v", len(msgs), msgs)
	}
	for _, want := range []string{
		"Name is required",
		"Email is required",
		"Username is required",
		"Password is required",
	} {
		found := false
		for _, m := range msgs {
			if m == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing message %q in %v", want, msgs)
		}
	}
}

func TestStruct_WeakPasswordMessage(t *testing.T) {
	v := New()
	in := sampleInput{Name: "Al", Email: "al@x.com", Username: "al", Password: "alllower1"}
	msgs := Struct(v, in)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1: %v", len(msgs), msgs)
	}
	if msgs[0] != PasswordMessage {
		t.Errorf("message = %q, want %q", msgs[0], PasswordMessage)
	}
}

func TestStruct_EmailFormat(t *testing.T) {
	v := New()
	in := sampleInput{Name: "Al", Email: "not-an-email", Username: "al", Password: "Abcd1234"}
	msgs := Struct(v, in)
	if len(msgs) != 1 || msgs[0] != "Invalid email format" {
		t.Fatalf("msgs = %v, want [Invalid email format]", msgs)
	}
}
