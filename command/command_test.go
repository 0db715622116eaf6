package command

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPeriodOfUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 2024-04-01 02:00 at +05:00 is still March in UTC.
	p := PeriodOf(time.Date(2024, time.April, 1, 2, 0, 0, 0, loc))
	if p != (Period{Year: 2024, Month: time.March}) {
		t.Fatalf("PeriodOf = %v, want 2024-03", p)
	}
	if p.String() != "2024-03" {
		t.Errorf("String = %q", p.String())
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2023-11")
	if err != nil {
		t.Fatal(err)
	}
	if p.Year != 2023 || p.Month != time.November {
		t.Errorf("ParsePeriod = %v", p)
	}
	if _, err := ParsePeriod("november"); !errors.Is(err, ErrUsage) {
		t.Errorf("ParsePeriod(bad) err = %v, want ErrUsage", err)
	}
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{"discord": Discord, "Twitch": Twitch, " DISCORD ": Discord} {
		got, err := ParseSource(in)
		if err != nil || got != want {
			t.Errorf("ParseSource(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseSource("irc"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"hello", "a", "x_1", "schedule2"}
	for _, n := range valid {
		if err := ValidateName(n); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", n, err)
		}
	}
	invalid := []string{"", "!hello", "1abc", "_x", "héllo", "with space", "dash-name",
		"abcdefghijklmnopqrstuvwxyzabcdefg"}
	for _, n := range invalid {
		if err := ValidateName(n); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", n, err)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName(" HeLLo "); got != "hello" {
		t.Errorf("NormalizeName = %q", got)
	}
}

func TestReservedNames(t *testing.T) {
	for _, n := range []string{"help", "bot", "crate", "crates", "doc", "docs", "admins", "admin", "ohelp", "custom_command", "stats"} {
		if !IsReserved(n) {
			t.Errorf("%q should be reserved", n)
		}
	}
	if IsReserved("hello") {
		t.Error("hello should not be reserved")
	}
	seen := map[string]string{}
	for _, b := range Builtins {
		for _, n := range append([]string{b.Name}, b.Aliases...) {
			if prev, ok := seen[n]; ok {
				t.Errorf("name %q used by both %s and %s", n, prev, b.Name)
			}
			seen[n] = b.Name
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{fmt.Errorf("get: %w", ErrNotFound), ClassNotFound},
		{ErrDuplicateCommand, ClassDuplicate},
		{ErrUnauthorized, ClassUnauthorized},
		{fmt.Errorf("%w: bad", ErrInvalidName), ClassInvalid},
		{ErrUsage, ClassInvalid},
		{Storage("record usage", errors.New("disk full")), ClassStorage},
		{&ExecutionError{Command: "ftoc", Err: errors.New("boom")}, ClassExecution},
		{errors.New("anything else"), ClassExecution},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
	if Storage("x", nil) != nil {
		t.Error("Storage(nil) should be nil")
	}
}

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		source Source
		id     string
		ok     bool
	}{
		{Discord, "175928847299117063", true},
		{Discord, "abc", false},
		{Discord, "-5", false},
		{Twitch, "12826", true},
		{Twitch, "0", false},
		{Twitch, "user", false},
		{Source("irc"), "1", false},
	}
	for _, tt := range tests {
		err := ValidateUserID(tt.source, tt.id)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateUserID(%s, %q) = %v", tt.source, tt.id, err)
		}
	}
}
