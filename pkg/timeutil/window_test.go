package timeutil

import (
	"testing"
	"time"
)

func TestParseWindowDefault(t *testing.T) {
	dur, label, err := ParseWindow("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dur != 7*24*time.Hour {
		t.Fatalf("expected 7 days, got %v", dur)
	}
	if label != "1w" {
		t.Fatalf("expected label 1w, got %s", label)
	}
}

func TestParseWindowComposite(t *testing.T) {
	dur, label, err := ParseWindow("1w2d6h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (7*24 + 2*24 + 6) * time.Hour
	if dur != want {
		t.Fatalf("expected %v, got %v", want, dur)
	}
	if label != "1w2d6h" {
		t.Fatalf("unexpected label: %s", label)
	}
}

func TestParseWindowInvalid(t *testing.T) {
	for _, in := range []string{"noop", "3 fortnights", "0d"} {
		if _, _, err := ParseWindow(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestWindowDaysRoundsUp(t *testing.T) {
	cases := map[time.Duration]int{
		time.Hour:           1,
		24 * time.Hour:      1,
		36 * time.Hour:      2,
		7 * 24 * time.Hour:  7,
		0:                   1,
	}
	for in, want := range cases {
		if got := WindowDays(in); got != want {
			t.Errorf("WindowDays(%v) = %d, want %d", in, got, want)
		}
	}
}
