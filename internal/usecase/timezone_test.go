package usecase

import (
	"testing"
	_ "time/tzdata"
)

func TestLocalTimezoneUsesTZ(t *testing.T) {
	t.Setenv("TZ", "America/New_York")
	if got := LocalTimezone(); got != "America/New_York" {
		t.Fatalf("unexpected timezone: %s", got)
	}
}

func TestLocalTimezoneIgnoresInvalidTZ(t *testing.T) {
	t.Setenv("TZ", "Not/AZone")
	if got := LocalTimezone(); got == "" || got == "Not/AZone" {
		t.Fatalf("unexpected timezone: %q", got)
	}
}
