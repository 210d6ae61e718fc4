package types

import (
	"testing"
	"time"
)

// --- Due.HasTime ---

func TestDueHasTime_TrueWhenDatetimeSet(t *testing.T) {
	// Reports true when the due carries a time of day
	d := &Due{Date: "2025-01-05", Datetime: "2025-01-05T12:00:00"}
	if !d.HasTime() {
		t.Error("expected HasTime=true for datetime due")
	}
}

func TestDueHasTime_FalseForDateOnly(t *testing.T) {
	// Reports false for a date-only due
	d := &Due{Date: "2025-01-05"}
	if d.HasTime() {
		t.Error("expected HasTime=false for date-only due")
	}
}

func TestDueHasTime_FalseOnNil(t *testing.T) {
	// Reports false on a nil receiver
	var d *Due
	if d.HasTime() {
		t.Error("expected HasTime=false on nil due")
	}
}

// --- Due.Day ---

func TestDueDay_ParsesDatePortion(t *testing.T) {
	// Parses the YYYY-MM-DD day portion
	d := &Due{Date: "2025-01-05"}
	day, err := d.Day()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	if !day.Equal(want) {
		t.Errorf("got %v, want %v", day, want)
	}
}

func TestDueDay_FailsOnMalformedDate(t *testing.T) {
	// Fails when the date does not match YYYY-MM-DD
	d := &Due{Date: "01/05/2025"}
	if _, err := d.Day(); err == nil {
		t.Error("expected error for malformed date")
	}
}

// --- Due.Clock ---

func TestDueClock_ReturnsExactTimeOfDay(t *testing.T) {
	// Returns the exact time of day encoded in Datetime
	d := &Due{Date: "2025-01-05", Datetime: "2025-01-05T09:30:15"}
	clock, err := d.Clock()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clock != "09:30:15" {
		t.Errorf("got %q, want %q", clock, "09:30:15")
	}
}

func TestDueClock_FailsOnMalformedDatetime(t *testing.T) {
	// Fails when Datetime does not match the YYYY-MM-DDTHH:MM:SS layout
	d := &Due{Date: "2025-01-05", Datetime: "2025-01-05 09:30"}
	if _, err := d.Clock(); err == nil {
		t.Error("expected error for malformed datetime")
	}
}
