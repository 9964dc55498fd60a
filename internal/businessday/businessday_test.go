package businessday

import (
	"testing"
	"time"
)

func TestDayRollsOverAtOffset(t *testing.T) {
	offset := 6 * time.Hour

	// 02:30 belongs to the previous calendar date.
	early := time.Date(2026, 3, 14, 2, 30, 0, 0, time.UTC)
	if got := Day(early, offset); !got.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Day(02:30) = %v, want 2026-03-13", got)
	}

	// 06:00 exactly starts the new day.
	boundary := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	if got := Day(boundary, offset); !got.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Day(06:00) = %v, want 2026-03-14", got)
	}

	late := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	if got := Day(late, offset); !got.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Day(23:59) = %v, want 2026-03-14", got)
	}
}

func TestRangeCoversExactlyOneDay(t *testing.T) {
	offset := 6 * time.Hour
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	from, to := Range(day, offset)
	if !from.Equal(time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("range start = %v", from)
	}
	if !to.Equal(time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("range end = %v", to)
	}

	// Every instant in [from, to) maps back to the same day.
	for _, ts := range []time.Time{from, from.Add(12 * time.Hour), to.Add(-time.Second)} {
		if got := Day(ts, offset); !got.Equal(day) {
			t.Fatalf("Day(%v) = %v, want %v", ts, got, day)
		}
	}
	if got := Day(to, offset); got.Equal(day) {
		t.Fatalf("range end should belong to the next day")
	}
}

func TestStamp(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if got := Stamp(day); got != "260314" {
		t.Fatalf("Stamp = %q, want 260314", got)
	}
}

func TestParseOffset(t *testing.T) {
	got, err := ParseOffset("06:00")
	if err != nil || got != 6*time.Hour {
		t.Fatalf("ParseOffset(06:00) = %v, %v", got, err)
	}
	got, err = ParseOffset("23:30")
	if err != nil || got != 23*time.Hour+30*time.Minute {
		t.Fatalf("ParseOffset(23:30) = %v, %v", got, err)
	}
	for _, bad := range []string{"24:00", "06:60", "noon", ""} {
		if _, err := ParseOffset(bad); err == nil {
			t.Fatalf("ParseOffset(%q) should fail", bad)
		}
	}
}
