package timeline

import (
	"testing"
	"time"
)

func TestNormalizeUTC_PreservesInstant(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	authored := time.Date(2025, 5, 20, 18, 0, 0, 0, tokyo)

	normalized := NormalizeUTC(authored)

	if normalized.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", normalized.Location())
	}
	if !normalized.Equal(authored) {
		t.Fatalf("normalization drifted: %v != %v", normalized, authored)
	}
	if got := normalized.Hour(); got != 9 {
		t.Fatalf("expected 09:00 UTC, got hour %d", got)
	}
}

func TestNormalizeUTC_TruncatesSubSecond(t *testing.T) {
	t.Parallel()

	authored := time.Date(2025, 5, 20, 10, 0, 0, 700_000_000, time.UTC)

	normalized := NormalizeUTC(authored)

	if got, want := normalized, time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected sub-second component discarded, got %v", got)
	}
	if normalized.Nanosecond() != 0 {
		t.Fatalf("expected whole-second instant, got %dns", normalized.Nanosecond())
	}

	// Two instants inside the same second normalize identically, so no
	// backend can disagree about their ordering.
	other := NormalizeUTC(time.Date(2025, 5, 20, 10, 0, 0, 500_000_000, time.UTC))
	if !other.Equal(normalized) {
		t.Fatalf("instants within one second must converge: %v != %v", other, normalized)
	}
}

func TestDateOf_UsesUTCCalendar(t *testing.T) {
	t.Parallel()

	// 23:30 in UTC-5 is already the next day in UTC.
	ny := time.FixedZone("EST", -5*60*60)
	authored := time.Date(2025, 5, 20, 23, 30, 0, 0, ny)

	if got, want := DateOf(authored), (Date{2025, time.May, 21}); got != want {
		t.Fatalf("DateOf = %v, want %v", got, want)
	}
}

func TestDatesTouched(t *testing.T) {
	t.Parallel()

	utc := func(day, hour, min int) time.Time {
		return time.Date(2025, 5, day, hour, min, 0, 0, time.UTC)
	}

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []Date
	}{
		{
			name:  "single day",
			start: utc(20, 9, 0),
			end:   utc(20, 11, 0),
			want:  []Date{{2025, time.May, 20}},
		},
		{
			name:  "spans midnight",
			start: utc(20, 23, 0),
			end:   utc(21, 1, 0),
			want:  []Date{{2025, time.May, 20}, {2025, time.May, 21}},
		},
		{
			name:  "three full days",
			start: utc(20, 12, 0),
			end:   utc(22, 12, 0),
			want:  []Date{{2025, time.May, 20}, {2025, time.May, 21}, {2025, time.May, 22}},
		},
		{
			name:  "end exactly at midnight excludes boundary day",
			start: utc(20, 22, 0),
			end:   utc(21, 0, 0),
			want:  []Date{{2025, time.May, 20}},
		},
		{
			name:  "start at midnight includes that day",
			start: utc(20, 0, 0),
			end:   utc(20, 1, 0),
			want:  []Date{{2025, time.May, 20}},
		},
		{
			name:  "empty interval",
			start: utc(20, 9, 0),
			end:   utc(20, 9, 0),
			want:  nil,
		},
		{
			name:  "inverted interval",
			start: utc(20, 11, 0),
			end:   utc(20, 9, 0),
			want:  nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DatesTouched(tc.start, tc.end)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("date %d: got %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestDatesTouched_ZonedInputsShareUTCDay(t *testing.T) {
	t.Parallel()

	// Authored in different zones but both instants land on the same UTC day.
	tokyo := time.FixedZone("JST", 9*60*60)
	la := time.FixedZone("PDT", -7*60*60)
	start := time.Date(2025, 5, 21, 7, 0, 0, 0, tokyo) // 2025-05-20T22:00Z
	end := time.Date(2025, 5, 20, 16, 30, 0, 0, la)    // 2025-05-20T23:30Z

	got := DatesTouched(start, end)
	if len(got) != 1 || got[0] != (Date{2025, time.May, 20}) {
		t.Fatalf("expected single UTC date 2025-05-20, got %v", got)
	}
}

func TestDateNavigation(t *testing.T) {
	t.Parallel()

	d := Date{2025, time.May, 31}
	if got, want := d.Next(), (Date{2025, time.June, 1}); got != want {
		t.Fatalf("Next = %v, want %v", got, want)
	}
	if !d.Next().After(d) || !d.Before(d.Next()) {
		t.Fatal("ordering methods disagree")
	}
	if got := d.String(); got != "2025-05-31" {
		t.Fatalf("String = %q", got)
	}

	parsed, err := ParseDate("2025-05-31")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if parsed != d {
		t.Fatalf("ParseDate = %v, want %v", parsed, d)
	}

	if _, err := ParseDate("not-a-date"); err == nil {
		t.Fatal("expected parse error")
	}
}
