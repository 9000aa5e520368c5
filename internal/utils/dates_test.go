package utils

import (
	"testing"
	"time"
)

func TestDateRange(t *testing.T) {
	d := func(s string) time.Time {
		v, err := ParseDate(s)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	tests := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{"three nights", "2030-01-30", "2030-02-02", []string{"2030-01-30", "2030-01-31", "2030-02-01"}},
		{"single night", "2030-05-01", "2030-05-02", []string{"2030-05-01"}},
		{"empty when equal", "2030-05-01", "2030-05-01", nil},
		{"empty when reversed", "2030-05-02", "2030-05-01", nil},
		{"leap day", "2028-02-28", "2028-03-01", []string{"2028-02-28", "2028-02-29"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DateRange(d(tt.start), d(tt.end))
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if FormatDate(got[i]) != tt.want[i] {
					t.Errorf("got[%d] = %s, want %s", i, FormatDate(got[i]), tt.want[i])
				}
			}
		})
	}
}

func TestDayNormalisesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	in := time.Date(2030, 3, 4, 23, 30, 0, 0, loc)
	got := Day(in)
	if got.Location() != time.UTC || got.Hour() != 0 || got.Day() != 4 {
		t.Fatalf("Day(%v) = %v", in, got)
	}
}

func TestFutureDates(t *testing.T) {
	from := time.Date(2030, 12, 30, 15, 0, 0, 0, time.UTC)
	got := FutureDates(from, 3)
	if len(got) != 3 || FormatDate(got[2]) != "2031-01-01" {
		t.Fatalf("FutureDates = %v", got)
	}
	if len(FutureDates(from, 0)) != 0 {
		t.Fatal("expected no dates for n=0")
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("01/02/2030"); err == nil {
		t.Fatal("expected error")
	}
}
