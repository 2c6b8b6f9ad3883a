package nlp

import (
	"testing"
	"time"
)

// now is pinned so relative words resolve deterministically.
var testNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func TestResolveDate_RelativeWords(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"hoje", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"today", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"ontem", time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)},
		{"yesterday", time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)},
		{"anteontem", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		{"amanhã", time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)},
		{"amanha", time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)},
		{"tomorrow", time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ResolveDate(tt.in, testNow)
		if err != nil {
			t.Errorf("ResolveDate(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ResolveDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveDate_Explicit(t *testing.T) {
	got, err := ResolveDate("15/03/2025", testNow)
	if err != nil {
		t.Fatalf("ResolveDate() error = %v", err)
	}
	if want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ResolveDate(\"15/03/2025\") = %v, want %v", got, want)
	}

	got, _ = ResolveDate("2025-01-14", testNow)
	if want := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ResolveDate(\"2025-01-14\") = %v, want %v", got, want)
	}

	// Two-digit years land in the 2000s.
	got, _ = ResolveDate("1/2/26", testNow)
	if want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ResolveDate(\"1/2/26\") = %v, want %v", got, want)
	}
}

func TestResolveDate_PartialAssumesCurrentYear(t *testing.T) {
	// 15/3 has not happened yet on 2025-01-15 → this year.
	got, err := ResolveDate("15/3", testNow)
	if err != nil {
		t.Fatalf("ResolveDate() error = %v", err)
	}
	if want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ResolveDate(\"15/3\") = %v, want %v", got, want)
	}
}

func TestResolveDate_PartialRollsForwardWhenPast(t *testing.T) {
	// 10/1 already passed on 2025-01-15 → next year.
	got, err := ResolveDate("10/1", testNow)
	if err != nil {
		t.Fatalf("ResolveDate() error = %v", err)
	}
	if want := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ResolveDate(\"10/1\") = %v, want %v", got, want)
	}
}

func TestResolveDate_Rejects(t *testing.T) {
	for _, in := range []string{"", "semana que vem", "31/02/2025", "40/1", "15/13"} {
		if got, err := ResolveDate(in, testNow); err == nil {
			t.Errorf("ResolveDate(%q) = %v, want error", in, got)
		}
	}
}

func TestIsRelativeDateWord(t *testing.T) {
	if !IsRelativeDateWord("Ontem") {
		t.Error("IsRelativeDateWord(\"Ontem\") = false, want true")
	}
	if IsRelativeDateWord("15/3") {
		t.Error("IsRelativeDateWord(\"15/3\") = true, want false")
	}
}
