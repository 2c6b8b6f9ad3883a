package nlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativeDays maps relative date words (PT and EN) to a day offset from now.
var relativeDays = map[string]int{
	"hoje":      0,
	"today":     0,
	"ontem":     -1,
	"yesterday": -1,
	"anteontem": -2,
	"amanhã":    1,
	"amanha":    1,
	"tomorrow":  1,
}

var (
	fullDateRe    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`)
	partialDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	isoDateRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// ResolveDate turns a date expression into a concrete date, relative to now.
//
// Accepted forms: relative words ("ontem", "tomorrow"), ISO "2025-01-14",
// full "15/03/2025" (day first, Brazilian order), and partial "15/3".
//
// Partial dates assume the current year; when that day has already passed
// it rolls forward to the same day next year. Due dates in this domain are
// forward-looking, and the roll keeps resolution deterministic instead of
// leaving it to model guesswork.
func ResolveDate(raw string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if offset, ok := relativeDays[s]; ok {
		return midnight(now.AddDate(0, 0, offset)), nil
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return makeDate(year, month, day)
	}

	if m := fullDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return makeDate(year, month, day)
	}

	if m := partialDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		resolved, err := makeDate(now.Year(), month, day)
		if err != nil {
			return time.Time{}, err
		}
		if resolved.Before(midnight(now)) {
			resolved = resolved.AddDate(1, 0, 0)
		}
		return resolved, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date: %q", raw)
}

// IsRelativeDateWord reports whether s is one of the known relative words.
func IsRelativeDateWord(s string) bool {
	_, ok := relativeDays[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func makeDate(year, month, day int) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid date: %02d/%02d/%d", day, month, year)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31/02 → 03/03); treat that as invalid.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid date: %02d/%02d/%d", day, month, year)
	}
	return t, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
