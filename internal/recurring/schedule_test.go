package recurring

import (
	"testing"
	"time"

	"github.com/ledgerchat/ledgerchat/pkg/models"
)

func TestCronExpr(t *testing.T) {
	tests := []struct {
		name string
		e    models.RecurringExpense
		want string
	}{
		{
			name: "monthly on the 5th",
			e:    models.RecurringExpense{Frequency: models.FrequencyMonthly, DayOfMonth: 5},
			want: "0 0 5 * *",
		},
		{
			name: "monthly defaults to the 1st",
			e:    models.RecurringExpense{Frequency: models.FrequencyMonthly},
			want: "0 0 1 * *",
		},
		{
			name: "weekly on friday",
			e:    models.RecurringExpense{Frequency: models.FrequencyWeekly, Weekday: 5},
			want: "0 0 * * 5",
		},
		{
			name: "yearly anchored to creation month",
			e: models.RecurringExpense{
				Frequency: models.FrequencyYearly, DayOfMonth: 10,
				CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			},
			want: "0 0 10 3 *",
		},
	}
	for _, tt := range tests {
		got, err := CronExpr(&tt.e)
		if err != nil {
			t.Errorf("%s: CronExpr() error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: CronExpr() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCronExpr_Rejects(t *testing.T) {
	bad := []models.RecurringExpense{
		{Frequency: models.FrequencyMonthly, DayOfMonth: 45},
		{Frequency: models.FrequencyWeekly, Weekday: 9},
		{Frequency: "daily"},
	}
	for _, e := range bad {
		if _, err := CronExpr(&e); err == nil {
			t.Errorf("CronExpr(%+v) should fail", e)
		}
	}
}

func TestNextDue_Monthly(t *testing.T) {
	e := &models.RecurringExpense{Frequency: models.FrequencyMonthly, DayOfMonth: 5}

	from := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	got, err := NextDue(e, from)
	if err != nil {
		t.Fatalf("NextDue() error = %v", err)
	}
	if got.Day() != 5 || got.Month() != time.February {
		t.Errorf("NextDue() = %v, want Feb 5", got)
	}
}

func TestUpcomingDue_ReturnsOrderedDates(t *testing.T) {
	e := &models.RecurringExpense{Frequency: models.FrequencyMonthly, DayOfMonth: 1}

	from := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	got, err := UpcomingDue(e, from, 3)
	if err != nil {
		t.Fatalf("UpcomingDue() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("UpcomingDue() returned %d dates, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].After(got[i-1]) {
			t.Errorf("UpcomingDue() not strictly increasing: %v", got)
		}
	}
	if got[0].Day() != 1 || got[0].Month() != time.February {
		t.Errorf("First due = %v, want Feb 1", got[0])
	}
}

func TestValidate(t *testing.T) {
	ok := &models.RecurringExpense{Frequency: models.FrequencyMonthly, DayOfMonth: 28}
	if err := Validate(ok); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	bad := &models.RecurringExpense{Frequency: "fortnightly"}
	if err := Validate(bad); err == nil {
		t.Error("Validate() should fail for unknown frequency")
	}
}
