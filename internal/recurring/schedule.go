// Package recurring computes due dates for recurring expenses. A recurrence
// is expressed as a cron schedule derived from the entity's frequency, so
// next-occurrence math is delegated to a cron engine instead of hand-rolled
// calendar arithmetic.
package recurring

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/ledgerchat/ledgerchat/pkg/models"
)

// CronExpr translates a recurring expense into a five-field cron expression.
func CronExpr(e *models.RecurringExpense) (string, error) {
	switch e.Frequency {
	case models.FrequencyWeekly:
		weekday := e.Weekday
		if weekday < 0 || weekday > 6 {
			return "", fmt.Errorf("weekday out of range: %d", weekday)
		}
		return fmt.Sprintf("0 0 * * %d", weekday), nil

	case models.FrequencyMonthly:
		day := e.DayOfMonth
		if day == 0 {
			day = 1
		}
		if day < 1 || day > 31 {
			return "", fmt.Errorf("day of month out of range: %d", day)
		}
		return fmt.Sprintf("0 0 %d * *", day), nil

	case models.FrequencyYearly:
		day := e.DayOfMonth
		if day == 0 {
			day = 1
		}
		if day < 1 || day > 31 {
			return "", fmt.Errorf("day of month out of range: %d", day)
		}
		// Yearly anchors to the creation month.
		month := int(e.CreatedAt.Month())
		if month == 0 {
			month = 1
		}
		return fmt.Sprintf("0 0 %d %d *", day, month), nil

	default:
		return "", fmt.Errorf("unknown frequency: %q", e.Frequency)
	}
}

// Validate checks that the expense describes a schedulable recurrence.
func Validate(e *models.RecurringExpense) error {
	expr, err := CronExpr(e)
	if err != nil {
		return err
	}
	gron := gronx.New()
	if !gron.IsValid(expr) {
		return fmt.Errorf("invalid schedule %q", expr)
	}
	return nil
}

// NextDue returns the next due date strictly after from.
func NextDue(e *models.RecurringExpense, from time.Time) (time.Time, error) {
	expr, err := CronExpr(e)
	if err != nil {
		return time.Time{}, err
	}
	return gronx.NextTickAfter(expr, from, false)
}

// UpcomingDue returns the next n due dates after from, in order.
func UpcomingDue(e *models.RecurringExpense, from time.Time, n int) ([]time.Time, error) {
	out := make([]time.Time, 0, n)
	cursor := from
	for i := 0; i < n; i++ {
		next, err := NextDue(e, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		cursor = next
	}
	return out, nil
}
