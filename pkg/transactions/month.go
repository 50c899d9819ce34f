package transactions

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bcaldwell/moneymanager/pkg/providers"
)

var (
	ErrInvalidMonth = errors.New("invalid month format, use YYYY-MM")

	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM month
func ParseMonth(s string) (Month, error) {
	if !monthPattern.MatchString(s) {
		return Month{}, ErrInvalidMonth
	}

	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %v", ErrInvalidMonth, err)
	}

	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Range covers the first to the last day of the month
func (m Month) Range() providers.DateRange {
	start := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	return providers.DateRange{Start: start, End: start.AddDate(0, 1, -1)}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
