package period

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type Range string

const (
	FirstHalf  Range = "first_half"
	SecondHalf Range = "second_half"
	FullMonth  Range = "full_month"
)

// lastDayOfFirstHalf is the final day included in FirstHalf.
const lastDayOfFirstHalf = 15

func ParseRange(raw string) (Range, error) {
	switch Range(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FullMonth:
		return FullMonth, nil
	case FirstHalf:
		return FirstHalf, nil
	case SecondHalf:
		return SecondHalf, nil
	default:
		return "", fmt.Errorf("unknown range %q", raw)
	}
}

type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth accepts "YYYY-MM".
func ParseMonth(raw string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: expected YYYY-MM", raw)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last calendar day of the month.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

// Bounds returns the inclusive first and last day covered by r within m.
func Bounds(m Month, r Range) (time.Time, time.Time) {
	start, end := m.Start(), m.End()
	switch r {
	case FirstHalf:
		end = time.Date(m.Year, m.Month, lastDayOfFirstHalf, 0, 0, 0, 0, time.UTC)
	case SecondHalf:
		start = time.Date(m.Year, m.Month, lastDayOfFirstHalf+1, 0, 0, 0, 0, time.UTC)
	}
	return start, end
}

// BoundStrings is Bounds formatted as YYYY-MM-DD, ready for store filters.
func BoundStrings(m Month, r Range) (string, string) {
	start, end := Bounds(m, r)
	return start.Format(dateLayout), end.Format(dateLayout)
}

// ParseDate reads a YYYY-MM-DD date, also tolerating a trailing time part
// such as "2025-02-16T00:00:00Z". ok is false for empty or malformed input.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(dateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, raw[:len(dateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Contains reports whether the date string falls within r of m. Unparsable
// dates are never contained.
func Contains(m Month, r Range, date string) bool {
	t, ok := ParseDate(date)
	if !ok {
		return false
	}
	start, end := Bounds(m, r)
	return !t.Before(start) && !t.After(end)
}

// Filter keeps the items whose date falls within r of m, preserving order.
func Filter[T any](items []T, dateFn func(T) string, m Month, r Range) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Contains(m, r, dateFn(item)) {
			out = append(out, item)
		}
	}
	return out
}
