// Package period normalizes billing periods. An invoice period is stored
// either as a calendar month label ("October 2025") or as a date range label
// ("2025-10-01_to_2025-10-31"); both become an inclusive [Start, End] pair
// of calendar dates as soon as they enter the system.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"milkrun/internal/apperr"
)

// Kind tells how a period was originally requested.
type Kind string

const (
	KindMonth Kind = "month"
	KindRange Kind = "range"
)

// DateLayout is the layout of business dates and range bounds.
const DateLayout = "2006-01-02"

const rangeSeparator = "_to_"

// Period is an inclusive range of calendar dates. Start and End are
// midnight UTC.
type Period struct {
	Start time.Time
	End   time.Time
	Kind  Kind
	Label string
}

var months = []struct {
	name  string
	short string
}{
	{"january", "jan"},
	{"february", "feb"},
	{"march", "mar"},
	{"april", "apr"},
	{"may", "may"},
	{"june", "jun"},
	{"july", "jul"},
	{"august", "aug"},
	{"september", "sep"},
	{"october", "oct"},
	{"november", "nov"},
	{"december", "dec"},
}

// LookupMonth resolves an English month name or three letter abbreviation,
// ignoring case.
func LookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, m := range months {
		if name == m.name || name == m.short || (name == "sept" && m.short == "sep") {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// Month returns the period covering a whole calendar month.
func Month(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return Period{
		Start: start,
		End:   end,
		Kind:  KindMonth,
		Label: fmt.Sprintf("%s %d", month.String(), year),
	}
}

// ParseMonthYear parses the legacy "MonthName Year" form.
func ParseMonthYear(text string) (Period, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Period{}, apperr.Validation("period", `must be "Month Year" or "YYYY-MM-DD_to_YYYY-MM-DD"`)
	}
	month, ok := LookupMonth(fields[0])
	if !ok {
		return Period{}, apperr.Validation("period", fmt.Sprintf("unknown month %q", fields[0]))
	}
	year, err := strconv.Atoi(fields[1])
	if err != nil || year < 1900 || year > 9999 {
		return Period{}, apperr.Validation("year", fmt.Sprintf("invalid year %q", fields[1]))
	}
	return Month(year, month), nil
}

// ParseRange parses the "YYYY-MM-DD_to_YYYY-MM-DD" form.
func ParseRange(text string) (Period, error) {
	parts := strings.Split(strings.TrimSpace(text), rangeSeparator)
	if len(parts) != 2 {
		return Period{}, apperr.Validation("period", `must be "YYYY-MM-DD_to_YYYY-MM-DD"`)
	}
	return FromRange(parts[0], parts[1])
}

// Parse accepts either stored period form.
func Parse(text string) (Period, error) {
	if strings.Contains(text, rangeSeparator) {
		return ParseRange(text)
	}
	return ParseMonthYear(text)
}

// FromRange builds a range period from two YYYY-MM-DD dates.
func FromRange(from, to string) (Period, error) {
	start, err := ParseDate(from)
	if err != nil {
		return Period{}, apperr.Validation("from", "must be a YYYY-MM-DD date")
	}
	end, err := ParseDate(to)
	if err != nil {
		return Period{}, apperr.Validation("to", "must be a YYYY-MM-DD date")
	}
	return Between(start, end)
}

// Between builds a range period from two dates.
func Between(start, end time.Time) (Period, error) {
	start, end = Truncate(start), Truncate(end)
	if end.Before(start) {
		return Period{}, apperr.Validation("to", "must not be before from")
	}
	return Period{
		Start: start,
		End:   end,
		Kind:  KindRange,
		Label: start.Format(DateLayout) + rangeSeparator + end.Format(DateLayout),
	}, nil
}

// Resolve normalizes the period part of an invoice request. An explicit
// from/to pair wins over the period text; the text is kept as the label
// only when it describes exactly the same dates.
func Resolve(text, from, to string) (Period, error) {
	text = strings.TrimSpace(text)
	if from != "" || to != "" {
		if from == "" {
			return Period{}, apperr.Validation("from", "is required when to is set")
		}
		if to == "" {
			return Period{}, apperr.Validation("to", "is required when from is set")
		}
		p, err := FromRange(from, to)
		if err != nil {
			return Period{}, err
		}
		if text != "" {
			if labelled, err := Parse(text); err == nil && labelled.Equal(p) {
				return labelled, nil
			}
		}
		return p, nil
	}
	if text == "" {
		return Period{}, apperr.Validation("period", "period or from/to is required")
	}
	return Parse(text)
}

// ParseDate parses a YYYY-MM-DD business date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// Truncate drops the clock part of t, keeping its calendar date.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Equal reports whether both periods cover the same dates.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// Overlaps is the inclusive interval test: p.Start <= o.End && p.End >= o.Start.
func (p Period) Overlaps(other Period) bool {
	return !p.Start.After(other.End) && !p.End.Before(other.Start)
}

// Contains reports whether the calendar date of t lies in the period.
func (p Period) Contains(t time.Time) bool {
	day := Truncate(t)
	return !day.Before(p.Start) && !day.After(p.End)
}

// Days returns every date in the period in order.
func (p Period) Days() []time.Time {
	var days []time.Time
	for day := p.Start; !day.After(p.End); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

// From and To are the bounds in request form.
func (p Period) From() string { return p.Start.Format(DateLayout) }
func (p Period) To() string   { return p.End.Format(DateLayout) }

func (p Period) String() string {
	return p.Label
}
