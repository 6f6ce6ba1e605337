package period

import (
	"testing"
	"time"

	"milkrun/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func mustRange(t *testing.T, from, to string) Period {
	t.Helper()
	p, err := FromRange(from, to)
	require.NoError(t, err)
	return p
}

func TestLookupMonth(t *testing.T) {
	tests := []struct {
		in   string
		want time.Month
		ok   bool
	}{
		{"October", time.October, true},
		{"october", time.October, true},
		{"OCT", time.October, true},
		{"Feb", time.February, true},
		{"Sept", time.September, true},
		{"may", time.May, true},
		{"Octember", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := LookupMonth(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMonthYear(t *testing.T) {
	p, err := ParseMonthYear("October 2025")
	require.NoError(t, err)
	assert.Equal(t, date("2025-10-01"), p.Start)
	assert.Equal(t, date("2025-10-31"), p.End)
	assert.Equal(t, KindMonth, p.Kind)
	assert.Equal(t, "October 2025", p.Label)

	leap, err := ParseMonthYear("february 2024")
	require.NoError(t, err)
	assert.Equal(t, date("2024-02-29"), leap.End)
	assert.Equal(t, "February 2024", leap.Label)
}

func TestParseMonthYearErrorsNameTheField(t *testing.T) {
	tests := []struct {
		in    string
		field string
	}{
		{"October", "period"},
		{"Octember 2025", "period"},
		{"October twenty", "year"},
		{"October 25x", "year"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseMonthYear(tt.in)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParseRange(t *testing.T) {
	p, err := ParseRange("2025-10-05_to_2025-10-20")
	require.NoError(t, err)
	assert.Equal(t, date("2025-10-05"), p.Start)
	assert.Equal(t, date("2025-10-20"), p.End)
	assert.Equal(t, KindRange, p.Kind)
	assert.Equal(t, "2025-10-05_to_2025-10-20", p.Label)

	_, err = ParseRange("2025-10-20_to_2025-10-05")
	assert.Error(t, err)

	_, err = Parse("2025-10-05_to_")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Run("from and to win", func(t *testing.T) {
		p, err := Resolve("November 2025", "2025-10-01", "2025-10-15")
		require.NoError(t, err)
		assert.Equal(t, KindRange, p.Kind)
		assert.Equal(t, "2025-10-01_to_2025-10-15", p.Label)
	})

	t.Run("matching month label is kept", func(t *testing.T) {
		p, err := Resolve("October 2025", "2025-10-01", "2025-10-31")
		require.NoError(t, err)
		assert.Equal(t, KindMonth, p.Kind)
		assert.Equal(t, "October 2025", p.Label)
	})

	t.Run("period text alone", func(t *testing.T) {
		p, err := Resolve("Oct 2025", "", "")
		require.NoError(t, err)
		assert.Equal(t, date("2025-10-31"), p.End)
	})

	t.Run("nothing given", func(t *testing.T) {
		_, err := Resolve("", "", "")
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "period", verr.Field)
	})

	t.Run("half a range", func(t *testing.T) {
		_, err := Resolve("", "2025-10-01", "")
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "to", verr.Field)
	})
}

func TestOverlaps(t *testing.T) {
	october := mustRange(t, "2025-10-01", "2025-10-31")

	assert.True(t, october.Overlaps(mustRange(t, "2025-10-15", "2025-11-15")))
	assert.False(t, october.Overlaps(mustRange(t, "2025-11-01", "2025-11-30")))
	assert.True(t, october.Overlaps(mustRange(t, "2025-10-31", "2025-10-31")), "bounds are inclusive")
	assert.True(t, october.Overlaps(mustRange(t, "2025-09-01", "2025-12-31")))
	assert.False(t, october.Overlaps(mustRange(t, "2025-09-01", "2025-09-30")))

	legacy, err := Parse("October 2025")
	require.NoError(t, err)
	assert.True(t, legacy.Overlaps(mustRange(t, "2025-10-20", "2025-10-25")))
}

func TestDaysAndContains(t *testing.T) {
	p := mustRange(t, "2025-10-30", "2025-11-02")

	days := p.Days()
	require.Len(t, days, 4)
	assert.Equal(t, date("2025-11-02"), days[3])

	assert.True(t, p.Contains(time.Date(2025, 11, 1, 23, 59, 0, 0, time.UTC)))
	assert.False(t, p.Contains(date("2025-11-03")))
}
