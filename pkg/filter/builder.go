package filter

import (
	"time"

	"github.com/rs/zerolog"
)

// netsuiteDateFormat is the date layout NetSuite expects in filter
// parameters.
const netsuiteDateFormat = "01/02/2006"

// PeriodRange converts a date range to accounting period names in
// "MMM YYYY" form, matching the accountingPeriod_periodname field.
// Returns nil when the range is inverted.
func PeriodRange(start, end time.Time) []string {
	if end.Before(start) {
		return nil
	}

	var names []string
	current := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	for !current.After(last) {
		names = append(names, current.Format("Jan 2006"))
		current = current.AddDate(0, 1, 0)
	}
	return names
}

// Components are the raw filter inputs produced by an upstream query
// translator.
type Components struct {
	Start            time.Time
	End              time.Time
	Departments      []string
	AccountPrefixes  []string
	AccountName      string
	TransactionTypes []string
	Subsidiary       string
}

// Builder assembles Params from query components. Period names are
// preferred for date filtering; the raw date range is only kept as a
// fallback when no period names can be generated.
type Builder struct {
	dateField string
	logger    zerolog.Logger
}

// NewBuilder creates a builder using the given fallback date field.
// An empty dateField selects DefaultDateField.
func NewBuilder(dateField string, logger zerolog.Logger) *Builder {
	if dateField == "" {
		dateField = DefaultDateField
	}
	return &Builder{dateField: dateField, logger: logger}
}

// Build translates components into filter parameters. Aggregate rows
// are always excluded to prevent double counting.
func (b *Builder) Build(c Components) Params {
	p := Params{
		DateField:     b.dateField,
		ExcludeTotals: true,
	}

	if !c.Start.IsZero() && !c.End.IsZero() {
		if names := PeriodRange(c.Start, c.End); len(names) > 0 {
			p.PeriodNames = names
			b.logger.Debug().Strs("periods", names).Msg("Accounting period filter")
		} else {
			p.StartDate = c.Start.Format(netsuiteDateFormat)
			p.EndDate = c.End.Format(netsuiteDateFormat)
			b.logger.Debug().
				Str("start", p.StartDate).
				Str("end", p.EndDate).
				Msg("Date range filter (period fallback)")
		}
	}

	if len(c.Departments) > 0 {
		p.Departments = append([]string(nil), c.Departments...)
	}
	if len(c.AccountPrefixes) > 0 {
		p.AccountPrefixes = append([]string(nil), c.AccountPrefixes...)
	}
	p.AccountName = c.AccountName
	if len(c.TransactionTypes) > 0 {
		p.TransactionTypes = append([]string(nil), c.TransactionTypes...)
	}
	p.Subsidiary = c.Subsidiary

	b.logger.Info().Str("filters", p.Describe()).Msg("Built server-side filters")

	return p
}
