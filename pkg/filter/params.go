// Package filter describes server-side filter parameters for RESTlet
// saved-search calls and their query-string encoding.
package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultDateField is the transaction date field used for fallback
// date-range filtering when no accounting periods are given.
const DefaultDateField = "trandate"

// Params is an immutable description of server-side filters. A zero
// value means an unfiltered full fetch, which is valid and expected for
// registry-rebuild passes.
type Params struct {
	// PeriodNames holds accounting period names like "Jan 2024". They
	// are filtered client-side and never sent to the RESTlet; the date
	// range below is only used as a fallback when no periods are set.
	PeriodNames []string

	// StartDate/EndDate in MM/DD/YYYY form, applied to DateField.
	StartDate string
	EndDate   string
	DateField string

	Departments      []string
	AccountPrefixes  []string
	AccountName      string
	TransactionTypes []string
	Subsidiary       string

	// ExcludeTotals drops server-side aggregate rows to prevent
	// double counting.
	ExcludeTotals bool
}

// QueryParams converts the filters to RESTlet query parameters. The
// mapping is pure and independent of field ordering; list values are
// comma-joined.
func (p Params) QueryParams() url.Values {
	params := url.Values{}

	// Server-side period filtering is unreliable; periods are matched
	// client-side against accountingPeriod_periodname instead. Date
	// range only applies when no periods were resolved.
	if len(p.PeriodNames) == 0 && p.StartDate != "" && p.EndDate != "" {
		params.Set("startDate", p.StartDate)
		params.Set("endDate", p.EndDate)
		params.Set("dateField", p.dateField())
	}

	if len(p.Departments) > 0 {
		params.Set("department", strings.Join(p.Departments, ","))
	}
	if len(p.AccountPrefixes) > 0 {
		params.Set("accountPrefix", strings.Join(p.AccountPrefixes, ","))
	}
	if p.AccountName != "" {
		params.Set("accountName", p.AccountName)
	}
	if len(p.TransactionTypes) > 0 {
		params.Set("transactionType", strings.Join(p.TransactionTypes, ","))
	}
	if p.Subsidiary != "" {
		params.Set("subsidiary", p.Subsidiary)
	}
	if p.ExcludeTotals {
		params.Set("excludeTotals", "true")
	}

	return params
}

// HasFilters reports whether any filter field is set.
func (p Params) HasFilters() bool {
	return len(p.PeriodNames) > 0 ||
		(p.StartDate != "" && p.EndDate != "") ||
		len(p.Departments) > 0 ||
		len(p.AccountPrefixes) > 0 ||
		p.AccountName != "" ||
		len(p.TransactionTypes) > 0 ||
		p.Subsidiary != ""
}

// Describe renders a human-readable filter summary for logs.
func (p Params) Describe() string {
	var parts []string

	if len(p.PeriodNames) > 0 {
		parts = append(parts, "Accounting Periods: "+strings.Join(p.PeriodNames, ", "))
	} else if p.StartDate != "" && p.EndDate != "" {
		parts = append(parts, fmt.Sprintf("Date: %s to %s", p.StartDate, p.EndDate))
	}
	if len(p.Departments) > 0 {
		parts = append(parts, "Departments: "+strings.Join(p.Departments, ", "))
	}
	if len(p.AccountPrefixes) > 0 {
		parts = append(parts, "Account prefixes: "+strings.Join(p.AccountPrefixes, ", "))
	}
	if p.AccountName != "" {
		parts = append(parts, "Account name contains: "+p.AccountName)
	}
	if len(p.TransactionTypes) > 0 {
		parts = append(parts, "Transaction types: "+strings.Join(p.TransactionTypes, ", "))
	}
	if p.Subsidiary != "" {
		parts = append(parts, "Subsidiary: "+p.Subsidiary)
	}

	if len(parts) == 0 {
		return "No filters"
	}
	return strings.Join(parts, "; ")
}

// CanonicalString builds a deterministic representation of the filters
// for cache-key derivation: list fields are sorted so that semantically
// identical filters canonicalize identically regardless of construction
// order.
func (p Params) CanonicalString() string {
	var b strings.Builder

	writeList := func(name string, values []string) {
		sorted := append([]string(nil), values...)
		sort.Strings(sorted)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(sorted, ","))
		b.WriteByte('|')
	}

	writeList("periods", p.PeriodNames)
	b.WriteString("start=" + p.StartDate + "|")
	b.WriteString("end=" + p.EndDate + "|")
	b.WriteString("dateField=" + p.dateField() + "|")
	writeList("departments", p.Departments)
	writeList("accountPrefixes", p.AccountPrefixes)
	b.WriteString("accountName=" + p.AccountName + "|")
	writeList("transactionTypes", p.TransactionTypes)
	b.WriteString("subsidiary=" + p.Subsidiary + "|")
	b.WriteString(fmt.Sprintf("excludeTotals=%t", p.ExcludeTotals))

	return b.String()
}

func (p Params) dateField() string {
	if p.DateField == "" {
		return DefaultDateField
	}
	return p.DateField
}
