// Package restlet implements the paginated saved-search protocol spoken
// by the NetSuite RESTlet endpoint: envelope parsing, outcome
// classification and per-page retry with exponential backoff.
package restlet

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

// minSupportedVersion is the lowest RESTlet protocol version with full
// filter-fallback support. Older deployments still work but are logged
// as a compatibility warning.
const minSupportedVersion = "2.2"

// Row is one result row keyed by column identifier.
type Row = map[string]any

// Column identifies a result column. The RESTlet reports either an
// internal name or a display label depending on search configuration.
type Column struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Identifier returns the preferred column identifier.
func (c Column) Identifier() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Label
}

// FilterWarning is a non-fatal server-side condition where a requested
// filter value could not be applied exactly.
type FilterWarning struct {
	Type     string   `json:"type"`
	NotFound []string `json:"notFound,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// FilterError is a fatal server-side filter failure.
type FilterError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Response is the JSON envelope returned for every page.
type Response struct {
	Success        bool            `json:"success"`
	Version        string          `json:"version,omitempty"`
	Columns        []Column        `json:"columns"`
	Results        []Row           `json:"results"`
	TotalPages     int             `json:"totalPages"`
	TotalResults   int             `json:"totalResults"`
	FiltersApplied int             `json:"filtersApplied,omitempty"`
	FilterWarnings []FilterWarning `json:"filterWarnings,omitempty"`
	FilterErrors   []FilterError   `json:"filterErrors,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorDetails   json.RawMessage `json:"errorDetails,omitempty"`
	ErrorStack     json.RawMessage `json:"errorStack,omitempty"`
}

// ColumnNames resolves the column identifiers in declaration order.
func (r *Response) ColumnNames() []string {
	names := make([]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		names = append(names, c.Identifier())
	}
	return names
}

// Metadata is extracted once from the page-0 envelope and drives the
// orchestrator's scheduling decisions.
type Metadata struct {
	TotalPages   int
	TotalResults int
	Columns      []string
	Version      string
	Warnings     []FilterWarning
}

// ProcessMetadata extracts page-0 metadata, logging protocol version
// and filter warnings. Filter errors are fatal and returned as a
// *FilterFatalError. Version and warnings are only logged for page 0
// to avoid per-page spam.
func ProcessMetadata(logger zerolog.Logger, resp *Response, searchID string, page int) (*Metadata, error) {
	if page == 0 {
		logVersion(logger, resp.Version, searchID)
		for _, w := range resp.FilterWarnings {
			logFilterWarning(logger, w)
		}
	}

	if len(resp.FilterErrors) > 0 {
		fe := resp.FilterErrors[0]
		logger.Error().
			Str("search_id", searchID).
			Str("filter_type", fe.Type).
			Str("message", fe.Message).
			Msg("RESTlet filter error")
		return nil, &FilterFatalError{Type: fe.Type, Message: fe.Message}
	}

	return &Metadata{
		TotalPages:   resp.TotalPages,
		TotalResults: resp.TotalResults,
		Columns:      resp.ColumnNames(),
		Version:      resp.Version,
		Warnings:     resp.FilterWarnings,
	}, nil
}

func logVersion(logger zerolog.Logger, version, searchID string) {
	if version == "" {
		logger.Debug().Str("search_id", searchID).Msg("RESTlet version not reported")
		return
	}

	logger.Info().Str("search_id", searchID).Str("version", version).Msg("RESTlet version")

	if version < minSupportedVersion {
		logger.Warn().
			Str("version", version).
			Str("min_supported", minSupportedVersion).
			Msg("RESTlet version below 2.2 - period ID conversion and filter fallbacks may be unavailable")
	}
}

// maxListedWarnings caps how many missing filter values are spelled out
// in a single log line.
const maxListedWarnings = 5

func logFilterWarning(logger zerolog.Logger, w FilterWarning) {
	switch w.Type {
	case "periodNames":
		notFound := w.NotFound
		suffix := ""
		if len(notFound) > maxListedWarnings {
			notFound = notFound[:maxListedWarnings]
			suffix = ", ..."
		}
		logger.Warn().
			Int("count", len(w.NotFound)).
			Msgf("%d period(s) not found: %s%s - will fall back to date range filtering",
				len(w.NotFound), strings.Join(notFound, ", "), suffix)
	case "dateRange":
		logger.Warn().Str("message", w.Message).Msg("Date range filter warning")
	default:
		logger.Warn().
			Str("type", w.Type).
			Str("message", w.Message).
			Msg("Filter warning")
	}
}
