package pagination

import (
	"encoding/json"
	"time"

	"github.com/ledgerline/netsuite-restlet-client/pkg/restlet"
)

// AggregatedResult is the assembled output of one retrieval: all rows
// in strict page-index order. Owned by the caller once returned; the
// engine never mutates it afterwards.
type AggregatedResult struct {
	Rows        []restlet.Row `json:"rows"`
	Columns     []string      `json:"columns"`
	RowCount    int           `json:"row_count"`
	Duration    time.Duration `json:"duration_ns"`
	SourceID    string        `json:"source_id"`
	RetrievedAt time.Time     `json:"retrieved_at"`
}

// NumericStats summarizes one numeric column.
type NumericStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
}

// Summary produces a compact description of the result for downstream
// consumers: row count, columns and per-column numeric statistics.
func (r *AggregatedResult) Summary() map[string]any {
	summary := map[string]any{
		"source_id":    r.SourceID,
		"row_count":    r.RowCount,
		"columns":      r.Columns,
		"retrieved_at": r.RetrievedAt,
	}

	if len(r.Rows) == 0 {
		return summary
	}

	stats := make(map[string]NumericStats)
	for _, col := range r.Columns {
		var s NumericStats
		for _, row := range r.Rows {
			v, ok := asFloat(row[col])
			if !ok {
				continue
			}
			if s.Count == 0 || v < s.Min {
				s.Min = v
			}
			if s.Count == 0 || v > s.Max {
				s.Max = v
			}
			s.Sum += v
			s.Count++
		}
		if s.Count > 0 {
			s.Avg = s.Sum / float64(s.Count)
			stats[col] = s
		}
	}
	if len(stats) > 0 {
		summary["numeric_stats"] = stats
	}

	return summary
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
