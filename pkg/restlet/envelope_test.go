package restlet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestColumnIdentifier(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		want string
	}{
		{"name preferred", Column{Name: "trandate", Label: "Date"}, "trandate"},
		{"label fallback", Column{Label: "Amount"}, "Amount"},
		{"empty", Column{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.col.Identifier(); got != tt.want {
				t.Errorf("Identifier() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessMetadata_Basic(t *testing.T) {
	resp := &Response{
		Success:      true,
		Version:      "2.2",
		Columns:      []Column{{Name: "amount"}, {Label: "Account"}},
		TotalPages:   7,
		TotalResults: 6500,
	}

	meta, err := ProcessMetadata(zerolog.Nop(), resp, "customsearch_gl", 0)
	if err != nil {
		t.Fatalf("ProcessMetadata failed: %v", err)
	}
	if meta.TotalPages != 7 || meta.TotalResults != 6500 {
		t.Errorf("metadata = %+v", meta)
	}
	if len(meta.Columns) != 2 || meta.Columns[1] != "Account" {
		t.Errorf("Columns = %v", meta.Columns)
	}
}

func TestProcessMetadata_VersionBelowMinimumWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	resp := &Response{Success: true, Version: "2.1", TotalPages: 1}
	if _, err := ProcessMetadata(logger, resp, "s", 0); err != nil {
		t.Fatalf("ProcessMetadata failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "below 2.2") {
		t.Errorf("expected compatibility warning, got %s", out)
	}
	if !strings.Contains(strings.ToLower(out), "period id conversion") {
		t.Errorf("warning should mention period ID conversion, got %s", out)
	}
}

func TestProcessMetadata_MissingVersionTolerated(t *testing.T) {
	resp := &Response{Success: true, TotalPages: 1}
	if _, err := ProcessMetadata(zerolog.Nop(), resp, "s", 0); err != nil {
		t.Errorf("missing version must not fail: %v", err)
	}
}

func TestProcessMetadata_VersionLoggedOnlyOnFirstPage(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	resp := &Response{Success: true, Version: "2.2", TotalPages: 2}

	if _, err := ProcessMetadata(logger, resp, "s", 0); err != nil {
		t.Fatalf("ProcessMetadata failed: %v", err)
	}
	if !strings.Contains(buf.String(), "RESTlet version") {
		t.Error("page 0 should log the version")
	}

	buf.Reset()
	if _, err := ProcessMetadata(logger, resp, "s", 1); err != nil {
		t.Fatalf("ProcessMetadata failed: %v", err)
	}
	if strings.Contains(buf.String(), "RESTlet version") {
		t.Error("later pages must not repeat the version log")
	}
}

func TestProcessMetadata_PeriodWarningsTruncated(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	notFound := []string{
		"Jan 2099", "Feb 2099", "Mar 2099", "Apr 2099", "May 2099",
		"Jun 2099", "Jul 2099", "Aug 2099", "Sep 2099", "Oct 2099", "Nov 2099",
	}
	resp := &Response{
		Success:        true,
		Version:        "2.2",
		TotalPages:     1,
		FilterWarnings: []FilterWarning{{Type: "periodNames", NotFound: notFound}},
	}

	if _, err := ProcessMetadata(logger, resp, "s", 0); err != nil {
		t.Fatalf("ProcessMetadata failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "11 period(s) not found") {
		t.Errorf("expected count of missing periods, got %s", out)
	}
	if !strings.Contains(out, "May 2099") {
		t.Errorf("expected fifth period listed, got %s", out)
	}
	if strings.Contains(out, "Jun 2099") {
		t.Errorf("sixth period should be truncated, got %s", out)
	}
	if !strings.Contains(out, "...") {
		t.Errorf("expected truncation indicator, got %s", out)
	}
	if !strings.Contains(strings.ToLower(out), "fall back to date range") {
		t.Errorf("expected fallback hint, got %s", out)
	}
}

func TestProcessMetadata_DateRangeAndGenericWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	resp := &Response{
		Success:    true,
		Version:    "2.2",
		TotalPages: 1,
		FilterWarnings: []FilterWarning{
			{Type: "dateRange", Message: "Date range filter could not be applied"},
			{Type: "unknown", Message: "Some filter issue occurred"},
		},
	}

	if _, err := ProcessMetadata(logger, resp, "s", 0); err != nil {
		t.Fatalf("ProcessMetadata failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Date range filter warning") {
		t.Errorf("expected date range warning, got %s", out)
	}
	if !strings.Contains(out, "Some filter issue occurred") {
		t.Errorf("expected generic warning message, got %s", out)
	}
}

func TestProcessMetadata_FilterErrorFatal(t *testing.T) {
	resp := &Response{
		Success:      true,
		Version:      "2.2",
		TotalPages:   1,
		FilterErrors: []FilterError{{Type: "department", Message: "Department filter failed"}},
	}

	_, err := ProcessMetadata(zerolog.Nop(), resp, "s", 0)
	if err == nil {
		t.Fatal("filter errors must abort")
	}
	if !strings.Contains(err.Error(), "Department filter failed") {
		t.Errorf("error should carry the server message: %v", err)
	}
}

func TestIsRateLimitMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"SSS_REQUEST_LIMIT_EXCEEDED", true},
		{"sss_request_limit_exceeded", true},
		{"Concurrent request limit exceeded", true},
		{"request limit reached", true},
		{"INVALID_SEARCH_ID", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isRateLimitMessage(tt.msg); got != tt.want {
			t.Errorf("isRateLimitMessage(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantClass ErrorClass
		wantOK    bool
	}{
		{"success", 200, `{"success": true, "results": []}`, "", true},
		{"rate limit envelope", 200, `{"success": false, "error": "SSS_REQUEST_LIMIT_EXCEEDED"}`, ErrorClassRateLimit, false},
		{"fatal envelope", 200, `{"success": false, "error": "UNEXPECTED_ERROR"}`, ErrorClassFatal, false},
		{"malformed json", 200, `{"success": tr`, ErrorClassTransport, false},
		{"unauthorized", 401, ``, ErrorClassAuth, false},
		{"too many requests", 429, ``, ErrorClassRateLimit, false},
		{"forbidden", 403, ``, ErrorClassTransport, false},
		{"bad request", 400, ``, ErrorClassTransport, false},
		{"server error", 503, ``, ErrorClassTransport, false},
		{"unexpected redirect", 302, ``, ErrorClassFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, perr := classify(4, tt.status, []byte(tt.body))
			if tt.wantOK {
				if perr != nil {
					t.Fatalf("classify() error = %v, want success", perr)
				}
				if resp == nil {
					t.Fatal("classify() returned nil response on success")
				}
				return
			}
			if perr == nil {
				t.Fatal("classify() succeeded, want error")
			}
			if perr.Class != tt.wantClass {
				t.Errorf("class = %s, want %s", perr.Class, tt.wantClass)
			}
			if perr.Page != 4 {
				t.Errorf("page = %d, want 4", perr.Page)
			}
		})
	}
}
