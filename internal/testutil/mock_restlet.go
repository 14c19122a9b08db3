// Package testutil provides testing utilities for the RESTlet client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// PageScript describes the scripted behavior of one page: fail the
// first FailCount requests with FailStatus/FailBody, then serve rows.
type PageScript struct {
	Rows       []map[string]any
	FailCount  int
	FailStatus int
	FailBody   string
	Delay      time.Duration
}

// MockRESTlet is a configurable saved-search endpoint for tests. It
// speaks the paginated JSON envelope protocol and tracks per-page
// request counts.
type MockRESTlet struct {
	server *httptest.Server

	mu           sync.Mutex
	pages        map[int]*PageScript
	totalResults int
	columns      []map[string]string
	version      string
	warnings     []map[string]any
	filterErrors []map[string]any

	requestCounts map[int]int
	authHeaders   []string
	lastQuery     map[string]string
}

// NewMockRESTlet creates a mock server with the given column set.
func NewMockRESTlet(columns ...string) *MockRESTlet {
	m := &MockRESTlet{
		pages:         make(map[int]*PageScript),
		requestCounts: make(map[int]int),
		version:       "2.2",
	}
	for _, c := range columns {
		m.columns = append(m.columns, map[string]string{"name": c})
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock server URL.
func (m *MockRESTlet) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRESTlet) Close() {
	m.server.Close()
}

// SetVersion overrides the protocol version reported in envelopes.
func (m *MockRESTlet) SetVersion(v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = v
}

// SetPage scripts the behavior of one page index.
func (m *MockRESTlet) SetPage(page int, script PageScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = &script
	m.recountLocked()
}

// SetPages populates pages 0..len(rowsPerPage)-1 with generated rows.
func (m *MockRESTlet) SetPages(rowsPerPage ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = make(map[int]*PageScript)
	for page, n := range rowsPerPage {
		rows := make([]map[string]any, n)
		for i := range rows {
			rows[i] = map[string]any{
				"page": page,
				"row":  i,
				"id":   fmt.Sprintf("p%d-r%d", page, i),
			}
		}
		m.pages[page] = &PageScript{Rows: rows}
	}
	m.recountLocked()
}

// AddFilterWarning appends a filterWarnings entry to every envelope.
func (m *MockRESTlet) AddFilterWarning(warningType string, notFound []string, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := map[string]any{"type": warningType}
	if len(notFound) > 0 {
		w["notFound"] = notFound
	}
	if message != "" {
		w["message"] = message
	}
	m.warnings = append(m.warnings, w)
}

// AddFilterError appends a fatal filterErrors entry to every envelope.
func (m *MockRESTlet) AddFilterError(filterType, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filterErrors = append(m.filterErrors, map[string]any{
		"type":    filterType,
		"message": message,
	})
}

// RequestCount returns how many requests were made for a page.
func (m *MockRESTlet) RequestCount(page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCounts[page]
}

// TotalRequests returns the request count across all pages.
func (m *MockRESTlet) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.requestCounts {
		total += n
	}
	return total
}

// AuthHeaders returns the Authorization header of every request in
// arrival order.
func (m *MockRESTlet) AuthHeaders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.authHeaders...)
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockRESTlet) LastQuery() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.lastQuery))
	for k, v := range m.lastQuery {
		out[k] = v
	}
	return out
}

func (m *MockRESTlet) recountLocked() {
	total := 0
	for _, s := range m.pages {
		total += len(s.Rows)
	}
	m.totalResults = total
}

func (m *MockRESTlet) handle(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	m.mu.Lock()
	m.requestCounts[page]++
	count := m.requestCounts[page]
	m.authHeaders = append(m.authHeaders, r.Header.Get("Authorization"))
	m.lastQuery = make(map[string]string)
	for k := range r.URL.Query() {
		m.lastQuery[k] = r.URL.Query().Get(k)
	}
	script := m.pages[page]
	totalPages := len(m.pages)
	totalResults := m.totalResults
	version := m.version
	warnings := m.warnings
	filterErrors := m.filterErrors
	columns := m.columns
	m.mu.Unlock()

	if script == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if script.Delay > 0 {
		time.Sleep(script.Delay)
	}

	if count <= script.FailCount {
		status := script.FailStatus
		if status == 0 {
			status = http.StatusOK
		}
		body := script.FailBody
		if body == "" {
			body = `{"success": false, "error": "SSS_REQUEST_LIMIT_EXCEEDED"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
		return
	}

	envelope := map[string]any{
		"success":      true,
		"version":      version,
		"columns":      columns,
		"results":      script.Rows,
		"totalPages":   totalPages,
		"totalResults": totalResults,
	}
	if len(warnings) > 0 {
		envelope["filterWarnings"] = warnings
	}
	if len(filterErrors) > 0 {
		envelope["filterErrors"] = filterErrors
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(envelope)
}
