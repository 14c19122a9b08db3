package cache

import (
	"strings"
	"testing"

	"github.com/ledgerline/netsuite-restlet-client/pkg/filter"
)

func TestKeyHash_IndependentOfListOrder(t *testing.T) {
	a := Key{
		SearchID: "customsearch_gl_detail",
		Filters: filter.Params{
			Departments:      []string{"Marketing", "Sales", "Engineering"},
			AccountPrefixes:  []string{"6", "5"},
			TransactionTypes: []string{"Journal", "Bill"},
		},
	}
	b := Key{
		SearchID: "customsearch_gl_detail",
		Filters: filter.Params{
			Departments:      []string{"Sales", "Engineering", "Marketing"},
			AccountPrefixes:  []string{"5", "6"},
			TransactionTypes: []string{"Bill", "Journal"},
		},
	}

	if a.Hash() != b.Hash() {
		t.Errorf("hashes differ for logically equal filters:\n%s\n%s", a.Canonical(), b.Canonical())
	}
}

func TestKeyHash_DistinguishesFilters(t *testing.T) {
	base := Key{SearchID: "s", Filters: filter.Params{Departments: []string{"Sales"}}}

	tests := []struct {
		name string
		key  Key
	}{
		{"different search", Key{SearchID: "other", Filters: base.Filters}},
		{"different department", Key{SearchID: "s", Filters: filter.Params{Departments: []string{"Marketing"}}}},
		{"extra filter", Key{SearchID: "s", Filters: filter.Params{Departments: []string{"Sales"}, Subsidiary: "2"}}},
		{"no filters", Key{SearchID: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key.Hash() == base.Hash() {
				t.Errorf("hash collision between %q and %q", tt.key.Canonical(), base.Canonical())
			}
		})
	}
}

func TestKeyString_Format(t *testing.T) {
	k := Key{SearchID: "customsearch_gl"}
	s := k.String()

	if !strings.HasPrefix(s, "restlet:customsearch_gl:") {
		t.Errorf("String() = %q", s)
	}
	if len(k.Hash()) != 64 {
		t.Errorf("Hash() length = %d, want 64", len(k.Hash()))
	}
}
