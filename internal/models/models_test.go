package models

import "testing"

func TestQueryParamsPage(t *testing.T) {
	tests := []struct {
		name       string
		params     QueryParams
		n          int
		start, end int
	}{
		{"no paging", QueryParams{}, 5, 0, 5},
		{"limit", QueryParams{Limit: 2}, 5, 0, 2},
		{"offset", QueryParams{Offset: 3}, 5, 3, 5},
		{"offset and limit", QueryParams{Offset: 1, Limit: 2}, 5, 1, 3},
		{"offset past end", QueryParams{Offset: 9}, 5, 5, 5},
		{"limit past end", QueryParams{Offset: 4, Limit: 10}, 5, 4, 5},
		{"negative offset", QueryParams{Offset: -1}, 2, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.params.Page(tt.n)
			if start != tt.start || end != tt.end {
				t.Errorf("Page(%d) = (%d, %d), want (%d, %d)", tt.n, start, end, tt.start, tt.end)
			}
		})
	}
}

func TestStoreTypeValid(t *testing.T) {
	for _, st := range []StoreType{StoreTypeMemory, StoreTypeDatabase, StoreTypeDICOMWeb} {
		if !st.Valid() {
			t.Errorf("%q should be valid", st)
		}
	}
	if StoreType("dimse").Valid() {
		t.Error("dimse should not be valid")
	}
}
