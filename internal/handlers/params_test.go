package handlers

import (
	"net/url"
	"testing"
)

func TestParseQueryParams(t *testing.T) {
	q, _ := url.ParseQuery("PatientName=Doe*&00100020=P1&ModalitiesInStudy=CT&limit=10&offset=5&includefield=all")
	params, err := parseQueryParams(q)
	if err != nil {
		t.Fatalf("parseQueryParams() error = %v", err)
	}

	if params.PatientName != "Doe*" || params.PatientID != "P1" || params.Modality != "CT" {
		t.Errorf("params = %+v", params)
	}
	if params.Limit != 10 || params.Offset != 5 {
		t.Errorf("limit/offset = %d/%d", params.Limit, params.Offset)
	}
}
