package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/dicomweb-bridge/internal/adapters"
	"github.com/otcheredev/dicomweb-bridge/internal/handlers"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	handlers.NewDICOMWebHandler(adapters.NewMemoryAdapter(false)).Routes(r, handlers.Prefixes{})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeInstance(t *testing.T, dir, sop string) string {
	t.Helper()
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustElement(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustElement(tag.SOPInstanceUID, []string{sop}),
		mustElement(tag.PatientName, []string{"Cli^Test"}),
		mustElement(tag.StudyInstanceUID, []string{"9"}),
		mustElement(tag.SeriesInstanceUID, []string{"9.1"}),
	}}
	b, err := part10.Bytes(ds)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, sop+".dcm")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunUsage(t *testing.T) {
	o := options{url: "http://localhost"}
	for _, args := range [][]string{nil, {"series"}, {"retrieve", "1"}, {"bogus"}} {
		if err := run(context.Background(), o, args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Errorf("run(%v) error = %v, want usage error", args, err)
		}
	}
}

func TestRunStoreSearchRetrieve(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	ctx := context.Background()
	o := options{url: srv.URL}

	var out bytes.Buffer
	files := []string{writeInstance(t, dir, "9.1.1"), writeInstance(t, dir, "9.1.2")}
	if err := run(ctx, o, append([]string{"store"}, files...), &out); err != nil {
		t.Fatalf("store: %v", err)
	}

	out.Reset()
	o.patientName = "cli*"
	if err := run(ctx, o, []string{"instances", "9", "9.1"}, &out); err != nil {
		t.Fatalf("instances: %v", err)
	}
	var objs []map[string]json.RawMessage
	if err := json.Unmarshal(out.Bytes(), &objs); err != nil {
		t.Fatalf("search output is not JSON: %v", err)
	}
	if len(objs) != 2 {
		t.Errorf("got %d instances, want 2", len(objs))
	}

	o.out = filepath.Join(dir, "retrieved.dcm")
	if err := run(ctx, o, []string{"retrieve", "9", "9.1", "9.1.2"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	ds, err := part10.ReadFile(o.out, true)
	if err != nil {
		t.Fatal(err)
	}
	if part10.StringValue(ds, tag.SOPInstanceUID) != "9.1.2" {
		t.Error("retrieved wrong instance")
	}

	if err := run(ctx, o, []string{"retrieve", "9", "9.1", "0"}, &bytes.Buffer{}); err == nil {
		t.Error("retrieve of a missing instance should fail")
	}
}

func mustElement(t tag.Tag, data interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, data)
	if err != nil {
		panic(err)
	}
	return elem
}
