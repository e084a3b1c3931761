package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/internal/repository"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// fakeIndex mimics InstanceRepository without postgres
type fakeIndex struct {
	mu   sync.Mutex
	rows map[string]models.Instance
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{rows: make(map[string]models.Instance)}
}

func (f *fakeIndex) Upsert(ctx context.Context, inst *models.Instance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[inst.SOPInstanceUID] = *inst
	return nil
}

func (f *fakeIndex) GetBySOPInstanceUID(ctx context.Context, studyUID, seriesUID, sopUID string) (*models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[sopUID]
	if !ok || row.StudyInstanceUID != studyUID || row.SeriesInstanceUID != seriesUID {
		return nil, repository.ErrInstanceNotFound
	}
	return &row, nil
}

func (f *fakeIndex) Search(ctx context.Context, level repository.Level, params models.QueryParams) ([]models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []models.Instance
	for _, row := range f.rows {
		if params.StudyInstanceUID != "" && row.StudyInstanceUID != params.StudyInstanceUID {
			continue
		}
		if params.SeriesInstanceUID != "" && row.SeriesInstanceUID != params.SeriesInstanceUID {
			continue
		}
		if params.Modality != "" && row.Modality != params.Modality {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SOPInstanceUID < rows[j].SOPInstanceUID })

	rows = repository.Dedup(rows, level)
	start, end := params.Page(len(rows))
	return rows[start:end], nil
}

func TestDatabaseAdapterStoreAndSearch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	index := newFakeIndex()

	d, err := NewDatabaseAdapter(index, dir, false)
	if err != nil {
		t.Fatalf("NewDatabaseAdapter() error = %v", err)
	}
	for _, ds := range fixture() {
		if err := d.StoreInstance(ctx, ds); err != nil {
			t.Fatalf("StoreInstance() error = %v", err)
		}
	}

	path := filepath.Join(dir, "1", "1.1", "1.1.2.dcm")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	row := index.rows["1.1.2"]
	if row.FilePath != path || row.Modality != "CT" || row.SizeBytes == 0 {
		t.Errorf("index row = %+v", row)
	}

	studies, err := d.SearchStudies(ctx, models.QueryParams{})
	if err != nil {
		t.Fatalf("SearchStudies() error = %v", err)
	}
	if got := sops(studies); !equalStrings(got, []string{"1.1.1", "2.1.1"}) {
		t.Errorf("SearchStudies() = %v", got)
	}

	series, _ := d.SearchSeries(ctx, "1", models.QueryParams{})
	if got := sops(series); !equalStrings(got, []string{"1.1.1", "1.2.1"}) {
		t.Errorf("SearchSeries() = %v", got)
	}

	instances, _ := d.SearchInstances(ctx, "1", "1.1", models.QueryParams{Limit: 1, Offset: 1})
	if got := sops(instances); !equalStrings(got, []string{"1.1.2"}) {
		t.Errorf("SearchInstances() = %v", got)
	}

	ds, err := d.RetrieveInstance(ctx, "2", "2.1", "2.1.1")
	if err != nil {
		t.Fatalf("RetrieveInstance() error = %v", err)
	}
	if part10.StringValue(ds, tag.PatientName) != "Roe^Jane" {
		t.Errorf("retrieved wrong instance")
	}
	if _, err := d.RetrieveInstance(ctx, "2", "2.1", "9.9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RetrieveInstance(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestDatabaseAdapterReindex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writer, err := NewDatabaseAdapter(newFakeIndex(), dir, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, ds := range fixture() {
		if err := writer.StoreInstance(ctx, ds); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644)

	index := newFakeIndex()
	d, _ := NewDatabaseAdapter(index, dir, true)
	n, err := d.Reindex(ctx)
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	if n != 4 || len(index.rows) != 4 {
		t.Errorf("Reindex() indexed %d (%d rows), want 4", n, len(index.rows))
	}

	if err := d.StoreInstance(ctx, fixture()[0]); !errors.Is(err, ErrReadOnly) {
		t.Errorf("read-only StoreInstance() error = %v", err)
	}
}

func TestDatabaseAdapterMissingFile(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	d, _ := NewDatabaseAdapter(index, t.TempDir(), false)

	index.Upsert(ctx, &models.Instance{
		SOPInstanceUID: "3.3.3", StudyInstanceUID: "3", SeriesInstanceUID: "3.3",
		FilePath: filepath.Join(t.TempDir(), "gone.dcm"),
	})
	if _, err := d.RetrieveInstance(ctx, "3", "3.3", "3.3.3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RetrieveInstance() error = %v, want ErrNotFound", err)
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"1.2.840.113619": "1.2.840.113619",
		"..":             "_",
		"":               "_",
		"a/b":            "a_b",
		`c:\d`:           "c__d",
	}
	for in, want := range tests {
		if got := safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}
