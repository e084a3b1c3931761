package adapters

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// MemoryAdapter keeps every instance in memory, in insertion order
type MemoryAdapter struct {
	mu        sync.RWMutex
	instances []dicom.Dataset
	bySOP     map[string]int
	readOnly  bool
}

// NewMemoryAdapter creates an empty in-memory store
func NewMemoryAdapter(readOnly bool) *MemoryAdapter {
	return &MemoryAdapter{
		bySOP:    make(map[string]int),
		readOnly: readOnly,
	}
}

// LoadDir parses every DICOM file below dir. Files that do not parse are
// skipped with a warning. It returns the number of instances loaded.
func (m *MemoryAdapter) LoadDir(dir string) (int, error) {
	loaded := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ds, err := part10.ReadFile(path, false)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping non-DICOM file")
			return nil
		}
		if err := m.add(ds); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping instance")
			return nil
		}
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	log.Info().Str("dir", dir).Int("instances", loaded).Msg("Loaded DICOM directory")
	return loaded, nil
}

// Add inserts or replaces instances regardless of the read-only flag
func (m *MemoryAdapter) Add(datasets ...dicom.Dataset) error {
	for _, ds := range datasets {
		if err := m.add(ds); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryAdapter) add(ds dicom.Dataset) error {
	sop := part10.StringValue(ds, tag.SOPInstanceUID)
	if sop == "" {
		return fmt.Errorf("data set has no SOPInstanceUID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, exists := m.bySOP[sop]; exists {
		m.instances[i] = ds
		return nil
	}
	m.bySOP[sop] = len(m.instances)
	m.instances = append(m.instances, ds)
	return nil
}

// Len returns the number of stored instances
func (m *MemoryAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

func (m *MemoryAdapter) search(params models.QueryParams, unique *tag.Tag) ([]dicom.Dataset, error) {
	matcher, err := newMatcher(params)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	m.mu.RLock()
	matched := make([]dicom.Dataset, 0)
	for _, ds := range m.instances {
		if matcher.match(ds) {
			matched = append(matched, ds)
		}
	}
	m.mu.RUnlock()

	if unique != nil {
		matched = uniqueBy(matched, *unique)
	}
	return page(matched, params), nil
}

// SearchStudies returns one data set per matching study
func (m *MemoryAdapter) SearchStudies(ctx context.Context, params models.QueryParams) ([]dicom.Dataset, error) {
	t := tag.StudyInstanceUID
	return m.search(params, &t)
}

// SearchSeries returns one data set per matching series of a study
func (m *MemoryAdapter) SearchSeries(ctx context.Context, studyUID string, params models.QueryParams) ([]dicom.Dataset, error) {
	params.StudyInstanceUID = studyUID
	t := tag.SeriesInstanceUID
	return m.search(params, &t)
}

// SearchInstances returns the matching instances of a series
func (m *MemoryAdapter) SearchInstances(ctx context.Context, studyUID, seriesUID string, params models.QueryParams) ([]dicom.Dataset, error) {
	params.StudyInstanceUID = studyUID
	params.SeriesInstanceUID = seriesUID
	return m.search(params, nil)
}

// RetrieveInstance returns the instance with the given UIDs
func (m *MemoryAdapter) RetrieveInstance(ctx context.Context, studyUID, seriesUID, sopInstanceUID string) (dicom.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, exists := m.bySOP[sopInstanceUID]
	if !exists {
		return dicom.Dataset{}, ErrNotFound
	}
	ds := m.instances[i]
	if part10.StringValue(ds, tag.StudyInstanceUID) != studyUID ||
		part10.StringValue(ds, tag.SeriesInstanceUID) != seriesUID {
		return dicom.Dataset{}, ErrNotFound
	}
	return ds, nil
}

// StoreInstance adds an uploaded instance
func (m *MemoryAdapter) StoreInstance(ctx context.Context, ds dicom.Dataset) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if err := requireUIDs(ds); err != nil {
		return err
	}
	return m.add(ds)
}

// ReadOnly reports whether uploads are refused
func (m *MemoryAdapter) ReadOnly() bool {
	return m.readOnly
}

func (m *MemoryAdapter) Type() models.StoreType {
	return models.StoreTypeMemory
}

func (m *MemoryAdapter) Close() error {
	return nil
}

// requireUIDs checks the identifiers every stored instance must carry
func requireUIDs(ds dicom.Dataset) error {
	for _, t := range []struct {
		tag  tag.Tag
		name string
	}{
		{tag.StudyInstanceUID, "StudyInstanceUID"},
		{tag.SeriesInstanceUID, "SeriesInstanceUID"},
		{tag.SOPInstanceUID, "SOPInstanceUID"},
	} {
		if part10.StringValue(ds, t.tag) == "" {
			return fmt.Errorf("data set has no %s", t.name)
		}
	}
	return nil
}
