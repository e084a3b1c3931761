package adapters

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/internal/repository"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// InstanceIndex is the subset of repository.InstanceRepository the
// database store needs
type InstanceIndex interface {
	Upsert(ctx context.Context, inst *models.Instance) error
	GetBySOPInstanceUID(ctx context.Context, studyUID, seriesUID, sopUID string) (*models.Instance, error)
	Search(ctx context.Context, level repository.Level, params models.QueryParams) ([]models.Instance, error)
}

// DatabaseAdapter serves Part 10 files from a directory, located through a
// database index
type DatabaseAdapter struct {
	index    InstanceIndex
	dir      string
	readOnly bool
}

// NewDatabaseAdapter creates a store rooted at dir
func NewDatabaseAdapter(index InstanceIndex, dir string, readOnly bool) (*DatabaseAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &DatabaseAdapter{index: index, dir: dir, readOnly: readOnly}, nil
}

// Reindex walks the store directory and indexes every DICOM file found.
// Files that do not parse are skipped with a warning.
func (d *DatabaseAdapter) Reindex(ctx context.Context) (int, error) {
	indexed := 0
	err := filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ds, err := part10.ReadFile(path, true)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping non-DICOM file")
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		row, err := indexRow(ds, path, info.Size())
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping instance")
			return nil
		}
		if err := d.index.Upsert(ctx, row); err != nil {
			return err
		}
		indexed++
		return nil
	})
	if err != nil {
		return indexed, fmt.Errorf("failed to reindex %s: %w", d.dir, err)
	}

	log.Info().Str("dir", d.dir).Int("instances", indexed).Msg("Store directory indexed")
	return indexed, nil
}

func (d *DatabaseAdapter) search(ctx context.Context, level repository.Level, params models.QueryParams) ([]dicom.Dataset, error) {
	rows, err := d.index.Search(ctx, level, params)
	if err != nil {
		return nil, err
	}

	datasets := make([]dicom.Dataset, 0, len(rows))
	for _, row := range rows {
		ds, err := part10.ReadFile(row.FilePath, true)
		if err != nil {
			log.Error().Err(err).Str("path", row.FilePath).Str("sop_instance_uid", row.SOPInstanceUID).Msg("Indexed file unreadable")
			continue
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// SearchStudies returns one data set per matching study
func (d *DatabaseAdapter) SearchStudies(ctx context.Context, params models.QueryParams) ([]dicom.Dataset, error) {
	return d.search(ctx, repository.LevelStudy, params)
}

// SearchSeries returns one data set per matching series of a study
func (d *DatabaseAdapter) SearchSeries(ctx context.Context, studyUID string, params models.QueryParams) ([]dicom.Dataset, error) {
	params.StudyInstanceUID = studyUID
	return d.search(ctx, repository.LevelSeries, params)
}

// SearchInstances returns the matching instances of a series
func (d *DatabaseAdapter) SearchInstances(ctx context.Context, studyUID, seriesUID string, params models.QueryParams) ([]dicom.Dataset, error) {
	params.StudyInstanceUID = studyUID
	params.SeriesInstanceUID = seriesUID
	return d.search(ctx, repository.LevelInstance, params)
}

// RetrieveInstance reads the indexed file in full
func (d *DatabaseAdapter) RetrieveInstance(ctx context.Context, studyUID, seriesUID, sopInstanceUID string) (dicom.Dataset, error) {
	row, err := d.index.GetBySOPInstanceUID(ctx, studyUID, seriesUID, sopInstanceUID)
	if errors.Is(err, repository.ErrInstanceNotFound) {
		return dicom.Dataset{}, ErrNotFound
	}
	if err != nil {
		return dicom.Dataset{}, err
	}

	ds, err := part10.ReadFile(row.FilePath, false)
	if errors.Is(err, fs.ErrNotExist) {
		return dicom.Dataset{}, ErrNotFound
	}
	return ds, err
}

// StoreInstance writes the file under study/series/sop.dcm, then indexes it
func (d *DatabaseAdapter) StoreInstance(ctx context.Context, ds dicom.Dataset) error {
	if d.readOnly {
		return ErrReadOnly
	}
	if err := requireUIDs(ds); err != nil {
		return err
	}

	path := d.instancePath(ds)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create series directory: %w", err)
	}

	size, err := writeFileAtomic(path, ds)
	if err != nil {
		return err
	}

	row, err := indexRow(ds, path, size)
	if err != nil {
		return err
	}
	return d.index.Upsert(ctx, row)
}

func (d *DatabaseAdapter) instancePath(ds dicom.Dataset) string {
	return filepath.Join(d.dir,
		safeName(part10.StringValue(ds, tag.StudyInstanceUID)),
		safeName(part10.StringValue(ds, tag.SeriesInstanceUID)),
		safeName(part10.StringValue(ds, tag.SOPInstanceUID))+".dcm")
}

// ReadOnly reports whether uploads are refused
func (d *DatabaseAdapter) ReadOnly() bool {
	return d.readOnly
}

func (d *DatabaseAdapter) Type() models.StoreType {
	return models.StoreTypeDatabase
}

func (d *DatabaseAdapter) Close() error {
	return nil
}

func writeFileAtomic(path string, ds dicom.Dataset) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".stow-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := part10.Write(tmp, ds); err != nil {
		tmp.Close()
		return 0, err
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to stat temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move instance into place: %w", err)
	}
	return info.Size(), nil
}

// safeName keeps UID characters and replaces anything else with '_'
func safeName(uid string) string {
	if uid == "" || uid == "." || uid == ".." {
		return "_"
	}
	b := []byte(uid)
	for i, c := range b {
		if (c < '0' || c > '9') && c != '.' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && c != '-' {
			b[i] = '_'
		}
	}
	return string(b)
}

func indexRow(ds dicom.Dataset, path string, size int64) (*models.Instance, error) {
	if err := requireUIDs(ds); err != nil {
		return nil, err
	}
	return &models.Instance{
		SOPInstanceUID:    part10.StringValue(ds, tag.SOPInstanceUID),
		SOPClassUID:       part10.StringValue(ds, tag.SOPClassUID),
		StudyInstanceUID:  part10.StringValue(ds, tag.StudyInstanceUID),
		SeriesInstanceUID: part10.StringValue(ds, tag.SeriesInstanceUID),
		PatientID:         part10.StringValue(ds, tag.PatientID),
		PatientName:       part10.StringValue(ds, tag.PatientName),
		StudyDate:         part10.StringValue(ds, tag.StudyDate),
		AccessionNumber:   part10.StringValue(ds, tagAccessionNumber),
		Modality:          part10.StringValue(ds, tag.Modality),
		FilePath:          path,
		SizeBytes:         size,
	}, nil
}
