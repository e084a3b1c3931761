package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/otcheredev/dicomweb-bridge/internal/database"
	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Level is the QIDO resource level a search deduplicates on
type Level string

const (
	LevelStudy    Level = "study"
	LevelSeries   Level = "series"
	LevelInstance Level = "instance"
)

// ErrInstanceNotFound is returned when no row matches a SOP Instance UID
var ErrInstanceNotFound = errors.New("instance not found")

// InstanceRepository handles the instance index
type InstanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository creates a new instance repository on the global
// connection
func NewInstanceRepository() *InstanceRepository {
	return &InstanceRepository{db: database.DB}
}

// NewInstanceRepositoryWithDB creates a repository on an explicit connection
func NewInstanceRepositoryWithDB(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// Upsert inserts the row or replaces the row with the same SOP Instance UID
func (r *InstanceRepository) Upsert(ctx context.Context, inst *models.Instance) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sop_instance_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"sop_class_uid", "study_instance_uid", "series_instance_uid",
			"patient_id", "patient_name", "study_date", "accession_number",
			"modality", "file_path", "size_bytes", "updated_at",
		}),
	}).Create(inst).Error
	if err != nil {
		return fmt.Errorf("failed to upsert instance: %w", err)
	}
	return nil
}

// GetBySOPInstanceUID retrieves one row within its study and series
func (r *InstanceRepository) GetBySOPInstanceUID(ctx context.Context, studyUID, seriesUID, sopUID string) (*models.Instance, error) {
	var inst models.Instance
	err := r.db.WithContext(ctx).
		Where("study_instance_uid = ? AND series_instance_uid = ? AND sop_instance_uid = ?", studyUID, seriesUID, sopUID).
		First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return &inst, nil
}

// Search returns the rows matching params, one per resource at level.
// Offset and limit count resources, not rows.
func (r *InstanceRepository) Search(ctx context.Context, level Level, params models.QueryParams) ([]models.Instance, error) {
	query := r.db.WithContext(ctx).Model(&models.Instance{})

	if params.StudyInstanceUID != "" {
		query = query.Where("study_instance_uid = ?", params.StudyInstanceUID)
	}
	if params.SeriesInstanceUID != "" {
		query = query.Where("series_instance_uid = ?", params.SeriesInstanceUID)
	}
	if params.SOPInstanceUID != "" {
		query = query.Where("sop_instance_uid = ?", params.SOPInstanceUID)
	}
	if params.PatientID != "" {
		query = query.Where("patient_id = ?", params.PatientID)
	}
	if params.PatientName != "" {
		query = query.Where("patient_name ILIKE ? ESCAPE '\\'", WildcardToLike(params.PatientName))
	}
	if params.StudyDate != "" {
		query = query.Where("study_date = ?", params.StudyDate)
	}
	if params.AccessionNumber != "" {
		query = query.Where("accession_number = ?", params.AccessionNumber)
	}
	if params.Modality != "" {
		query = query.Where("modality = ?", params.Modality)
	}

	var rows []models.Instance
	if err := query.Order("study_instance_uid, series_instance_uid, sop_instance_uid").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search instances: %w", err)
	}

	rows = Dedup(rows, level)
	start, end := params.Page(len(rows))
	return rows[start:end], nil
}

// Dedup keeps the first row of every study or series. Rows are returned
// unchanged at instance level.
func Dedup(rows []models.Instance, level Level) []models.Instance {
	if level == LevelInstance {
		return rows
	}

	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		key := row.StudyInstanceUID
		if level == LevelSeries {
			key = row.SeriesInstanceUID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

// WildcardToLike converts a DICOM wildcard pattern into a LIKE pattern with
// backslash escapes.
func WildcardToLike(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '\\', '%', '_':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '*':
			sb.WriteByte('%')
		case '?':
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
