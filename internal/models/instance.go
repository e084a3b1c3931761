package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Instance is the index row of one stored SOP instance. The Part 10 file
// itself lives on disk at FilePath.
type Instance struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SOPInstanceUID    string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"sop_instance_uid"`
	SOPClassUID       string    `gorm:"type:varchar(64)" json:"sop_class_uid"`
	StudyInstanceUID  string    `gorm:"type:varchar(64);not null;index" json:"study_instance_uid"`
	SeriesInstanceUID string    `gorm:"type:varchar(64);not null;index" json:"series_instance_uid"`
	PatientID         string    `gorm:"type:varchar(64);index" json:"patient_id"`
	PatientName       string    `gorm:"type:varchar(324);index" json:"patient_name"`
	StudyDate         string    `gorm:"type:varchar(8)" json:"study_date"`
	AccessionNumber   string    `gorm:"type:varchar(16);index" json:"accession_number"`
	Modality          string    `gorm:"type:varchar(16)" json:"modality"`
	FilePath          string    `gorm:"type:text;not null" json:"file_path"`
	SizeBytes         int64     `json:"size_bytes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Instance) TableName() string {
	return "instances"
}

// BeforeCreate hook
func (i *Instance) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
