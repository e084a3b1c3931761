package models

// StoreType selects the backend behind the DICOMweb endpoints
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeDatabase StoreType = "database"
	StoreTypeDICOMWeb StoreType = "dicomweb"
)

// Valid reports whether t names a known backend
func (t StoreType) Valid() bool {
	switch t {
	case StoreTypeMemory, StoreTypeDatabase, StoreTypeDICOMWeb:
		return true
	}
	return false
}

// QueryParams represents DICOM query parameters. Empty fields match
// everything; PatientName accepts the DICOM wildcards * and ?.
type QueryParams struct {
	PatientID         string `json:"patient_id,omitempty"`
	PatientName       string `json:"patient_name,omitempty"`
	StudyDate         string `json:"study_date,omitempty"`
	AccessionNumber   string `json:"accession_number,omitempty"`
	Modality          string `json:"modality,omitempty"`
	StudyInstanceUID  string `json:"study_instance_uid,omitempty"`
	SeriesInstanceUID string `json:"series_instance_uid,omitempty"`
	SOPInstanceUID    string `json:"sop_instance_uid,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	Offset            int    `json:"offset,omitempty"`
}

// Page applies Offset and Limit to n results and returns the bounds of the
// window to keep.
func (p QueryParams) Page(n int) (int, int) {
	start := p.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if p.Limit > 0 && start+p.Limit < end {
		end = start + p.Limit
	}
	return start, end
}
