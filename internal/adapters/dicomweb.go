package adapters

import (
	"context"
	"fmt"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/pkg/client"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var tagFailedSOPSequence = tag.Tag{Group: 0x0008, Element: 0x1198}

// DICOMWebAdapter proxies every operation to an upstream DICOMweb archive
type DICOMWebAdapter struct {
	client *client.Client
}

// NewDICOMWebAdapter creates a proxy over c
func NewDICOMWebAdapter(c *client.Client) *DICOMWebAdapter {
	return &DICOMWebAdapter{client: c}
}

func applyParams(q *client.Query, params models.QueryParams, modalityKey string) *client.Query {
	if params.PatientName != "" {
		q.PatientName(params.PatientName)
	}
	if params.PatientID != "" {
		q.PatientID(params.PatientID)
	}
	if params.StudyDate != "" {
		q.StudyDate(params.StudyDate)
	}
	if params.AccessionNumber != "" {
		q.Param("AccessionNumber", params.AccessionNumber)
	}
	if params.Modality != "" {
		q.Param(modalityKey, params.Modality)
	}
	if params.StudyInstanceUID != "" {
		q.Param("StudyInstanceUID", params.StudyInstanceUID)
	}
	if params.SeriesInstanceUID != "" {
		q.Param("SeriesInstanceUID", params.SeriesInstanceUID)
	}
	if params.SOPInstanceUID != "" {
		q.Param("SOPInstanceUID", params.SOPInstanceUID)
	}
	if params.Limit > 0 {
		q.Limit(params.Limit)
	}
	if params.Offset > 0 {
		q.Offset(params.Offset)
	}
	return q
}

// SearchStudies queries the upstream QIDO-RS study endpoint
func (d *DICOMWebAdapter) SearchStudies(ctx context.Context, params models.QueryParams) ([]dicom.Dataset, error) {
	datasets, err := applyParams(d.client.SearchStudies(), params, "ModalitiesInStudy").Datasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search studies: %w", err)
	}
	return datasets, nil
}

// SearchSeries queries the upstream QIDO-RS series endpoint
func (d *DICOMWebAdapter) SearchSeries(ctx context.Context, studyUID string, params models.QueryParams) ([]dicom.Dataset, error) {
	params.StudyInstanceUID = ""
	datasets, err := applyParams(d.client.SearchSeries(studyUID), params, "Modality").Datasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search series: %w", err)
	}
	return datasets, nil
}

// SearchInstances queries the upstream QIDO-RS instance endpoint
func (d *DICOMWebAdapter) SearchInstances(ctx context.Context, studyUID, seriesUID string, params models.QueryParams) ([]dicom.Dataset, error) {
	params.StudyInstanceUID = ""
	params.SeriesInstanceUID = ""
	datasets, err := applyParams(d.client.SearchInstances(studyUID, seriesUID), params, "Modality").Datasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search instances: %w", err)
	}
	return datasets, nil
}

// RetrieveInstance fetches the instance through WADO-RS
func (d *DICOMWebAdapter) RetrieveInstance(ctx context.Context, studyUID, seriesUID, sopInstanceUID string) (dicom.Dataset, error) {
	ds, err := d.client.RetrieveInstance(studyUID, seriesUID, sopInstanceUID).Instance(ctx)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("failed to retrieve instance: %w", err)
	}
	if ds == nil {
		return dicom.Dataset{}, ErrNotFound
	}
	return *ds, nil
}

// StoreInstance forwards the instance through STOW-RS
func (d *DICOMWebAdapter) StoreInstance(ctx context.Context, ds dicom.Dataset) error {
	resp, err := d.client.StoreInstances().Store(ctx, ds)
	if err != nil {
		return fmt.Errorf("failed to store instance: %w", err)
	}
	if elem, err := resp.FindElementByTag(tagFailedSOPSequence); err == nil && elem.Value != nil {
		if items, ok := elem.Value.GetValue().([]*dicom.SequenceItemValue); ok && len(items) > 0 {
			return fmt.Errorf("upstream rejected instance %s", part10.StringValue(ds, tag.SOPInstanceUID))
		}
	}
	return nil
}

// ReadOnly is false: the remote archive decides per instance
func (d *DICOMWebAdapter) ReadOnly() bool {
	return false
}

func (d *DICOMWebAdapter) Type() models.StoreType {
	return models.StoreTypeDICOMWeb
}

// Close releases idle upstream connections
func (d *DICOMWebAdapter) Close() error {
	return d.client.Close()
}
