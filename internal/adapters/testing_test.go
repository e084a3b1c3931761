package adapters

import (
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

type instanceSpec struct {
	study, series, sop string
	patient            string
	modality           string
	date               string
}

func newInstance(s instanceSpec) dicom.Dataset {
	return dicom.Dataset{Elements: []*dicom.Element{
		mustElement(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustElement(tag.SOPInstanceUID, []string{s.sop}),
		mustElement(tag.StudyDate, []string{s.date}),
		mustElement(tag.Modality, []string{s.modality}),
		mustElement(tag.PatientName, []string{s.patient}),
		mustElement(tag.PatientID, []string{"PID-" + s.patient}),
		mustElement(tag.StudyInstanceUID, []string{s.study}),
		mustElement(tag.SeriesInstanceUID, []string{s.series}),
	}}
}

// fixture: two studies, study 1 has two series, series 1.1 has two instances
func fixture() []dicom.Dataset {
	return []dicom.Dataset{
		newInstance(instanceSpec{"1", "1.1", "1.1.1", "Doe^John", "CT", "20240101"}),
		newInstance(instanceSpec{"1", "1.1", "1.1.2", "Doe^John", "CT", "20240101"}),
		newInstance(instanceSpec{"1", "1.2", "1.2.1", "Doe^John", "MR", "20240101"}),
		newInstance(instanceSpec{"2", "2.1", "2.1.1", "Roe^Jane", "US", "20240315"}),
	}
}

func mustElement(t tag.Tag, data interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, data)
	if err != nil {
		panic(err)
	}
	return elem
}
