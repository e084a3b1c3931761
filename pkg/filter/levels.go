package filter

import "github.com/suyashkumar/dicom/pkg/tag"

// QIDO-RS response attributes, PS3.18 tables 6.7.1-2, 6.7.1-2a and 6.7.1-2b.
var (
	Study = NewTagSet(
		tag.Tag{Group: 0x0008, Element: 0x0005}, // SpecificCharacterSet
		tag.Tag{Group: 0x0008, Element: 0x0020}, // StudyDate
		tag.Tag{Group: 0x0008, Element: 0x0030}, // StudyTime
		tag.Tag{Group: 0x0008, Element: 0x0050}, // AccessionNumber
		tag.Tag{Group: 0x0008, Element: 0x0056}, // InstanceAvailability
		tag.Tag{Group: 0x0008, Element: 0x0061}, // ModalitiesInStudy
		tag.Tag{Group: 0x0008, Element: 0x0090}, // ReferringPhysicianName
		tag.Tag{Group: 0x0008, Element: 0x0201}, // TimezoneOffsetFromUTC
		tag.Tag{Group: 0x0008, Element: 0x1030}, // StudyDescription
		tag.Tag{Group: 0x0008, Element: 0x1190}, // RetrieveURL
		tag.Tag{Group: 0x0010, Element: 0x0010}, // PatientName
		tag.Tag{Group: 0x0010, Element: 0x0020}, // PatientID
		tag.Tag{Group: 0x0010, Element: 0x0030}, // PatientBirthDate
		tag.Tag{Group: 0x0010, Element: 0x0040}, // PatientSex
		tag.Tag{Group: 0x0020, Element: 0x000D}, // StudyInstanceUID
		tag.Tag{Group: 0x0020, Element: 0x0010}, // StudyID
		tag.Tag{Group: 0x0020, Element: 0x1206}, // NumberOfStudyRelatedSeries
		tag.Tag{Group: 0x0020, Element: 0x1208}, // NumberOfStudyRelatedInstances
	)

	Series = NewTagSet(
		tag.Tag{Group: 0x0008, Element: 0x0021}, // SeriesDate
		tag.Tag{Group: 0x0008, Element: 0x0031}, // SeriesTime
		tag.Tag{Group: 0x0008, Element: 0x0060}, // Modality
		tag.Tag{Group: 0x0008, Element: 0x103E}, // SeriesDescription
		tag.Tag{Group: 0x0018, Element: 0x0015}, // BodyPartExamined
		tag.Tag{Group: 0x0020, Element: 0x000E}, // SeriesInstanceUID
		tag.Tag{Group: 0x0020, Element: 0x0011}, // SeriesNumber
		tag.Tag{Group: 0x0020, Element: 0x1209}, // NumberOfSeriesRelatedInstances
		tag.Tag{Group: 0x0040, Element: 0x0244}, // PerformedProcedureStepStartDate
		tag.Tag{Group: 0x0040, Element: 0x0245}, // PerformedProcedureStepStartTime
		tag.Tag{Group: 0x0040, Element: 0x0275}, // RequestAttributesSequence
	)

	Instance = NewTagSet(
		tag.Tag{Group: 0x0008, Element: 0x0016}, // SOPClassUID
		tag.Tag{Group: 0x0008, Element: 0x0018}, // SOPInstanceUID
		tag.Tag{Group: 0x0020, Element: 0x0013}, // InstanceNumber
		tag.Tag{Group: 0x0028, Element: 0x0008}, // NumberOfFrames
		tag.Tag{Group: 0x0028, Element: 0x0010}, // Rows
		tag.Tag{Group: 0x0028, Element: 0x0011}, // Columns
		tag.Tag{Group: 0x0028, Element: 0x0100}, // BitsAllocated
	)
)

// Response shapes per resource level.
var (
	StudyLevel    = Study
	SeriesLevel   = Study.Union(Series)
	InstanceLevel = Study.Union(Series, Instance)
)
