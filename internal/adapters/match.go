package adapters

import (
	"regexp"
	"strings"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	tagAccessionNumber   = tag.Tag{Group: 0x0008, Element: 0x0050}
	tagModalitiesInStudy = tag.Tag{Group: 0x0008, Element: 0x0061}
)

// matcher evaluates QueryParams against data sets
type matcher struct {
	params      models.QueryParams
	patientName *regexp.Regexp
}

func newMatcher(params models.QueryParams) (*matcher, error) {
	m := &matcher{params: params}
	if params.PatientName != "" {
		re, err := wildcardRegexp(params.PatientName)
		if err != nil {
			return nil, err
		}
		m.patientName = re
	}
	return m, nil
}

// wildcardRegexp compiles a DICOM wildcard pattern (* and ?) into a
// case-insensitive anchored expression.
func wildcardRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

func (m *matcher) match(ds dicom.Dataset) bool {
	p := m.params

	if p.StudyInstanceUID != "" && part10.StringValue(ds, tag.StudyInstanceUID) != p.StudyInstanceUID {
		return false
	}
	if p.SeriesInstanceUID != "" && part10.StringValue(ds, tag.SeriesInstanceUID) != p.SeriesInstanceUID {
		return false
	}
	if p.SOPInstanceUID != "" && part10.StringValue(ds, tag.SOPInstanceUID) != p.SOPInstanceUID {
		return false
	}
	if p.PatientID != "" && part10.StringValue(ds, tag.PatientID) != p.PatientID {
		return false
	}
	if p.AccessionNumber != "" && part10.StringValue(ds, tagAccessionNumber) != p.AccessionNumber {
		return false
	}
	if m.patientName != nil && !m.patientName.MatchString(part10.StringValue(ds, tag.PatientName)) {
		return false
	}
	if p.StudyDate != "" && !matchDate(part10.StringValue(ds, tag.StudyDate), p.StudyDate) {
		return false
	}
	if p.Modality != "" && !matchModality(ds, p.Modality) {
		return false
	}
	return true
}

// matchDate supports a single date and the DICOM ranges A-B, A- and -B.
func matchDate(value, query string) bool {
	from, to, isRange := strings.Cut(query, "-")
	if !isRange {
		return value == query
	}
	if value == "" {
		return false
	}
	if from != "" && value < from {
		return false
	}
	if to != "" && value > to {
		return false
	}
	return true
}

func matchModality(ds dicom.Dataset, modality string) bool {
	for _, t := range []tag.Tag{tag.Modality, tagModalitiesInStudy} {
		elem, err := ds.FindElementByTag(t)
		if err != nil || elem.Value == nil {
			continue
		}
		values, ok := elem.Value.GetValue().([]string)
		if !ok {
			continue
		}
		for _, v := range values {
			if strings.EqualFold(strings.TrimSpace(v), modality) {
				return true
			}
		}
	}
	return false
}

// uniqueBy keeps the first data set for every distinct value of t
func uniqueBy(datasets []dicom.Dataset, t tag.Tag) []dicom.Dataset {
	seen := make(map[string]struct{}, len(datasets))
	out := make([]dicom.Dataset, 0, len(datasets))
	for _, ds := range datasets {
		key := part10.StringValue(ds, t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ds)
	}
	return out
}

func page(datasets []dicom.Dataset, params models.QueryParams) []dicom.Dataset {
	start, end := params.Page(len(datasets))
	return datasets[start:end]
}
