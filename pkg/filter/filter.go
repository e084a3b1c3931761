// Package filter reduces data sets to the attributes returned at each QIDO-RS
// resource level.
package filter

import (
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagSet is an immutable set of tags.
type TagSet struct {
	tags map[tag.Tag]struct{}
}

// NewTagSet builds a set from tags; duplicates collapse.
func NewTagSet(tags ...tag.Tag) TagSet {
	m := make(map[tag.Tag]struct{}, len(tags))
	for _, t := range tags {
		m[t] = struct{}{}
	}
	return TagSet{tags: m}
}

// Contains reports whether t is in the set.
func (s TagSet) Contains(t tag.Tag) bool {
	_, ok := s.tags[t]
	return ok
}

// Len returns the number of tags in the set.
func (s TagSet) Len() int {
	return len(s.tags)
}

// Tags returns the members in no particular order.
func (s TagSet) Tags() []tag.Tag {
	out := make([]tag.Tag, 0, len(s.tags))
	for t := range s.tags {
		out = append(out, t)
	}
	return out
}

// Union returns a new set holding the members of s and every other set.
func (s TagSet) Union(others ...TagSet) TagSet {
	m := make(map[tag.Tag]struct{}, len(s.tags))
	for t := range s.tags {
		m[t] = struct{}{}
	}
	for _, o := range others {
		for t := range o.tags {
			m[t] = struct{}{}
		}
	}
	return TagSet{tags: m}
}

// Apply returns a data set holding only the elements of ds whose tag is in
// allowed. Element order is preserved and elements are shared, not copied.
func Apply(ds dicom.Dataset, allowed TagSet) dicom.Dataset {
	out := make([]*dicom.Element, 0, len(ds.Elements))
	for _, elem := range ds.Elements {
		if elem != nil && allowed.Contains(elem.Tag) {
			out = append(out, elem)
		}
	}
	return dicom.Dataset{Elements: out}
}

// ApplyAll filters every data set with the same tag set.
func ApplyAll(datasets []dicom.Dataset, allowed TagSet) []dicom.Dataset {
	out := make([]dicom.Dataset, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, Apply(ds, allowed))
	}
	return out
}
