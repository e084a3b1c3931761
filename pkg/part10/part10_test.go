package part10

import (
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestBytesRoundTrip(t *testing.T) {
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustElement(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustElement(tag.SOPInstanceUID, []string{"1.2.3.4.5"}),
		mustElement(tag.PatientName, []string{"Doe^Jane"}),
		mustElement(tag.StudyInstanceUID, []string{"1.2.3"}),
		mustElement(tag.Rows, []int{256}),
	}}

	b, err := Bytes(ds)
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if len(b) < 132 || string(b[128:132]) != "DICM" {
		t.Fatalf("Bytes() did not produce a Part 10 preamble")
	}

	got, err := Read(b)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	tests := []struct {
		tag  tag.Tag
		want string
	}{
		{tag.SOPInstanceUID, "1.2.3.4.5"},
		{tag.PatientName, "Doe^Jane"},
		{tag.StudyInstanceUID, "1.2.3"},
		{tag.Rows, "256"},
		{tag.MediaStorageSOPInstanceUID, "1.2.3.4.5"},
		{tag.TransferSyntaxUID, ExplicitVRLittleEndian},
	}
	for _, tt := range tests {
		if v := StringValue(got, tt.tag); v != tt.want {
			t.Errorf("StringValue(%v) = %q, want %q", tt.tag, v, tt.want)
		}
	}
}

func TestEnsureFileMetaDoesNotMutate(t *testing.T) {
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustElement(tag.SOPInstanceUID, []string{"1.2.3.4.5"}),
	}}

	got := EnsureFileMeta(ds)
	if len(ds.Elements) != 1 {
		t.Fatalf("EnsureFileMeta mutated its input")
	}
	if StringValue(got, tag.MediaStorageSOPInstanceUID) != "1.2.3.4.5" {
		t.Errorf("MediaStorageSOPInstanceUID not derived")
	}
	if _, err := got.FindElementByTag(tag.MediaStorageSOPClassUID); err == nil {
		t.Errorf("MediaStorageSOPClassUID added without a SOPClassUID")
	}

	again := EnsureFileMeta(got)
	if len(again.Elements) != len(got.Elements) {
		t.Errorf("EnsureFileMeta added elements twice: %d -> %d", len(got.Elements), len(again.Elements))
	}
}

func TestStringValueMissing(t *testing.T) {
	if v := StringValue(dicom.Dataset{}, tag.PatientID); v != "" {
		t.Errorf("StringValue() on empty data set = %q", v)
	}
}

func mustElement(t tag.Tag, data interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, data)
	if err != nil {
		panic(err)
	}
	return elem
}
