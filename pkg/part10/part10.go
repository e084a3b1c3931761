// Package part10 reads and writes DICOM Part 10 files through the
// suyashkumar/dicom toolkit.
package part10

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ExplicitVRLittleEndian is the transfer syntax UID given to data sets that
// are built in memory.
const ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

// Read parses a complete Part 10 payload.
func Read(b []byte) (dicom.Dataset, error) {
	ds, err := dicom.Parse(bytes.NewReader(b), int64(len(b)), nil)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("failed to parse DICOM: %w", err)
	}
	return ds, nil
}

// ReadFile parses the file at path. Pixel data is skipped when metadataOnly
// is set.
func ReadFile(path string, metadataOnly bool) (dicom.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("could not stat file: %w", err)
	}

	var opts []dicom.ParseOption
	if metadataOnly {
		opts = append(opts, dicom.SkipPixelData())
	}

	ds, err := dicom.Parse(f, info.Size(), nil, opts...)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("could not parse DICOM %s: %w", path, err)
	}
	return ds, nil
}

// Write serializes ds as a Part 10 stream. VRs are not checked against the
// dictionary so that private and JSON-decoded elements survive.
func Write(w io.Writer, ds dicom.Dataset) error {
	if err := dicom.Write(w, EnsureFileMeta(ds), dicom.SkipVRVerification(), dicom.DefaultMissingTransferSyntax()); err != nil {
		return fmt.Errorf("failed to write DICOM: %w", err)
	}
	return nil
}

// EnsureFileMeta returns ds with the file meta elements a Part 10 stream
// needs. Missing media storage UIDs are copied from SOPClassUID and
// SOPInstanceUID; a missing transfer syntax becomes explicit VR little endian.
// ds itself is left untouched.
func EnsureFileMeta(ds dicom.Dataset) dicom.Dataset {
	var meta []*dicom.Element
	add := func(t tag.Tag, value string) {
		if value == "" {
			return
		}
		if _, err := ds.FindElementByTag(t); err == nil {
			return
		}
		elem, err := dicom.NewElement(t, []string{value})
		if err != nil {
			return
		}
		meta = append(meta, elem)
	}

	add(tag.MediaStorageSOPClassUID, StringValue(ds, tag.SOPClassUID))
	add(tag.MediaStorageSOPInstanceUID, StringValue(ds, tag.SOPInstanceUID))
	add(tag.TransferSyntaxUID, ExplicitVRLittleEndian)
	if len(meta) == 0 {
		return ds
	}

	elems := make([]*dicom.Element, 0, len(meta)+len(ds.Elements))
	elems = append(elems, meta...)
	elems = append(elems, ds.Elements...)
	return dicom.Dataset{Elements: elems}
}

// Bytes serializes ds into memory.
func Bytes(ds dicom.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StringValue returns the first value of the element t, trimmed, or "" when
// the element is absent or not textual.
func StringValue(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}

	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return strings.TrimRight(strings.TrimSpace(v[0]), "\x00")
		}
	case []int:
		if len(v) > 0 {
			return strconv.Itoa(v[0])
		}
	}
	return ""
}
