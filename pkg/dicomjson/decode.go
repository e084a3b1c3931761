package dicomjson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

type rawAttribute struct {
	VR           *string         `json:"vr"`
	Value        json.RawMessage `json:"Value"`
	InlineBinary *string         `json:"InlineBinary"`
	BulkDataURI  *string         `json:"BulkDataURI"`
}

// Unmarshal decodes a DICOM JSON array, as returned by QIDO-RS, into data sets.
func Unmarshal(data []byte) ([]dicom.Dataset, error) {
	var objs []json.RawMessage
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, codecError("", "", InvalidValue, "response is not a JSON array: %v", err)
	}
	return Decode(objs)
}

// Decode reconstructs one data set per JSON object. Elements come out in
// ascending tag order. An attribute without Value decodes as an empty
// element; servers routinely leave it out.
func Decode(objs []json.RawMessage) ([]dicom.Dataset, error) {
	datasets := make([]dicom.Dataset, 0, len(objs))
	for _, raw := range objs {
		ds, err := DecodeObject(raw)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// DecodeObject reconstructs a single data set.
func DecodeObject(raw json.RawMessage) (dicom.Dataset, error) {
	elems, err := decodeElements(raw)
	if err != nil {
		return dicom.Dataset{}, err
	}
	return dicom.Dataset{Elements: elems}, nil
}

func decodeElements(raw json.RawMessage) ([]*dicom.Element, error) {
	var attrs map[string]rawAttribute
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, codecError("", "", InvalidValue, "data set is not a JSON object: %v", err)
	}

	elems := make([]*dicom.Element, 0, len(attrs))
	for key, attr := range attrs {
		t, err := ParseTagKey(key)
		if err != nil {
			return nil, err
		}
		if attr.VR == nil {
			return nil, codecError(key, "", MissingField, "attribute has no vr")
		}
		elem, err := decodeAttribute(key, t, *attr.VR, attr)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}

	sort.Slice(elems, func(i, j int) bool {
		return tagLess(elems[i].Tag, elems[j].Tag)
	})
	return elems, nil
}

func tagLess(a, b tag.Tag) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Element < b.Element
}

func decodeAttribute(key string, t tag.Tag, vr string, attr rawAttribute) (*dicom.Element, error) {
	class := classify(vr)
	if class == classUnknown {
		return nil, codecError(key, vr, InvalidValue, "unknown value representation")
	}

	if class == classBinary {
		data, err := decodeBinary(key, vr, attr)
		if err != nil {
			return nil, err
		}
		return newBinaryElement(key, t, vr, data)
	}

	items, err := valueItems(key, vr, attr.Value)
	if err != nil {
		return nil, err
	}

	var data interface{}
	switch class {
	case classText:
		if vr == "AT" {
			data, err = decodeAttributeTags(key, items)
		} else {
			data, err = decodeText(key, vr, items)
		}
	case classFloat:
		data, err = decodeFloats(key, vr, items)
	case classPersonName:
		data, err = decodePersonNames(key, vr, items)
	case classInteger:
		data, err = decodeIntegers(key, vr, items)
	case classSequence:
		data, err = decodeSequence(key, vr, items)
	}
	if err != nil {
		return nil, err
	}

	elem, err := newElement(key, t, vr, data)
	if err != nil {
		return nil, err
	}
	if class == classSequence {
		elem.ValueLength = tag.VLUndefinedLength
	}
	return elem, nil
}

func newElement(key string, t tag.Tag, vr string, data interface{}) (*dicom.Element, error) {
	value, err := dicom.NewValue(data)
	if err != nil {
		return nil, codecError(key, vr, UnsupportedValue, "%v", err)
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, vr),
		RawValueRepresentation: vr,
		Value:                  value,
	}, nil
}

// newBinaryElement holds bulk data the way dicom.Parse would have produced
// it, so the element can be written back: pixel data as unprocessed
// PixelDataInfo, OB/OW/UN as bytes, and OD/OF/OL/OV as a single string.
func newBinaryElement(key string, t tag.Tag, vr string, data []byte) (*dicom.Element, error) {
	var (
		value dicom.Value
		kind  tag.VRKind
		err   error
	)
	switch {
	case t == tagPixelData && (vr == "OB" || vr == "OW"):
		kind = tag.VRPixelData
		value, err = dicom.NewValue(dicom.PixelDataInfo{
			IntentionallyUnprocessed: true,
			UnprocessedValueData:     data,
		})
	case vr == "OB" || vr == "OW" || vr == "UN":
		kind = tag.VRBytes
		value, err = dicom.NewValue(data)
	default:
		kind = tag.VRStringList
		value, err = dicom.NewValue([]string{string(data)})
	}
	if err != nil {
		return nil, codecError(key, vr, UnsupportedValue, "%v", err)
	}

	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    kind,
		RawValueRepresentation: vr,
		Value:                  value,
	}, nil
}

// valueItems splits the Value array. An absent or null Value is empty.
func valueItems(key, vr string, raw json.RawMessage) ([]json.RawMessage, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, codecError(key, vr, InvalidValue, "Value is not an array")
	}
	return items, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func decodeText(key, vr string, items []json.RawMessage) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch c := firstByte(item); {
		case c == 'n':
			out = append(out, "")
		case c == '"':
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, codecError(key, vr, InvalidValue, "%v", err)
			}
			out = append(out, s)
		case c == '-' || (c >= '0' && c <= '9'):
			// DS and IS values are numbers in standard DICOM JSON
			out = append(out, string(bytes.TrimSpace(item)))
		default:
			return nil, codecError(key, vr, InvalidValue, "unexpected value %s", item)
		}
	}
	return out, nil
}

func decodeAttributeTags(key string, items []json.RawMessage) ([]int, error) {
	out := make([]int, 0, 2*len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, codecError(key, "AT", InvalidValue, "tag value is not a string")
		}
		t, err := ParseTagKey(strings.ToUpper(s))
		if err != nil {
			return nil, codecError(key, "AT", InvalidValue, "%q is not a tag", s)
		}
		out = append(out, int(t.Group), int(t.Element))
	}
	return out, nil
}

func decodeFloats(key, vr string, items []json.RawMessage) ([]float64, error) {
	out := make([]float64, 0, len(items))
	for _, item := range items {
		var (
			f   float64
			err error
		)
		if firstByte(item) == '"' {
			var s string
			if err = json.Unmarshal(item, &s); err == nil {
				f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
			}
		} else {
			err = json.Unmarshal(item, &f)
		}
		if err != nil {
			return nil, codecError(key, vr, UnsupportedValue, "%s is not a number", item)
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeIntegers(key, vr string, items []json.RawMessage) ([]int, error) {
	lo, hi := integerRange(vr)
	out := make([]int, 0, len(items))
	for _, item := range items {
		text := string(bytes.TrimSpace(item))
		if firstByte(item) == '"' {
			if err := json.Unmarshal(item, &text); err != nil {
				return nil, codecError(key, vr, InvalidValue, "%v", err)
			}
		}
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, codecError(key, vr, UnsupportedValue, "%s is not an integer", item)
		}
		if n < lo || n > hi {
			return nil, codecError(key, vr, InvalidValue, "%d out of range", n)
		}
		out = append(out, int(n))
	}
	return out, nil
}

func decodePersonNames(key, vr string, items []json.RawMessage) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch firstByte(item) {
		case 'n':
			out = append(out, "")
		case '"':
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, codecError(key, vr, InvalidValue, "%v", err)
			}
			out = append(out, s)
		case '{':
			var pn PersonName
			if err := json.Unmarshal(item, &pn); err != nil {
				return nil, codecError(key, vr, InvalidValue, "%v", err)
			}
			out = append(out, joinPersonName(pn))
		default:
			return nil, codecError(key, vr, InvalidValue, "unexpected person name %s", item)
		}
	}
	return out, nil
}

func joinPersonName(pn PersonName) string {
	groups := []string{pn.Alphabetic, pn.Ideographic, pn.Phonetic}
	for len(groups) > 1 && groups[len(groups)-1] == "" {
		groups = groups[:len(groups)-1]
	}
	return strings.Join(groups, "=")
}

func decodeSequence(key, vr string, items []json.RawMessage) ([][]*dicom.Element, error) {
	out := make([][]*dicom.Element, 0, len(items))
	for _, item := range items {
		if firstByte(item) != '{' {
			return nil, codecError(key, vr, InvalidValue, "sequence item is not an object")
		}
		elems, err := decodeElements(item)
		if err != nil {
			return nil, err
		}
		out = append(out, elems)
	}
	return out, nil
}

// decodeBinary accepts Value as a base64 string (or a one element array
// holding one) and InlineBinary. BulkDataURI references are not fetched and
// decode as empty.
func decodeBinary(key, vr string, attr rawAttribute) ([]byte, error) {
	var encoded string
	switch {
	case attr.InlineBinary != nil:
		encoded = *attr.InlineBinary
	case !isNull(attr.Value):
		switch firstByte(attr.Value) {
		case '"':
			if err := json.Unmarshal(attr.Value, &encoded); err != nil {
				return nil, codecError(key, vr, InvalidValue, "%v", err)
			}
		case '[':
			var arr []string
			if err := json.Unmarshal(attr.Value, &arr); err != nil || len(arr) > 1 {
				return nil, codecError(key, vr, InvalidValue, "binary Value must be one base64 string")
			}
			if len(arr) == 1 {
				encoded = arr[0]
			}
		default:
			return nil, codecError(key, vr, InvalidValue, "binary Value must be a base64 string")
		}
	default:
		return []byte{}, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, codecError(key, vr, InvalidValue, "invalid base64: %v", err)
	}
	return data, nil
}
