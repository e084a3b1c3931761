// Package dicomjson converts DICOM data sets to and from the DICOM JSON model
// (PS3.18 Annex F) used by QIDO-RS and WADO-RS metadata responses.
package dicomjson

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Object is one DICOM JSON data set, keyed by 8 hex digit tag.
type Object map[string]Attribute

// Attribute is the JSON form of one element. Value is a JSON array for every
// VR except the binary ones, which carry a single base64 string.
type Attribute struct {
	VR    string      `json:"vr"`
	Value interface{} `json:"Value"`
}

// PersonName holds the component groups of a PN value.
type PersonName struct {
	Alphabetic  string `json:"Alphabetic,omitempty"`
	Ideographic string `json:"Ideographic,omitempty"`
	Phonetic    string `json:"Phonetic,omitempty"`
}

// TagKey formats t as the uppercase zero padded key used in DICOM JSON.
func TagKey(t tag.Tag) string {
	return fmt.Sprintf("%04X%04X", t.Group, t.Element)
}

// ParseTagKey parses an 8 hex digit DICOM JSON key.
func ParseTagKey(key string) (tag.Tag, error) {
	if len(key) != 8 {
		return tag.Tag{}, codecError(key, "", InvalidTag, "tag key must have 8 hex digits")
	}
	v, err := strconv.ParseUint(key, 16, 32)
	if err != nil {
		return tag.Tag{}, codecError(key, "", InvalidTag, "tag key is not hexadecimal")
	}
	return tag.Tag{Group: uint16(v >> 16), Element: uint16(v)}, nil
}

// Encode converts a data set to its DICOM JSON object.
func Encode(ds dicom.Dataset) (Object, error) {
	return encodeElements(ds.Elements)
}

// EncodeAll encodes each data set, preserving order.
func EncodeAll(datasets []dicom.Dataset) ([]Object, error) {
	objs := make([]Object, 0, len(datasets))
	for _, ds := range datasets {
		obj, err := Encode(ds)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func encodeElements(elems []*dicom.Element) (Object, error) {
	obj := make(Object, len(elems))
	for _, elem := range elems {
		if elem == nil {
			continue
		}
		attr, ok, err := encodeElement(elem)
		if err != nil {
			return nil, err
		}
		if ok {
			obj[TagKey(elem.Tag)] = attr
		}
	}
	return obj, nil
}

var tagPixelData = tag.Tag{Group: 0x7FE0, Element: 0x0010}

// encodeElement returns ok=false for elements that have no inline JSON form
// (parsed pixel data frames).
func encodeElement(elem *dicom.Element) (Attribute, bool, error) {
	key := TagKey(elem.Tag)
	vr := elem.RawValueRepresentation
	if vr == "" {
		vr = "UN"
	}

	var raw interface{}
	if elem.Value != nil {
		raw = elem.Value.GetValue()
	}
	if info, isPixelData := raw.(dicom.PixelDataInfo); isPixelData {
		if !info.IntentionallyUnprocessed {
			return Attribute{}, false, nil
		}
		raw = info.UnprocessedValueData
	}

	var (
		value interface{}
		err   error
	)
	switch classify(vr) {
	case classText:
		value, err = encodeText(key, vr, raw)
	case classFloat:
		value, err = encodeFloats(key, vr, raw)
	case classBinary:
		value, err = encodeBinary(key, vr, raw)
	case classPersonName:
		value, err = encodePersonNames(key, vr, raw)
	case classInteger:
		value, err = encodeIntegers(key, vr, raw)
	case classSequence:
		value, err = encodeSequence(key, vr, raw)
	default:
		err = codecError(key, vr, UnsupportedValue, "unknown value representation")
	}
	if err != nil {
		return Attribute{}, false, err
	}

	return Attribute{VR: vr, Value: value}, true, nil
}

func trimValue(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "\x00 ")
}

func encodeText(key, vr string, raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, trimValue(s))
		}
		return out, nil
	case []int:
		if vr == "AT" {
			return encodeAttributeTags(key, v)
		}
		out := make([]string, 0, len(v))
		for _, n := range v {
			out = append(out, strconv.Itoa(n))
		}
		return out, nil
	case []float64:
		out := make([]string, 0, len(v))
		for _, f := range v {
			out = append(out, strconv.FormatFloat(f, 'g', -1, 64))
		}
		return out, nil
	default:
		return nil, codecError(key, vr, UnsupportedValue, "cannot render %T as text", raw)
	}
}

// encodeAttributeTags renders AT values, held as group/element pairs.
func encodeAttributeTags(key string, v []int) ([]string, error) {
	if len(v)%2 != 0 {
		return nil, codecError(key, "AT", UnsupportedValue, "odd number of tag components")
	}
	out := make([]string, 0, len(v)/2)
	for i := 0; i < len(v); i += 2 {
		out = append(out, TagKey(tag.Tag{Group: uint16(v[i]), Element: uint16(v[i+1])}))
	}
	return out, nil
}

func encodeFloats(key, vr string, raw interface{}) ([]float64, error) {
	var out []float64
	switch v := raw.(type) {
	case nil:
		return []float64{}, nil
	case []float64:
		out = append(make([]float64, 0, len(v)), v...)
	case []int:
		out = make([]float64, 0, len(v))
		for _, n := range v {
			out = append(out, float64(n))
		}
	case []string:
		out = make([]float64, 0, len(v))
		for _, s := range v {
			f, err := strconv.ParseFloat(trimValue(s), 64)
			if err != nil {
				return nil, codecError(key, vr, UnsupportedValue, "%q is not a number", s)
			}
			out = append(out, f)
		}
	default:
		return nil, codecError(key, vr, UnsupportedValue, "cannot render %T as float", raw)
	}
	for _, f := range out {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, codecError(key, vr, InvalidValue, "%v has no JSON representation", f)
		}
	}
	return out, nil
}

func encodeBinary(key, vr string, raw interface{}) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case []string:
		return base64.StdEncoding.EncodeToString([]byte(strings.Join(v, `\`))), nil
	default:
		return "", codecError(key, vr, UnsupportedValue, "cannot render %T as bulk data", raw)
	}
}

func encodePersonNames(key, vr string, raw interface{}) ([]PersonName, error) {
	switch v := raw.(type) {
	case nil:
		return []PersonName{}, nil
	case []string:
		out := make([]PersonName, 0, len(v))
		for _, s := range v {
			out = append(out, splitPersonName(trimValue(s)))
		}
		return out, nil
	default:
		return nil, codecError(key, vr, UnsupportedValue, "cannot render %T as person name", raw)
	}
}

func splitPersonName(s string) PersonName {
	groups := strings.SplitN(s, "=", 3)
	var pn PersonName
	pn.Alphabetic = groups[0]
	if len(groups) > 1 {
		pn.Ideographic = groups[1]
	}
	if len(groups) > 2 {
		pn.Phonetic = groups[2]
	}
	return pn
}

func encodeIntegers(key, vr string, raw interface{}) ([]int64, error) {
	var out []int64
	switch v := raw.(type) {
	case nil:
		return []int64{}, nil
	case []int:
		out = make([]int64, 0, len(v))
		for _, n := range v {
			out = append(out, int64(n))
		}
	case []string:
		out = make([]int64, 0, len(v))
		for _, s := range v {
			n, err := strconv.ParseInt(trimValue(s), 10, 64)
			if err != nil {
				return nil, codecError(key, vr, UnsupportedValue, "%q is not an integer", s)
			}
			out = append(out, n)
		}
	default:
		return nil, codecError(key, vr, UnsupportedValue, "cannot render %T as integer", raw)
	}

	lo, hi := integerRange(vr)
	for _, n := range out {
		if n < lo || n > hi {
			return nil, codecError(key, vr, InvalidValue, "%d out of range", n)
		}
	}
	return out, nil
}

func encodeSequence(key, vr string, raw interface{}) ([]Object, error) {
	switch v := raw.(type) {
	case nil:
		return []Object{}, nil
	case []*dicom.SequenceItemValue:
		out := make([]Object, 0, len(v))
		for _, item := range v {
			elems, _ := item.GetValue().([]*dicom.Element)
			obj, err := encodeElements(elems)
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, codecError(key, vr, UnsupportedValue, "cannot render %T as sequence", raw)
	}
}
