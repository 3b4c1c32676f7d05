package dicomweb

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Attribute is one DICOM JSON attribute: a value representation plus its
// value array (PS3.18 Annex F). Sequence items appear as nested datasets in
// Value.
type Attribute struct {
	VR    string            `json:"vr"`
	Value []json.RawMessage `json:"Value,omitempty"`
}

// Dataset is a DICOM JSON dataset keyed by 8-hex-digit tag ("GGGGEEEE",
// upper case). It is the structured-object view the segmentation resolver
// walks.
type Dataset map[string]Attribute

// String returns the first value of tag as a string, or "" when absent or of
// another kind.
func (d Dataset) String(tag string) string {
	attr, ok := d[strings.ToUpper(tag)]
	if !ok || len(attr.Value) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(attr.Value[0], &s); err == nil {
		return s
	}

	// PN values arrive as {"Alphabetic": "..."} objects.
	var pn struct {
		Alphabetic string `json:"Alphabetic"`
	}
	if err := json.Unmarshal(attr.Value[0], &pn); err == nil {
		return pn.Alphabetic
	}

	return ""
}

// Int returns the first value of tag as an int. Handles both JSON numbers
// (US/UL/IS post-conversion) and numeric strings.
func (d Dataset) Int(tag string) (int, bool) {
	attr, ok := d[strings.ToUpper(tag)]
	if !ok || len(attr.Value) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(attr.Value[0], &f); err == nil {
		return int(f), true
	}

	var s string
	if err := json.Unmarshal(attr.Value[0], &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}

	return 0, false
}

// Uint16s returns all values of tag as uint16s, or nil when the tag is
// absent or non-numeric.
func (d Dataset) Uint16s(tag string) []uint16 {
	attr, ok := d[strings.ToUpper(tag)]
	if !ok || len(attr.Value) == 0 {
		return nil
	}

	out := make([]uint16, 0, len(attr.Value))
	for _, raw := range attr.Value {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil
		}
		out = append(out, uint16(f))
	}

	return out
}

// Sequence returns the sequence items of tag as nested datasets. Nil when
// the tag is absent or not a sequence.
func (d Dataset) Sequence(tag string) []Dataset {
	attr, ok := d[strings.ToUpper(tag)]
	if !ok || len(attr.Value) == 0 {
		return nil
	}

	out := make([]Dataset, 0, len(attr.Value))
	for _, raw := range attr.Value {
		var item Dataset
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil
		}
		out = append(out, item)
	}

	return out
}
