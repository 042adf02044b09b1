// Package dicomio wraps the dicom parser with the small set of element
// lookups the fusion pipeline needs: single tags, multi-valued numeric tags,
// and nested sequence traversal for registration and structure-set objects.
package dicomio

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

// ParseFile reads and decodes a DICOM file, dropping pixel data. The dicom
// library panics on some malformed inputs, so parsing runs behind a recover.
func ParseFile(path string) (*element.DataSet, error) {
	bts, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	p, err := dicom.NewParserFromBytes(bts, nil)
	if err != nil {
		return nil, pfx.Err(err)
	}

	ds, err := safelyParse(p, dicom.ParseOptions{DropPixelData: true})
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("dicomio: parsing %s: %v", path, err))
	}

	return ds, nil
}

// safelyParse consumes panics emitted by the dicom library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func safelyParse(p dicom.Parser, opts dicom.ParseOptions) (ds *element.DataSet, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	return p.Parse(opts)
}

// Find returns the first top-level element with the given tag, or nil.
func Find(ds *element.DataSet, t dicomtag.Tag) *element.Element {
	if ds == nil {
		return nil
	}
	for _, elem := range ds.Elements {
		if elem.Tag.Compare(t) == 0 {
			return elem
		}
	}
	return nil
}

// FindString returns the trimmed string value of a top-level tag.
func FindString(ds *element.DataSet, t dicomtag.Tag) (string, bool) {
	return ElementString(Find(ds, t))
}

// ElementString extracts a single trimmed string value from an element.
func ElementString(e *element.Element) (string, bool) {
	if e == nil || len(e.Value) == 0 {
		return "", false
	}
	s, ok := e.Value[0].(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// ElementStrings extracts every string value from a multi-valued element.
func ElementStrings(e *element.Element) []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Value))
	for _, v := range e.Value {
		if s, ok := v.(string); ok {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// ElementFloats parses a multi-valued decimal-string element (DS) into
// float64s.
func ElementFloats(e *element.Element) ([]float64, error) {
	if e == nil {
		return nil, pfx.Err(fmt.Errorf("dicomio: element not present"))
	}

	out := make([]float64, 0, len(e.Value))
	for _, v := range e.Value {
		s, ok := v.(string)
		if !ok {
			return nil, pfx.Err(fmt.Errorf("dicomio: tag %v holds %T, expected decimal string", e.Tag, v))
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, pfx.Err(err)
		}
		out = append(out, f)
	}

	return out, nil
}

// ElementInt parses a single integer-string (IS) or binary (US) value.
func ElementInt(e *element.Element) (int, bool) {
	if e == nil || len(e.Value) == 0 {
		return 0, false
	}
	switch v := e.Value[0].(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	}
	return 0, false
}

// SequenceItems returns the item elements nested inside a sequence element.
func SequenceItems(seq *element.Element) []*element.Element {
	if seq == nil {
		return nil
	}
	var items []*element.Element
	for _, v := range seq.Value {
		if item, ok := v.(*element.Element); ok {
			items = append(items, item)
		}
	}
	return items
}

// FindInItem returns the first element with the given tag inside a sequence
// item, or nil. Only one nesting level is searched; callers walk deeper
// sequences one level at a time.
func FindInItem(item *element.Element, t dicomtag.Tag) *element.Element {
	if item == nil {
		return nil
	}
	for _, v := range item.Value {
		e, ok := v.(*element.Element)
		if !ok {
			continue
		}
		if e.Tag.Compare(t) == 0 {
			return e
		}
	}
	return nil
}
