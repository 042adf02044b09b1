package rtstruct

import (
	"strconv"
	"testing"

	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"

	"github.com/oncotools/regfusion/dicomio"
)

func strElem(t dicomtag.Tag, values ...string) *element.Element {
	v := make([]interface{}, 0, len(values))
	for _, s := range values {
		v = append(v, s)
	}
	return &element.Element{Tag: t, Value: v}
}

func seqElem(t dicomtag.Tag, items ...*element.Element) *element.Element {
	v := make([]interface{}, 0, len(items))
	for _, item := range items {
		v = append(v, item)
	}
	return &element.Element{Tag: t, Value: v}
}

func itemElem(children ...*element.Element) *element.Element {
	v := make([]interface{}, 0, len(children))
	for _, c := range children {
		v = append(v, c)
	}
	return &element.Element{Tag: dicomtag.Item, Value: v}
}

func roiDef(num int, name string) *element.Element {
	return itemElem(
		strElem(dicomio.TagROINumber, strconv.Itoa(num)),
		strElem(dicomio.TagROIName, name),
	)
}

func contourItem(points ...[3]float64) *element.Element {
	data := make([]string, 0, len(points)*3)
	for _, p := range points {
		for _, v := range p {
			data = append(data, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return itemElem(strElem(dicomio.TagContourData, data...))
}

func roiContours(num int, contours ...*element.Element) *element.Element {
	return itemElem(
		strElem(dicomio.TagReferencedROINumber, strconv.Itoa(num)),
		seqElem(dicomio.TagContourSequence, contours...),
	)
}

func structDataSet(defs []*element.Element, contours []*element.Element) *element.DataSet {
	return &element.DataSet{Elements: []*element.Element{
		seqElem(dicomio.TagStructureSetROISequence, defs...),
		seqElem(dicomio.TagROIContourSequence, contours...),
	}}
}

var triangle = [][3]float64{{0, 0, 5}, {10, 0, 5}, {0, 10, 5}}

func TestParseJoinsNamesToContours(t *testing.T) {
	ds := structDataSet(
		[]*element.Element{roiDef(1, "External"), roiDef(2, "PTV")},
		[]*element.Element{
			roiContours(1, contourItem(triangle...)),
			roiContours(2, contourItem(triangle...), contourItem(triangle...)),
		},
	)

	set, err := ParseDataSet(ds, "rs.dcm")
	if err != nil {
		t.Fatalf("ParseDataSet: %v", err)
	}
	if len(set.ROIs) != 2 {
		t.Fatalf("got %d ROIs, want 2", len(set.ROIs))
	}

	ptv := set.FindByNames("ptv")
	if ptv == nil || ptv.Number != 2 {
		t.Fatalf("PTV lookup failed: %+v", ptv)
	}
	if len(ptv.Contours) != 2 {
		t.Fatalf("PTV has %d contours, want 2", len(ptv.Contours))
	}
	if got := ptv.Contours[0].Points[1]; got != [3]float64{10, 0, 5} {
		t.Fatalf("contour point = %v", got)
	}
}

func TestBodyMatchesAliasesCaseInsensitively(t *testing.T) {
	for _, name := range []string{"BODY", "body", "External", "Body Contour", "BODYCONTOUR"} {
		ds := structDataSet(
			[]*element.Element{roiDef(7, name)},
			[]*element.Element{roiContours(7, contourItem(triangle...))},
		)

		set, err := ParseDataSet(ds, "rs.dcm")
		if err != nil {
			t.Fatalf("ParseDataSet(%s): %v", name, err)
		}
		if body := set.Body(); body == nil || body.Number != 7 {
			t.Fatalf("Body() did not match alias %q", name)
		}
	}

	ds := structDataSet(
		[]*element.Element{roiDef(1, "PTV")},
		[]*element.Element{roiContours(1, contourItem(triangle...))},
	)
	set, err := ParseDataSet(ds, "rs.dcm")
	if err != nil {
		t.Fatalf("ParseDataSet: %v", err)
	}
	if set.Body() != nil {
		t.Fatal("Body() matched a non-body ROI")
	}
}

func TestParseDropsDegenerateContours(t *testing.T) {
	ds := structDataSet(
		[]*element.Element{roiDef(1, "BODY")},
		[]*element.Element{roiContours(1,
			contourItem(triangle[0], triangle[1]), // two points, not a ring
			contourItem(triangle...),
		)},
	)

	set, err := ParseDataSet(ds, "rs.dcm")
	if err != nil {
		t.Fatalf("ParseDataSet: %v", err)
	}
	body := set.Body()
	if body == nil || len(body.Contours) != 1 {
		t.Fatalf("degenerate ring not dropped: %+v", body)
	}
}

func TestParseRequiresContourSequence(t *testing.T) {
	ds := &element.DataSet{Elements: []*element.Element{
		seqElem(dicomio.TagStructureSetROISequence, roiDef(1, "BODY")),
	}}

	if _, err := ParseDataSet(ds, "rs.dcm"); err == nil {
		t.Fatal("missing ROIContourSequence accepted")
	}
}
