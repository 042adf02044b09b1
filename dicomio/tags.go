package dicomio

import "github.com/suyashkumar/dicom/dicomtag"

// Registration (REG) and structure-set (RTSTRUCT) sequence tags. Spelled out
// by group/element because they sit outside the image-level tags this
// codebase otherwise touches.
var (
	TagRegistrationSequence       = dicomtag.Tag{Group: 0x0070, Element: 0x0308}
	TagMatrixRegistrationSequence = dicomtag.Tag{Group: 0x0070, Element: 0x0309}
	TagMatrixSequence             = dicomtag.Tag{Group: 0x0070, Element: 0x030A}
	TagTransformationMatrix       = dicomtag.Tag{Group: 0x3006, Element: 0x00C6}
	TagTransformationMatrixType   = dicomtag.Tag{Group: 0x0070, Element: 0x030C}

	TagReferencedSeriesSequence = dicomtag.Tag{Group: 0x0008, Element: 0x1115}

	TagStructureSetROISequence = dicomtag.Tag{Group: 0x3006, Element: 0x0020}
	TagROINumber               = dicomtag.Tag{Group: 0x3006, Element: 0x0022}
	TagROIName                 = dicomtag.Tag{Group: 0x3006, Element: 0x0026}
	TagROIContourSequence      = dicomtag.Tag{Group: 0x3006, Element: 0x0039}
	TagContourSequence         = dicomtag.Tag{Group: 0x3006, Element: 0x0040}
	TagContourGeometricType    = dicomtag.Tag{Group: 0x3006, Element: 0x0042}
	TagContourData             = dicomtag.Tag{Group: 0x3006, Element: 0x0050}
	TagReferencedROINumber     = dicomtag.Tag{Group: 0x3006, Element: 0x0084}

	TagFrameOfReferenceUID      = dicomtag.Tag{Group: 0x0020, Element: 0x0052}
	TagImageOrientationPatient  = dicomtag.Tag{Group: 0x0020, Element: 0x0037}
	TagSeriesInstanceUID        = dicomtag.Tag{Group: 0x0020, Element: 0x000E}
	TagSOPInstanceUID           = dicomtag.Tag{Group: 0x0008, Element: 0x0018}
	TagSOPClassUID              = dicomtag.Tag{Group: 0x0008, Element: 0x0016}
	TagModality                 = dicomtag.Tag{Group: 0x0008, Element: 0x0060}
	TagWindowWidth              = dicomtag.Tag{Group: 0x0028, Element: 0x1051}
)

// SOP class of DICOM Spatial Registration objects.
const SpatialRegistrationSOPClass = "1.2.840.10008.5.1.4.1.1.66.1"
