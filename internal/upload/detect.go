package upload

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the broad category of a selected file
type Kind string

const (
	KindImage Kind = "image"
	KindDICOM Kind = "dicom"
	KindNIfTI Kind = "nifti"
	KindOther Kind = "other"
)

const (
	mimeDICOM = "application/dicom"
	mimeNIfTI = "application/x-nifti"
)

// sniffLen covers the DICOM preamble and the NIfTI-1 header magic
const sniffLen = 3072

// Detect classifies a file from its leading bytes and name. The backend is
// the source of truth for supported formats; this only drives the preview.
func Detect(name string, head []byte) (string, Kind) {
	lower := strings.ToLower(name)

	// Part 10 files carry "DICM" after a 128 byte preamble
	if len(head) >= 132 && string(head[128:132]) == "DICM" {
		return mimeDICOM, KindDICOM
	}
	if strings.HasSuffix(lower, ".dcm") {
		return mimeDICOM, KindDICOM
	}

	// NIfTI-1 single file magic at offset 344
	if len(head) >= 348 && (bytes.Equal(head[344:348], []byte("n+1\x00")) || bytes.Equal(head[344:348], []byte("ni1\x00"))) {
		return mimeNIfTI, KindNIfTI
	}
	if strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz") {
		return mimeNIfTI, KindNIfTI
	}

	mt := mimetype.Detect(head)
	if strings.HasPrefix(mt.String(), "image/") {
		return mt.String(), KindImage
	}
	return mt.String(), KindOther
}
