// Package seg cross-references DICOM segmentation (SEG) objects back to a
// chosen source frame. A SEG object stores one mask frame per (segment,
// source frame) pair; this package finds the mask frames that overlay one
// specific source instance and extracts display metadata for the segments
// involved.
package seg

import (
	"context"
	"fmt"

	"github.com/carbocation/pfx"
	"github.com/medimageio/idcmosaic/dicomweb"
	"github.com/medimageio/idcmosaic/labpcs"
)

// DICOM JSON tags walked while resolving a SEG object.
const (
	tagSeriesDescription        = "0008103E"
	tagDerivationImageSeq       = "00089124"
	tagSourceImageSeq           = "00082112"
	tagReferencedSOPInstanceUID = "00081155"
	tagSegmentSeq               = "00620002"
	tagSegmentNumber            = "00620004"
	tagSegmentLabel             = "00620006"
	tagSegmentAlgorithmName     = "00620009"
	tagSegmentIdentificationSeq = "0062000A"
	tagReferencedSegmentNumber  = "0062000B"
	tagRecommendedDisplayCIELab = "0062000D"
	tagPerFrameFunctionalGroups = "52009230"
)

// Segment is one segment definition kept because it touches the chosen
// source frame.
type Segment struct {
	Number int
	Label  string
	RGB    [3]uint8
}

// Segmentation is the overlay metadata for one source frame: which mask
// frames of the SEG object cover it and how to render the segments involved.
type Segmentation struct {
	// SeriesUID and SOPInstanceUID identify the SEG object itself.
	SeriesUID      string
	SOPInstanceUID string

	AlgorithmName string

	// FrameMap maps segment number to the 1-based position of the SEG
	// per-frame entry that overlays the chosen source frame. Every key
	// here has a matching entry in Segments.
	FrameMap map[int]int

	Segments []Segment

	ViewerURL string
}

// PairLocator finds the segmentation series paired with a source series.
// The catalog package provides the production implementation.
type PairLocator interface {
	// SegmentationSeries returns the SEG series UID for the study, or ""
	// when the study carries none.
	SegmentationSeries(ctx context.Context, studyUID, sourceSeriesUID string) (string, error)
}

// MetadataClient is the structured-object parse capability: instance
// resolution plus DICOM JSON metadata retrieval. The dicomweb package
// provides the production implementation.
type MetadataClient interface {
	ResolveInstance(studyUID, seriesUID string, instanceIndex int) (string, error)
	InstanceMetadata(studyUID, seriesUID, sopUID string) (dicomweb.Dataset, error)
	ViewerURL(seriesUID string) string
}

// Resolver locates and resolves segmentation coverage for source frames.
type Resolver struct {
	Pairs PairLocator
	Meta  MetadataClient
}

// ForSourceFrame resolves the segmentation data overlaying one source
// frame. Returns (nil, nil) when the study has no SEG series or no per-frame
// entry references the source frame; returns an error on lookup or parse
// failure. Either way the caller treats the tile as fine without
// segmentation (fail closed, never fatal).
func (r *Resolver) ForSourceFrame(ctx context.Context, studyUID, sourceSeriesUID, sourceSOPUID string) (*Segmentation, error) {
	segSeriesUID, err := r.Pairs.SegmentationSeries(ctx, studyUID, sourceSeriesUID)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if segSeriesUID == "" {
		return nil, nil
	}

	// SEG objects are single-instance series.
	segSOPUID, err := r.Meta.ResolveInstance(studyUID, segSeriesUID, 0)
	if err != nil {
		return nil, pfx.Err(err)
	}

	ds, err := r.Meta.InstanceMetadata(studyUID, segSeriesUID, segSOPUID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	out, err := Resolve(ds, sourceSOPUID)
	if err != nil || out == nil {
		return out, err
	}

	out.SeriesUID = segSeriesUID
	out.SOPInstanceUID = segSOPUID
	out.ViewerURL = r.Meta.ViewerURL(segSeriesUID)

	return out, nil
}

// Resolve builds the frame map and segment list for one source frame from a
// SEG object's dataset. Returns (nil, nil) when no per-frame entry
// references sourceSOPUID.
func Resolve(ds dicomweb.Dataset, sourceSOPUID string) (*Segmentation, error) {
	perFrame := ds.Sequence(tagPerFrameFunctionalGroups)
	if perFrame == nil {
		return nil, fmt.Errorf("segmentation object carries no per-frame functional groups")
	}

	// Scan every per-frame entry; keep those whose source image reference
	// matches the chosen frame. The stored value is the entry's 1-based
	// position, which is the mask frame number within the SEG object.
	frameMap := make(map[int]int)
	for i, frame := range perFrame {
		if !referencesSource(frame, sourceSOPUID) {
			continue
		}

		segNum, ok := frameSegmentNumber(frame)
		if !ok {
			continue
		}

		frameMap[segNum] = i + 1
	}

	if len(frameMap) == 0 {
		// This source frame has no segmentation coverage.
		return nil, nil
	}

	out := &Segmentation{FrameMap: frameMap}

	// Keep only segment definitions that are referenced in the frame map;
	// segments not touching the chosen frame are excluded.
	for _, item := range ds.Sequence(tagSegmentSeq) {
		num, ok := item.Int(tagSegmentNumber)
		if !ok {
			continue
		}
		if _, wanted := frameMap[num]; !wanted {
			continue
		}

		segment := Segment{
			Number: num,
			Label:  item.String(tagSegmentLabel),
			// Default to pure red when no display color is declared.
			RGB: [3]uint8{255, 0, 0},
		}

		if lab := item.Uint16s(tagRecommendedDisplayCIELab); len(lab) == 3 {
			r, g, b := labpcs.RGB(lab[0], lab[1], lab[2])
			segment.RGB = [3]uint8{r, g, b}
		}

		if out.AlgorithmName == "" {
			out.AlgorithmName = item.String(tagSegmentAlgorithmName)
		}

		out.Segments = append(out.Segments, segment)
	}

	if len(out.Segments) == 0 {
		return nil, fmt.Errorf("per-frame entries reference segments missing from the segment sequence")
	}

	// Per-frame entries can reference segment numbers the object never
	// declares; drop those so every frame-map key has a segment.
	if len(out.Segments) != len(frameMap) {
		declared := make(map[int]bool, len(out.Segments))
		for _, segment := range out.Segments {
			declared[segment.Number] = true
		}
		for num := range frameMap {
			if !declared[num] {
				delete(frameMap, num)
			}
		}
	}

	if out.AlgorithmName == "" {
		out.AlgorithmName = ds.String(tagSeriesDescription)
	}

	return out, nil
}

// referencesSource reports whether a per-frame entry's derivation chain
// points at the chosen source instance.
func referencesSource(frame dicomweb.Dataset, sourceSOPUID string) bool {
	for _, derivation := range frame.Sequence(tagDerivationImageSeq) {
		for _, src := range derivation.Sequence(tagSourceImageSeq) {
			if src.String(tagReferencedSOPInstanceUID) == sourceSOPUID {
				return true
			}
		}
	}

	return false
}

func frameSegmentNumber(frame dicomweb.Dataset) (int, bool) {
	for _, ident := range frame.Sequence(tagSegmentIdentificationSeq) {
		if n, ok := ident.Int(tagReferencedSegmentNumber); ok {
			return n, true
		}
	}

	return 0, false
}
