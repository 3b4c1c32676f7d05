// Package manifest serializes sampled tiles into the gallery manifest and
// the collection citation export, and summarizes a run for the operator.
package manifest

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"

	"github.com/medimageio/idcmosaic"
	"github.com/medimageio/idcmosaic/sample"
	"github.com/medimageio/idcmosaic/seg"
)

// Tile is one manifest record.
type Tile struct {
	Index          int    `json:"index"`
	TileURL        string `json:"tile_url"`
	ViewerURL      string `json:"viewer_url"`
	Modality       string `json:"modality"`
	BodyPart       string `json:"body_part"`
	Collection     string `json:"collection"`
	SeriesUID      string `json:"series_uid"`
	StudyUID       string `json:"study_uid"`
	SOPInstanceUID string `json:"sop_uid"`
	InstanceCount  int    `json:"instance_count"`
	FrameNumber    int    `json:"frame_number"`

	Segmentation *SegmentationBlock `json:"segmentation,omitempty"`
}

// SegmentationBlock carries the full overlay metadata for a tile, losslessly:
// the complete frame map and segment list.
type SegmentationBlock struct {
	SeriesUID      string         `json:"series_uid"`
	SOPInstanceUID string         `json:"sop_uid"`
	AlgorithmName  string         `json:"algorithm_name,omitempty"`
	FrameMap       map[int]int    `json:"frame_map"`
	Segments       []SegmentBlock `json:"segments"`
	ViewerURL      string         `json:"viewer_url,omitempty"`
}

// SegmentBlock is one renderable segment.
type SegmentBlock struct {
	Number int      `json:"number"`
	Label  string   `json:"label"`
	RGB    [3]uint8 `json:"rgb"`
}

// Manifest is the on-disk artifact the downstream gallery consumes.
type Manifest struct {
	Generated  time.Time `json:"generated"`
	IDCVersion string    `json:"idc_version"`
	TotalTiles int       `json:"total_tiles"`
	Tiles      []Tile    `json:"tiles"`
}

// New builds a manifest from sampled tiles.
func New(samples []sample.TileSample, idcVersion string) Manifest {
	out := Manifest{
		Generated:  time.Now().UTC(),
		IDCVersion: idcVersion,
		TotalTiles: len(samples),
		Tiles:      make([]Tile, 0, len(samples)),
	}

	for i, s := range samples {
		out.Tiles = append(out.Tiles, Tile{
			Index:          i,
			TileURL:        s.TileURL,
			ViewerURL:      s.ViewerURL,
			Modality:       s.Modality,
			BodyPart:       s.BodyPart,
			Collection:     s.CollectionID,
			SeriesUID:      s.SeriesUID,
			StudyUID:       s.StudyUID,
			SOPInstanceUID: s.SOPInstanceUID,
			InstanceCount:  s.InstanceCount,
			FrameNumber:    s.FrameNumber,
			Segmentation:   segmentationBlock(s.Segmentation),
		})
	}

	return out
}

func segmentationBlock(sg *seg.Segmentation) *SegmentationBlock {
	if sg == nil {
		return nil
	}

	out := &SegmentationBlock{
		SeriesUID:      sg.SeriesUID,
		SOPInstanceUID: sg.SOPInstanceUID,
		AlgorithmName:  sg.AlgorithmName,
		FrameMap:       sg.FrameMap,
		ViewerURL:      sg.ViewerURL,
	}

	for _, segment := range sg.Segments {
		out.Segments = append(out.Segments, SegmentBlock{
			Number: segment.Number,
			Label:  segment.Label,
			RGB:    segment.RGB,
		})
	}

	return out
}

// WriteJSON serializes the manifest, indented for human diffing.
func (m Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return pfx.Err(enc.Encode(m))
}

// Write stores the manifest at path, which may be local or gs://.
func Write(path string, m Manifest, client *storage.Client) error {
	w, err := idcmosaic.CreateMaybeGoogleStorage(path, client)
	if err != nil {
		return err
	}

	if err := m.WriteJSON(w); err != nil {
		w.Close()
		return err
	}

	return pfx.Err(w.Close())
}

// ModalityDistribution counts tiles per modality, for the run summary.
func (m Manifest) ModalityDistribution() []ModalityCount {
	counts := make(map[string]int)
	for _, t := range m.Tiles {
		counts[t.Modality]++
	}

	out := make([]ModalityCount, 0, len(counts))
	for modality, n := range counts {
		out = append(out, ModalityCount{Modality: modality, Tiles: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Tiles != out[j].Tiles {
			return out[i].Tiles > out[j].Tiles
		}
		return out[i].Modality < out[j].Modality
	})

	return out
}

// ModalityCount is one row of the run summary.
type ModalityCount struct {
	Modality string
	Tiles    int
}

// SegmentationCoverage counts tiles that carry segmentation data.
func (m Manifest) SegmentationCoverage() int {
	n := 0
	for _, t := range m.Tiles {
		if t.Segmentation != nil {
			n++
		}
	}

	return n
}
