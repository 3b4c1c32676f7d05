package manifest

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/medimageio/idcmosaic/sample"
	"github.com/medimageio/idcmosaic/seg"
)

func testSamples() []sample.TileSample {
	return []sample.TileSample{
		{
			SeriesUID:     "series-ct-1",
			StudyUID:      "study-1",
			Modality:      "CT",
			BodyPart:      "CHEST",
			CollectionID:  "nlst",
			InstanceCount: 120,
			FrameNumber:   1,
			TileURL:       "https://frames.test/ct-1",
			ViewerURL:     "https://viewer.test/ct-1",
			Segmentation: &seg.Segmentation{
				SeriesUID: "seg-series-1",
				FrameMap:  map[int]int{1: 2, 2: 4},
				Segments: []seg.Segment{
					{Number: 1, Label: "Liver", RGB: [3]uint8{255, 255, 255}},
					{Number: 2, Label: "Spleen", RGB: [3]uint8{255, 0, 0}},
				},
			},
		},
		{
			SeriesUID:    "series-ct-2",
			Modality:     "CT",
			CollectionID: "nlst",
			TileURL:      "https://frames.test/ct-2",
		},
		{
			SeriesUID:    "series-sm-1",
			Modality:     "SM",
			CollectionID: "tcga_brca",
			FrameNumber:  742,
			TileURL:      "https://frames.test/sm-1",
		},
	}
}

func TestNewManifest(t *testing.T) {
	m := New(testSamples(), "v20")

	if m.IDCVersion != "v20" {
		t.Errorf("IDCVersion = %q, want v20", m.IDCVersion)
	}
	if m.TotalTiles != 3 || len(m.Tiles) != 3 {
		t.Fatalf("TotalTiles = %d with %d tiles, want 3 of each", m.TotalTiles, len(m.Tiles))
	}
	if m.Generated.IsZero() {
		t.Error("Generated timestamp is zero")
	}

	for i, tile := range m.Tiles {
		if tile.Index != i {
			t.Errorf("Tile %d has index %d", i, tile.Index)
		}
	}

	first := m.Tiles[0]
	if first.Segmentation == nil {
		t.Fatal("First tile lost its segmentation")
	}
	if len(first.Segmentation.Segments) != 2 || first.Segmentation.FrameMap[2] != 4 {
		t.Errorf("Segmentation block = %+v", first.Segmentation)
	}
	if m.Tiles[1].Segmentation != nil {
		t.Error("Second tile should carry no segmentation")
	}
}

func TestWriteJSONShape(t *testing.T) {
	var buf bytes.Buffer
	if err := New(testSamples(), "v20").WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}

	// Round-trip through a loose map to check the field names downstream
	// consumers key on.
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"generated", "idc_version", "total_tiles", "tiles"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Manifest JSON is missing %q", key)
		}
	}

	tiles, ok := decoded["tiles"].([]interface{})
	if !ok || len(tiles) != 3 {
		t.Fatalf("tiles = %v", decoded["tiles"])
	}

	tile, ok := tiles[0].(map[string]interface{})
	if !ok {
		t.Fatalf("First tile = %v", tiles[0])
	}
	for _, key := range []string{"index", "tile_url", "viewer_url", "modality", "body_part", "collection", "series_uid", "frame_number", "segmentation"} {
		if _, ok := tile[key]; !ok {
			t.Errorf("Tile JSON is missing %q", key)
		}
	}

	if _, ok := tiles[1].(map[string]interface{})["segmentation"]; ok {
		t.Error("Tiles without segmentation must omit the field")
	}
}

func TestModalityDistribution(t *testing.T) {
	m := New(testSamples(), "v20")

	got := m.ModalityDistribution()
	if len(got) != 2 {
		t.Fatalf("Expected 2 modalities, got %v", got)
	}

	if got[0].Modality != "CT" || got[0].Tiles != 2 {
		t.Errorf("Largest modality = %+v, want CT with 2 tiles", got[0])
	}
	if got[1].Modality != "SM" || got[1].Tiles != 1 {
		t.Errorf("Second modality = %+v, want SM with 1 tile", got[1])
	}
}

func TestSegmentationCoverage(t *testing.T) {
	if got := New(testSamples(), "v20").SegmentationCoverage(); got != 1 {
		t.Errorf("SegmentationCoverage = %d, want 1", got)
	}
}

func TestCitations(t *testing.T) {
	samples := testSamples()
	// A tile with no collection must not produce a citation row.
	samples = append(samples, sample.TileSample{SeriesUID: "series-x", Modality: "MR"})

	got := Citations(samples)
	if len(got) != 2 {
		t.Fatalf("Expected 2 citation rows, got %v", got)
	}

	if got[0].CollectionID != "nlst" || got[0].Tiles != 2 {
		t.Errorf("First citation = %+v, want nlst with 2 tiles", got[0])
	}
	if got[1].CollectionID != "tcga_brca" || got[1].Tiles != 1 {
		t.Errorf("Second citation = %+v, want tcga_brca with 1 tile", got[1])
	}

	if !strings.Contains(got[0].PortalURL, "collection_id=nlst") {
		t.Errorf("Portal link %q does not name the collection", got[0].PortalURL)
	}
}
