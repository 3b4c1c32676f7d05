package sample

import (
	"encoding/json"
	"log"
	"os"

	"github.com/carbocation/pfx"
)

// Config carries the tunable sampling parameters. Every field has a default,
// so a config file is optional; the defaults are the tested baseline.
type Config struct {
	ConfigPath string `json:"-"`

	// Modalities eligible for sampling. Slide microscopy (SlideModality) is
	// stratified as its own category.
	Modalities    []string `json:"modalities"`
	SlideModality string   `json:"slide_modality"`

	// Catalog filters.
	MinInstanceCount     int      `json:"min_instance_count"`
	ExcludedDescriptions []string `json:"excluded_descriptions"`
	PixelSpacingMin      float64  `json:"pixel_spacing_min"`
	PixelSpacingMax      float64  `json:"pixel_spacing_max"`

	// Oversampling factors: how many more candidate series to draw per
	// category than its strict allocation, to absorb rejections. Slide
	// rejection rates are much higher, hence the separate factor.
	Oversample      float64 `json:"oversample"`
	SlideOversample float64 `json:"slide_oversample"`

	// Content validation.
	ContentFilter     bool    `json:"content_filter"`
	VarianceThreshold float64 `json:"variance_threshold"`
	TissueFraction    float64 `json:"tissue_fraction"`
	TissueCutoff      float64 `json:"tissue_cutoff"`

	// Retry bounds.
	FrameAttempts int `json:"frame_attempts"`
	LayerAttempts int `json:"layer_attempts"`
	TileAttempts  int `json:"tile_attempts"`

	// Segmentation attachment for radiology tiles.
	AttachSegmentation bool `json:"attach_segmentation"`
}

// DefaultConfig returns the baseline parameters.
func DefaultConfig() Config {
	return Config{
		Modalities:        []string{"CT", "MR", "PT", "CR", "DX", "MG", "US", "SM", "XA", "NM"},
		SlideModality:     "SM",
		MinInstanceCount:  1,
		PixelSpacingMin:   0,
		PixelSpacingMax:   0, // 0 means no upper bound
		Oversample:        1.3,
		SlideOversample:   3.0,
		ContentFilter:     true,
		VarianceThreshold: 0.005,
		TissueFraction:    0.15,
		TissueCutoff:      0.85,
		FrameAttempts:     3,
		LayerAttempts:     5,
		TileAttempts:      3,
	}
}

// ParseJSONConfigFromPath overlays a JSON config file onto the defaults.
func ParseJSONConfigFromPath(path string) (Config, error) {
	out := DefaultConfig()
	out.ConfigPath = path

	f, err := os.Open(path)
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	err = json.NewDecoder(f).Decode(&out)
	if err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
			return out, pfx.Err(err)
		}

		return out, pfx.Err(err)
	}

	return out, nil
}
