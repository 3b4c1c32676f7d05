package sample

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"modalities": ["CT", "MR"],
		"variance_threshold": 0.01,
		"attach_segmentation": true
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseJSONConfigFromPath(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Modalities) != 2 {
		t.Errorf("Modalities = %v, want the overridden pair", cfg.Modalities)
	}
	if cfg.VarianceThreshold != 0.01 {
		t.Errorf("VarianceThreshold = %v, want 0.01", cfg.VarianceThreshold)
	}
	if !cfg.AttachSegmentation {
		t.Error("attach_segmentation override lost")
	}

	// Fields absent from the file keep their defaults.
	if cfg.SlideModality != "SM" || cfg.Oversample != 1.3 || cfg.FrameAttempts != 3 {
		t.Errorf("Defaults disturbed: %+v", cfg)
	}
}

func TestParseJSONConfigMissingFile(t *testing.T) {
	if _, err := ParseJSONConfigFromPath(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestParseJSONConfigSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"modalities": [`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ParseJSONConfigFromPath(path); err == nil {
		t.Error("Expected an error for malformed JSON")
	}
}
