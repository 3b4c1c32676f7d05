package sample

import (
	"math/rand"
)

// RadiologySelector picks one renderable frame from a 2-D or volumetric
// series. For volumes it avoids the edge slices, which are disproportionately
// blank, by drawing from the middle 60% of the instance range.
type RadiologySelector struct {
	Frames  FrameService
	Content *ContentValidator

	// Attempts bounds the redraw-and-validate loop when content filtering
	// is enabled.
	Attempts int
}

// NewRadiologySelector wires the selector with cfg's retry bound.
func NewRadiologySelector(frames FrameService, content *ContentValidator, cfg Config) *RadiologySelector {
	return &RadiologySelector{
		Frames:   frames,
		Content:  content,
		Attempts: cfg.FrameAttempts,
	}
}

// Select resolves one frame of the candidate series into a TileSample, or
// nil when no frame identifier could be resolved at all.
//
// With content filtering enabled on a multi-instance series, up to Attempts
// frames are drawn and validated; the first non-rejected frame wins. When
// every attempt is rejected, the last successfully resolved frame is
// returned anyway: volumetric series essentially never have zero usable
// content, so an unvalidated middle slice beats an empty slot. Filtering is
// skipped outright for single-instance series (there is no alternative frame
// to draw) and when disabled.
func (s *RadiologySelector) Select(rng *rand.Rand, cand SeriesCandidate, contentFilter bool) *TileSample {
	if !contentFilter || cand.InstanceCount <= 1 {
		return s.resolve(cand, drawFrameIndex(rng, cand.InstanceCount))
	}

	var last *TileSample
	for attempt := 0; attempt < s.attempts(); attempt++ {
		ts := s.resolve(cand, drawFrameIndex(rng, cand.InstanceCount))
		if ts == nil {
			continue
		}
		last = ts

		if s.Content.Check(ts.TileURL, false) != Rejected {
			return ts
		}
	}

	return last
}

func (s *RadiologySelector) attempts() int {
	if s.Attempts <= 0 {
		return 3
	}
	return s.Attempts
}

// resolve maps the frame index onto a concrete instance and builds the
// sample. Returns nil when identifier resolution fails for this draw.
func (s *RadiologySelector) resolve(cand SeriesCandidate, frameIndex int) *TileSample {
	sopUID, err := s.Frames.ResolveInstance(cand.StudyUID, cand.SeriesUID, frameIndex)
	if err != nil || sopUID == "" {
		return nil
	}

	// Radiology instances are single-frame: the rendered URL always
	// addresses frame 1 of the resolved instance.
	const frameNumber = 1

	return &TileSample{
		SeriesUID:      cand.SeriesUID,
		StudyUID:       cand.StudyUID,
		SOPInstanceUID: sopUID,
		Modality:       cand.Modality,
		BodyPart:       cand.BodyPart,
		CollectionID:   cand.CollectionID,
		InstanceCount:  cand.InstanceCount,
		FrameNumber:    frameNumber,
		TileURL:        s.Frames.RenderedFrameURL(cand.StudyUID, cand.SeriesUID, sopUID, frameNumber),
		ViewerURL:      s.Frames.ViewerURL(cand.SeriesUID),
	}
}

// drawFrameIndex picks a 0-based instance index: always 0 for
// single-instance series, otherwise uniform over the middle 60% of the
// instance range (at least one index wide).
func drawFrameIndex(rng *rand.Rand, instanceCount int) int {
	if instanceCount <= 1 {
		return 0
	}

	lo, hi := centralWindow(instanceCount)

	return lo + rng.Intn(hi-lo)
}

// centralWindow returns the half-open [lo, hi) index window covering the
// central 60% of n positions, widened to at least one index.
func centralWindow(n int) (lo, hi int) {
	lo = n * 20 / 100
	hi = n * 80 / 100
	if hi <= lo {
		hi = lo + 1
	}

	return lo, hi
}
