package sample

import (
	"math/rand"
	"sort"
)

// DefaultTileSize is the tile edge length, in pixels, of the grid each
// pyramid layer is addressed by.
const DefaultTileSize = 512

// SlideSelector picks one tile frame from a slide-microscopy pyramid. A
// slide series is a stack of resolution layers, each internally tiled into a
// fixed-size grid; the selector draws tiles from the central region of a
// random layer and falls back toward coarser layers when draws keep getting
// rejected.
type SlideSelector struct {
	Frames  FrameService
	Content *ContentValidator

	LayerAttempts int
	TileAttempts  int
	TileSize      int
}

// NewSlideSelector wires the selector with cfg's retry bounds.
func NewSlideSelector(frames FrameService, content *ContentValidator, cfg Config) *SlideSelector {
	return &SlideSelector{
		Frames:        frames,
		Content:       content,
		LayerAttempts: cfg.LayerAttempts,
		TileAttempts:  cfg.TileAttempts,
		TileSize:      DefaultTileSize,
	}
}

// Select resolves one tile of the slide series into a TileSample.
//
// Unlike the radiology selector there is no unvalidated fallback: when
// content filtering is enabled and every draw is rejected, Select returns
// nil. Unfiltered slide frames are usually pure background and not worth
// keeping. With filtering disabled a single draw at the starting layer
// suffices.
func (s *SlideSelector) Select(rng *rand.Rand, series SlideSeries, contentFilter bool) *TileSample {
	if len(series.Layers) == 0 {
		return nil
	}

	layers := make([]PyramidLayer, len(series.Layers))
	copy(layers, series.Layers)

	// Finest resolution first.
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].PixelSpacingMM < layers[j].PixelSpacingMM
	})

	search := newSlideSearch(rng, layers, s.layerAttempts(), s.tileAttempts(), s.tileSize())

	if !contentFilter {
		cand, ok := search.next()
		if !ok {
			return nil
		}
		return s.resolve(series, cand)
	}

	for {
		cand, ok := search.next()
		if !ok {
			return nil
		}

		ts := s.resolve(series, cand)
		if ts == nil {
			continue
		}

		if s.Content.Check(ts.TileURL, true) != Rejected {
			return ts
		}
	}
}

func (s *SlideSelector) layerAttempts() int {
	if s.LayerAttempts <= 0 {
		return 5
	}
	return s.LayerAttempts
}

func (s *SlideSelector) tileAttempts() int {
	if s.TileAttempts <= 0 {
		return 3
	}
	return s.TileAttempts
}

func (s *SlideSelector) tileSize() int {
	if s.TileSize <= 0 {
		return DefaultTileSize
	}
	return s.TileSize
}

func (s *SlideSelector) resolve(series SlideSeries, cand slideCandidate) *TileSample {
	// The layer's ordinal position within the pyramid doubles as its
	// instance index for identifier resolution.
	sopUID, err := s.Frames.ResolveInstance(series.StudyUID, series.SeriesUID, cand.layerIndex)
	if err != nil || sopUID == "" {
		return nil
	}

	return &TileSample{
		SeriesUID:      series.SeriesUID,
		StudyUID:       series.StudyUID,
		SOPInstanceUID: sopUID,
		Modality:       series.Modality,
		BodyPart:       series.BodyPart,
		CollectionID:   series.CollectionID,
		InstanceCount:  cand.nTilesX * cand.nTilesY,
		FrameNumber:    cand.frameNumber(),
		TileURL:        s.Frames.RenderedFrameURL(series.StudyUID, series.SeriesUID, sopUID, cand.frameNumber()),
		ViewerURL:      s.Frames.ViewerURL(series.SeriesUID),
	}
}

// slideCandidate is one (layer, tile) draw in the fallback search order.
type slideCandidate struct {
	layerIndex       int
	tileX, tileY     int
	nTilesX, nTilesY int
}

// frameNumber is the 1-based row-major frame number of the tile within its
// layer.
func (c slideCandidate) frameNumber() int {
	return c.tileY*c.nTilesX + c.tileX + 1
}

// slideSearch lazily yields candidate (layer, tile) pairs in priority order:
// random tiles in the central 60% window of a random starting layer, then of
// progressively coarser layers, never wrapping past the coarsest. Collapsing
// the two bounded retry loops into one sequence keeps the search testable.
type slideSearch struct {
	rng      *rand.Rand
	layers   []PyramidLayer
	start    int
	tileSize int

	layerAttempts int
	tileAttempts  int

	layerAttempt int
	tileAttempt  int
}

func newSlideSearch(rng *rand.Rand, sortedLayers []PyramidLayer, layerAttempts, tileAttempts, tileSize int) *slideSearch {
	return &slideSearch{
		rng:           rng,
		layers:        sortedLayers,
		start:         rng.Intn(len(sortedLayers)),
		tileSize:      tileSize,
		layerAttempts: layerAttempts,
		tileAttempts:  tileAttempts,
	}
}

func (s *slideSearch) next() (slideCandidate, bool) {
	for {
		if s.layerAttempt >= s.layerAttempts {
			return slideCandidate{}, false
		}

		if s.tileAttempt >= s.tileAttempts {
			s.layerAttempt++
			s.tileAttempt = 0
			continue
		}
		s.tileAttempt++

		layerIndex := s.start + s.layerAttempt
		if last := len(s.layers) - 1; layerIndex > last {
			layerIndex = last
		}
		layer := s.layers[layerIndex]

		nX := layer.MatrixColumns / s.tileSize
		if nX < 1 {
			nX = 1
		}
		nY := layer.MatrixRows / s.tileSize
		if nY < 1 {
			nY = 1
		}

		loX, hiX := centralWindow(nX)
		loY, hiY := centralWindow(nY)

		return slideCandidate{
			layerIndex: layerIndex,
			tileX:      loX + s.rng.Intn(hiX-loX),
			tileY:      loY + s.rng.Intn(hiY-loY),
			nTilesX:    nX,
			nTilesY:    nY,
		}, true
	}
}
