package sample

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand"
	"sort"

	"github.com/medimageio/idcmosaic/seg"
)

// ErrNoData is returned when every category's population is empty. A single
// empty category is not an error; it simply contributes zero samples.
var ErrNoData = errors.New("no eligible series found in any category")

// Catalog is the declarative query surface the orchestrator consumes. The
// catalog package provides the BigQuery-backed implementation.
type Catalog interface {
	// Populations returns the eligible-series count per category.
	Populations(ctx context.Context) ([]CategoryPopulation, error)

	// RadiologyCandidates returns up to limit eligible series for one
	// non-slide modality.
	RadiologyCandidates(ctx context.Context, modality string, limit int) ([]SeriesCandidate, error)

	// SlideCandidates returns up to limit slide-microscopy series with
	// their pyramid layers.
	SlideCandidates(ctx context.Context, limit int) ([]SlideSeries, error)
}

// SegmentationSource locates and resolves segmentation coverage for a chosen
// source frame. A (nil, nil) return means the frame has no coverage.
type SegmentationSource interface {
	ForSourceFrame(ctx context.Context, studyUID, sourceSeriesUID, sourceSOPUID string) (*seg.Segmentation, error)
}

// Sampler composes the allocator and the per-modality selectors into a
// single sampling pass. Execution is strictly sequential; the only shared
// state across selections is the seeded random source, which is owned here
// and threaded through every draw so that a fixed seed reproduces the run
// bit-for-bit given identical catalog data.
type Sampler struct {
	Catalog   Catalog
	Radiology *RadiologySelector
	Slide     *SlideSelector
	Seg       SegmentationSource

	Config Config

	rng *rand.Rand
}

// NewSampler builds a sampler around the given collaborators. rng is the
// caller-owned random source; pass a seeded source for reproducible runs.
func NewSampler(catalog Catalog, frames FrameService, fetcher FrameFetcher, segSource SegmentationSource, cfg Config, rng *rand.Rand) *Sampler {
	content := NewContentValidator(fetcher, cfg)

	return &Sampler{
		Catalog:   catalog,
		Radiology: NewRadiologySelector(frames, content, cfg),
		Slide:     NewSlideSelector(frames, content, cfg),
		Seg:       segSource,
		Config:    cfg,
		rng:       rng,
	}
}

// Sample assembles up to target tiles: allocate the budget across
// categories, draw an oversampled candidate pool per category, run the
// matching selector per unit, then shuffle and truncate. Partial shortfalls
// are returned as-is; only total data absence is an error.
func (s *Sampler) Sample(ctx context.Context, target int) ([]TileSample, error) {
	pops, err := s.Catalog.Populations(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range pops {
		total += p.Population
	}
	if total == 0 {
		return nil, ErrNoData
	}

	alloc := Allocate(pops, target)

	// Visit categories in descending population order (category name as
	// tiebreak) so a fixed seed visits them identically across runs.
	order := make([]CategoryPopulation, len(pops))
	copy(order, pops)
	sort.Slice(order, func(i, j int) bool {
		if order[i].Population != order[j].Population {
			return order[i].Population > order[j].Population
		}
		return order[i].Category < order[j].Category
	})

	out := make([]TileSample, 0, target)
	for _, cat := range order {
		want := alloc[cat.Category]
		if want <= 0 {
			continue
		}

		if cat.Category == s.Config.SlideModality {
			out = append(out, s.sampleSlides(ctx, want)...)
			continue
		}

		out = append(out, s.sampleRadiology(ctx, cat.Category, want)...)
	}

	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	if len(out) > target {
		out = out[:target]
	}

	return out, nil
}

func (s *Sampler) sampleRadiology(ctx context.Context, modality string, want int) []TileSample {
	budget := s.oversampled(want, s.Config.Oversample)

	pool, err := s.Catalog.RadiologyCandidates(ctx, modality, budget)
	if err != nil {
		log.Printf("%s: candidate query failed, skipping category: %v", modality, err)
		return nil
	}

	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	out := make([]TileSample, 0, want)
	for _, cand := range pool {
		if len(out) >= want {
			break
		}

		ts := s.Radiology.Select(s.rng, cand, s.Config.ContentFilter)
		if ts == nil {
			continue
		}

		s.maybeAttachSegmentation(ctx, ts)

		out = append(out, *ts)
	}

	return out
}

func (s *Sampler) sampleSlides(ctx context.Context, want int) []TileSample {
	budget := s.oversampled(want, s.Config.SlideOversample)

	pool, err := s.Catalog.SlideCandidates(ctx, budget)
	if err != nil {
		log.Printf("%s: candidate query failed, skipping category: %v", s.Config.SlideModality, err)
		return nil
	}

	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	out := make([]TileSample, 0, want)
	for _, cand := range pool {
		if len(out) >= want {
			break
		}

		ts := s.Slide.Select(s.rng, cand, s.Config.ContentFilter)
		if ts == nil {
			continue
		}

		out = append(out, *ts)
	}

	return out
}

// maybeAttachSegmentation enriches a radiology tile with segmentation
// overlay data when available. Failures are logged and swallowed:
// segmentation is optional enrichment, never a reason to drop a tile.
func (s *Sampler) maybeAttachSegmentation(ctx context.Context, ts *TileSample) {
	if s.Seg == nil || !s.Config.AttachSegmentation {
		return
	}

	sg, err := s.Seg.ForSourceFrame(ctx, ts.StudyUID, ts.SeriesUID, ts.SOPInstanceUID)
	if err != nil {
		log.Printf("%s: segmentation lookup failed: %v", ts.SeriesUID, err)
		return
	}

	ts.Segmentation = sg
}

func (s *Sampler) oversampled(want int, factor float64) int {
	if factor <= 1 {
		return want
	}

	return int(math.Ceil(float64(want) * factor))
}
