package sample

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/montanaflynn/stats"
)

// Verdict is the outcome of a content check. Availability problems are kept
// distinct from true rejections so that call sites can fail open: a tile is
// only ever discarded on Rejected, never because the frame service was
// unreachable.
type Verdict int

const (
	Accepted Verdict = iota
	Rejected
	// Unavailable means the frame could not be fetched or decoded. Treated
	// as acceptable everywhere, since transport trouble says nothing about
	// content quality.
	Unavailable
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// ContentValidator decides whether a rendered frame carries enough visual
// information to be worth keeping. The plain check is a normalized-variance
// threshold on the grayscale image. The tissue-aware variant additionally
// rejects color frames that are mostly background: slide-microscopy
// background is near-uniform white, which passes a naive variance test while
// still being empty.
type ContentValidator struct {
	Fetcher FrameFetcher

	// VarianceThreshold is the minimum normalized grayscale variance
	// (intensities in [0,1]) for acceptance.
	VarianceThreshold float64

	// TissueFraction is the minimum fraction of non-background pixels a
	// color frame must have under the tissue-aware check.
	TissueFraction float64

	// TissueCutoff is the normalized channel value below which a pixel
	// counts as tissue rather than background.
	TissueCutoff float64
}

// NewContentValidator applies the thresholds from cfg.
func NewContentValidator(fetcher FrameFetcher, cfg Config) *ContentValidator {
	return &ContentValidator{
		Fetcher:           fetcher,
		VarianceThreshold: cfg.VarianceThreshold,
		TissueFraction:    cfg.TissueFraction,
		TissueCutoff:      cfg.TissueCutoff,
	}
}

// Check fetches the rendered frame at tileURL and grades its content.
func (v *ContentValidator) Check(tileURL string, tissueAware bool) Verdict {
	img, err := v.Fetcher.FetchRenderedFrame(tileURL)
	if err != nil || img == nil {
		return Unavailable
	}

	return v.CheckImage(img, tissueAware)
}

// CheckImage grades an already-decoded frame.
func (v *ContentValidator) CheckImage(img image.Image, tissueAware bool) Verdict {
	if tissueAware {
		isColor, tissue := tissueStats(img, v.TissueCutoff)
		if isColor && tissue < v.TissueFraction {
			return Rejected
		}
	}

	gray := imaging.Grayscale(img)

	// Grayscale NRGBA has equal R, G, B per pixel; read the R channel.
	vals := make([]float64, 0, gray.Bounds().Dx()*gray.Bounds().Dy())
	for i := 0; i < len(gray.Pix); i += 4 {
		vals = append(vals, float64(gray.Pix[i])/255.0)
	}

	variance, err := stats.Variance(vals)
	if err != nil {
		return Unavailable
	}

	if variance >= v.VarianceThreshold {
		return Accepted
	}

	return Rejected
}

// tissueStats reports whether img is a color image and, if so, the fraction
// of pixels where any channel falls below cutoff (the non-background
// "tissue" pixels).
func tissueStats(img image.Image, cutoff float64) (isColor bool, tissueFraction float64) {
	bounds := img.Bounds()

	var total, tissue int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()

			rf := float64(r) / 65535.0
			gf := float64(g) / 65535.0
			bf := float64(b) / 65535.0

			if !isColor && (math.Abs(rf-gf) > 1.0/255.0 || math.Abs(gf-bf) > 1.0/255.0) {
				isColor = true
			}

			if rf < cutoff || gf < cutoff || bf < cutoff {
				tissue++
			}
			total++
		}
	}

	if total == 0 {
		return false, 0
	}

	return isColor, float64(tissue) / float64(total)
}
