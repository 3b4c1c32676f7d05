// Package sample implements the stratified, content-aware sampling engine of
// the mosaic generator: budget allocation across modalities, per-modality
// frame selection with bounded retries under content validation, and the
// orchestration that turns a tile budget into a set of resolved tiles.
package sample

import (
	"image"

	"github.com/medimageio/idcmosaic/seg"
)

// CategoryPopulation is one row of the population table: how many eligible
// series the catalog holds for a modality. Slide microscopy is counted as its
// own category.
type CategoryPopulation struct {
	Category   string
	Population int64
}

// SeriesCandidate is one eligible series row from the catalog. Immutable once
// queried.
type SeriesCandidate struct {
	StudyUID      string
	SeriesUID     string
	Modality      string
	BodyPart      string
	CollectionID  string
	InstanceCount int
}

// PyramidLayer is one resolution layer of a slide-microscopy series. Layers
// sharing a SeriesUID form the pyramid; smaller pixel spacing means finer
// resolution.
type PyramidLayer struct {
	StudyUID       string
	SeriesUID      string
	PixelSpacingMM float64
	MatrixColumns  int
	MatrixRows     int
}

// SlideSeries bundles a slide-microscopy candidate with its resolution
// layers.
type SlideSeries struct {
	SeriesCandidate
	Layers []PyramidLayer
}

// TileSample is the unit of output: one resolved, renderable frame with its
// viewer metadata. Created by a selector and never mutated afterward, except
// that the orchestrator may attach Segmentation.
type TileSample struct {
	SeriesUID      string
	StudyUID       string
	SOPInstanceUID string
	Modality       string
	BodyPart       string
	CollectionID   string

	// InstanceCount is the series instance count for radiology tiles, or
	// the tile-frame total of the chosen pyramid layer for slide tiles.
	InstanceCount int

	// FrameNumber is 1-based within the resolved instance. Radiology
	// instances are single-frame, so it is 1 there; for slide tiles it is
	// the row-major tile frame number.
	FrameNumber int

	TileURL   string
	ViewerURL string

	Segmentation *seg.Segmentation
}

// FrameService resolves instance identifiers and produces addressable URLs
// for rendered frames and the viewer. The dicomweb package provides the
// production implementation.
type FrameService interface {
	// ResolveInstance maps a (study, series, 0-based instance index) onto
	// a SOPInstanceUID, or returns an error when the instance cannot be
	// identified.
	ResolveInstance(studyUID, seriesUID string, instanceIndex int) (string, error)

	// RenderedFrameURL builds the URL of the server-rendered frame.
	RenderedFrameURL(studyUID, seriesUID, sopUID string, frameNumber int) string

	// ViewerURL returns an opaque display URL for a series.
	ViewerURL(seriesUID string) string
}

// FrameFetcher retrieves a rendered frame as a decoded image. Used by the
// content validator only.
type FrameFetcher interface {
	FetchRenderedFrame(tileURL string) (image.Image, error)
}
