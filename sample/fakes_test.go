package sample

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
)

var errTransport = errors.New("dial tcp: connection refused")

// fakeFrames records identifier resolutions and hands back deterministic
// SOP UIDs and URLs.
type fakeFrames struct {
	failResolve bool
	resolved    []int
}

func (f *fakeFrames) ResolveInstance(studyUID, seriesUID string, instanceIndex int) (string, error) {
	f.resolved = append(f.resolved, instanceIndex)
	if f.failResolve {
		return "", errors.New("instance listing unavailable")
	}

	return fmt.Sprintf("sop-%s-%d", seriesUID, instanceIndex), nil
}

func (f *fakeFrames) RenderedFrameURL(studyUID, seriesUID, sopUID string, frameNumber int) string {
	return fmt.Sprintf("https://frames.test/%s/%s/%s/%d/rendered", studyUID, seriesUID, sopUID, frameNumber)
}

func (f *fakeFrames) ViewerURL(seriesUID string) string {
	return "https://viewer.test/?SeriesInstanceUID=" + seriesUID
}

// fakeFetcher returns a canned image (or error) and counts fetches.
type fakeFetcher struct {
	img     image.Image
	err     error
	fetches int
}

func (f *fakeFetcher) FetchRenderedFrame(tileURL string) (image.Image, error) {
	f.fetches++
	return f.img, f.err
}

func flatImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	return img
}

// noisyImage alternates black and white pixels, giving maximal variance.
func noisyImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}

	return img
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}
