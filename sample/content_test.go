package sample

import (
	"errors"
	"image/color"
	"testing"
)

func newTestValidator(f *fakeFetcher) *ContentValidator {
	return NewContentValidator(f, DefaultConfig())
}

func TestCheckRejectsFlatFrame(t *testing.T) {
	v := newTestValidator(&fakeFetcher{img: flatImage(32, 32, color.NRGBA{128, 128, 128, 255})})

	if got := v.Check("https://frames.test/flat", false); got != Rejected {
		t.Errorf("Flat mid-gray frame: got %v, want %v", got, Rejected)
	}
}

func TestCheckAcceptsNoisyFrame(t *testing.T) {
	v := newTestValidator(&fakeFetcher{img: noisyImage(32, 32)})

	if got := v.Check("https://frames.test/noisy", false); got != Accepted {
		t.Errorf("Checkerboard frame: got %v, want %v", got, Accepted)
	}
}

func TestCheckFailsOpenOnFetchError(t *testing.T) {
	v := newTestValidator(&fakeFetcher{err: errors.New("connection refused")})

	if got := v.Check("https://frames.test/gone", false); got != Unavailable {
		t.Errorf("Fetch failure: got %v, want %v", got, Unavailable)
	}
}

func TestCheckTissueAwareRejectsWhiteSlide(t *testing.T) {
	v := newTestValidator(&fakeFetcher{img: flatImage(32, 32, color.NRGBA{255, 255, 255, 255})})

	if got := v.Check("https://frames.test/white", true); got != Rejected {
		t.Errorf("All-white slide frame: got %v, want %v", got, Rejected)
	}
}

func TestCheckTissueAwareRejectsNearWhiteColorSlide(t *testing.T) {
	// Faintly tinted background: enough channel separation to read as a
	// color image, but nowhere near 15% tissue.
	img := flatImage(32, 32, color.NRGBA{250, 240, 248, 255})
	// A couple of tissue pixels are not enough coverage.
	img.SetNRGBA(10, 10, color.NRGBA{160, 60, 120, 255})
	img.SetNRGBA(11, 10, color.NRGBA{150, 50, 110, 255})

	v := newTestValidator(&fakeFetcher{img: img})

	if got := v.Check("https://frames.test/background", true); got != Rejected {
		t.Errorf("Near-white slide background: got %v, want %v", got, Rejected)
	}
}

func TestCheckTissueAwareAcceptsStainedTissue(t *testing.T) {
	// Half the frame is darkly stained: plenty of tissue, plenty of
	// variance.
	img := flatImage(32, 32, color.NRGBA{250, 240, 248, 255})
	for y := 0; y < 32; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{150, 40, 110, 255})
		}
	}

	v := newTestValidator(&fakeFetcher{img: img})

	if got := v.Check("https://frames.test/tissue", true); got != Accepted {
		t.Errorf("Stained tissue frame: got %v, want %v", got, Accepted)
	}
}

func TestVerdictString(t *testing.T) {
	for v, want := range map[Verdict]string{
		Accepted:    "accepted",
		Rejected:    "rejected",
		Unavailable: "unavailable",
	} {
		if v.String() != want {
			t.Errorf("Verdict(%d).String() = %q, want %q", v, v.String(), want)
		}
	}
}
