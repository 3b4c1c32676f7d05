package labpcs

import "testing"

type labExpectation struct {
	L, A, B uint16

	Neutral bool
	MinVal  uint8
	MaxVal  uint8
}

func TestRGBReferencePoints(t *testing.T) {
	for _, v := range []labExpectation{
		// Full-scale L with zeroed a/b is white, which is neutral
		{65535, 32768, 32768, true, 250, 255},
		// Mid-scale L with zeroed a/b is a neutral mid gray
		{32768, 32768, 32768, true, 80, 150},
		// Black
		{0, 32768, 32768, true, 0, 5},
	} {
		r, g, b := RGB(v.L, v.A, v.B)

		if v.Neutral {
			if diff(r, g) > 2 || diff(g, b) > 2 || diff(r, b) > 2 {
				t.Errorf("Input %+v expected neutral output, got (%d, %d, %d)", v, r, g, b)
			}
		}

		for _, ch := range []uint8{r, g, b} {
			if ch < v.MinVal || ch > v.MaxVal {
				t.Errorf("Input %+v: channel %d outside expected range [%d, %d]", v, ch, v.MinVal, v.MaxVal)
			}
		}
	}
}

func TestRGBSaturatedInputsKeepHue(t *testing.T) {
	// Extreme a*/b* values are far out of the sRGB gamut; clamping must
	// land on the dominant hue rather than wrap into an unrelated color.
	if r, g, b := RGB(40000, 65535, 40000); r <= g || r <= b {
		t.Errorf("Saturated +a* should be red-dominant, got (%d, %d, %d)", r, g, b)
	}

	if r, g, _ := RGB(40000, 0, 40000); g <= r {
		t.Errorf("Saturated -a* should favor green over red, got r=%d g=%d", r, g)
	}

	if r, g, b := RGB(40000, 32768, 0); b <= r || b <= g {
		t.Errorf("Saturated -b* should be blue-dominant, got (%d, %d, %d)", r, g, b)
	}

	if r, g, b := RGB(50000, 32768, 65535); b >= r || b >= g {
		t.Errorf("Saturated +b* should suppress blue, got (%d, %d, %d)", r, g, b)
	}
}

func TestRGBGreenishAndReddish(t *testing.T) {
	// Positive a* pushes red, negative a* pushes green.
	rPos, gPos, _ := RGB(40000, 48000, 32768)
	if rPos <= gPos {
		t.Errorf("Positive a* should favor red over green, got r=%d g=%d", rPos, gPos)
	}

	rNeg, gNeg, _ := RGB(40000, 16000, 32768)
	if gNeg <= rNeg {
		t.Errorf("Negative a* should favor green over red, got r=%d g=%d", rNeg, gNeg)
	}
}

func diff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
