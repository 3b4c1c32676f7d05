// Package labpcs converts DICOM 16-bit CIELab presentation color values into
// display sRGB. DICOM stores recommended display colors (for example on SEG
// segment definitions) as unsigned 16-bit PCS-Values: L* scaled so that
// 0x0000 is 0.0 and 0xFFFF is 100.0, and a*/b* offset so that 0x8000 is 0.0
// with a step of 1/256.
package labpcs

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGB converts one 16-bit CIELab triple to an 8-bit sRGB triple under the
// D65 reference white. Out-of-gamut values are clamped into range, never
// rejected, so there is no error path.
func RGB(l16, a16, b16 uint16) (r, g, b uint8) {
	// Denormalize to conventional CIELab ranges: L* in [0,100], a*/b* in
	// [-128, 127.996].
	lStar := float64(l16) * 100.0 / 65535.0
	aStar := (float64(a16) - 32768.0) / 256.0
	bStar := (float64(b16) - 32768.0) / 256.0

	// colorful.Lab expects values scaled down by 100 and handles the
	// Lab->XYZ->linear-sRGB->gamma chain against D65.
	c := colorful.Lab(lStar/100.0, aStar/100.0, bStar/100.0)

	return c.Clamped().RGB255()
}
