// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package geoclip

import (
	"image"

	"github.com/nfnt/resize"
)

// InputSize is the side of the square image the encoder expects.
const InputSize = 224

// CLIP normalization constants, per RGB channel.
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// Preprocess turns img into the encoder input: the shortest side resized to
// InputSize, a centered InputSize square crop, channels normalized with the
// CLIP statistics and laid out as CHW.
func Preprocess(img image.Image) []float32 {
	b := img.Bounds()

	var resized image.Image
	if b.Dx() < b.Dy() {
		resized = resize.Resize(InputSize, 0, img, resize.Bicubic)
	} else {
		resized = resize.Resize(0, InputSize, img, resize.Bicubic)
	}

	rb := resized.Bounds()
	x0 := rb.Min.X + (rb.Dx()-InputSize)/2
	y0 := rb.Min.Y + (rb.Dy()-InputSize)/2

	const plane = InputSize * InputSize

	data := make([]float32, 3*plane)

	for y := range InputSize {
		for x := range InputSize {
			r, g, bl, _ := resized.At(x0+x, y0+y).RGBA()

			i := y*InputSize + x
			data[i] = (float32(r)/65535.0 - clipMean[0]) / clipStd[0]
			data[plane+i] = (float32(g)/65535.0 - clipMean[1]) / clipStd[1]
			data[2*plane+i] = (float32(bl)/65535.0 - clipMean[2]) / clipStd[2]
		}
	}

	return data
}
