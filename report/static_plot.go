// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // basemap decoder
	"image/png"
	"io"
	"os"
	"sync"

	"github.com/jcodagnone/geosint/apperr"
	"github.com/jcodagnone/geosint/spatial"
	"github.com/jcodagnone/geosint/utils/textutils"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Plot geometry: a 2:1 Plate Carrée map under a title band.
const (
	PlotWidth     = 1000
	PlotMapHeight = PlotWidth / 2
	plotTitleBand = 40
	markerRadius  = 8
	graticuleStep = 30
)

// PlotTitle is drawn above the map.
const PlotTitle = "Localisations GPS Prédites"

var (
	oceanColor     = color.RGBA{R: 170, G: 211, B: 223, A: 255}
	landColor      = color.RGBA{R: 222, G: 214, B: 181, A: 255}
	graticuleColor = color.RGBA{R: 120, G: 160, B: 180, A: 255}
	markerColor    = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	outlineColor   = color.RGBA{R: 90, G: 0, B: 0, A: 255}
)

// PlotOptions customizes the static world map.
type PlotOptions struct {
	// Basemap is an equirectangular world picture. Nil uses
	// DefaultBasemap under a graticule.
	Basemap image.Image

	// Output persists the plot there instead of showing a temporary file
	Output string
}

// worldPNG is a 720x360 (half a degree per pixel) Plate Carrée land mask
// painted with oceanColor and landColor. The coastlines are simplified.
//
//go:embed assets/world.png
var worldPNG []byte

var decodeWorld = sync.OnceValues(func() (image.Image, error) {
	return png.Decode(bytes.NewReader(worldPNG))
})

// DefaultBasemap returns the embedded low resolution world map.
func DefaultBasemap() (image.Image, error) {
	img, err := decodeWorld()
	if err != nil {
		return nil, fmt.Errorf("decoding embedded basemap: %w", err)
	}

	return img, nil
}

// LoadBasemap decodes an equirectangular world picture (PNG or JPEG).
func LoadBasemap(path string) (image.Image, error) {
	f, err := os.Open(path) // #nosec G304 - path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("opening basemap: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding basemap %s: %w", path, err)
	}

	return img, nil
}

// Project maps a point to pixel coordinates inside mapRect.
func Project(p spatial.Point, mapRect image.Rectangle) image.Point {
	x := (p.Lng + 180) / 360 * float64(mapRect.Dx()-1)
	y := (90 - p.Lat) / 180 * float64(mapRect.Dy()-1)

	return image.Pt(mapRect.Min.X+int(x+0.5), mapRect.Min.Y+int(y+0.5))
}

// RenderStaticPlot draws the world map with one red dot per prediction.
func RenderStaticPlot(predictions []spatial.Prediction, opts PlotOptions) (*image.RGBA, error) {
	if len(predictions) == 0 {
		return nil, ErrNoPredictions
	}

	canvas := image.NewRGBA(image.Rect(0, 0, PlotWidth, plotTitleBand+PlotMapHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	mapRect := image.Rect(0, plotTitleBand, PlotWidth, plotTitleBand+PlotMapHeight)

	if opts.Basemap != nil {
		draw.CatmullRom.Scale(canvas, mapRect, opts.Basemap, opts.Basemap.Bounds(), draw.Src, nil)
	} else {
		world, err := DefaultBasemap()
		if err != nil {
			return nil, err
		}

		draw.CatmullRom.Scale(canvas, mapRect, world, world.Bounds(), draw.Src, nil)
		drawGraticule(canvas, mapRect)
	}

	for _, p := range predictions {
		drawMarker(canvas, Project(p.Point, mapRect))
	}

	drawTitle(canvas, PlotTitle)

	return canvas, nil
}

func drawGraticule(img *image.RGBA, r image.Rectangle) {
	for lng := -180; lng <= 180; lng += graticuleStep {
		x := Project(spatial.Point{Lng: float64(lng)}, r).X
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetRGBA(x, y, graticuleColor)
		}
	}

	for lat := -90; lat <= 90; lat += graticuleStep {
		y := Project(spatial.Point{Lat: float64(lat)}, r).Y
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, graticuleColor)
		}
	}
}

func drawMarker(img *image.RGBA, c image.Point) {
	const r2 = markerRadius * markerRadius

	const inner2 = (markerRadius - 2) * (markerRadius - 2)

	for dy := -markerRadius; dy <= markerRadius; dy++ {
		for dx := -markerRadius; dx <= markerRadius; dx++ {
			d2 := dx*dx + dy*dy

			switch {
			case d2 <= inner2:
				img.SetRGBA(c.X+dx, c.Y+dy, markerColor)
			case d2 <= r2:
				img.SetRGBA(c.X+dx, c.Y+dy, outlineColor)
			}
		}
	}
}

// drawTitle centers title in the band above the map. The bitmap face only
// has ASCII glyphs, so accents are dropped.
func drawTitle(img *image.RGBA, title string) {
	title = textutils.ASCIIFolding(title)
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.Black, Face: face}

	width := d.MeasureString(title)
	d.Dot = fixed.Point26_6{
		X: (fixed.I(img.Bounds().Dx()) - width) / 2,
		Y: fixed.I((plotTitleBand + face.Ascent) / 2),
	}
	d.DrawString(title)
}

// WritePNG encodes the plot.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// ShowStaticPlot renders predictions on a world map. With PlotOptions.Output
// set the picture is saved there; otherwise it goes to a temporary file that
// is opened with the system viewer.
func (r *Reporter) ShowStaticPlot(predictions []spatial.Prediction) error {
	img, err := RenderStaticPlot(predictions, r.Plot)
	if err != nil {
		return err
	}

	encode := func(w io.Writer) error { return WritePNG(w, img) }

	if r.Plot.Output != "" {
		if err := writeFile(r.Plot.Output, encode); err != nil {
			return err
		}

		r.printf("Carte mondiale enregistrée : %s\n", r.Plot.Output)

		return nil
	}

	f, err := os.CreateTemp("", "geosint-plot-*.png")
	if err != nil {
		return apperr.Wrap(apperr.IOWrite, err, "création du fichier temporaire")
	}

	path := f.Name()
	_ = f.Close()

	if err := writeFile(path, encode); err != nil {
		return err
	}

	r.Logger.Debug().Str("path", path).Msg("static plot rendered")

	if r.Open == nil {
		r.printf("Carte mondiale : %s\n", path)

		return nil
	}

	if err := r.Open(path); err != nil {
		return fmt.Errorf("affichage de %s: %w", path, err)
	}

	return nil
}
