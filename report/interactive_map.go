// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/jcodagnone/geosint/spatial"
)

// Map defaults, matching a world-wide first view.
const (
	DefaultZoom  = 2
	H3Resolution = 5
)

//go:embed templates/map.html
var templatesFS embed.FS

var mapTemplate = template.Must(template.ParseFS(templatesFS, "templates/map.html"))

// ErrNoPredictions is returned when a map is requested for nothing.
var ErrNoPredictions = errors.New("report: aucune prédiction à afficher")

// Marker is one prediction on the interactive map.
type Marker struct {
	Rank        int     `json:"rank"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Probability float64 `json:"probability"`
	Popup       string  `json:"popup"`
	Tooltip     string  `json:"tooltip"`
	H3          string  `json:"h3,omitempty"`
}

// InteractiveMap is the model rendered into the HTML document.
type InteractiveMap struct {
	Title   string
	Center  spatial.Point
	Zoom    int
	Markers []Marker
}

// NewInteractiveMap centers the map on the arithmetic mean of the predicted
// coordinates and adds one marker per prediction.
func NewInteractiveMap(predictions []spatial.Prediction) (*InteractiveMap, error) {
	center, err := spatial.Centroid(spatial.Points(predictions))
	if err != nil {
		return nil, ErrNoPredictions
	}

	m := &InteractiveMap{
		Title:   "Localisations GPS Prédites",
		Center:  center,
		Zoom:    DefaultZoom,
		Markers: make([]Marker, len(predictions)),
	}

	for i, p := range predictions {
		marker := Marker{
			Rank:        i + 1,
			Lat:         p.Lat,
			Lng:         p.Lng,
			Probability: p.Probability,
			Popup:       fmt.Sprintf("Prédiction %d: (%.6f, %.6f)", i+1, p.Lat, p.Lng),
			Tooltip:     fmt.Sprintf("Probabilité: %.6f", p.Probability),
		}

		if cell, err := p.Cell(H3Resolution); err == nil {
			marker.H3 = cell.String()
		}

		m.Markers[i] = marker
	}

	return m, nil
}

// latLng is the JSON shape of the center. spatial.Point is a fmt.Stringer,
// which html/template would embed as a quoted string.
type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Render writes the map as a single HTML document.
func (m *InteractiveMap) Render(w io.Writer) error {
	return mapTemplate.Execute(w, struct {
		Title   string
		Center  latLng
		Zoom    int
		Markers []Marker
	}{
		Title:   m.Title,
		Center:  latLng{Lat: m.Center.Lat, Lng: m.Center.Lng},
		Zoom:    m.Zoom,
		Markers: m.Markers,
	})
}

// SaveInteractiveMap renders predictions into an HTML file at path. An
// empty path is reported to the operator and ignored.
func (r *Reporter) SaveInteractiveMap(predictions []spatial.Prediction, path string) error {
	if strings.TrimSpace(path) == "" {
		r.printf("%s\n", MsgEmptyFileName)

		return nil
	}

	m, err := NewInteractiveMap(predictions)
	if err != nil {
		return err
	}

	if err := writeFile(path, m.Render); err != nil {
		return err
	}

	r.Logger.Debug().Str("path", path).Int("markers", len(m.Markers)).Msg("map saved")
	r.printf("Carte interactive créée : %s\n", path)

	return nil
}
