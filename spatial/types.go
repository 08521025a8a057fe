// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the coordinate and prediction types shared by the
// model adapter and the reporters.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/uber/h3-go/v4"
)

const earthRadius = 6371e3 // meters

// MapsBaseURL is the prefix of every generated map link.
const MapsBaseURL = "https://www.google.com/maps?q="

// ErrEmpty is returned by operations that need at least one point.
var ErrEmpty = errors.New("spatial: no points")

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// Validate checks that the point lies within [-90,90]x[-180,180].
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("spatial: latitude %v out of range", p.Lat)
	}

	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("spatial: longitude %v out of range", p.Lng)
	}

	return nil
}

// MapsLink returns the Google Maps link for the point. Coordinates use the
// shortest representation that round-trips (48.8566, not 48.856600).
func (p Point) MapsLink() string {
	return MapsBaseURL + FormatFloat(p.Lat) + "," + FormatFloat(p.Lng)
}

// Cell returns the H3 cell that contains the point at the given resolution.
func (p Point) Cell(res int) (h3.Cell, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
	if err != nil {
		return 0, fmt.Errorf("converting to h3 cell at res %d: %w", res, err)
	}

	return cell, nil
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p Point) HaversineDistance(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// FormatFloat formats f with the minimal number of digits.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Prediction is a candidate location and the score the model gave it.
type Prediction struct {
	Point
	Probability float64 `json:"probability"`
}

// Centroid returns the arithmetic mean of the latitudes and longitudes.
func Centroid(points []Point) (Point, error) {
	if len(points) == 0 {
		return Point{}, ErrEmpty
	}

	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}

	n := float64(len(points))

	return Point{Lat: lat / n, Lng: lng / n}, nil
}

// Points extracts the coordinates of a prediction list, keeping the order.
func Points(predictions []Prediction) []Point {
	points := make([]Point, len(predictions))
	for i, p := range predictions {
		points[i] = p.Point
	}

	return points
}

// Spread is the largest distance, in meters, between the first point and
// any other. It tells how much the candidates disagree.
func Spread(points []Point) float64 {
	var spread float64

	for _, p := range points[min(1, len(points)):] {
		spread = max(spread, points[0].HaversineDistance(p))
	}

	return spread
}
