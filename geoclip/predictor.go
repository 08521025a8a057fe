// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package geoclip adapts a pretrained GeoCLIP model, exported to ONNX, to
// the Predictor interface used by the CLI.
//
// The model itself (encoders, weights, GPS gallery) is an external artifact;
// this package only loads it, feeds it an image and ranks the gallery.
package geoclip

import (
	"context"

	"github.com/jcodagnone/geosint/spatial"
)

// Predictor ranks candidate locations for an image.
//
// Predict returns at most topK predictions ordered by descending
// probability. Fewer are returned when the model knows fewer candidates.
type Predictor interface {
	Predict(ctx context.Context, imagePath string, topK int) ([]spatial.Prediction, error)
}
