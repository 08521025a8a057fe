// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package geoclip

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jcodagnone/geosint/apperr"
	"github.com/jcodagnone/geosint/spatial"
)

// Files expected inside the weights directory.
const (
	ImageEncoderFile    = "image_encoder_mlp_weights.onnx"
	LocationEncoderFile = "location_encoder_weights.onnx"
	LogitScaleFile      = "logit_scale_weights.json"
	GalleryFile         = "gps_gallery.csv"
)

// DefaultWeightsDir is the weights location used when none is configured.
const DefaultWeightsDir = "weights"

// RequiredFiles lists, in load order, the files Load needs.
var RequiredFiles = []string{ImageEncoderFile, LocationEncoderFile, LogitScaleFile, GalleryFile}

// CheckWeights verifies that every required file is present in dir.
func CheckWeights(dir string) error {
	var errs []error

	for _, name := range RequiredFiles {
		path := filepath.Join(dir, name)

		info, err := os.Stat(path)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if info.IsDir() || info.Size() == 0 {
			errs = append(errs, fmt.Errorf("%s: empty or not a regular file", path))
		}
	}

	if len(errs) > 0 {
		return apperr.Wrap(apperr.FatalWeightsLoad, errors.Join(errs...), "poids du modèle introuvables dans %s", dir)
	}

	return nil
}

// LoadLogitScale reads the learned temperature. The file stores it in log
// space, as trained; the returned value is already exponentiated.
func LoadLogitScale(path string) (float64, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's configuration
	if err != nil {
		return 0, apperr.Wrap(apperr.FatalWeightsLoad, err, "lecture de %s", path)
	}

	var payload struct {
		LogitScale *float64 `json:"logit_scale"`
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, apperr.Wrap(apperr.FatalWeightsLoad, err, "analyse de %s", path)
	}

	if payload.LogitScale == nil {
		return 0, apperr.New(apperr.FatalWeightsLoad, "%s: champ logit_scale absent", path)
	}

	scale := math.Exp(*payload.LogitScale)
	if math.IsInf(scale, 0) || math.IsNaN(scale) || scale <= 0 {
		return 0, apperr.New(apperr.FatalWeightsLoad, "%s: logit_scale invalide (%v)", path, *payload.LogitScale)
	}

	return scale, nil
}

// LoadGallery reads the GPS gallery: a LAT,LON header followed by one
// candidate per row.
func LoadGallery(path string) ([]spatial.Point, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the operator's configuration
	if err != nil {
		return nil, apperr.Wrap(apperr.FatalWeightsLoad, err, "lecture de %s", path)
	}
	defer f.Close()

	gallery, err := parseGallery(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.FatalWeightsLoad, err, "analyse de %s", path)
	}

	return gallery, nil
}

func parseGallery(r io.Reader) ([]spatial.Point, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if !strings.EqualFold(header[0], "lat") || !strings.EqualFold(header[1], "lon") {
		return nil, fmt.Errorf("unexpected header %q, want LAT,LON", header)
	}

	var gallery []spatial.Point

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		lat, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}

		lng, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}

		p := spatial.Point{Lat: lat, Lng: lng}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		gallery = append(gallery, p)
	}

	if len(gallery) == 0 {
		return nil, errors.New("empty gallery")
	}

	return gallery, nil
}
