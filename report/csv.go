// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jcodagnone/geosint/spatial"
)

// CSVHeader is the first row of every results file.
var CSVHeader = []string{"Prediction", "Latitude", "Longitude", "Probability", "MapLink"}

// WriteCSV writes the header and one row per prediction.
func WriteCSV(w io.Writer, predictions []spatial.Prediction) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return err
	}

	for i, p := range predictions {
		record := []string{
			fmt.Sprintf("Prédiction %d", i+1),
			spatial.FormatFloat(p.Lat),
			spatial.FormatFloat(p.Lng),
			spatial.FormatFloat(p.Probability),
			p.MapsLink(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}

// SaveCSV stores predictions in path. An empty path is reported to the
// operator and ignored; write failures are returned as IOWrite errors.
func (r *Reporter) SaveCSV(predictions []spatial.Prediction, path string) error {
	if strings.TrimSpace(path) == "" {
		r.printf("%s\n", MsgEmptyFileName)

		return nil
	}

	if err := writeFile(path, func(w io.Writer) error { return WriteCSV(w, predictions) }); err != nil {
		return err
	}

	r.Logger.Debug().Str("path", path).Int("rows", len(predictions)).Msg("csv saved")
	r.printf("Résultats enregistrés dans %s\n", path)

	return nil
}
