// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package report presents predictions: on the console, as CSV, as an
// interactive HTML map and as a static world map picture.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jcodagnone/geosint/apperr"
	"github.com/jcodagnone/geosint/spatial"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

// MsgEmptyFileName is printed when the operator gives an empty file name.
const MsgEmptyFileName = "Erreur : le nom du fichier ne peut pas être vide."

// Reporter writes operator messages to Out and diagnostics to Logger.
type Reporter struct {
	Out    io.Writer
	Logger zerolog.Logger

	// Plot customizes the static world map
	Plot PlotOptions

	// Open displays a file, defaults to the system viewer
	Open func(path string) error
}

// New returns a Reporter printing to out.
func New(out io.Writer, logger zerolog.Logger) *Reporter {
	return &Reporter{Out: out, Logger: logger, Open: browser.OpenFile}
}

func (r *Reporter) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(r.Out, format, args...); err != nil {
		r.Logger.Warn().Err(err).Msg("writing to console")
	}
}

// Console prints every prediction with its rank, coordinates, probability
// and map link.
func (r *Reporter) Console(predictions []spatial.Prediction) error {
	return FormatConsole(r.Out, predictions)
}

// FormatConsole writes the console listing of predictions to w.
func FormatConsole(w io.Writer, predictions []spatial.Prediction) error {
	var sb strings.Builder

	sb.WriteString("\nPrédictions GPS\n=====================\n")

	for i, p := range predictions {
		fmt.Fprintf(&sb, "Prédiction %d: (%.6f, %.6f)\n", i+1, p.Lat, p.Lng)
		fmt.Fprintf(&sb, "Probabilité: %.6f\n", p.Probability)
		fmt.Fprintf(&sb, "Lien Google Maps: %s\n\n", p.MapsLink())
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

// createFile opens path for writing, creating its parent directories.
func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, apperr.Wrap(apperr.IOWrite, err, "création du répertoire %s", dir)
		}
	}

	f, err := os.Create(path) // #nosec G304 - path is chosen by the operator
	if err != nil {
		return nil, apperr.Wrap(apperr.IOWrite, err, "création de %s", path)
	}

	return f, nil
}

// writeFile writes to path through fn, reporting any failure as IOWrite.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}

	if err := fn(f); err != nil {
		_ = f.Close()

		return apperr.Wrap(apperr.IOWrite, err, "écriture de %s", path)
	}

	if err := f.Close(); err != nil {
		return apperr.Wrap(apperr.IOWrite, err, "fermeture de %s", path)
	}

	return nil
}
