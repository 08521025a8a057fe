// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow runs the interactive session: acquire an image, ask how
// many predictions to show, predict, then offer the optional outputs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jcodagnone/geosint/acquire"
	"github.com/jcodagnone/geosint/apperr"
	"github.com/jcodagnone/geosint/geoclip"
	"github.com/jcodagnone/geosint/prompt"
	"github.com/jcodagnone/geosint/spatial"
	"github.com/jcodagnone/geosint/utils/textutils"
	"github.com/rs/zerolog"
)

// Operator facing questions, in the order they are asked.
const (
	AskSource    = "Souhaitez-vous fournir un chemin d'image ou une URL ? (Entrez 'path' ou 'url'): "
	AskURL       = "Veuillez entrer l'URL de l'image : "
	AskPath      = "Veuillez entrer le chemin du fichier image : "
	AskTopK      = "Combien de prédictions voulez-vous voir ? "
	AskSaveCSV   = "Souhaitez-vous enregistrer les résultats dans un fichier CSV ? (oui/non) : "
	AskCSVName   = "Entrez le nom du fichier (ex : 'predictions.csv') : "
	AskMap       = "Souhaitez-vous créer une carte interactive des prédictions ? (oui/non) : "
	AskMapName   = "Entrez le nom du fichier de la carte (ex : 'map.html') : "
	AskPlot      = "Souhaitez-vous tracer les prédictions sur une carte mondiale ? (oui/non) : "
	Yes          = "oui"
	SourcePath   = "path"
	SourceURL    = "url"
	msgBadChoice = "Choix invalide. Veuillez entrer 'path' ou 'url'."
	msgNotInt    = "Entrée invalide, veuillez entrer un nombre entier."
	msgNotPos    = "Veuillez entrer un nombre positif."
)

// ErrTooManyAttempts is returned when Options.MaxAttempts is exhausted.
var ErrTooManyAttempts = errors.New("workflow: too many failed attempts")

// Acquirer obtains the image, see acquire.Acquirer.
type Acquirer interface {
	FromPath(path string) (acquire.Image, error)
	FromURL(ctx context.Context, rawURL, dest string) (acquire.Image, error)
}

// Reporter presents the predictions, see report.Reporter.
type Reporter interface {
	Console(predictions []spatial.Prediction) error
	SaveCSV(predictions []spatial.Prediction, path string) error
	SaveInteractiveMap(predictions []spatial.Prediction, path string) error
	ShowStaticPlot(predictions []spatial.Prediction) error
}

// Options tunes the session.
type Options struct {
	// DownloadPath is where URL images are stored
	DownloadPath string

	// MaxAttempts caps the acquisition and top-k loops. Zero means no cap.
	MaxAttempts int
}

// Runner wires the stages together. Every field but Options and Logger is
// required.
type Runner struct {
	Predictor geoclip.Predictor
	Acquirer  Acquirer
	Reporter  Reporter
	Input     prompt.Input
	Out       io.Writer
	Logger    zerolog.Logger
	Options   Options
}

// Result is what a completed session produced.
type Result struct {
	Image       acquire.Image
	TopK        int
	Predictions []spatial.Prediction
}

func (r *Runner) println(a ...any) {
	if _, err := fmt.Fprintln(r.Out, a...); err != nil {
		r.Logger.Warn().Err(err).Msg("writing to console")
	}
}

func (r *Runner) exhausted(attempt int) bool {
	return r.Options.MaxAttempts > 0 && attempt >= r.Options.MaxAttempts
}

// Run executes the session. Mistakes in the operator's answers are reported
// and asked again; failures of the optional outputs are reported and the
// session goes on. Run only fails when the input is closed or interrupted,
// ctx is canceled, the attempts cap is reached, or the prediction itself
// fails.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	img, err := r.AcquireImage(ctx)
	if err != nil {
		return nil, err
	}

	topK, err := r.AskTopK(ctx)
	if err != nil {
		return nil, err
	}

	r.Logger.Debug().Str("image", img.Path).Int("top_k", topK).Msg("predicting")

	predictions, err := r.Predictor.Predict(ctx, img.Path, topK)
	if err != nil {
		return nil, fmt.Errorf("predicting %s: %w", img.Path, err)
	}

	r.Logger.Debug().
		Int("predictions", len(predictions)).
		Float64("spread_km", spatial.Spread(spatial.Points(predictions))/1000).
		Msg("prediction done")

	result := &Result{Image: img, TopK: topK, Predictions: predictions}

	if err := r.Reporter.Console(predictions); err != nil {
		r.Logger.Warn().Err(err).Msg("printing predictions")
	}

	if err := r.offer(ctx, AskSaveCSV, AskCSVName, func(name string) error {
		return r.Reporter.SaveCSV(predictions, name)
	}, "Une erreur s'est produite lors de l'enregistrement du fichier : "); err != nil {
		return result, err
	}

	if err := r.offer(ctx, AskMap, AskMapName, func(name string) error {
		return r.Reporter.SaveInteractiveMap(predictions, name)
	}, "Une erreur s'est produite lors de la création de la carte : "); err != nil {
		return result, err
	}

	if err := r.offer(ctx, AskPlot, "", func(string) error {
		return r.Reporter.ShowStaticPlot(predictions)
	}, "Une erreur s'est produite lors du tracé de la carte : "); err != nil {
		return result, err
	}

	return result, nil
}

// offer asks a yes/no question and, on "oui", an optional file name before
// running action. Only the exact answer "oui" (case and surrounding spaces
// ignored) counts as yes; anything else is a no and is not asked again.
// Errors from action are printed, never returned.
func (r *Runner) offer(
	ctx context.Context, question, askName string, action func(name string) error, failure string,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	answer, err := r.Input.Prompt(ctx, question)
	if err != nil {
		return err
	}

	if textutils.NormalizeAnswer(answer) != Yes {
		return nil
	}

	var name string
	if askName != "" {
		if name, err = r.Input.Prompt(ctx, askName); err != nil {
			return err
		}
	}

	if err := action(strings.TrimSpace(name)); err != nil {
		r.Logger.Debug().Err(err).Str("kind", apperr.KindOf(err).String()).Str("name", name).Msg("output failed")
		r.println(failure + err.Error())
	}

	return nil
}

// stopped reports whether err ends the session instead of asking again.
func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, prompt.ErrClosed) || errors.Is(err, prompt.ErrInterrupted)
}

// AcquireImage asks for a path or a URL until a decodable image is
// obtained.
func (r *Runner) AcquireImage(ctx context.Context) (acquire.Image, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return acquire.Image{}, err
		}

		img, err := r.acquireOnce(ctx)
		if err == nil {
			return img, nil
		}

		if stopped(ctx, err) {
			return acquire.Image{}, err
		}

		r.println(err.Error())

		if r.exhausted(attempt) {
			return acquire.Image{}, fmt.Errorf("%w: image", ErrTooManyAttempts)
		}
	}
}

func (r *Runner) acquireOnce(ctx context.Context) (acquire.Image, error) {
	choice, err := r.Input.Prompt(ctx, AskSource)
	if err != nil {
		return acquire.Image{}, err
	}

	switch textutils.NormalizeAnswer(choice) {
	case SourceURL:
		rawURL, err := r.Input.Prompt(ctx, AskURL)
		if err != nil {
			return acquire.Image{}, err
		}

		img, err := r.Acquirer.FromURL(ctx, strings.TrimSpace(rawURL), r.Options.DownloadPath)
		if err != nil {
			return acquire.Image{}, err
		}

		r.println("Image téléchargée avec succès : " + img.Path)

		// the model needs a decodable file, not just a 200 answer
		validated, err := r.Acquirer.FromPath(img.Path)
		if err != nil {
			r.discard(img.Path)

			return acquire.Image{}, err
		}

		validated.Source = img.Source

		return validated, nil
	case SourcePath:
		path, err := r.Input.Prompt(ctx, AskPath)
		if err != nil {
			return acquire.Image{}, err
		}

		img, err := r.Acquirer.FromPath(strings.TrimSpace(path))
		if err != nil {
			return acquire.Image{}, err
		}

		r.println("Validation de l'image réussie.")

		return img, nil
	default:
		return acquire.Image{}, apperr.New(apperr.ValidationInput, msgBadChoice)
	}
}

// discard removes a download that turned out not to be an image.
func (r *Runner) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.Logger.Warn().Err(err).Str("path", path).Msg("removing rejected download")
	}
}

// AskTopK asks for the number of predictions until a positive integer is
// entered.
func (r *Runner) AskTopK(ctx context.Context) (int, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		answer, err := r.Input.Prompt(ctx, AskTopK)
		if err != nil {
			return 0, err
		}

		k, err := ParseTopK(answer)
		if err == nil {
			return k, nil
		}

		r.println(err.Error())

		if r.exhausted(attempt) {
			return 0, fmt.Errorf("%w: top-k", ErrTooManyAttempts)
		}
	}
}

// ParseTopK accepts a strictly positive base 10 integer, surrounding
// spaces ignored.
func ParseTopK(s string) (int, error) {
	k, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.New(apperr.ValidationInput, msgNotInt)
	}

	if k <= 0 {
		return 0, apperr.New(apperr.ValidationInput, msgNotPos)
	}

	return k, nil
}
