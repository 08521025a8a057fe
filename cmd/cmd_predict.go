// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcodagnone/geosint/acquire"
	"github.com/jcodagnone/geosint/geoclip"
	"github.com/jcodagnone/geosint/prompt"
	"github.com/jcodagnone/geosint/report"
	"github.com/jcodagnone/geosint/utils/httputils"
	"github.com/jcodagnone/geosint/workflow"
	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Session interactive de prédiction",
	Long: `Charge le modèle, demande une image (chemin local ou URL) et le nombre de
prédictions souhaitées, affiche les localisations les plus probables puis
propose de les exporter.

$ geosint predict --weights-dir weights
Model weights loaded successfully.
Souhaitez-vous fournir un chemin d'image ou une URL ? (Entrez 'path' ou 'url'): path
…
`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

func loadModel(ctx context.Context) (*geoclip.Model, error) {
	model := geoclip.NewModel(geoclip.Options{
		WeightsDir:        options.WeightsDir,
		SharedLibraryPath: options.OnnxRuntimeLib,
		Logger:            logger,
	})

	if err := model.Load(ctx); err != nil {
		return nil, err
	}

	return model, nil
}

func newReporter() (*report.Reporter, error) {
	reporter := report.New(os.Stdout, logger)
	reporter.Plot.Output = options.PlotOutput

	if options.Basemap != "" {
		basemap, err := report.LoadBasemap(options.Basemap)
		if err != nil {
			return nil, err
		}

		reporter.Plot.Basemap = basemap
	}

	return reporter, nil
}

// sessionError decides the exit status of an interrupted session: the end of
// input (Ctrl-D, EOF) is a normal exit, Ctrl-C and signals are not.
func sessionError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("session canceled: %w", context.Cause(ctx))
	case errors.Is(err, prompt.ErrInterrupted):
		return fmt.Errorf("session interrupted: %w", err)
	case errors.Is(err, prompt.ErrClosed):
		logger.Info().Msg("input closed, session ended")

		return nil
	default:
		return err
	}
}

func runPredict(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := loadModel(ctx)
	if err != nil {
		return err
	}
	defer model.Close()

	fmt.Println("Model weights loaded successfully.")

	reporter, err := newReporter()
	if err != nil {
		return err
	}

	console, err := prompt.NewConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	runner := &workflow.Runner{
		Predictor: model,
		Acquirer:  acquire.New(httputils.NewClient(httpClientOptions()), logger),
		Reporter:  reporter,
		Input:     console,
		Out:       os.Stdout,
		Logger:    logger,
		Options: workflow.Options{
			DownloadPath: options.DownloadPath,
			MaxAttempts:  options.MaxAttempts,
		},
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return sessionError(ctx, err)
	}

	logger.Debug().
		Str("image", result.Image.Path).
		Str("source", result.Image.Source).
		Int("predictions", len(result.Predictions)).
		Msg("session completed")

	return nil
}

func init() {
	rootCmd.AddCommand(predictCmd)
}
