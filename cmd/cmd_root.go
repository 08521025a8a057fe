// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/jcodagnone/geosint/utils/httputils"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	options    = defaultOptions()
	configPath string
	logger     = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "geosint",
	Short: "géolocalisation d'images à partir de leur contenu",
	Long: `
geosint estime où une photo a été prise. L'image, locale ou téléchargée, est
comparée à une galerie de coordonnées GPS par un modèle GeoCLIP; les
localisations les plus probables sont affichées, et peuvent être exportées en
CSV, sur une carte interactive ou sur une carte mondiale.

Sans sous-commande, geosint lance la session interactive (voir "predict").
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(configPath, cmd.Flags(), &options); err != nil {
			return err
		}

		l, err := newLogger(os.Stderr, options.LogLevel)
		if err != nil {
			return err
		}

		logger = l

		return nil
	},
	RunE: runPredict,
}

var Version = "dev"

func userAgent() string {
	return fmt.Sprintf("geosint/%s (+https://github.com/jcodagnone/geosint)", Version)
}

func httpClientOptions() httputils.ClientOptions {
	o := httputils.ClientOptions{
		UserAgent: userAgent(),
		Timeout:   options.DownloadTimeout,
		TraceBody: options.TraceHTTPBody,
	}

	if options.TraceHTTP || options.TraceHTTPBody {
		o.Trace = &logger
	}

	return o
}

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(
		&configPath,
		"config",
		"",
		"Fichier de configuration YAML (par défaut "+DefaultConfigFile+" s'il existe)",
	)
	flags.StringVar(
		&options.WeightsDir,
		"weights-dir",
		options.WeightsDir,
		"Répertoire des poids du modèle",
	)
	flags.StringVar(
		&options.OnnxRuntimeLib,
		"onnxruntime-lib",
		options.OnnxRuntimeLib,
		"Chemin de la bibliothèque partagée ONNX Runtime",
	)
	flags.StringVar(
		&options.DownloadPath,
		"download-path",
		options.DownloadPath,
		"Fichier où enregistrer l'image téléchargée",
	)
	flags.DurationVar(
		&options.DownloadTimeout,
		"download-timeout",
		options.DownloadTimeout,
		"Durée maximale du téléchargement (0 pour aucune limite)",
	)
	flags.BoolVar(
		&options.TraceHTTP,
		"trace-http",
		options.TraceHTTP,
		"Journalise les requêtes et réponses HTTP",
	)
	flags.BoolVar(
		&options.TraceHTTPBody,
		"trace-http-body",
		options.TraceHTTPBody,
		"Journalise aussi le contenu des requêtes et réponses HTTP",
	)
	flags.StringVar(
		&options.Basemap,
		"basemap",
		options.Basemap,
		"Image équirectangulaire utilisée comme fond de la carte mondiale (par défaut une carte intégrée)",
	)
	flags.StringVar(
		&options.PlotOutput,
		"plot-output",
		options.PlotOutput,
		"Enregistre la carte mondiale en PNG au lieu de l'afficher",
	)
	flags.IntVar(
		&options.MaxAttempts,
		"max-attempts",
		options.MaxAttempts,
		"Nombre maximal de tentatives par question (0 pour illimité)",
	)
	flags.StringVar(
		&options.LogLevel,
		"log-level",
		options.LogLevel,
		"Niveau de journalisation (trace, debug, info, warn, error)",
	)
}
