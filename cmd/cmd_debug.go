// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcodagnone/geosint/acquire"
	"github.com/jcodagnone/geosint/geoclip"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugImageCmd = &cobra.Command{
	Use:   "image [path…]",
	Short: "Valide des images comme le ferait la session interactive",
	Long: `Valide chaque image donnée en argument, ou une par ligne sur stdin, et
imprime son format, sa taille et son type MIME.

$ ls photos/* | geosint debug image
photos/a.jpg	jpeg	4032x3024	image/jpeg
photos/b.txt	"Fichier image invalide : photos/b.txt (text/plain; charset=utf-8): image: unknown format"
	`,
	RunE: func(_ *cobra.Command, args []string) error {
		a := acquire.New(nil, logger)

		if len(args) > 0 {
			for _, path := range args {
				describeImage(os.Stdout, a, path)
			}

			return nil
		}

		input := os.Stdin
		if isatty.IsTerminal(input.Fd()) {
			fmt.Fprintln(os.Stderr, "Entrez les chemins des images, un par ligne…")
		}

		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			describeImage(os.Stdout, a, scanner.Text())
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		return nil
	},
}

func describeImage(w io.Writer, a *acquire.Acquirer, path string) {
	img, err := a.FromPath(path)
	if err != nil {
		fmt.Fprintf(w, "%s\t%q\n", path, err)

		return
	}

	fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\n", img.Path, img.Format, img.Width, img.Height, img.MIME)
}

var debugWeightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Charge les poids du modèle et affiche un résumé",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		model, err := loadModel(ctx)
		if err != nil {
			return err
		}
		defer model.Close()

		fmt.Printf("Répertoire:  %s\n", options.WeightsDir)
		for _, name := range geoclip.RequiredFiles {
			fmt.Printf("  - %s\n", name)
		}
		fmt.Printf("Galerie:     %d coordonnées\n", model.GallerySize())
		fmt.Printf("Logit scale: %.4f\n", model.LogitScale())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugImageCmd)
	debugCmd.AddCommand(debugWeightsCmd)
}
