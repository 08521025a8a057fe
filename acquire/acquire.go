// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package acquire obtains the image to analyze, either from the local
// filesystem or by downloading it, and checks that it decodes.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jcodagnone/geosint/apperr"
	"github.com/jcodagnone/geosint/utils/htmlutils"
	"github.com/jcodagnone/geosint/utils/httputils"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// DefaultDownloadPath is where FromURL stores the image when no destination
// is given.
const DefaultDownloadPath = "downloaded_image.jpg"

// Image is a validated reference to image bytes on the local filesystem.
type Image struct {
	// Path of the file, exactly as given (local) or the download destination
	Path string
	// Source is the URL the image came from, empty for local files
	Source string
	// MIME is the sniffed content type
	MIME string
	// Format is the decoder name (jpeg, png, …), set once validated
	Format string
	Width  int
	Height int
}

// Downloaded reports whether the image was fetched from a URL.
func (i Image) Downloaded() bool {
	return i.Source != ""
}

// Acquirer obtains images. The zero value is not usable, see New.
type Acquirer struct {
	client   *http.Client
	logger   zerolog.Logger
	progress bool
}

// New creates an Acquirer that downloads through client. When client is nil
// a default one without redirects is used.
func New(client *http.Client, logger zerolog.Logger) *Acquirer {
	if client == nil {
		client = httputils.NewClient(httputils.ClientOptions{})
	}

	return &Acquirer{
		client:   client,
		logger:   logger,
		progress: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// FromPath checks that path exists and decodes as an image. The returned
// Image.Path is path unchanged; the file is never rewritten.
func (a *Acquirer) FromPath(path string) (Image, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Image{}, apperr.New(apperr.NotFound, "Le fichier %s n'existe pas.", path)
	}

	if err != nil {
		return Image{}, apperr.Wrap(apperr.InvalidImage, err, "Fichier image invalide : %s", path)
	}

	if info.IsDir() {
		return Image{}, apperr.New(apperr.InvalidImage, "Fichier image invalide : %s (répertoire)", path)
	}

	img, err := Validate(path)
	if err != nil {
		return Image{}, err
	}

	a.logger.Debug().
		Str("path", path).
		Str("format", img.Format).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("image validated")

	return img, nil
}

// Validate fully decodes the file at path. A corrupt header, an unsupported
// format and truncated pixel data all yield an InvalidImage error.
func Validate(path string) (Image, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return Image{}, apperr.Wrap(apperr.InvalidImage, err, "Fichier image invalide : %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return Image{}, apperr.Wrap(apperr.InvalidImage, err, "Fichier image invalide : %s", path)
	}
	defer f.Close()

	decoded, format, err := image.Decode(f)
	if err != nil {
		detail := mime.String()
		if title := pageTitle(f, detail); title != "" {
			detail += ", page « " + title + " »"
		}

		return Image{}, apperr.Wrap(
			apperr.InvalidImage,
			err,
			"Fichier image invalide : %s (%s)", path, detail,
		)
	}

	bounds := decoded.Bounds()

	return Image{
		Path:   path,
		MIME:   mime.String(),
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// maxTitle bounds the page title quoted in error messages.
const maxTitle = 80

// pageTitle returns the title of f when it holds an HTML page, which is
// what a URL pointing to a web page instead of a picture yields.
func pageTitle(f *os.File, media string) string {
	if !htmlutils.IsHTML(media) {
		return ""
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ""
	}

	title, err := htmlutils.ReadTitle(f, media)
	if err != nil {
		return ""
	}

	if r := []rune(title); len(r) > maxTitle {
		title = string(r[:maxTitle]) + "…"
	}

	return title
}

// FromURL downloads rawURL into dest (DefaultDownloadPath when empty). Only
// an HTTP 200 answer is accepted; on any failure dest is left untouched.
// The body is written byte for byte and not validated, see FromPath.
func (a *Acquirer) FromURL(ctx context.Context, rawURL, dest string) (Image, error) {
	if dest == "" {
		dest = DefaultDownloadPath
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Image{}, apperr.Wrap(apperr.Download, err, "Échec du téléchargement de l'image depuis %s", rawURL)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Image{}, apperr.Wrap(apperr.Download, err, "Échec du téléchargement de l'image depuis %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var cause error = fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			cause = fmt.Errorf("%w: HTTP %d to %q", httputils.ErrRedirectNotAllowed, resp.StatusCode, resp.Header.Get("Location"))
		}

		return Image{}, apperr.Wrap(apperr.Download, cause, "Échec du téléchargement de l'image depuis %s", rawURL)
	}

	var body io.Reader = resp.Body

	if a.progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "Téléchargement")
		defer func() { _ = bar.Finish() }()

		body = io.TeeReader(resp.Body, bar)
	}

	n, err := writeAtomically(dest, body)
	if err != nil {
		return Image{}, apperr.Wrap(apperr.Download, err, "Échec du téléchargement de l'image depuis %s", rawURL)
	}

	a.logger.Debug().Str("url", rawURL).Str("path", dest).Int64("bytes", n).Msg("image downloaded")

	img := Image{Path: dest, Source: rawURL}
	if mime, err := mimetype.DetectFile(dest); err == nil {
		img.MIME = mime.String()
	}

	return img, nil
}

// writeAtomically copies r into a temporary sibling of dest and renames it
// into place once complete.
func writeAtomically(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".geosint-download-*")
	if err != nil {
		return 0, fmt.Errorf("creating temporary file: %w", err)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, errors.Join(
			fmt.Errorf("reading response body: %w", err),
			tmp.Close(),
			os.Remove(tmp.Name()),
		)
	}

	if err := tmp.Close(); err != nil {
		return 0, errors.Join(fmt.Errorf("closing %s: %w", tmp.Name(), err), os.Remove(tmp.Name()))
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, errors.Join(fmt.Errorf("renaming into %s: %w", dest, err), os.Remove(tmp.Name()))
	}

	return n, nil
}
