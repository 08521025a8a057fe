// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/geosint/acquire"
	"github.com/jcodagnone/geosint/apperr"
	"github.com/jcodagnone/geosint/prompt"
	"github.com/jcodagnone/geosint/report"
	"github.com/jcodagnone/geosint/spatial"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paris = []spatial.Prediction{
	{Point: spatial.Point{Lat: 48.8566, Lng: 2.3522}, Probability: 0.873456},
	{Point: spatial.Point{Lat: 45.764, Lng: 4.8357}, Probability: 0.1},
}

type stubPredictor struct {
	predictions []spatial.Prediction
	err         error
	calls       []int
	paths       []string
	onPredict   func()
}

func (s *stubPredictor) Predict(_ context.Context, imagePath string, topK int) ([]spatial.Prediction, error) {
	s.calls = append(s.calls, topK)
	s.paths = append(s.paths, imagePath)

	if s.onPredict != nil {
		s.onPredict()
	}

	if s.err != nil {
		return nil, s.err
	}

	return s.predictions[:min(topK, len(s.predictions))], nil
}

type stubAcquirer struct {
	local     map[string]bool
	remote    map[string]string
	fromPath  []string
	fromURL   []string
	downloads []string
	onURL     func()
}

func (s *stubAcquirer) FromPath(path string) (acquire.Image, error) {
	s.fromPath = append(s.fromPath, path)

	if !s.local[path] {
		return acquire.Image{}, apperr.New(apperr.NotFound, "Le fichier %s n'existe pas.", path)
	}

	return acquire.Image{Path: path, Format: "png"}, nil
}

func (s *stubAcquirer) FromURL(_ context.Context, rawURL, dest string) (acquire.Image, error) {
	s.fromURL = append(s.fromURL, rawURL)
	s.downloads = append(s.downloads, dest)

	if s.onURL != nil {
		s.onURL()
	}

	if _, ok := s.remote[rawURL]; !ok {
		return acquire.Image{}, apperr.New(apperr.Download, "Échec du téléchargement de l'image depuis %s", rawURL)
	}

	return acquire.Image{Path: dest, Source: rawURL}, nil
}

type stubReporter struct {
	steps   []string
	names   []string
	failing map[string]error
}

func (s *stubReporter) record(step, name string) error {
	s.steps = append(s.steps, step)
	s.names = append(s.names, name)

	return s.failing[step]
}

func (s *stubReporter) Console([]spatial.Prediction) error {
	return s.record("console", "")
}

func (s *stubReporter) SaveCSV(_ []spatial.Prediction, path string) error {
	return s.record("csv", path)
}

func (s *stubReporter) SaveInteractiveMap(_ []spatial.Prediction, path string) error {
	return s.record("map", path)
}

func (s *stubReporter) ShowStaticPlot([]spatial.Prediction) error {
	return s.record("plot", "")
}

type fixture struct {
	runner    *Runner
	input     *prompt.Scripted
	predictor *stubPredictor
	acquirer  *stubAcquirer
	reporter  *stubReporter
	out       *bytes.Buffer
}

func newFixture(answers ...string) *fixture {
	f := &fixture{
		input:     prompt.NewScripted(answers...),
		predictor: &stubPredictor{predictions: paris},
		acquirer: &stubAcquirer{
			local:  map[string]bool{"photo.jpg": true, "dl.jpg": true},
			remote: map[string]string{"https://example.com/a.jpg": "dl.jpg"},
		},
		reporter: &stubReporter{},
		out:      &bytes.Buffer{},
	}

	f.runner = &Runner{
		Predictor: f.predictor,
		Acquirer:  f.acquirer,
		Reporter:  f.reporter,
		Input:     f.input,
		Out:       f.out,
		Logger:    zerolog.Nop(),
		Options:   Options{DownloadPath: "dl.jpg"},
	}

	return f
}

func TestParseTopK(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr string
	}{
		{in: "3", want: 3},
		{in: "  12 ", want: 12},
		{in: "1", want: 1},
		{in: "abc", wantErr: msgNotInt},
		{in: "", wantErr: msgNotInt},
		{in: "2.5", wantErr: msgNotInt},
		{in: "0", wantErr: msgNotPos},
		{in: "-3", wantErr: msgNotPos},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, err := ParseTopK(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.True(t, apperr.Is(err, apperr.ValidationInput))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestAskTopKRepromptsUntilPositive(t *testing.T) {
	f := newFixture("abc", "-3", "0", "4", "7")

	k, err := f.runner.AskTopK(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 4, k)

	want := msgNotInt + "\n" + msgNotPos + "\n" + msgNotPos + "\n"
	assert.Equal(t, want, f.out.String())
	assert.Len(t, f.input.Labels, 4)
	assert.Equal(t, []string{"7"}, f.input.Answers)
}

func TestAskTopKMaxAttempts(t *testing.T) {
	f := newFixture("x", "y", "3")
	f.runner.Options.MaxAttempts = 2

	_, err := f.runner.AskTopK(t.Context())
	require.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestAcquireImage(t *testing.T) {
	tests := []struct {
		name      string
		answers   []string
		want      acquire.Image
		wantOut   string
		wantPaths []string
		wantURLs  []string
	}{
		{
			name:      "local path",
			answers:   []string{"path", "photo.jpg"},
			want:      acquire.Image{Path: "photo.jpg", Format: "png"},
			wantOut:   "Validation de l'image réussie.\n",
			wantPaths: []string{"photo.jpg"},
		},
		{
			name:      "choice is trimmed and case folded",
			answers:   []string{"  PATH ", " photo.jpg "},
			want:      acquire.Image{Path: "photo.jpg", Format: "png"},
			wantOut:   "Validation de l'image réussie.\n",
			wantPaths: []string{"photo.jpg"},
		},
		{
			name:    "url is downloaded then validated",
			answers: []string{"url", "https://example.com/a.jpg"},
			want: acquire.Image{
				Path:   "dl.jpg",
				Source: "https://example.com/a.jpg",
				Format: "png",
			},
			wantOut:   "Image téléchargée avec succès : dl.jpg\n",
			wantPaths: []string{"dl.jpg"},
			wantURLs:  []string{"https://example.com/a.jpg"},
		},
		{
			name:    "invalid choice then missing file then success",
			answers: []string{"file", "path", "nope.jpg", "path", "photo.jpg"},
			want:    acquire.Image{Path: "photo.jpg", Format: "png"},
			wantOut: msgBadChoice + "\n" +
				"Le fichier nope.jpg n'existe pas.\n" +
				"Validation de l'image réussie.\n",
			wantPaths: []string{"nope.jpg", "photo.jpg"},
		},
		{
			name:    "failed download loops",
			answers: []string{"url", "https://example.com/404", "path", "photo.jpg"},
			want:    acquire.Image{Path: "photo.jpg", Format: "png"},
			wantOut: "Échec du téléchargement de l'image depuis https://example.com/404\n" +
				"Validation de l'image réussie.\n",
			wantPaths: []string{"photo.jpg"},
			wantURLs:  []string{"https://example.com/404"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.answers...)

			img, err := f.runner.AcquireImage(t.Context())
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, img); diff != "" {
				t.Errorf("image mismatch (-want +got):\n%s", diff)
			}

			assert.Equal(t, tt.wantOut, f.out.String())
			assert.Equal(t, tt.wantPaths, f.acquirer.fromPath)
			assert.Equal(t, tt.wantURLs, f.acquirer.fromURL)
		})
	}
}

func TestAcquireImageInputClosed(t *testing.T) {
	f := newFixture("path", "nope.jpg", "path")

	_, err := f.runner.AcquireImage(t.Context())
	require.ErrorIs(t, err, prompt.ErrClosed)
}

func TestAcquireImageMaxAttempts(t *testing.T) {
	f := newFixture("ftp", "ftp", "ftp", "path", "photo.jpg")
	f.runner.Options.MaxAttempts = 3

	_, err := f.runner.AcquireImage(t.Context())
	require.ErrorIs(t, err, ErrTooManyAttempts)
	assert.Equal(t, strings.Repeat(msgBadChoice+"\n", 3), f.out.String())
}

// interruptedInput behaves like a console where the operator hit Ctrl-C.
type interruptedInput struct{ calls int }

func (i *interruptedInput) Prompt(context.Context, string) (string, error) {
	i.calls++

	return "", fmt.Errorf("%w: ^C", prompt.ErrInterrupted)
}

func TestAcquireImageStops(t *testing.T) {
	canceled, cancel := context.WithCancel(t.Context())
	cancel()

	f := newFixture("path", "photo.jpg")

	_, err := f.runner.AcquireImage(canceled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.input.Labels, "nothing is asked once canceled")

	in := &interruptedInput{}
	f = newFixture()
	f.runner.Input = in

	_, err = f.runner.AcquireImage(t.Context())
	require.ErrorIs(t, err, prompt.ErrInterrupted)
	assert.Equal(t, 1, in.calls)
}

func TestAcquireImageCanceledDuringDownload(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	f := newFixture("url", "https://example.com/slow.jpg", "path", "photo.jpg")
	f.acquirer.onURL = cancel

	_, err := f.runner.AcquireImage(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{AskSource, AskURL}, f.input.Labels)
	assert.Empty(t, f.out.String())
}

func TestAskTopKCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	f := newFixture("3")

	_, err := f.runner.AskTopK(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.input.Labels)
}

func TestRunCanceledBeforeOutputs(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	f := newFixture("path", "photo.jpg", "1", "oui", "out.csv", "oui", "map.html", "oui")
	f.predictor.onPredict = cancel

	result, err := f.runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, []string{"console"}, f.reporter.steps)
	assert.Equal(t, []string{AskSource, AskPath, AskTopK}, f.input.Labels)
}

func TestRunAllOutputs(t *testing.T) {
	f := newFixture("path", "photo.jpg", "2", "oui", "out.csv", "OUI ", "map.html", " Oui")

	result, err := f.runner.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TopK)
	assert.Equal(t, paris, result.Predictions)
	assert.Equal(t, []int{2}, f.predictor.calls)
	assert.Equal(t, []string{"photo.jpg"}, f.predictor.paths)
	assert.Equal(t, []string{"console", "csv", "map", "plot"}, f.reporter.steps)
	assert.Equal(t, []string{"", "out.csv", "map.html", ""}, f.reporter.names)

	assert.Equal(t, []string{
		AskSource, AskPath, AskTopK,
		AskSaveCSV, AskCSVName,
		AskMap, AskMapName,
		AskPlot,
	}, f.input.Labels)
}

func TestRunOnlyOuiIsYes(t *testing.T) {
	for _, answer := range []string{"non", "yes", "o", "y", "", "ouii", "oui oui"} {
		t.Run(answer, func(t *testing.T) {
			f := newFixture("path", "photo.jpg", "1", answer, answer, answer)

			_, err := f.runner.Run(t.Context())
			require.NoError(t, err)

			// no re-prompt and no file name question
			assert.Equal(t, []string{"console"}, f.reporter.steps)
			assert.Equal(t, []string{AskSource, AskPath, AskTopK, AskSaveCSV, AskMap, AskPlot}, f.input.Labels)
		})
	}
}

func TestRunOutputErrorsDoNotStopLaterSteps(t *testing.T) {
	f := newFixture("path", "photo.jpg", "1", "oui", "/nope/out.csv", "oui", "map.html", "oui")
	f.reporter.failing = map[string]error{
		"csv": apperr.New(apperr.IOWrite, "écriture de /nope/out.csv"),
		"map": errors.New("disk full"),
	}

	_, err := f.runner.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"console", "csv", "map", "plot"}, f.reporter.steps)
	assert.Contains(t, f.out.String(),
		"Une erreur s'est produite lors de l'enregistrement du fichier : écriture de /nope/out.csv\n")
	assert.Contains(t, f.out.String(),
		"Une erreur s'est produite lors de la création de la carte : disk full\n")
}

func TestRunPredictionError(t *testing.T) {
	f := newFixture("path", "photo.jpg", "1")
	f.predictor.err = errors.New("inference failed")

	_, err := f.runner.Run(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "photo.jpg")
	assert.Empty(t, f.reporter.steps)
}

func TestRunInputClosedDuringOutputs(t *testing.T) {
	f := newFixture("path", "photo.jpg", "1", "oui")

	result, err := f.runner.Run(t.Context())
	require.ErrorIs(t, err, prompt.ErrClosed)
	require.NotNil(t, result)
	assert.Len(t, result.Predictions, 1)
	assert.Equal(t, []string{"console"}, f.reporter.steps)
}

func writePNG(t *testing.T, path string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// TestRunEndToEnd drives the real acquirer and reporter against a local
// server, only the model is stubbed.
func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writePNG(t, src)

	body, err := os.ReadFile(src)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	out := &bytes.Buffer{}
	rep := report.New(out, zerolog.Nop())
	rep.Plot.Output = filepath.Join(dir, "plot.png")

	input := prompt.NewScripted(
		"url", srv.URL+"/image.png",
		"2",
		"oui", filepath.Join(dir, "res", "predictions.csv"),
		"oui", filepath.Join(dir, "map.html"),
		"oui",
	)

	runner := &Runner{
		Predictor: &stubPredictor{predictions: paris},
		Acquirer:  acquire.New(srv.Client(), zerolog.Nop()),
		Reporter:  rep,
		Input:     input,
		Out:       out,
		Logger:    zerolog.Nop(),
		Options:   Options{DownloadPath: filepath.Join(dir, "downloaded_image.jpg")},
	}

	result, err := runner.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "png", result.Image.Format)
	assert.Equal(t, srv.URL+"/image.png", result.Image.Source)

	downloaded, err := os.ReadFile(filepath.Join(dir, "downloaded_image.jpg"))
	require.NoError(t, err)
	assert.Equal(t, body, downloaded)

	for _, name := range []string{"res/predictions.csv", "map.html", "plot.png"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	assert.Contains(t, out.String(), "Prédiction 1: (48.856600, 2.352200)")
	assert.Contains(t, out.String(), "Résultats enregistrés dans ")
	assert.Contains(t, out.String(), "Carte interactive créée : ")
	assert.Contains(t, out.String(), "Carte mondiale enregistrée : ")
}

func TestRunRemovesRejectedDownload(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writePNG(t, src)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>Connexion</title></head><body>login</body></html>"))
	}))
	defer srv.Close()

	out := &bytes.Buffer{}
	download := filepath.Join(dir, "downloaded_image.jpg")

	runner := &Runner{
		Predictor: &stubPredictor{predictions: paris},
		Acquirer:  acquire.New(srv.Client(), zerolog.Nop()),
		Reporter:  &stubReporter{},
		Input:     prompt.NewScripted("url", srv.URL+"/login", "path", src, "1", "non", "non", "non"),
		Out:       out,
		Logger:    zerolog.Nop(),
		Options:   Options{DownloadPath: download},
	}

	result, err := runner.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, src, result.Image.Path)
	assert.Contains(t, out.String(), "Image téléchargée avec succès : "+download)
	assert.Contains(t, out.String(), "Connexion")
	assert.NoFileExists(t, download)
}
