// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package geoclip

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"

	"github.com/jcodagnone/geosint/apperr"
	"github.com/jcodagnone/geosint/spatial"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	ort "github.com/yalue/onnxruntime_go"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// Tensor layout of the exported encoders.
const (
	EmbeddingDim = 512
	galleryBatch = 1024

	imageInputName     = "pixel_values"
	imageOutputName    = "image_embeds"
	locationInputName  = "gps"
	locationOutputName = "location_embeds"
)

// Options configures a Model.
type Options struct {
	// WeightsDir holds the encoders, the logit scale and the GPS gallery
	WeightsDir string

	// SharedLibraryPath points to the onnxruntime shared library. When empty
	// the platform default is used.
	SharedLibraryPath string

	Logger zerolog.Logger
}

// Model is a GeoCLIP model backed by ONNX Runtime. Create it with NewModel,
// call Load once, and Close when done. It is not safe for concurrent use.
type Model struct {
	opts Options

	scale   float64
	gallery []spatial.Point
	// embeds holds len(gallery) normalized rows of EmbeddingDim values
	embeds []float32

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	envReady     bool
}

var _ Predictor = (*Model)(nil)

// NewModel returns an unloaded model.
func NewModel(opts Options) *Model {
	if opts.WeightsDir == "" {
		opts.WeightsDir = DefaultWeightsDir
	}

	return &Model{opts: opts}
}

// Loaded reports whether Load succeeded.
func (m *Model) Loaded() bool {
	return m.session != nil
}

// GallerySize is the number of candidate locations.
func (m *Model) GallerySize() int {
	return len(m.gallery)
}

// LogitScale is the exponentiated temperature applied to similarities.
func (m *Model) LogitScale() float64 {
	return m.scale
}

func (m *Model) path(name string) string {
	return filepath.Join(m.opts.WeightsDir, name)
}

// Load reads the weights, embeds the whole gallery with the location encoder
// and prepares the image encoder session. Every failure is a
// FatalWeightsLoad error except a canceled ctx, which is returned as is. A
// failed Load leaves nothing allocated.
func (m *Model) Load(ctx context.Context) (err error) {
	if m.Loaded() {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := CheckWeights(m.opts.WeightsDir); err != nil {
		return err
	}

	if m.scale, err = LoadLogitScale(m.path(LogitScaleFile)); err != nil {
		return err
	}

	if m.gallery, err = LoadGallery(m.path(GalleryFile)); err != nil {
		return err
	}

	defer func() {
		if err != nil {
			m.release()
		}
	}()

	if m.opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(m.opts.SharedLibraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return apperr.Wrap(apperr.FatalWeightsLoad, err, "initialisation de ONNX Runtime")
	}

	m.envReady = true

	if err := m.embedGallery(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}

		return apperr.Wrap(apperr.FatalWeightsLoad, err, "chargement de %s", m.path(LocationEncoderFile))
	}

	if err := m.openImageEncoder(); err != nil {
		return apperr.Wrap(apperr.FatalWeightsLoad, err, "chargement de %s", m.path(ImageEncoderFile))
	}

	m.opts.Logger.Debug().
		Str("weights", m.opts.WeightsDir).
		Int("gallery", len(m.gallery)).
		Float64("logit_scale", m.scale).
		Msg("model loaded")

	return nil
}

// embedGallery runs the location encoder over the gallery in fixed size
// batches, the last one padded, and keeps the normalized embeddings. ctx is
// checked between batches.
func (m *Model) embedGallery(ctx context.Context) error {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(galleryBatch, 2))
	if err != nil {
		return fmt.Errorf("creating location input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(galleryBatch, EmbeddingDim))
	if err != nil {
		return fmt.Errorf("creating location output tensor: %w", err)
	}
	defer output.Destroy()

	session, err := ort.NewAdvancedSession(m.path(LocationEncoderFile),
		[]string{locationInputName}, []string{locationOutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		return fmt.Errorf("creating location session: %w", err)
	}
	defer session.Destroy()

	n := len(m.gallery)
	m.embeds = make([]float32, n*EmbeddingDim)

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("Encodage de la galerie GPS"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	in := input.GetData()
	out := output.GetData()

	for start := 0; start < n; start += galleryBatch {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+galleryBatch, n)

		clear(in)

		for i, p := range m.gallery[start:end] {
			in[2*i] = float32(p.Lat)
			in[2*i+1] = float32(p.Lng)
		}

		if err := session.Run(); err != nil {
			return fmt.Errorf("encoding gallery rows %d-%d: %w", start, end, err)
		}

		for i := range end - start {
			row := m.embeds[(start+i)*EmbeddingDim : (start+i+1)*EmbeddingDim]
			copy(row, out[i*EmbeddingDim:(i+1)*EmbeddingDim])
			Normalize(row)
		}

		if bar != nil {
			_ = bar.Add(end - start)
		}
	}

	return nil
}

func (m *Model) openImageEncoder() error {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, InputSize, InputSize))
	if err != nil {
		return fmt.Errorf("creating image input tensor: %w", err)
	}

	m.inputTensor = input

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, EmbeddingDim))
	if err != nil {
		return fmt.Errorf("creating image output tensor: %w", err)
	}

	m.outputTensor = output

	session, err := ort.NewAdvancedSession(m.path(ImageEncoderFile),
		[]string{imageInputName}, []string{imageOutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		return fmt.Errorf("creating image session: %w", err)
	}

	m.session = session

	return nil
}

// Predict ranks the gallery against the image at imagePath.
func (m *Model) Predict(ctx context.Context, imagePath string, topK int) ([]spatial.Prediction, error) {
	if !m.Loaded() {
		return nil, errors.New("geoclip: model not loaded")
	}

	if topK <= 0 {
		return nil, apperr.New(apperr.ValidationInput, "top-k doit être positif (%d)", topK)
	}

	f, err := os.Open(imagePath) // #nosec G304 - path was validated by the acquirer
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, err, "Le fichier %s n'existe pas.", imagePath)
	}

	img, _, err := image.Decode(f)
	_ = f.Close()

	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidImage, err, "Fichier image invalide : %s", imagePath)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	copy(m.inputTensor.GetData(), Preprocess(img))

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	embedding := make([]float32, EmbeddingDim)
	copy(embedding, m.outputTensor.GetData())
	Normalize(embedding)

	logits := make([]float64, len(m.gallery))
	for i := range m.gallery {
		logits[i] = m.scale * Dot(embedding, m.embeds[i*EmbeddingDim:(i+1)*EmbeddingDim])
	}

	probs := Softmax(logits)
	best := TopK(probs, topK)

	predictions := make([]spatial.Prediction, len(best))
	for i, idx := range best {
		predictions[i] = spatial.Prediction{Point: m.gallery[idx], Probability: probs[idx]}
	}

	return predictions, nil
}

func (m *Model) release() {
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
		m.inputTensor = nil
	}

	if m.outputTensor != nil {
		m.outputTensor.Destroy()
		m.outputTensor = nil
	}

	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}

	if m.envReady {
		ort.DestroyEnvironment()
		m.envReady = false
	}
}

// Close releases the ONNX Runtime resources. It is safe to call more than
// once.
func (m *Model) Close() {
	m.release()
}
