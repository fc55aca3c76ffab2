package vision

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/your-org/reunite/internal/config"
	"github.com/your-org/reunite/internal/observability"
)

// ErrNoFace is returned when an image decodes fine but no quality-passing
// face is found in it.
var ErrNoFace = errors.New("no face detected in the image")

// Face is one detected face with its identity embedding. The embedding is
// unit length; Region is in pixel coordinates of the input image.
type Face struct {
	Embedding []float32
	Region    image.Rectangle
	Score     float32
}

// Capability reports whether a face engine is loaded. Matchers hold this
// handle so that engine unavailability is decided at construction time and
// can be substituted with a stub in tests.
type Capability interface {
	Available() bool
}

// Extractor detects faces in an image and extracts an embedding per face.
// A frame with no faces yields an empty slice and no error.
type Extractor interface {
	Capability
	Extract(img image.Image) ([]Face, error)
}

// strategy is one detection attempt in the fallback chain. Attempts run in
// order until one yields a non-empty, quality-passing result: strict
// detection first, then relaxed, then treating the whole frame as a single
// face region (for footage where the detector misses low-contrast faces).
type strategy struct {
	name      string
	threshold float32
	fullFrame bool
}

// Engine is the ONNX-backed extractor (RetinaFace detection + ArcFace
// embedding). Extractions are serialized internally: both sessions reuse
// pre-bound input/output tensors, so one Engine can be shared across
// goroutines but runs one image at a time.
type Engine struct {
	mu         sync.Mutex
	detector   *Detector
	embedder   *Embedder
	strategies []strategy
	minNorm    float64
	minFacePx  int
}

// NewEngine loads both ONNX models and prepares the attempt chain.
func NewEngine(cfg config.VisionConfig) (*Engine, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.RelaxedThreshold), nil)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Engine{
		detector: det,
		embedder: emb,
		strategies: []strategy{
			{name: "strict", threshold: float32(cfg.StrictThreshold)},
			{name: "relaxed", threshold: float32(cfg.RelaxedThreshold)},
			{name: "fullframe", fullFrame: true},
		},
		minNorm:   cfg.MinEmbeddingNorm,
		minFacePx: cfg.MinFacePixels,
	}, nil
}

func (e *Engine) Available() bool {
	return e != nil
}

// Extract tries each detection strategy in order and returns the faces from
// the first one that produces a quality-passing result. An attempt that
// errors is logged and the next one tried; only total failure is an error.
func (e *Engine) Extract(img image.Image) ([]Face, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastErr error
	for _, st := range e.strategies {
		faces, err := e.attempt(img, st)
		if err != nil {
			slog.Warn("extraction attempt failed", "strategy", st.name, "error", err)
			lastErr = err
			continue
		}
		if len(faces) > 0 {
			slog.Debug("faces extracted", "strategy", st.name, "count", len(faces))
			observability.FacesDetected.Add(float64(len(faces)))
			return faces, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all extraction strategies failed: %w", lastErr)
	}
	return nil, nil
}

// ExtractBest returns the single highest-scoring face, or nil when the image
// contains no usable face.
func (e *Engine) ExtractBest(img image.Image) (*Face, error) {
	faces, err := e.Extract(img)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.Score > best.Score {
			best = f
		}
	}
	return &best, nil
}

// EmbedPhoto decodes image bytes and returns the embedding of the best face.
// A decodable image with no usable face yields ErrNoFace.
func (e *Engine) EmbedPhoto(imageData []byte) ([]float32, error) {
	img, err := DecodeImage(imageData)
	if err != nil {
		return nil, err
	}
	face, err := e.ExtractBest(img)
	if err != nil {
		return nil, err
	}
	if face == nil {
		return nil, ErrNoFace
	}
	return face.Embedding, nil
}

func (e *Engine) attempt(img image.Image, st strategy) ([]Face, error) {
	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	var regions []Detection
	if st.fullFrame {
		regions = []Detection{{
			BBox:  [4]float32{0, 0, float32(origW), float32(origH)},
			Score: 0,
		}}
	} else {
		start := time.Now()
		detInput := preprocessForDetection(img, e.detector.inputW, e.detector.inputH)
		dets, err := e.detector.Detect(detInput, origW, origH, st.threshold)
		observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		regions = dets
	}

	var faces []Face
	for _, det := range regions {
		rect := image.Rect(int(det.BBox[0]), int(det.BBox[1]), int(det.BBox[2]), int(det.BBox[3]))
		if rect.Dx() < e.minFacePx || rect.Dy() < e.minFacePx {
			continue
		}

		crop := CropRegion(img, rect, rect.Dx()/10)
		if crop == nil {
			continue
		}

		start := time.Now()
		embInput := preprocessForEmbedding(crop, e.embedder.inputW, e.embedder.inputH)
		embedding, err := e.embedder.Extract(embInput)
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}

		// A near-zero raw norm means the model saw nothing face-like.
		if Norm(embedding) < e.minNorm {
			continue
		}
		Normalize(embedding)

		faces = append(faces, Face{
			Embedding: embedding,
			Region:    rect,
			Score:     det.Score,
		})
	}

	return faces, nil
}

// Close releases both ONNX sessions.
func (e *Engine) Close() {
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
}
