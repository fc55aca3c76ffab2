package video

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/reunite/internal/match"
	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/observability"
	"github.com/your-org/reunite/internal/vision"
)

// maxErrorLen bounds the failure message stored on an upload record.
const maxErrorLen = 500

// Store is the persistence surface for video scanning.
type Store interface {
	GetVideoUpload(ctx context.Context, id uuid.UUID) (*models.VideoUpload, error)
	MarkVideoProcessing(ctx context.Context, id uuid.UUID) error
	SetVideoTotalFrames(ctx context.Context, id uuid.UUID, total int) error
	UpdateVideoProgress(ctx context.Context, id uuid.UUID, processedFrames, totalDetections int) error
	CompleteVideo(ctx context.Context, id uuid.UUID, processedFrames, totalDetections int) error
	FailVideo(ctx context.Context, id uuid.UUID, errMsg string) error
	CaseEmbedding(ctx context.Context, caseID uuid.UUID) ([]float32, error)
	SaveDetections(ctx context.Context, detections []models.VideoDetection) error
}

// Blobs reads uploaded videos and writes detection crops.
type Blobs interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Scanner drives one full video scan: sample frames, extract faces, score
// each against the single target case embedding, persist accepted
// detections in batches, and track progress on the upload record.
//
// State machine: queued -> processing -> done | failed. Terminal uploads are
// never reprocessed, which makes redelivered scan tasks harmless.
type Scanner struct {
	store     Store
	blobs     Blobs
	extractor vision.Extractor
	sampler   Sampler

	flushFrames int
	cropPadding int

	// OnDetection, when set, is called after each detection is buffered.
	OnDetection func(ctx context.Context, det models.VideoDetection)
}

func NewScanner(store Store, blobs Blobs, extractor vision.Extractor, sampler Sampler, flushFrames, cropPadding int) *Scanner {
	if flushFrames <= 0 {
		flushFrames = 10
	}
	return &Scanner{
		store:       store,
		blobs:       blobs,
		extractor:   extractor,
		sampler:     sampler,
		flushFrames: flushFrames,
		cropPadding: cropPadding,
	}
}

// Process runs the scan for one upload. Any scan failure is recorded on the
// upload record as a bounded message and the record moved to failed; the
// error is also returned for the caller's log.
func (sc *Scanner) Process(ctx context.Context, videoID uuid.UUID) error {
	upload, err := sc.store.GetVideoUpload(ctx, videoID)
	if err != nil {
		return fmt.Errorf("load video upload: %w", err)
	}
	if upload == nil {
		return fmt.Errorf("video upload %s not found", videoID)
	}
	if upload.Status.Terminal() {
		slog.Info("scan task for terminal upload dropped", "video_id", videoID, "status", upload.Status)
		return nil
	}

	if err := sc.store.MarkVideoProcessing(ctx, videoID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	slog.Info("video scan started", "video_id", videoID, "case_id", upload.CaseID, "threshold", upload.Threshold)
	start := time.Now()

	if err := sc.scan(ctx, upload); err != nil {
		slog.Error("video scan failed", "video_id", videoID, "error", err)
		if ferr := sc.store.FailVideo(ctx, videoID, truncate(err.Error(), maxErrorLen)); ferr != nil {
			slog.Error("record scan failure", "video_id", videoID, "error", ferr)
		}
		return err
	}

	observability.ScanDuration.Observe(time.Since(start).Seconds())
	slog.Info("video scan complete", "video_id", videoID, "duration", time.Since(start).String())
	return nil
}

func (sc *Scanner) scan(ctx context.Context, upload *models.VideoUpload) error {
	target, err := sc.store.CaseEmbedding(ctx, upload.CaseID)
	if err != nil {
		return fmt.Errorf("load target embedding: %w", err)
	}
	if match.IsZero(target) {
		return fmt.Errorf("case %s has no usable face embedding", upload.CaseID)
	}

	if sc.extractor == nil || !sc.extractor.Available() {
		return fmt.Errorf("face engine not available")
	}

	path, cleanup, err := sc.fetchVideo(ctx, upload)
	if err != nil {
		return err
	}
	// Release the on-disk copy on every exit path.
	defer cleanup()

	if err := sc.sampler.Validate(ctx, path); err != nil {
		return fmt.Errorf("validate video: %w", err)
	}

	timestamps, err := sc.sampler.Timestamps(ctx, path)
	if err != nil {
		return fmt.Errorf("plan sampling: %w", err)
	}
	if err := sc.store.SetVideoTotalFrames(ctx, upload.ID, len(timestamps)); err != nil {
		return fmt.Errorf("record total frames: %w", err)
	}

	var buffer []models.VideoDetection
	processed := 0
	detected := 0

	flush := func() error {
		if len(buffer) > 0 {
			if err := sc.store.SaveDetections(ctx, buffer); err != nil {
				return fmt.Errorf("save detections: %w", err)
			}
			buffer = buffer[:0]
		}
		return sc.store.UpdateVideoProgress(ctx, upload.ID, processed, detected)
	}

	for i, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := sc.sampler.FrameAt(ctx, path, ts)
		if err != nil {
			slog.Warn("frame unreadable", "video_id", upload.ID, "timestamp", ts, "error", err)
			processed++
			continue
		}
		observability.FramesSampled.WithLabelValues(upload.ID.String()).Inc()

		faces, err := sc.extractor.Extract(img)
		if err != nil {
			slog.Warn("extract frame", "video_id", upload.ID, "timestamp", ts, "error", err)
			processed++
			continue
		}

		for _, face := range faces {
			if len(face.Embedding) != len(target) {
				continue
			}

			distance := match.Cosine(target, face.Embedding)
			if distance > upload.Threshold {
				continue
			}

			det := models.VideoDetection{
				ID:               uuid.New(),
				VideoID:          upload.ID,
				CaseID:           upload.CaseID,
				TimestampSeconds: round2(ts),
				Confidence:       match.Confidence(distance),
				FrameNumber:      i,
				DetectedAt:       time.Now().UTC(),
			}
			det.CropKey = sc.saveCrop(ctx, img, face, det.ID)

			buffer = append(buffer, det)
			detected++
			observability.VideoDetections.WithLabelValues(upload.ID.String()).Inc()

			slog.Info("video detection",
				"video_id", upload.ID,
				"timestamp", det.TimestampSeconds,
				"distance", distance,
				"confidence", det.Confidence,
			)

			if sc.OnDetection != nil {
				sc.OnDetection(ctx, det)
			}
		}

		processed++

		// Batch writes: bounds memory and avoids one update per frame.
		if processed%sc.flushFrames == 0 {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	return sc.store.CompleteVideo(ctx, upload.ID, processed, detected)
}

// fetchVideo streams the uploaded object to a temp file ffmpeg can seek in.
func (sc *Scanner) fetchVideo(ctx context.Context, upload *models.VideoUpload) (string, func(), error) {
	obj, err := sc.blobs.GetObject(ctx, upload.VideoKey)
	if err != nil {
		return "", nil, fmt.Errorf("fetch video %s: %w", upload.VideoKey, err)
	}
	defer obj.Close()

	tmp, err := os.CreateTemp("", "scan-*"+filepath.Ext(upload.Filename))
	if err != nil {
		return "", nil, fmt.Errorf("create temp video: %w", err)
	}

	if _, err := io.Copy(tmp, obj); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("write temp video: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("close temp video: %w", err)
	}

	path := tmp.Name()
	return path, func() { _ = os.Remove(path) }, nil
}

// saveCrop stores the padded face crop for a detection; degenerate crop
// regions fall back to the whole frame. A storage failure only costs the
// image, not the detection.
func (sc *Scanner) saveCrop(ctx context.Context, frame image.Image, face vision.Face, detectionID uuid.UUID) string {
	crop := vision.CropRegion(frame, face.Region, sc.cropPadding)
	if crop == nil {
		crop = frame
	}

	key := fmt.Sprintf("detections/%s.jpg", detectionID)
	if err := sc.blobs.PutObject(ctx, key, vision.EncodeJPEG(crop, 90), "image/jpeg"); err != nil {
		slog.Warn("save detection crop", "detection_id", detectionID, "error", err)
		return ""
	}
	return key
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
