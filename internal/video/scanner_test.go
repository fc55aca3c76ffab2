package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/vision"
)

type fakeScanStore struct {
	upload *models.VideoUpload
	target []float32

	markedProcessing bool
	totalFrames      int
	progressCalls    [][2]int
	completed        *[2]int
	failedMsg        *string
	saved            []models.VideoDetection
}

func (f *fakeScanStore) GetVideoUpload(ctx context.Context, id uuid.UUID) (*models.VideoUpload, error) {
	if f.upload == nil || f.upload.ID != id {
		return nil, nil
	}
	return f.upload, nil
}

func (f *fakeScanStore) MarkVideoProcessing(ctx context.Context, id uuid.UUID) error {
	f.markedProcessing = true
	return nil
}

func (f *fakeScanStore) SetVideoTotalFrames(ctx context.Context, id uuid.UUID, total int) error {
	f.totalFrames = total
	return nil
}

func (f *fakeScanStore) UpdateVideoProgress(ctx context.Context, id uuid.UUID, processedFrames, totalDetections int) error {
	f.progressCalls = append(f.progressCalls, [2]int{processedFrames, totalDetections})
	return nil
}

func (f *fakeScanStore) CompleteVideo(ctx context.Context, id uuid.UUID, processedFrames, totalDetections int) error {
	f.completed = &[2]int{processedFrames, totalDetections}
	return nil
}

func (f *fakeScanStore) FailVideo(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.failedMsg = &errMsg
	return nil
}

func (f *fakeScanStore) CaseEmbedding(ctx context.Context, caseID uuid.UUID) ([]float32, error) {
	return f.target, nil
}

func (f *fakeScanStore) SaveDetections(ctx context.Context, detections []models.VideoDetection) error {
	f.saved = append(f.saved, detections...)
	return nil
}

type fakeBlobs struct {
	puts map[string][]byte
}

func (f *fakeBlobs) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte("video-bytes"))), nil
}

func (f *fakeBlobs) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[key] = data
	return nil
}

type fakeExtractor struct {
	// facesAt maps a frame index to the faces found there.
	facesAt map[int][]vision.Face
	calls   int
}

func (f *fakeExtractor) Available() bool { return true }

func (f *fakeExtractor) Extract(img image.Image) ([]vision.Face, error) {
	faces := f.facesAt[f.calls]
	f.calls++
	return faces, nil
}

type fakeFrameSampler struct {
	timestamps  []float64
	validateErr error
}

func (f *fakeFrameSampler) Validate(ctx context.Context, path string) error {
	return f.validateErr
}

func (f *fakeFrameSampler) Timestamps(ctx context.Context, path string) ([]float64, error) {
	return f.timestamps, nil
}

func (f *fakeFrameSampler) FrameAt(ctx context.Context, path string, ts float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 64, 64)), nil
}

func queuedUpload(threshold float64) *models.VideoUpload {
	return &models.VideoUpload{
		ID:        uuid.New(),
		CaseID:    uuid.New(),
		Filename:  "walkway.mp4",
		VideoKey:  "videos/walkway.mp4",
		Threshold: threshold,
		Status:    models.VideoStatusQueued,
	}
}

func timestampsSeq(n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i)
	}
	return ts
}

func TestScanner_ProcessNotFound(t *testing.T) {
	store := &fakeScanStore{}
	sc := NewScanner(store, &fakeBlobs{}, &fakeExtractor{}, &fakeFrameSampler{}, 10, 20)

	err := sc.Process(context.Background(), uuid.New())

	require.Error(t, err)
	assert.False(t, store.markedProcessing)
}

func TestScanner_TerminalUploadDropped(t *testing.T) {
	upload := queuedUpload(0.85)
	upload.Status = models.VideoStatusDone
	store := &fakeScanStore{upload: upload}
	sc := NewScanner(store, &fakeBlobs{}, &fakeExtractor{}, &fakeFrameSampler{}, 10, 20)

	err := sc.Process(context.Background(), upload.ID)

	// Redelivered task for a finished upload is a no-op, not an error.
	require.NoError(t, err)
	assert.False(t, store.markedProcessing)
	assert.Nil(t, store.completed)
}

func TestScanner_FailedUploadNotRetried(t *testing.T) {
	upload := queuedUpload(0.85)
	upload.Status = models.VideoStatusFailed
	store := &fakeScanStore{upload: upload}
	sc := NewScanner(store, &fakeBlobs{}, &fakeExtractor{}, &fakeFrameSampler{}, 10, 20)

	require.NoError(t, sc.Process(context.Background(), upload.ID))
	assert.False(t, store.markedProcessing)
}

func TestScanner_NoTargetEmbedding(t *testing.T) {
	upload := queuedUpload(0.85)
	store := &fakeScanStore{upload: upload, target: make([]float32, 512)}
	sc := NewScanner(store, &fakeBlobs{}, &fakeExtractor{}, &fakeFrameSampler{}, 10, 20)

	err := sc.Process(context.Background(), upload.ID)

	require.Error(t, err)
	require.NotNil(t, store.failedMsg)
	assert.Contains(t, *store.failedMsg, "no usable face embedding")
}

func TestScanner_ValidationFailureRecorded(t *testing.T) {
	upload := queuedUpload(0.85)
	store := &fakeScanStore{upload: upload, target: []float32{1, 0, 0}}
	sampler := &fakeFrameSampler{validateErr: &ValidationError{Reason: "video too long: 45 minutes, max 30"}}
	sc := NewScanner(store, &fakeBlobs{}, &fakeExtractor{}, sampler, 10, 20)

	err := sc.Process(context.Background(), upload.ID)

	require.Error(t, err)
	require.NotNil(t, store.failedMsg)
	assert.Contains(t, *store.failedMsg, "video too long")
}

func TestScanner_FailureMessageBounded(t *testing.T) {
	upload := queuedUpload(0.85)
	store := &fakeScanStore{upload: upload, target: []float32{1, 0, 0}}
	sampler := &fakeFrameSampler{validateErr: errors.New(strings.Repeat("x", 2000))}
	sc := NewScanner(store, &fakeBlobs{}, &fakeExtractor{}, sampler, 10, 20)

	err := sc.Process(context.Background(), upload.ID)

	require.Error(t, err)
	require.NotNil(t, store.failedMsg)
	assert.LessOrEqual(t, len(*store.failedMsg), 500)
}

func TestScanner_DetectionsAndProgress(t *testing.T) {
	upload := queuedUpload(0.85)
	target := []float32{1, 0, 0}
	store := &fakeScanStore{upload: upload, target: target}

	// One matching face at frame 7 and one non-matching at frame 12.
	extractor := &fakeExtractor{facesAt: map[int][]vision.Face{
		7:  {{Embedding: []float32{0.99, 0.1, 0}, Region: image.Rect(10, 10, 40, 40)}},
		12: {{Embedding: []float32{0, 1, 0}, Region: image.Rect(10, 10, 40, 40)}},
	}}
	sampler := &fakeFrameSampler{timestamps: timestampsSeq(25)}
	blobs := &fakeBlobs{}
	sc := NewScanner(store, blobs, extractor, sampler, 10, 20)

	var events []models.VideoDetection
	sc.OnDetection = func(ctx context.Context, det models.VideoDetection) {
		events = append(events, det)
	}

	require.NoError(t, sc.Process(context.Background(), upload.ID))

	assert.True(t, store.markedProcessing)
	assert.Equal(t, 25, store.totalFrames)

	// Flushes at frames 10 and 20, plus the final flush.
	require.Equal(t, [][2]int{{10, 1}, {20, 1}, {25, 1}}, store.progressCalls)

	require.NotNil(t, store.completed)
	assert.Equal(t, [2]int{25, 1}, *store.completed)

	require.Len(t, store.saved, 1)
	det := store.saved[0]
	assert.Equal(t, upload.ID, det.VideoID)
	assert.Equal(t, upload.CaseID, det.CaseID)
	assert.Equal(t, 7.0, det.TimestampSeconds)
	assert.Equal(t, 7, det.FrameNumber)
	assert.Greater(t, det.Confidence, 99.0)

	// The crop was stored and linked.
	require.NotEmpty(t, det.CropKey)
	assert.Contains(t, blobs.puts, det.CropKey)

	require.Len(t, events, 1)
	assert.Equal(t, det.ID, events[0].ID)
}

func TestScanner_DimensionMismatchSkipped(t *testing.T) {
	upload := queuedUpload(2.0) // would accept anything comparable
	store := &fakeScanStore{upload: upload, target: []float32{1, 0, 0}}

	extractor := &fakeExtractor{facesAt: map[int][]vision.Face{
		0: {{Embedding: []float32{1, 0}, Region: image.Rect(0, 0, 30, 30)}},
	}}
	sampler := &fakeFrameSampler{timestamps: timestampsSeq(1)}
	sc := NewScanner(store, &fakeBlobs{}, extractor, sampler, 10, 20)

	require.NoError(t, sc.Process(context.Background(), upload.ID))

	assert.Empty(t, store.saved)
	require.NotNil(t, store.completed)
	assert.Equal(t, [2]int{1, 0}, *store.completed)
}

func TestScanner_ThresholdGate(t *testing.T) {
	upload := queuedUpload(0.3) // strict
	store := &fakeScanStore{upload: upload, target: []float32{1, 0, 0}}

	// Distance ~0.5: within the default video threshold but not this one.
	extractor := &fakeExtractor{facesAt: map[int][]vision.Face{
		0: {{Embedding: []float32{0.5, 0.5, 0.7}, Region: image.Rect(0, 0, 30, 30)}},
	}}
	sampler := &fakeFrameSampler{timestamps: timestampsSeq(1)}
	sc := NewScanner(store, &fakeBlobs{}, extractor, sampler, 10, 20)

	require.NoError(t, sc.Process(context.Background(), upload.ID))
	assert.Empty(t, store.saved)
}

func TestScanner_CancelledContext(t *testing.T) {
	upload := queuedUpload(0.85)
	store := &fakeScanStore{upload: upload, target: []float32{1, 0, 0}}
	sampler := &fakeFrameSampler{timestamps: timestampsSeq(100)}
	sc := NewScanner(store, &fakeBlobs{}, &fakeExtractor{}, sampler, 10, 20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sc.Process(ctx, upload.ID)

	require.Error(t, err)
	require.NotNil(t, store.failedMsg)
	assert.Nil(t, store.completed)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 500))
	assert.Len(t, truncate(strings.Repeat("y", 600), 500), 500)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 42.0, round2(42.0000001))
	assert.Equal(t, 1.23, round2(1.2345))
}
