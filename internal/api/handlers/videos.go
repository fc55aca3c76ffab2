package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/queue"
	"github.com/your-org/reunite/internal/storage"
	"github.com/your-org/reunite/internal/video"
	"github.com/your-org/reunite/pkg/dto"
)

type VideoHandler struct {
	db           *storage.PostgresStore
	minio        *storage.MinIOStore
	producer     *queue.Producer
	threshold    float64
	maxFileBytes int64
}

func NewVideoHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer, threshold float64, maxFileBytes int64) *VideoHandler {
	return &VideoHandler{db: db, minio: minio, producer: producer, threshold: threshold, maxFileBytes: maxFileBytes}
}

// Upload accepts a video file for a case, stores it, and enqueues a scan.
// Container-level validation (ffprobe, duration) runs in the scanner; here
// only the extension and size are checked so a bad upload fails fast.
func (h *VideoHandler) Upload(c *gin.Context) {
	var req dto.UploadVideoRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cs, err := h.db.GetCase(c.Request.Context(), req.CaseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file required"})
		return
	}
	defer file.Close()

	if !video.AllowedExtension(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported video format"})
		return
	}
	if header.Size > h.maxFileBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "video file too large"})
		return
	}

	threshold := h.threshold
	if req.Threshold != nil && *req.Threshold > 0 && *req.Threshold <= 1 {
		threshold = *req.Threshold
	}

	videoKey := "videos/" + uuid.New().String() + "_" + header.Filename
	if err := h.minio.PutObjectStream(c.Request.Context(), videoKey, file, header.Size, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store video failed"})
		return
	}

	upload := &models.VideoUpload{
		CaseID:    req.CaseID,
		Filename:  header.Filename,
		VideoKey:  videoKey,
		Threshold: threshold,
	}
	if err := h.db.CreateVideoUpload(c.Request.Context(), upload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.ScanTask{VideoID: upload.ID}
	if err := h.producer.PublishScan(c.Request.Context(), upload.ID.String(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue scan failed"})
		return
	}

	c.JSON(http.StatusAccepted, videoToResponse(upload))
}

// Status returns the processing state of one upload.
func (h *VideoHandler) Status(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	upload, err := h.db.GetVideoUpload(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if upload == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	c.JSON(http.StatusOK, videoToResponse(upload))
}

// ListByCase lists all uploads submitted for a case.
func (h *VideoHandler) ListByCase(c *gin.Context) {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	uploads, err := h.db.ListVideoUploadsByCase(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.VideoStatusResponse, 0, len(uploads))
	for i := range uploads {
		resp = append(resp, videoToResponse(&uploads[i]))
	}

	c.JSON(http.StatusOK, dto.VideoListResponse{Videos: resp, Total: len(resp)})
}

// Detections lists all detections recorded for one upload.
func (h *VideoHandler) Detections(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	upload, err := h.db.GetVideoUpload(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if upload == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	detections, err := h.db.DetectionsByVideo(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detectionListResponse(detections))
}

// CaseDetections lists detections for a case across all its uploads.
func (h *VideoHandler) CaseDetections(c *gin.Context) {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	detections, err := h.db.DetectionsByCase(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detectionListResponse(detections))
}

// Crop streams the saved face crop for a detection.
func (h *VideoHandler) Crop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detection id"})
		return
	}

	detection, err := h.db.GetDetection(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if detection == nil || detection.CropKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "crop not found"})
		return
	}

	obj, err := h.minio.GetObject(c.Request.Context(), detection.CropKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer obj.Close()

	c.Header("Content-Type", "image/jpeg")
	_, _ = io.Copy(c.Writer, obj)
}

func videoToResponse(v *models.VideoUpload) dto.VideoStatusResponse {
	r := dto.VideoStatusResponse{
		ID:              v.ID,
		CaseID:          v.CaseID,
		Filename:        v.Filename,
		Status:          string(v.Status),
		TotalFrames:     v.TotalFrames,
		ProcessedFrames: v.ProcessedFrames,
		TotalDetections: v.TotalDetections,
		ErrorMessage:    v.ErrorMessage,
		UploadedAt:      v.UploadedAt.Format("2006-01-02T15:04:05Z"),
	}
	if v.TotalFrames != nil && *v.TotalFrames > 0 {
		r.Progress = float64(v.ProcessedFrames) / float64(*v.TotalFrames) * 100
	}
	if v.CompletedAt != nil {
		r.CompletedAt = v.CompletedAt.Format("2006-01-02T15:04:05Z")
	}
	return r
}

func detectionListResponse(detections []models.VideoDetection) dto.DetectionListResponse {
	resp := make([]dto.DetectionResponse, 0, len(detections))
	for _, d := range detections {
		r := dto.DetectionResponse{
			ID:               d.ID,
			VideoID:          d.VideoID,
			TimestampSeconds: d.TimestampSeconds,
			Timestamp:        dto.FormatTimestamp(d.TimestampSeconds),
			Confidence:       d.Confidence,
			FrameNumber:      d.FrameNumber,
			DetectedAt:       d.DetectedAt.Format("2006-01-02T15:04:05Z"),
		}
		if d.CropKey != "" {
			r.CropURL = "/v1/detections/" + d.ID.String() + "/crop"
		}
		resp = append(resp, r)
	}
	return dto.DetectionListResponse{Detections: resp, Total: len(resp)}
}
