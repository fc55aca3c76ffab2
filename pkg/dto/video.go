package dto

import (
	"fmt"

	"github.com/google/uuid"
)

// UploadVideoRequest is the multipart form accompanying a video file.
type UploadVideoRequest struct {
	CaseID    uuid.UUID `form:"case_id" binding:"required"`
	Threshold *float64  `form:"threshold"`
}

type VideoStatusResponse struct {
	ID              uuid.UUID `json:"id"`
	CaseID          uuid.UUID `json:"case_id"`
	Filename        string    `json:"filename"`
	Status          string    `json:"status"`
	TotalFrames     *int      `json:"total_frames,omitempty"`
	ProcessedFrames int       `json:"processed_frames"`
	TotalDetections int       `json:"total_detections"`
	Progress        float64   `json:"progress"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	UploadedAt      string    `json:"uploaded_at"`
	CompletedAt     string    `json:"completed_at,omitempty"`
}

type VideoListResponse struct {
	Videos []VideoStatusResponse `json:"videos"`
	Total  int                   `json:"total"`
}

type DetectionResponse struct {
	ID               uuid.UUID `json:"id"`
	VideoID          uuid.UUID `json:"video_id"`
	TimestampSeconds float64   `json:"timestamp_seconds"`
	Timestamp        string    `json:"timestamp"` // MM:SS for display
	Confidence       float64   `json:"confidence"`
	CropURL          string    `json:"crop_url,omitempty"`
	FrameNumber      int       `json:"frame_number"`
	DetectedAt       string    `json:"detected_at"`
}

type DetectionListResponse struct {
	Detections []DetectionResponse `json:"detections"`
	Total      int                 `json:"total"`
}

// FormatTimestamp renders seconds-into-video as MM:SS.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
