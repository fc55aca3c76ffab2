package models

import (
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoStatusQueued     VideoStatus = "queued"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusDone       VideoStatus = "done"
	VideoStatusFailed     VideoStatus = "failed"
)

// Terminal reports whether the status will never change again. A scan task
// redelivered for a terminal upload is dropped, never reprocessed.
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusDone || s == VideoStatusFailed
}

// VideoUpload tracks one surveillance video scanned for a single case.
// Exclusively mutated by the scan orchestrator once queued.
type VideoUpload struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	CaseID          uuid.UUID   `json:"case_id" db:"case_id"`
	Filename        string      `json:"filename" db:"filename"`
	VideoKey        string      `json:"video_key" db:"video_key"`
	Threshold       float64     `json:"confidence_threshold" db:"confidence_threshold"`
	Status          VideoStatus `json:"status" db:"status"`
	TotalFrames     *int        `json:"total_frames,omitempty" db:"total_frames"`
	ProcessedFrames int         `json:"processed_frames" db:"processed_frames"`
	TotalDetections int         `json:"total_detections" db:"total_detections"`
	ErrorMessage    string      `json:"error_message,omitempty" db:"error_message"`
	UploadedAt      time.Time   `json:"uploaded_at" db:"uploaded_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// VideoDetection is one accepted appearance of the target case in a scanned
// video. Immutable once written.
type VideoDetection struct {
	ID               uuid.UUID `json:"id" db:"id"`
	VideoID          uuid.UUID `json:"video_id" db:"video_id"`
	CaseID           uuid.UUID `json:"case_id" db:"case_id"`
	TimestampSeconds float64   `json:"timestamp_seconds" db:"timestamp_seconds"`
	Confidence       float64   `json:"confidence" db:"confidence"`
	CropKey          string    `json:"crop_key" db:"crop_key"`
	FrameNumber      int       `json:"frame_number" db:"frame_number"`
	DetectedAt       time.Time `json:"detected_at" db:"detected_at"`
}

// ScanTask is the message published to NATS for the scanner worker.
type ScanTask struct {
	VideoID uuid.UUID `json:"video_id"`
}

// MatchEvent is published on the events stream whenever a match is accepted,
// either between a case and a sighting or for a single video detection.
type MatchEvent struct {
	Type             string     `json:"type"` // sighting_matched, video_detection
	CaseID           uuid.UUID  `json:"case_id"`
	SightingID       *uuid.UUID `json:"sighting_id,omitempty"`
	VideoID          *uuid.UUID `json:"video_id,omitempty"`
	DetectionID      *uuid.UUID `json:"detection_id,omitempty"`
	Distance         float64    `json:"distance"`
	Confidence       float64    `json:"confidence"`
	TimestampSeconds *float64   `json:"timestamp_seconds,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
}
