package dto

import "github.com/google/uuid"

type MatchAllRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
}

type MatchOneRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
}

type ConfirmMatchRequest struct {
	CaseID     uuid.UUID `json:"case_id" binding:"required"`
	SightingID uuid.UUID `json:"sighting_id" binding:"required"`
}

type SimilarSearchResponse struct {
	Matches []SimilarCaseResult `json:"matches"`
	Total   int                 `json:"total"`
}

type SimilarCaseResult struct {
	CaseID uuid.UUID `json:"case_id"`
	Name   string    `json:"name"`
	Score  float32   `json:"score"`
}

// WSEvent is a WebSocket message for real-time match delivery.
type WSEvent struct {
	Type             string     `json:"type"` // sighting_matched, video_detection
	CaseID           uuid.UUID  `json:"case_id"`
	SightingID       *uuid.UUID `json:"sighting_id,omitempty"`
	VideoID          *uuid.UUID `json:"video_id,omitempty"`
	DetectionID      *uuid.UUID `json:"detection_id,omitempty"`
	Confidence       float64    `json:"confidence"`
	TimestampSeconds *float64   `json:"timestamp_seconds,omitempty"`
	OccurredAt       string     `json:"occurred_at"`
}
