package dto

import "github.com/google/uuid"

// CreateSightingRequest is the multipart form for reporting a sighting.
type CreateSightingRequest struct {
	Location   string `form:"location" binding:"required"`
	Mobile     string `form:"mobile" binding:"required"`
	Email      string `form:"email"`
	BirthMarks string `form:"birth_marks"`
}

type SightingResponse struct {
	ID         uuid.UUID `json:"id"`
	Location   string    `json:"location"`
	Mobile     string    `json:"mobile"`
	Email      string    `json:"email,omitempty"`
	BirthMarks string    `json:"birth_marks,omitempty"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  string    `json:"created_at"`
}

type SightingListResponse struct {
	Sightings []SightingResponse `json:"sightings"`
	Total     int                `json:"total"`
}
