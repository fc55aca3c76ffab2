package dto

import "github.com/google/uuid"

// CreateCaseRequest is the multipart form for registering a missing person.
// The photo arrives as a separate file part.
type CreateCaseRequest struct {
	Name              string `form:"name" binding:"required"`
	FatherName        string `form:"father_name"`
	Age               string `form:"age"`
	ComplainantName   string `form:"complainant_name" binding:"required"`
	ComplainantMobile string `form:"complainant_mobile" binding:"required"`
	LastSeen          string `form:"last_seen"`
	Address           string `form:"address"`
	BirthMarks        string `form:"birth_marks"`
}

type CaseResponse struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	FatherName        string     `json:"father_name,omitempty"`
	Age               string     `json:"age,omitempty"`
	ComplainantName   string     `json:"complainant_name"`
	ComplainantMobile string     `json:"complainant_mobile"`
	LastSeen          string     `json:"last_seen,omitempty"`
	Address           string     `json:"address,omitempty"`
	BirthMarks        string     `json:"birth_marks,omitempty"`
	PhotoURL          string     `json:"photo_url,omitempty"`
	Status            string     `json:"status"`
	MatchedWith       *uuid.UUID `json:"matched_with,omitempty"`
	CreatedAt         string     `json:"created_at"`
	UpdatedAt         string     `json:"updated_at"`
}

type CaseListResponse struct {
	Cases []CaseResponse `json:"cases"`
	Total int            `json:"total"`
}
