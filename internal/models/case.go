package models

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDim is the length of stored face vectors. Records whose photo
// yielded no usable face carry an all-zero vector of this length as a
// placeholder; matching skips them.
const EmbeddingDim = 512

type CaseStatus string

const (
	CaseStatusNotFound CaseStatus = "not_found"
	CaseStatusFound    CaseStatus = "found"
)

type SightingStatus string

const (
	SightingStatusUnderReview SightingStatus = "under_review"
	SightingStatusFound       SightingStatus = "found"
)

// Case is a registered missing-person record. The matching core only reads
// its embedding and status and writes MatchedWith; everything else belongs
// to the case-management side.
type Case struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	SubmittedBy       string     `json:"submitted_by" db:"submitted_by"`
	Name              string     `json:"name" db:"name"`
	FatherName        string     `json:"father_name,omitempty" db:"father_name"`
	Age               string     `json:"age,omitempty" db:"age"`
	ComplainantName   string     `json:"complainant_name,omitempty" db:"complainant_name"`
	ComplainantMobile string     `json:"complainant_mobile,omitempty" db:"complainant_mobile"`
	LastSeen          string     `json:"last_seen,omitempty" db:"last_seen"`
	Address           string     `json:"address,omitempty" db:"address"`
	BirthMarks        string     `json:"birth_marks,omitempty" db:"birth_marks"`
	Embedding         []float32  `json:"-" db:"embedding"`
	PhotoKey          string     `json:"photo_key,omitempty" db:"photo_key"`
	Status            CaseStatus `json:"status" db:"status"`
	MatchedWith       *uuid.UUID `json:"matched_with,omitempty" db:"matched_with"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Sighting is a public submission of a possible sighting of a missing person.
type Sighting struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	SubmittedBy string         `json:"submitted_by,omitempty" db:"submitted_by"`
	Location    string         `json:"location,omitempty" db:"location"`
	Mobile      string         `json:"mobile" db:"mobile"`
	Email       string         `json:"email,omitempty" db:"email"`
	BirthMarks  string         `json:"birth_marks,omitempty" db:"birth_marks"`
	Embedding   []float32      `json:"-" db:"embedding"`
	PhotoKey    string         `json:"photo_key,omitempty" db:"photo_key"`
	Status      SightingStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}
