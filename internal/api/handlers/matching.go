package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/reunite/internal/match"
	"github.com/your-org/reunite/internal/storage"
	"github.com/your-org/reunite/pkg/dto"
)

type MatchingHandler struct {
	db        *storage.PostgresStore
	svc       *match.Service
	threshold float64
	// EmbedFn extracts a face embedding from image bytes, for similarity search.
	EmbedFn func(imageData []byte) ([]float32, error)
}

func NewMatchingHandler(db *storage.PostgresStore, svc *match.Service, threshold float64) *MatchingHandler {
	return &MatchingHandler{db: db, svc: svc, threshold: threshold}
}

func (h *MatchingHandler) resolveThreshold(override *float64) float64 {
	if override != nil && *override > 0 && *override <= 1 {
		return *override
	}
	return h.threshold
}

// RunAll matches every pending sighting against every open case.
func (h *MatchingHandler) RunAll(c *gin.Context) {
	var req dto.MatchAllRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := h.svc.MatchAll(c.Request.Context(), h.resolveThreshold(req.Threshold))
	status := http.StatusOK
	if !report.Status {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// MatchCase matches one case against all pending sightings.
func (h *MatchingHandler) MatchCase(c *gin.Context) {
	h.matchOne(c, match.KindCase)
}

// MatchSighting matches one sighting against all open cases.
func (h *MatchingHandler) MatchSighting(c *gin.Context) {
	h.matchOne(c, match.KindSighting)
}

func (h *MatchingHandler) matchOne(c *gin.Context, kind match.Kind) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req dto.MatchOneRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := h.svc.MatchOne(c.Request.Context(), id, kind, h.resolveThreshold(req.Threshold))
	status := http.StatusOK
	if !report.Status {
		switch report.Message {
		case "record not found":
			status = http.StatusNotFound
		case "face engine not available":
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusUnprocessableEntity
		}
	}
	c.JSON(status, report)
}

// Confirm marks a case/sighting pair as a verified reunion.
func (h *MatchingHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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
	sg, err := h.db.GetSighting(c.Request.Context(), req.SightingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sighting not found"})
		return
	}

	if err := h.db.ConfirmMatch(c.Request.Context(), req.CaseID, req.SightingID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

// Recent lists recently linked case/sighting pairs.
func (h *MatchingHandler) Recent(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	pairs, err := h.db.RecentMatches(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": pairs, "total": len(pairs)})
}

// Stats summarises both populations for the dashboard.
func (h *MatchingHandler) Stats(c *gin.Context) {
	st, err := h.db.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// Similar performs an indexed nearest-neighbour search over open cases
// using an uploaded probe photo.
func (h *MatchingHandler) Similar(c *gin.Context) {
	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read photo failed"})
		return
	}

	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face engine not available"})
		return
	}

	embedding, err := h.EmbedFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	minScore := 1 - h.threshold
	matches, err := h.db.SimilarCases(c.Request.Context(), embedding, minScore, 5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := make([]dto.SimilarCaseResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, dto.SimilarCaseResult{
			CaseID: m.CaseID,
			Name:   m.Name,
			Score:  m.Score,
		})
	}

	c.JSON(http.StatusOK, dto.SimilarSearchResponse{Matches: results, Total: len(results)})
}
