package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/reunite/internal/match"
	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/storage"
	"github.com/your-org/reunite/pkg/dto"
)

type SightingHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
	// EmbedFn extracts a face embedding from image bytes.
	EmbedFn func(imageData []byte) ([]float32, error)
	// MatchFn triggers a background incremental match for a new record.
	MatchFn func(id uuid.UUID, kind match.Kind)
}

func NewSightingHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *SightingHandler {
	return &SightingHandler{db: db, minio: minio}
}

func (h *SightingHandler) Create(c *gin.Context) {
	var req dto.CreateSightingRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, header, err := c.Request.FormFile("photo")
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

	embedding, err := extractEmbedding(h.EmbedFn, imageData)
	if err != nil {
		writeEmbeddingError(c, err)
		return
	}

	sg := &models.Sighting{
		SubmittedBy: c.GetString("api_client"),
		Location:    req.Location,
		Mobile:      req.Mobile,
		Email:       req.Email,
		BirthMarks:  req.BirthMarks,
		Embedding:   embedding,
	}

	sg.PhotoKey = "sightings/" + uuid.New().String() + "_" + header.Filename
	if err := h.minio.PutObject(c.Request.Context(), sg.PhotoKey, imageData, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store photo failed"})
		return
	}

	if err := h.db.CreateSighting(c.Request.Context(), sg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.MatchFn != nil && !match.IsZero(sg.Embedding) {
		h.MatchFn(sg.ID, match.KindSighting)
	}

	c.JSON(http.StatusCreated, sightingToResponse(sg))
}

func (h *SightingHandler) List(c *gin.Context) {
	var status *models.SightingStatus
	if s := c.Query("status"); s != "" {
		ss := models.SightingStatus(s)
		if ss != models.SightingStatusUnderReview && ss != models.SightingStatusFound {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &ss
	}

	sightings, err := h.db.ListSightings(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.SightingResponse, 0, len(sightings))
	for i := range sightings {
		resp = append(resp, sightingToResponse(&sightings[i]))
	}

	c.JSON(http.StatusOK, dto.SightingListResponse{Sightings: resp, Total: len(resp)})
}

func (h *SightingHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sighting id"})
		return
	}

	sg, err := h.db.GetSighting(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sighting not found"})
		return
	}

	c.JSON(http.StatusOK, sightingToResponse(sg))
}

func (h *SightingHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sighting id"})
		return
	}

	sg, err := h.db.GetSighting(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sighting not found"})
		return
	}

	if err := h.db.DeleteSighting(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sg.PhotoKey != "" {
		if err := h.minio.DeleteObject(c.Request.Context(), sg.PhotoKey); err != nil {
			slog.Warn("delete sighting photo", "key", sg.PhotoKey, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Photo streams the sighting photo from object storage.
func (h *SightingHandler) Photo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sighting id"})
		return
	}

	sg, err := h.db.GetSighting(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sg == nil || sg.PhotoKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	obj, err := h.minio.GetObject(c.Request.Context(), sg.PhotoKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer obj.Close()

	c.Header("Content-Type", "image/jpeg")
	_, _ = io.Copy(c.Writer, obj)
}

func sightingToResponse(sg *models.Sighting) dto.SightingResponse {
	r := dto.SightingResponse{
		ID:         sg.ID,
		Location:   sg.Location,
		Mobile:     sg.Mobile,
		Email:      sg.Email,
		BirthMarks: sg.BirthMarks,
		Status:     string(sg.Status),
		CreatedAt:  sg.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if sg.PhotoKey != "" {
		r.PhotoURL = "/v1/sightings/" + sg.ID.String() + "/photo"
	}
	return r
}
