package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/reunite/internal/match"
	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/storage"
	"github.com/your-org/reunite/internal/vision"
	"github.com/your-org/reunite/pkg/dto"
)

type CaseHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
	// EmbedFn extracts a face embedding from image bytes.
	// Set this after the vision engine is initialized.
	EmbedFn func(imageData []byte) ([]float32, error)
	// MatchFn triggers a background incremental match for a new record.
	MatchFn func(id uuid.UUID, kind match.Kind)
}

func NewCaseHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *CaseHandler {
	return &CaseHandler{db: db, minio: minio}
}

// extractEmbedding runs face extraction on the uploaded photo. When the
// engine never came up the record gets the zero placeholder and stays out
// of matching; with a working engine a photo with no usable face is an
// error the caller must reject.
func extractEmbedding(embedFn func([]byte) ([]float32, error), imageData []byte) ([]float32, error) {
	if embedFn == nil {
		slog.Warn("face engine unavailable, storing placeholder embedding")
		return make([]float32, models.EmbeddingDim), nil
	}
	return embedFn(imageData)
}

// writeEmbeddingError maps extraction failures: no detectable face is a 422,
// an undecodable upload is a 400.
func writeEmbeddingError(c *gin.Context, err error) {
	if errors.Is(err, vision.ErrNoFace) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": vision.ErrNoFace.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
}

func (h *CaseHandler) Create(c *gin.Context) {
	var req dto.CreateCaseRequest
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

	cs := &models.Case{
		SubmittedBy:       c.GetString("api_client"),
		Name:              req.Name,
		FatherName:        req.FatherName,
		Age:               req.Age,
		ComplainantName:   req.ComplainantName,
		ComplainantMobile: req.ComplainantMobile,
		LastSeen:          req.LastSeen,
		Address:           req.Address,
		BirthMarks:        req.BirthMarks,
		Embedding:         embedding,
	}

	cs.PhotoKey = "cases/" + uuid.New().String() + "_" + header.Filename
	if err := h.minio.PutObject(c.Request.Context(), cs.PhotoKey, imageData, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store photo failed"})
		return
	}

	if err := h.db.CreateCase(c.Request.Context(), cs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.MatchFn != nil && !match.IsZero(cs.Embedding) {
		h.MatchFn(cs.ID, match.KindCase)
	}

	c.JSON(http.StatusCreated, caseToResponse(cs))
}

func (h *CaseHandler) List(c *gin.Context) {
	var status *models.CaseStatus
	if s := c.Query("status"); s != "" {
		cs := models.CaseStatus(s)
		if cs != models.CaseStatusNotFound && cs != models.CaseStatusFound {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &cs
	}

	cases, err := h.db.ListCases(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.CaseResponse, 0, len(cases))
	for i := range cases {
		resp = append(resp, caseToResponse(&cases[i]))
	}

	c.JSON(http.StatusOK, dto.CaseListResponse{Cases: resp, Total: len(resp)})
}

func (h *CaseHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	cs, err := h.db.GetCase(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}

	c.JSON(http.StatusOK, caseToResponse(cs))
}

func (h *CaseHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	cs, err := h.db.GetCase(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}

	if err := h.db.DeleteCase(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cs.PhotoKey != "" {
		if err := h.minio.DeleteObject(c.Request.Context(), cs.PhotoKey); err != nil {
			slog.Warn("delete case photo", "key", cs.PhotoKey, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Photo streams the case photo from object storage.
func (h *CaseHandler) Photo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	cs, err := h.db.GetCase(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cs == nil || cs.PhotoKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	obj, err := h.minio.GetObject(c.Request.Context(), cs.PhotoKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer obj.Close()

	c.Header("Content-Type", "image/jpeg")
	_, _ = io.Copy(c.Writer, obj)
}

func caseToResponse(cs *models.Case) dto.CaseResponse {
	r := dto.CaseResponse{
		ID:                cs.ID,
		Name:              cs.Name,
		FatherName:        cs.FatherName,
		Age:               cs.Age,
		ComplainantName:   cs.ComplainantName,
		ComplainantMobile: cs.ComplainantMobile,
		LastSeen:          cs.LastSeen,
		Address:           cs.Address,
		BirthMarks:        cs.BirthMarks,
		Status:            string(cs.Status),
		MatchedWith:       cs.MatchedWith,
		CreatedAt:         cs.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:         cs.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if cs.PhotoKey != "" {
		r.PhotoURL = "/v1/cases/" + cs.ID.String() + "/photo"
	}
	return r
}
