package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/reunite/internal/match"
	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/vision"
)

func multipartPhotoForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("photo", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func caseForm(t *testing.T) (*bytes.Buffer, string) {
	return multipartPhotoForm(t, map[string]string{
		"name":               "Asha",
		"complainant_name":   "Ravi",
		"complainant_mobile": "9876543210",
	})
}

func postMultipart(h gin.HandlerFunc, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/cases", body)
	c.Request.Header.Set("Content-Type", contentType)
	h(c)
	return rec
}

func TestCreateCase_NoFaceRejected(t *testing.T) {
	h := NewCaseHandler(nil, nil)
	h.EmbedFn = func([]byte) ([]float32, error) { return nil, vision.ErrNoFace }

	body, ct := caseForm(t)
	rec := postMultipart(h.Create, body, ct)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no face detected")
}

func TestCreateCase_UndecodablePhotoRejected(t *testing.T) {
	h := NewCaseHandler(nil, nil)
	h.EmbedFn = func([]byte) ([]float32, error) { return nil, assert.AnError }

	body, ct := caseForm(t)
	rec := postMultipart(h.Create, body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSighting_NoFaceRejected(t *testing.T) {
	h := NewSightingHandler(nil, nil)
	h.EmbedFn = func([]byte) ([]float32, error) { return nil, vision.ErrNoFace }
	h.MatchFn = func(id uuid.UUID, kind match.Kind) { t.Error("matcher must not run") }

	body, ct := multipartPhotoForm(t, map[string]string{
		"location": "Karol Bagh metro",
		"mobile":   "9876543210",
	})
	rec := postMultipart(h.Create, body, ct)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExtractEmbedding_EngineUnavailable(t *testing.T) {
	emb, err := extractEmbedding(nil, []byte("anything"))
	require.NoError(t, err)
	require.Len(t, emb, models.EmbeddingDim)
	assert.True(t, match.IsZero(emb))
}
