package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
)

func newExtractRouter(extractor *fakeExtractor) *Router {
	router := NewRouter(zap.NewNop())
	router.RegisterExtractRoutes(NewExtractHandler(extractor, zap.NewNop()))
	return router
}

func TestExtractAPIReturnsCandidates(t *testing.T) {
	router := newExtractRouter(&fakeExtractor{candidates: []domain.Candidate{{
		RecordType: domain.RecordTypeChemicalSpray,
		OccurredAt: "2026-08-20",
		Data:       domain.RecordData{"chemical_name": "BioGuard"},
		Confidence: 0.9,
	}}})

	body, _ := json.Marshal(map[string]string{"transcript": "sprayed BioGuard"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var resp extractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "chemical_spray", resp.Records[0].RecordType)
}

func TestExtractAPIFailureReportsError(t *testing.T) {
	router := newExtractRouter(&fakeExtractor{err: errors.New("model overloaded")})

	body, _ := json.Marshal(map[string]string{"transcript": "hello"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var resp extractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "model overloaded")
}

func TestExtractAPIRequiresTranscript(t *testing.T) {
	router := newExtractRouter(&fakeExtractor{})

	body, _ := json.Marshal(map[string]string{"farmer_id": "F-001"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
