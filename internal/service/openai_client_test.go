package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/reconciler"
)

func TestParseCandidatesWrapperObject(t *testing.T) {
	content := `{"records": [{
		"record_type": "chemical_spray",
		"occurred_at": "2026-08-20",
		"data": {"chemical_name": "BioGuard"},
		"source": {"channel": "whatsapp", "input_mode": "text", "language": "en"},
		"quality": {"confidence": 0.9, "missing_fields": ["dosage"], "notes": null},
		"continuation": false
	}]}`

	candidates := parseCandidates(content, true)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, domain.RecordTypeChemicalSpray, c.RecordType)
	assert.Equal(t, "2026-08-20", c.OccurredAt)
	assert.Equal(t, "BioGuard", c.Data["chemical_name"])
	assert.Equal(t, 0.9, c.Confidence)
	assert.Equal(t, "en", c.Language)
	assert.False(t, c.Continuation, "explicit continuation signal wins over pending context")
}

func TestParseCandidatesBareArray(t *testing.T) {
	content := `[{"record_type": "irrigation", "data": {"crop": "maize"}}]`
	candidates := parseCandidates(content, false)
	require.Len(t, candidates, 1)
	assert.Equal(t, domain.RecordTypeIrrigation, candidates[0].RecordType)
}

func TestParseCandidatesSingleObject(t *testing.T) {
	content := `{"record_type": "fertilizer_application", "data": {"fertilizer_name": "NPK"}}`
	candidates := parseCandidates(content, false)
	require.Len(t, candidates, 1)
	assert.Equal(t, domain.RecordTypeFertilizerApplication, candidates[0].RecordType)
}

func TestParseCandidatesContinuationDefaultsToPending(t *testing.T) {
	content := `{"records": [{"record_type": "chemical_spray", "data": {"dosage": "500ml"}}]}`

	withPending := parseCandidates(content, true)
	require.Len(t, withPending, 1)
	assert.True(t, withPending[0].Continuation)

	withoutPending := parseCandidates(content, false)
	require.Len(t, withoutPending, 1)
	assert.False(t, withoutPending[0].Continuation)
}

func TestParseCandidatesUnknownTypeCoerced(t *testing.T) {
	content := `{"records": [{"record_type": "made_up_type", "data": {}}]}`
	candidates := parseCandidates(content, false)
	require.Len(t, candidates, 1)
	assert.Equal(t, domain.RecordTypeUnknown, candidates[0].RecordType)
}

func TestParseCandidatesGarbageReturnsEmpty(t *testing.T) {
	assert.Empty(t, parseCandidates("not json at all", false))
	assert.Empty(t, parseCandidates("", false))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, clampConfidence(-0.5))
	assert.Equal(t, 1.0, clampConfidence(1.5))
	assert.Equal(t, 0.7, clampConfidence(0.7))
}

func TestExtractSendsPendingContext(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": `{"records": [{"record_type": "chemical_spray", "data": {"dosage": "500ml"}, "continuation": true}]}`,
				},
			}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-key", zap.NewNop())
	candidates, err := client.Extract(context.Background(), reconciler.ExtractionInput{
		Transcript:       "500ml",
		FarmerExternalID: "F-001",
		FarmerName:       "Amina",
		InputMode:        "text",
		CurrentDate:      time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
		Pending: &reconciler.PendingContext{
			RecordType:    domain.RecordTypeChemicalSpray,
			Data:          domain.RecordData{"chemical_name": "BioGuard"},
			MissingFields: []string{"dosage"},
		},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].Continuation)

	require.Len(t, gotBody.Messages, 2)
	userMsg := gotBody.Messages[1].Content
	assert.Contains(t, userMsg, `existing_record_type: "chemical_spray"`)
	assert.Contains(t, userMsg, "missing_fields: dosage")
	assert.Contains(t, userMsg, `current_date: "2026-08-25"`)
}

func TestExtractAPIErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "auth"},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "bad-key", zap.NewNop())
	_, err := client.Extract(context.Background(), reconciler.ExtractionInput{Transcript: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}
