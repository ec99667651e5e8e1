package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/reconciler"
)

// ExtractHandler 手工提取端点（不落库，用于调试提取效果）
type ExtractHandler struct {
	extractor reconciler.Extractor
	logger    *zap.Logger
}

// NewExtractHandler 创建提取 Handler
func NewExtractHandler(extractor reconciler.Extractor, logger *zap.Logger) *ExtractHandler {
	return &ExtractHandler{extractor: extractor, logger: logger}
}

type extractRequest struct {
	Transcript string `json:"transcript"`
	FarmerID   string `json:"farmer_id"`
	FarmerName string `json:"farmer_name"`
	InputMode  string `json:"input_mode"`
}

type extractCandidate struct {
	RecordType    string            `json:"record_type"`
	OccurredAt    string            `json:"occurred_at,omitempty"`
	Data          domain.RecordData `json:"data"`
	Confidence    float64           `json:"confidence"`
	MissingFields []string          `json:"missing_fields"`
	Continuation  bool              `json:"continuation"`
}

type extractResponse struct {
	Success bool               `json:"success"`
	Records []extractCandidate `json:"records"`
	Error   string             `json:"error,omitempty"`
}

// Extract 提交一段文本，返回结构化候选记录
// POST /api/extract
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	if req.InputMode == "" {
		req.InputMode = "text"
	}

	candidates, err := h.extractor.Extract(r.Context(), reconciler.ExtractionInput{
		Transcript:       req.Transcript,
		FarmerExternalID: req.FarmerID,
		FarmerName:       req.FarmerName,
		InputMode:        req.InputMode,
		CurrentDate:      time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("Manual extraction failed", zap.Error(err))
		writeJSON(w, http.StatusOK, extractResponse{Success: false, Records: []extractCandidate{}, Error: err.Error()})
		return
	}

	out := make([]extractCandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, extractCandidate{
			RecordType:    string(c.RecordType),
			OccurredAt:    c.OccurredAt,
			Data:          c.Data,
			Confidence:    c.Confidence,
			MissingFields: c.MissingFields,
			Continuation:  c.Continuation,
		})
	}
	writeJSON(w, http.StatusOK, extractResponse{Success: true, Records: out})
}
