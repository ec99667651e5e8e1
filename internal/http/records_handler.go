package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/reconciler"
	"github.com/akvo/ai-logbook/internal/repository"
)

// RecordsHandler 记录管理 API
type RecordsHandler struct {
	records repository.RecordsRepo
	farmers repository.FarmersRepo
	logger  *zap.Logger
}

// NewRecordsHandler 创建记录 Handler
func NewRecordsHandler(records repository.RecordsRepo, farmers repository.FarmersRepo, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{records: records, farmers: farmers, logger: logger}
}

func (h *RecordsHandler) filtersFromQuery(r *http.Request) repository.RecordFilters {
	filters := repository.RecordFilters{
		FarmerID:      r.URL.Query().Get("farmer_id"),
		NeedsFollowup: parseBoolQuery(r, "needs_followup"),
		Confirmed:     parseBoolQuery(r, "confirmed"),
	}
	if t := r.URL.Query().Get("record_type"); t != "" {
		filters.RecordType = domain.ParseRecordType(t)
	}
	if s := r.URL.Query().Get("date_from"); s != "" {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			filters.DateFrom = &d
		}
	}
	if s := r.URL.Query().Get("date_to"); s != "" {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			filters.DateTo = &d
		}
	}
	return filters
}

// List 按过滤器列出记录
// GET /api/records?farmer_id=&record_type=&needs_followup=&confirmed=&date_from=&date_to=&skip=&limit=
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	skip := parseIntQuery(r, "skip", 0)
	limit := parseIntQuery(r, "limit", 100)

	records, err := h.records.ListRecords(r.Context(), h.filtersFromQuery(r), skip, limit)
	if err != nil {
		h.logger.Error("Failed to list records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	writeJSON(w, http.StatusOK, toRecordPayloads(records))
}

// ListFollowup 列出待追问记录
// GET /api/records/followup
func (h *RecordsHandler) ListFollowup(w http.ResponseWriter, r *http.Request) {
	skip := parseIntQuery(r, "skip", 0)
	limit := parseIntQuery(r, "limit", 100)

	needsFollowup := true
	filters := repository.RecordFilters{NeedsFollowup: &needsFollowup}
	records, err := h.records.ListRecords(r.Context(), filters, skip, limit)
	if err != nil {
		h.logger.Error("Failed to list followup records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	writeJSON(w, http.StatusOK, toRecordPayloads(records))
}

// Export 导出记录为 Excel
// GET /api/records/export（过滤参数与 List 相同）
func (h *RecordsHandler) Export(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListRecords(r.Context(), h.filtersFromQuery(r), 0, 10000)
	if err != nil {
		h.logger.Error("Failed to export records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export records")
		return
	}

	content, err := GenerateRecordsExport(records)
	if err != nil {
		h.logger.Error("Failed to generate records export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}

	filename := fmt.Sprintf("records_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// Get 按 ID 获取记录
// GET /api/records/{id}
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request, recordID string) {
	record, err := h.records.GetRecord(r.Context(), recordID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	writeJSON(w, http.StatusOK, toRecordPayload(record))
}

type recordCreateRequest struct {
	FarmerID      string            `json:"farmer_id"`
	RecordType    string            `json:"record_type"`
	OccurredAt    string            `json:"occurred_at"`
	Data          domain.RecordData `json:"data"`
	Confidence    float64           `json:"confidence"`
	QualityNotes  string            `json:"quality_notes"`
	RawTranscript string            `json:"raw_transcript"`
}

// Create 手工新建记录（绕过提取，用于后台补录）
// POST /api/records
func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req recordCreateRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FarmerID == "" {
		writeError(w, http.StatusBadRequest, "farmer_id is required")
		return
	}
	if _, err := h.farmers.GetFarmer(r.Context(), req.FarmerID); err != nil {
		writeError(w, http.StatusNotFound, "Farmer not found")
		return
	}

	recordType := domain.ParseRecordType(req.RecordType)
	var occurredAt *time.Time
	if req.OccurredAt != "" {
		if d, err := time.Parse("2006-01-02", req.OccurredAt); err == nil {
			occurredAt = &d
		}
	}
	data := reconciler.Merge(recordType, nil, req.Data)
	missing, needsFollowup := reconciler.Evaluate(recordType, occurredAt, data)

	record := &domain.Record{
		RecordID:        uuid.New().String(),
		FarmerID:        req.FarmerID,
		RecordType:      recordType,
		OccurredAt:      occurredAt,
		Data:            data,
		SourceChannel:   "manual",
		SourceInputMode: "text",
		SourceLanguage:  "unknown",
		Confidence:      req.Confidence,
		MissingFields:   missing,
		NeedsFollowup:   needsFollowup,
		Confirmed:       len(missing) == 0 && recordType != domain.RecordTypeUnknown,
		QualityNotes:    req.QualityNotes,
		RawTranscript:   req.RawTranscript,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.records.CreateRecord(r.Context(), record); err != nil {
		h.logger.Error("Failed to create record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create record")
		return
	}
	writeJSON(w, http.StatusCreated, toRecordPayload(record))
}

type recordUpdateRequest struct {
	OccurredAt   *string            `json:"occurred_at"`
	Data         *domain.RecordData `json:"data"`
	QualityNotes *string            `json:"quality_notes"`
}

// Update 更新记录（字段合并后重新评估完整性，confirmed 只能经由评估闸门翻转）
// PUT /api/records/{id}
func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request, recordID string) {
	record, err := h.records.GetRecord(r.Context(), recordID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}

	var req recordUpdateRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OccurredAt != nil {
		if d, err := time.Parse("2006-01-02", *req.OccurredAt); err == nil {
			record.OccurredAt = &d
		}
	}
	if req.Data != nil {
		record.Data = reconciler.Merge(record.RecordType, record.Data, *req.Data)
	}
	if req.QualityNotes != nil {
		record.QualityNotes = *req.QualityNotes
	}

	missing, needsFollowup := reconciler.Evaluate(record.RecordType, record.OccurredAt, record.Data)
	record.MissingFields = missing
	record.NeedsFollowup = needsFollowup
	record.Confirmed = len(missing) == 0 && record.RecordType != domain.RecordTypeUnknown

	if err := h.records.UpdateRecord(r.Context(), record); err != nil {
		h.logger.Error("Failed to update record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update record")
		return
	}
	writeJSON(w, http.StatusOK, toRecordPayload(record))
}

// Delete 删除记录
// DELETE /api/records/{id}
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request, recordID string) {
	if err := h.records.DeleteRecord(r.Context(), recordID); err != nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
