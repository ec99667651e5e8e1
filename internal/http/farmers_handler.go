package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/repository"
)

// FarmersHandler 农户管理 API
type FarmersHandler struct {
	farmers repository.FarmersRepo
	logger  *zap.Logger
}

// NewFarmersHandler 创建农户 Handler
func NewFarmersHandler(farmers repository.FarmersRepo, logger *zap.Logger) *FarmersHandler {
	return &FarmersHandler{farmers: farmers, logger: logger}
}

// List 列出农户（支持模糊搜索）
// GET /api/farmers?search=&skip=&limit=
func (h *FarmersHandler) List(w http.ResponseWriter, r *http.Request) {
	skip := parseIntQuery(r, "skip", 0)
	limit := parseIntQuery(r, "limit", 100)
	search := r.URL.Query().Get("search")

	farmers, err := h.farmers.ListFarmers(r.Context(), search, skip, limit)
	if err != nil {
		h.logger.Error("Failed to list farmers", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list farmers")
		return
	}

	payload := make([]farmerPayload, 0, len(farmers))
	for _, f := range farmers {
		payload = append(payload, toFarmerPayload(f))
	}
	writeJSON(w, http.StatusOK, payload)
}

// Get 按 ID 获取农户
// GET /api/farmers/{id}
func (h *FarmersHandler) Get(w http.ResponseWriter, r *http.Request, farmerID string) {
	farmer, err := h.farmers.GetFarmer(r.Context(), farmerID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Farmer not found")
		return
	}
	writeJSON(w, http.StatusOK, toFarmerPayload(farmer))
}

// GetByExternalID 按外部标识（电话号码）获取农户
// GET /api/farmers/external/{external_id}
func (h *FarmersHandler) GetByExternalID(w http.ResponseWriter, r *http.Request, externalID string) {
	farmer, err := h.farmers.GetFarmerByExternalID(r.Context(), externalID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Farmer not found")
		return
	}
	writeJSON(w, http.StatusOK, toFarmerPayload(farmer))
}

type farmerCreateRequest struct {
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// Create 新建农户
// POST /api/farmers
func (h *FarmersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req farmerCreateRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ExternalID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "external_id and name are required")
		return
	}

	if existing, err := h.farmers.GetFarmerByExternalID(r.Context(), req.ExternalID); err == nil && existing != nil {
		writeError(w, http.StatusBadRequest, "Farmer with external_id '"+req.ExternalID+"' already exists")
		return
	}

	farmer := &domain.Farmer{
		FarmerID:    uuid.New().String(),
		ExternalID:  req.ExternalID,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := h.farmers.CreateFarmer(r.Context(), farmer); err != nil {
		h.logger.Error("Failed to create farmer", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create farmer")
		return
	}
	writeJSON(w, http.StatusCreated, toFarmerPayload(farmer))
}

type farmerUpdateRequest struct {
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phone_number"`
}

// Update 更新农户（external_id 不可变）
// PUT /api/farmers/{id}
func (h *FarmersHandler) Update(w http.ResponseWriter, r *http.Request, farmerID string) {
	farmer, err := h.farmers.GetFarmer(r.Context(), farmerID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Farmer not found")
		return
	}

	var req farmerUpdateRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name != nil {
		farmer.Name = strings.TrimSpace(*req.Name)
	}
	if req.PhoneNumber != nil {
		farmer.PhoneNumber = *req.PhoneNumber
	}

	if err := h.farmers.UpdateFarmer(r.Context(), farmer); err != nil {
		h.logger.Error("Failed to update farmer", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update farmer")
		return
	}
	writeJSON(w, http.StatusOK, toFarmerPayload(farmer))
}

// Delete 删除农户及其全部记录
// DELETE /api/farmers/{id}
func (h *FarmersHandler) Delete(w http.ResponseWriter, r *http.Request, farmerID string) {
	if err := h.farmers.DeleteFarmer(r.Context(), farmerID); err != nil {
		writeError(w, http.StatusNotFound, "Farmer not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
