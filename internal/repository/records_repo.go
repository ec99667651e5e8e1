package repository

import (
	"context"
	"errors"
	"time"

	"github.com/akvo/ai-logbook/internal/domain"
)

// ErrNotFound 查询对象不存在
var ErrNotFound = errors.New("not found")

// RecordFilters 记录查询过滤器
type RecordFilters struct {
	FarmerID      string
	RecordType    domain.RecordType
	NeedsFollowup *bool
	Confirmed     *bool
	DateFrom      *time.Time // 按 occurred_at 过滤
	DateTo        *time.Time
}

// RecordsRepo 记录存储接口
// 使用强类型领域模型，不使用 map[string]any 作为行载体
type RecordsRepo interface {
	CreateRecord(ctx context.Context, record *domain.Record) error
	UpdateRecord(ctx context.Context, record *domain.Record) error
	GetRecord(ctx context.Context, recordID string) (*domain.Record, error)
	DeleteRecord(ctx context.Context, recordID string) error

	// FindPendingByFarmer 返回该农户最近一条进行中记录
	// （confirmed=false 且 needs_followup=true，按创建时间倒序取第一条），
	// 不存在时返回 (nil, nil)
	FindPendingByFarmer(ctx context.Context, farmerID string) (*domain.Record, error)

	ListRecords(ctx context.Context, filters RecordFilters, offset, limit int) ([]*domain.Record, error)
}
