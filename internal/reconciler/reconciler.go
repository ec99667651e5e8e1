package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/repository"
)

// ExtractionInput 一次提取调用的输入
// Pending 非空时提取服务把短回答（如 "50kg"）解释为对缺失字段的补充，
// 而不是一条独立的新活动
type ExtractionInput struct {
	Transcript       string
	FarmerExternalID string
	FarmerName       string
	InputMode        string // text / voice
	CurrentDate      time.Time
	Pending          *PendingContext
}

// PendingContext 进行中记录的上下文，随提取请求下发
type PendingContext struct {
	RecordType    domain.RecordType
	Data          domain.RecordData
	MissingFields []string
	OccurredAt    *time.Time
}

// Extractor 提取服务能力接口（LLM 调用在实现侧，便于用脚本化假实现做单测）
type Extractor interface {
	Extract(ctx context.Context, input ExtractionInput) ([]domain.Candidate, error)
}

// Notifier 记录确认事件的下游通知（可选依赖）
type Notifier interface {
	RecordConfirmed(ctx context.Context, record *domain.Record) error
}

// Outcome 一次消息处理触碰到的记录状态
type Outcome struct {
	Records      []*domain.Record // 本轮创建或更新的记录（审计记录除外）
	AuditRecords []*domain.Record // 零字段 unknown 候选，只入库审计，不进入会话线程

	UpdatedPending   bool // 本轮合并进了进行中记录
	ExtractionFailed bool // 提取失败或无候选，状态未变更，需要通用重问
}

// Primary 本轮的主记录（回复内容据此生成）
func (o *Outcome) Primary() *domain.Record {
	if len(o.Records) == 0 {
		return nil
	}
	return o.Records[0]
}

// AllConfirmed 本轮触碰的记录是否全部已确认
func (o *Outcome) AllConfirmed() bool {
	if len(o.Records) == 0 {
		return false
	}
	for _, r := range o.Records {
		if !r.Confirmed {
			return false
		}
	}
	return true
}

// Reconciler 会话状态机：对每条入站消息决定「新建 vs 续写」，
// 调用合并与完整性评估，写回存储并给出回复所需的最终状态。
//
// 状态流转（按农户）：NoPending -> Pending(record) -> Confirmed（终态，
// 下一条消息重新开始 NoPending -> Pending，与已确认记录无关）。
type Reconciler struct {
	records   repository.RecordsRepo
	extractor Extractor
	notifier  Notifier // 可为 nil
	logger    *zap.Logger

	// 同一农户的消息必须串行处理，避免两次并发合并丢失更新；
	// 不同农户完全独立
	farmerLocks sync.Map // farmerID -> *sync.Mutex
}

// NewReconciler 创建会话状态机
func NewReconciler(records repository.RecordsRepo, extractor Extractor, notifier Notifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		records:   records,
		extractor: extractor,
		notifier:  notifier,
		logger:    logger,
	}
}

func (r *Reconciler) lockFarmer(farmerID string) func() {
	v, _ := r.farmerLocks.LoadOrStore(farmerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Process 处理一条已去重的入站消息
//
// 提取失败时进行中记录保持不动、不写新记录，Outcome.ExtractionFailed 置位，
// 错误在此恢复，不向上传播。存储写失败则作为瞬时错误返回，
// 状态机不会在写未确认的情况下推进 confirmed/needs_followup。
func (r *Reconciler) Process(ctx context.Context, farmer *domain.Farmer, message *domain.Message, transcript, inputMode string, now time.Time) (*Outcome, error) {
	unlock := r.lockFarmer(farmer.FarmerID)
	defer unlock()

	pending, err := r.records.FindPendingByFarmer(ctx, farmer.FarmerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending record: %w", err)
	}

	input := ExtractionInput{
		Transcript:       transcript,
		FarmerExternalID: farmer.ExternalID,
		FarmerName:       farmer.Name,
		InputMode:        inputMode,
		CurrentDate:      now,
	}
	if pending != nil {
		input.Pending = &PendingContext{
			RecordType:    pending.RecordType,
			Data:          pending.Data,
			MissingFields: pending.MissingFields,
			OccurredAt:    pending.OccurredAt,
		}
		r.logger.Info("Found pending record, extraction will run with context",
			zap.String("record_id", pending.RecordID),
			zap.String("record_type", string(pending.RecordType)),
		)
	}

	candidates, err := r.extractor.Extract(ctx, input)
	if err != nil {
		r.logger.Error("Extraction failed, leaving state untouched",
			zap.String("farmer_id", farmer.FarmerID),
			zap.Error(err),
		)
		return &Outcome{ExtractionFailed: true}, nil
	}
	if len(candidates) == 0 {
		r.logger.Warn("Extraction returned no candidates",
			zap.String("farmer_id", farmer.FarmerID),
		)
		return &Outcome{ExtractionFailed: true}, nil
	}

	outcome := &Outcome{}
	for _, cand := range candidates {
		if cand.RecordType == domain.RecordTypeUnknown && len(cand.Data) == 0 {
			audit, err := r.createRecord(ctx, farmer, message, cand, transcript, inputMode, now)
			if err != nil {
				return nil, err
			}
			outcome.AuditRecords = append(outcome.AuditRecords, audit)
			continue
		}

		if pending != nil && cand.RecordType == pending.RecordType && cand.Continuation {
			updated, err := r.mergeIntoPending(ctx, pending, cand, transcript)
			if err != nil {
				return nil, err
			}
			outcome.Records = append(outcome.Records, updated)
			outcome.UpdatedPending = true
			if updated.Confirmed {
				// 已确认的记录归档，批次内后续候选不再续写它
				pending = nil
			} else {
				pending = updated
			}
			continue
		}

		created, err := r.createRecord(ctx, farmer, message, cand, transcript, inputMode, now)
		if err != nil {
			return nil, err
		}
		outcome.Records = append(outcome.Records, created)
	}

	return outcome, nil
}

// mergeIntoPending 把续写候选合并进进行中记录并重新评估完整性
func (r *Reconciler) mergeIntoPending(ctx context.Context, pending *domain.Record, cand domain.Candidate, transcript string) (*domain.Record, error) {
	updated := *pending
	updated.Data = Merge(pending.RecordType, pending.Data, cand.Data)

	if occurredAt := parseOccurredAt(cand.OccurredAt); occurredAt != nil {
		updated.OccurredAt = occurredAt
	}
	if cand.Confidence > 0 {
		updated.Confidence = cand.Confidence
	}
	if cand.Notes != "" {
		updated.QualityNotes = cand.Notes
	}
	updated.RawTranscript = pending.RawTranscript + "\n---\n" + transcript

	missing, needsFollowup := Evaluate(updated.RecordType, updated.OccurredAt, updated.Data)
	updated.MissingFields = missing
	updated.NeedsFollowup = needsFollowup
	updated.Confirmed = len(missing) == 0

	if err := r.records.UpdateRecord(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update record %s: %w", updated.RecordID, err)
	}

	r.logger.Info("Updated pending record",
		zap.String("record_id", updated.RecordID),
		zap.String("record_type", string(updated.RecordType)),
		zap.Bool("confirmed", updated.Confirmed),
		zap.Int("missing_fields", len(missing)),
	)

	if updated.Confirmed {
		r.notifyConfirmed(ctx, &updated)
	}
	return &updated, nil
}

// createRecord 为候选新建记录并计算初始完整性状态
func (r *Reconciler) createRecord(ctx context.Context, farmer *domain.Farmer, message *domain.Message, cand domain.Candidate, transcript, inputMode string, now time.Time) (*domain.Record, error) {
	record := &domain.Record{
		RecordID:        uuid.New().String(),
		FarmerID:        farmer.FarmerID,
		MessageID:       message.MessageID,
		RecordType:      cand.RecordType,
		OccurredAt:      parseOccurredAt(cand.OccurredAt),
		Data:            Merge(cand.RecordType, nil, cand.Data),
		SourceChannel:   defaultString(cand.Channel, "whatsapp"),
		SourceInputMode: defaultString(cand.InputMode, inputMode),
		SourceLanguage:  defaultString(cand.Language, "unknown"),
		Confidence:      cand.Confidence,
		QualityNotes:    cand.Notes,
		RawTranscript:   transcript,
		CreatedAt:       now,
	}

	if cand.RecordType == domain.RecordTypeUnknown {
		// unknown 记录只作审计，既不追问也不确认
		record.MissingFields = []string{}
	} else {
		missing, needsFollowup := Evaluate(record.RecordType, record.OccurredAt, record.Data)
		record.MissingFields = missing
		record.NeedsFollowup = needsFollowup
		record.Confirmed = len(missing) == 0
	}

	if err := r.records.CreateRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	r.logger.Info("Created record",
		zap.String("record_id", record.RecordID),
		zap.String("record_type", string(record.RecordType)),
		zap.Bool("confirmed", record.Confirmed),
		zap.Bool("needs_followup", record.NeedsFollowup),
	)

	if record.Confirmed {
		r.notifyConfirmed(ctx, record)
	}
	return record, nil
}

func (r *Reconciler) notifyConfirmed(ctx context.Context, record *domain.Record) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.RecordConfirmed(ctx, record); err != nil {
		// 通知失败不影响主流程
		r.logger.Warn("Failed to publish record confirmed event",
			zap.String("record_id", record.RecordID),
			zap.Error(err),
		)
	}
}

func parseOccurredAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
