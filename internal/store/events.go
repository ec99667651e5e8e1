package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
)

// ConfirmedStream 记录确认事件流（下游服务用 XREAD 消费）
const ConfirmedStream = "logbook:records:confirmed"

// EventPublisher 把已确认记录发布到 Redis Streams
type EventPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewEventPublisher(client *redis.Client, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{client: client, logger: logger}
}

// RecordConfirmed 发布一条记录确认事件
func (p *EventPublisher) RecordConfirmed(ctx context.Context, record *domain.Record) error {
	dataJSON, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal record data: %w", err)
	}

	occurredAt := ""
	if record.OccurredAt != nil {
		occurredAt = record.OccurredAt.Format("2006-01-02")
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: ConfirmedStream,
		Values: map[string]interface{}{
			"record_id":    record.RecordID,
			"farmer_id":    record.FarmerID,
			"record_type":  string(record.RecordType),
			"occurred_at":  occurredAt,
			"data":         string(dataJSON),
			"confidence":   fmt.Sprintf("%f", record.Confidence),
			"confirmed_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish confirmed event: %w", err)
	}

	p.logger.Info("Published record confirmed event",
		zap.String("record_id", record.RecordID),
		zap.String("stream_id", id),
	)
	return nil
}
