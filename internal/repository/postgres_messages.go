package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akvo/ai-logbook/internal/domain"
)

// PostgresMessagesRepo 消息Repository实现
type PostgresMessagesRepo struct {
	db *sql.DB
}

// NewPostgresMessagesRepo 创建消息Repository
func NewPostgresMessagesRepo(db *sql.DB) *PostgresMessagesRepo {
	return &PostgresMessagesRepo{db: db}
}

var _ MessagesRepo = (*PostgresMessagesRepo)(nil)

// CreateMessage 入库一条消息（provider_sid 唯一，重复投递在此被数据库兜底拦截）
func (r *PostgresMessagesRepo) CreateMessage(ctx context.Context, message *domain.Message) error {
	if message == nil {
		return fmt.Errorf("message is required")
	}
	if message.FarmerID == "" || message.ProviderSID == "" {
		return fmt.Errorf("farmer_id and provider_sid are required")
	}
	if message.MessageID == "" {
		message.MessageID = uuid.New().String()
	}

	query := `
		INSERT INTO messages (
			message_id, farmer_id, provider_sid, direction, content, media_url, processed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx,
		query,
		message.MessageID,
		message.FarmerID,
		message.ProviderSID,
		string(message.Direction),
		nullString(message.Content),
		nullString(message.MediaURL),
		message.Processed,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetMessageByProviderSID 按传输层消息标识查消息，不存在时返回 (nil, nil)
func (r *PostgresMessagesRepo) GetMessageByProviderSID(ctx context.Context, providerSID string) (*domain.Message, error) {
	if providerSID == "" {
		return nil, fmt.Errorf("provider_sid is required")
	}

	query := `
		SELECT
			message_id::text,
			farmer_id::text,
			provider_sid,
			direction,
			COALESCE(content, '') AS content,
			COALESCE(media_url, '') AS media_url,
			processed,
			created_at
		FROM messages
		WHERE provider_sid = $1
	`

	var m domain.Message
	var direction string
	err := r.db.QueryRowContext(ctx, query, providerSID).Scan(
		&m.MessageID,
		&m.FarmerID,
		&m.ProviderSID,
		&direction,
		&m.Content,
		&m.MediaURL,
		&m.Processed,
		&m.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	m.Direction = domain.MessageDirection(direction)
	return &m, nil
}

// MarkProcessed 处理完成后置位 processed
func (r *PostgresMessagesRepo) MarkProcessed(ctx context.Context, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("message_id is required")
	}
	result, err := r.db.ExecContext(ctx, `UPDATE messages SET processed = TRUE WHERE message_id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	return nil
}
