package repository

import (
	"context"

	"github.com/akvo/ai-logbook/internal/domain"
)

// MessagesRepo 消息存储接口
// ProviderSID 唯一约束是消息幂等处理的最终防线
type MessagesRepo interface {
	CreateMessage(ctx context.Context, message *domain.Message) error

	// GetMessageByProviderSID 不存在时返回 (nil, nil)
	GetMessageByProviderSID(ctx context.Context, providerSID string) (*domain.Message, error)

	MarkProcessed(ctx context.Context, messageID string) error
}
