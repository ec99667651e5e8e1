package domain

import "time"

// MessageDirection 消息方向
type MessageDirection string

const (
	MessageInbound  MessageDirection = "inbound"
	MessageOutbound MessageDirection = "outbound"
)

// Message 一条入站/出站消息事件
// ProviderSID 是传输层消息标识（Twilio MessageSid），用于幂等去重
type Message struct {
	MessageID   string
	FarmerID    string
	ProviderSID string
	Direction   MessageDirection
	Content     string
	MediaURL    string
	Processed   bool
	CreatedAt   time.Time
}
