package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/reconciler"
	"github.com/akvo/ai-logbook/internal/repository"
	"github.com/akvo/ai-logbook/internal/service"
	"github.com/akvo/ai-logbook/internal/store"
)

// dedupTTL 消息 SID 去重键的保留时长
const dedupTTL = 24 * time.Hour

// Transport 出站消息能力（Twilio 实现；测试用假实现）
type Transport interface {
	SendReply(ctx context.Context, to, body string) error
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// SpeechToText 语音转写能力
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, language string) (*service.Transcription, error)
}

// ReplyGenerator 自然语言回复生成能力（失败时回退到模板回复）
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, input service.ReplyInput) (string, error)
}

// WebhookHandler 处理 Twilio WhatsApp webhook
type WebhookHandler struct {
	farmers    repository.FarmersRepo
	messages   repository.MessagesRepo
	reconciler *reconciler.Reconciler
	kv         store.KVStore // 可为 nil（去重退化为仅查消息表）
	transport  Transport
	stt        SpeechToText
	replies    ReplyGenerator // 可为 nil（只用模板回复）
	logger     *zap.Logger
}

// NewWebhookHandler 创建 webhook Handler
func NewWebhookHandler(
	farmers repository.FarmersRepo,
	messages repository.MessagesRepo,
	rec *reconciler.Reconciler,
	kv store.KVStore,
	transport Transport,
	stt SpeechToText,
	replies ReplyGenerator,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		farmers:    farmers,
		messages:   messages,
		reconciler: rec,
		kv:         kv,
		transport:  transport,
		stt:        stt,
		replies:    replies,
		logger:     logger,
	}
}

// HandleWhatsApp 处理入站 WhatsApp 消息
// POST /api/webhook/whatsapp
//
// 除存储写失败（5xx，让 Twilio 重试）外一律回 200：
// 提取失败、转写失败等都在本地恢复并用回复文案兜底
func (h *WebhookHandler) HandleWhatsApp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	incoming := service.ParseIncomingMessage(r.PostForm)
	if incoming.MessageSID == "" || incoming.From == "" {
		writeError(w, http.StatusBadRequest, "MessageSid and From are required")
		return
	}

	preview := incoming.Body
	if incoming.IsVoice() {
		preview = "[voice]"
	} else if len(preview) > 50 {
		preview = preview[:50]
	}
	h.logger.Info("Received message",
		zap.String("from", incoming.From),
		zap.String("message_sid", incoming.MessageSID),
		zap.String("preview", preview),
	)

	// 幂等：重复投递的消息 SID 在提取之前短路，视为成功
	if h.isDuplicate(ctx, incoming.MessageSID) {
		h.logger.Info("Duplicate message, skipping", zap.String("message_sid", incoming.MessageSID))
		w.WriteHeader(http.StatusOK)
		return
	}

	farmerName := incoming.ProfileName
	if farmerName == "" {
		farmerName = incoming.From
	}
	farmer, err := h.farmers.GetOrCreateFarmer(ctx, incoming.From, farmerName, incoming.From)
	if err != nil {
		h.logger.Error("Failed to get or create farmer", zap.Error(err))
		h.releaseDedup(ctx, incoming.MessageSID)
		writeError(w, http.StatusInternalServerError, "farmer lookup failed")
		return
	}

	message := &domain.Message{
		FarmerID:    farmer.FarmerID,
		ProviderSID: incoming.MessageSID,
		Direction:   domain.MessageInbound,
		Content:     incoming.Body,
		MediaURL:    incoming.MediaURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.messages.CreateMessage(ctx, message); err != nil {
		existing, lookupErr := h.messages.GetMessageByProviderSID(ctx, incoming.MessageSID)
		switch {
		case lookupErr == nil && existing != nil && existing.Processed:
			// 唯一约束冲突且已处理完成：重复投递，幂等成功
			h.logger.Info("Duplicate message already processed, skipping",
				zap.String("message_sid", incoming.MessageSID),
			)
			w.WriteHeader(http.StatusOK)
			return
		case lookupErr == nil && existing != nil:
			// 上一次处理中途失败留下的未完成消息行，续用原行重试
			h.logger.Info("Resuming unprocessed message",
				zap.String("message_sid", incoming.MessageSID),
				zap.String("message_id", existing.MessageID),
			)
			message = existing
		default:
			// 消息落库失败是瞬时错误，释放去重键让 Twilio 重试
			h.logger.Error("Failed to store message",
				zap.String("message_sid", incoming.MessageSID),
				zap.Error(err),
			)
			h.releaseDedup(ctx, incoming.MessageSID)
			writeError(w, http.StatusInternalServerError, "message store unavailable")
			return
		}
	}

	transcript, inputMode, ok := h.resolveTranscript(ctx, incoming)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	outcome, err := h.reconciler.Process(ctx, farmer, message, transcript, inputMode, time.Now().UTC())
	if err != nil {
		// 存储写失败：不得在计算状态与持久化状态分叉时继续，
		// 释放去重键后交给 Twilio 重试
		h.logger.Error("Reconciliation failed", zap.Error(err))
		h.releaseDedup(ctx, incoming.MessageSID)
		writeError(w, http.StatusInternalServerError, "record store unavailable")
		return
	}

	if err := h.messages.MarkProcessed(ctx, message.MessageID); err != nil {
		h.logger.Warn("Failed to mark message processed", zap.Error(err))
	}

	reply := h.buildReply(ctx, outcome, farmer.Name)
	if err := h.transport.SendReply(ctx, incoming.From, reply); err != nil {
		h.logger.Error("Failed to send reply", zap.Error(err))
	}

	w.WriteHeader(http.StatusOK)
}

func dedupKey(messageSID string) string {
	return "logbook:msg:" + messageSID
}

// isDuplicate 去重：Redis SETNX 快路径 + 消息表兜底
// 兜底只看已处理完成的消息：存储写失败返回 5xx 后，Twilio 重试同一 SID，
// 留在消息表里的未完成行不得把这次重试短路掉
func (h *WebhookHandler) isDuplicate(ctx context.Context, messageSID string) bool {
	if h.kv != nil {
		fresh, err := h.kv.SetNX(ctx, dedupKey(messageSID), "1", dedupTTL)
		if err == nil && !fresh {
			return true
		}
		if err != nil {
			h.logger.Warn("Dedup fast path unavailable", zap.Error(err))
		}
	}
	existing, err := h.messages.GetMessageByProviderSID(ctx, messageSID)
	if err != nil {
		h.logger.Warn("Failed to check message dedup", zap.Error(err))
		return false
	}
	return existing != nil && existing.Processed
}

// releaseDedup 处理以 5xx 结束时释放去重键，保证重试仍然可达
func (h *WebhookHandler) releaseDedup(ctx context.Context, messageSID string) {
	if h.kv == nil {
		return
	}
	if err := h.kv.Del(ctx, dedupKey(messageSID)); err != nil {
		h.logger.Warn("Failed to release dedup key",
			zap.String("message_sid", messageSID),
			zap.Error(err),
		)
	}
}

// resolveTranscript 取得消息文本：语音走下载+转写，失败时发送致歉回复并结束本次处理
func (h *WebhookHandler) resolveTranscript(ctx context.Context, incoming service.IncomingMessage) (transcript, inputMode string, ok bool) {
	if incoming.IsVoice() && incoming.MediaURL != "" {
		audio, err := h.transport.DownloadMedia(ctx, incoming.MediaURL)
		if err != nil {
			h.logger.Error("Failed to download audio", zap.Error(err))
			h.sendOrLog(ctx, incoming.From, service.VoiceFailedReply)
			return "", "", false
		}
		result, err := h.stt.Transcribe(ctx, audio, "")
		if err != nil || result.Text == "" {
			h.logger.Error("Transcription failed", zap.Error(err))
			h.sendOrLog(ctx, incoming.From, service.VoiceFailedReply)
			return "", "", false
		}
		h.logger.Info("Transcribed voice message", zap.Int("chars", len(result.Text)))
		return result.Text, "voice", true
	}

	if incoming.Body != "" {
		return incoming.Body, "text", true
	}

	h.logger.Warn("No content in message", zap.String("message_sid", incoming.MessageSID))
	return "", "", false
}

func (h *WebhookHandler) buildReply(ctx context.Context, outcome *reconciler.Outcome, farmerName string) string {
	record := outcome.Primary()
	if record == nil || h.replies == nil {
		return service.FallbackReply(outcome, farmerName)
	}

	reply, err := h.replies.GenerateReply(ctx, service.ReplyInput{
		RecordType:    record.RecordType,
		Data:          record.Data,
		MissingFields: record.MissingFields,
		Language:      record.SourceLanguage,
		FarmerName:    farmerName,
		Confirmed:     record.Confirmed,
	})
	if err != nil || reply == "" {
		h.logger.Warn("Reply generation failed, using fallback", zap.Error(err))
		return service.FallbackReply(outcome, farmerName)
	}
	return reply
}

func (h *WebhookHandler) sendOrLog(ctx context.Context, to, body string) {
	if err := h.transport.SendReply(ctx, to, body); err != nil {
		h.logger.Error("Failed to send reply", zap.Error(err))
	}
}
