package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// IncomingMessage 解析后的入站 WhatsApp 消息
type IncomingMessage struct {
	MessageSID       string
	From             string
	To               string
	Body             string
	NumMedia         int
	MediaURL         string
	MediaContentType string
	ProfileName      string
}

// IsVoice 是否语音消息
func (m *IncomingMessage) IsVoice() bool {
	return strings.HasPrefix(m.MediaContentType, "audio/")
}

// ParseIncomingMessage 解析 Twilio webhook 表单
func ParseIncomingMessage(form url.Values) IncomingMessage {
	numMedia, _ := strconv.Atoi(form.Get("NumMedia"))

	msg := IncomingMessage{
		MessageSID:  form.Get("MessageSid"),
		From:        form.Get("From"),
		To:          form.Get("To"),
		Body:        form.Get("Body"),
		NumMedia:    numMedia,
		ProfileName: form.Get("ProfileName"),
	}
	if numMedia > 0 {
		msg.MediaURL = form.Get("MediaUrl0")
		msg.MediaContentType = form.Get("MediaContentType0")
	}
	return msg
}

// TwilioClient Twilio REST 客户端（发送回复 + 下载语音媒体）
type TwilioClient struct {
	httpClient     *resty.Client
	accountSID     string
	whatsappNumber string
	logger         *zap.Logger
}

// NewTwilioClient 创建 Twilio 客户端
func NewTwilioClient(baseURL, accountSID, authToken, whatsappNumber string, logger *zap.Logger) *TwilioClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetBasicAuth(accountSID, authToken)

	return &TwilioClient{
		httpClient:     client,
		accountSID:     accountSID,
		whatsappNumber: whatsappNumber,
		logger:         logger,
	}
}

// SendReply 发送 WhatsApp 回复
func (c *TwilioClient) SendReply(ctx context.Context, to, body string) error {
	var result struct {
		SID     string `json:"sid"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"From": c.whatsappNumber,
			"To":   to,
			"Body": body,
		}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.accountSID))
	if err != nil {
		return fmt.Errorf("failed to call Twilio API: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("Twilio API returned status %d: %s", resp.StatusCode(), result.Message)
	}

	c.logger.Info("Sent reply", zap.String("message_sid", result.SID))
	return nil
}

// DownloadMedia 下载语音媒体（Twilio 媒体 URL 需要账号认证）
func (c *TwilioClient) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	if mediaURL == "" {
		return nil, fmt.Errorf("media_url is required")
	}

	// 绝对 URL 会绕过 BaseURL，直接请求 Twilio 媒体地址
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(mediaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
