package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/reconciler"
)

const (
	openAITranscriptionModel = "whisper-1"
	openAIExtractionModel    = "gpt-4o"
)

// extractionSystemPrompt 提取提示词
// 输出约定：JSON 对象，records 数组内每个元素含 record_type / occurred_at /
// data / quality / continuation；continuation=true 表示该候选是对进行中记录的补充
const extractionSystemPrompt = `You are a data-entry assistant for smallholder farm logbooks.
Extract structured activity records from the farmer's message.

Record types (use exactly one per record):
seed_purchase_and_sowing, hazard_evaluation, chemical_spray, chemical_purchase,
chemical_disposal, post_harvest_chemical_usage, fertilizer_application, irrigation,
spraying_tool_sanitation, harvest_and_packaging, training_update, correction_report, unknown.

Respond with a JSON object:
{"records": [{
  "record_type": "...",
  "occurred_at": "YYYY-MM-DD or null",
  "data": {"field_name": "value", ...},
  "source": {"channel": "whatsapp", "input_mode": "text|voice", "language": "id|en|my|unknown"},
  "quality": {"confidence": 0.0-1.0, "missing_fields": [], "notes": null},
  "continuation": true|false
}]}

Rules:
- Only include data fields the farmer actually stated. Never invent values.
- Resolve relative dates ("yesterday", "last Monday") against current_date.
- If an existing record context is given and the message answers its missing fields,
  set continuation=true and put only the newly provided fields in data.
- If the message describes a different activity, set continuation=false.
- If nothing agricultural can be extracted, use record_type "unknown" with empty data.`

// Transcription 语音转写结果
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIClient OpenAI API 客户端（转写 + 提取 + 回复生成）
type OpenAIClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewOpenAIClient 创建 OpenAI 客户端
func NewOpenAIClient(baseURL, apiKey string, logger *zap.Logger) *OpenAIClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second). // 提取调用是主要延迟来源
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json")

	return &OpenAIClient{
		httpClient: client,
		logger:     logger,
	}
}

// 确保实现了提取能力接口
var _ reconciler.Extractor = (*OpenAIClient)(nil)

// Transcribe 用 Whisper 转写语音消息
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, language string) (*Transcription, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio payload is empty")
	}

	req := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", "audio.ogg", bytes.NewReader(audio)).
		SetFormData(map[string]string{
			"model":           openAITranscriptionModel,
			"response_format": "verbose_json",
		})
	if language != "" {
		req.SetFormData(map[string]string{"language": language})
	}

	var result Transcription
	resp, err := req.SetResult(&result).Post("/v1/audio/transcriptions")
	if err != nil {
		return nil, fmt.Errorf("failed to call transcription API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("transcription API returned status %d", resp.StatusCode())
	}

	c.logger.Info("Audio transcribed", zap.Int("chars", len(result.Text)))
	return &result, nil
}

// Extract 从消息文本提取候选记录
// 有进行中记录时把其类型/数据/缺失字段作为上下文下发，
// 让提取服务把 "50kg" 这类短回答解释为补充而非新活动
func (c *OpenAIClient) Extract(ctx context.Context, input reconciler.ExtractionInput) ([]domain.Candidate, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Input:\n")
	fmt.Fprintf(&b, "- current_date: %q\n", input.CurrentDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "- farmer_id: %q\n", input.FarmerExternalID)
	fmt.Fprintf(&b, "- farmer_name: %q\n", input.FarmerName)
	fmt.Fprintf(&b, "- input_mode: %q\n", input.InputMode)
	fmt.Fprintf(&b, "- transcript: %q\n", input.Transcript)

	if p := input.Pending; p != nil {
		pendingData, _ := json.Marshal(p.Data)
		fmt.Fprintf(&b, "\nExisting record context (follow-up in progress):\n")
		fmt.Fprintf(&b, "- existing_record_type: %q\n", p.RecordType)
		fmt.Fprintf(&b, "- existing_data: %s\n", pendingData)
		fmt.Fprintf(&b, "- missing_fields: %s\n", strings.Join(p.MissingFields, ", "))
		fmt.Fprintf(&b, "- The farmer may be providing the missing information. Keep existing values unless explicitly corrected.\n")
	}

	content, err := c.chat(ctx, chatRequest{
		Model: openAIExtractionModel,
		Messages: []chatMessage{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: b.String()},
		},
		Temperature: 0.1,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	candidates := parseCandidates(content, input.Pending != nil)
	c.logger.Info("Extraction completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("response_chars", len(content)),
	)
	return candidates, nil
}

// ReplyInput 回复生成的输入
type ReplyInput struct {
	RecordType    domain.RecordType
	Data          domain.RecordData
	MissingFields []string
	Language      string
	FarmerName    string
	Confirmed     bool
}

// GenerateReply 生成追问或确认回复（调用失败时由上层回退到模板回复）
func (c *OpenAIClient) GenerateReply(ctx context.Context, input ReplyInput) (string, error) {
	dataJSON, _ := json.Marshal(input.Data)

	var system, user string
	if input.Confirmed {
		system = `You are a friendly agricultural assistant helping farmers keep records via WhatsApp.
Generate a confirmation message in the specified language: thank the farmer, summarize the
recorded data as a plain-text list (dashes, no markdown, no asterisks), and ask them to reply
OK to confirm or send corrections. Be warm, concise, simple. Output only the message text.`
		user = fmt.Sprintf("Language: %s\nFarmer name: %s\nRecord type: %s\nRecorded data: %s",
			input.Language, input.FarmerName, strings.ReplaceAll(string(input.RecordType), "_", " "), dataJSON)
	} else {
		system = `You are a friendly agricultural assistant helping farmers keep records via WhatsApp.
Generate a natural follow-up question in the specified language: briefly acknowledge what was
recorded, then ask for at most 2-3 of the missing fields, in order. Plain text only, no markdown,
no asterisks. Be warm, concise, simple. Output only the message text.`
		user = fmt.Sprintf("Language: %s\nFarmer name: %s\nRecord type: %s\nAlready recorded: %s\nMissing fields needed: %s",
			input.Language, input.FarmerName, strings.ReplaceAll(string(input.RecordType), "_", " "), dataJSON,
			strings.Join(input.MissingFields, ", "))
	}

	content, err := c.chat(ctx, chatRequest{
		Model: openAIExtractionModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *OpenAIClient) chat(ctx context.Context, request chatRequest) (string, error) {
	var response chatResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		SetError(&response).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call chat API: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("chat API error: %s", response.Error.Message)
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat API returned status %d", resp.StatusCode())
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

// rawExtraction 提取响应中的单条候选
type rawExtraction struct {
	RecordType string         `json:"record_type"`
	OccurredAt string         `json:"occurred_at"`
	Data       map[string]any `json:"data"`
	Source     struct {
		Channel   string `json:"channel"`
		InputMode string `json:"input_mode"`
		Language  string `json:"language"`
	} `json:"source"`
	Quality struct {
		Confidence    float64  `json:"confidence"`
		MissingFields []string `json:"missing_fields"`
		Notes         string   `json:"notes"`
	} `json:"quality"`
	Continuation *bool `json:"continuation"`
}

// parseCandidates 解析提取响应
// 兼容三种形态：{"records": [...]}、裸数组、单个对象；解析失败返回空表
func parseCandidates(content string, hasPending bool) []domain.Candidate {
	var raws []rawExtraction

	trimmed := strings.TrimSpace(content)
	var wrapper struct {
		Records []rawExtraction `json:"records"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err == nil && len(wrapper.Records) > 0 {
		raws = wrapper.Records
	} else if strings.HasPrefix(trimmed, "[") {
		_ = json.Unmarshal([]byte(trimmed), &raws)
	} else {
		var single rawExtraction
		if err := json.Unmarshal([]byte(trimmed), &single); err == nil && single.RecordType != "" {
			raws = []rawExtraction{single}
		}
	}

	candidates := make([]domain.Candidate, 0, len(raws))
	for _, raw := range raws {
		cand := domain.Candidate{
			RecordType:    domain.ParseRecordType(raw.RecordType),
			OccurredAt:    raw.OccurredAt,
			Data:          domain.RecordData(raw.Data),
			Confidence:    clampConfidence(raw.Quality.Confidence),
			MissingFields: raw.Quality.MissingFields,
			Notes:         raw.Quality.Notes,
			Channel:       raw.Source.Channel,
			InputMode:     raw.Source.InputMode,
			Language:      raw.Source.Language,
		}
		if raw.Continuation != nil {
			cand.Continuation = *raw.Continuation
		} else {
			// 信号缺失时沿用旧行为：存在进行中记录即视为续写
			cand.Continuation = hasPending
		}
		candidates = append(candidates, cand)
	}
	return candidates
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
