package service

import (
	"fmt"
	"strings"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/reconciler"
	"github.com/akvo/ai-logbook/internal/schema"
)

// 固定回复文案（LLM 回复生成失败时的确定性回退）
const (
	GenericRetryReply = "Sorry, I couldn't extract any records from your message. Please try again with more details."
	VoiceFailedReply  = "Sorry, I couldn't process your voice message. Please try again."
)

// FallbackReply 根据本轮触碰记录的最终状态生成模板回复：
//   - 仍有缺失字段：按固定顺序点名最前面的缺失字段追问（最多三个）
//   - 全部已确认：给出记录摘要请农户确认
//   - correction_report：走纠正上报话术而不是普通新记录话术
func FallbackReply(outcome *reconciler.Outcome, farmerName string) string {
	if outcome == nil || outcome.ExtractionFailed {
		return GenericRetryReply
	}
	record := outcome.Primary()
	if record == nil {
		return GenericRetryReply
	}

	if record.Confirmed {
		return confirmationReply(record, farmerName)
	}
	if record.NeedsFollowup && len(record.MissingFields) > 0 {
		return followupReply(record, farmerName)
	}
	return fmt.Sprintf("Thank you %s, your message has been recorded.", farmerName)
}

func followupReply(record *domain.Record, farmerName string) string {
	asked := record.MissingFields
	if len(asked) > 3 {
		asked = asked[:3]
	}
	fields := make([]string, len(asked))
	for i, f := range asked {
		fields[i] = humanizeField(f)
	}

	activity := humanizeField(string(record.RecordType))
	if record.RecordType == domain.RecordTypeCorrectionReport {
		return fmt.Sprintf(
			"Thank you %s, I noted your correction report. To complete it, please tell me: %s.",
			farmerName, strings.Join(fields, ", "),
		)
	}
	return fmt.Sprintf(
		"Thank you %s, I recorded your %s activity. To complete the record, please tell me: %s.",
		farmerName, activity, strings.Join(fields, ", "),
	)
}

func confirmationReply(record *domain.Record, farmerName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you %s, your %s record is complete:\n",
		farmerName, humanizeField(string(record.RecordType)))
	if record.OccurredAt != nil {
		fmt.Fprintf(&b, "- date: %s\n", record.OccurredAt.Format("2006-01-02"))
	}
	for _, field := range schema.RequiredFields(record.RecordType) {
		if v, ok := record.Data[field]; ok {
			fmt.Fprintf(&b, "- %s: %v\n", humanizeField(field), v)
		}
	}
	b.WriteString("Reply OK to confirm or send corrections.")
	return b.String()
}

func humanizeField(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
