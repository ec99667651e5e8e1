package reconciler

import (
	"time"

	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/schema"
)

// FieldOccurredAt 发生日期作为虚拟必填字段参与完整性判断，排在字段表之前
const FieldOccurredAt = "occurred_at"

// Evaluate 计算记录当前缺失的必填字段
// 缺失顺序固定：occurred_at 在前，其后按字段表顺序（与 data 的插入顺序无关），
// 追问因此是确定性的。对相同输入重复调用结果相同。
func Evaluate(t domain.RecordType, occurredAt *time.Time, data domain.RecordData) (missing []string, needsFollowup bool) {
	missing = []string{}
	if t != domain.RecordTypeUnknown && occurredAt == nil {
		missing = append(missing, FieldOccurredAt)
	}
	for _, field := range schema.RequiredFields(t) {
		if isEmptyValue(data[field]) {
			missing = append(missing, field)
		}
	}
	return missing, len(missing) > 0
}

// CanConfirm 记录进入 confirmed 状态的唯一闸门：没有任何缺失字段
func CanConfirm(t domain.RecordType, occurredAt *time.Time, data domain.RecordData) bool {
	missing, _ := Evaluate(t, occurredAt, data)
	return len(missing) == 0
}

// isEmptyValue nil、空字符串和空列表都视为未填
// 数据来自 JSON 反序列化，列表统一是 []any
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	default:
		return false
	}
}
