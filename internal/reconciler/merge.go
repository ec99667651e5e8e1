package reconciler

import (
	"github.com/akvo/ai-logbook/internal/domain"
	"github.com/akvo/ai-logbook/internal/schema"
)

// Merge 把一次新提取的字段合并进已有数据，逐字段处理：
//   - incoming 中非空的字段覆盖 existing（农户最新的说法为准）
//   - incoming 中缺失/为空的字段不触碰 existing（补充回答不得抹掉已采集字段）
//   - 不在该记录类型字段表中的字段直接丢弃，保持载荷与 schema 一致
//
// unknown 类型没有字段表，载荷原样保留（仅作审计用途）。
// 合并满足结合律：逐轮依次合并与一次性折叠结果相同。
func Merge(t domain.RecordType, existing, incoming domain.RecordData) domain.RecordData {
	merged := existing.Clone()
	for field, value := range incoming {
		if isEmptyValue(value) {
			continue
		}
		if t != domain.RecordTypeUnknown && !schema.IsKnownField(t, field) {
			continue
		}
		merged[field] = value
	}
	return merged
}
