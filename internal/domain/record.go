package domain

import (
	"time"
)

// RecordType 农事记录类型（封闭集合，与提取服务约定一致）
type RecordType string

const (
	RecordTypeSeedPurchaseAndSowing    RecordType = "seed_purchase_and_sowing"
	RecordTypeHazardEvaluation         RecordType = "hazard_evaluation"
	RecordTypeChemicalSpray            RecordType = "chemical_spray"
	RecordTypeChemicalPurchase         RecordType = "chemical_purchase"
	RecordTypeChemicalDisposal         RecordType = "chemical_disposal"
	RecordTypePostHarvestChemicalUsage RecordType = "post_harvest_chemical_usage"
	RecordTypeFertilizerApplication    RecordType = "fertilizer_application"
	RecordTypeIrrigation               RecordType = "irrigation"
	RecordTypeSprayingToolSanitation   RecordType = "spraying_tool_sanitation"
	RecordTypeHarvestAndPackaging      RecordType = "harvest_and_packaging"
	RecordTypeTrainingUpdate           RecordType = "training_update"
	RecordTypeCorrectionReport         RecordType = "correction_report"
	RecordTypeUnknown                  RecordType = "unknown"
)

// AllRecordTypes 全部记录类型（含 unknown）
var AllRecordTypes = []RecordType{
	RecordTypeSeedPurchaseAndSowing,
	RecordTypeHazardEvaluation,
	RecordTypeChemicalSpray,
	RecordTypeChemicalPurchase,
	RecordTypeChemicalDisposal,
	RecordTypePostHarvestChemicalUsage,
	RecordTypeFertilizerApplication,
	RecordTypeIrrigation,
	RecordTypeSprayingToolSanitation,
	RecordTypeHarvestAndPackaging,
	RecordTypeTrainingUpdate,
	RecordTypeCorrectionReport,
	RecordTypeUnknown,
}

// ParseRecordType 解析记录类型字符串，未注册的类型一律归入 unknown（不报错）
func ParseRecordType(s string) RecordType {
	t := RecordType(s)
	for _, known := range AllRecordTypes {
		if t == known {
			return t
		}
	}
	return RecordTypeUnknown
}

// RecordData 记录数据载荷（字段名 -> 值，合法字段由记录类型决定）
type RecordData map[string]any

// Clone 深拷贝第一层（值本身来自 JSON 反序列化，按值共享）
func (d RecordData) Clone() RecordData {
	if d == nil {
		return RecordData{}
	}
	out := make(RecordData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Record 一条农事活动记录
type Record struct {
	RecordID   string
	FarmerID   string
	MessageID  string // 产生该记录的首条消息（可为空）
	RecordType RecordType
	OccurredAt *time.Time // 活动发生日期，未知时为 nil
	Data       RecordData

	// 来源信息
	SourceChannel   string // 默认 whatsapp
	SourceInputMode string // text / voice
	SourceLanguage  string // id / en / my / unknown

	// 质量信息
	Confidence    float64
	MissingFields []string
	NeedsFollowup bool
	Confirmed     bool
	QualityNotes  string

	// 审计
	RawTranscript string
	CreatedAt     time.Time
}

// Pending 记录是否仍是该农户的进行中会话线程
// 不变式：Confirmed == true 时 MissingFields 必为空且 NeedsFollowup == false
func (r *Record) Pending() bool {
	return !r.Confirmed && r.NeedsFollowup
}
