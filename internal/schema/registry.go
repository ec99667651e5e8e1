package schema

import (
	"fmt"

	"github.com/akvo/ai-logbook/internal/domain"
)

// recordFields 每种记录类型的必填字段表（顺序即追问顺序）
// 全部字段填齐后记录才能进入 confirmed 状态
var recordFields = map[domain.RecordType][]string{
	domain.RecordTypeChemicalSpray: {
		"crop_variety",
		"plot_or_row",
		"growth_stage",
		"chemical_name",
		"dosage",
		"application_rate",
		"spraying_apparatus_and_method",
		"harvesting_period_days",
		"weather_condition",
		"sprayed_by",
	},
	domain.RecordTypeFertilizerApplication: {
		"crop_variety",
		"plot_or_row",
		"fertilizer_name",
		"input_dealer",
		"rate",
		"farmer_perspective",
		"applied_by",
	},
	domain.RecordTypeIrrigation: {
		"crop",
		"variety",
		"plot_or_row",
		"water_amount",
		"rainfall",
		"farmer_perspective",
	},
	domain.RecordTypeSeedPurchaseAndSowing: {
		"crop_name",
		"variety",
		"shop_name_and_address",
		"amount_or_number",
		"place_of_sowing",
	},
	domain.RecordTypeHarvestAndPackaging: {
		"crop_variety",
		"planting_date",
		"plot_number",
		"harvesting_date",
		"packaging_date",
		"trade_mark",
		"number_of_packs",
		"destination",
		"product_registration_number",
		"farmer_perspective",
	},
	domain.RecordTypeChemicalPurchase: {
		"date_of_buying",
		"chemical_name",
		"quantity",
		"place_of_buying",
		"product_registration_number",
		"production_date",
		"expiry_date",
	},
	domain.RecordTypeChemicalDisposal: {
		"chemical_name",
		"disposal_date",
		"disposal_method",
	},
	domain.RecordTypePostHarvestChemicalUsage: {
		"chemical_name",
		"container_size",
		"solution_rate",
		"application_method",
		"chemical_quantity",
		"solution_amount_added",
		"application_time",
		"chemical_type",
		"farmer_perspective",
		"signature",
	},
	domain.RecordTypeHazardEvaluation: {
		"crop_name",
		"cause_of_hazard",
		"evaluation",
		"remedies",
		"signature",
	},
	domain.RecordTypeSprayingToolSanitation: {
		"cleaning_place",
		"frequency",
		"duty_and_responsibility",
		"cleaning_method",
	},
	domain.RecordTypeTrainingUpdate: {
		"name",
		"chemical_usage",
		"fertilizer_usage",
		"irrigation",
		"harvesting",
		"grading_packaging",
		"sanitation",
		"personal_hygiene",
		"repair_and_maintenance",
		"personal_evaluation",
	},
	domain.RecordTypeCorrectionReport: {
		"date_reported",
		"problem",
		"source_and_reason",
		"action_taken",
		"signature",
		"date_resolved",
	},
	domain.RecordTypeUnknown: {},
}

// knownFields 每种类型的字段集合（用于合并时丢弃未注册字段）
var knownFields map[domain.RecordType]map[string]struct{}

func init() {
	// 字段表必须覆盖全部记录类型，缺表属于配置错误，启动即失败
	for _, t := range domain.AllRecordTypes {
		if _, ok := recordFields[t]; !ok {
			panic(fmt.Sprintf("schema: record type %q has no field registration", t))
		}
	}
	knownFields = make(map[domain.RecordType]map[string]struct{}, len(recordFields))
	for t, fields := range recordFields {
		set := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			set[f] = struct{}{}
		}
		knownFields[t] = set
	}
}

// RequiredFields 返回记录类型的必填字段（固定顺序的副本）
func RequiredFields(t domain.RecordType) []string {
	fields, ok := recordFields[t]
	if !ok {
		// ParseRecordType 已把未知字符串归入 unknown，这里只防御编程错误
		return nil
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// IsKnownField 判断字段是否属于该记录类型的字段表
func IsKnownField(t domain.RecordType, field string) bool {
	set, ok := knownFields[t]
	if !ok {
		return false
	}
	_, ok = set[field]
	return ok
}
