package domain

// Candidate 提取服务为一次调用返回的候选记录（尚未合并/持久化）
type Candidate struct {
	RecordType RecordType
	OccurredAt string // ISO 日期字符串，可为空
	Data       RecordData

	// 质量信息（来自提取服务，Confidence 取值 [0,1]）
	Confidence    float64
	MissingFields []string
	Notes         string

	// 来源信息
	Channel   string
	InputMode string
	Language  string

	// Continuation 为 true 表示该候选是对进行中记录的补充回答，
	// 而非农户开始描述一项新的活动
	Continuation bool
}
