package dto

// GenerateSummaryRequest 生成摘要请求
type GenerateSummaryRequest struct {
	Force bool `json:"force"` // 已有摘要时强制重新生成
}

// SummaryResult 摘要生成结果
type SummaryResult struct {
	ItemID      int64  `json:"item_id"`
	Summary     string `json:"summary"`
	GeneratedAt string `json:"generated_at"`
	Shared      bool   `json:"shared"` // 写入共享池还是个人条目
}

// AIUsageInfo 当日 AI 用量
type AIUsageInfo struct {
	DailyLimit int `json:"daily_limit"`
	DailyUsed  int `json:"daily_used"`
	Remaining  int `json:"remaining"`
}
