package dto

// UsageInfo 存储用量与套餐额度
type UsageInfo struct {
	Plan           string       `json:"plan"`
	TotalStored    int          `json:"total_stored"`
	UnlockedStored int          `json:"unlocked_stored"`
	LockedStored   int          `json:"locked_stored"`
	UnlockedCap    int          `json:"unlocked_cap"` // 0 表示不限
	HardCap        int          `json:"hard_cap"`     // 0 表示不限
	AI             *AIUsageInfo `json:"ai,omitempty"`
}
