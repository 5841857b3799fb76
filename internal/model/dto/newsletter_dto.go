package dto

// StoreNewsletterRequest 入库请求。HTML 已由上游解析层渲染并归一化。
type StoreNewsletterRequest struct {
	UserID      int64  `json:"user_id"` // 由认证上下文或队列消息填充，不从请求体信任

	SenderEmail string `json:"sender_email" binding:"required,email"`
	SenderName  string `json:"sender_name"`
	FolderID    *int64 `json:"folder_id,omitempty"`
	Subject     string `json:"subject"`
	HTML        []byte `json:"html" binding:"required"`
	ReceivedAt  string `json:"received_at"` // RFC3339，空则取当前时间
	IsPrivate   bool   `json:"is_private"`
	Source      string `json:"source"` // inbound, import
}

// StoreNewsletterResult 入库结果。
// Skipped 为 true 时 Reason 固定为 "plan_limit"，不算错误。
type StoreNewsletterResult struct {
	UserItemID int64  `json:"user_item_id,omitempty"`
	Locked     bool   `json:"locked"`
	Deduped    bool   `json:"deduped"`
	Skipped    bool   `json:"skipped"`
	Reason     string `json:"reason,omitempty"`
}

// ItemListItem 收件箱列表项
type ItemListItem struct {
	ID             int64  `json:"id"`
	Subject        string `json:"subject"`
	SenderEmail    string `json:"sender_email"`
	SenderName     string `json:"sender_name"`
	FolderID       *int64 `json:"folder_id,omitempty"`
	ReceivedAt     string `json:"received_at"`
	IsLockedByPlan bool   `json:"is_locked_by_plan"`
	IsPrivate      bool   `json:"is_private"`
	HasSummary     bool   `json:"has_summary"`
}

// ItemDetail 收件箱详情
type ItemDetail struct {
	ID                 int64  `json:"id"`
	Subject            string `json:"subject"`
	SenderEmail        string `json:"sender_email"`
	SenderName         string `json:"sender_name"`
	FolderID           *int64 `json:"folder_id,omitempty"`
	ReceivedAt         string `json:"received_at"`
	IsLockedByPlan     bool   `json:"is_locked_by_plan"`
	IsPrivate          bool   `json:"is_private"`
	ContentURL         string `json:"content_url,omitempty"`
	Summary            string `json:"summary,omitempty"`
	SummaryGeneratedAt string `json:"summary_generated_at,omitempty"`
	ReaderCount        int    `json:"reader_count,omitempty"`
}
