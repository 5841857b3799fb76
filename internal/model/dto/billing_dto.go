package dto

import "time"

// SubscriptionUpdate 从支付回调事件提取出的五个关键字段。
// 具体 payload 结构由支付服务商定义，reconciler 只依赖这些。
type SubscriptionUpdate struct {
	EventID          string
	EventType        string
	CustomerID       string // 服务商侧的客户 ID
	SubscriptionID   string
	Status           string // active, canceled, ...
	CurrentPeriodEnd time.Time
}

// CheckoutSessionResponse 发起订阅支付的跳转地址
type CheckoutSessionResponse struct {
	URL string `json:"url"`
}

// BillingPortalResponse 订阅管理门户跳转地址
type BillingPortalResponse struct {
	URL string `json:"url"`
}
