package model

import "time"

// PaymentEvent is a verified payment notification from a provider,
// normalized across Alipay and WeChat Pay field names.
type PaymentEvent struct {
	Service        string    `json:"service"`
	NotificationID string    `json:"notification_id"`
	TradeNo        string    `json:"trade_no"`     // provider-side transaction number
	OutTradeNo     string    `json:"out_trade_no"` // our order number
	Amount         string    `json:"amount"`
	Status         string    `json:"status"`
	ReceivedAt     time.Time `json:"received_at"`
}
