package domain

import "time"

// Farmer 农户（外部联系标识 + 显示名）
// ExternalID 创建后不可变（WhatsApp 号码或注册码），Name 可更新
type Farmer struct {
	FarmerID    string
	ExternalID  string
	Name        string
	PhoneNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
