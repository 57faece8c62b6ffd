package model

import (
	"time"
)

// RefundRecordModel 退款记录
type RefundRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectId int64  `json:"project_id" gorm:"not null;index"`
	Address   string `json:"address" gorm:"not null"`
	Amount    int64  `json:"amount" gorm:"not null"`
	Tokens    int64  `json:"tokens" gorm:"not null"`
}

// TableName 自定义表名
func (RefundRecordModel) TableName() string {
	return "refund_record"
}
