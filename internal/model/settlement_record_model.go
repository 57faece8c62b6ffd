package model

import (
	"time"
)

// SettlementRecordModel 结算记录，每次领取写一条
type SettlementRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectId      int64  `json:"project_id" gorm:"not null;index"`
	SettlementType string `json:"settlement_type" gorm:"not null"` // funds, platform_fee, unsold_tokens
	Address        string `json:"address" gorm:"not null"`
	Amount         int64  `json:"amount" gorm:"not null"`
	Tokens         int64  `json:"tokens"`
}

// TableName 自定义表名
func (SettlementRecordModel) TableName() string {
	return "settlement_record"
}
