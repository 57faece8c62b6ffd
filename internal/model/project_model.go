package model

import (
	"time"
)

// ProjectModel 募资项目快照
type ProjectModel struct {
	Id        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 静态参数
	Raiser         string    `json:"raiser" gorm:"not null;index"`
	TokenAddress   string    `json:"token_address" gorm:"not null"`
	TokenDecimals  uint8     `json:"token_decimals" gorm:"not null"`
	TokensToSell   int64     `json:"tokens_to_sell" gorm:"not null"`
	TokenPrice     int64     `json:"token_price" gorm:"not null"`
	EndFundingTime time.Time `json:"end_funding_time" gorm:"not null"`

	// 募资进度
	TokensSold    int64 `json:"tokens_sold" gorm:"default:0"`
	FundsRaised   int64 `json:"funds_raised" gorm:"default:0"`
	FundsRefunded int64 `json:"funds_refunded" gorm:"default:0"`
	PlatformFee   int64 `json:"platform_fee" gorm:"default:0"`

	// 状态
	Status string `json:"status" gorm:"default:'created';index"`

	// 治理统计
	InvestorsCount       int64 `json:"investors_count" gorm:"default:0"`
	VotersForRefundCount int64 `json:"voters_for_refund_count" gorm:"default:0"`
	VoteForRefundAmount  int64 `json:"vote_for_refund_amount" gorm:"default:0"`

	// 一次性领取标记
	FundsClaimed        bool `json:"funds_claimed" gorm:"default:false"`
	PlatformFeeClaimed  bool `json:"platform_fee_claimed" gorm:"default:false"`
	UnsoldTokensClaimed bool `json:"unsold_tokens_claimed" gorm:"default:false"`
}

// TableName 自定义表名
func (ProjectModel) TableName() string {
	return "project"
}
