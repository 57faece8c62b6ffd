package model

import (
	"time"
)

// InvestmentModel 投资记录快照，每个(项目,投资人)一条
type InvestmentModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId        int64  `json:"project_id" gorm:"not null;uniqueIndex:idx_investment_project_address"`
	Address          string `json:"address" gorm:"not null;uniqueIndex:idx_investment_project_address"`
	Amount           int64  `json:"amount" gorm:"not null"`
	TokensOwed       int64  `json:"tokens_owed" gorm:"not null"`
	HasVoted         bool   `json:"has_voted" gorm:"default:false"`
	HasClaimedRefund bool   `json:"has_claimed_refund" gorm:"default:false"`
}

// TableName 自定义表名
func (InvestmentModel) TableName() string {
	return "investment"
}
