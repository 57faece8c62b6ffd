package model

import (
	"time"
)

// InvestorProjectModel 投资人项目索引，按首次投资顺序追加
type InvestorProjectModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Address   string `json:"address" gorm:"not null;uniqueIndex:idx_investor_project"`
	ProjectId int64  `json:"project_id" gorm:"not null;uniqueIndex:idx_investor_project"`
	Position  int    `json:"position" gorm:"not null"`
}

// TableName 自定义表名
func (InvestorProjectModel) TableName() string {
	return "investor_project"
}
