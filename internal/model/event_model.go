package model

import (
	"time"
)

// EventModel 引擎事件记录
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	EventType string `json:"event_type" gorm:"not null;index"`
	ProjectId int64  `json:"project_id" gorm:"not null;index"`
	Address   string `json:"address"`
	Amount    int64  `json:"amount"`
	Tokens    int64  `json:"tokens"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}
