package engine

import "time"

// EventType 引擎事件类型
type EventType string

const (
	EventProjectCreated      EventType = "project_created"
	EventTokensDeposited     EventType = "tokens_deposited"
	EventInvestmentMade      EventType = "investment_made"
	EventVoteCast            EventType = "vote_cast"
	EventProjectFailed       EventType = "project_failed"
	EventFundsClaimed        EventType = "funds_claimed"
	EventPlatformFeeClaimed  EventType = "platform_fee_claimed"
	EventTokensRefunded      EventType = "tokens_refunded"
	EventUnsoldTokensClaimed EventType = "unsold_tokens_claimed"
)

// Event 引擎事件，外部订阅者只读不回调
type Event struct {
	Type      EventType `json:"type"`
	ProjectID uint64    `json:"project_id"`
	Address   string    `json:"address"`
	Amount    uint64    `json:"amount"` // 募资币种最小单位
	Tokens    uint64    `json:"tokens"` // 整token
	At        time.Time `json:"at"`
}

// EventSink 事件出口
type EventSink interface {
	Emit(event Event)
}

type noopSink struct{}

func (noopSink) Emit(Event) {}
