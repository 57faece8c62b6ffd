package engine

import "time"

// ProjectStatus 项目状态
type ProjectStatus uint8

const (
	StatusCreated   ProjectStatus = iota // 已创建，等待项目方存入token
	StatusRaising                        // 募资期
	StatusVoting                         // 投票期
	StatusFailed                         // 募资失败，可退款
	StatusCompleted                      // 募资完成
)

// String 状态的落库/展示名称
func (s ProjectStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRaising:
		return "raising"
	case StatusVoting:
		return "voting"
	case StatusFailed:
		return "failed"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

const (
	// UnitValue 单份投资额：100 USDT（6位小数的最小单位计）
	UnitValue uint64 = 100_000_000
	// MaxInvestmentUnits 单个投资人在单个项目的份数上限
	MaxInvestmentUnits uint64 = 10
	// PlatformFeePercent 平台手续费百分比
	PlatformFeePercent uint64 = 5
	// VotingWindow 募资结束后的投票窗口
	VotingWindow = 3 * 24 * time.Hour
	// RefundWindow 募资结束后的退款窗口（含投票窗口）
	RefundWindow = 4 * 24 * time.Hour
)

// Project 项目账目。token数量按整token计，募资金额按最小单位计。
type Project struct {
	ID             uint64        `json:"id"`
	Raiser         string        `json:"raiser"`
	TokenAddress   string        `json:"token_address"`
	TokenDecimals  uint8         `json:"token_decimals"`
	TokensToSell   uint64        `json:"tokens_to_sell"`
	TokensSold     uint64        `json:"tokens_sold"`
	TokenPrice     uint64        `json:"token_price"`
	FundsRaised    uint64        `json:"funds_raised"`
	FundsRefunded  uint64        `json:"funds_refunded"`
	PlatformFee    uint64        `json:"platform_fee"`
	EndFundingTime time.Time     `json:"end_funding_time"`
	Status         ProjectStatus `json:"status"`

	InvestorsCount       uint64 `json:"investors_count"`
	VotersForRefundCount uint64 `json:"voters_for_refund_count"`
	VoteForRefundAmount  uint64 `json:"vote_for_refund_amount"`

	FundsClaimed        bool `json:"funds_claimed"`
	PlatformFeeClaimed  bool `json:"platform_fee_claimed"`
	UnsoldTokensClaimed bool `json:"unsold_tokens_claimed"`
}

// Investment 投资账目，每个(项目,投资人)一条，多次投资累加
type Investment struct {
	ProjectID        uint64 `json:"project_id"`
	Investor         string `json:"investor"`
	InvestmentAmount uint64 `json:"investment_amount"`
	TokensOwed       uint64 `json:"tokens_owed"`
	HasVoted         bool   `json:"has_voted"`
	HasClaimedRefund bool   `json:"has_claimed_refund"`
}
