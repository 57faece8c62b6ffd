package engine

import "errors"

// 引擎错误分类。失败的调用不留下任何账目变更。
var (
	ErrUnauthorized       = errors.New("unauthorized caller")
	ErrInvalidState       = errors.New("invalid project status")
	ErrInvalidUnits       = errors.New("invalid units amount")
	ErrInvalidPrice       = errors.New("invalid token price")
	ErrNotVotingWindow    = errors.New("not in voting window")
	ErrNotRefundWindow    = errors.New("not in refund window")
	ErrFundingEnded       = errors.New("funding period has ended")
	ErrAlreadyVoted       = errors.New("already voted")
	ErrAlreadyClaimed     = errors.New("already claimed")
	ErrNotYetClaimed      = errors.New("funds not claimed yet")
	ErrDuplicateProject   = errors.New("project already exists")
	ErrNoInvestment       = errors.New("no investment found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrInsufficientTokens = errors.New("insufficient tokens remaining for sale")
)
