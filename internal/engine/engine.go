package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/trungbq8/openfund/internal/logger"
	"github.com/trungbq8/openfund/internal/token"
)

// Engine 募资生命周期与结算引擎。
// 项目、投资账目以引擎内存态为准，所有变更操作在同一把锁内完成，
// 与原子化的资产转账一起保证不会留下半截效果。
type Engine struct {
	mu      sync.Mutex
	admin   string
	funding token.Service
	rewards token.Provider
	sink    EventSink
	now     func() time.Time

	projects         map[uint64]*Project
	investments      map[uint64]map[string]*Investment
	investorProjects map[string][]uint64
	hasInvested      map[string]map[uint64]bool
}

// New 创建结算引擎
func New(admin string, funding token.Service, rewards token.Provider, sink EventSink) *Engine {
	if sink == nil {
		sink = noopSink{}
	}
	return &Engine{
		admin:            admin,
		funding:          funding,
		rewards:          rewards,
		sink:             sink,
		now:              time.Now,
		projects:         make(map[uint64]*Project),
		investments:      make(map[uint64]map[string]*Investment),
		investorProjects: make(map[string][]uint64),
		hasInvested:      make(map[string]map[uint64]bool),
	}
}

// SetTimeFunc 替换引擎时钟（测试用）
func (e *Engine) SetTimeFunc(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// CreateProject 创建项目，仅平台管理员可调用。
// token价格必须能整除单份投资额，保证每一份投资换到整数个token。
func (e *Engine) CreateProject(ctx context.Context, caller string, id uint64, raiser string,
	tokenAddress string, tokensToSell, tokenPrice uint64, endFundingTime time.Time, tokenDecimals uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return ErrUnauthorized
	}
	if _, exists := e.projects[id]; exists {
		return ErrDuplicateProject
	}
	if tokenPrice == 0 || UnitValue%tokenPrice != 0 {
		return ErrInvalidPrice
	}

	e.projects[id] = &Project{
		ID:             id,
		Raiser:         raiser,
		TokenAddress:   tokenAddress,
		TokenDecimals:  tokenDecimals,
		TokensToSell:   tokensToSell,
		TokenPrice:     tokenPrice,
		EndFundingTime: endFundingTime,
		Status:         StatusCreated,
	}

	e.emit(Event{Type: EventProjectCreated, ProjectID: id, Address: raiser, Tokens: tokensToSell})
	return nil
}

// DepositTokens 项目方把全部待售token存入托管，之后进入募资期
func (e *Engine) DepositTokens(ctx context.Context, caller string, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	if caller != p.Raiser {
		return ErrUnauthorized
	}
	if p.Status != StatusCreated {
		return ErrInvalidState
	}

	reward, err := e.rewards.Token(p.TokenAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve reward token: %w", err)
	}

	scaled := token.Scale(p.TokensToSell, p.TokenDecimals)
	if err := reward.TransferIn(ctx, p.Raiser, scaled); err != nil {
		return err
	}

	p.Status = StatusRaising
	e.emit(Event{Type: EventTokensDeposited, ProjectID: id, Address: p.Raiser, Tokens: p.TokensToSell})
	return nil
}

// Invest 按份投资。拉取募资币种、立即发放对应token，两笔转账要么都发生要么都不发生。
func (e *Engine) Invest(ctx context.Context, caller string, id uint64, units uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	if p.Status != StatusRaising {
		return ErrInvalidState
	}
	if e.now().After(p.EndFundingTime) {
		return ErrFundingEnded
	}
	if units == 0 || units > MaxInvestmentUnits {
		return ErrInvalidUnits
	}

	inv := e.investments[id][caller]
	heldUnits := uint64(0)
	if inv != nil {
		heldUnits = inv.InvestmentAmount / UnitValue
	}
	if heldUnits+units > MaxInvestmentUnits {
		return ErrInvalidUnits
	}

	amount := units * UnitValue
	tokens := amount / p.TokenPrice
	if p.TokensSold+tokens > p.TokensToSell {
		return ErrInsufficientTokens
	}

	reward, err := e.rewards.Token(p.TokenAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve reward token: %w", err)
	}

	// 先收款再发token，发token失败则把款退回去
	if err := e.funding.TransferIn(ctx, caller, new(big.Int).SetUint64(amount)); err != nil {
		return err
	}
	if err := reward.TransferOut(ctx, caller, token.Scale(tokens, p.TokenDecimals)); err != nil {
		if rbErr := e.funding.TransferOut(ctx, caller, new(big.Int).SetUint64(amount)); rbErr != nil {
			logger.Error("Failed to roll back funding transfer for project %d investor %s: %v", id, caller, rbErr)
		}
		return err
	}

	first := inv == nil || inv.InvestmentAmount == 0
	if inv == nil {
		inv = &Investment{ProjectID: id, Investor: caller}
		if e.investments[id] == nil {
			e.investments[id] = make(map[string]*Investment)
		}
		e.investments[id][caller] = inv
	}

	inv.InvestmentAmount += amount
	inv.TokensOwed += tokens
	p.FundsRaised += amount
	p.TokensSold += tokens

	if first {
		p.InvestorsCount++
	}
	if !e.hasInvested[caller][id] {
		if e.hasInvested[caller] == nil {
			e.hasInvested[caller] = make(map[uint64]bool)
		}
		e.hasInvested[caller][id] = true
		e.investorProjects[caller] = append(e.investorProjects[caller], id)
	}

	e.emit(Event{Type: EventInvestmentMade, ProjectID: id, Address: caller, Amount: amount, Tokens: tokens})
	return nil
}

// VoteForRefund 投票要求集体退款。票权为投票人持有的token数，
// 累计票权严格超过已售token的一半时项目转为募资失败。
func (e *Engine) VoteForRefund(ctx context.Context, caller string, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	inv := e.investments[id][caller]
	if inv == nil || inv.TokensOwed == 0 {
		return ErrUnauthorized
	}

	now := e.now()
	if !now.After(p.EndFundingTime) || now.After(p.EndFundingTime.Add(VotingWindow)) {
		return ErrNotVotingWindow
	}
	if p.Status != StatusRaising && p.Status != StatusVoting {
		return ErrInvalidState
	}
	if inv.HasVoted {
		return ErrAlreadyVoted
	}

	// 惰性状态迁移：募资期结束后第一张票把项目带入投票期
	if p.Status == StatusRaising {
		p.Status = StatusVoting
	}

	inv.HasVoted = true
	p.VotersForRefundCount++
	p.VoteForRefundAmount += inv.TokensOwed

	e.emit(Event{Type: EventVoteCast, ProjectID: id, Address: caller, Tokens: inv.TokensOwed})

	if p.VoteForRefundAmount > p.TokensSold/2 {
		p.Status = StatusFailed
		e.emit(Event{Type: EventProjectFailed, ProjectID: id, Tokens: p.VoteForRefundAmount})
	}
	return nil
}

// GetRefund 募资失败后的退款：投资人退回全部token，拿回全部投资额。
// 每个投资人只能退一次。
func (e *Engine) GetRefund(ctx context.Context, caller string, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	inv := e.investments[id][caller]
	if inv == nil || inv.TokensOwed == 0 || inv.HasClaimedRefund {
		return ErrNoInvestment
	}
	if p.Status != StatusFailed {
		return ErrInvalidState
	}

	now := e.now()
	if !now.After(p.EndFundingTime.Add(VotingWindow)) || now.After(p.EndFundingTime.Add(RefundWindow)) {
		return ErrNotRefundWindow
	}

	reward, err := e.rewards.Token(p.TokenAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve reward token: %w", err)
	}

	// 先收回token再退款，退款失败则把token还回去
	scaledTokens := token.Scale(inv.TokensOwed, p.TokenDecimals)
	if err := reward.TransferIn(ctx, caller, scaledTokens); err != nil {
		return err
	}
	if err := e.funding.TransferOut(ctx, caller, new(big.Int).SetUint64(inv.InvestmentAmount)); err != nil {
		if rbErr := reward.TransferOut(ctx, caller, scaledTokens); rbErr != nil {
			logger.Error("Failed to roll back token transfer for project %d investor %s: %v", id, caller, rbErr)
		}
		return err
	}

	p.TokensSold -= inv.TokensOwed
	p.FundsRefunded += inv.InvestmentAmount
	inv.HasClaimedRefund = true

	e.emit(Event{Type: EventTokensRefunded, ProjectID: id, Address: caller,
		Amount: inv.InvestmentAmount, Tokens: inv.TokensOwed})
	return nil
}

// ClaimFunds 退款窗口结束后项目方领取募资款（扣除未退款部分的平台手续费）。
// 募资失败的项目不收手续费，未被退走的余款全额归项目方，状态保持失败。
func (e *Engine) ClaimFunds(ctx context.Context, caller string, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	if caller != p.Raiser {
		return ErrUnauthorized
	}
	if !e.now().After(p.EndFundingTime.Add(RefundWindow)) {
		return ErrInvalidState
	}
	if p.FundsClaimed {
		return ErrAlreadyClaimed
	}

	remaining := p.FundsRaised - p.FundsRefunded
	fee := uint64(0)
	if p.Status != StatusFailed {
		fee = remaining * PlatformFeePercent / 100
	}
	payout := remaining - fee

	if payout > 0 {
		if err := e.funding.TransferOut(ctx, p.Raiser, new(big.Int).SetUint64(payout)); err != nil {
			return err
		}
	}

	p.PlatformFee = fee
	p.FundsClaimed = true
	if p.Status == StatusRaising || p.Status == StatusVoting {
		p.Status = StatusCompleted
	}

	e.emit(Event{Type: EventFundsClaimed, ProjectID: id, Address: p.Raiser, Amount: payout})
	return nil
}

// ClaimPlatformFee 平台管理员领取手续费，募资失败的项目不收取
func (e *Engine) ClaimPlatformFee(ctx context.Context, caller string, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	if caller != e.admin {
		return ErrUnauthorized
	}
	if p.Status == StatusFailed {
		return fmt.Errorf("%w: project funding is failed", ErrInvalidState)
	}
	if !p.FundsClaimed {
		return ErrNotYetClaimed
	}
	if p.PlatformFeeClaimed {
		return ErrAlreadyClaimed
	}

	if p.PlatformFee > 0 {
		if err := e.funding.TransferOut(ctx, e.admin, new(big.Int).SetUint64(p.PlatformFee)); err != nil {
			return err
		}
	}

	p.PlatformFeeClaimed = true
	e.emit(Event{Type: EventPlatformFeeClaimed, ProjectID: id, Address: e.admin, Amount: p.PlatformFee})
	return nil
}

// ClaimUnsoldTokens 退款窗口结束后项目方取回未售出token。
// 退款减少的已售数量也算未售出，随同取回。
func (e *Engine) ClaimUnsoldTokens(ctx context.Context, caller string, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	if caller != p.Raiser {
		return ErrUnauthorized
	}
	if !e.now().After(p.EndFundingTime.Add(RefundWindow)) {
		return ErrInvalidState
	}
	if p.UnsoldTokensClaimed {
		return ErrAlreadyClaimed
	}

	unsold := p.TokensToSell - p.TokensSold
	if unsold > 0 {
		reward, err := e.rewards.Token(p.TokenAddress)
		if err != nil {
			return fmt.Errorf("failed to resolve reward token: %w", err)
		}
		if err := reward.TransferOut(ctx, p.Raiser, token.Scale(unsold, p.TokenDecimals)); err != nil {
			return err
		}
	}

	p.UnsoldTokensClaimed = true
	e.emit(Event{Type: EventUnsoldTokensClaimed, ProjectID: id, Address: p.Raiser, Tokens: unsold})
	return nil
}

// GetProjectDetails 项目快照
func (e *Engine) GetProjectDetails(id uint64) (Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	return *p, nil
}

// GetInvestmentDetails 投资快照
func (e *Engine) GetInvestmentDetails(id uint64, investor string) (Investment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.projects[id]; !ok {
		return Investment{}, ErrProjectNotFound
	}
	inv := e.investments[id][investor]
	if inv == nil {
		return Investment{}, ErrNoInvestment
	}
	return *inv, nil
}

// GetInvestorProjects 投资人投过的项目id，按首次投资顺序，不重复
func (e *Engine) GetInvestorProjects(investor string) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := e.investorProjects[investor]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// Snapshot 引擎全量快照，镜像任务落库用
type Snapshot struct {
	Projects         []Project
	Investments      []Investment
	InvestorProjects map[string][]uint64
}

// Snapshot 导出当前全量状态的副本
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{InvestorProjects: make(map[string][]uint64, len(e.investorProjects))}
	for _, p := range e.projects {
		snap.Projects = append(snap.Projects, *p)
	}
	for _, invs := range e.investments {
		for _, inv := range invs {
			snap.Investments = append(snap.Investments, *inv)
		}
	}
	for addr, ids := range e.investorProjects {
		out := make([]uint64, len(ids))
		copy(out, ids)
		snap.InvestorProjects[addr] = out
	}
	return snap
}

// Restore 启动时从镜像库恢复状态，只允许在对外服务前调用一次
func (e *Engine) Restore(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range snap.Projects {
		p := snap.Projects[i]
		e.projects[p.ID] = &p
	}
	for i := range snap.Investments {
		inv := snap.Investments[i]
		if e.investments[inv.ProjectID] == nil {
			e.investments[inv.ProjectID] = make(map[string]*Investment)
		}
		e.investments[inv.ProjectID][inv.Investor] = &inv
	}
	for addr, ids := range snap.InvestorProjects {
		out := make([]uint64, len(ids))
		copy(out, ids)
		e.investorProjects[addr] = out
		for _, id := range ids {
			if e.hasInvested[addr] == nil {
				e.hasInvested[addr] = make(map[uint64]bool)
			}
			e.hasInvested[addr][id] = true
		}
	}
}

func (e *Engine) emit(event Event) {
	event.At = e.now()
	e.sink.Emit(event)
}
