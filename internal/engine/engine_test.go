package engine_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/token"
)

const (
	admin  = "admin"
	raiser = "raiser"
	alice  = "alice"
	bob    = "bob"
	carol  = "carol"

	usdtAddr  = "usdt"
	tokenAddr = "ptk"

	projectID     = uint64(1)
	tokenPrice    = uint64(500000) // 0.5 USDT
	tokensToSell  = uint64(100000)
	tokenDecimals = uint8(18)
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordSink struct {
	mu     sync.Mutex
	events []engine.Event
}

func (s *recordSink) Emit(event engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordSink) count(eventType engine.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T) (*engine.Engine, *token.MemoryProvider, *fakeClock, *recordSink) {
	t.Helper()

	provider := token.NewMemoryProvider()
	funding := provider.Ledger(usdtAddr)
	for _, addr := range []string{alice, bob, carol} {
		funding.Credit(addr, big.NewInt(3_000_000_000)) // 3000 USDT
	}
	provider.Ledger(tokenAddr).Credit(raiser, token.Scale(tokensToSell, tokenDecimals))

	sink := &recordSink{}
	eng := engine.New(admin, funding, provider, sink)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	eng.SetTimeFunc(clock.Now)
	return eng, provider, clock, sink
}

// endTime 项目募资截止时间：基准时间+24h
func endTime(clock *fakeClock) time.Time {
	return time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
}

func createProject(t *testing.T, eng *engine.Engine, clock *fakeClock) {
	t.Helper()
	err := eng.CreateProject(context.Background(), admin, projectID, raiser,
		tokenAddr, tokensToSell, tokenPrice, endTime(clock), tokenDecimals)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
}

func createAndDeposit(t *testing.T, eng *engine.Engine, clock *fakeClock) {
	t.Helper()
	createProject(t, eng, clock)
	if err := eng.DepositTokens(context.Background(), raiser, projectID); err != nil {
		t.Fatalf("DepositTokens: %v", err)
	}
}

func invest(t *testing.T, eng *engine.Engine, investor string, units uint64) {
	t.Helper()
	if err := eng.Invest(context.Background(), investor, projectID, units); err != nil {
		t.Fatalf("Invest(%s, %d): %v", investor, units, err)
	}
}

func vote(t *testing.T, eng *engine.Engine, investor string) {
	t.Helper()
	if err := eng.VoteForRefund(context.Background(), investor, projectID); err != nil {
		t.Fatalf("VoteForRefund(%s): %v", investor, err)
	}
}

func TestCreateProject(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createProject(t, eng, clock)

	p, err := eng.GetProjectDetails(projectID)
	if err != nil {
		t.Fatalf("GetProjectDetails: %v", err)
	}
	if p.Raiser != raiser || p.TokensToSell != tokensToSell || p.TokenPrice != tokenPrice {
		t.Errorf("unexpected project fields: %+v", p)
	}
	if p.Status != engine.StatusCreated {
		t.Errorf("status = %v, want created", p.Status)
	}

	err = eng.CreateProject(ctx, admin, projectID, raiser, tokenAddr, tokensToSell, tokenPrice, endTime(clock), tokenDecimals)
	if !errors.Is(err, engine.ErrDuplicateProject) {
		t.Errorf("duplicate id: err = %v, want ErrDuplicateProject", err)
	}

	err = eng.CreateProject(ctx, raiser, 2, raiser, tokenAddr, tokensToSell, tokenPrice, endTime(clock), tokenDecimals)
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("non-admin caller: err = %v, want ErrUnauthorized", err)
	}
}

func TestCreateProjectPriceRule(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		price uint64
		valid bool
	}{
		{"price 0.1 USDT", 100000, true},
		{"price 0.5 USDT", 500000, true},
		{"price 100 USDT", 100_000_000, true},
		{"zero price", 0, false},
		{"price not dividing unit", 123456, false},
		{"price above unit", 300_000_000, false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.CreateProject(ctx, admin, uint64(100+i), raiser,
				tokenAddr, tokensToSell, tt.price, endTime(clock), tokenDecimals)
			if tt.valid && err != nil {
				t.Errorf("price %d: err = %v, want nil", tt.price, err)
			}
			if !tt.valid && !errors.Is(err, engine.ErrInvalidPrice) {
				t.Errorf("price %d: err = %v, want ErrInvalidPrice", tt.price, err)
			}
		})
	}
}

func TestDepositTokens(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createProject(t, eng, clock)

	if err := eng.DepositTokens(ctx, alice, projectID); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("non-raiser deposit: err = %v, want ErrUnauthorized", err)
	}

	if err := eng.DepositTokens(ctx, raiser, projectID); err != nil {
		t.Fatalf("DepositTokens: %v", err)
	}

	p, _ := eng.GetProjectDetails(projectID)
	if p.Status != engine.StatusRaising {
		t.Errorf("status = %v, want raising", p.Status)
	}

	custody := provider.Ledger(tokenAddr).CustodyBalance()
	if custody.Cmp(token.Scale(tokensToSell, tokenDecimals)) != 0 {
		t.Errorf("custody balance = %v, want full deposit", custody)
	}

	if err := eng.DepositTokens(ctx, raiser, projectID); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("second deposit: err = %v, want ErrInvalidState", err)
	}
}

func TestInvest(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)

	createAndDeposit(t, eng, clock)

	invest(t, eng, alice, 2) // 200 USDT

	p, _ := eng.GetProjectDetails(projectID)
	if p.FundsRaised != 2*engine.UnitValue {
		t.Errorf("fundsRaised = %d, want %d", p.FundsRaised, 2*engine.UnitValue)
	}
	wantTokens := 2 * engine.UnitValue / tokenPrice // 400
	if p.TokensSold != wantTokens {
		t.Errorf("tokensSold = %d, want %d", p.TokensSold, wantTokens)
	}
	if p.InvestorsCount != 1 {
		t.Errorf("investorsCount = %d, want 1", p.InvestorsCount)
	}

	// token立即发放
	got := provider.Ledger(tokenAddr).BalanceOf(alice)
	if got.Cmp(token.Scale(wantTokens, tokenDecimals)) != 0 {
		t.Errorf("alice token balance = %v, want %d tokens", got, wantTokens)
	}

	// 同一投资人追加投资不重复计数
	invest(t, eng, alice, 3)
	p, _ = eng.GetProjectDetails(projectID)
	if p.InvestorsCount != 1 {
		t.Errorf("investorsCount after repeat = %d, want 1", p.InvestorsCount)
	}
	inv, err := eng.GetInvestmentDetails(projectID, alice)
	if err != nil {
		t.Fatalf("GetInvestmentDetails: %v", err)
	}
	if inv.InvestmentAmount != 5*engine.UnitValue || inv.TokensOwed != 5*engine.UnitValue/tokenPrice {
		t.Errorf("unexpected cumulative investment: %+v", inv)
	}

	if got := eng.GetInvestorProjects(alice); len(got) != 1 || got[0] != projectID {
		t.Errorf("investor index = %v, want [%d]", got, projectID)
	}
}

func TestInvestValidation(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)

	if err := eng.Invest(ctx, alice, projectID, 0); !errors.Is(err, engine.ErrInvalidUnits) {
		t.Errorf("zero units: err = %v, want ErrInvalidUnits", err)
	}
	if err := eng.Invest(ctx, alice, projectID, 11); !errors.Is(err, engine.ErrInvalidUnits) {
		t.Errorf("11 units: err = %v, want ErrInvalidUnits", err)
	}

	// 累计超过10份
	invest(t, eng, alice, 8)
	if err := eng.Invest(ctx, alice, projectID, 3); !errors.Is(err, engine.ErrInvalidUnits) {
		t.Errorf("cumulative 11 units: err = %v, want ErrInvalidUnits", err)
	}
	invest(t, eng, alice, 2) // 刚好10份

	// 募资期结束后拒绝投资
	clock.Set(endTime(clock).Add(time.Minute))
	if err := eng.Invest(ctx, bob, projectID, 1); !errors.Is(err, engine.ErrFundingEnded) {
		t.Errorf("after end: err = %v, want ErrFundingEnded", err)
	}
}

func TestInvestRequiresRaisingStatus(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createProject(t, eng, clock)

	if err := eng.Invest(ctx, alice, projectID, 1); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("invest before deposit: err = %v, want ErrInvalidState", err)
	}
	if err := eng.Invest(ctx, alice, 999, 1); !errors.Is(err, engine.ErrProjectNotFound) {
		t.Errorf("unknown project: err = %v, want ErrProjectNotFound", err)
	}
}

// failingRewards 在发token环节注入失败
type failingRewards struct {
	inner   *token.MemoryProvider
	failOut bool
}

func (f *failingRewards) Token(address string) (token.Service, error) {
	svc, err := f.inner.Token(address)
	if err != nil {
		return nil, err
	}
	return &failingService{inner: svc, provider: f}, nil
}

type failingService struct {
	inner    token.Service
	provider *failingRewards
}

func (s *failingService) TransferIn(ctx context.Context, from string, amount *big.Int) error {
	return s.inner.TransferIn(ctx, from, amount)
}

func (s *failingService) TransferOut(ctx context.Context, to string, amount *big.Int) error {
	if s.provider.failOut {
		return errors.New("transfer reverted")
	}
	return s.inner.TransferOut(ctx, to, amount)
}

func TestInvestRollsBackOnTokenTransferFailure(t *testing.T) {
	provider := token.NewMemoryProvider()
	funding := provider.Ledger(usdtAddr)
	funding.Credit(alice, big.NewInt(1_000_000_000))
	provider.Ledger(tokenAddr).Credit(raiser, token.Scale(tokensToSell, tokenDecimals))

	rewards := &failingRewards{inner: provider}
	eng := engine.New(admin, funding, rewards, nil)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	eng.SetTimeFunc(clock.Now)

	createAndDeposit(t, eng, clock)

	before := funding.BalanceOf(alice)
	rewards.failOut = true
	err := eng.Invest(context.Background(), alice, projectID, 2)
	if err == nil {
		t.Fatal("Invest succeeded despite token transfer failure")
	}

	// 收款必须回滚，账目不得变化
	if after := funding.BalanceOf(alice); after.Cmp(before) != 0 {
		t.Errorf("alice funding balance changed: before %v after %v", before, after)
	}
	p, _ := eng.GetProjectDetails(projectID)
	if p.FundsRaised != 0 || p.TokensSold != 0 || p.InvestorsCount != 0 {
		t.Errorf("counters mutated on failed invest: %+v", p)
	}
}

func TestVoteMajorityAcrossTwoVotes(t *testing.T) {
	eng, _, clock, sink := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2) // 400 tokens
	invest(t, eng, bob, 3)   // 600 tokens
	invest(t, eng, carol, 1) // 200 tokens

	clock.Set(endTime(clock).Add(time.Hour))

	// 第一张票：400 <= 1200/2，不触发失败，惰性进入投票期
	vote(t, eng, alice)
	p, _ := eng.GetProjectDetails(projectID)
	if p.Status != engine.StatusVoting {
		t.Errorf("status after first vote = %v, want voting", p.Status)
	}

	// 第二张票：400+600 > 600，触发失败
	vote(t, eng, bob)
	p, _ = eng.GetProjectDetails(projectID)
	if p.Status != engine.StatusFailed {
		t.Errorf("status after second vote = %v, want failed", p.Status)
	}
	if p.VotersForRefundCount != 2 || p.VoteForRefundAmount != 1000 {
		t.Errorf("vote tally = %d voters / %d tokens, want 2 / 1000", p.VotersForRefundCount, p.VoteForRefundAmount)
	}
	if sink.count(engine.EventProjectFailed) != 1 {
		t.Errorf("project_failed events = %d, want 1", sink.count(engine.EventProjectFailed))
	}

	// 失败后投票拒绝，状态不再变化
	if err := eng.VoteForRefund(ctx, carol, projectID); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("vote after failure: err = %v, want ErrInvalidState", err)
	}
}

func TestVoteSingleInvestorImmediateFailure(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)

	clock.Set(endTime(clock).Add(time.Hour))
	vote(t, eng, alice) // 持有100%已售token

	p, _ := eng.GetProjectDetails(projectID)
	if p.Status != engine.StatusFailed {
		t.Errorf("status = %v, want failed after 100%% vote", p.Status)
	}
}

func TestVoteWindowAndGuards(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 1)

	// 募资期内不能投票
	if err := eng.VoteForRefund(ctx, alice, projectID); !errors.Is(err, engine.ErrNotVotingWindow) {
		t.Errorf("vote during raising: err = %v, want ErrNotVotingWindow", err)
	}

	// 非投资人不能投票
	clock.Set(endTime(clock).Add(time.Hour))
	if err := eng.VoteForRefund(ctx, bob, projectID); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("non-investor vote: err = %v, want ErrUnauthorized", err)
	}

	// 重复投票
	vote(t, eng, alice)
	if err := eng.VoteForRefund(ctx, alice, projectID); !errors.Is(err, engine.ErrAlreadyVoted) {
		t.Errorf("double vote: err = %v, want ErrAlreadyVoted", err)
	}
}

func TestVoteWindowCloses(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 1)

	clock.Set(endTime(clock).Add(engine.VotingWindow).Add(time.Minute))
	if err := eng.VoteForRefund(ctx, alice, projectID); !errors.Is(err, engine.ErrNotVotingWindow) {
		t.Errorf("vote after window: err = %v, want ErrNotVotingWindow", err)
	}
}

func failProject(t *testing.T, eng *engine.Engine, clock *fakeClock) {
	t.Helper()
	clock.Set(endTime(clock).Add(time.Hour))
	vote(t, eng, alice)
	vote(t, eng, bob)
	p, _ := eng.GetProjectDetails(projectID)
	if p.Status != engine.StatusFailed {
		t.Fatalf("setup: status = %v, want failed", p.Status)
	}
}

func TestGetRefundRoundTrip(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)
	invest(t, eng, bob, 3)

	funding := provider.Ledger(usdtAddr)
	balanceAfterInvest := funding.BalanceOf(alice)

	failProject(t, eng, clock)

	// 投票窗口内还不能退款
	if err := eng.GetRefund(ctx, alice, projectID); !errors.Is(err, engine.ErrNotRefundWindow) {
		t.Errorf("refund during voting window: err = %v, want ErrNotRefundWindow", err)
	}

	clock.Set(endTime(clock).Add(engine.VotingWindow).Add(time.Hour))
	if err := eng.GetRefund(ctx, alice, projectID); err != nil {
		t.Fatalf("GetRefund: %v", err)
	}

	// 退回整笔投资款，token全部收回
	wantBalance := new(big.Int).Add(balanceAfterInvest, big.NewInt(int64(2*engine.UnitValue)))
	if got := funding.BalanceOf(alice); got.Cmp(wantBalance) != 0 {
		t.Errorf("alice funding balance = %v, want %v", got, wantBalance)
	}
	if got := provider.Ledger(tokenAddr).BalanceOf(alice); got.Sign() != 0 {
		t.Errorf("alice token balance = %v, want 0", got)
	}

	p, _ := eng.GetProjectDetails(projectID)
	wantSold := 3 * engine.UnitValue / tokenPrice // 只剩bob的600
	if p.TokensSold != wantSold {
		t.Errorf("tokensSold after refund = %d, want %d", p.TokensSold, wantSold)
	}
	if p.FundsRefunded != 2*engine.UnitValue {
		t.Errorf("fundsRefunded = %d, want %d", p.FundsRefunded, 2*engine.UnitValue)
	}

	// 重复退款
	if err := eng.GetRefund(ctx, alice, projectID); !errors.Is(err, engine.ErrNoInvestment) {
		t.Errorf("double refund: err = %v, want ErrNoInvestment", err)
	}
}

func TestGetRefundGuards(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)

	// 未失败的项目不能退款
	clock.Set(endTime(clock).Add(engine.VotingWindow).Add(time.Hour))
	if err := eng.GetRefund(ctx, alice, projectID); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("refund on non-failed project: err = %v, want ErrInvalidState", err)
	}
	if err := eng.GetRefund(ctx, bob, projectID); !errors.Is(err, engine.ErrNoInvestment) {
		t.Errorf("refund without investment: err = %v, want ErrNoInvestment", err)
	}
}

func TestGetRefundWindowCloses(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)
	invest(t, eng, bob, 3)
	failProject(t, eng, clock)

	clock.Set(endTime(clock).Add(engine.RefundWindow).Add(time.Minute))
	if err := eng.GetRefund(ctx, alice, projectID); !errors.Is(err, engine.ErrNotRefundWindow) {
		t.Errorf("refund after window: err = %v, want ErrNotRefundWindow", err)
	}
}

func TestClaimFundsCompleted(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)
	invest(t, eng, bob, 3)

	// 窗口未结束
	if err := eng.ClaimFunds(ctx, raiser, projectID); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("claim before window over: err = %v, want ErrInvalidState", err)
	}

	clock.Set(endTime(clock).Add(engine.RefundWindow).Add(time.Hour))

	if err := eng.ClaimFunds(ctx, alice, projectID); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("non-raiser claim: err = %v, want ErrUnauthorized", err)
	}

	if err := eng.ClaimFunds(ctx, raiser, projectID); err != nil {
		t.Fatalf("ClaimFunds: %v", err)
	}

	raised := 5 * engine.UnitValue
	fee := raised * engine.PlatformFeePercent / 100
	want := big.NewInt(int64(raised - fee))
	if got := provider.Ledger(usdtAddr).BalanceOf(raiser); got.Cmp(want) != 0 {
		t.Errorf("raiser payout = %v, want %v", got, want)
	}

	p, _ := eng.GetProjectDetails(projectID)
	if p.Status != engine.StatusCompleted || !p.FundsClaimed || p.PlatformFee != fee {
		t.Errorf("unexpected project after claim: %+v", p)
	}

	if err := eng.ClaimFunds(ctx, raiser, projectID); !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Errorf("double claim: err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestClaimFundsOnFailedProjectAfterRefund(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)
	invest(t, eng, bob, 3)
	failProject(t, eng, clock)

	// alice在退款窗口内退款
	clock.Set(endTime(clock).Add(engine.VotingWindow).Add(time.Hour))
	if err := eng.GetRefund(ctx, alice, projectID); err != nil {
		t.Fatalf("GetRefund: %v", err)
	}

	clock.Set(endTime(clock).Add(engine.RefundWindow).Add(time.Hour))
	if err := eng.ClaimFunds(ctx, raiser, projectID); err != nil {
		t.Fatalf("ClaimFunds: %v", err)
	}

	// 失败项目不扣手续费，剩余款 = 总募资 - 已退款 全额归项目方；状态保持失败
	remaining := 3 * engine.UnitValue
	want := big.NewInt(int64(remaining))
	if got := provider.Ledger(usdtAddr).BalanceOf(raiser); got.Cmp(want) != 0 {
		t.Errorf("raiser payout = %v, want %v", got, want)
	}

	p, _ := eng.GetProjectDetails(projectID)
	if p.Status != engine.StatusFailed {
		t.Errorf("status = %v, want failed to stay failed", p.Status)
	}
	if p.PlatformFee != 0 {
		t.Errorf("platformFee = %d, want 0 on failed project", p.PlatformFee)
	}

	// 失败项目不收平台手续费
	err := eng.ClaimPlatformFee(ctx, admin, projectID)
	if !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("platform fee on failed project: err = %v, want ErrInvalidState", err)
	}

	// 退款+领款之后募资币种托管清零，没有资金滞留
	if got := provider.Ledger(usdtAddr).CustodyBalance(); got.Sign() != 0 {
		t.Errorf("funding custody after all claims = %v, want 0", got)
	}
}

func TestClaimFundsBeforeDepositKeepsCreatedStatus(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createProject(t, eng, clock)

	clock.Set(endTime(clock).Add(engine.RefundWindow).Add(time.Hour))
	if err := eng.ClaimFunds(ctx, raiser, projectID); err != nil {
		t.Fatalf("ClaimFunds: %v", err)
	}

	// 没存入过token的项目没有经历募资期，不得跳到Completed
	p, _ := eng.GetProjectDetails(projectID)
	if p.Status != engine.StatusCreated {
		t.Errorf("status = %v, want created", p.Status)
	}
	if !p.FundsClaimed {
		t.Error("fundsClaimed = false, want true")
	}
}

func TestClaimPlatformFee(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)
	invest(t, eng, bob, 3)

	clock.Set(endTime(clock).Add(engine.RefundWindow).Add(time.Hour))

	// 募资款未领取前不能收手续费
	if err := eng.ClaimPlatformFee(ctx, admin, projectID); !errors.Is(err, engine.ErrNotYetClaimed) {
		t.Errorf("fee before funds claimed: err = %v, want ErrNotYetClaimed", err)
	}

	if err := eng.ClaimFunds(ctx, raiser, projectID); err != nil {
		t.Fatalf("ClaimFunds: %v", err)
	}

	if err := eng.ClaimPlatformFee(ctx, raiser, projectID); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("non-admin fee claim: err = %v, want ErrUnauthorized", err)
	}

	if err := eng.ClaimPlatformFee(ctx, admin, projectID); err != nil {
		t.Fatalf("ClaimPlatformFee: %v", err)
	}

	fee := 5 * engine.UnitValue * engine.PlatformFeePercent / 100
	if got := provider.Ledger(usdtAddr).BalanceOf(admin); got.Cmp(big.NewInt(int64(fee))) != 0 {
		t.Errorf("admin fee = %v, want %d", got, fee)
	}

	if err := eng.ClaimPlatformFee(ctx, admin, projectID); !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Errorf("double fee claim: err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestClaimUnsoldTokens(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2) // 卖出400

	if err := eng.ClaimUnsoldTokens(ctx, raiser, projectID); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("claim before window over: err = %v, want ErrInvalidState", err)
	}

	clock.Set(endTime(clock).Add(engine.RefundWindow).Add(time.Hour))

	if err := eng.ClaimUnsoldTokens(ctx, alice, projectID); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("non-raiser claim: err = %v, want ErrUnauthorized", err)
	}

	if err := eng.ClaimUnsoldTokens(ctx, raiser, projectID); err != nil {
		t.Fatalf("ClaimUnsoldTokens: %v", err)
	}

	sold := 2 * engine.UnitValue / tokenPrice
	want := token.Scale(tokensToSell-sold, tokenDecimals)
	if got := provider.Ledger(tokenAddr).BalanceOf(raiser); got.Cmp(want) != 0 {
		t.Errorf("raiser unsold tokens = %v, want %v", got, want)
	}

	if err := eng.ClaimUnsoldTokens(ctx, raiser, projectID); !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Errorf("double claim: err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestClaimUnsoldTokensIncludesRefundedTokens(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)
	ctx := context.Background()

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)
	invest(t, eng, bob, 3)
	failProject(t, eng, clock)

	clock.Set(endTime(clock).Add(engine.VotingWindow).Add(time.Hour))
	if err := eng.GetRefund(ctx, alice, projectID); err != nil {
		t.Fatalf("GetRefund: %v", err)
	}

	clock.Set(endTime(clock).Add(engine.RefundWindow).Add(time.Hour))
	if err := eng.ClaimUnsoldTokens(ctx, raiser, projectID); err != nil {
		t.Fatalf("ClaimUnsoldTokens: %v", err)
	}

	// alice退回的token也随未售token一起取回
	soldRemaining := 3 * engine.UnitValue / tokenPrice
	want := token.Scale(tokensToSell-soldRemaining, tokenDecimals)
	if got := provider.Ledger(tokenAddr).BalanceOf(raiser); got.Cmp(want) != 0 {
		t.Errorf("raiser reclaimed tokens = %v, want %v", got, want)
	}
}

func TestFundsRaisedMatchesInvestmentSum(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)
	invest(t, eng, bob, 3)
	invest(t, eng, carol, 1)
	invest(t, eng, alice, 4)

	var sum uint64
	for _, investor := range []string{alice, bob, carol} {
		inv, err := eng.GetInvestmentDetails(projectID, investor)
		if err != nil {
			t.Fatalf("GetInvestmentDetails(%s): %v", investor, err)
		}
		sum += inv.InvestmentAmount
	}

	p, _ := eng.GetProjectDetails(projectID)
	if p.FundsRaised != sum {
		t.Errorf("fundsRaised = %d, sum of investments = %d", p.FundsRaised, sum)
	}
	if p.TokensSold > p.TokensToSell {
		t.Errorf("tokensSold %d exceeds tokensToSell %d", p.TokensSold, p.TokensToSell)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	eng, provider, clock, _ := newTestEngine(t)

	createAndDeposit(t, eng, clock)
	invest(t, eng, alice, 2)
	invest(t, eng, bob, 3)

	snap := eng.Snapshot()

	restored := engine.New(admin, provider.Ledger(usdtAddr), provider, nil)
	restored.SetTimeFunc(clock.Now)
	restored.Restore(snap)

	p1, _ := eng.GetProjectDetails(projectID)
	p2, err := restored.GetProjectDetails(projectID)
	if err != nil {
		t.Fatalf("GetProjectDetails after restore: %v", err)
	}
	if p1 != p2 {
		t.Errorf("restored project differs:\n got %+v\nwant %+v", p2, p1)
	}

	inv1, _ := eng.GetInvestmentDetails(projectID, alice)
	inv2, err := restored.GetInvestmentDetails(projectID, alice)
	if err != nil {
		t.Fatalf("GetInvestmentDetails after restore: %v", err)
	}
	if inv1 != inv2 {
		t.Errorf("restored investment differs:\n got %+v\nwant %+v", inv2, inv1)
	}

	// 恢复后去重标记仍然生效
	clock.Set(endTime(clock).Add(-time.Hour))
	if err := restored.Invest(context.Background(), alice, projectID, 1); err != nil {
		t.Fatalf("Invest after restore: %v", err)
	}
	p2, _ = restored.GetProjectDetails(projectID)
	if p2.InvestorsCount != 2 {
		t.Errorf("investorsCount after restore+invest = %d, want 2", p2.InvestorsCount)
	}
	if got := restored.GetInvestorProjects(alice); len(got) != 1 {
		t.Errorf("investor index duplicated after restore: %v", got)
	}
}
