package token

import (
	"context"
	"math/big"
	"sync"
)

// CustodyLedger 进程内资产账本，memory模式下代替链上合约。
// 账户余额和托管余额都在一把锁内变更，单笔转账天然原子。
type CustodyLedger struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	custody  *big.Int
}

// NewCustodyLedger 创建进程内资产账本
func NewCustodyLedger() *CustodyLedger {
	return &CustodyLedger{
		balances: make(map[string]*big.Int),
		custody:  new(big.Int),
	}
}

// Credit 给账户充值（初始化余额用）
func (l *CustodyLedger) Credit(address string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance(address).Add(l.balance(address), amount)
}

// BalanceOf 查询账户余额
func (l *CustodyLedger) BalanceOf(address string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(address))
}

// CustodyBalance 查询托管余额
func (l *CustodyLedger) CustodyBalance() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.custody)
}

// TransferIn 从持有人账户划转进托管
func (l *CustodyLedger) TransferIn(ctx context.Context, from string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balance(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	l.custody.Add(l.custody, amount)
	return nil
}

// TransferOut 从托管余额支付给收款人
func (l *CustodyLedger) TransferOut(ctx context.Context, to string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.custody.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}
	l.custody.Sub(l.custody, amount)
	l.balance(to).Add(l.balance(to), amount)
	return nil
}

func (l *CustodyLedger) balance(address string) *big.Int {
	bal, ok := l.balances[address]
	if !ok {
		bal = new(big.Int)
		l.balances[address] = bal
	}
	return bal
}

// MemoryProvider 按地址惰性创建进程内账本
type MemoryProvider struct {
	mu      sync.Mutex
	ledgers map[string]*CustodyLedger
}

// NewMemoryProvider 创建进程内账本Provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{ledgers: make(map[string]*CustodyLedger)}
}

// Token 获取指定地址的账本，不存在则创建
func (p *MemoryProvider) Token(address string) (Service, error) {
	return p.Ledger(address), nil
}

// Ledger 获取底层账本（测试和本地模式充值用）
func (p *MemoryProvider) Ledger(address string) *CustodyLedger {
	p.mu.Lock()
	defer p.mu.Unlock()

	ledger, ok := p.ledgers[address]
	if !ok {
		ledger = NewCustodyLedger()
		p.ledgers[address] = ledger
	}
	return ledger
}
