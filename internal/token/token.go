package token

import (
	"context"
	"errors"
	"math/big"
)

// Service 资产转账服务。转账要么整笔生效，要么原样失败，不存在部分生效。
type Service interface {
	// TransferIn 从持有人账户拉取资产进入托管
	TransferIn(ctx context.Context, from string, amount *big.Int) error
	// TransferOut 从托管余额支付给收款人
	TransferOut(ctx context.Context, to string, amount *big.Int) error
}

// Provider 按合约地址提供奖励token的资产服务
type Provider interface {
	Token(address string) (Service, error)
}

var (
	// ErrInsufficientBalance 持有人余额或授权不足
	ErrInsufficientBalance = errors.New("insufficient balance or approval")
	// ErrInsufficientCustody 托管余额不足
	ErrInsufficientCustody = errors.New("insufficient custody balance")
)

// Scale 把整token数量换算成合约最小单位。
// 引擎内部始终按整token记账，只在转账边界做精度换算。
func Scale(whole uint64, decimals uint8) *big.Int {
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(new(big.Int).SetUint64(whole), exp)
}
