package token

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ERC20标准ABI（只保留用到的方法）
const erc20ABI = `[
	{
		"constant": false,
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

// ERC20Provider erc20模式下的资产服务，托管账户由私钥对应的地址充当
type ERC20Provider struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	custody    common.Address
	chainID    *big.Int
	abi        abi.ABI
}

// NewERC20Provider 连接RPC节点并解析托管账户私钥
func NewERC20Provider(rpcURL, privateKeyHex string, chainID int64) (*ERC20Provider, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum client: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	return &ERC20Provider{
		client:     client,
		privateKey: privateKey,
		custody:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    big.NewInt(chainID),
		abi:        parsedABI,
	}, nil
}

// Custody 托管账户地址
func (p *ERC20Provider) Custody() string {
	return p.custody.Hex()
}

// Token 获取指定合约地址的资产服务
func (p *ERC20Provider) Token(address string) (Service, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid token address: %s", address)
	}
	return &erc20Token{provider: p, contract: common.HexToAddress(address)}, nil
}

// erc20Token 单个erc20合约上的转账操作
type erc20Token struct {
	provider *ERC20Provider
	contract common.Address
}

// TransferIn 通过transferFrom把持有人授权的资产拉进托管账户
func (t *erc20Token) TransferIn(ctx context.Context, from string, amount *big.Int) error {
	data, err := t.provider.abi.Pack("transferFrom",
		common.HexToAddress(from), t.provider.custody, amount)
	if err != nil {
		return fmt.Errorf("failed to pack transferFrom: %w", err)
	}

	if err := t.provider.send(ctx, t.contract, data); err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	}
	return nil
}

// TransferOut 从托管账户transfer给收款人
func (t *erc20Token) TransferOut(ctx context.Context, to string, amount *big.Int) error {
	data, err := t.provider.abi.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return fmt.Errorf("failed to pack transfer: %w", err)
	}

	if err := t.provider.send(ctx, t.contract, data); err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientCustody, err)
	}
	return nil
}

// send 签名发送交易并等待上链，回执失败视为转账失败
func (p *ERC20Provider) send(ctx context.Context, to common.Address, data []byte) error {
	nonce, err := p.client.PendingNonceAt(ctx, p.custody)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit, err := p.client.EstimateGas(ctx, ethereum.CallMsg{
		From: p.custody,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := p.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, p.client, signedTx)
	if err != nil {
		return fmt.Errorf("failed to wait for transaction %s: %w", signedTx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", signedTx.Hash().Hex())
	}
	return nil
}
