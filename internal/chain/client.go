package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/betdesk/gotrader/clob/types"
)

// receiptPollInterval paces WaitMined.
const receiptPollInterval = 2 * time.Second

// Client wraps an RPC connection with the token calls the trader needs.
// The private key is optional: without it the client is read-only and
// writes fail, which is the normal shape for non-custodial backends
// (their transactions go through the relay instead).
type Client struct {
	eth        *ethclient.Client
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	erc20ABI   abi.ABI
	erc1155ABI abi.ABI
}

// Dial connects to an RPC node. privateKey may be nil for read-only use.
func Dial(rpcURL string, chainID types.Chain, privateKey *ecdsa.PrivateKey) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc node: %w", err)
	}

	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	erc1155ABI, err := abi.JSON(strings.NewReader(ERC1155ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc1155 abi: %w", err)
	}

	return &Client{
		eth:        eth,
		chainID:    big.NewInt(int64(chainID)),
		privateKey: privateKey,
		erc20ABI:   erc20ABI,
		erc1155ABI: erc1155ABI,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// CanWrite reports whether this client can sign transactions.
func (c *Client) CanWrite() bool {
	return c.privateKey != nil
}

// SenderAddress returns the transaction-signing address.
func (c *Client) SenderAddress() (common.Address, error) {
	if c.privateKey == nil {
		return common.Address{}, fmt.Errorf("chain client is read-only")
	}
	return crypto.PubkeyToAddress(c.privateKey.PublicKey), nil
}

func (c *Client) call(ctx context.Context, contractABI abi.ABI, contract common.Address, method string, out interface{}, args ...interface{}) error {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}

	if err := contractABI.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

// BalanceOf reads an ERC-20 balance in raw token units.
func (c *Client) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := c.call(ctx, c.erc20ABI, token, "balanceOf", &balance, account); err != nil {
		return nil, err
	}
	return balance, nil
}

// Decimals reads an ERC-20 decimal count.
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	var decimals uint8
	if err := c.call(ctx, c.erc20ABI, token, "decimals", &decimals); err != nil {
		return 0, err
	}
	return decimals, nil
}

// Allowance reads an ERC-20 allowance in raw token units.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var allowance *big.Int
	if err := c.call(ctx, c.erc20ABI, token, "allowance", &allowance, owner, spender); err != nil {
		return nil, err
	}
	return allowance, nil
}

// ConditionalBalanceOf reads an ERC-1155 balance for one position id.
func (c *Client) ConditionalBalanceOf(ctx context.Context, token, account common.Address, positionID *big.Int) (*big.Int, error) {
	var balance *big.Int
	if err := c.call(ctx, c.erc1155ABI, token, "balanceOf", &balance, account, positionID); err != nil {
		return nil, err
	}
	return balance, nil
}

// IsApprovedForAll reads an ERC-1155 operator approval.
func (c *Client) IsApprovedForAll(ctx context.Context, token, account, operator common.Address) (bool, error) {
	var approved bool
	if err := c.call(ctx, c.erc1155ABI, token, "isApprovedForAll", &approved, account, operator); err != nil {
		return false, err
	}
	return approved, nil
}

// HasCode reports whether an address carries contract code.
func (c *Client) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("read code: %w", err)
	}
	return len(code) > 0, nil
}

// Approve grants an ERC-20 allowance and returns the transaction hash.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := c.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	return c.send(ctx, token, data)
}

// Transfer moves ERC-20 tokens from the sender to another address.
func (c *Client) Transfer(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error) {
	data, err := c.erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack transfer: %w", err)
	}
	return c.send(ctx, token, data)
}

// SetApprovalForAll grants or revokes an ERC-1155 operator.
func (c *Client) SetApprovalForAll(ctx context.Context, token, operator common.Address, approved bool) (common.Hash, error) {
	data, err := c.erc1155ABI.Pack("setApprovalForAll", operator, approved)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack setApprovalForAll: %w", err)
	}
	return c.send(ctx, token, data)
}

func (c *Client) send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	if c.privateKey == nil {
		return common.Hash{}, fmt.Errorf("chain client is read-only")
	}
	from := crypto.PubkeyToAddress(c.privateKey.PublicKey)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch gas price: %w", err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Data:  data,
		Value: big.NewInt(0),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return signedTx.Hash(), nil
}

// WaitMined polls until the transaction has a receipt or the context
// ends. Callers re-check approval state only after this returns.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
