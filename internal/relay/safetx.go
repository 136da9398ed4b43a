package relay

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/chain"
)

// MultiSendAddress is the Gnosis MultiSend contract on Polygon.
const MultiSendAddress = "0xA238CBeb142c10Ef7Ad8442C6D1f9E89e07e7761"

const (
	// OperationCall executes a plain call from the Safe.
	OperationCall uint8 = 0
	// OperationDelegateCall is required for multiSend batches.
	OperationDelegateCall uint8 = 1
)

// SafeTransaction is one call to execute through the Safe proxy.
type SafeTransaction struct {
	To        common.Address
	Operation uint8
	Data      []byte
	Value     *big.Int
}

var (
	erc20ABI     abi.ABI
	erc1155ABI   abi.ABI
	multiSendABI abi.ABI
)

func init() {
	erc20ABI, _ = abi.JSON(strings.NewReader(chain.ERC20ABI))
	erc1155ABI, _ = abi.JSON(strings.NewReader(chain.ERC1155ABI))
	multiSendABI, _ = abi.JSON(strings.NewReader(`[{"inputs":[{"internalType":"bytes","name":"transactions","type":"bytes"}],"name":"multiSend","outputs":[],"stateMutability":"payable","type":"function"}]`))
}

// NewApproveTransaction builds an ERC-20 approve executed by the Safe.
func NewApproveTransaction(token, spender common.Address, amount *big.Int) (SafeTransaction, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return SafeTransaction{}, fmt.Errorf("pack approve: %w", err)
	}
	return SafeTransaction{To: token, Operation: OperationCall, Data: data, Value: big.NewInt(0)}, nil
}

// NewOperatorTransaction builds an ERC-1155 setApprovalForAll executed by
// the Safe.
func NewOperatorTransaction(token, operator common.Address, approved bool) (SafeTransaction, error) {
	data, err := erc1155ABI.Pack("setApprovalForAll", operator, approved)
	if err != nil {
		return SafeTransaction{}, fmt.Errorf("pack setApprovalForAll: %w", err)
	}
	return SafeTransaction{To: token, Operation: OperationCall, Data: data, Value: big.NewInt(0)}, nil
}

// NewTransferTransaction builds an ERC-20 transfer executed by the Safe.
func NewTransferTransaction(token, to common.Address, amount *big.Int) (SafeTransaction, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return SafeTransaction{}, fmt.Errorf("pack transfer: %w", err)
	}
	return SafeTransaction{To: token, Operation: OperationCall, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeBatch collapses one or more transactions into a single Safe
// execution target. A single transaction is executed directly; batches
// go through multiSend via delegatecall.
func EncodeBatch(txns []SafeTransaction) (to common.Address, data []byte, operation uint8, err error) {
	if len(txns) == 0 {
		return common.Address{}, nil, 0, fmt.Errorf("empty transaction batch")
	}
	if len(txns) == 1 {
		return txns[0].To, txns[0].Data, OperationCall, nil
	}

	// multiSend wire format per entry:
	// operation (1) + to (20) + value (32) + dataLength (32) + data
	var packed []byte
	for _, tx := range txns {
		value := tx.Value
		if value == nil {
			value = big.NewInt(0)
		}
		packed = append(packed, tx.Operation)
		packed = append(packed, tx.To.Bytes()...)
		packed = append(packed, common.LeftPadBytes(value.Bytes(), 32)...)
		packed = append(packed, common.LeftPadBytes(big.NewInt(int64(len(tx.Data))).Bytes(), 32)...)
		packed = append(packed, tx.Data...)
	}

	data, err = multiSendABI.Pack("multiSend", packed)
	if err != nil {
		return common.Address{}, nil, 0, fmt.Errorf("pack multiSend: %w", err)
	}
	return common.HexToAddress(MultiSendAddress), data, OperationDelegateCall, nil
}

// BuildSafeTxTypedData builds the EIP-712 payload the Safe owner signs.
func BuildSafeTxTypedData(chainID types.Chain, safeAddr, to common.Address, data []byte, operation uint8, nonce *big.Int) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"SafeTx": {
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "data", Type: "bytes"},
				{Name: "operation", Type: "uint8"},
				{Name: "safeTxGas", Type: "uint256"},
				{Name: "baseGas", Type: "uint256"},
				{Name: "gasPrice", Type: "uint256"},
				{Name: "gasToken", Type: "address"},
				{Name: "refundReceiver", Type: "address"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "SafeTx",
		Domain: apitypes.TypedDataDomain{
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: safeAddr.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"to":             to.Hex(),
			"value":          "0",
			"data":           data,
			"operation":      fmt.Sprintf("%d", operation),
			"safeTxGas":      "0",
			"baseGas":        "0",
			"gasPrice":       "0",
			"gasToken":       "0x0000000000000000000000000000000000000000",
			"refundReceiver": "0x0000000000000000000000000000000000000000",
			"nonce":          nonce.String(),
		},
	}
}
