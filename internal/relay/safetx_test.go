package relay

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betdesk/gotrader/clob/types"
)

func TestEncodeBatchSingle(t *testing.T) {
	token := common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	spender := common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")

	tx, err := NewApproveTransaction(token, spender, big.NewInt(1))
	if err != nil {
		t.Fatalf("NewApproveTransaction: %v", err)
	}

	to, data, operation, err := EncodeBatch([]SafeTransaction{tx})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if to != token {
		t.Fatalf("single transaction must target the token directly")
	}
	if operation != OperationCall {
		t.Fatalf("single transaction must use a plain call")
	}
	if len(data) == 0 {
		t.Fatalf("empty calldata")
	}
}

func TestEncodeBatchMulti(t *testing.T) {
	token := common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	a, _ := NewApproveTransaction(token, common.HexToAddress("0x01"), big.NewInt(1))
	b, _ := NewApproveTransaction(token, common.HexToAddress("0x02"), big.NewInt(2))

	to, data, operation, err := EncodeBatch([]SafeTransaction{a, b})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if to != common.HexToAddress(MultiSendAddress) {
		t.Fatalf("batch must target multiSend, got %s", to.Hex())
	}
	if operation != OperationDelegateCall {
		t.Fatalf("batch must delegatecall multiSend")
	}
	if len(data) == 0 {
		t.Fatalf("empty calldata")
	}
}

func TestEncodeBatchEmpty(t *testing.T) {
	if _, _, _, err := EncodeBatch(nil); err == nil {
		t.Fatalf("expected error for empty batch")
	}
}

func TestBuildSafeTxTypedDataHashes(t *testing.T) {
	token := common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	tx, _ := NewTransferTransaction(token, common.HexToAddress("0x03"), big.NewInt(5))

	td := BuildSafeTxTypedData(types.ChainPolygon, common.HexToAddress("0x04"), tx.To, tx.Data, tx.Operation, big.NewInt(7))

	if _, _, err := apitypes.TypedDataAndHash(td); err != nil {
		t.Fatalf("typed data does not hash: %v", err)
	}
}
