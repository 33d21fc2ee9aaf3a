package ledger

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func testParams() *ProtocolParams {
	return &ProtocolParams{
		MinFeeA:             44,
		MinFeeB:             155381,
		CoinsPerUTxOByte:    4310,
		MaxTxSize:           16384,
		PriceMem:            big.NewRat(577, 10000),
		PriceSteps:          big.NewRat(721, 10000000),
		MaxTxExMem:          14_000_000,
		MaxTxExSteps:        10_000_000_000,
		CollateralPercent:   150,
		MaxCollateralInputs: 3,
		CostModels:          map[uint8][]int64{1: {205665, 812, 1, 1, 1000, 571, 0, 1}},
	}
}

func testKeyHash(seed byte) KeyHash {
	var kh KeyHash
	copy(kh[:], bytes.Repeat([]byte{seed}, len(kh)))
	return kh
}

func testAddress(t *testing.T, seed byte) Address {
	t.Helper()
	addr, err := NewEnterpriseAddress(testKeyHash(seed), Testnet)
	require.NoError(t, err)
	return addr
}

func testUTxO(addr Address, txSeed byte, index uint32, amount uint64) UTxO {
	var id TxHash
	copy(id[:], bytes.Repeat([]byte{txSeed}, len(id)))
	return UTxO{Input: Input{TxID: id, Index: index}, Output: Output{Address: addr, Amount: amount}}
}
