package splitter

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

func testParams() *ledger.ProtocolParams {
	return &ledger.ProtocolParams{
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

// testValidator takes the payees, datum, redeemer and context and succeeds
func testValidator(t *testing.T) plutus.CompiledValidator {
	t.Helper()
	flat, err := plutus.EncodeFlat(&plutus.Program{
		Version: [3]uint64{1, 0, 0},
		Term:    &plutus.Lambda{Body: &plutus.Lambda{Body: &plutus.Lambda{Body: &plutus.Lambda{Body: &plutus.Var{Index: 4}}}}},
	})
	require.NoError(t, err)
	code, err := cbor.Marshal(flat)
	require.NoError(t, err)
	return plutus.CompiledValidator{Version: plutus.PlutusV2, Code: code}
}

func testKeyHash(seed byte) ledger.KeyHash {
	var kh ledger.KeyHash
	copy(kh[:], bytes.Repeat([]byte{seed}, len(kh)))
	return kh
}

func testPayeeAddress(t *testing.T, seed byte) ledger.Address {
	t.Helper()
	addr, err := ledger.NewBaseAddress(testKeyHash(seed), testKeyHash(seed+100), ledger.Testnet)
	require.NoError(t, err)
	return addr
}

func testUTxO(addr ledger.Address, txSeed byte, index uint32, amount uint64) ledger.UTxO {
	var id ledger.TxHash
	copy(id[:], bytes.Repeat([]byte{txSeed}, len(id)))
	return ledger.UTxO{Input: ledger.Input{TxID: id, Index: index}, Output: ledger.Output{Address: addr, Amount: amount}}
}

func testScript(t *testing.T, payees ...ledger.KeyHash) (*plutus.Script, ledger.Address) {
	t.Helper()
	set, err := Register(payees)
	require.NoError(t, err)
	script, err := DeriveScript(testValidator(t), set)
	require.NoError(t, err)
	addr, err := DeriveAddress(script, ledger.Testnet)
	require.NoError(t, err)
	return script, addr
}

// chainMock is an in memory ledger keeping UTxOs per address
type chainMock struct {
	mu        sync.Mutex
	utxos     map[string][]ledger.UTxO
	params    *ledger.ProtocolParams
	submitted [][]byte
	fetchErr  error
	submitErr error
	// pending transactions never make it to a block
	pending bool
}

func newChainMock() *chainMock {
	return &chainMock{utxos: map[string][]ledger.UTxO{}, params: testParams()}
}

func (c *chainMock) add(utxos ...ledger.UTxO) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range utxos {
		c.utxos[u.Address.String()] = append(c.utxos[u.Address.String()], u)
	}
}

func (c *chainMock) FetchUTxOs(_ context.Context, addr ledger.Address) ([]ledger.UTxO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return append([]ledger.UTxO{}, c.utxos[addr.String()]...), nil
}

func (c *chainMock) FetchBalance(ctx context.Context, addr ledger.Address) (uint64, error) {
	utxos, err := c.FetchUTxOs(ctx, addr)
	if err != nil {
		return 0, err
	}
	return ledger.SumAmount(utxos), nil
}

func (c *chainMock) ProtocolParameters(context.Context) (*ledger.ProtocolParams, error) {
	return c.params, nil
}

func (c *chainMock) Submit(_ context.Context, tx []byte) (ledger.TxHash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErr != nil {
		return ledger.TxHash{}, c.submitErr
	}
	c.submitted = append(c.submitted, tx)
	return ledger.TxHash{}, nil
}

func (c *chainMock) TxConfirmed(context.Context, ledger.TxHash) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.pending, nil
}

// recordingAssembler keeps the assembled transactions
type recordingAssembler struct {
	inner *ledger.Assembler
	txs   []*ledger.UnsignedTx
}

func (a *recordingAssembler) Assemble(d *ledger.TxDraft, wallet []ledger.UTxO, params *ledger.ProtocolParams) (*ledger.UnsignedTx, error) {
	tx, err := a.inner.Assemble(d, wallet, params)
	if err == nil {
		a.txs = append(a.txs, tx)
	}
	return tx, err
}
