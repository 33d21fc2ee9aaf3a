package ledger

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/payment-splitter/internal/hash"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

func decodeBody(t *testing.T, tx *UnsignedTx) *txBody {
	t.Helper()
	body := &txBody{}
	require.NoError(t, cbor.Unmarshal(tx.BodyBytes(), body))
	return body
}

func requireBalanced(t *testing.T, tx *UnsignedTx, inputs []UTxO) {
	t.Helper()
	var out uint64
	for _, o := range tx.Outputs {
		out += o.Amount
	}
	var in uint64
	for _, i := range tx.Inputs {
		for _, u := range inputs {
			if u.Input == i {
				in += u.Amount
			}
		}
	}
	require.Equal(t, in, out+tx.Fee, "inputs must equal outputs plus fee")
}

func TestAssemble_Payment(t *testing.T) {
	params := testParams()
	wallet := testAddress(t, 1)
	utxos := []UTxO{testUTxO(wallet, 1, 0, 3_000_000), testUTxO(wallet, 2, 1, 10_000_000)}
	draft := NewTxDraft().
		WithOutput(Output{Address: testAddress(t, 2), Amount: 2_000_000}).
		WithChangeAddress(wallet)

	tx, err := NewAssembler().Assemble(draft, utxos, params)
	require.NoError(t, err)
	require.Len(t, tx.Inputs, 1, "largest UTxO covers the payment")
	require.Equal(t, utxos[1].Input, tx.Inputs[0])
	require.Len(t, tx.Outputs, 2)
	require.True(t, tx.Outputs[1].Address.Equal(wallet), "change is the last output")
	requireBalanced(t, tx, utxos)

	signed, err := tx.dummySigned()
	require.NoError(t, err)
	require.GreaterOrEqual(t, tx.Fee, params.Fee(len(signed), ExUnits{}))
	require.Equal(t, []KeyHash{testKeyHash(1)}, tx.RequiredKeys())

	body := decodeBody(t, tx)
	require.EqualValues(t, tx.Fee, body.Fee)
	require.Nil(t, body.ScriptDataHash)
	require.Empty(t, body.Collateral)
}

func TestAssemble_DraftIsNotModified(t *testing.T) {
	wallet := testAddress(t, 1)
	draft := NewTxDraft().WithChangeAddress(wallet)
	withOutput := draft.WithOutput(Output{Address: testAddress(t, 2), Amount: 2_000_000})
	require.Empty(t, draft.Outputs())
	require.Len(t, withOutput.Outputs(), 1)

	_, err := NewAssembler().Assemble(withOutput, []UTxO{testUTxO(wallet, 1, 0, 10_000_000)}, testParams())
	require.NoError(t, err)
	require.Empty(t, withOutput.Inputs())
	require.Len(t, withOutput.Outputs(), 1)
}

func TestAssemble_InsufficientFunds(t *testing.T) {
	wallet := testAddress(t, 1)
	draft := NewTxDraft().
		WithOutput(Output{Address: testAddress(t, 2), Amount: 5_000_000}).
		WithChangeAddress(wallet)

	_, err := NewAssembler().Assemble(draft, []UTxO{testUTxO(wallet, 1, 0, 5_000_000)}, testParams())
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = NewAssembler().Assemble(draft, nil, testParams())
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestAssemble_OutputBelowMinimum(t *testing.T) {
	wallet := testAddress(t, 1)
	draft := NewTxDraft().
		WithOutput(Output{Address: testAddress(t, 2), Amount: 100_000}).
		WithChangeAddress(wallet)

	_, err := NewAssembler().Assemble(draft, []UTxO{testUTxO(wallet, 1, 0, 10_000_000)}, testParams())
	require.ErrorIs(t, err, ErrOutputBelowMinimum)
}

func TestAssemble_SmallChangeGoesToFee(t *testing.T) {
	params := testParams()
	wallet := testAddress(t, 1)
	utxos := []UTxO{testUTxO(wallet, 1, 0, 2_300_000)}
	draft := NewTxDraft().
		WithOutput(Output{Address: testAddress(t, 2), Amount: 2_000_000}).
		WithChangeAddress(wallet)

	tx, err := NewAssembler().Assemble(draft, utxos, params)
	require.NoError(t, err)
	require.Len(t, tx.Outputs, 1)
	require.EqualValues(t, 300_000, tx.Fee)
	requireBalanced(t, tx, utxos)
}

func TestAssemble_ChangeCarriesAssets(t *testing.T) {
	wallet := testAddress(t, 1)
	u := testUTxO(wallet, 1, 0, 10_000_000)
	u.Assets = []Asset{{PolicyID: bytes.Repeat([]byte{9}, 28), Name: []byte("token"), Quantity: 5}}
	draft := NewTxDraft().
		WithOutput(Output{Address: testAddress(t, 2), Amount: 2_000_000}).
		WithChangeAddress(wallet)

	tx, err := NewAssembler().Assemble(draft, []UTxO{u}, testParams())
	require.NoError(t, err)
	require.Len(t, tx.Outputs, 2)
	require.Equal(t, u.Assets, tx.Outputs[1].Assets)
	requireBalanced(t, tx, []UTxO{u})
}

func TestAssemble_ScriptSpend(t *testing.T) {
	params := testParams()
	signer := testKeyHash(1)
	wallet := testAddress(t, 1)
	script := &plutus.Script{Version: plutus.PlutusV2, Bytes: []byte{0x46, 0x01, 0x00, 0x00, 0x20, 0x01, 0x01}}
	scriptAddr, err := NewScriptAddress(script.Hash(), Testnet)
	require.NoError(t, err)
	datum := plutus.NewLockDatum(signer[:])
	datumHash, err := plutus.Hash(datum)
	require.NoError(t, err)

	// tx ids chosen so that the script inputs are not first in the sorted set
	locked1 := testUTxO(scriptAddr, 0x30, 0, 5_000_000)
	locked1.DatumHash = datumHash
	locked2 := testUTxO(scriptAddr, 0x10, 1, 4_000_000)
	locked2.DatumHash = datumHash
	walletUTxO := testUTxO(wallet, 0x20, 0, 8_000_000)
	collateral := testUTxO(wallet, 0x40, 0, 6_000_000)

	spend := ScriptSpend{Script: script, Datum: datum, Redeemer: plutus.NewUnlockRedeemer([]byte("hi"))}
	draft := NewTxDraft().
		WithScriptInput(locked1, spend).
		WithScriptInput(locked2, spend).
		WithOutput(Output{Address: testAddress(t, 2), Amount: 4_500_000}).
		WithOutput(Output{Address: testAddress(t, 3), Amount: 4_500_000}).
		WithCollateral(collateral).
		WithRequiredSigner(signer).
		WithChangeAddress(wallet)

	tx, err := NewAssembler().Assemble(draft, []UTxO{walletUTxO, collateral}, params)
	require.NoError(t, err)
	all := []UTxO{locked1, locked2, walletUTxO, collateral}
	requireBalanced(t, tx, all)
	require.Equal(t, []KeyHash{signer}, tx.RequiredSigners)
	require.Equal(t, []Input{collateral.Input}, tx.Collateral)

	// payee outputs keep their order, change comes last
	require.True(t, tx.Outputs[0].Address.Equal(testAddress(t, 2)))
	require.True(t, tx.Outputs[1].Address.Equal(testAddress(t, 3)))

	ws := tx.witness
	require.Len(t, ws.PlutusV2, 1)
	require.Len(t, ws.Datums, 1, "equal datums are included once")
	require.Len(t, ws.Redeemers, 2)
	for _, r := range ws.Redeemers {
		in := tx.Inputs[r.Index]
		require.Contains(t, []Input{locked1.Input, locked2.Input}, in)
	}

	redeemers, err := cbor.Marshal(ws.Redeemers)
	require.NoError(t, err)
	datumCBOR, err := datum.MarshalCBOR()
	require.NoError(t, err)
	// {1: [205665, 812, 1, 1, 1000, 571, 0, 1]}
	views := []byte{0xa1, 0x01, 0x88, 0x1a, 0x00, 0x03, 0x23, 0x61, 0x19, 0x03, 0x2c, 0x01, 0x01, 0x19, 0x03, 0xe8, 0x19, 0x02, 0x3b, 0x00, 0x01}
	body := decodeBody(t, tx)
	require.Equal(t, hash.Sum256(redeemers, append([]byte{0x81}, datumCBOR...), views), body.ScriptDataHash)
}

func TestAssemble_DatumWithoutRedeemers(t *testing.T) {
	params := testParams()
	wallet := testAddress(t, 1)
	script := &plutus.Script{Version: plutus.PlutusV2, Bytes: []byte{0x46, 0x01, 0x00, 0x00, 0x20, 0x01, 0x01}}
	scriptAddr, err := NewScriptAddress(script.Hash(), Testnet)
	require.NoError(t, err)
	datum := plutus.NewLockDatum(testKeyHash(1).Bytes())
	datumHash, err := plutus.Hash(datum)
	require.NoError(t, err)

	draft := NewTxDraft().
		WithOutput(Output{Address: scriptAddr, Amount: 5_000_000, DatumHash: datumHash}).
		WithDatum(datum).
		WithChangeAddress(wallet)
	tx, err := NewAssembler().Assemble(draft, []UTxO{testUTxO(wallet, 1, 0, 10_000_000)}, params)
	require.NoError(t, err)
	require.Empty(t, tx.witness.Redeemers)
	require.Len(t, tx.witness.Datums, 1)

	datumCBOR, err := datum.MarshalCBOR()
	require.NoError(t, err)
	// empty redeemer map, the datum array and no language views
	expected := hash.Sum256([]byte{0xa0}, append([]byte{0x81}, datumCBOR...), []byte{0xa0})
	body := decodeBody(t, tx)
	require.Equal(t, expected, body.ScriptDataHash)
}

func TestAssemble_InsufficientCollateral(t *testing.T) {
	wallet := testAddress(t, 1)
	script := &plutus.Script{Version: plutus.PlutusV2, Bytes: []byte{0x46, 0x01, 0x00, 0x00, 0x20, 0x01, 0x01}}
	scriptAddr, err := NewScriptAddress(script.Hash(), Testnet)
	require.NoError(t, err)
	locked := testUTxO(scriptAddr, 1, 0, 5_000_000)
	collateral := testUTxO(wallet, 2, 0, 1_000)

	draft := NewTxDraft().
		WithScriptInput(locked, ScriptSpend{Script: script, Datum: plutus.NewConstr(0), Redeemer: plutus.NewConstr(0)}).
		WithOutput(Output{Address: testAddress(t, 2), Amount: 4_000_000}).
		WithCollateral(collateral).
		WithChangeAddress(wallet)

	_, err = NewAssembler().Assemble(draft, []UTxO{collateral, testUTxO(wallet, 3, 0, 5_000_000)}, testParams())
	require.ErrorIs(t, err, ErrInsufficientCollateral)
}

func TestUnsignedTx_Sign(t *testing.T) {
	wallet := testAddress(t, 1)
	draft := NewTxDraft().
		WithOutput(Output{Address: testAddress(t, 2), Amount: 2_000_000}).
		WithChangeAddress(wallet)
	tx, err := NewAssembler().Assemble(draft, []UTxO{testUTxO(wallet, 1, 0, 10_000_000)}, testParams())
	require.NoError(t, err)

	_, err = tx.Sign(false)
	require.ErrorIs(t, err, ErrMissingWitness)

	w := VKeyWitness{VKey: make([]byte, 32), Signature: make([]byte, 64)}
	signed, err := tx.Sign(true, w)
	require.NoError(t, err)

	var envelope []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(signed, &envelope))
	require.Len(t, envelope, 4)
	require.Equal(t, tx.BodyBytes(), []byte(envelope[0]))
	require.Equal(t, []byte{0xf5}, []byte(envelope[2]))
	require.Equal(t, []byte{0xf6}, []byte(envelope[3]))

	_, err = tx.Sign(true, VKeyWitness{VKey: []byte{1}, Signature: []byte{2}})
	require.Error(t, err)
}
