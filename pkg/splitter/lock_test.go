package splitter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

func TestBuildLockTx(t *testing.T) {
	_, scriptAddr := testScript(t, testKeyHash(1), testKeyHash(2))
	owner := testPayeeAddress(t, 1)
	datum := plutus.NewLockDatum(testKeyHash(1).Bytes())

	draft, err := BuildLockTx(scriptAddr, datum, 9_000_000, owner)
	require.NoError(t, err)

	outputs := draft.Outputs()
	require.Len(t, outputs, 1)
	require.True(t, scriptAddr.Equal(outputs[0].Address))
	require.EqualValues(t, 9_000_000, outputs[0].Amount)
	datumHash, err := plutus.Hash(datum)
	require.NoError(t, err)
	require.Equal(t, datumHash, outputs[0].DatumHash)
	require.Equal(t, []plutus.Data{datum}, draft.Datums())
	require.True(t, owner.Equal(draft.ChangeAddress()))
	require.Empty(t, draft.Inputs())
}

func TestBuildLockTx_Errors(t *testing.T) {
	_, scriptAddr := testScript(t, testKeyHash(1))
	owner := testPayeeAddress(t, 1)
	datum := plutus.NewLockDatum(testKeyHash(1).Bytes())

	_, err := BuildLockTx(owner, datum, 1_000_000, owner)
	require.ErrorContains(t, err, "not a script address")

	_, err = BuildLockTx(scriptAddr, datum, 1_000_000, ledger.Address{})
	require.ErrorContains(t, err, "change owner")

	_, err = BuildLockTx(scriptAddr, nil, 1_000_000, owner)
	require.ErrorContains(t, err, "datum")

	_, err = BuildLockTx(scriptAddr, datum, 0, owner)
	require.ErrorIs(t, err, ErrOutputBelowMinimum)
}

func TestBuildLockTx_Assemble(t *testing.T) {
	_, scriptAddr := testScript(t, testKeyHash(1), testKeyHash(2))
	owner := testPayeeAddress(t, 1)
	datum := plutus.NewLockDatum(testKeyHash(1).Bytes())
	draft, err := BuildLockTx(scriptAddr, datum, 9_000_000, owner)
	require.NoError(t, err)

	wallet := []ledger.UTxO{testUTxO(owner, 1, 0, 4_000_000), testUTxO(owner, 2, 0, 20_000_000)}
	tx, err := ledger.NewAssembler().Assemble(draft, wallet, testParams())
	require.NoError(t, err)
	require.Len(t, tx.Inputs, 1, "largest UTxO covers the lock")
	require.Len(t, tx.Outputs, 2)
	require.EqualValues(t, 20_000_000, tx.Outputs[0].Amount+tx.Outputs[1].Amount+tx.Fee)

	_, err = ledger.NewAssembler().Assemble(draft, wallet[:1], testParams())
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.Equal(t, KindFunds, KindOf(err))
}
