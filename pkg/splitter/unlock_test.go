package splitter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

func testUnlockRequest(t *testing.T, payeeCount int, scriptAmounts ...uint64) *UnlockRequest {
	t.Helper()
	var hashes []ledger.KeyHash
	var payees []ledger.Address
	for i := 0; i < payeeCount; i++ {
		hashes = append(hashes, testKeyHash(byte(i+1)))
		payees = append(payees, testPayeeAddress(t, byte(i+1)))
	}
	script, scriptAddr := testScript(t, hashes...)
	datum := plutus.NewLockDatum(hashes[0].Bytes())
	datumHash, err := plutus.Hash(datum)
	require.NoError(t, err)
	var scriptUTxOs []ledger.UTxO
	for i, a := range scriptAmounts {
		u := testUTxO(scriptAddr, 50, uint32(i), a)
		u.DatumHash = datumHash
		scriptUTxOs = append(scriptUTxOs, u)
	}
	return &UnlockRequest{
		ScriptUTxOs:      scriptUTxOs,
		Script:           script,
		Datum:            datum,
		Redeemer:         plutus.NewUnlockRedeemer([]byte(plutus.DefaultRedeemerMessage)),
		Payees:           payees,
		CollateralSource: []ledger.UTxO{testUTxO(payees[0], 60, 0, 10_000_000)},
		Signer:           hashes[0],
		ChangeAddress:    payees[0],
	}
}

func TestBuildUnlockTx(t *testing.T) {
	req := testUnlockRequest(t, 3, 9_000_000)
	draft, plan, err := BuildUnlockTx(req)
	require.NoError(t, err)
	require.EqualValues(t, 3_000_000, plan.PerPayeeAmount)

	scriptInputs := draft.ScriptInputs()
	require.Len(t, scriptInputs, 1)
	require.Equal(t, req.ScriptUTxOs[0].Input, scriptInputs[0].Input)

	outputs := draft.Outputs()
	require.Len(t, outputs, 3)
	for i, out := range outputs {
		require.True(t, req.Payees[i].Equal(out.Address))
		require.EqualValues(t, 3_000_000, out.Amount)
	}
	require.Equal(t, []ledger.KeyHash{req.Signer}, draft.RequiredSigners())
	require.Len(t, draft.Collateral(), 1)
	require.True(t, req.ChangeAddress.Equal(draft.ChangeAddress()))
}

func TestBuildUnlockTx_OutputOrderFollowsPayees(t *testing.T) {
	for n := 1; n <= 6; n++ {
		req := testUnlockRequest(t, n, 30_000_000, 12_000_000)
		// reverse the payee list
		for i, j := 0, len(req.Payees)-1; i < j; i, j = i+1, j-1 {
			req.Payees[i], req.Payees[j] = req.Payees[j], req.Payees[i]
		}
		draft, _, err := BuildUnlockTx(req)
		require.NoError(t, err)
		outputs := draft.Outputs()
		require.Len(t, outputs, n)
		for i := range outputs {
			require.True(t, req.Payees[i].Equal(outputs[i].Address))
		}
		require.Len(t, draft.ScriptInputs(), 2)
	}
}

func TestBuildUnlockTx_PerUTxOSplit(t *testing.T) {
	req := testUnlockRequest(t, 3, 5_000_000, 5_000_000)
	draft, plan, err := BuildUnlockTx(req)
	require.NoError(t, err)
	require.EqualValues(t, 3_333_332, plan.PerPayeeAmount)
	require.EqualValues(t, 10_000_000, plan.TotalConsumed)
	for _, out := range draft.Outputs() {
		require.EqualValues(t, 3_333_332, out.Amount)
	}
}

func TestBuildUnlockTx_NoScriptFunds(t *testing.T) {
	req := testUnlockRequest(t, 3)
	draft, plan, err := BuildUnlockTx(req)
	require.ErrorIs(t, err, ErrNoScriptFunds)
	require.Nil(t, draft)
	require.Nil(t, plan)
	require.Equal(t, KindFunds, KindOf(err))
}

func TestBuildUnlockTx_Collateral(t *testing.T) {
	req := testUnlockRequest(t, 2, 9_000_000)
	owner := req.Payees[0]
	withAsset := testUTxO(owner, 61, 0, 50_000_000)
	withAsset.Assets = []ledger.Asset{{PolicyID: []byte{1}, Name: []byte("x"), Quantity: 1}}
	req.CollateralSource = []ledger.UTxO{
		testUTxO(owner, 62, 0, 2_000_000),
		withAsset,
		testUTxO(owner, 63, 0, 5_000_000),
		testUTxO(req.ScriptUTxOs[0].Address, 64, 0, 100_000_000),
	}
	draft, _, err := BuildUnlockTx(req)
	require.NoError(t, err)
	collateral := draft.Collateral()
	require.Len(t, collateral, 2)
	require.EqualValues(t, 5_000_000, collateral[0].Amount)
	require.EqualValues(t, 2_000_000, collateral[1].Amount)

	req.CollateralSource = req.CollateralSource[:2]
	_, _, err = BuildUnlockTx(req)
	require.ErrorIs(t, err, ErrInsufficientCollateral)
	require.Equal(t, KindFunds, KindOf(err))

	req.CollateralSource = []ledger.UTxO{testUTxO(owner, 62, 0, 2_000_000), testUTxO(owner, 63, 0, 5_000_000)}
	req.MaxCollateralInputs = 1
	_, _, err = BuildUnlockTx(req)
	require.ErrorIs(t, err, ErrInsufficientCollateral)

	req.CollateralAmount = 4_000_000
	draft, _, err = BuildUnlockTx(req)
	require.NoError(t, err)
	require.Len(t, draft.Collateral(), 1)
}

func TestBuildUnlockTx_ShareTooSmall(t *testing.T) {
	req := testUnlockRequest(t, 3, 2)
	_, _, err := BuildUnlockTx(req)
	require.ErrorIs(t, err, ErrOutputBelowMinimum)
}

func TestBuildUnlockTx_Assemble(t *testing.T) {
	req := testUnlockRequest(t, 3, 9_000_000)
	draft, _, err := BuildUnlockTx(req)
	require.NoError(t, err)

	tx, err := ledger.NewAssembler().Assemble(draft, req.CollateralSource, testParams())
	require.NoError(t, err)
	require.Len(t, tx.Collateral, 1)
	require.Equal(t, []ledger.KeyHash{req.Signer}, tx.RequiredSigners)
	require.Len(t, tx.Inputs, 2, "script input and a wallet input paying the fee")
	require.GreaterOrEqual(t, len(tx.Outputs), 3)
	for i := 0; i < 3; i++ {
		require.EqualValues(t, 3_000_000, tx.Outputs[i].Amount)
	}
}

func TestBuildUnlockTx_DatumMismatch(t *testing.T) {
	otherDatum := plutus.NewLockDatum(testKeyHash(9).Bytes())
	otherHash, err := plutus.Hash(otherDatum)
	require.NoError(t, err)
	otherCBOR, err := otherDatum.MarshalCBOR()
	require.NoError(t, err)
	datumCBOR, err := plutus.NewLockDatum(testKeyHash(1).Bytes()).MarshalCBOR()
	require.NoError(t, err)

	tests := []struct {
		name    string
		modify  func(u *ledger.UTxO)
		wantErr bool
	}{
		{name: "other signer hash", modify: func(u *ledger.UTxO) { u.DatumHash = otherHash }, wantErr: true},
		{name: "other signer inline", modify: func(u *ledger.UTxO) { u.DatumHash = nil; u.InlineDatum = otherCBOR }, wantErr: true},
		{name: "no datum", modify: func(u *ledger.UTxO) { u.DatumHash = nil }, wantErr: true},
		{name: "matching inline", modify: func(u *ledger.UTxO) { u.DatumHash = nil; u.InlineDatum = datumCBOR }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testUnlockRequest(t, 3, 9_000_000, 6_000_000)
			tt.modify(&req.ScriptUTxOs[1])
			draft, _, err := BuildUnlockTx(req)
			if !tt.wantErr {
				require.NoError(t, err)
				require.Len(t, draft.ScriptInputs(), 2)
				return
			}
			require.ErrorIs(t, err, ErrDatumMismatch)
			require.ErrorContains(t, err, req.ScriptUTxOs[1].Input.String())
			require.Nil(t, draft)
			require.Equal(t, KindConfiguration, KindOf(err))
		})
	}
}
