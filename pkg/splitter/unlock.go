package splitter

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

// DefaultCollateralAmount is the lovelace set aside as collateral of the
// unlock transaction.
const DefaultCollateralAmount = 6_000_000

var (
	ErrNoScriptFunds          = errors.New("no funds locked at the script address")
	ErrDatumMismatch          = errors.New("locked funds carry a different datum")
	ErrInsufficientCollateral = ledger.ErrInsufficientCollateral
	ErrOutputBelowMinimum     = ledger.ErrOutputBelowMinimum
)

// UnlockRequest holds everything the settlement transaction is built from.
type UnlockRequest struct {
	ScriptUTxOs []ledger.UTxO
	Script      *plutus.Script
	Datum       plutus.Data
	Redeemer    plutus.Data
	// Payees receive the outputs, in this order.
	Payees []ledger.Address
	// CollateralSource are the UTxOs of the signer.
	CollateralSource []ledger.UTxO
	Signer           ledger.KeyHash
	ChangeAddress    ledger.Address

	// CollateralAmount defaults to DefaultCollateralAmount.
	CollateralAmount    uint64
	MaxCollateralInputs int
}

// BuildUnlockTx spends every script UTxO with the same datum and redeemer
// and pays each payee an equal share of the locked lovelace.
func BuildUnlockTx(req *UnlockRequest) (*ledger.TxDraft, *SplitPlan, error) {
	if len(req.ScriptUTxOs) == 0 {
		return nil, nil, ErrNoScriptFunds
	}
	if len(req.Payees) == 0 {
		return nil, nil, ErrEmptyPayeeSet
	}
	if req.Script == nil || req.Datum == nil || req.Redeemer == nil {
		return nil, nil, errors.New("script, datum and redeemer are required")
	}
	if req.ChangeAddress.IsZero() {
		return nil, nil, errors.New("change address is not set")
	}

	if err := checkDatums(req.ScriptUTxOs, req.Datum); err != nil {
		return nil, nil, err
	}

	draft := ledger.NewTxDraft()
	amounts := make([]uint64, 0, len(req.ScriptUTxOs))
	spend := ledger.ScriptSpend{Script: req.Script, Datum: req.Datum, Redeemer: req.Redeemer}
	for _, u := range req.ScriptUTxOs {
		draft = draft.WithScriptInput(u, spend)
		amounts = append(amounts, u.Amount)
	}

	plan, err := ComputeSplitPerUTxO(amounts, uint64(len(req.Payees)))
	if err != nil {
		return nil, nil, err
	}
	if plan.PerPayeeAmount == 0 {
		return nil, nil, fmt.Errorf("%w: %d lovelace split between %d payees", ErrOutputBelowMinimum, plan.TotalConsumed, plan.PayeeCount)
	}

	collateralAmount := req.CollateralAmount
	if collateralAmount == 0 {
		collateralAmount = DefaultCollateralAmount
	}
	collateral, err := ledger.SelectLargestFirst(req.CollateralSource, collateralAmount, req.MaxCollateralInputs, ledger.IsPureAdaKeyOutput)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInsufficientCollateral, err)
	}
	draft = draft.WithCollateral(collateral...)

	for _, payee := range req.Payees {
		draft = draft.WithOutput(ledger.Output{Address: payee, Amount: plan.PerPayeeAmount})
	}
	return draft.
		WithRequiredSigner(req.Signer).
		WithChangeAddress(req.ChangeAddress), plan, nil
}

// checkDatums verifies the datum the script inputs are spent with is the one
// they were locked with. Funds locked by another signer can not be spent.
func checkDatums(utxos []ledger.UTxO, datum plutus.Data) error {
	datumCBOR, err := datum.MarshalCBOR()
	if err != nil {
		return fmt.Errorf("encoding datum: %w", err)
	}
	datumHash, err := plutus.Hash(datum)
	if err != nil {
		return err
	}
	for _, u := range utxos {
		switch {
		case len(u.InlineDatum) > 0:
			if !bytes.Equal(u.InlineDatum, datumCBOR) {
				return fmt.Errorf("%w: inline datum of %s", ErrDatumMismatch, u.Input)
			}
		case len(u.DatumHash) > 0:
			if !bytes.Equal(u.DatumHash, datumHash) {
				return fmt.Errorf("%w: datum hash %X of %s", ErrDatumMismatch, u.DatumHash, u.Input)
			}
		default:
			return fmt.Errorf("%w: %s has no datum", ErrDatumMismatch, u.Input)
		}
	}
	return nil
}
