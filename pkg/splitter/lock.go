package splitter

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

// BuildLockTx returns a draft paying amount to the script address with the
// hash of datum attached. The datum itself travels in the witness set.
// Inputs, fee and change are left to the assembler.
func BuildLockTx(scriptAddress ledger.Address, datum plutus.Data, amount uint64, changeOwner ledger.Address) (*ledger.TxDraft, error) {
	if !scriptAddress.IsScript() {
		return nil, fmt.Errorf("lock address %s is not a script address", scriptAddress)
	}
	if changeOwner.IsZero() {
		return nil, errors.New("change owner address is not set")
	}
	if datum == nil {
		return nil, errors.New("lock datum is nil")
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: lock amount is zero", ErrOutputBelowMinimum)
	}
	datumHash, err := plutus.Hash(datum)
	if err != nil {
		return nil, fmt.Errorf("hashing lock datum: %w", err)
	}
	return ledger.NewTxDraft().
		WithOutput(ledger.Output{Address: scriptAddress, Amount: amount, DatumHash: datumHash}).
		WithDatum(datum).
		WithChangeAddress(changeOwner), nil
}
