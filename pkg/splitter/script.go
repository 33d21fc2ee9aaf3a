package splitter

import (
	"fmt"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

// DeriveScript applies the payee set to the validator. The same validator
// and payee order always give the same script.
func DeriveScript(v plutus.CompiledValidator, payees *PayeeSet) (*plutus.Script, error) {
	if payees == nil || payees.Len() == 0 {
		return nil, ErrEmptyPayeeSet
	}
	script, err := plutus.Parameterize(v, payees.Parameter())
	if err != nil {
		return nil, fmt.Errorf("parameterizing validator with %d payees: %w", payees.Len(), err)
	}
	return script, nil
}

// DeriveAddress returns the address of funds locked by the script.
func DeriveAddress(script *plutus.Script, network ledger.Network) (ledger.Address, error) {
	return ledger.NewScriptAddress(script.Hash(), network)
}
