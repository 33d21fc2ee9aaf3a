package ledger

import (
	"slices"

	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

type (
	// ScriptSpend holds what is needed to spend an output locked by a script.
	ScriptSpend struct {
		Script   *plutus.Script
		Datum    plutus.Data
		Redeemer plutus.Data
	}

	// TxDraft is a transaction before balancing. Drafts are immutable, every
	// With* method returns a modified copy.
	TxDraft struct {
		inputs          []draftInput
		outputs         []Output
		datums          []plutus.Data
		collateral      []UTxO
		requiredSigners []KeyHash
		changeAddress   Address
	}

	draftInput struct {
		utxo  UTxO
		spend *ScriptSpend
	}
)

func NewTxDraft() *TxDraft {
	return &TxDraft{}
}

func (d *TxDraft) clone() *TxDraft {
	return &TxDraft{
		inputs:          slices.Clone(d.inputs),
		outputs:         slices.Clone(d.outputs),
		datums:          slices.Clone(d.datums),
		collateral:      slices.Clone(d.collateral),
		requiredSigners: slices.Clone(d.requiredSigners),
		changeAddress:   d.changeAddress,
	}
}

// WithInput adds an input locked by a key.
func (d *TxDraft) WithInput(u UTxO) *TxDraft {
	c := d.clone()
	c.inputs = append(c.inputs, draftInput{utxo: u})
	return c
}

// WithScriptInput adds an input locked by a script.
func (d *TxDraft) WithScriptInput(u UTxO, spend ScriptSpend) *TxDraft {
	c := d.clone()
	c.inputs = append(c.inputs, draftInput{utxo: u, spend: &spend})
	return c
}

func (d *TxDraft) WithOutput(o Output) *TxDraft {
	c := d.clone()
	c.outputs = append(c.outputs, o)
	return c
}

// WithDatum attaches the datum to the witness set, used for outputs that
// carry only the datum hash.
func (d *TxDraft) WithDatum(datum plutus.Data) *TxDraft {
	c := d.clone()
	c.datums = append(c.datums, datum)
	return c
}

func (d *TxDraft) WithCollateral(utxos ...UTxO) *TxDraft {
	c := d.clone()
	c.collateral = append(c.collateral, utxos...)
	return c
}

func (d *TxDraft) WithRequiredSigner(kh KeyHash) *TxDraft {
	c := d.clone()
	if !slices.Contains(c.requiredSigners, kh) {
		c.requiredSigners = append(c.requiredSigners, kh)
	}
	return c
}

// WithChangeAddress sets the owner of the change output.
func (d *TxDraft) WithChangeAddress(addr Address) *TxDraft {
	c := d.clone()
	c.changeAddress = addr
	return c
}

func (d *TxDraft) Inputs() []UTxO {
	res := make([]UTxO, len(d.inputs))
	for i, in := range d.inputs {
		res[i] = in.utxo
	}
	return res
}

// ScriptInputs returns the inputs spent from script addresses.
func (d *TxDraft) ScriptInputs() []UTxO {
	var res []UTxO
	for _, in := range d.inputs {
		if in.spend != nil {
			res = append(res, in.utxo)
		}
	}
	return res
}

func (d *TxDraft) Outputs() []Output {
	return slices.Clone(d.outputs)
}

func (d *TxDraft) Datums() []plutus.Data {
	return slices.Clone(d.datums)
}

func (d *TxDraft) Collateral() []UTxO {
	return slices.Clone(d.collateral)
}

func (d *TxDraft) RequiredSigners() []KeyHash {
	return slices.Clone(d.requiredSigners)
}

func (d *TxDraft) ChangeAddress() Address {
	return d.changeAddress
}

// Finalize balances the draft with the assembler.
func (d *TxDraft) Finalize(a *Assembler, wallet []UTxO, params *ProtocolParams) (*UnsignedTx, error) {
	return a.Assemble(d, wallet, params)
}
