package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/alphabill-org/payment-splitter/internal/hash"
	"github.com/alphabill-org/payment-splitter/internal/logger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

const maxBalanceIterations = 10

var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientCollateral  = errors.New("insufficient collateral")
	ErrOutputBelowMinimum      = errors.New("output amount below ledger minimum")
	ErrInputAlreadySpent       = errors.New("input already spent")
	ErrTooManyCollateralInputs = errors.New("too many collateral inputs")
	ErrTxRejected              = errors.New("transaction rejected by the ledger")
)

var log = logger.CreateForPackage()

// Assembler turns drafts into balanced transactions: adds wallet inputs to
// cover outputs and fee, computes the fee and the script data hash and
// returns the change to the draft's change address.
type Assembler struct {
	maxIterations int
}

func NewAssembler() *Assembler {
	return &Assembler{maxIterations: maxBalanceIterations}
}

// Assemble balances the draft. Wallet UTxOs are spent largest first when
// the draft inputs do not cover outputs and fee.
func (a *Assembler) Assemble(d *TxDraft, wallet []UTxO, params *ProtocolParams) (*UnsignedTx, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol parameters: %w", err)
	}
	if d.changeAddress.IsZero() {
		return nil, errors.New("change address is not set")
	}
	for i, out := range d.outputs {
		if err := CheckMinAda(out, params); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}
	if params.MaxCollateralInputs > 0 && len(d.collateral) > params.MaxCollateralInputs {
		return nil, fmt.Errorf("%w: %d, maximum is %d", ErrTooManyCollateralInputs, len(d.collateral), params.MaxCollateralInputs)
	}

	selected := d.Inputs()
	candidates := walletCandidates(wallet, selected)
	outputTotal := uint64(0)
	for _, out := range d.outputs {
		outputTotal += out.Amount
	}

	var fee uint64
	// every wallet UTxO may take an extra round
	limit := a.maxIterations + len(candidates)
	for iter := 0; iter < limit; iter++ {
		need := outputTotal + fee
		for SumAmount(selected) < need && len(candidates) > 0 {
			selected, candidates = append(selected, candidates[0]), candidates[1:]
		}
		have := SumAmount(selected)
		if have < need {
			return nil, fmt.Errorf("%w: need %d lovelace, available %d", ErrInsufficientFunds, need, have)
		}

		outputs := d.Outputs()
		paidFee := fee
		change, err := changeOutput(d.changeAddress, selected, d.outputs, have-need)
		if err != nil {
			return nil, err
		}
		if change != nil {
			minAda := MinAda(*change, params)
			switch {
			case change.Amount >= minAda:
				outputs = append(outputs, *change)
			case len(candidates) > 0:
				selected, candidates = append(selected, candidates[0]), candidates[1:]
				continue
			case len(change.Assets) > 0:
				return nil, fmt.Errorf("%w: change of %d lovelace can't carry the remaining assets, %d required", ErrInsufficientFunds, change.Amount, minAda)
			default:
				// too small to be an output, leave it to the fee
				paidFee += change.Amount
			}
		}

		tx, units, err := a.build(d, selected, outputs, paidFee, params)
		if err != nil {
			return nil, err
		}
		signed, err := tx.dummySigned()
		if err != nil {
			return nil, err
		}
		minFee := params.Fee(len(signed), units)
		log.Trace("iteration %d: %d inputs, size %d, fee %d, min fee %d", iter, len(tx.Inputs), len(signed), paidFee, minFee)
		if minFee <= paidFee {
			if err := checkCollateral(d.collateral, paidFee, params); err != nil {
				return nil, err
			}
			if params.MaxTxSize > 0 && uint64(len(signed)) > params.MaxTxSize {
				return nil, fmt.Errorf("transaction size %d exceeds maximum %d", len(signed), params.MaxTxSize)
			}
			log.Debug("assembled tx %s: %d inputs, %d outputs, fee %d", tx.ID, len(tx.Inputs), len(tx.Outputs), tx.Fee)
			return tx, nil
		}
		fee = minFee
	}
	return nil, fmt.Errorf("fee did not converge in %d iterations", limit)
}

func (a *Assembler) build(d *TxDraft, inputs []UTxO, outputs []Output, fee uint64, params *ProtocolParams) (*UnsignedTx, ExUnits, error) {
	ins := make([]Input, len(inputs))
	for i, u := range inputs {
		ins[i] = u.Input
	}
	sortInputs(ins)

	body := &txBody{
		Inputs: encodeInputs(ins),
		Fee:    fee,
	}
	for _, out := range outputs {
		b, err := encodeOutput(out)
		if err != nil {
			return nil, ExUnits{}, err
		}
		body.Outputs = append(body.Outputs, b)
	}
	collateral := make([]Input, len(d.collateral))
	for i, u := range d.collateral {
		collateral[i] = u.Input
	}
	sortInputs(collateral)
	body.Collateral = encodeInputs(collateral)
	for _, kh := range d.requiredSigners {
		body.RequiredSigners = append(body.RequiredSigners, kh.Bytes())
	}

	ws, units, err := a.scriptWitnesses(d, ins, params)
	if err != nil {
		return nil, ExUnits{}, err
	}
	if len(ws.Redeemers) > 0 || len(ws.Datums) > 0 {
		if body.ScriptDataHash, err = scriptDataHash(ws, params); err != nil {
			return nil, ExUnits{}, err
		}
	}

	tx, err := newUnsignedTx(body, ws, requiredKeys(d, inputs), outputs)
	if err != nil {
		return nil, ExUnits{}, err
	}
	return tx, units, nil
}

// scriptWitnesses collects scripts, datums and redeemers of the script
// inputs. Redeemers point to the position of the input in the sorted input set.
func (a *Assembler) scriptWitnesses(d *TxDraft, sorted []Input, params *ProtocolParams) (witnessSet, ExUnits, error) {
	var ws witnessSet
	var total ExUnits
	spends := 0
	for _, in := range d.inputs {
		if in.spend != nil {
			spends++
		}
	}
	budget := params.RedeemerBudget(spends)
	scripts := map[string]bool{}
	datums := map[string]bool{}

	addDatum := func(datum plutus.Data) error {
		b, err := datum.MarshalCBOR()
		if err != nil {
			return fmt.Errorf("encoding datum: %w", err)
		}
		if !datums[string(b)] {
			datums[string(b)] = true
			ws.Datums = append(ws.Datums, b)
		}
		return nil
	}

	for _, in := range d.inputs {
		if in.spend == nil {
			continue
		}
		spend := in.spend
		if spend.Script == nil || spend.Redeemer == nil {
			return ws, total, fmt.Errorf("script input %s: script and redeemer are required", in.utxo.Input)
		}
		if !scripts[string(spend.Script.Bytes)] {
			scripts[string(spend.Script.Bytes)] = true
			switch spend.Script.Version {
			case plutus.PlutusV1:
				ws.PlutusV1 = append(ws.PlutusV1, spend.Script.Bytes)
			case plutus.PlutusV2:
				ws.PlutusV2 = append(ws.PlutusV2, spend.Script.Bytes)
			case plutus.PlutusV3:
				ws.PlutusV3 = append(ws.PlutusV3, spend.Script.Bytes)
			default:
				return ws, total, fmt.Errorf("%w: %d", plutus.ErrUnknownLanguage, spend.Script.Version)
			}
		}
		// inline datums are already on chain
		if len(in.utxo.InlineDatum) == 0 {
			if spend.Datum == nil {
				return ws, total, fmt.Errorf("script input %s: datum is required", in.utxo.Input)
			}
			if err := addDatum(spend.Datum); err != nil {
				return ws, total, err
			}
		}
		rdata, err := spend.Redeemer.MarshalCBOR()
		if err != nil {
			return ws, total, fmt.Errorf("encoding redeemer: %w", err)
		}
		idx := slices.Index(sorted, in.utxo.Input)
		if idx < 0 {
			return ws, total, fmt.Errorf("script input %s is not in the input set", in.utxo.Input)
		}
		ws.Redeemers = append(ws.Redeemers, redeemer{
			Tag:     redeemerTagSpend,
			Index:   uint32(idx),
			Data:    rdata,
			ExUnits: exUnits{Mem: budget.Mem, Steps: budget.Steps},
		})
		total.Mem += budget.Mem
		total.Steps += budget.Steps
	}
	for _, datum := range d.datums {
		if err := addDatum(datum); err != nil {
			return ws, total, err
		}
	}
	sort.Slice(ws.Redeemers, func(i, j int) bool { return ws.Redeemers[i].Index < ws.Redeemers[j].Index })
	return ws, total, nil
}

// scriptDataHash is blake2b-256 of redeemers, datums and the language views
// of the scripts used. Without redeemers both the redeemers and the views are
// the empty map.
func scriptDataHash(ws witnessSet, params *ProtocolParams) ([]byte, error) {
	redeemers := []byte{0xa0}
	if len(ws.Redeemers) > 0 {
		var err error
		if redeemers, err = cbor.Marshal(ws.Redeemers); err != nil {
			return nil, fmt.Errorf("encoding redeemers: %w", err)
		}
	}
	var datums []byte
	if len(ws.Datums) > 0 {
		var err error
		if datums, err = cbor.Marshal(ws.Datums); err != nil {
			return nil, fmt.Errorf("encoding datums: %w", err)
		}
	}
	var langs []plutus.LanguageVersion
	if len(ws.Redeemers) > 0 {
		if len(ws.PlutusV1) > 0 {
			langs = append(langs, plutus.PlutusV1)
		}
		if len(ws.PlutusV2) > 0 {
			langs = append(langs, plutus.PlutusV2)
		}
		if len(ws.PlutusV3) > 0 {
			langs = append(langs, plutus.PlutusV3)
		}
	}
	views, err := languageViews(langs, params.CostModels)
	if err != nil {
		return nil, err
	}
	return hash.Sum256(redeemers, datums, views), nil
}

// changeOutput returns the output holding what is left after paying the
// outputs and fee, nil when nothing is left.
func changeOutput(addr Address, inputs []UTxO, outputs []Output, amount uint64) (*Output, error) {
	var in, out [][]Asset
	for _, u := range inputs {
		in = append(in, u.Assets)
	}
	for _, o := range outputs {
		out = append(out, o.Assets)
	}
	assets, err := subtractAssets(mergeAssets(in...), mergeAssets(out...))
	if err != nil {
		return nil, err
	}
	if amount == 0 && len(assets) == 0 {
		return nil, nil
	}
	return &Output{Address: addr, Amount: amount, Assets: assets}, nil
}

func subtractAssets(from, sub []Asset) ([]Asset, error) {
	res := slices.Clone(from)
	for _, s := range sub {
		i := slices.IndexFunc(res, func(a Asset) bool {
			return bytes.Equal(a.PolicyID, s.PolicyID) && bytes.Equal(a.Name, s.Name)
		})
		if i < 0 || res[i].Quantity < s.Quantity {
			return nil, fmt.Errorf("%w: asset %x.%x", ErrInsufficientFunds, s.PolicyID, s.Name)
		}
		res[i].Quantity -= s.Quantity
	}
	return slices.DeleteFunc(res, func(a Asset) bool { return a.Quantity == 0 }), nil
}

// walletCandidates returns the key locked wallet UTxOs not already spent by
// the draft, largest first.
func walletCandidates(wallet, spent []UTxO) []UTxO {
	var res []UTxO
	for _, u := range wallet {
		if u.Address.IsScript() || len(u.DatumHash) > 0 || len(u.InlineDatum) > 0 {
			continue
		}
		if slices.ContainsFunc(spent, func(s UTxO) bool { return s.Input == u.Input }) {
			continue
		}
		res = append(res, u)
	}
	sortLargestFirst(res)
	return res
}

// requiredKeys returns the keys which must sign the transaction.
func requiredKeys(d *TxDraft, inputs []UTxO) []KeyHash {
	res := slices.Clone(d.requiredSigners)
	add := func(u UTxO) {
		kh, err := u.Address.PaymentKeyHash()
		if err == nil && !slices.Contains(res, kh) {
			res = append(res, kh)
		}
	}
	for _, u := range inputs {
		add(u)
	}
	for _, u := range d.collateral {
		add(u)
	}
	return res
}

func checkCollateral(collateral []UTxO, fee uint64, params *ProtocolParams) error {
	if len(collateral) == 0 {
		return nil
	}
	required := params.MinCollateral(fee)
	if total := SumAmount(collateral); total < required {
		return fmt.Errorf("%w: %d lovelace, %d required", ErrInsufficientCollateral, total, required)
	}
	return nil
}

// MinAda returns the smallest amount the output must hold.
func MinAda(out Output, params *ProtocolParams) uint64 {
	out.Amount = 0
	for i := 0; i < 4; i++ {
		size, err := outputSize(out)
		if err != nil {
			return math.MaxUint64
		}
		required := (utxoEntryOverhead + size) * params.CoinsPerUTxOByte
		if out.Amount >= required {
			return required
		}
		out.Amount = required
	}
	return out.Amount
}

// CheckMinAda fails with ErrOutputBelowMinimum when out holds less than the
// ledger requires for its size.
func CheckMinAda(out Output, params *ProtocolParams) error {
	size, err := outputSize(out)
	if err != nil {
		return err
	}
	if required := (utxoEntryOverhead + size) * params.CoinsPerUTxOByte; out.Amount < required {
		return fmt.Errorf("%w: %d lovelace, %d required", ErrOutputBelowMinimum, out.Amount, required)
	}
	return nil
}

func outputSize(out Output) (uint64, error) {
	b, err := encodeOutput(out)
	if err != nil {
		return 0, err
	}
	return uint64(len(b)), nil
}
