package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

const (
	redeemerTagSpend = 0

	datumOptionHash   = 0
	datumOptionInline = 1
	tagEncodedCBOR    = 24
)

type (
	txInput struct {
		_     struct{} `cbor:",toarray"`
		TxID  []byte
		Index uint32
	}

	txOutput struct {
		Address []byte          `cbor:"0,keyasint"`
		Value   cbor.RawMessage `cbor:"1,keyasint"`
		Datum   cbor.RawMessage `cbor:"2,keyasint,omitempty"`
	}

	txBody struct {
		Inputs          []txInput         `cbor:"0,keyasint"`
		Outputs         []cbor.RawMessage `cbor:"1,keyasint"`
		Fee             uint64            `cbor:"2,keyasint"`
		ScriptDataHash  []byte            `cbor:"11,keyasint,omitempty"`
		Collateral      []txInput         `cbor:"13,keyasint,omitempty"`
		RequiredSigners [][]byte          `cbor:"14,keyasint,omitempty"`
	}

	vkeyWitness struct {
		_         struct{} `cbor:",toarray"`
		VKey      []byte
		Signature []byte
	}

	exUnits struct {
		_     struct{} `cbor:",toarray"`
		Mem   uint64
		Steps uint64
	}

	redeemer struct {
		_       struct{} `cbor:",toarray"`
		Tag     uint8
		Index   uint32
		Data    cbor.RawMessage
		ExUnits exUnits
	}

	witnessSet struct {
		VKeys     []vkeyWitness     `cbor:"0,keyasint,omitempty"`
		PlutusV1  [][]byte          `cbor:"3,keyasint,omitempty"`
		Datums    []cbor.RawMessage `cbor:"4,keyasint,omitempty"`
		Redeemers []redeemer        `cbor:"5,keyasint,omitempty"`
		PlutusV2  [][]byte          `cbor:"6,keyasint,omitempty"`
		PlutusV3  [][]byte          `cbor:"7,keyasint,omitempty"`
	}

	txEnvelope struct {
		_       struct{} `cbor:",toarray"`
		Body    cbor.RawMessage
		Witness cbor.RawMessage
		Valid   bool
		Aux     cbor.RawMessage
	}
)

var cborNull = cbor.RawMessage{0xf6}

func encodeInputs(ins []Input) []txInput {
	if len(ins) == 0 {
		return nil
	}
	res := make([]txInput, len(ins))
	for i, in := range ins {
		res[i] = txInput{TxID: bytes.Clone(in.TxID[:]), Index: in.Index}
	}
	return res
}

func encodeOutput(o Output) (cbor.RawMessage, error) {
	if o.Address.IsZero() {
		return nil, fmt.Errorf("%w: output without address", ErrInvalidAddress)
	}
	value, err := encodeValue(o.Amount, o.Assets)
	if err != nil {
		return nil, err
	}
	out := txOutput{Address: o.Address.Bytes(), Value: value}
	switch {
	case len(o.InlineDatum) > 0:
		out.Datum, err = cbor.Marshal([]any{datumOptionInline, cbor.Tag{Number: tagEncodedCBOR, Content: o.InlineDatum}})
	case len(o.DatumHash) > 0:
		out.Datum, err = cbor.Marshal([]any{datumOptionHash, o.DatumHash})
	}
	if err != nil {
		return nil, fmt.Errorf("encoding output datum: %w", err)
	}
	return cbor.Marshal(out)
}

// encodeValue returns coin or [coin, multiasset] when assets are present.
func encodeValue(coin uint64, assets []Asset) (cbor.RawMessage, error) {
	if len(assets) == 0 {
		return cbor.Marshal(coin)
	}
	assets = mergeAssets(assets)
	var policies [][]Asset
	for i, a := range assets {
		if i == 0 || !bytes.Equal(a.PolicyID, assets[i-1].PolicyID) {
			policies = append(policies, nil)
		}
		policies[len(policies)-1] = append(policies[len(policies)-1], a)
	}
	buf := cborHead(4, 2)
	c, err := cbor.Marshal(coin)
	if err != nil {
		return nil, err
	}
	buf = append(buf, c...)
	buf = append(buf, cborHead(5, uint64(len(policies)))...)
	for _, p := range policies {
		if buf, err = appendMarshal(buf, p[0].PolicyID); err != nil {
			return nil, err
		}
		buf = append(buf, cborHead(5, uint64(len(p)))...)
		for _, a := range p {
			name := a.Name
			if name == nil {
				name = []byte{}
			}
			if buf, err = appendMarshal(buf, name); err != nil {
				return nil, err
			}
			if buf, err = appendMarshal(buf, a.Quantity); err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

func appendMarshal(buf []byte, v any) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(buf, b...), nil
}

// cborHead returns the initial byte(s) of a CBOR item of the major type.
func cborHead(major byte, n uint64) []byte {
	b, err := cbor.Marshal(n)
	if err != nil {
		panic(err)
	}
	b[0] |= major << 5
	return b
}

// languageViews encodes the cost models of the languages used by the
// transaction for the script data hash.
func languageViews(langs []plutus.LanguageVersion, costModels map[uint8][]int64) ([]byte, error) {
	type view struct{ key, value []byte }
	var views []view
	for _, l := range langs {
		id := uint8(l) - 1
		costs, ok := costModels[id]
		if !ok {
			return nil, fmt.Errorf("missing cost model for %s", l)
		}
		if l == plutus.PlutusV1 {
			// V1 views keep the historical encoding: both key and value
			// are wrapped in byte strings, the value list is indefinite
			arr := []byte{0x9f}
			for _, c := range costs {
				b, err := cbor.Marshal(c)
				if err != nil {
					return nil, err
				}
				arr = append(arr, b...)
			}
			arr = append(arr, 0xff)
			key, err := cbor.Marshal([]byte{0x00})
			if err != nil {
				return nil, err
			}
			value, err := cbor.Marshal(arr)
			if err != nil {
				return nil, err
			}
			views = append(views, view{key: key, value: value})
			continue
		}
		key, err := cbor.Marshal(id)
		if err != nil {
			return nil, err
		}
		if costs == nil {
			costs = []int64{}
		}
		value, err := cbor.Marshal(costs)
		if err != nil {
			return nil, err
		}
		views = append(views, view{key: key, value: value})
	}
	// canonical order: shorter keys first, then bytewise
	sort.Slice(views, func(i, j int) bool {
		if len(views[i].key) != len(views[j].key) {
			return len(views[i].key) < len(views[j].key)
		}
		return bytes.Compare(views[i].key, views[j].key) < 0
	})
	res := cborHead(5, uint64(len(views)))
	for _, v := range views {
		res = append(res, v.key...)
		res = append(res, v.value...)
	}
	return res, nil
}
