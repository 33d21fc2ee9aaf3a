package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/alphabill-org/payment-splitter/internal/hash"
)

const (
	vkeySize      = 32
	signatureSize = 64
)

var ErrMissingWitness = errors.New("missing witness for required key")

type (
	// UnsignedTx is a balanced transaction waiting for key witnesses.
	UnsignedTx struct {
		ID              TxHash
		Fee             uint64
		Inputs          []Input
		Collateral      []Input
		Outputs         []Output
		RequiredSigners []KeyHash

		requiredKeys []KeyHash
		body         []byte
		witness      witnessSet
	}

	// VKeyWitness is a signature of the transaction id.
	VKeyWitness struct {
		VKey      []byte
		Signature []byte
	}
)

func newUnsignedTx(body *txBody, witness witnessSet, requiredKeys []KeyHash, outputs []Output) (*UnsignedTx, error) {
	bodyBytes, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding tx body: %w", err)
	}
	tx := &UnsignedTx{
		Fee:          body.Fee,
		Outputs:      outputs,
		requiredKeys: requiredKeys,
		body:         bodyBytes,
		witness:      witness,
	}
	copy(tx.ID[:], hash.Sum256(bodyBytes))
	for _, in := range body.Inputs {
		tx.Inputs = append(tx.Inputs, decodeInput(in))
	}
	for _, in := range body.Collateral {
		tx.Collateral = append(tx.Collateral, decodeInput(in))
	}
	for _, rs := range body.RequiredSigners {
		kh, err := NewKeyHash(rs)
		if err != nil {
			return nil, err
		}
		tx.RequiredSigners = append(tx.RequiredSigners, kh)
	}
	return tx, nil
}

func decodeInput(in txInput) Input {
	var res Input
	copy(res.TxID[:], in.TxID)
	res.Index = in.Index
	return res
}

// BodyBytes returns the CBOR encoded transaction body.
func (tx *UnsignedTx) BodyBytes() []byte {
	return bytes.Clone(tx.body)
}

// RequiredKeys returns the key hashes whose witnesses the ledger expects:
// owners of spent and collateral inputs and the required signers.
func (tx *UnsignedTx) RequiredKeys() []KeyHash {
	return slices.Clone(tx.requiredKeys)
}

// Sign returns the serialized transaction with the key witnesses added.
// Unless partial is set every required key must be covered.
func (tx *UnsignedTx) Sign(partial bool, witnesses ...VKeyWitness) ([]byte, error) {
	if !partial {
		for _, kh := range tx.requiredKeys {
			if !slices.ContainsFunc(witnesses, func(w VKeyWitness) bool { return KeyHashOf(w.VKey) == kh }) {
				return nil, fmt.Errorf("%w: %s", ErrMissingWitness, kh)
			}
		}
	}
	ws := tx.witness
	ws.VKeys = make([]vkeyWitness, 0, len(witnesses))
	for _, w := range witnesses {
		if len(w.VKey) != vkeySize || len(w.Signature) != signatureSize {
			return nil, fmt.Errorf("invalid witness: key %d bytes, signature %d bytes", len(w.VKey), len(w.Signature))
		}
		ws.VKeys = append(ws.VKeys, vkeyWitness{VKey: w.VKey, Signature: w.Signature})
	}
	return encodeTx(tx.body, ws)
}

// dummySigned returns the transaction with placeholder witnesses for each
// required key, its size equals the size of the signed transaction.
func (tx *UnsignedTx) dummySigned() ([]byte, error) {
	ws := tx.witness
	for range tx.requiredKeys {
		ws.VKeys = append(ws.VKeys, vkeyWitness{VKey: make([]byte, vkeySize), Signature: make([]byte, signatureSize)})
	}
	return encodeTx(tx.body, ws)
}

func encodeTx(body []byte, ws witnessSet) ([]byte, error) {
	witness, err := cbor.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("encoding witness set: %w", err)
	}
	b, err := cbor.Marshal(txEnvelope{Body: body, Witness: witness, Valid: true, Aux: cborNull})
	if err != nil {
		return nil, fmt.Errorf("encoding transaction: %w", err)
	}
	return b, nil
}
