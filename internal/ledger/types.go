package ledger

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/alphabill-org/payment-splitter/internal/hash"
)

type (
	// KeyHash is a blake2b-224 hash of a verification key.
	KeyHash [hash.Size224]byte

	// TxHash identifies a transaction, blake2b-256 of the transaction body.
	TxHash [hash.Size256]byte

	Input struct {
		TxID  TxHash
		Index uint32
	}

	Asset struct {
		PolicyID []byte
		Name     []byte
		Quantity uint64
	}

	Output struct {
		Address   Address
		Amount    uint64
		Assets    []Asset
		DatumHash []byte
		// InlineDatum is the CBOR of the datum stored in the output.
		InlineDatum []byte
	}

	UTxO struct {
		Input
		Output
	}
)

func NewKeyHash(b []byte) (KeyHash, error) {
	var kh KeyHash
	if len(b) != len(kh) {
		return kh, fmt.Errorf("key hash must be %d bytes, got %d", len(kh), len(b))
	}
	copy(kh[:], b)
	return kh, nil
}

// KeyHashOf returns the hash of the verification key.
func KeyHashOf(pubKey []byte) KeyHash {
	var kh KeyHash
	copy(kh[:], hash.Sum224(pubKey))
	return kh
}

func ParseKeyHash(s string) (KeyHash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return KeyHash{}, fmt.Errorf("decoding key hash: %w", err)
	}
	return NewKeyHash(b)
}

func (kh KeyHash) String() string {
	return hex.EncodeToString(kh[:])
}

func (kh KeyHash) MarshalText() ([]byte, error) {
	return []byte(kh.String()), nil
}

func (kh *KeyHash) UnmarshalText(b []byte) error {
	v, err := ParseKeyHash(string(b))
	if err != nil {
		return err
	}
	*kh = v
	return nil
}

func (kh KeyHash) Bytes() []byte {
	return bytes.Clone(kh[:])
}

func ParseTxHash(s string) (TxHash, error) {
	var h TxHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decoding tx hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("tx hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h TxHash) String() string {
	return hex.EncodeToString(h[:])
}

func (in Input) String() string {
	return fmt.Sprintf("%s#%d", in.TxID, in.Index)
}

func (in Input) less(other Input) bool {
	if c := bytes.Compare(in.TxID[:], other.TxID[:]); c != 0 {
		return c < 0
	}
	return in.Index < other.Index
}

// PureAda reports whether the output holds lovelace only and no datum.
func (o Output) PureAda() bool {
	return len(o.Assets) == 0 && len(o.DatumHash) == 0 && len(o.InlineDatum) == 0
}

// SumAmount returns the total lovelace of the UTxOs.
func SumAmount(utxos []UTxO) uint64 {
	var sum uint64
	for _, u := range utxos {
		sum += u.Amount
	}
	return sum
}

// sortInputs orders inputs the way the ledger orders the input set.
func sortInputs(ins []Input) {
	sort.Slice(ins, func(i, j int) bool { return ins[i].less(ins[j]) })
}

// mergeAssets adds up quantities of equal assets.
func mergeAssets(sets ...[]Asset) []Asset {
	var res []Asset
	for _, set := range sets {
	next:
		for _, a := range set {
			for i := range res {
				if bytes.Equal(res[i].PolicyID, a.PolicyID) && bytes.Equal(res[i].Name, a.Name) {
					res[i].Quantity += a.Quantity
					continue next
				}
			}
			res = append(res, Asset{PolicyID: bytes.Clone(a.PolicyID), Name: bytes.Clone(a.Name), Quantity: a.Quantity})
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if c := bytes.Compare(res[i].PolicyID, res[j].PolicyID); c != 0 {
			return c < 0
		}
		return bytes.Compare(res[i].Name, res[j].Name) < 0
	})
	return res
}
