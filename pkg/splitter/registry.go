package splitter

import (
	"errors"
	"fmt"
	"slices"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

var ErrEmptyPayeeSet = errors.New("payee set is empty")

type (
	// PaymentCredentialHash identifies the spending key of a payee.
	PaymentCredentialHash = ledger.KeyHash

	// PayeeSet is the ordered list of payee credentials baked into the
	// script. The order determines the script address.
	PayeeSet struct {
		hashes []PaymentCredentialHash
	}
)

// Register creates the payee set keeping the order of hashes. Duplicates are
// kept.
func Register(hashes []PaymentCredentialHash) (*PayeeSet, error) {
	if len(hashes) == 0 {
		return nil, ErrEmptyPayeeSet
	}
	return &PayeeSet{hashes: slices.Clone(hashes)}, nil
}

// PayeeSetFromAddresses registers the payment key hashes of the payee
// addresses.
func PayeeSetFromAddresses(addrs []ledger.Address) (*PayeeSet, error) {
	hashes := make([]PaymentCredentialHash, 0, len(addrs))
	for i, addr := range addrs {
		kh, err := addr.PaymentKeyHash()
		if err != nil {
			return nil, fmt.Errorf("payee %d (%s): %w", i, addr, err)
		}
		hashes = append(hashes, kh)
	}
	return Register(hashes)
}

func (p *PayeeSet) Hashes() []PaymentCredentialHash {
	return slices.Clone(p.hashes)
}

func (p *PayeeSet) Len() int {
	return len(p.hashes)
}

// Parameter returns the script parameter: a list of the credential bytes.
func (p *PayeeSet) Parameter() plutus.Data {
	hashes := make([][]byte, len(p.hashes))
	for i, h := range p.hashes {
		hashes[i] = h.Bytes()
	}
	return plutus.PayeeParameter(hashes)
}
