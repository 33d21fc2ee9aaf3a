package account

import (
	"sync"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
)

type (
	// payees helper struct caching payee public key hashes
	payees struct {
		mu     sync.Mutex // mu mutex guarding payees field
		payees []Payee
	}

	Payee struct {
		Index          uint64
		PaymentKeyHash ledger.KeyHash
		StakeKeyHash   ledger.KeyHash
	}
)

// Address returns the base address of the payee.
func (p Payee) Address(network ledger.Network) (ledger.Address, error) {
	return ledger.NewBaseAddress(p.PaymentKeyHash, p.StakeKeyHash, network)
}

func newPayee(index uint64, keys *Keys) Payee {
	return Payee{
		Index:          index,
		PaymentKeyHash: keys.PaymentKey.PubKeyHash,
		StakeKeyHash:   keys.StakeKey.PubKeyHash,
	}
}

func (p *payees) add(payee Payee) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payees = append(p.payees, payee)
}

func (p *payees) getAll() []Payee {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]Payee, len(p.payees))
	copy(res, p.payees)
	return res
}
