package account

import (
	"context"
	"fmt"

	"github.com/alphabill-org/payment-splitter/internal/crypto"
	"github.com/alphabill-org/payment-splitter/internal/ledger"
)

// Signer signs transactions with the payment key of a payee.
type Signer struct {
	key     *crypto.ExtendedKey
	keyHash ledger.KeyHash
	address ledger.Address
}

func NewSigner(keys *Keys, network ledger.Network) (*Signer, error) {
	if keys == nil || keys.PaymentKey == nil || keys.StakeKey == nil {
		return nil, fmt.Errorf("signer keys missing")
	}
	key, err := keys.PaymentKey.ExtendedKey()
	if err != nil {
		return nil, fmt.Errorf("loading payment key: %w", err)
	}
	addr, err := keys.Address(network)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, keyHash: keys.PaymentKey.PubKeyHash, address: addr}, nil
}

// Address returns the base address owning the signer's funds.
func (s *Signer) Address() ledger.Address {
	return s.address
}

func (s *Signer) PaymentKeyHash() ledger.KeyHash {
	return s.keyHash
}

// SignTx adds the signer's witness to tx and returns the serialized
// transaction. With partial unset every key required by tx must belong to
// the signer.
func (s *Signer) SignTx(ctx context.Context, tx *ledger.UnsignedTx, partial bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := s.key.SignBytes(tx.ID[:])
	if err != nil {
		return nil, fmt.Errorf("signing tx %s: %w", tx.ID, err)
	}
	log.Debug("signed tx %s with key %s", tx.ID, s.keyHash)
	return tx.Sign(partial, ledger.VKeyWitness{VKey: s.key.PublicKey(), Signature: sig})
}
