package account

import (
	"errors"
	"fmt"

	"github.com/tyler-smith/go-bip39"

	"github.com/alphabill-org/payment-splitter/internal/crypto"
	"github.com/alphabill-org/payment-splitter/internal/ledger"
)

type (
	// Keys of a payee, derived from its own mnemonic.
	Keys struct {
		Mnemonic   string      `json:"mnemonic"`
		PaymentKey *AccountKey `json:"paymentKey"`
		StakeKey   *AccountKey `json:"stakeKey"`
	}

	AccountKey struct {
		PubKey []byte `json:"pubKey"` // ed25519 public key 32 bytes
		// PrivKey is the BIP32-Ed25519 extended secret followed by the chain code
		PrivKey        []byte         `json:"privKey"`
		PubKeyHash     ledger.KeyHash `json:"pubKeyHash"`
		DerivationPath string         `json:"derivationPath"`
	}
)

const (
	// CIP-1852: m / purpose' / coin_type' / account' / role / index
	// role 0 is the external chain, role 2 the staking key
	PaymentKeyPath = "m/1852'/1815'/0'/0/0"
	StakeKeyPath   = "m/1852'/1815'/0'/2/0"

	mnemonicEntropyBitSize = 256
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// NewKeys generates payee keys from given mnemonic, or generates mnemonic first if empty string is provided
func NewKeys(mnemonic string) (*Keys, error) {
	if mnemonic == "" {
		var err error
		if mnemonic, err = generateMnemonic(); err != nil {
			return nil, err
		}
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	masterKey := crypto.NewMasterKey(entropy, "")

	paymentKey, err := NewAccountKey(masterKey, PaymentKeyPath)
	if err != nil {
		return nil, err
	}
	stakeKey, err := NewAccountKey(masterKey, StakeKeyPath)
	if err != nil {
		return nil, err
	}
	return &Keys{
		Mnemonic:   mnemonic,
		PaymentKey: paymentKey,
		StakeKey:   stakeKey,
	}, nil
}

// NewAccountKey derives the key at derivationPath from the master key.
func NewAccountKey(masterKey *crypto.ExtendedKey, derivationPath string) (*AccountKey, error) {
	path, err := crypto.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, err
	}
	key := masterKey.DerivePath(path)
	privKey, err := key.MarshalPrivateKey()
	if err != nil {
		return nil, err
	}
	pubKey := key.PublicKey()
	return &AccountKey{
		PubKey:         pubKey,
		PrivKey:        privKey,
		PubKeyHash:     ledger.KeyHashOf(pubKey),
		DerivationPath: derivationPath,
	}, nil
}

// Address returns the base address of the keys.
func (k *Keys) Address(network ledger.Network) (ledger.Address, error) {
	return ledger.NewBaseAddress(k.PaymentKey.PubKeyHash, k.StakeKey.PubKeyHash, network)
}

// ExtendedKey returns the signing key.
func (k *AccountKey) ExtendedKey() (*crypto.ExtendedKey, error) {
	return crypto.ExtendedKeyFromBytes(k.PrivKey)
}

func generateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBitSize)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}
