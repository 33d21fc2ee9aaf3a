package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/alphabill-org/payment-splitter/internal/hash"
)

const (
	Testnet Network = 0
	Mainnet Network = 1

	hrpMainnet = "addr"
	hrpTestnet = "addr_test"

	addrTypeBaseKeyKey    = 0
	addrTypeEnterpriseKey = 6
	addrTypeEnterpriseScr = 7
	addrTypeRewardKey     = 14
	addrTypeRewardScript  = 15

	baseAddressLen       = 1 + 2*hash.Size224
	enterpriseAddressLen = 1 + hash.Size224
)

var (
	ErrInvalidNetwork = errors.New("invalid network id")
	ErrInvalidAddress = errors.New("invalid address")
	ErrScriptAddress  = errors.New("address payment part is a script")
)

// Network id as encoded in the address header.
type Network byte

// Address is a Shelley era address in its raw byte form.
type Address struct {
	raw []byte
}

func (n Network) Valid() bool {
	return n == Testnet || n == Mainnet
}

func (n Network) String() string {
	switch n {
	case Testnet:
		return "testnet"
	case Mainnet:
		return "mainnet"
	default:
		return fmt.Sprintf("network(%d)", byte(n))
	}
}

// ParseNetwork accepts network names as used in configuration.
func ParseNetwork(s string) (Network, error) {
	switch s {
	case "0", "testnet", "preprod", "preview":
		return Testnet, nil
	case "1", "mainnet":
		return Mainnet, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidNetwork, s)
	}
}

// NewScriptAddress returns the enterprise address of the script with the
// given hash.
func NewScriptAddress(scriptHash []byte, network Network) (Address, error) {
	if !network.Valid() {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidNetwork, network)
	}
	if len(scriptHash) != hash.Size224 {
		return Address{}, fmt.Errorf("%w: script hash must be %d bytes, got %d", ErrInvalidAddress, hash.Size224, len(scriptHash))
	}
	return Address{raw: append([]byte{addrTypeEnterpriseScr<<4 | byte(network)}, scriptHash...)}, nil
}

// NewBaseAddress returns an address with key hash payment and stake parts.
func NewBaseAddress(payment, stake KeyHash, network Network) (Address, error) {
	if !network.Valid() {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidNetwork, network)
	}
	raw := make([]byte, 0, baseAddressLen)
	raw = append(raw, addrTypeBaseKeyKey<<4|byte(network))
	raw = append(raw, payment[:]...)
	raw = append(raw, stake[:]...)
	return Address{raw: raw}, nil
}

// NewEnterpriseAddress returns an address without a stake part.
func NewEnterpriseAddress(payment KeyHash, network Network) (Address, error) {
	if !network.Valid() {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidNetwork, network)
	}
	return Address{raw: append([]byte{addrTypeEnterpriseKey<<4 | byte(network)}, payment[:]...)}, nil
}

// ParseAddress decodes a bech32 encoded Shelley address.
func ParseAddress(s string) (Address, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	addr, err := AddressFromBytes(raw)
	if err != nil {
		return Address{}, err
	}
	if addr.hrp() != hrp {
		return Address{}, fmt.Errorf("%w: prefix %q does not match network %s", ErrInvalidAddress, hrp, addr.Network())
	}
	return addr, nil
}

// AddressFromBytes validates the raw address bytes.
func AddressFromBytes(raw []byte) (Address, error) {
	if len(raw) == 0 {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	typ := raw[0] >> 4
	switch {
	case typ <= 3:
		if len(raw) != baseAddressLen {
			return Address{}, fmt.Errorf("%w: base address length %d", ErrInvalidAddress, len(raw))
		}
	case typ == 4 || typ == 5:
		if len(raw) <= enterpriseAddressLen {
			return Address{}, fmt.Errorf("%w: pointer address length %d", ErrInvalidAddress, len(raw))
		}
	case typ == addrTypeEnterpriseKey || typ == addrTypeEnterpriseScr || typ == addrTypeRewardKey || typ == addrTypeRewardScript:
		if len(raw) != enterpriseAddressLen {
			return Address{}, fmt.Errorf("%w: address length %d", ErrInvalidAddress, len(raw))
		}
	default:
		return Address{}, fmt.Errorf("%w: unsupported address type %d", ErrInvalidAddress, typ)
	}
	if n := Network(raw[0] & 0x0f); !n.Valid() {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidNetwork, n)
	}
	return Address{raw: bytes.Clone(raw)}, nil
}

func (a Address) Bytes() []byte {
	return bytes.Clone(a.raw)
}

func (a Address) IsZero() bool {
	return len(a.raw) == 0
}

func (a Address) Equal(b Address) bool {
	return bytes.Equal(a.raw, b.raw)
}

func (a Address) Network() Network {
	if a.IsZero() {
		return 0
	}
	return Network(a.raw[0] & 0x0f)
}

// IsScript reports whether the payment part of the address is a script hash.
func (a Address) IsScript() bool {
	if a.IsZero() {
		return false
	}
	typ := a.raw[0] >> 4
	return typ < addrTypeRewardKey && typ%2 == 1 || typ == addrTypeRewardScript
}

// PaymentCredential returns the payment key or script hash.
func (a Address) PaymentCredential() []byte {
	if len(a.raw) < enterpriseAddressLen {
		return nil
	}
	return bytes.Clone(a.raw[1:enterpriseAddressLen])
}

// PaymentKeyHash returns the payment key hash of the address. Fails for
// addresses locked by a script.
func (a Address) PaymentKeyHash() (KeyHash, error) {
	var kh KeyHash
	if a.IsZero() {
		return kh, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if a.IsScript() {
		return kh, ErrScriptAddress
	}
	copy(kh[:], a.raw[1:enterpriseAddressLen])
	return kh, nil
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	data, err := bech32.ConvertBits(a.raw, 8, 5, true)
	if err != nil {
		return ""
	}
	s, err := bech32.Encode(a.hrp(), data)
	if err != nil {
		return ""
	}
	return s
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	addr, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

func (a Address) hrp() string {
	if a.Network() == Mainnet {
		return hrpMainnet
	}
	return hrpTestnet
}
