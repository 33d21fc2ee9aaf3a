package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// HardenedOffset is added to the index of hardened derivation steps.
	HardenedOffset uint32 = 0x80000000

	extendedKeySize = 64
	chainCodeSize   = 32
	masterKeyRounds = 4096
)

var (
	ErrInvalidKey       = errors.New("invalid extended key")
	ErrInvalidPath      = errors.New("invalid derivation path")
	ErrInvalidSignature = errors.New("signature verification failed")
)

type (
	// ExtendedKey is a BIP32-Ed25519 private key: the 64 byte extended
	// secret (kL, kR) and the chain code.
	ExtendedKey struct {
		key       [extendedKeySize]byte
		chainCode [chainCodeSize]byte
	}

	Ed25519Verifier struct {
		key ed25519.PublicKey
	}
)

// NewMasterKey derives the root key from mnemonic entropy the way Icarus
// style wallets do.
func NewMasterKey(entropy []byte, password string) *ExtendedKey {
	b := pbkdf2.Key([]byte(password), entropy, masterKeyRounds, extendedKeySize+chainCodeSize, sha512.New)
	b[0] &= 0xf8
	b[31] &= 0x1f
	b[31] |= 0x40

	k := &ExtendedKey{}
	copy(k.key[:], b[:extendedKeySize])
	copy(k.chainCode[:], b[extendedKeySize:])
	return k
}

// ExtendedKeyFromBytes parses the 96 bytes returned by MarshalPrivateKey.
func ExtendedKeyFromBytes(b []byte) (*ExtendedKey, error) {
	if len(b) != extendedKeySize+chainCodeSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, extendedKeySize+chainCodeSize, len(b))
	}
	if b[0]&0x07 != 0 || b[31]&0x40 == 0 {
		return nil, fmt.Errorf("%w: key bits are not clamped", ErrInvalidKey)
	}
	k := &ExtendedKey{}
	copy(k.key[:], b[:extendedKeySize])
	copy(k.chainCode[:], b[extendedKeySize:])
	return k, nil
}

// ParseDerivationPath parses paths like m/1852'/1815'/0'/0/0.
func ParseDerivationPath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q must start with m", ErrInvalidPath, path)
	}
	res := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "H")
		p = strings.TrimRight(p, "'H")
		n, err := strconv.ParseUint(p, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
		}
		idx := uint32(n)
		if hardened {
			idx += HardenedOffset
		}
		res = append(res, idx)
	}
	return res, nil
}

// DerivePath derives the key at the path relative to k.
func (k *ExtendedKey) DerivePath(path []uint32) *ExtendedKey {
	res := k
	for _, idx := range path {
		res = res.Derive(idx)
	}
	return res
}

// Derive returns the child key at index, indexes from HardenedOffset up
// are hardened.
func (k *ExtendedKey) Derive(index uint32) *ExtendedKey {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)

	var z, cc []byte
	if index >= HardenedOffset {
		z = hmacSHA512(k.chainCode[:], []byte{0x00}, k.key[:], idx[:])
		cc = hmacSHA512(k.chainCode[:], []byte{0x01}, k.key[:], idx[:])
	} else {
		pub := k.PublicKey()
		z = hmacSHA512(k.chainCode[:], []byte{0x02}, pub, idx[:])
		cc = hmacSHA512(k.chainCode[:], []byte{0x03}, pub, idx[:])
	}

	child := &ExtendedKey{}
	zl8 := mul8(z[:28])
	add256(child.key[:32], zl8[:], k.key[:32])
	add256(child.key[32:], z[32:], k.key[32:])
	copy(child.chainCode[:], cc[32:])
	return child
}

// PublicKey returns the ed25519 public key kL*B.
func (k *ExtendedKey) PublicKey() []byte {
	return new(edwards25519.Point).ScalarBaseMult(k.scalar()).Bytes()
}

// SignBytes returns the ed25519 signature of data. The nonce is derived from
// kR as the extended secret takes the place of the hashed seed.
func (k *ExtendedKey) SignBytes(data []byte) ([]byte, error) {
	pub := k.PublicKey()

	h := sha512.New()
	h.Write(k.key[32:])
	h.Write(data)
	r, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, err
	}
	noncePoint := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	h.Reset()
	h.Write(noncePoint)
	h.Write(pub)
	h.Write(data)
	hram, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, err
	}
	s := edwards25519.NewScalar().MultiplyAdd(hram, k.scalar(), r)

	return append(noncePoint, s.Bytes()...), nil
}

func (k *ExtendedKey) Verifier() Verifier {
	return NewEd25519Verifier(k.PublicKey())
}

// MarshalPrivateKey returns the extended secret followed by the chain code.
func (k *ExtendedKey) MarshalPrivateKey() ([]byte, error) {
	res := make([]byte, 0, extendedKeySize+chainCodeSize)
	res = append(res, k.key[:]...)
	return append(res, k.chainCode[:]...), nil
}

// scalar returns kL reduced modulo the group order, kL*B is the same point
// as the reduction.
func (k *ExtendedKey) scalar() *edwards25519.Scalar {
	var wide [64]byte
	copy(wide[:], k.key[:32])
	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		// input is always 64 bytes
		panic(err)
	}
	return s
}

func NewEd25519Verifier(pubKey []byte) *Ed25519Verifier {
	return &Ed25519Verifier{key: append(ed25519.PublicKey{}, pubKey...)}
}

func (v *Ed25519Verifier) VerifyBytes(sig []byte, data []byte) error {
	if len(v.key) != ed25519.PublicKeySize || !ed25519.Verify(v.key, data, sig) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *Ed25519Verifier) MarshalPublicKey() ([]byte, error) {
	return append([]byte{}, v.key...), nil
}

func hmacSHA512(key []byte, parts ...[]byte) []byte {
	mac := hmac.New(sha512.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}

// mul8 returns 8*x for the 28 byte little endian x.
func mul8(x []byte) [32]byte {
	var res [32]byte
	var carry byte
	for i, b := range x {
		res[i] = b<<3 | carry
		carry = b >> 5
	}
	res[len(x)] = carry
	return res
}

// add256 stores x+y modulo 2^256 into dst, all little endian.
func add256(dst, x, y []byte) {
	var carry uint16
	for i := 0; i < 32; i++ {
		sum := uint16(x[i]) + uint16(y[i]) + carry
		dst[i] = byte(sum)
		carry = sum >> 8
	}
}
