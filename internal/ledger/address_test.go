package ledger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewScriptAddress(t *testing.T) {
	scriptHash := bytes.Repeat([]byte{0xab}, 28)

	addr, err := NewScriptAddress(scriptHash, Testnet)
	require.NoError(t, err)
	require.EqualValues(t, 0x70, addr.Bytes()[0])
	require.True(t, addr.IsScript())
	require.Equal(t, Testnet, addr.Network())
	require.True(t, strings.HasPrefix(addr.String(), "addr_test1w"), addr.String())
	require.Equal(t, scriptHash, addr.PaymentCredential())

	mainnet, err := NewScriptAddress(scriptHash, Mainnet)
	require.NoError(t, err)
	require.EqualValues(t, 0x71, mainnet.Bytes()[0])
	require.True(t, strings.HasPrefix(mainnet.String(), "addr1w"), mainnet.String())

	again, err := NewScriptAddress(scriptHash, Testnet)
	require.NoError(t, err)
	require.Equal(t, addr.String(), again.String())
}

func TestNewScriptAddress_InvalidNetwork(t *testing.T) {
	_, err := NewScriptAddress(bytes.Repeat([]byte{1}, 28), Network(2))
	require.ErrorIs(t, err, ErrInvalidNetwork)

	_, err = NewScriptAddress([]byte{1, 2, 3}, Testnet)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestParseAddress_RoundTrip(t *testing.T) {
	base, err := NewBaseAddress(testKeyHash(1), testKeyHash(2), Testnet)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(base.String(), "addr_test1q"), base.String())

	parsed, err := ParseAddress(base.String())
	require.NoError(t, err)
	require.True(t, base.Equal(parsed))
	require.False(t, parsed.IsScript())

	kh, err := parsed.PaymentKeyHash()
	require.NoError(t, err)
	require.Equal(t, testKeyHash(1), kh)
}

func TestAddress_PaymentKeyHashOfScript(t *testing.T) {
	addr, err := NewScriptAddress(bytes.Repeat([]byte{0xab}, 28), Testnet)
	require.NoError(t, err)
	_, err = addr.PaymentKeyHash()
	require.ErrorIs(t, err, ErrScriptAddress)
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, s := range []string{"", "addr_test1", "not an address", "addr1qxyz"} {
		_, err := ParseAddress(s)
		require.ErrorIs(t, err, ErrInvalidAddress, s)
	}

	// prefix of the other network
	testnet := testAddress(t, 3)
	mainnet, err := NewEnterpriseAddress(testKeyHash(3), Mainnet)
	require.NoError(t, err)
	swapped := "addr" + strings.TrimPrefix(testnet.String(), "addr_test")
	require.NotEqual(t, mainnet.String(), swapped)
	_, err = ParseAddress(swapped)
	require.Error(t, err)
}

func TestAddress_TextMarshaling(t *testing.T) {
	addr := testAddress(t, 7)
	text, err := addr.MarshalText()
	require.NoError(t, err)

	var decoded Address
	require.NoError(t, decoded.UnmarshalText(text))
	require.True(t, addr.Equal(decoded))
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("preprod")
	require.NoError(t, err)
	require.Equal(t, Testnet, n)
	n, err = ParseNetwork("mainnet")
	require.NoError(t, err)
	require.Equal(t, Mainnet, n)
	_, err = ParseNetwork("2")
	require.ErrorIs(t, err, ErrInvalidNetwork)
}
