package plutus

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

// lam lam lam delay lam var 1, as written by cardano-cli with two CBOR layers
const alwaysSucceedsDoubleWrapped = "49480100002221200101"

func testValidator(t *testing.T) CompiledValidator {
	t.Helper()
	flat, err := EncodeFlat(&Program{
		Version: [3]uint64{1, 0, 0},
		Term:    &Lambda{Body: &Lambda{Body: &Lambda{Body: &Lambda{Body: &Var{Index: 4}}}}},
	})
	require.NoError(t, err)
	code, err := cbor.Marshal(flat)
	require.NoError(t, err)
	return CompiledValidator{Version: PlutusV2, Code: code}
}

func testHashes(n int) [][]byte {
	res := make([][]byte, n)
	for i := range res {
		res[i] = bytes.Repeat([]byte{byte(i + 1)}, 28)
	}
	return res
}

func TestNormalize(t *testing.T) {
	double, err := hex.DecodeString(alwaysSucceedsDoubleWrapped)
	require.NoError(t, err)
	single := double[1:]
	flat := single[1:]

	enc, canonical, err := Normalize(double)
	require.NoError(t, err)
	require.Equal(t, NeedsUnwrap, enc)
	require.Equal(t, single, canonical)

	enc, canonical, err = Normalize(single)
	require.NoError(t, err)
	require.Equal(t, AlreadyCanonical, enc)
	require.Equal(t, single, canonical)

	enc, canonical, err = Normalize(flat)
	require.NoError(t, err)
	require.Equal(t, NeedsWrap, enc)
	require.Equal(t, single, canonical)
}

func TestNormalize_Malformed(t *testing.T) {
	for _, input := range [][]byte{nil, {0xde, 0xad, 0xbe, 0xef}, {0x43, 0x01, 0x02, 0x03}, {0x41}} {
		orig := append([]byte{}, input...)
		_, _, err := Normalize(input)
		require.ErrorIs(t, err, ErrInvalidScriptEncoding)
		require.True(t, bytes.Equal(orig, input), "input modified: %X", input)
	}
}

func TestParameterize(t *testing.T) {
	v := testValidator(t)
	orig := append([]byte{}, v.Code...)

	script, err := Parameterize(v, PayeeParameter(testHashes(3)))
	require.NoError(t, err)
	require.Equal(t, orig, v.Code)
	require.Equal(t, PlutusV2, script.Version)
	require.Len(t, script.Hash(), 28)

	prog, err := script.Program()
	require.NoError(t, err)
	app, ok := prog.Term.(*Apply)
	require.True(t, ok, "expected application, got %T", prog.Term)
	require.IsType(t, &Lambda{}, app.Function)
	c, ok := app.Argument.(*Constant)
	require.True(t, ok)
	require.Equal(t, TypeData, c.Type.Kind)
	want, err := PayeeParameter(testHashes(3)).MarshalCBOR()
	require.NoError(t, err)
	require.EqualValues(t, want, c.Value)
}

// Applying the payee list to known validators must give byte identical
// scripts to an encoder following the flat format, otherwise funds are locked
// to an address no transaction can spend from.
func TestParameterize_KnownVectors(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		script string
		hash   string
	}{
		{
			name:   "always succeeds",
			code:   alwaysSucceedsDoubleWrapped[2:],
			script: "58680100003222120014c15c9f581c01010101010101010101010101010101010101010101010101010101581c02020202020202020202020202020202020202020202020202020202581c03030303030303030303030303030303030303030303030303030303ff0001",
			hash:   "79e4da41af53075b18d762fc391d26db83802f1bbe400e5a69df63ce",
		},
		{
			// ifThenElse with bool, integer and error branches
			name:   "builtins and constants",
			code:   "55010000222233357349444cdc0240a6904044bd0b01",
			script: "58750100003222233357349444cdc0240a6904044bd0b2615c9f581c01010101010101010101010101010101010101010101010101010101581c02020202020202020202020202020202020202020202020202020202581c03030303030303030303030303030303030303030303030303030303ff0001",
			hash:   "b189fb4df2c46f30ea06d8dc889fd193b9a3fb23e24f98c72699ade8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := hex.DecodeString(tt.code)
			require.NoError(t, err)
			script, err := Parameterize(CompiledValidator{Version: PlutusV2, Code: code}, PayeeParameter(testHashes(3)))
			require.NoError(t, err)
			require.Equal(t, tt.script, hex.EncodeToString(script.Bytes))
			require.Equal(t, tt.hash, hex.EncodeToString(script.Hash()))
		})
	}
}

func TestParameterize_Deterministic(t *testing.T) {
	v := testValidator(t)
	hashes := testHashes(3)

	a, err := Parameterize(v, PayeeParameter(hashes))
	require.NoError(t, err)
	b, err := Parameterize(v, PayeeParameter(hashes))
	require.NoError(t, err)
	require.Equal(t, a.Bytes, b.Bytes)
	require.Equal(t, a.Hash(), b.Hash())

	reversed := [][]byte{hashes[2], hashes[1], hashes[0]}
	c, err := Parameterize(v, PayeeParameter(reversed))
	require.NoError(t, err)
	require.NotEqual(t, a.Hash(), c.Hash())
}

func TestParameterize_AcceptsAnyEncoding(t *testing.T) {
	double, err := hex.DecodeString(alwaysSucceedsDoubleWrapped)
	require.NoError(t, err)
	param := PayeeParameter(testHashes(1))

	a, err := Parameterize(CompiledValidator{Version: PlutusV2, Code: double}, param)
	require.NoError(t, err)
	b, err := Parameterize(CompiledValidator{Version: PlutusV2, Code: double[1:]}, param)
	require.NoError(t, err)
	c, err := Parameterize(CompiledValidator{Version: PlutusV2, Code: double[2:]}, param)
	require.NoError(t, err)
	require.Equal(t, a.Bytes, b.Bytes)
	require.Equal(t, a.Bytes, c.Bytes)
}

func TestParameterize_NotApplicable(t *testing.T) {
	flat, err := EncodeFlat(&Program{Version: [3]uint64{1, 0, 0}, Term: NewIntegerConstant(42)})
	require.NoError(t, err)
	_, err = Parameterize(CompiledValidator{Version: PlutusV2, Code: flat}, NewInt(1))
	require.ErrorIs(t, err, ErrParameterApplication)

	flat, err = EncodeFlat(&Program{Version: [3]uint64{1, 0, 0}, Term: &Lambda{Body: &Delay{Body: &Var{Index: 1}}}})
	require.NoError(t, err)
	_, err = Parameterize(CompiledValidator{Version: PlutusV2, Code: flat}, NewInt(1), NewInt(2))
	require.ErrorIs(t, err, ErrParameterApplication)
}

func TestParameterize_Malformed(t *testing.T) {
	code := []byte{0x01, 0x02, 0x03}
	_, err := Parameterize(CompiledValidator{Version: PlutusV2, Code: code}, NewInt(1))
	require.ErrorIs(t, err, ErrInvalidScriptEncoding)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, code)
}

func TestScript_HashDependsOnVersion(t *testing.T) {
	v2 := &Script{Version: PlutusV2, Bytes: []byte{0x41, 0x01}}
	v3 := &Script{Version: PlutusV3, Bytes: []byte{0x41, 0x01}}
	require.NotEqual(t, v2.Hash(), v3.Hash())
}

func TestParseLanguageVersion(t *testing.T) {
	v, err := ParseLanguageVersion("v2")
	require.NoError(t, err)
	require.Equal(t, PlutusV2, v)
	_, err = ParseLanguageVersion("v9")
	require.ErrorIs(t, err, ErrUnknownLanguage)
}
