package splitter

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

const testBlueprint = `{
  "preamble": {"title": "aiken-lang/payment-splitter", "plutusVersion": "v2"},
  "validators": [
    {"title": "payment_splitter.spend", "compiledCode": "480100002221200101", "hash": "00"},
    {"title": "other.spend", "compiledCode": "4e4d01000033222220051200120011", "hash": "00"}
  ]
}`

func TestParseCompiledValidator_Blueprint(t *testing.T) {
	v, err := ParseCompiledValidator([]byte(testBlueprint), "")
	require.NoError(t, err)
	require.Equal(t, plutus.PlutusV2, v.Version)
	require.Equal(t, "480100002221200101", hex.EncodeToString(v.Code))

	v, err = ParseCompiledValidator([]byte(testBlueprint), "other.spend")
	require.NoError(t, err)
	require.Equal(t, "4e4d01000033222220051200120011", hex.EncodeToString(v.Code))

	_, err = ParseCompiledValidator([]byte(testBlueprint), "missing")
	require.ErrorIs(t, err, ErrMissingValidator)
}

func TestParseCompiledValidator_TextEnvelope(t *testing.T) {
	v, err := ParseCompiledValidator([]byte(`{"type": "PlutusScriptV2", "description": "", "cborHex": "49480100002221200101"}`), "")
	require.NoError(t, err)
	require.Equal(t, plutus.PlutusV2, v.Version)
	enc, _, err := plutus.Normalize(v.Code)
	require.NoError(t, err)
	require.Equal(t, plutus.NeedsUnwrap, enc)
}

func TestParseCompiledValidator_Errors(t *testing.T) {
	_, err := ParseCompiledValidator([]byte(`{"preamble": {"plutusVersion": "v2"}, "validators": []}`), "")
	require.ErrorIs(t, err, ErrMissingValidator)

	_, err = ParseCompiledValidator([]byte(`{"preamble": {"plutusVersion": "v9"}, "validators": [{"compiledCode": "00"}]}`), "")
	require.ErrorIs(t, err, plutus.ErrUnknownLanguage)

	_, err = ParseCompiledValidator([]byte(`{"preamble": {"plutusVersion": "v2"}, "validators": [{"compiledCode": "xyz"}]}`), "")
	require.ErrorIs(t, err, plutus.ErrInvalidScriptEncoding)

	_, err = ParseCompiledValidator([]byte(`not json`), "")
	require.Error(t, err)
}

func TestLoadCompiledValidator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plutus.json")
	require.NoError(t, os.WriteFile(path, []byte(testBlueprint), 0600))
	v, err := LoadCompiledValidator(path, "payment_splitter.spend")
	require.NoError(t, err)
	require.Equal(t, plutus.PlutusV2, v.Version)

	_, err = LoadCompiledValidator(filepath.Join(t.TempDir(), "missing.json"), "")
	require.ErrorIs(t, err, ErrMissingValidator)
	require.Equal(t, KindConfiguration, KindOf(err))
}
