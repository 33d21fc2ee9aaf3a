package splitter

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

type (
	// blueprint is the plutus.json written by aiken build
	blueprint struct {
		Preamble struct {
			Title         string `json:"title"`
			PlutusVersion string `json:"plutusVersion"`
		} `json:"preamble"`
		Validators []struct {
			Title        string `json:"title"`
			CompiledCode string `json:"compiledCode"`
		} `json:"validators"`
	}

	// textEnvelope is the .plutus file written by cardano-cli
	textEnvelope struct {
		Type    string `json:"type"`
		CborHex string `json:"cborHex"`
	}
)

// LoadCompiledValidator reads the validator from an aiken blueprint or a
// cardano-cli text envelope. In a blueprint the validator is selected by
// title, the first one is used when title is empty.
func LoadCompiledValidator(path, title string) (plutus.CompiledValidator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return plutus.CompiledValidator{}, fmt.Errorf("%w: %v", ErrMissingValidator, err)
	}
	v, err := ParseCompiledValidator(b, title)
	if err != nil {
		return plutus.CompiledValidator{}, fmt.Errorf("loading validator from %s: %w", path, err)
	}
	return v, nil
}

func ParseCompiledValidator(b []byte, title string) (plutus.CompiledValidator, error) {
	var env textEnvelope
	if err := json.Unmarshal(b, &env); err == nil && env.CborHex != "" {
		return decodeValidator(env.Type, env.CborHex)
	}

	var bp blueprint
	if err := json.Unmarshal(b, &bp); err != nil {
		return plutus.CompiledValidator{}, fmt.Errorf("decoding blueprint: %w", err)
	}
	if len(bp.Validators) == 0 {
		return plutus.CompiledValidator{}, fmt.Errorf("%w: blueprint has no validators", ErrMissingValidator)
	}
	version := bp.Preamble.PlutusVersion
	if title == "" {
		return decodeValidator(version, bp.Validators[0].CompiledCode)
	}
	for _, v := range bp.Validators {
		if v.Title == title {
			return decodeValidator(version, v.CompiledCode)
		}
	}
	return plutus.CompiledValidator{}, fmt.Errorf("%w: no validator titled %q", ErrMissingValidator, title)
}

func decodeValidator(version, code string) (plutus.CompiledValidator, error) {
	lang, err := plutus.ParseLanguageVersion(version)
	if err != nil {
		return plutus.CompiledValidator{}, err
	}
	b, err := hex.DecodeString(code)
	if err != nil {
		return plutus.CompiledValidator{}, fmt.Errorf("%w: compiled code is not hex: %v", plutus.ErrInvalidScriptEncoding, err)
	}
	return plutus.CompiledValidator{Version: lang, Code: b}, nil
}
