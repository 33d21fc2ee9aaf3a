package plutus

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/alphabill-org/payment-splitter/internal/hash"
)

// LanguageVersion of a plutus script, the value is the tag prepended to the
// script bytes when hashing.
type LanguageVersion byte

const (
	PlutusV1 LanguageVersion = 1
	PlutusV2 LanguageVersion = 2
	PlutusV3 LanguageVersion = 3
)

// Encoding describes how the given script bytes relate to the canonical
// single CBOR wrapped form.
type Encoding int

const (
	AlreadyCanonical Encoding = iota
	NeedsWrap
	NeedsUnwrap
)

var (
	ErrInvalidScriptEncoding = errors.New("invalid script encoding")
	ErrParameterApplication  = errors.New("failed to apply script parameters")
	ErrUnknownLanguage       = errors.New("unknown plutus language version")
)

type (
	// CompiledValidator is the unparameterized validator as produced by the
	// compiler.
	CompiledValidator struct {
		Version LanguageVersion
		Code    []byte
	}

	// Script is a validator with all parameters applied, Bytes are in the
	// canonical single CBOR wrapped form.
	Script struct {
		Version LanguageVersion
		Bytes   []byte
	}
)

func (e Encoding) String() string {
	switch e {
	case AlreadyCanonical:
		return "canonical"
	case NeedsWrap:
		return "bare flat"
	case NeedsUnwrap:
		return "double wrapped"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

func ParseLanguageVersion(s string) (LanguageVersion, error) {
	switch s {
	case "v1", "V1", "PlutusV1", "PlutusScriptV1":
		return PlutusV1, nil
	case "v2", "V2", "PlutusV2", "PlutusScriptV2":
		return PlutusV2, nil
	case "v3", "V3", "PlutusV3", "PlutusScriptV3":
		return PlutusV3, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
}

func (v LanguageVersion) String() string {
	return fmt.Sprintf("PlutusV%d", byte(v))
}

// Normalize detects the encoding of code and returns the canonical single
// wrapped script bytes. The input slice is not modified.
func Normalize(code []byte) (Encoding, []byte, error) {
	if inner, ok := unwrapBytes(code); ok {
		if flat, ok := unwrapBytes(inner); ok {
			if _, err := DecodeFlat(flat); err != nil {
				return 0, nil, fmt.Errorf("%w: double wrapped program: %v", ErrInvalidScriptEncoding, err)
			}
			return NeedsUnwrap, append([]byte{}, inner...), nil
		}
		if _, err := DecodeFlat(inner); err != nil {
			return 0, nil, fmt.Errorf("%w: wrapped program: %v", ErrInvalidScriptEncoding, err)
		}
		return AlreadyCanonical, append([]byte{}, code...), nil
	}
	if _, err := DecodeFlat(code); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidScriptEncoding, err)
	}
	wrapped, err := wrapBytes(code)
	if err != nil {
		return 0, nil, err
	}
	return NeedsWrap, wrapped, nil
}

// Parameterize applies params to the validator, in order, and returns the
// resulting script. The application is not reduced.
func Parameterize(v CompiledValidator, params ...Data) (*Script, error) {
	_, canonical, err := Normalize(v.Code)
	if err != nil {
		return nil, err
	}
	flat, _ := unwrapBytes(canonical)
	prog, err := DecodeFlat(flat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScriptEncoding, err)
	}
	if !acceptsArgs(prog.Term, len(params)) {
		return nil, fmt.Errorf("%w: program does not accept %d argument(s)", ErrParameterApplication, len(params))
	}
	for i, p := range params {
		c, err := NewDataConstant(p)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding parameter %d: %v", ErrParameterApplication, i, err)
		}
		prog.Term = &Apply{Function: prog.Term, Argument: c}
	}
	out, err := EncodeFlat(prog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParameterApplication, err)
	}
	wrapped, err := wrapBytes(out)
	if err != nil {
		return nil, err
	}
	return &Script{Version: v.Version, Bytes: wrapped}, nil
}

// Hash returns the script hash, blake2b-224 of language tag and script bytes.
func (s *Script) Hash() []byte {
	return hash.Sum224([]byte{byte(s.Version)}, s.Bytes)
}

// Program returns the flat program inside the script.
func (s *Script) Program() (*Program, error) {
	flat, ok := unwrapBytes(s.Bytes)
	if !ok {
		return nil, ErrInvalidScriptEncoding
	}
	return DecodeFlat(flat)
}

func unwrapBytes(b []byte) ([]byte, bool) {
	if len(b) == 0 || b[0]>>5 != majorBytes {
		return nil, false
	}
	var inner []byte
	if err := cbor.Unmarshal(b, &inner); err != nil {
		return nil, false
	}
	return inner, true
}

func wrapBytes(b []byte) ([]byte, error) {
	res, err := cbor.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("wrapping script bytes: %w", err)
	}
	return res, nil
}
