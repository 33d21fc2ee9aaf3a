package plutus

import (
	"fmt"
	"math/big"
)

type (
	// Term is an untyped Plutus Core term using de Bruijn indices.
	Term interface {
		term()
	}

	Var struct {
		Index uint64
	}

	Delay struct {
		Body Term
	}

	Lambda struct {
		Body Term
	}

	Apply struct {
		Function Term
		Argument Term
	}

	Constant struct {
		Type  *Type
		Value any
	}

	Force struct {
		Body Term
	}

	Error struct{}

	Builtin struct {
		Tag byte
	}

	Constr struct {
		Tag    uint64
		Fields []Term
	}

	Case struct {
		Scrutinee Term
		Branches  []Term
	}

	// Program is a versioned term, the unit a validator is compiled to.
	Program struct {
		Version [3]uint64
		Term    Term
	}
)

func (Var) term()      {}
func (Delay) term()    {}
func (Lambda) term()   {}
func (Apply) term()    {}
func (Constant) term() {}
func (Force) term()    {}
func (Error) term()    {}
func (Builtin) term()  {}
func (Constr) term()   {}
func (Case) term()     {}

type TypeKind byte

const (
	TypeInteger    TypeKind = 0
	TypeByteString TypeKind = 1
	TypeString     TypeKind = 2
	TypeUnit       TypeKind = 3
	TypeBool       TypeKind = 4
	TypeList       TypeKind = 5
	TypePair       TypeKind = 6
	typeApply      TypeKind = 7
	TypeData       TypeKind = 8
)

// Type of a constant. Elem is set for lists, Fst and Snd for pairs.
type Type struct {
	Kind TypeKind
	Elem *Type
	Fst  *Type
	Snd  *Type
}

// RawData is a Data constant kept in its CBOR encoding.
type RawData []byte

// Unit is the value of the unit constant.
type Unit struct{}

// Pair is the value of a pair constant.
type Pair struct {
	Fst any
	Snd any
}

func (t *Type) String() string {
	switch t.Kind {
	case TypeInteger:
		return "integer"
	case TypeByteString:
		return "bytestring"
	case TypeString:
		return "string"
	case TypeUnit:
		return "unit"
	case TypeBool:
		return "bool"
	case TypeData:
		return "data"
	case TypeList:
		return fmt.Sprintf("(list %s)", t.Elem)
	case TypePair:
		return fmt.Sprintf("(pair %s %s)", t.Fst, t.Snd)
	default:
		return fmt.Sprintf("type(%d)", t.Kind)
	}
}

// NewDataConstant wraps d as a data constant term.
func NewDataConstant(d Data) (*Constant, error) {
	b, err := d.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	return &Constant{Type: &Type{Kind: TypeData}, Value: RawData(b)}, nil
}

// NewIntegerConstant wraps n as an integer constant term.
func NewIntegerConstant(n int64) *Constant {
	return &Constant{Type: &Type{Kind: TypeInteger}, Value: big.NewInt(n)}
}

// acceptsArgs reports whether n arguments can be applied to t. Terms whose
// shape can't be known without evaluation (applications, variables) are
// accepted.
func acceptsArgs(t Term, n int) bool {
	for ; n > 0; n-- {
		switch v := t.(type) {
		case *Lambda:
			t = v.Body
		case *Constant, *Delay, *Constr, *Error:
			return false
		default:
			return true
		}
	}
	return true
}
