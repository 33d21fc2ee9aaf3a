package plutus

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

const (
	tagVar      = 0
	tagDelay    = 1
	tagLambda   = 2
	tagApply    = 3
	tagConstant = 4
	tagForce    = 5
	tagError    = 6
	tagBuiltin  = 7
	tagConstr   = 8
	tagCase     = 9

	termTagBits    = 4
	typeTagBits    = 4
	builtinTagBits = 7

	maxTermDepth = 4096
)

// EncodeFlat serializes the program in the flat format used on chain.
func EncodeFlat(p *Program) ([]byte, error) {
	w := &bitWriter{}
	for _, v := range p.Version {
		w.uint(v)
	}
	if err := encodeTerm(w, p.Term); err != nil {
		return nil, err
	}
	w.filler()
	return w.bytes(), nil
}

// DecodeFlat parses a flat serialized program. All input must be consumed.
func DecodeFlat(b []byte) (*Program, error) {
	r := &bitReader{data: b}
	p := &Program{}
	for i := range p.Version {
		v, err := r.uint()
		if err != nil {
			return nil, fmt.Errorf("reading version: %w", err)
		}
		p.Version[i] = v
	}
	if p.Version[0] != 1 {
		return nil, fmt.Errorf("unsupported plutus core version %d.%d.%d", p.Version[0], p.Version[1], p.Version[2])
	}
	t, err := decodeTerm(r, 0)
	if err != nil {
		return nil, err
	}
	p.Term = t
	if err := r.filler(); err != nil {
		return nil, fmt.Errorf("reading padding: %w", err)
	}
	if !r.atEnd() {
		return nil, fmt.Errorf("%d bytes of trailing data", len(b)-r.pos/8)
	}
	return p, nil
}

func encodeTerm(w *bitWriter, t Term) error {
	switch t := t.(type) {
	case *Var:
		w.bits(tagVar, termTagBits)
		w.uint(t.Index)
	case *Delay:
		w.bits(tagDelay, termTagBits)
		return encodeTerm(w, t.Body)
	case *Lambda:
		w.bits(tagLambda, termTagBits)
		return encodeTerm(w, t.Body)
	case *Apply:
		w.bits(tagApply, termTagBits)
		if err := encodeTerm(w, t.Function); err != nil {
			return err
		}
		return encodeTerm(w, t.Argument)
	case *Constant:
		w.bits(tagConstant, termTagBits)
		encodeType(w, t.Type)
		w.bit(false)
		return encodeValue(w, t.Type, t.Value)
	case *Force:
		w.bits(tagForce, termTagBits)
		return encodeTerm(w, t.Body)
	case *Error:
		w.bits(tagError, termTagBits)
	case *Builtin:
		w.bits(tagBuiltin, termTagBits)
		w.bits(uint64(t.Tag), builtinTagBits)
	case *Constr:
		w.bits(tagConstr, termTagBits)
		w.uint(t.Tag)
		return encodeTermList(w, t.Fields)
	case *Case:
		w.bits(tagCase, termTagBits)
		if err := encodeTerm(w, t.Scrutinee); err != nil {
			return err
		}
		return encodeTermList(w, t.Branches)
	default:
		return fmt.Errorf("unknown term %T", t)
	}
	return nil
}

func encodeTermList(w *bitWriter, ts []Term) error {
	for _, t := range ts {
		w.bit(true)
		if err := encodeTerm(w, t); err != nil {
			return err
		}
	}
	w.bit(false)
	return nil
}

// encodeType writes the type tags, each preceded by a list cons bit. The
// terminating bit is written by the caller.
func encodeType(w *bitWriter, t *Type) {
	tag := func(k TypeKind) {
		w.bit(true)
		w.bits(uint64(k), typeTagBits)
	}
	switch t.Kind {
	case TypeList:
		tag(typeApply)
		tag(TypeList)
		encodeType(w, t.Elem)
	case TypePair:
		tag(typeApply)
		tag(typeApply)
		tag(TypePair)
		encodeType(w, t.Fst)
		encodeType(w, t.Snd)
	default:
		tag(t.Kind)
	}
}

func encodeValue(w *bitWriter, t *Type, v any) error {
	switch t.Kind {
	case TypeInteger:
		n, ok := v.(*big.Int)
		if !ok {
			return fmt.Errorf("integer constant holds %T", v)
		}
		w.integer(n)
	case TypeByteString:
		b, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("bytestring constant holds %T", v)
		}
		w.byteString(b)
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("string constant holds %T", v)
		}
		w.byteString([]byte(s))
	case TypeUnit:
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("bool constant holds %T", v)
		}
		w.bit(b)
	case TypeData:
		d, ok := v.(RawData)
		if !ok {
			return fmt.Errorf("data constant holds %T", v)
		}
		w.byteString(d)
	case TypeList:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("list constant holds %T", v)
		}
		for _, item := range items {
			w.bit(true)
			if err := encodeValue(w, t.Elem, item); err != nil {
				return err
			}
		}
		w.bit(false)
	case TypePair:
		p, ok := v.(Pair)
		if !ok {
			return fmt.Errorf("pair constant holds %T", v)
		}
		if err := encodeValue(w, t.Fst, p.Fst); err != nil {
			return err
		}
		return encodeValue(w, t.Snd, p.Snd)
	default:
		return fmt.Errorf("constant of type %s can not be serialized", t)
	}
	return nil
}

func decodeTerm(r *bitReader, depth int) (Term, error) {
	if depth > maxTermDepth {
		return nil, errors.New("term nesting too deep")
	}
	tag, err := r.bits(termTagBits)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagVar:
		idx, err := r.uint()
		if err != nil {
			return nil, err
		}
		return &Var{Index: idx}, nil
	case tagDelay:
		body, err := decodeTerm(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &Delay{Body: body}, nil
	case tagLambda:
		body, err := decodeTerm(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &Lambda{Body: body}, nil
	case tagApply:
		fn, err := decodeTerm(r, depth+1)
		if err != nil {
			return nil, err
		}
		arg, err := decodeTerm(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &Apply{Function: fn, Argument: arg}, nil
	case tagConstant:
		return decodeConstant(r)
	case tagForce:
		body, err := decodeTerm(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &Force{Body: body}, nil
	case tagError:
		return &Error{}, nil
	case tagBuiltin:
		b, err := r.bits(builtinTagBits)
		if err != nil {
			return nil, err
		}
		return &Builtin{Tag: byte(b)}, nil
	case tagConstr:
		ctag, err := r.uint()
		if err != nil {
			return nil, err
		}
		fields, err := decodeTermList(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &Constr{Tag: ctag, Fields: fields}, nil
	case tagCase:
		scrutinee, err := decodeTerm(r, depth+1)
		if err != nil {
			return nil, err
		}
		branches, err := decodeTermList(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &Case{Scrutinee: scrutinee, Branches: branches}, nil
	default:
		return nil, fmt.Errorf("unknown term tag %d", tag)
	}
}

func decodeTermList(r *bitReader, depth int) ([]Term, error) {
	var res []Term
	for {
		more, err := r.bit()
		if err != nil {
			return nil, err
		}
		if !more {
			return res, nil
		}
		t, err := decodeTerm(r, depth)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
}

func decodeConstant(r *bitReader) (*Constant, error) {
	var tags []TypeKind
	for {
		more, err := r.bit()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		k, err := r.bits(typeTagBits)
		if err != nil {
			return nil, err
		}
		tags = append(tags, TypeKind(k))
	}
	t, rest, err := parseType(tags)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("malformed constant type: %d unused tags", len(rest))
	}
	v, err := decodeValue(r, t)
	if err != nil {
		return nil, fmt.Errorf("decoding %s constant: %w", t, err)
	}
	return &Constant{Type: t, Value: v}, nil
}

func parseType(tags []TypeKind) (*Type, []TypeKind, error) {
	if len(tags) == 0 {
		return nil, nil, errors.New("missing constant type")
	}
	switch tags[0] {
	case TypeInteger, TypeByteString, TypeString, TypeUnit, TypeBool, TypeData:
		return &Type{Kind: tags[0]}, tags[1:], nil
	case typeApply:
		if len(tags) > 1 && tags[1] == TypeList {
			elem, rest, err := parseType(tags[2:])
			if err != nil {
				return nil, nil, err
			}
			return &Type{Kind: TypeList, Elem: elem}, rest, nil
		}
		if len(tags) > 2 && tags[1] == typeApply && tags[2] == TypePair {
			fst, rest, err := parseType(tags[3:])
			if err != nil {
				return nil, nil, err
			}
			snd, rest, err := parseType(rest)
			if err != nil {
				return nil, nil, err
			}
			return &Type{Kind: TypePair, Fst: fst, Snd: snd}, rest, nil
		}
		return nil, nil, errors.New("malformed type application")
	default:
		return nil, nil, fmt.Errorf("unsupported constant type tag %d", tags[0])
	}
}

func decodeValue(r *bitReader, t *Type) (any, error) {
	switch t.Kind {
	case TypeInteger:
		return r.integer()
	case TypeByteString:
		return r.byteString()
	case TypeString:
		b, err := r.byteString()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, errors.New("invalid utf-8 in string constant")
		}
		return string(b), nil
	case TypeUnit:
		return Unit{}, nil
	case TypeBool:
		return r.bit()
	case TypeData:
		b, err := r.byteString()
		if err != nil {
			return nil, err
		}
		return RawData(b), nil
	case TypeList:
		items := []any{}
		for {
			more, err := r.bit()
			if err != nil {
				return nil, err
			}
			if !more {
				return items, nil
			}
			item, err := decodeValue(r, t.Elem)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	case TypePair:
		fst, err := decodeValue(r, t.Fst)
		if err != nil {
			return nil, err
		}
		snd, err := decodeValue(r, t.Snd)
		if err != nil {
			return nil, err
		}
		return Pair{Fst: fst, Snd: snd}, nil
	default:
		return nil, fmt.Errorf("unsupported constant type %s", t)
	}
}
