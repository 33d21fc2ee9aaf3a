package plutus

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/alphabill-org/payment-splitter/internal/hash"
)

const (
	majorUint   = 0
	majorNegInt = 1
	majorBytes  = 2
	majorArray  = 4
	majorMap    = 5
	majorTag    = 6

	tagPosBignum      = 2
	tagNegBignum      = 3
	tagConstrGeneral  = 102
	tagConstrCompact  = 121
	tagConstrExtended = 1280

	maxBytesChunk = 64

	cborIndefArray = 0x9f
	cborIndefBytes = 0x5f
	cborBreak      = 0xff
	cborEmptyArray = 0x80
)

var ErrInvalidData = errors.New("invalid plutus data")

type (
	// Data is the structured value type shared by datums, redeemers and
	// script parameters.
	Data interface {
		MarshalCBOR() ([]byte, error)
		data()
	}

	ConstrData struct {
		Tag    uint64
		Fields []Data
	}

	MapData struct {
		Pairs []DataPair
	}

	DataPair struct {
		Key   Data
		Value Data
	}

	ListData struct {
		Items []Data
	}

	IntData struct {
		Value *big.Int
	}

	BytesData struct {
		Value []byte
	}
)

func (*ConstrData) data() {}
func (*MapData) data()    {}
func (*ListData) data()   {}
func (*IntData) data()    {}
func (*BytesData) data()  {}

func NewConstr(tag uint64, fields ...Data) *ConstrData {
	return &ConstrData{Tag: tag, Fields: fields}
}

func NewList(items ...Data) *ListData {
	return &ListData{Items: items}
}

func NewInt(n int64) *IntData {
	return &IntData{Value: big.NewInt(n)}
}

func NewBytes(b []byte) *BytesData {
	return &BytesData{Value: append([]byte{}, b...)}
}

// Hash returns the datum hash of d, blake2b-256 of its CBOR encoding.
func Hash(d Data) ([]byte, error) {
	b, err := d.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	return hash.Sum256(b), nil
}

func (c *ConstrData) MarshalCBOR() ([]byte, error) {
	fields, err := encodeDataList(c.Fields)
	if err != nil {
		return nil, err
	}
	switch {
	case c.Tag < 7:
		return append(head(majorTag, tagConstrCompact+c.Tag), fields...), nil
	case c.Tag < 128:
		return append(head(majorTag, tagConstrExtended+c.Tag-7), fields...), nil
	default:
		tagNo, err := cbor.Marshal(c.Tag)
		if err != nil {
			return nil, err
		}
		res := head(majorTag, tagConstrGeneral)
		res = append(res, head(majorArray, 2)...)
		res = append(res, tagNo...)
		return append(res, fields...), nil
	}
}

func (m *MapData) MarshalCBOR() ([]byte, error) {
	res := head(majorMap, uint64(len(m.Pairs)))
	for _, p := range m.Pairs {
		k, err := p.Key.MarshalCBOR()
		if err != nil {
			return nil, err
		}
		v, err := p.Value.MarshalCBOR()
		if err != nil {
			return nil, err
		}
		res = append(res, k...)
		res = append(res, v...)
	}
	return res, nil
}

func (l *ListData) MarshalCBOR() ([]byte, error) {
	return encodeDataList(l.Items)
}

func (i *IntData) MarshalCBOR() ([]byte, error) {
	n := i.Value
	if n == nil {
		n = new(big.Int)
	}
	switch {
	case n.IsUint64():
		return cbor.Marshal(n.Uint64())
	case n.IsInt64():
		return cbor.Marshal(n.Int64())
	}
	if n.Sign() > 0 {
		return cbor.Marshal(cbor.Tag{Number: tagPosBignum, Content: n.Bytes()})
	}
	// negative integers are encoded as -1 - n
	v := new(big.Int).Neg(n)
	v.Sub(v, big.NewInt(1))
	if v.IsUint64() {
		return head(majorNegInt, v.Uint64()), nil
	}
	return cbor.Marshal(cbor.Tag{Number: tagNegBignum, Content: v.Bytes()})
}

func (b *BytesData) MarshalCBOR() ([]byte, error) {
	if len(b.Value) <= maxBytesChunk {
		return cbor.Marshal(b.Value)
	}
	res := []byte{cborIndefBytes}
	for v := b.Value; len(v) > 0; {
		n := min(len(v), maxBytesChunk)
		chunk, err := cbor.Marshal(v[:n])
		if err != nil {
			return nil, err
		}
		res = append(res, chunk...)
		v = v[n:]
	}
	return append(res, cborBreak), nil
}

// encodeDataList encodes non-empty lists with indefinite length and empty
// lists as a definite zero length array.
func encodeDataList(items []Data) ([]byte, error) {
	if len(items) == 0 {
		return []byte{cborEmptyArray}, nil
	}
	res := []byte{cborIndefArray}
	for _, item := range items {
		b, err := item.MarshalCBOR()
		if err != nil {
			return nil, err
		}
		res = append(res, b...)
	}
	return append(res, cborBreak), nil
}

// head returns CBOR initial byte(s) for the major type and argument.
func head(major byte, n uint64) []byte {
	b, err := cbor.Marshal(n)
	if err != nil {
		// marshaling an uint64 can't fail
		panic(err)
	}
	b[0] |= major << 5
	return b
}

// readHead parses the initial byte(s) of a CBOR item. Indefinite length
// items report indef == true.
func readHead(b []byte) (major byte, arg uint64, size int, indef bool, err error) {
	if len(b) == 0 {
		return 0, 0, 0, false, fmt.Errorf("%w: empty input", ErrInvalidData)
	}
	major = b[0] >> 5
	ai := b[0] & 0x1f
	switch {
	case ai < 24:
		return major, uint64(ai), 1, false, nil
	case ai == 31:
		return major, 0, 1, true, nil
	case ai > 27:
		return 0, 0, 0, false, fmt.Errorf("%w: reserved additional info %d", ErrInvalidData, ai)
	}
	n := 1 << (ai - 24)
	if len(b) < 1+n {
		return 0, 0, 0, false, fmt.Errorf("%w: truncated item head", ErrInvalidData)
	}
	for _, c := range b[1 : 1+n] {
		arg = arg<<8 | uint64(c)
	}
	return major, arg, 1 + n, false, nil
}

// DecodeData parses CBOR encoded plutus data.
func DecodeData(b []byte) (Data, error) {
	var item dataItem
	if err := cbor.Unmarshal(b, &item); err != nil {
		if errors.Is(err, ErrInvalidData) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if item.d == nil {
		return nil, fmt.Errorf("%w: not a data item", ErrInvalidData)
	}
	return item.d, nil
}

// dataItem receives the raw bytes of a single CBOR item from the decoder.
type dataItem struct {
	d Data
}

func (di *dataItem) UnmarshalCBOR(b []byte) error {
	d, err := decodeItem(b)
	if err != nil {
		return err
	}
	di.d = d
	return nil
}

func decodeItem(b []byte) (Data, error) {
	major, arg, size, indef, err := readHead(b)
	if err != nil {
		return nil, err
	}
	switch major {
	case majorUint:
		var v uint64
		if err := cbor.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return &IntData{Value: new(big.Int).SetUint64(v)}, nil
	case majorNegInt:
		v := new(big.Int).SetUint64(arg)
		v.Add(v, big.NewInt(1))
		return &IntData{Value: v.Neg(v)}, nil
	case majorBytes:
		var v []byte
		if err := cbor.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		if v == nil {
			v = []byte{}
		}
		return &BytesData{Value: v}, nil
	case majorArray:
		items, err := decodeItems(b)
		if err != nil {
			return nil, err
		}
		return &ListData{Items: items}, nil
	case majorMap:
		if indef {
			return nil, fmt.Errorf("%w: indefinite length map", ErrInvalidData)
		}
		// the pairs of a definite map are 2n consecutive items, re-frame
		// them as an array to let the decoder find item boundaries
		items, err := decodeItems(append(head(majorArray, 2*arg), b[size:]...))
		if err != nil {
			return nil, err
		}
		m := &MapData{Pairs: make([]DataPair, 0, len(items)/2)}
		for i := 0; i+1 < len(items); i += 2 {
			m.Pairs = append(m.Pairs, DataPair{Key: items[i], Value: items[i+1]})
		}
		return m, nil
	case majorTag:
		var tag cbor.RawTag
		if err := cbor.Unmarshal(b, &tag); err != nil {
			return nil, err
		}
		return decodeTagged(tag)
	default:
		return nil, fmt.Errorf("%w: unexpected major type %d", ErrInvalidData, major)
	}
}

func decodeItems(b []byte) ([]Data, error) {
	var items []dataItem
	if err := cbor.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	res := make([]Data, len(items))
	for i := range items {
		if items[i].d == nil {
			return nil, fmt.Errorf("%w: item %d is not a data item", ErrInvalidData, i)
		}
		res[i] = items[i].d
	}
	return res, nil
}

func decodeTagged(tag cbor.RawTag) (Data, error) {
	switch {
	case tag.Number == tagPosBignum || tag.Number == tagNegBignum:
		var v []byte
		if err := cbor.Unmarshal(tag.Content, &v); err != nil {
			return nil, err
		}
		n := new(big.Int).SetBytes(v)
		if tag.Number == tagNegBignum {
			n.Add(n, big.NewInt(1))
			n.Neg(n)
		}
		return &IntData{Value: n}, nil
	case tag.Number >= tagConstrCompact && tag.Number < tagConstrCompact+7:
		fields, err := decodeItems(tag.Content)
		if err != nil {
			return nil, err
		}
		return &ConstrData{Tag: tag.Number - tagConstrCompact, Fields: fields}, nil
	case tag.Number >= tagConstrExtended && tag.Number < tagConstrExtended+121:
		fields, err := decodeItems(tag.Content)
		if err != nil {
			return nil, err
		}
		return &ConstrData{Tag: tag.Number - tagConstrExtended + 7, Fields: fields}, nil
	case tag.Number == tagConstrGeneral:
		var parts []cbor.RawMessage
		if err := cbor.Unmarshal(tag.Content, &parts); err != nil {
			return nil, err
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: general constructor must have 2 elements, got %d", ErrInvalidData, len(parts))
		}
		var ctag uint64
		if err := cbor.Unmarshal(parts[0], &ctag); err != nil {
			return nil, err
		}
		fields, err := decodeItems(parts[1])
		if err != nil {
			return nil, err
		}
		return &ConstrData{Tag: ctag, Fields: fields}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected tag %d", ErrInvalidData, tag.Number)
	}
}
