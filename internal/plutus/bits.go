package plutus

import (
	"errors"
	"fmt"
	"math/big"
)

var errUnexpectedEnd = errors.New("unexpected end of flat input")

// bitWriter writes flat encoded values, most significant bit first.
type bitWriter struct {
	buf    []byte
	bitLen int
}

func (w *bitWriter) bit(b bool) {
	if w.bitLen%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if b {
		w.buf[len(w.buf)-1] |= 1 << (7 - w.bitLen%8)
	}
	w.bitLen++
}

func (w *bitWriter) bits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bit((v>>uint(i))&1 == 1)
	}
}

// filler pads with zero bits followed by a single one bit so that the
// stream ends on a byte boundary. An aligned stream gets a full 0x01 byte.
func (w *bitWriter) filler() {
	for w.bitLen%8 != 7 {
		w.bit(false)
	}
	w.bit(true)
}

func (w *bitWriter) natural(n *big.Int) {
	v := new(big.Int).Set(n)
	chunk := new(big.Int)
	mask := big.NewInt(0x7f)
	for {
		chunk.And(v, mask)
		v.Rsh(v, 7)
		if v.Sign() != 0 {
			w.bits(0x80|chunk.Uint64(), 8)
			continue
		}
		w.bits(chunk.Uint64(), 8)
		return
	}
}

func (w *bitWriter) uint(n uint64) {
	w.natural(new(big.Int).SetUint64(n))
}

func (w *bitWriter) integer(n *big.Int) {
	w.natural(zigzag(n))
}

func (w *bitWriter) byteString(b []byte) {
	w.filler()
	for len(b) > 0 {
		chunk := b
		if len(chunk) > 255 {
			chunk = chunk[:255]
		}
		w.buf = append(w.buf, byte(len(chunk)))
		w.buf = append(w.buf, chunk...)
		w.bitLen += 8 * (len(chunk) + 1)
		b = b[len(chunk):]
	}
	w.buf = append(w.buf, 0)
	w.bitLen += 8
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}

type bitReader struct {
	data []byte
	pos  int
}

func (r *bitReader) bit() (bool, error) {
	if r.pos >= len(r.data)*8 {
		return false, errUnexpectedEnd
	}
	b := r.data[r.pos/8]&(1<<(7-r.pos%8)) != 0
	r.pos++
	return b, nil
}

func (r *bitReader) bits(n int) (uint64, error) {
	var v uint64
	for i := 0; i < n; i++ {
		b, err := r.bit()
		if err != nil {
			return 0, err
		}
		v <<= 1
		if b {
			v |= 1
		}
	}
	return v, nil
}

func (r *bitReader) filler() error {
	for {
		b, err := r.bit()
		if err != nil {
			return err
		}
		if b {
			break
		}
	}
	if r.pos%8 != 0 {
		return fmt.Errorf("filler does not end on byte boundary (bit %d)", r.pos)
	}
	return nil
}

func (r *bitReader) natural() (*big.Int, error) {
	n := new(big.Int)
	shift := uint(0)
	for {
		w, err := r.bits(8)
		if err != nil {
			return nil, err
		}
		chunk := new(big.Int).SetUint64(w & 0x7f)
		n.Or(n, chunk.Lsh(chunk, shift))
		if w&0x80 == 0 {
			return n, nil
		}
		shift += 7
	}
}

func (r *bitReader) uint() (uint64, error) {
	n, err := r.natural()
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("natural %s overflows uint64", n)
	}
	return n.Uint64(), nil
}

func (r *bitReader) integer() (*big.Int, error) {
	n, err := r.natural()
	if err != nil {
		return nil, err
	}
	return unzigzag(n), nil
}

func (r *bitReader) byteString() ([]byte, error) {
	if err := r.filler(); err != nil {
		return nil, err
	}
	var res []byte
	for {
		if r.pos/8 >= len(r.data) {
			return nil, errUnexpectedEnd
		}
		n := int(r.data[r.pos/8])
		r.pos += 8
		if n == 0 {
			return res, nil
		}
		start := r.pos / 8
		if start+n > len(r.data) {
			return nil, errUnexpectedEnd
		}
		res = append(res, r.data[start:start+n]...)
		r.pos += 8 * n
	}
}

// atEnd reports whether all input has been consumed.
func (r *bitReader) atEnd() bool {
	return r.pos == len(r.data)*8
}

func zigzag(n *big.Int) *big.Int {
	res := new(big.Int).Lsh(n, 1)
	if n.Sign() < 0 {
		res.Neg(res)
		res.Sub(res, big.NewInt(1))
	}
	return res
}

func unzigzag(n *big.Int) *big.Int {
	res := new(big.Int).Rsh(n, 1)
	if n.Bit(0) == 1 {
		res.Neg(res)
		res.Sub(res, big.NewInt(1))
	}
	return res
}
