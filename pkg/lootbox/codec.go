package lootbox

import (
	"bytes"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

// encoder writes borsh primitives: little-endian integers, raw fixed arrays,
// and u32 length prefixed strings and vectors.
type encoder struct {
	buf bytes.Buffer
	enc *bin.Encoder
}

func newEncoder() *encoder {
	e := &encoder{}
	e.enc = bin.NewBorshEncoder(&e.buf)
	return e
}

// Writes into a bytes.Buffer never fail, so the encoder errors are dropped.

func (e *encoder) u8(v uint8) {
	_ = e.enc.WriteUint8(v)
}

func (e *encoder) u16(v uint16) {
	_ = e.enc.WriteUint16(v, bin.LE)
}

func (e *encoder) u32(v uint32) {
	_ = e.enc.WriteUint32(v, bin.LE)
}

func (e *encoder) u64(v uint64) {
	_ = e.enc.WriteUint64(v, bin.LE)
}

func (e *encoder) fixed(b []byte) {
	_ = e.enc.WriteBytes(b, false)
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.fixed([]byte(s))
}

func (e *encoder) length(n int) {
	e.u32(uint32(n))
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

// decoder is the reading counterpart of encoder. The first failure is sticky:
// later reads return zero values and err reports the original field.
type decoder struct {
	dec *bin.Decoder
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{dec: bin.NewBorshDecoder(b)}
}

func (d *decoder) fail(field string, err error) {
	if d.err == nil {
		d.err = errors.Wrapf(ErrMalformedRecord, "%s: %v", field, err)
	}
}

func (d *decoder) need(field string, n int) bool {
	if d.err != nil {
		return false
	}
	if remaining := d.dec.Remaining(); remaining < n {
		d.fail(field, errors.Errorf("need %d bytes, have %d", n, remaining))
		return false
	}
	return true
}

func (d *decoder) u8(field string) uint8 {
	if !d.need(field, 1) {
		return 0
	}
	v, err := d.dec.ReadUint8()
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) u16(field string) uint16 {
	if !d.need(field, 2) {
		return 0
	}
	v, err := d.dec.ReadUint16(bin.LE)
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) u32(field string) uint32 {
	if !d.need(field, 4) {
		return 0
	}
	v, err := d.dec.ReadUint32(bin.LE)
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) u64(field string) uint64 {
	if !d.need(field, 8) {
		return 0
	}
	v, err := d.dec.ReadUint64(bin.LE)
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) fixed(field string, dst []byte) {
	if !d.need(field, len(dst)) {
		return
	}
	b, err := d.dec.ReadNBytes(len(dst))
	if err != nil {
		d.fail(field, err)
		return
	}
	copy(dst, b)
}

func (d *decoder) str(field string) string {
	n := d.u32(field)
	if !d.need(field, int(n)) {
		return ""
	}
	b, err := d.dec.ReadNBytes(int(n))
	if err != nil {
		d.fail(field, err)
		return ""
	}
	if !utf8.Valid(b) {
		d.fail(field, errors.New("invalid utf-8"))
		return ""
	}
	return string(b)
}

// length reads a vector count and checks that count elements of elemSize
// bytes fit in the remaining buffer.
func (d *decoder) length(field string, elemSize int) int {
	n := d.u32(field)
	if d.err != nil {
		return 0
	}
	if uint64(n)*uint64(elemSize) > uint64(d.dec.Remaining()) {
		d.fail(field, errors.Errorf("%d elements exceed remaining %d bytes", n, d.dec.Remaining()))
		return 0
	}
	return int(n)
}

func (d *decoder) remaining() int {
	return d.dec.Remaining()
}

// done reports the first failure, and with exact set, rejects trailing bytes.
func (d *decoder) done(exact bool) error {
	if d.err != nil {
		return d.err
	}
	if exact && d.dec.Remaining() > 0 {
		return errors.Wrapf(ErrMalformedRecord, "%d trailing bytes", d.dec.Remaining())
	}
	return nil
}
