package types

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ledgerlight/ledgerlight/crypto"
)

// Canonical encoding.
//
// Values are written in the protobuf wire format with field numbers assigned
// in declaration order. Scalar fields are always written, optional messages
// are omitted when absent and repeated fields reuse one field number. The
// decoder accepts exactly this layout and nothing else, so every value has a
// single encoding and hashing or signing the bytes is well defined.

type encoder struct {
	buf   []byte
	field protowire.Number
}

func encode(fn func(e *encoder)) []byte {
	e := &encoder{}
	fn(e)
	return e.buf
}

func (e *encoder) tag(t protowire.Type) {
	e.buf = protowire.AppendTag(e.buf, e.field, t)
}

func (e *encoder) uint64(v uint64) {
	e.field++
	e.tag(protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *encoder) bool(v bool) {
	e.uint64(protowire.EncodeBool(v))
}

func (e *encoder) bytes(v []byte) {
	e.field++
	e.tag(protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
}

func (e *encoder) string(v string) {
	e.bytes([]byte(v))
}

func (e *encoder) hash(h crypto.HashValue) {
	e.bytes(h[:])
}

func (e *encoder) message(fn func(e *encoder)) {
	e.bytes(encode(fn))
}

func (e *encoder) optional(present bool, fn func(e *encoder)) {
	e.field++
	if present {
		e.tag(protowire.BytesType)
		e.buf = protowire.AppendBytes(e.buf, encode(fn))
	}
}

func (e *encoder) repeated(n int, fn func(i int, e *encoder)) {
	e.field++
	for i := 0; i < n; i++ {
		e.tag(protowire.BytesType)
		e.buf = protowire.AppendBytes(e.buf, encode(func(sub *encoder) { fn(i, sub) }))
	}
}

func (e *encoder) repeatedBytes(items [][]byte) {
	e.field++
	for _, item := range items {
		e.tag(protowire.BytesType)
		e.buf = protowire.AppendBytes(e.buf, item)
	}
}

func (e *encoder) hashes(hs []crypto.HashValue) {
	items := make([][]byte, len(hs))
	for i := range hs {
		items[i] = hs[i][:]
	}
	e.repeatedBytes(items)
}

type decoder struct {
	buf   []byte
	field protowire.Number
	err   error
}

// decode runs fn over bz and fails unless fn consumed every byte.
func decode(bz []byte, fn func(d *decoder)) error {
	d := &decoder{buf: bz}
	fn(d)
	return d.finish()
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.buf) > 0 {
		return fmt.Errorf("%d trailing bytes after field %d", len(d.buf), d.field)
	}
	return nil
}

func (d *decoder) failf(format string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

// has reports whether the next field carries number num.
func (d *decoder) has(num protowire.Number) bool {
	if d.err != nil || len(d.buf) == 0 {
		return false
	}
	n, _, l := protowire.ConsumeTag(d.buf)
	return l > 0 && n == num
}

func (d *decoder) expect(t protowire.Type) bool {
	if d.err != nil {
		return false
	}
	n, typ, l := protowire.ConsumeTag(d.buf)
	if l < 0 {
		d.failf("field %d: %w", d.field, protowire.ParseError(l))
		return false
	}
	if n != d.field || typ != t {
		d.failf("unexpected field %d of wire type %d, want field %d of wire type %d", n, typ, d.field, t)
		return false
	}
	d.buf = d.buf[l:]
	return true
}

func (d *decoder) consumeBytes() []byte {
	v, l := protowire.ConsumeBytes(d.buf)
	if l < 0 {
		d.failf("field %d: %w", d.field, protowire.ParseError(l))
		return nil
	}
	d.buf = d.buf[l:]
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (d *decoder) uint64() uint64 {
	d.field++
	if !d.expect(protowire.VarintType) {
		return 0
	}
	v, l := protowire.ConsumeVarint(d.buf)
	if l < 0 {
		d.failf("field %d: %w", d.field, protowire.ParseError(l))
		return 0
	}
	d.buf = d.buf[l:]
	return v
}

func (d *decoder) bool() bool {
	v := d.uint64()
	if v > 1 {
		d.failf("field %d: invalid bool %d", d.field, v)
	}
	return v == 1
}

func (d *decoder) bytes() []byte {
	d.field++
	if !d.expect(protowire.BytesType) {
		return nil
	}
	return d.consumeBytes()
}

func (d *decoder) string() string {
	return string(d.bytes())
}

func (d *decoder) hash() crypto.HashValue {
	bz := d.bytes()
	if d.err != nil {
		return crypto.HashValue{}
	}
	h, err := crypto.HashFromBytes(bz)
	if err != nil {
		d.failf("field %d: %w", d.field, err)
	}
	return h
}

func (d *decoder) sub(bz []byte, fn func(d *decoder)) {
	if d.err != nil {
		return
	}
	if err := decode(bz, fn); err != nil {
		d.failf("field %d: %w", d.field, err)
	}
}

func (d *decoder) message(fn func(d *decoder)) {
	bz := d.bytes()
	d.sub(bz, fn)
}

// optional decodes the next field if it is present and reports whether it was.
func (d *decoder) optional(fn func(d *decoder)) bool {
	d.field++
	if !d.has(d.field) {
		return false
	}
	if !d.expect(protowire.BytesType) {
		return false
	}
	d.sub(d.consumeBytes(), fn)
	return d.err == nil
}

func (d *decoder) repeated(fn func(d *decoder)) {
	d.field++
	for d.has(d.field) {
		if !d.expect(protowire.BytesType) {
			return
		}
		d.sub(d.consumeBytes(), fn)
	}
}

func (d *decoder) repeatedBytes() [][]byte {
	d.field++
	var out [][]byte
	for d.has(d.field) {
		if !d.expect(protowire.BytesType) {
			return nil
		}
		out = append(out, d.consumeBytes())
	}
	return out
}

func (d *decoder) hashes() []crypto.HashValue {
	items := d.repeatedBytes()
	if d.err != nil || items == nil {
		return nil
	}
	out := make([]crypto.HashValue, len(items))
	for i, item := range items {
		h, err := crypto.HashFromBytes(item)
		if err != nil {
			d.failf("field %d[%d]: %w", d.field, i, err)
			return nil
		}
		out[i] = h
	}
	return out
}
