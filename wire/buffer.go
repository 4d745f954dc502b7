// Copyright (c) 2020 Sperax
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package wire implements the length-delimited, protobuf-shaped message
// schemas exchanged between two nearby-sharing peers. Each message type
// hand-rolls Marshal/Unmarshal rather than depending on a generated .pb.go.
package wire

import (
	"github.com/golang/protobuf/proto"
)

const (
	wireVarint = 0
	wireBytes  = 2
)

func tagKey(field int, wireType int) uint64 {
	return uint64(field)<<3 | uint64(wireType)
}

func appendVarint(dst []byte, v uint64) []byte {
	return append(dst, proto.EncodeVarint(v)...)
}

func appendTag(dst []byte, field int, wireType int) []byte {
	return appendVarint(dst, tagKey(field, wireType))
}

func appendStringField(dst []byte, field int, s string) []byte {
	if s == "" {
		return dst
	}
	dst = appendTag(dst, field, wireBytes)
	dst = appendVarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendOptionalStringField(dst []byte, field int, s *string) []byte {
	if s == nil {
		return dst
	}
	dst = appendTag(dst, field, wireBytes)
	dst = appendVarint(dst, uint64(len(*s)))
	return append(dst, *s...)
}

func appendBytesField(dst []byte, field int, b []byte) []byte {
	if len(b) == 0 {
		return dst
	}
	dst = appendTag(dst, field, wireBytes)
	dst = appendVarint(dst, uint64(len(b)))
	return append(dst, b...)
}

func appendVarintField(dst []byte, field int, v uint64) []byte {
	if v == 0 {
		return dst
	}
	dst = appendTag(dst, field, wireVarint)
	return appendVarint(dst, v)
}

func appendBoolField(dst []byte, field int, b bool) []byte {
	if !b {
		return dst
	}
	dst = appendTag(dst, field, wireVarint)
	return appendVarint(dst, 1)
}

func appendMessageField(dst []byte, field int, body []byte) []byte {
	if body == nil {
		return dst
	}
	dst = appendTag(dst, field, wireBytes)
	dst = appendVarint(dst, uint64(len(body)))
	return append(dst, body...)
}

// fieldReader walks a message body field by field, decoding protobuf-style
// tags and values without relying on reflection.
type fieldReader struct {
	data []byte
	pos  int
}

func newFieldReader(data []byte) *fieldReader {
	return &fieldReader{data: data}
}

func (r *fieldReader) done() bool {
	return r.pos >= len(r.data)
}

func (r *fieldReader) tag() (field int, wireType int, err error) {
	v, n := proto.DecodeVarint(r.data[r.pos:])
	if n == 0 {
		return 0, 0, ErrInvalidFraming
	}
	r.pos += n
	return int(v >> 3), int(v & 7), nil
}

func (r *fieldReader) varint() (uint64, error) {
	v, n := proto.DecodeVarint(r.data[r.pos:])
	if n == 0 {
		return 0, ErrInvalidFraming
	}
	r.pos += n
	return v, nil
}

func (r *fieldReader) bytes() ([]byte, error) {
	length, err := r.varint()
	if err != nil {
		return nil, err
	}
	if uint64(r.pos)+length > uint64(len(r.data)) {
		return nil, ErrTruncatedBody
	}
	b := r.data[r.pos : r.pos+int(length)]
	r.pos += int(length)
	return b, nil
}

func (r *fieldReader) skip(wireType int) error {
	switch wireType {
	case wireVarint:
		_, err := r.varint()
		return err
	case wireBytes:
		_, err := r.bytes()
		return err
	default:
		return ErrSchemaMismatch
	}
}
