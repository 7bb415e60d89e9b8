// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the Data variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindFloat
	KindBytes
	KindArray
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Data is one collection entry. Only the field selected by Kind is
// meaningful; construct values with Text, Int, Float, Bytes, Array or
// Null rather than by hand.
type Data struct {
	Kind  Kind    `cbor:"k"`
	Text  string  `cbor:"s,omitempty"`
	Int   int64   `cbor:"i,omitempty"`
	Float float64 `cbor:"f,omitempty"`
	Bytes []byte  `cbor:"b,omitempty"`
	Array []Data  `cbor:"a,omitempty"`
}

// Text returns a text entry.
func Text(text string) Data { return Data{Kind: KindText, Text: text} }

// Int returns an integer entry.
func Int(value int64) Data { return Data{Kind: KindInt, Int: value} }

// Float returns a floating-point entry.
func Float(value float64) Data { return Data{Kind: KindFloat, Float: value} }

// Bytes returns a byte-string entry.
func Bytes(value []byte) Data { return Data{Kind: KindBytes, Bytes: bytes.Clone(value)} }

// Array returns an array entry.
func Array(values ...Data) Data {
	return Data{Kind: KindArray, Array: append([]Data(nil), values...)}
}

// Null returns the null entry.
func Null() Data { return Data{Kind: KindNull} }

// AsText returns the text of a text entry. ok is false for every other
// variant.
func (d Data) AsText() (text string, ok bool) {
	if d.Kind != KindText {
		return "", false
	}
	return d.Text, true
}

// Equal reports deep equality, comparing only the field selected by
// Kind.
func (d Data) Equal(other Data) bool {
	if d.Kind != other.Kind {
		return false
	}
	switch d.Kind {
	case KindText:
		return d.Text == other.Text
	case KindInt:
		return d.Int == other.Int
	case KindFloat:
		return d.Float == other.Float
	case KindBytes:
		return bytes.Equal(d.Bytes, other.Bytes)
	case KindArray:
		return EqualEntries(d.Array, other.Array)
	default:
		return true
	}
}

// String renders the entry for logs.
func (d Data) String() string {
	switch d.Kind {
	case KindText:
		return strconv.Quote(d.Text)
	case KindInt:
		return strconv.FormatInt(d.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(d.Float, 'g', -1, 64)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(d.Bytes))
	case KindArray:
		parts := make([]string, len(d.Array))
		for i, element := range d.Array {
			parts[i] = element.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "null"
	}
}

// EqualEntries reports whether two collections hold equal entries in
// the same order.
func EqualEntries(a, b []Data) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CloneEntries returns a copy of entries that shares no slices with
// the original.
func CloneEntries(entries []Data) []Data {
	if entries == nil {
		return nil
	}
	cloned := make([]Data, len(entries))
	for i, entry := range entries {
		cloned[i] = entry
		cloned[i].Bytes = bytes.Clone(entry.Bytes)
		cloned[i].Array = CloneEntries(entry.Array)
	}
	return cloned
}
