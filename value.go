package pomps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

// Kind is the JSON type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a JSON value. Objects keep their fields in insertion order and
// numbers keep their literal text, so a decoded line re-encodes to the same
// data with the same field order.
//
// The zero Value is null.
type Value struct {
	kind   Kind
	b      bool
	s      string
	items  []Value
	fields []Field
}

// Record is one line of a record stream. Records are usually objects but any
// JSON value is accepted.
type Record = Value

// Field is a named member of an object Value.
type Field struct {
	Name  string
	Value Value
}

// KV builds a Field.
func KV(name string, v Value) Field { return Field{Name: name, Value: v} }

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool returns a JSON boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a JSON number holding i.
func Int(i int64) Value { return Value{kind: KindNumber, s: strconv.FormatInt(i, 10)} }

// Float returns a JSON number holding f in its shortest representation.
func Float(f float64) Value {
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Number returns a JSON number from its literal text. The literal is not
// validated; use ParseRecord for untrusted input.
func Number(n json.Number) Value { return Value{kind: KindNumber, s: string(n)} }

// String returns a JSON string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns a JSON array of items.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Object returns a JSON object with the given fields. A repeated name keeps
// its first position and its last value.
func Object(fields ...Field) Value {
	v := Value{kind: KindObject, fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		v.fields = setField(v.fields, f.Name, f.Value)
	}
	return v
}

// Kind returns the JSON type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsNumber returns the literal number held by v.
func (v Value) AsNumber() (json.Number, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return json.Number(v.s), true
}

// Text renders a string or number as plain text: strings as-is, numbers as
// their literal. Any other kind yields ErrInvalidKeyType.
func (v Value) Text() (string, error) {
	switch v.kind {
	case KindString, KindNumber:
		return v.s, nil
	default:
		return "", fmt.Errorf("%w: got %s", ErrInvalidKeyType, v.kind)
	}
}

// Len returns the number of array items or object fields.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.fields)
	default:
		return 0
	}
}

// Items returns the items of an array. The slice must not be modified.
func (v Value) Items() []Value { return v.items }

// Fields returns the fields of an object in order. The slice must not be modified.
func (v Value) Fields() []Field { return v.fields }

// Get returns the value of the named object field.
func (v Value) Get(name string) (Value, bool) {
	for _, f := range v.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Lookup returns the named field, or null when v has no such field.
func (v Value) Lookup(name string) Value {
	f, _ := v.Get(name)
	return f
}

// Set returns a copy of the object v with the named field set. An existing
// field keeps its position; a new field is appended. v itself is not modified.
// Calling Set on a non-object starts a new object.
func (v Value) Set(name string, val Value) Value {
	fields := make([]Field, len(v.fields), len(v.fields)+1)
	copy(fields, v.fields)
	return Value{kind: KindObject, fields: setField(fields, name, val)}
}

// Delete returns a copy of the object v without the named field.
func (v Value) Delete(name string) Value {
	fields := make([]Field, 0, len(v.fields))
	for _, f := range v.fields {
		if f.Name != name {
			fields = append(fields, f)
		}
	}
	return Value{kind: KindObject, fields: fields}
}

func setField(fields []Field, name string, val Value) []Field {
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Value = val
			return fields
		}
	}
	return append(fields, Field{Name: name, Value: val})
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.AppendJSON(nil), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRecord(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// AppendJSON appends the compact JSON encoding of v to dst.
func (v Value) AppendJSON(dst []byte) []byte {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(dst, v.b)
	case KindNumber:
		return append(dst, v.s...)
	case KindString:
		return appendString(dst, v.s)
	case KindArray:
		dst = append(dst, '[')
		for i, item := range v.items {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = item.AppendJSON(dst)
		}
		return append(dst, ']')
	case KindObject:
		dst = append(dst, '{')
		for i, f := range v.fields {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendString(dst, f.Name)
			dst = append(dst, ':')
			dst = f.Value.AppendJSON(dst)
		}
		return append(dst, '}')
	default:
		return append(dst, "null"...)
	}
}

func (v Value) String() string { return string(v.AppendJSON(nil)) }

const hexDigits = "0123456789abcdef"

// appendString writes s as a JSON string. HTML characters are not escaped;
// invalid UTF-8 is replaced with U+FFFD like encoding/json does.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if c >= 0x20 && c != '"' && c != '\\' {
				i++
				continue
			}
			dst = append(dst, s[start:i]...)
			switch c {
			case '"', '\\':
				dst = append(dst, '\\', c)
			case '\n':
				dst = append(dst, '\\', 'n')
			case '\r':
				dst = append(dst, '\\', 'r')
			case '\t':
				dst = append(dst, '\\', 't')
			default:
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			}
			i++
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, s[start:i]...)
			dst = append(dst, "\ufffd"...)
			i += size
			start = i
			continue
		}
		i += size
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

// ParseRecord decodes exactly one JSON value from data.
func ParseRecord(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("%w: trailing data after value", ErrMalformedRecord)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindArray, items: items}, nil
		case '{':
			fields := []Field{}
			for dec.More() {
				nameTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				name, ok := nameTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key %v is not a string", nameTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				fields = setField(fields, name, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, fields: fields}, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// FieldKey returns a KeyFunc that reads the named field, which must hold a string.
func FieldKey(name string) KeyFunc {
	return func(rec Record) (string, error) {
		v, ok := rec.Get(name)
		if !ok {
			return "", fmt.Errorf("%w: field %q is missing", ErrInvalidKeyType, name)
		}
		s, ok := v.AsString()
		if !ok {
			return "", fmt.Errorf("%w: field %q is %s", ErrInvalidKeyType, name, v.Kind())
		}
		return s, nil
	}
}

// FieldText returns a KeyFunc that reads the named field as text: strings are
// used as-is and numbers by their literal, so {"_id": 0} has key "0".
func FieldText(name string) KeyFunc {
	return func(rec Record) (string, error) {
		v, ok := rec.Get(name)
		if !ok {
			return "", fmt.Errorf("%w: field %q is missing", ErrInvalidKeyType, name)
		}
		s, err := v.Text()
		if err != nil {
			return "", fmt.Errorf("field %q: %w", name, err)
		}
		return s, nil
	}
}
