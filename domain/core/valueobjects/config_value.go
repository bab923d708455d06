// Package valueobjects contains immutable domain values shared by every
// entity type.
package valueobjects

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
)

// ValueKind enumerates the closed set of shapes a configuration value can
// take. The recursive converters in each backend switch over this set
// exhaustively; there is no escape hatch to an untyped value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// ConfigValue is one value in an entity's open-ended configuration document.
// Numbers are held in their decimal text form so that integers beyond float64
// precision survive a write/read cycle byte-for-byte on both backends.
type ConfigValue struct {
	kind    ValueKind
	str     string // string payload, or decimal text for numbers
	boolean bool
	list    []ConfigValue
	object  map[string]ConfigValue
}

// ConfigDoc is the open-ended configuration attribute of an entity.
type ConfigDoc map[string]ConfigValue

// Null returns the null value.
func Null() ConfigValue {
	return ConfigValue{kind: KindNull}
}

// String returns a string value.
func String(s string) ConfigValue {
	return ConfigValue{kind: KindString, str: s}
}

// Bool returns a boolean value.
func Bool(b bool) ConfigValue {
	return ConfigValue{kind: KindBool, boolean: b}
}

// Int returns a number value holding an integer.
func Int(i int64) ConfigValue {
	return ConfigValue{kind: KindNumber, str: strconv.FormatInt(i, 10)}
}

// Float returns a number value holding a float.
func Float(f float64) ConfigValue {
	return ConfigValue{kind: KindNumber, str: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Number returns a number value from its decimal text form. The text must be
// a valid JSON number.
func Number(text string) (ConfigValue, error) {
	if _, ok := new(big.Float).SetString(text); !ok {
		return ConfigValue{}, fmt.Errorf("invalid number literal %q", text)
	}
	return ConfigValue{kind: KindNumber, str: text}, nil
}

// List returns a list value.
func List(items ...ConfigValue) ConfigValue {
	return ConfigValue{kind: KindList, list: items}
}

// Map returns a nested map value.
func Map(m map[string]ConfigValue) ConfigValue {
	return ConfigValue{kind: KindMap, object: m}
}

// Kind reports the value's shape.
func (v ConfigValue) Kind() ValueKind { return v.kind }

// StringValue returns the string payload; only meaningful for KindString.
func (v ConfigValue) StringValue() string { return v.str }

// NumberText returns the decimal text of a number value.
func (v ConfigValue) NumberText() string { return v.str }

// Float64 parses a number value as float64.
func (v ConfigValue) Float64() (float64, error) {
	return strconv.ParseFloat(v.str, 64)
}

// Int64 parses a number value as int64.
func (v ConfigValue) Int64() (int64, error) {
	return strconv.ParseInt(v.str, 10, 64)
}

// BoolValue returns the boolean payload.
func (v ConfigValue) BoolValue() bool { return v.boolean }

// ListValue returns the list payload.
func (v ConfigValue) ListValue() []ConfigValue { return v.list }

// MapValue returns the nested map payload.
func (v ConfigValue) MapValue() map[string]ConfigValue { return v.object }

// Equal reports deep equality. Numbers compare by numeric value, not text,
// so "1.0" and "1" are equal.
func (v ConfigValue) Equal(other ConfigValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindBool:
		return v.boolean == other.boolean
	case KindNumber:
		a, okA := new(big.Float).SetString(v.str)
		b, okB := new(big.Float).SetString(other.str)
		if !okA || !okB {
			return v.str == other.str
		}
		return a.Cmp(b) == 0
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.object) != len(other.object) {
			return false
		}
		for k, val := range v.object {
			ov, ok := other.object[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Equal reports deep equality of two documents.
func (d ConfigDoc) Equal(other ConfigDoc) bool {
	return Map(d).Equal(Map(other))
}

// MarshalJSON renders the value in its natural JSON form. Number text is
// emitted verbatim so precision is preserved.
func (v ConfigValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.str), nil
	case KindBool:
		return json.Marshal(v.boolean)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.object == nil {
			return []byte("{}"), nil
		}
		// Sort keys for a stable byte form.
		keys := make([]string, 0, len(v.object))
		for k := range v.object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.object[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown value kind %v", v.kind)
	}
}

// UnmarshalJSON parses any JSON value, keeping numbers in text form.
func (v *ConfigValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromJSONValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromJSONValue converts a decoded JSON value (as produced by encoding/json
// with UseNumber) into a ConfigValue.
func FromJSONValue(raw any) (ConfigValue, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return ConfigValue{kind: KindNumber, str: t.String()}, nil
	case float64:
		return Float(t), nil
	case []any:
		items := make([]ConfigValue, 0, len(t))
		for _, e := range t {
			cv, err := FromJSONValue(e)
			if err != nil {
				return ConfigValue{}, err
			}
			items = append(items, cv)
		}
		return List(items...), nil
	case map[string]any:
		m := make(map[string]ConfigValue, len(t))
		for k, e := range t {
			cv, err := FromJSONValue(e)
			if err != nil {
				return ConfigValue{}, err
			}
			m[k] = cv
		}
		return Map(m), nil
	default:
		return ConfigValue{}, fmt.Errorf("unsupported configuration value type %T", raw)
	}
}
