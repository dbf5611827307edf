// Package codec implements the DTRE's pluggable, byte-exact encoders: a
// compact binary format that feeds the hasher, and a JSON format for human
// inspection and cross-language interchange. Both are deterministic for a
// given value: no hash-map iteration order ever leaks into the output.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Serializer is the plug-in point for byte-exact (de)serialization of
// caller-supplied state and transaction types.
type Serializer interface {
	// Name identifies the encoder, e.g. "compact-binary" or "json".
	Name() string
	// FormatVersion identifies the encoder's own wire-format version,
	// independent of any value being encoded.
	FormatVersion() string
	// Encode produces a byte-exact encoding of v.
	Encode(v any) ([]byte, error)
	// Decode populates the value pointed to by out from data.
	Decode(data []byte, out any) error
}

// SerializationContext records which encoder produced a persisted artifact,
// so the artifact is self-describing.
type SerializationContext struct {
	SerializerName    string
	SerializerVersion string
}

// FromSerializer captures the (name, version) of s.
func FromSerializer(s Serializer) SerializationContext {
	return SerializationContext{SerializerName: s.Name(), SerializerVersion: s.FormatVersion()}
}

// Matches reports whether ctx describes s.
func (ctx SerializationContext) Matches(s Serializer) bool {
	return ctx.SerializerName == s.Name() && ctx.SerializerVersion == s.FormatVersion()
}

// JSON serializes through encoding/json. Go's encoding/json already sorts
// map[string]X keys lexicographically, which is sufficient determinism for
// the inspection format; it is never used to feed the hasher.
type JSON struct {
	Pretty bool
}

func (JSON) Name() string          { return "json" }
func (JSON) FormatVersion() string { return "1.0" }

func (j JSON) Encode(v any) ([]byte, error) {
	if j.Pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func (JSON) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

// Compact is the fixed-width, length-prefixed, tagged-sum binary encoder
// that feeds the hasher. Encoding is driven by reflection over the caller's
// concrete state/transaction type; struct fields are encoded in declaration
// order (a fixed, compiler-assigned order — not a map, so no sorting is
// needed there), map keys must be strings (maps with other key kinds are
// rejected) and are sorted lexicographically, and strings are NFC-normalized before being
// length-prefixed so canonically-equivalent Unicode text always hashes
// identically.
type Compact struct{}

func (Compact) Name() string          { return "compact-binary" }
func (Compact) FormatVersion() string { return "1.0" }

// tag values for the compact wire format.
const (
	tagNil    byte = 0x00
	tagBool   byte = 0x01
	tagInt    byte = 0x02
	tagUint   byte = 0x03
	tagString byte = 0x04
	tagSlice  byte = 0x05
	tagMap    byte = 0x06
	tagStruct byte = 0x07
	tagPtr    byte = 0x08
)

func (Compact) Encode(v any) ([]byte, error) {
	var buf []byte
	buf, err := encodeValue(buf, reflect.ValueOf(v))
	if err != nil {
		return nil, fmt.Errorf("codec: compact encode: %w", err)
	}
	return buf, nil
}

func putUint32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func putUint64(buf []byte, n uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], n)
	return append(buf, tmp[:]...)
}

func encodeValue(buf []byte, rv reflect.Value) ([]byte, error) {
	if !rv.IsValid() {
		return append(buf, tagNil), nil
	}
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return append(buf, tagNil), nil
		}
		return nil, fmt.Errorf("unsupported interface-typed value holding %s: compact encoding has no way to record the concrete type for decode to reconstruct", rv.Elem().Type())
	case reflect.Ptr:
		if rv.IsNil() {
			return append(buf, tagNil), nil
		}
		buf = append(buf, tagPtr)
		return encodeValue(buf, rv.Elem())
	case reflect.Bool:
		buf = append(buf, tagBool)
		if rv.Bool() {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf = append(buf, tagInt)
		return putUint64(buf, uint64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf = append(buf, tagUint)
		return putUint64(buf, rv.Uint()), nil
	case reflect.String:
		return encodeString(buf, rv.String()), nil
	case reflect.Slice, reflect.Array:
		buf = append(buf, tagSlice)
		n := rv.Len()
		buf = putUint32(buf, uint32(n))
		var err error
		for i := 0; i < n; i++ {
			buf, err = encodeValue(buf, rv.Index(i))
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported non-string map key type %s", rv.Type().Key())
		}
		buf = append(buf, tagMap)
		keys := rv.MapKeys()
		type kv struct {
			key string
			rv  reflect.Value
		}
		pairs := make([]kv, len(keys))
		for i, k := range keys {
			pairs[i] = kv{key: k.String(), rv: k}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
		buf = putUint32(buf, uint32(len(pairs)))
		var err error
		for _, p := range pairs {
			buf = encodeString(buf, p.key)
			buf, err = encodeValue(buf, rv.MapIndex(p.rv))
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case reflect.Struct:
		buf = append(buf, tagStruct)
		t := rv.Type()
		n := t.NumField()
		buf = putUint32(buf, uint32(n))
		var err error
		for i := 0; i < n; i++ {
			f := t.Field(i)
			buf = encodeString(buf, f.Name)
			buf, err = encodeValue(buf, rv.Field(i))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
		return buf, nil
	case reflect.Float32, reflect.Float64:
		return nil, fmt.Errorf("floating point values are forbidden in the compact encoding (integer arithmetic only)")
	default:
		return nil, fmt.Errorf("unsupported kind %s", rv.Kind())
	}
}

func encodeString(buf []byte, s string) []byte {
	normalized := norm.NFC.String(s)
	buf = append(buf, tagString)
	buf = putUint32(buf, uint32(len(normalized)))
	return append(buf, normalized...)
}

// Decode is a best-effort reflective decoder symmetric with Encode, used by
// hosts that persist compact-encoded artifacts and need them back. It is
// never invoked by the core replay path, which only ever compares hashes.
func (Compact) Decode(data []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("codec: compact decode: out must be a non-nil pointer")
	}
	_, err := decodeValue(data, rv.Elem())
	return err
}

func getUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("truncated uint32")
	}
	return binary.LittleEndian.Uint32(data), data[4:], nil
}

func getUint64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("truncated uint64")
	}
	return binary.LittleEndian.Uint64(data), data[8:], nil
}

func decodeString(data []byte) (string, []byte, error) {
	if len(data) < 1 || data[0] != tagString {
		return "", nil, fmt.Errorf("expected string tag")
	}
	data = data[1:]
	n, data, err := getUint32(data)
	if err != nil {
		return "", nil, err
	}
	if uint32(len(data)) < n {
		return "", nil, fmt.Errorf("truncated string")
	}
	return string(data[:n]), data[n:], nil
}

func decodeValue(data []byte, rv reflect.Value) ([]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("truncated value")
	}
	tag := data[0]
	rest := data[1:]
	switch tag {
	case tagNil:
		rv.Set(reflect.Zero(rv.Type()))
		return rest, nil
	case tagBool:
		if len(rest) < 1 {
			return nil, fmt.Errorf("truncated bool")
		}
		rv.SetBool(rest[0] != 0)
		return rest[1:], nil
	case tagInt:
		n, rest, err := getUint64(rest)
		if err != nil {
			return nil, err
		}
		rv.SetInt(int64(n))
		return rest, nil
	case tagUint:
		n, rest, err := getUint64(rest)
		if err != nil {
			return nil, err
		}
		rv.SetUint(n)
		return rest, nil
	case tagString:
		s, rest, err := decodeString(data)
		if err != nil {
			return nil, err
		}
		rv.SetString(s)
		return rest, nil
	case tagPtr:
		if rv.Kind() != reflect.Ptr {
			return nil, fmt.Errorf("expected pointer field")
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return decodeValue(rest, rv.Elem())
	case tagSlice:
		n, rest2, err := getUint32(rest)
		if err != nil {
			return nil, err
		}
		rest = rest2
		slice := reflect.MakeSlice(rv.Type(), int(n), int(n))
		for i := 0; i < int(n); i++ {
			rest, err = decodeValue(rest, slice.Index(i))
			if err != nil {
				return nil, err
			}
		}
		rv.Set(slice)
		return rest, nil
	case tagMap:
		n, rest2, err := getUint32(rest)
		if err != nil {
			return nil, err
		}
		rest = rest2
		m := reflect.MakeMapWithSize(rv.Type(), int(n))
		keyType := rv.Type().Key()
		valType := rv.Type().Elem()
		for i := 0; i < int(n); i++ {
			var keyStr string
			keyStr, rest, err = decodeString(rest)
			if err != nil {
				return nil, err
			}
			key := reflect.New(keyType).Elem()
			if keyType.Kind() == reflect.String {
				key.SetString(keyStr)
			} else {
				return nil, fmt.Errorf("unsupported non-string map key type %s", keyType)
			}
			val := reflect.New(valType).Elem()
			rest, err = decodeValue(rest, val)
			if err != nil {
				return nil, err
			}
			m.SetMapIndex(key, val)
		}
		rv.Set(m)
		return rest, nil
	case tagStruct:
		n, rest2, err := getUint32(rest)
		if err != nil {
			return nil, err
		}
		rest = rest2
		for i := 0; i < int(n); i++ {
			var fieldName string
			fieldName, rest, err = decodeString(rest)
			if err != nil {
				return nil, err
			}
			field := rv.FieldByName(fieldName)
			if !field.IsValid() {
				return nil, fmt.Errorf("unknown field %s for type %s", fieldName, rv.Type())
			}
			rest, err = decodeValue(rest, field)
			if err != nil {
				return nil, err
			}
		}
		return rest, nil
	default:
		return nil, fmt.Errorf("unknown tag 0x%02x", tag)
	}
}
