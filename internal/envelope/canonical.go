// Package envelope implements the cryptographic envelope shared by every
// protocol message: canonical serialization, SHA3-256 hashing, sign/verify
// delegation and the five receipt-time invariants.
//
// Canonicalization must match bit-for-bit across heterogeneous peer
// implementations, so the serialization rules below are part of the wire
// protocol, not an implementation detail: object keys sorted lexicographically
// at every depth, ISO-8601 UTC timestamps, numbers emitted as numbers, and
// fixed ": "/", " separators.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

const timeLayout = time.RFC3339Nano

// Canonicalize serializes msg's fields (excluding the message's own hash
// and signature fields, discovered by naming convention) into the
// deterministic textual form used for hashing and signing.
func Canonicalize(msg interface{}) ([]byte, error) {
	v, err := canonicalValue(msg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// canonicalValue flattens a message struct into an ordered set of
// (name, value) pairs, dropping the message's own hash and signature
// fields: the LAST field matching each naming convention in declaration
// order. A message may legitimately carry earlier fields referencing a
// predecessor's hash, and those stay in the hash input.
func canonicalValue(msg interface{}) (orderedMap, error) {
	rv := reflect.ValueOf(msg)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return orderedMap{}, fmt.Errorf("envelope: nil message")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return orderedMap{}, fmt.Errorf("envelope: message must be a struct, got %s", rv.Kind())
	}

	fields := reflect.VisibleFields(rv.Type())
	type entry struct {
		name  string
		value reflect.Value
	}
	entries := make([]entry, 0, len(fields))
	hashIdx, sigIdx := -1, -1
	for _, f := range fields {
		if f.PkgPath != "" || !f.IsExported() {
			continue
		}
		name, omitempty, skip := jsonTag(f)
		if skip || isSignatureDictFieldName(name) {
			continue
		}
		fv := rv.FieldByIndex(f.Index)
		if omitempty && isEmptyValue(fv) {
			continue
		}
		entries = append(entries, entry{name: name, value: fv})
		idx := len(entries) - 1
		if isHashFieldName(name) {
			hashIdx = idx
		}
		if isSignatureFieldName(name) {
			sigIdx = idx
		}
	}

	out := newOrderedMap()
	for i, e := range entries {
		if i == hashIdx || i == sigIdx {
			continue
		}
		cv, err := toCanonical(e.name, e.value)
		if err != nil {
			return orderedMap{}, fmt.Errorf("envelope: field %s: %w", e.name, err)
		}
		out.set(e.name, cv)
	}
	return out, nil
}

// isHashFieldName and isSignatureFieldName implement the naming
// convention hash/signature discovery runs on: hash fields are named
// sha3_256_hash_of_<kind>_fields, signature fields carry "_signature" in
// their name. A message's own hash and signature are the LAST such
// fields in declaration order; earlier matches (predecessor hash
// references) stay in the hash input. Quorum signature dicts are the
// exception and are left out (see isSignatureDictFieldName).
func isHashFieldName(name string) bool {
	return strings.HasPrefix(name, "sha3_256_hash_of_")
}

func isSignatureFieldName(name string) bool {
	return strings.Contains(name, "_signature") || name == "signature"
}

// isSignatureDictFieldName marks quorum signature dicts. They are
// excluded from the hash input like the terminal signature field:
// each entry is a signature over the message's hash, so it cannot be
// part of the digest it signs.
func isSignatureDictFieldName(name string) bool {
	return strings.HasSuffix(name, "_signatures_dict")
}

func jsonTag(f reflect.StructField) (name string, omitempty bool, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = f.Name
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.Len() == 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return false
}

// toCanonical converts a single struct field's value into the generic
// value tree writeCanonical knows how to serialize.
func toCanonical(name string, v reflect.Value) (interface{}, error) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		return toCanonical(name, v.Elem())
	}

	if t, ok := v.Interface().(time.Time); ok {
		return t.UTC().Format(timeLayout), nil
	}

	switch v.Kind() {
	case reflect.String:
		s := v.String()
		switch {
		case strings.HasSuffix(name, "_json_b64"):
			// Opaque base64 payload, passed through unchanged.
			return s, nil
		case strings.HasSuffix(name, "_json"):
			// Parsed and re-canonicalized so hashing is stable across
			// producers that may format the embedded JSON differently.
			var nested interface{}
			dec := json.NewDecoder(strings.NewReader(s))
			dec.UseNumber()
			if err := dec.Decode(&nested); err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
			return canonicalFromGeneric(nested), nil
		default:
			return s, nil
		}
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(fmt.Sprintf("%d", v.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return json.Number(fmt.Sprintf("%d", v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return json.Number(formatFloat(v.Float())), nil
	case reflect.Slice, reflect.Array:
		n := v.Len()
		out := make([]interface{}, n)
		for i := 0; i < n; i++ {
			cv, err := toCanonical(name, v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case reflect.Map:
		m := newOrderedMap()
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			cv, err := toCanonical(name, iter.Value())
			if err != nil {
				return nil, err
			}
			m.set(key, cv)
		}
		return m, nil
	case reflect.Struct:
		m := newOrderedMap()
		for _, f := range reflect.VisibleFields(v.Type()) {
			if f.PkgPath != "" || !f.IsExported() {
				continue
			}
			fname, omitempty, skip := jsonTag(f)
			if skip {
				continue
			}
			fv := v.FieldByIndex(f.Index)
			if omitempty && isEmptyValue(fv) {
				continue
			}
			cv, err := toCanonical(fname, fv)
			if err != nil {
				return nil, err
			}
			m.set(fname, cv)
		}
		return m, nil
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return toCanonical(name, v.Elem())
	default:
		return nil, fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

// canonicalFromGeneric converts the result of a json.Decoder(UseNumber)
// decode (map[string]interface{}/[]interface{}/json.Number/string/bool/nil)
// into our ordered-map tree so keys sort at every depth.
func canonicalFromGeneric(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := newOrderedMap()
		for k, val := range t {
			m.set(k, canonicalFromGeneric(val))
		}
		return m
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = canonicalFromGeneric(e)
		}
		return out
	default:
		return t
	}
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

// orderedMap keeps insertion order for building but is always serialized
// with keys sorted lexicographically, per the canonical-form rule.
type orderedMap struct {
	keys map[string]interface{}
}

func newOrderedMap() orderedMap { return orderedMap{keys: make(map[string]interface{})} }

func (m orderedMap) set(k string, v interface{}) { m.keys[k] = v }

func (m orderedMap) sortedKeys() []string {
	ks := make([]string, 0, len(m.keys))
	for k := range m.keys {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// writeCanonical serializes v using the protocol's canonical form: sorted
// object keys, ": " key/value separator, ", " entry separator, numbers
// emitted as numbers, strings JSON-escaped.
func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case orderedMap:
		buf.WriteByte('{')
		keys := t.sortedKeys()
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteString(": ")
			if err := writeCanonical(buf, t.keys[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(t.String())
	case string:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	default:
		return fmt.Errorf("canonical: unsupported value type %T", v)
	}
	return nil
}
