// CLAUDE:SUMMARY Entitlement data model: Record (verbatim JSON), Snapshot (ordered array), pretty-printed encoding shared by all stores.
// Package snapshot holds the entitlement data model.
//
// A Snapshot is the complete set of entitlement records currently held by the
// relay. It is always replaced wholesale: there is no per-record identity, no
// merge and no append. Records are kept as the exact JSON value the sender
// posted so that a read returns what was written, values unchanged.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Record is one entitlement entry. No schema is enforced: it is usually a JSON
// object mapping field names to scalars, but any JSON value is carried as-is.
type Record json.RawMessage

// MarshalJSON returns the record verbatim.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON stores a copy of data.
func (r *Record) UnmarshalJSON(data []byte) error {
	if r == nil {
		return errors.New("snapshot: UnmarshalJSON on nil Record")
	}
	*r = append((*r)[:0], data...)
	return nil
}

// IsObject reports whether the record is a JSON object.
func (r Record) IsObject() bool {
	b := bytes.TrimLeft(r, " \t\r\n")
	return len(b) > 0 && b[0] == '{'
}

// Fields decodes an object record. Numbers are returned as json.Number so
// that integer precision survives the round trip.
func (r Record) Fields() (map[string]any, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("snapshot: record is not an object")
	}
	dec := json.NewDecoder(bytes.NewReader(r))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("snapshot: decode record: %w", err)
	}
	return m, nil
}

// Field is one named value of an ordered record.
type Field struct {
	Name  string
	Value any
}

// NewRecord builds an object record whose keys appear in the given order.
// Later fields with a name already present overwrite the earlier value but
// keep its position.
func NewRecord(fields []Field) (Record, error) {
	pos := make(map[string]int, len(fields))
	ordered := make([]Field, 0, len(fields))
	for _, f := range fields {
		if i, ok := pos[f.Name]; ok {
			ordered[i].Value = f.Value
			continue
		}
		pos[f.Name] = len(ordered)
		ordered = append(ordered, f)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range ordered {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode key %q: %w", f.Name, err)
		}
		v, err := marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode field %q: %w", f.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return Record(buf.Bytes()), nil
}

// Snapshot is the ordered sequence of records persisted as one JSON array.
type Snapshot []Record

// Encode serializes s as a pretty-printed JSON array with two-space
// indentation. A nil snapshot encodes as an empty array.
func Encode(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// marshal is json.Marshal without HTML escaping, so "&" stays "&".
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses persisted bytes. The top-level value must be an array.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if s == nil {
		// "null" unmarshals into a nil slice without error.
		return nil, fmt.Errorf("snapshot: decode: %w", ErrNotArray)
	}
	return s, nil
}
