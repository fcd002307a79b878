// CLAUDE:SUMMARY Ingress payload tagged union (object / array / other) and its normalization into a canonical Snapshot.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the top-level shape of an ingress payload.
type Kind int

const (
	KindOther  Kind = iota // scalar or null
	KindObject             // single record, wrapped into a one-element array
	KindArray              // full snapshot, accepted as-is
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "other"
	}
}

// Payload is a decoded ingress body.
type Payload struct {
	Kind   Kind
	Object Record   // set when Kind == KindObject
	Array  Snapshot // set when Kind == KindArray
	Raw    json.RawMessage
}

// ParsePayload decodes an ingress body. An empty body or one that is not a
// single valid JSON value returns ErrNoData.
func ParsePayload(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return Payload{}, ErrNoData
	}

	p := Payload{Raw: json.RawMessage(trimmed)}
	switch trimmed[0] {
	case '{':
		p.Kind = KindObject
		p.Object = Record(trimmed)
	case '[':
		var arr Snapshot
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrNoData, err)
		}
		p.Kind = KindArray
		p.Array = arr
	default:
		p.Kind = KindOther
	}
	return p, nil
}

// Empty reports whether the payload is JSON-falsy: null, false, 0, "", {} or [].
// Webhook senders post these when a trigger fires with nothing to deliver.
func (p Payload) Empty() bool {
	switch p.Kind {
	case KindArray:
		return len(p.Array) == 0
	case KindObject:
		var m map[string]json.RawMessage
		if err := json.Unmarshal(p.Object, &m); err != nil {
			return false
		}
		return len(m) == 0
	default:
		var v any
		if err := json.Unmarshal(p.Raw, &v); err != nil {
			return false
		}
		switch x := v.(type) {
		case nil:
			return true
		case bool:
			return !x
		case float64:
			return x == 0
		case string:
			return x == ""
		}
		return false
	}
}

// Normalize returns the canonical array form: an object becomes a
// one-element snapshot, an array is returned as-is, anything else fails
// with ErrNotContainer.
func (p Payload) Normalize() (Snapshot, error) {
	switch p.Kind {
	case KindObject:
		return Snapshot{p.Object}, nil
	case KindArray:
		return p.Array, nil
	default:
		return nil, ErrNotContainer
	}
}

// RequireArray returns the payload only if it is already an array, with no
// object wrapping. Used by the upload flow.
func (p Payload) RequireArray() (Snapshot, error) {
	if p.Kind != KindArray {
		return nil, ErrNotArray
	}
	return p.Array, nil
}
