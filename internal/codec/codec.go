// Package codec implements the value codec (component B): typed records are
// marshaled to a JSON object carrying a discriminator field, and decoded
// back through an explicit name-to-constructor registry supplied by the
// caller at Open time — per the teacher's Design Notes, no reflection over
// struct tags is attempted.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/keredson/shadb/internal/errs"
)

// DiscriminatorKey is the field injected into (and stripped from) the
// on-disk JSON object of a registered typed record.
const DiscriminatorKey = "__dataclass__"

// Decoder reconstructs a typed value from its JSON object payload with the
// discriminator already removed.
type Decoder func(raw json.RawMessage) (any, error)

type entry struct {
	name   string
	decode Decoder
}

// Registry maps Go types to type tags (for encoding) and type tags to
// decoders (for decoding). Register mutates it without locking, and
// Repo.RegisterType can call Register after Open has returned.
type Registry struct {
	byType map[reflect.Type]string
	byName map[string]entry
}

// NewRegistry returns an empty registry. Untyped map[string]any documents
// need no registration; their type tag is read from a "type" field, or
// falls back to the literal "obj".
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]string),
		byName: make(map[string]entry),
	}
}

// Register associates a Go type (identified by a zero value of it, or a
// pointer to one) with a name used as its on-disk discriminator, and the
// function that reconstructs it on load.
func (r *Registry) Register(name string, sample any, decode Decoder) error {
	if name == "" {
		return fmt.Errorf("codec: register: name must not be empty")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("codec: register: %q already registered", name)
	}
	rt := reflect.TypeOf(sample)
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	r.byType[rt] = name
	r.byName[name] = entry{name: name, decode: decode}
	return nil
}

// Encode converts v into its canonical on-disk representation: a
// map[string]any ready for pretty-printed, sorted-key JSON marshaling, and
// the type tag that drives path placement (§4.A/§4.B).
//
// If v is already a map[string]any, its own "type" field is used (or the
// literal "obj" if absent). Otherwise v's Go type must have been
// registered; the record is marshaled to JSON, unmarshaled back into a
// map so the discriminator can be injected, and re-tagged.
func (r *Registry) Encode(v any) (doc map[string]any, typeTag string, err error) {
	if m, ok := v.(map[string]any); ok {
		tag := "obj"
		if t, ok := m["type"].(string); ok && t != "" {
			tag = t
		}
		return cloneMap(m), tag, nil
	}

	rt := reflect.TypeOf(v)
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	name, ok := r.byType[rt]
	if !ok {
		return nil, "", fmt.Errorf("%w: type %s not registered", errs.ErrUnknownTypeTag, rt)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("codec: encode %s: %w", name, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, "", fmt.Errorf("codec: encode %s: %w", name, err)
	}
	m[DiscriminatorKey] = name
	return m, name, nil
}

// Decode parses raw JSON bytes into either a typed record (if the object
// carries a recognized discriminator) or a plain map[string]any.
func (r *Registry) Decode(raw []byte) (any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	tag, ok := m[DiscriminatorKey].(string)
	if !ok {
		return m, nil
	}
	e, ok := r.byName[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownTypeTag, tag)
	}
	delete(m, DiscriminatorKey)
	stripped, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", tag, err)
	}
	return e.decode(stripped)
}

// Marshal pretty-prints doc with 2-space indentation and sorted keys, per
// §6's JSON payload contract. encoding/json already sorts map[string]any
// keys when marshaling, so canonical-JSON key ordering for index values
// (§3 "Normalized key") falls out of the same call.
func Marshal(doc map[string]any) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// CanonicalJSON renders an arbitrary (non-string) key value as sorted-key,
// compact JSON for use as a normalized index key (§3).
func CanonicalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedKeys returns m's keys in sorted order, for deterministic iteration
// over a document's fields without re-marshaling it.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
