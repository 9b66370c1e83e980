package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/keredson/shadb/internal/errs"
)

type patient struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestEncodeUntypedMap(t *testing.T) {
	reg := NewRegistry()
	doc, tag, err := reg.Encode(map[string]any{"type": "Patient", "name": "Ada"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if tag != "Patient" {
		t.Errorf("tag = %q, want Patient", tag)
	}
	if doc["name"] != "Ada" {
		t.Errorf("doc[name] = %v, want Ada", doc["name"])
	}
}

func TestEncodeUntypedMapDefaultsToObj(t *testing.T) {
	reg := NewRegistry()
	_, tag, err := reg.Encode(map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if tag != "obj" {
		t.Errorf("tag = %q, want obj", tag)
	}
}

func TestEncodeRegisteredType(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register("patient", patient{}, func(raw json.RawMessage) (any, error) {
		var p patient
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	doc, tag, err := reg.Encode(patient{Name: "Ada", Age: 30})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if tag != "patient" {
		t.Errorf("tag = %q, want patient", tag)
	}
	if doc[DiscriminatorKey] != "patient" {
		t.Errorf("discriminator = %v, want patient", doc[DiscriminatorKey])
	}
}

func TestEncodeUnregisteredType(t *testing.T) {
	reg := NewRegistry()
	_, _, err := reg.Encode(patient{Name: "Ada"})
	if !errors.Is(err, errs.ErrUnknownTypeTag) {
		t.Fatalf("Encode on unregistered type: got %v, want ErrUnknownTypeTag", err)
	}
}

func TestRoundTrip(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("patient", patient{}, func(raw json.RawMessage) (any, error) {
		var p patient
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	doc, _, err := reg.Encode(patient{Name: "Ada", Age: 30})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decoded, err := reg.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p, ok := decoded.(patient)
	if !ok {
		t.Fatalf("Decode returned %T, want patient", decoded)
	}
	if p.Name != "Ada" || p.Age != 30 {
		t.Errorf("decoded = %+v, want {Ada 30}", p)
	}
}

func TestDecodeUnknownDiscriminator(t *testing.T) {
	reg := NewRegistry()
	raw := []byte(`{"__dataclass__":"missing"}`)
	_, err := reg.Decode(raw)
	if !errors.Is(err, errs.ErrUnknownTypeTag) {
		t.Fatalf("Decode with unknown discriminator: got %v, want ErrUnknownTypeTag", err)
	}
}

func TestDecodeUntaggedMap(t *testing.T) {
	reg := NewRegistry()
	raw := []byte(`{"name":"Ada"}`)
	v, err := reg.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("Decode returned %T, want map[string]any", v)
	}
	if m["name"] != "Ada" {
		t.Errorf("m[name] = %v, want Ada", m["name"])
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := CanonicalJSON(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	b, err := CanonicalJSON(map[string]any{"a": 2, "b": 1})
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if a != b {
		t.Errorf("CanonicalJSON not order-independent: %q != %q", a, b)
	}
}
