package index

import (
	"reflect"
	"testing"
)

func TestProjectedKeys(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		indexNull bool
		want      []string
	}{
		{name: "string passes through", value: "ada@example.com", want: []string{"ada@example.com"}},
		{name: "nil without index-null yields nothing", value: nil, want: nil},
		{name: "nil with index-null yields the null key", value: nil, indexNull: true, want: []string{NullKey}},
		{name: "non-string scalar is canonicalized", value: 42, want: []string{"42"}},
		{
			name:  "list yields one key per element",
			value: []any{"a", "b"},
			want:  []string{"a", "b"},
		},
		{
			name:      "nil element in list honors index-null",
			value:     []any{"a", nil},
			indexNull: true,
			want:      []string{"a", NullKey},
		},
		{
			name:  "nil element in list dropped without index-null",
			value: []any{"a", nil},
			want:  []string{"a"},
		},
		{
			name:  "non-string map value canonicalizes with sorted keys",
			value: map[string]any{"b": 1, "a": 2},
			want:  []string{`{"a":2,"b":1}`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProjectedKeys(tt.value, tt.indexNull)
			if err != nil {
				t.Fatalf("ProjectedKeys: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ProjectedKeys(%v, %v) = %v, want %v", tt.value, tt.indexNull, got, tt.want)
			}
		})
	}
}

func TestFirstNonEmptyKey(t *testing.T) {
	p := FieldProjection("email")

	k, ok, err := FirstNonEmptyKey(p, map[string]any{"email": "ada@example.com"})
	if err != nil {
		t.Fatalf("FirstNonEmptyKey: %v", err)
	}
	if !ok || k != "ada@example.com" {
		t.Errorf("FirstNonEmptyKey = (%q, %v), want (ada@example.com, true)", k, ok)
	}

	_, ok, err = FirstNonEmptyKey(p, map[string]any{})
	if err != nil {
		t.Fatalf("FirstNonEmptyKey: %v", err)
	}
	if ok {
		t.Errorf("FirstNonEmptyKey on missing field should report ok=false")
	}
}
