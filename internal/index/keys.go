package index

import "github.com/keredson/shadb/internal/codec"

// NullKey is the normalized key a null projection result is indexed under
// when a descriptor opts into IndexNull (I3).
const NullKey = "null"

// ProjectedKeys turns one projection result into the set of normalized
// keys it should be indexed under, honoring the null policy (I3) and the
// multi-key policy (I4). A non-string scalar is serialized to canonical
// (sorted-key) JSON; a []any yields one normalized key per element.
func ProjectedKeys(value any, indexNull bool) ([]string, error) {
	if value == nil {
		if indexNull {
			return []string{NullKey}, nil
		}
		return nil, nil
	}
	if list, ok := value.([]any); ok {
		keys := make([]string, 0, len(list))
		for _, item := range list {
			if item == nil {
				if indexNull {
					keys = append(keys, NullKey)
				}
				continue
			}
			k, err := normalizeScalar(item)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
		return keys, nil
	}
	k, err := normalizeScalar(value)
	if err != nil {
		return nil, err
	}
	return []string{k}, nil
}

// FirstNonEmptyKey resolves a unique index's contribution to a document's
// signature (§3 "Signature"): the projection's first normalized key, or
// ("", false) if the projection yields nothing usable. A projection
// returning a list is undefined behavior per spec; this takes the first
// element, matching the "implementers may ... take the first" allowance.
func FirstNonEmptyKey(p Projection, doc map[string]any) (string, bool, error) {
	v, err := p.Apply(doc)
	if err != nil {
		return "", false, err
	}
	keys, err := ProjectedKeys(v, false)
	if err != nil {
		return "", false, err
	}
	if len(keys) == 0 || keys[0] == "" {
		return "", false, nil
	}
	return keys[0], true, nil
}

func normalizeScalar(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return codec.CanonicalJSON(v)
}
