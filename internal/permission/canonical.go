package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalJSON renders v as JSON with object keys sorted recursively,
// so two semantically identical argument maps (built by different code
// paths, or unmarshaled from JSON with different key orders) hash to
// the same digest.
func CanonicalJSON(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// normalize walks v, converting maps into orderedMap so json.Marshal
// emits their keys in sorted order. Slices and scalars pass through
// after their elements are normalized recursively.
func normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		om := orderedMap{}
		for _, k := range keys {
			nv, err := normalize(val[k])
			if err != nil {
				return nil, err
			}
			om = append(om, orderedEntry{Key: k, Value: nv})
		}
		return om, nil

	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			nv, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil

	default:
		return val, nil
	}
}

type orderedEntry struct {
	Key   string
	Value interface{}
}

type orderedMap []orderedEntry

// MarshalJSON writes the map as a JSON object preserving entry order,
// which here is always the sorted key order normalize() produced.
func (om orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, e := range om {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// ArgsDigest returns the hex-encoded SHA-256 of the canonical JSON
// encoding of args, used as half of a PermissionStore lookup key.
func ArgsDigest(args map[string]interface{}) (string, error) {
	canon, err := CanonicalJSON(args)
	if err != nil {
		return "", fmt.Errorf("permission: canonicalize arguments: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
