package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonicalize returns a canonical JSON representation of v.
// Keys are sorted alphabetically for consistent fingerprinting.
func Canonicalize(v interface{}) string {
	result, _ := canonicalizeValue(v)
	return result
}

// Fingerprint returns the hex sha256 of the canonical form of v.
func Fingerprint(v interface{}) string {
	hash := sha256.Sum256([]byte(Canonicalize(v)))
	return hex.EncodeToString(hash[:])
}

func canonicalizeValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case int:
		return fmt.Sprintf("%d", val), nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case float64:
		// JSON numbers are float64
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val)), nil
		}
		return fmt.Sprintf("%g", val), nil
	case string:
		b, _ := json.Marshal(val)
		return string(b), nil
	case []string:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, _ := canonicalizeValue(item)
			parts = append(parts, s)
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, _ := canonicalizeValue(item)
			parts = append(parts, s)
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			keyStr, _ := json.Marshal(k)
			valStr, _ := canonicalizeValue(val[k])
			parts = append(parts, string(keyStr)+":"+valStr)
		}
		return "{" + strings.Join(parts, ",") + "}", nil
	default:
		b, _ := json.Marshal(v)
		return string(b), nil
	}
}
