// Package hashing provides the canonical, order-stable encoding and
// content hash used to fingerprint inputs and artefacts (spec.md §4.2).
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Result is the canonical JSON form of a value plus its sha256 hash.
type Result struct {
	Canonical string
	Hash      string
}

// HashPayload computes the canonical encoding and sha256 hash of v.
//
// Canonicalization rules: nil marshals to JSON null; object keys sort
// ascending lexicographically and recurse; arrays keep their order and
// recurse; non-finite floats serialize as their textual form ("Infinity",
// "-Infinity", "NaN"); every other scalar passes through standard JSON.
func HashPayload(v interface{}) Result {
	canonical := encode(v)
	sum := sha256.Sum256([]byte(canonical))
	return Result{Canonical: canonical, Hash: hex.EncodeToString(sum[:])}
}

// HashInputPayload hashes a raw input payload value.
func HashInputPayload(payload interface{}) string {
	return HashPayload(payload).Hash
}

// HashArtefactOutput hashes an artefact's output (blob ref or inline
// value, never both).
func HashArtefactOutput(blob interface{}, inline *string) string {
	out := map[string]interface{}{}
	if blob != nil {
		out["blob"] = blob
	}
	if inline != nil {
		out["inline"] = *inline
	}
	return HashPayload(out).Hash
}

// HashInputs hashes a sorted copy of ids — hash(sorted(inputs)).
func HashInputs(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return HashPayload(sorted).Hash
}

// encode renders v into its canonical JSON text.
func encode(v interface{}) string {
	var buf []byte
	buf = appendValue(buf, v)
	return string(buf)
}

func appendValue(buf []byte, v interface{}) []byte {
	switch val := v.(type) {
	case nil:
		return append(buf, "null"...)
	case map[string]interface{}:
		return appendObject(buf, val)
	case []interface{}:
		return appendArray(buf, val)
	case float64:
		return appendFloat(buf, val)
	case float32:
		return appendFloat(buf, float64(val))
	default:
		// Scalars (string, bool, int family, or anything else
		// encoding/json already renders deterministically) and any
		// nested struct/map types not already normalized to the two
		// generic forms above. Marshal through encoding/json and, if
		// the result is itself an object or array, re-walk it so
		// nested key ordering is still canonicalized.
		b, err := json.Marshal(val)
		if err != nil {
			// Scalars passed to HashPayload are expected to be
			// JSON-marshalable; a failure here means the caller
			// handed us something structurally invalid.
			return append(buf, fmt.Sprintf("%q", fmt.Sprintf("<unmarshalable:%v>", err))...)
		}
		var generic interface{}
		if err := json.Unmarshal(b, &generic); err != nil {
			return append(buf, b...)
		}
		if _, isScalar := scalarKind(generic); isScalar {
			return append(buf, b...)
		}
		return appendValue(buf, generic)
	}
}

func scalarKind(v interface{}) (interface{}, bool) {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return nil, false
	default:
		return v, true
	}
}

func appendObject(buf []byte, m map[string]interface{}) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, _ := json.Marshal(k)
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')
		buf = appendValue(buf, m[k])
	}
	buf = append(buf, '}')
	return buf
}

func appendArray(buf []byte, arr []interface{}) []byte {
	buf = append(buf, '[')
	for i, v := range arr {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendValue(buf, v)
	}
	buf = append(buf, ']')
	return buf
}

func appendFloat(buf []byte, f float64) []byte {
	if math.IsNaN(f) {
		return append(buf, `"NaN"`...)
	}
	if math.IsInf(f, 1) {
		return append(buf, `"Infinity"`...)
	}
	if math.IsInf(f, -1) {
		return append(buf, `"-Infinity"`...)
	}
	b, _ := json.Marshal(f)
	return append(buf, b...)
}
