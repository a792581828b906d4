// Package webhook delivers domain events to brand-configured HTTP
// endpoints: canonical JSON body, HMAC-SHA256 signature, exponential
// backoff retries (signature scheme and 2**retry_count backoff follow
// core/infrastructure/webhooks.py).
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Sign computes the hex-encoded HMAC-SHA256 of body under secret. Delivered
// to the receiving endpoint in the X-Webhook-Signature header as the bare
// hex digest, with no prefix.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature (the bare hex digest) matches body
// under secret. Comparison is constant-time
// so the endpoint's verification code can't be timed to leak the digest.
func Verify(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// CanonicalJSON marshals v with object keys sorted, so the same logical
// payload always produces the same bytes and therefore the same
// signature — independent of Go map iteration order.
func CanonicalJSON(v map[string]any) ([]byte, error) {
	return marshalSorted(v)
}

func marshalSorted(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := marshalSorted(t[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []any:
		buf := []byte{'['}
		for i, e := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			eb, err := marshalSorted(e)
			if err != nil {
				return nil, err
			}
			buf = append(buf, eb...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(v)
	}
}
