package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Tracking parameters stripped during link canonicalization. Two sources
// linking the same article through different campaigns must produce the
// same id.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"source": true,
}

// CanonicalLink normalizes a link for identity purposes: scheme and host
// are lowercased, the fragment is dropped, a trailing slash is trimmed
// from the path and tracking query parameters are removed. Remaining
// query parameters are re-encoded in sorted order. Unparsable links are
// returned unchanged.
func CanonicalLink(link string) string {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return strings.TrimSpace(link)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for param := range query {
			if trackingParams[param] || strings.HasPrefix(strings.ToLower(param), "utm_") {
				query.Del(param)
			}
		}
		parsed.RawQuery = encodeSorted(query)
	}

	return parsed.String()
}

// ItemID derives the deduplication key. Items without a link fall back to
// title and source so they still get a stable identity.
func ItemID(link, title, sourceID string) string {
	content := CanonicalLink(link)
	if content == "" {
		content = title + "|" + sourceID
	}

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// encodeSorted is url.Values.Encode with deterministic value ordering for
// repeated keys as well as keys.
func encodeSorted(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		vs := append([]string(nil), values[key]...)
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
