package cache

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces cache keys in Redis.
const KeyPrefix = "kitsu"

// Key identifies a cached Kitsu response.
type Key struct {
	// Endpoint is the request path (e.g., "/api/edge/anime")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"filter[text]": "naruto"})
	QueryParams url.Values
}

// KeyFromRequest builds the key for a request.
func KeyFromRequest(req *http.Request) Key {
	return Key{
		Endpoint:    req.URL.Path,
		QueryParams: req.URL.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: kitsu:endpoint:query1=val1:query2=val2,val3
//
// Example:
//
//	kitsu:api/edge/anime:filter[text]=naruto:page[limit]=10:page[offset]=0
func (k Key) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism; multi-valued params keep their order.
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, key+"="+strings.Join(k.QueryParams[key], ","))
		}
	}

	return strings.Join(parts, ":")
}
