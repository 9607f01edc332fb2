// Package respcache is a cache-aside layer for GET responses. Keys are
// scoped by organization, principal, and role so a shared cache never
// leaks entries across tenants or permission levels.
package respcache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const keyPrefix = "v1:resp"

// Key builds the composite cache key for one request. Query parameters
// are sorted before hashing so parameter order does not fragment entries.
func Key(endpoint, orgID, principalID, roleOrTier string, params url.Values) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var qs strings.Builder
	for _, name := range names {
		values := append([]string(nil), params[name]...)
		sort.Strings(values)
		for _, v := range values {
			qs.WriteString(name)
			qs.WriteByte('=')
			qs.WriteString(v)
			qs.WriteByte('&')
		}
	}
	digest := md5.Sum([]byte(qs.String()))

	return strings.Join([]string{
		keyPrefix,
		endpoint,
		orgID,
		principalID,
		roleOrTier,
		hex.EncodeToString(digest[:]),
	}, ":")
}
