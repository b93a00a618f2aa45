// Package originpolicy decides whether a request's declared origin may be
// granted cross-origin access.
//
// An AllowList is derived from a raw comma-separated configuration value,
// shared immutably across request handlers, and consulted with strict
// byte-for-byte equality: no wildcard expansion, no suffix matching, no
// case folding, no trailing-slash normalization. Broader access requires
// an explicit allowlist entry, never a looser match.
package originpolicy

import "strings"

// DefaultOrigins is the fallback used when the allowlist was never
// configured: local development frontends only.
var DefaultOrigins = AllowList{
	"http://localhost:3000",
	"http://localhost:5173",
}

// AllowList is an ordered list of permitted origins in the form
// scheme://host[:port], with no trailing slash. Duplicates are harmless.
// A nil or empty list permits no cross-origin access.
type AllowList []string

// Parse derives an AllowList from a raw comma-separated value. Entries are
// trimmed of surrounding whitespace; entries that trim to nothing are
// dropped. No other validation or normalization is applied. Parse is
// idempotent: parsing a list's String form yields an equal list.
func Parse(raw string) AllowList {
	parts := strings.Split(raw, ",")
	list := make(AllowList, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		list = append(list, trimmed)
	}
	return list
}

// Derive resolves an optional raw configuration value into an AllowList.
// A nil raw means the value was never set and defaults are returned
// verbatim. A non-nil raw is always parsed, so an explicitly empty value
// yields an empty list that denies all cross-origin access. Misconfiguration
// narrows access; it never widens it to a wildcard.
func Derive(raw *string, defaults AllowList) AllowList {
	if raw == nil {
		return defaults
	}
	return Parse(*raw)
}

// Contains reports whether origin exactly equals one of the entries.
func (l AllowList) Contains(origin string) bool {
	for _, allowed := range l {
		if allowed == origin {
			return true
		}
	}
	return false
}

// String renders the list back into its configuration form.
func (l AllowList) String() string {
	return strings.Join(l, ",")
}
