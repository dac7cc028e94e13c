package persona

import "strings"

// FallbackDisplayName is used when neither a mapping nor a first name exists.
const FallbackDisplayName = "Unknown"

// IdentityMap maps lowercase platform handles (or numeric ids rendered as
// strings) to display names. It is loaded once at startup and read-only for
// the lifetime of the process.
type IdentityMap map[string]string

// NewIdentityMap normalizes a raw mapping: keys are lowercased, blank keys
// and values are dropped.
func NewIdentityMap(raw map[string]string) IdentityMap {
	m := make(IdentityMap, len(raw))
	for key, value := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		m[key] = value
	}
	return m
}

// Resolve picks the display name for a sender. Precedence: handle lookup
// (case-insensitive), numeric-id lookup, first name, fixed fallback. The
// order is load-bearing: the resolved name selects the persona branch.
func (m IdentityMap) Resolve(handle, senderID, firstName string) string {
	if handle != "" {
		if name, ok := m[strings.ToLower(handle)]; ok {
			return name
		}
	}
	if senderID != "" {
		if name, ok := m[senderID]; ok {
			return name
		}
	}
	if firstName != "" {
		return firstName
	}
	return FallbackDisplayName
}
