package matcher

// AliasTable maps normalized forecast names to a market ticker or to an alternate
// market-side name. It is read-only after construction.
type AliasTable struct {
	entries map[string]string
}

// NewAliasTable normalizes the keys of raw with n
func NewAliasTable(raw map[string]string, n *Normalizer) *AliasTable {
	entries := make(map[string]string, len(raw))
	for name, target := range raw {
		key := n.Normalize(name)
		if key == "" || target == "" {
			continue
		}
		entries[key] = target
	}
	return &AliasTable{entries: entries}
}

// Lookup returns the alias target for a normalized name
func (a *AliasTable) Lookup(normalized string) (string, bool) {
	if a == nil {
		return "", false
	}
	target, ok := a.entries[normalized]
	return target, ok
}

// Len returns the number of aliases
func (a *AliasTable) Len() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}
