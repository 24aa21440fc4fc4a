// CLAUDE:SUMMARY Country name canonicalization (trim, NFC, synonym table) shared by every join key in the loader.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Aliases maps a raw spelling to its canonical country name.
type Aliases map[string]string

// ErrAliasChain is returned when an alias target is itself an alias key.
// Chains would make normalization depend on how many times it is applied.
var ErrAliasChain = errors.New("alias target is itself an alias")

var defaultAliases = Aliases{
	"US":                       "United States",
	"USA":                      "United States",
	"United States of America": "United States",
	"UK":                       "United Kingdom",
	"UAE":                      "United Arab Emirates",
	"South Korea":              "Korea, South",
}

// Normalizer canonicalizes country names against a synonym table.
type Normalizer struct {
	aliases Aliases
}

var std = &Normalizer{aliases: defaultAliases}

// NewNormalizer returns a Normalizer using the built-in synonyms plus extra.
// Entries in extra override built-ins with the same key.
func NewNormalizer(extra Aliases) (*Normalizer, error) {
	merged := make(Aliases, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		merged[k] = v
	}
	for k, v := range extra {
		k, v = clean(k), clean(v)
		if k == "" || v == "" {
			return nil, fmt.Errorf("alias %q -> %q: empty name", k, v)
		}
		merged[k] = v
	}
	for k, v := range merged {
		if _, ok := merged[v]; ok && k != v {
			return nil, fmt.Errorf("alias %q -> %q: %w", k, v, ErrAliasChain)
		}
	}
	return &Normalizer{aliases: merged}, nil
}

// Default returns the Normalizer backed by the built-in synonym table.
func Default() *Normalizer { return std }

// Country returns the canonical name for raw, or false if raw is blank.
func (n *Normalizer) Country(raw string) (string, bool) {
	s := clean(raw)
	if s == "" {
		return "", false
	}
	if canonical, ok := n.aliases[s]; ok {
		return canonical, true
	}
	return s, true
}

// Len returns the number of synonyms known to n.
func (n *Normalizer) Len() int { return len(n.aliases) }

// CountryName canonicalizes raw with the built-in synonym table.
func CountryName(raw string) (string, bool) {
	return std.Country(raw)
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
