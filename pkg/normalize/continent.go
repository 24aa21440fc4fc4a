package normalize

import (
	"sort"
	"strings"
)

// Pandemic names. These are the only rows ever written to the pandemics table.
const (
	PandemicSARS  = "SARS"
	PandemicCOVID = "COVID"
)

var validContinents = map[string]bool{
	"Africa":        true,
	"Asia":          true,
	"Europe":        true,
	"North America": true,
	"South America": true,
	"Oceania":       true,
	"Antarctica":    true,
}

// IsValidContinent reports whether name, once trimmed, is one of the seven continents.
func IsValidContinent(name string) bool {
	return validContinents[strings.TrimSpace(name)]
}

// Continents returns the allow-list sorted by name.
func Continents() []string {
	out := make([]string, 0, len(validContinents))
	for c := range validContinents {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Pandemics returns the fixed pandemic names in registration order.
func Pandemics() []string {
	return []string{PandemicSARS, PandemicCOVID}
}

// PandemicForFile guesses the pandemic a CSV file belongs to from its name.
// Anything not mentioning "sars" is COVID.
func PandemicForFile(name string) string {
	if strings.Contains(strings.ToLower(name), "sars") {
		return PandemicSARS
	}
	return PandemicCOVID
}
