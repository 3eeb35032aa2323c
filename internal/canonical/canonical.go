// Package canonical maps free-form species labels produced by the species
// classifier onto the catalog's canonical species keys.
package canonical

import (
	"strings"

	"github.com/leaflens/leaflens/internal/catalog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var punctuation = strings.NewReplacer(".", "", ",", "")

// Index is the read-only lookup data a Canonicalizer scans. *catalog.Catalog
// satisfies it.
type Index interface {
	ScientificNames() []catalog.ScientificName
	Keys() []catalog.SpeciesKey
}

type entry struct {
	needle string
	key    catalog.SpeciesKey
}

// Canonicalizer resolves species labels by ordered substring scans: all
// scientific names first, then the species keys themselves. It is immutable
// and safe for concurrent use.
type Canonicalizer struct {
	scientific []entry
	common     []entry
}

// New snapshots idx into a Canonicalizer. Scan order follows idx order.
func New(idx Index) *Canonicalizer {
	c := &Canonicalizer{}
	for _, sn := range idx.ScientificNames() {
		if n := Normalize(sn.Name); n != "" {
			c.scientific = append(c.scientific, entry{needle: n, key: sn.Species})
		}
	}
	for _, k := range idx.Keys() {
		if n := Normalize(string(k)); n != "" {
			c.common = append(c.common, entry{needle: n, key: k})
		}
	}
	return c
}

// Canonicalize returns the species key for rawLabel, or false when neither a
// scientific name nor a species key occurs in the normalized label.
func (c *Canonicalizer) Canonicalize(rawLabel string) (catalog.SpeciesKey, bool) {
	name := Normalize(rawLabel)
	if name == "" {
		return "", false
	}

	// Scientific names go first: a common name such as "apple" can appear
	// inside an unrelated vernacular string.
	for _, e := range c.scientific {
		if strings.Contains(name, e.needle) {
			return e.key, true
		}
	}
	for _, e := range c.common {
		if strings.Contains(name, e.needle) {
			return e.key, true
		}
	}
	return "", false
}

// Normalize lowercases s, strips periods and commas, and trims surrounding
// whitespace.
func Normalize(s string) string {
	// A Caser holds state, so each call gets its own.
	s = cases.Lower(language.Und).String(s)
	s = punctuation.Replace(s)
	return strings.TrimSpace(s)
}
