// Package catalog holds the static species -> disease catalog used to
// condition disease predictions on the predicted species.
//
// A Catalog is built once at startup and never mutated afterwards, so a
// single instance can be shared by concurrent requests without locking.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidCatalog is returned when catalog data fails structural checks.
var ErrInvalidCatalog = errors.New("invalid catalog")

// SpeciesKey is the canonical, lowercase identifier of a plant species
// (e.g. "apple", "tomato").
type SpeciesKey string

// Disease is one disease class the disease classifier can emit.
type Disease struct {
	// Label is the classifier's class label, e.g. "Tomato___Early_blight".
	Label string `yaml:"label" json:"label"`
	// Name is the human-readable disease name. Empty for healthy labels.
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Healthy bool   `yaml:"healthy,omitempty" json:"healthy,omitempty"`
	// Notes is optional markdown describing symptoms and treatment.
	Notes string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Species is a catalog entry.
type Species struct {
	Key             SpeciesKey `yaml:"key" json:"key"`
	ScientificNames []string   `yaml:"scientific_names,omitempty" json:"scientificNames,omitempty"`
	Diseases        []Disease  `yaml:"diseases" json:"diseases"`
}

// ScientificName maps a scientific-name substring to its species.
type ScientificName struct {
	Name    string
	Species SpeciesKey
}

// DiseaseSet is a read-only set of disease labels.
type DiseaseSet struct {
	labels map[string]struct{}
}

// Contains reports whether label is in the set.
func (s DiseaseSet) Contains(label string) bool {
	_, ok := s.labels[label]
	return ok
}

// Len returns the number of labels in the set.
func (s DiseaseSet) Len() int {
	return len(s.labels)
}

// Labels returns the set's labels in sorted order.
func (s DiseaseSet) Labels() []string {
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Catalog is the immutable species -> allowed diseases mapping plus the
// ordered scientific-name index.
type Catalog struct {
	species    []Species
	index      map[SpeciesKey]int
	allowed    map[SpeciesKey]DiseaseSet
	scientific []ScientificName
	diseases   map[string]Disease
}

// New builds a Catalog from species entries. Entry order is preserved and is
// significant for substring matching.
func New(species []Species) (*Catalog, error) {
	if len(species) == 0 {
		return nil, fmt.Errorf("%w: no species", ErrInvalidCatalog)
	}

	c := &Catalog{
		species:  make([]Species, 0, len(species)),
		index:    make(map[SpeciesKey]int, len(species)),
		allowed:  make(map[SpeciesKey]DiseaseSet, len(species)),
		diseases: make(map[string]Disease),
	}
	seenSci := make(map[string]SpeciesKey)

	for i, sp := range species {
		key := SpeciesKey(strings.TrimSpace(string(sp.Key)))
		if key == "" {
			return nil, fmt.Errorf("%w: species[%d] has an empty key", ErrInvalidCatalog, i)
		}
		if string(key) != strings.ToLower(string(key)) {
			return nil, fmt.Errorf("%w: species key %q must be lowercase", ErrInvalidCatalog, key)
		}
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate species key %q", ErrInvalidCatalog, key)
		}

		set := DiseaseSet{labels: make(map[string]struct{}, len(sp.Diseases))}
		for _, d := range sp.Diseases {
			if d.Label == "" {
				return nil, fmt.Errorf("%w: species %q has a disease with an empty label", ErrInvalidCatalog, key)
			}
			set.labels[d.Label] = struct{}{}
			c.diseases[d.Label] = d
		}

		for _, name := range sp.ScientificNames {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if owner, dup := seenSci[name]; dup {
				return nil, fmt.Errorf("%w: scientific name %q listed for both %q and %q", ErrInvalidCatalog, name, owner, key)
			}
			seenSci[name] = key
			c.scientific = append(c.scientific, ScientificName{Name: name, Species: key})
		}

		entry := Species{
			Key:             key,
			ScientificNames: slices.Clone(sp.ScientificNames),
			Diseases:        slices.Clone(sp.Diseases),
		}
		c.index[key] = len(c.species)
		c.species = append(c.species, entry)
		c.allowed[key] = set
	}

	return c, nil
}

// Has reports whether key is a known species.
func (c *Catalog) Has(key SpeciesKey) bool {
	_, ok := c.index[key]
	return ok
}

// AllowedDiseases returns the disease labels valid for key. Unknown keys
// yield an empty set.
func (c *Catalog) AllowedDiseases(key SpeciesKey) DiseaseSet {
	return c.allowed[key]
}

// Keys returns the species keys in catalog order.
func (c *Catalog) Keys() []SpeciesKey {
	keys := make([]SpeciesKey, len(c.species))
	for i, sp := range c.species {
		keys[i] = sp.Key
	}
	return keys
}

// ScientificNames returns the scientific-name index in catalog order.
func (c *Catalog) ScientificNames() []ScientificName {
	return slices.Clone(c.scientific)
}

// Species returns the catalog entry for key.
func (c *Catalog) Species(key SpeciesKey) (Species, bool) {
	i, ok := c.index[key]
	if !ok {
		return Species{}, false
	}
	sp := c.species[i]
	sp.ScientificNames = slices.Clone(sp.ScientificNames)
	sp.Diseases = slices.Clone(sp.Diseases)
	return sp, true
}

// All returns every species entry in catalog order.
func (c *Catalog) All() []Species {
	out := make([]Species, 0, len(c.species))
	for _, sp := range c.species {
		s, _ := c.Species(sp.Key)
		out = append(out, s)
	}
	return out
}

// Disease looks up a disease by its classifier label.
func (c *Catalog) Disease(label string) (Disease, bool) {
	d, ok := c.diseases[label]
	return d, ok
}

// DisplayName returns the human-readable name for a disease label. Healthy
// labels and labels without a name return "".
func (c *Catalog) DisplayName(label string) string {
	d, ok := c.diseases[label]
	if !ok || d.Healthy {
		return ""
	}
	return d.Name
}
