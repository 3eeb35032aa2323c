// Package labels maps classifier output indexes to class labels.
package labels

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/leaflens/leaflens/internal/catalog"
)

// UnknownSpecies is returned for a species id that has no name.
const UnknownSpecies = "Unknown Species"

// ErrInvalidTable is returned when a label file cannot be used.
var ErrInvalidTable = errors.New("invalid label table")

// classLabel is the placeholder for an index the table does not know about.
func classLabel(index int) string {
	return "class_" + strconv.Itoa(index)
}

// SpeciesTable resolves a species class index in two steps: index to
// species id, then species id to scientific name.
type SpeciesTable struct {
	ids   map[int]string
	names map[string]string
}

// LoadSpecies reads the index→id and id→name JSON objects from disk
func LoadSpecies(indexPath, namesPath string) (*SpeciesTable, error) {
	idx, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("reading species index file: %w", err)
	}
	names, err := os.ReadFile(namesPath)
	if err != nil {
		return nil, fmt.Errorf("reading species names file: %w", err)
	}
	return ParseSpecies(idx, names)
}

// ParseSpecies builds a SpeciesTable from JSON objects such as
// {"0": "1355868"} and {"1355868": "Lactuca virosa L."}.
func ParseSpecies(indexJSON, namesJSON []byte) (*SpeciesTable, error) {
	var rawIDs map[string]string
	if err := json.Unmarshal(indexJSON, &rawIDs); err != nil {
		return nil, fmt.Errorf("%w: species index: %v", ErrInvalidTable, err)
	}
	var names map[string]string
	if err := json.Unmarshal(namesJSON, &names); err != nil {
		return nil, fmt.Errorf("%w: species names: %v", ErrInvalidTable, err)
	}

	ids := make(map[int]string, len(rawIDs))
	for k, id := range rawIDs {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: species index key %q is not a class index", ErrInvalidTable, k)
		}
		ids[i] = id
	}
	return &SpeciesTable{ids: ids, names: names}, nil
}

// Label returns the scientific name for a class index.
func (t *SpeciesTable) Label(index int) string {
	id, ok := t.ids[index]
	if !ok {
		id = classLabel(index)
	}
	if name, ok := t.names[id]; ok {
		return name
	}
	return UnknownSpecies
}

// Len is the number of class indexes with a species id.
func (t *SpeciesTable) Len() int {
	return len(t.ids)
}

// DiseaseTable maps a disease class index to its label.
type DiseaseTable struct {
	labels []string
}

// LoadDisease reads a JSON array of disease class labels.
func LoadDisease(path string) (*DiseaseTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading disease labels file: %w", err)
	}
	return ParseDisease(data)
}

// ParseDisease builds a DiseaseTable from a JSON array; position is the
// class index.
func ParseDisease(data []byte) (*DiseaseTable, error) {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("%w: disease labels: %v", ErrInvalidTable, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: disease labels are empty", ErrInvalidTable)
	}
	return &DiseaseTable{labels: labels}, nil
}

// DiseaseFromCatalog lists every catalog disease label in sorted order,
// matching a classifier trained on one directory per class.
func DiseaseFromCatalog(c *catalog.Catalog) *DiseaseTable {
	var labels []string
	for _, sp := range c.All() {
		for _, d := range sp.Diseases {
			labels = append(labels, d.Label)
		}
	}
	sort.Strings(labels)
	return &DiseaseTable{labels: labels}
}

// Label returns the label at index, or class_<index> when out of range.
func (t *DiseaseTable) Label(index int) string {
	if index < 0 || index >= len(t.labels) {
		return classLabel(index)
	}
	return t.labels[index]
}

// Len is the number of disease classes.
func (t *DiseaseTable) Len() int {
	return len(t.labels)
}

// Labels returns a copy of the labels in index order.
func (t *DiseaseTable) Labels() []string {
	return append([]string(nil), t.labels...)
}
