package registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed checkpoints.yaml
var defaultCatalog []byte

// catalogFile is the on-disk YAML layout.
type catalogFile struct {
	Checkpoints []Checkpoint `yaml:"checkpoints"`
}

// SortKey selects the ordering used by Sorted.
type SortKey string

// Supported sort keys.
const (
	SortByOrder SortKey = "order"
	SortByName  SortKey = "name"
	SortByArea  SortKey = "area"
)

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the built-in catalog. It panics if the embedded catalog is invalid.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Parse(defaultCatalog)
		if err != nil {
			panic(fmt.Sprintf("registry: embedded catalog: %v", err))
		}

		defaultReg = reg
	})

	return defaultReg
}

// Parse decodes a YAML catalog and builds a registry from it.
func Parse(data []byte) (*Registry, error) {
	var file catalogFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(&file)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return New(file.Checkpoints)
}

// LoadFile reads a YAML catalog from path. An empty path yields the built-in catalog.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	return Parse(data)
}

// Sorted returns the checkpoints ordered by the given key. Unknown keys fall back to order.
func (r *Registry) Sorted(key SortKey) []Checkpoint {
	out := r.All()

	switch key {
	case SortByName:
		slices.SortStableFunc(out, func(a, b Checkpoint) int { return strings.Compare(a.Name, b.Name) })
	case SortByArea:
		slices.SortStableFunc(out, func(a, b Checkpoint) int { return strings.Compare(a.Area, b.Area) })
	case SortByOrder:
	}

	return out
}

// Search returns checkpoints whose name, area or description contains keyword,
// case-insensitively. An empty keyword matches everything.
func (r *Registry) Search(keyword string) []Checkpoint {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return r.All()
	}

	var out []Checkpoint

	for _, cp := range r.ordered {
		if strings.Contains(strings.ToLower(cp.Name), needle) ||
			strings.Contains(strings.ToLower(cp.Area), needle) ||
			strings.Contains(strings.ToLower(cp.Description), needle) {
			out = append(out, cp)
		}
	}

	return out
}
