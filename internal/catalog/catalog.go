// Package catalog holds the static registry of gateway payload fields and
// their display metadata.
package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateKey = errors.New("duplicate catalog key")
	ErrEmptyKey     = errors.New("empty catalog key")
	ErrEmptyName    = errors.New("empty display name")
)

// Category is the kind of physical quantity a field reports.
type Category string

const (
	CategoryNone           Category = ""
	CategoryEnergy         Category = "energy"
	CategoryPower          Category = "power"
	CategoryVoltage        Category = "voltage"
	CategoryCurrent        Category = "current"
	CategoryGas            Category = "gas"
	CategorySignalStrength Category = "signal_strength"
)

// Aggregation tells consumers how successive values of a field relate.
type Aggregation string

const (
	AggregationNone            Aggregation = ""
	AggregationTotalIncreasing Aggregation = "total_increasing"
	AggregationMeasurement     Aggregation = "measurement"
)

// Descriptor is the immutable metadata for one payload field.
// An empty Unit marks a text or enum-like field that is never coerced.
type Descriptor struct {
	Key         string      `json:"key" yaml:"key"`
	Name        string      `json:"name" yaml:"name"`
	Unit        string      `json:"unit,omitempty" yaml:"unit"`
	Category    Category    `json:"category,omitempty" yaml:"category"`
	Aggregation Aggregation `json:"aggregation,omitempty" yaml:"aggregation"`
	Icon        string      `json:"icon,omitempty" yaml:"icon"`
}

// Numeric reports whether values of this field are coerced to numbers.
func (d Descriptor) Numeric() bool { return d.Unit != "" }

// Catalog is an ordered, duplicate-free set of descriptors.
// It is safe for concurrent use since nothing mutates it after New.
type Catalog struct {
	entries []Descriptor
	index   map[string]int
	tokens  map[string]string
	aliases map[string]string   // legacy key -> canonical key
	legacy  map[string][]string // canonical key -> legacy keys
}

// New validates the entries and precomputes normalized tokens.
// aliases maps alternate payload keys onto canonical entry keys.
func New(entries []Descriptor, aliases map[string]string) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Descriptor, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		tokens:  make(map[string]string, len(entries)),
		aliases: make(map[string]string, len(aliases)),
		legacy:  make(map[string][]string, len(aliases)),
	}

	for _, d := range entries {
		if d.Key == "" {
			return nil, ErrEmptyKey
		}
		if d.Name == "" {
			return nil, fmt.Errorf("%w: %s", ErrEmptyName, d.Key)
		}
		if _, ok := c.index[d.Key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, d.Key)
		}
		c.index[d.Key] = len(c.entries)
		c.entries = append(c.entries, d)
		c.tokens[d.Key] = Normalize(d.Key)
	}

	for alt, canonical := range aliases {
		if _, ok := c.index[alt]; ok {
			return nil, fmt.Errorf("%w: alias %s shadows an entry", ErrDuplicateKey, alt)
		}
		if _, ok := c.index[canonical]; !ok {
			return nil, fmt.Errorf("alias %s targets unknown key %s", alt, canonical)
		}
		c.aliases[alt] = canonical
		c.legacy[canonical] = append(c.legacy[canonical], alt)
	}

	return c, nil
}

// MustNew is New for built-in tables; it panics on an invalid table.
func MustNew(entries []Descriptor, aliases map[string]string) *Catalog {
	c, err := New(entries, aliases)
	if err != nil {
		panic(err)
	}

	return c
}

// Lookup returns the descriptor for a canonical key or one of its aliases.
func (c *Catalog) Lookup(key string) (Descriptor, bool) {
	canonical, ok := c.Resolve(key)
	if !ok {
		return Descriptor{}, false
	}

	return c.entries[c.index[canonical]], true
}

// Resolve maps a raw payload key to the canonical catalog key.
func (c *Catalog) Resolve(key string) (string, bool) {
	if _, ok := c.index[key]; ok {
		return key, true
	}
	canonical, ok := c.aliases[key]

	return canonical, ok
}

// Aliases lists the alternate payload keys accepted for a canonical key.
func (c *Catalog) Aliases(key string) []string {
	return c.legacy[key]
}

// Entries returns the descriptors in declaration order. The slice is a copy.
func (c *Catalog) Entries() []Descriptor {
	out := make([]Descriptor, len(c.entries))
	copy(out, c.entries)

	return out
}

// Len is the number of canonical entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Token returns the normalized token for a key precomputed at load time.
// Keys outside the catalog are normalized on the fly.
func (c *Catalog) Token(key string) string {
	if canonical, ok := c.Resolve(key); ok {
		return c.tokens[canonical]
	}

	return Normalize(key)
}
