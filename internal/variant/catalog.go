package variant

import (
	"fmt"
	"sort"
	"strings"
)

// Constructor builds a fresh variant instance for one object.
type Constructor func() Variant

// Catalog maps object type tags to variant constructors.
type Catalog struct {
	items map[Type]Constructor
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{items: make(map[Type]Constructor)}
}

// DefaultCatalog returns a catalog with the built-in variants registered.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	_ = c.Register(TypePickupable, func() Variant { return NewPickupable() })
	_ = c.Register(TypeAIVehicle, func() Variant { return NewAIVehicle() })
	return c
}

// Register binds a constructor to a type tag.
func (c *Catalog) Register(t Type, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("%w: nil constructor for %q", ErrUnsupportedObjectType, t)
	}
	if !isValidTag(string(t)) {
		return fmt.Errorf("%w: invalid tag %q", ErrUnsupportedObjectType, t)
	}
	if _, ok := c.items[t]; ok {
		return fmt.Errorf("%w: %q", ErrConstructorExists, t)
	}
	c.items[t] = ctor
	return nil
}

// New constructs the variant for t, failing for unknown tags so an object is
// never registered without a behavior.
func (c *Catalog) New(t Type) (Variant, error) {
	ctor, ok := c.items[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedObjectType, t)
	}
	v := ctor()
	if v == nil {
		return nil, fmt.Errorf("%w: constructor for %q returned nil", ErrUnsupportedObjectType, t)
	}
	return v, nil
}

// Types returns registered tags in deterministic order.
func (c *Catalog) Types() []Type {
	list := make([]Type, 0, len(c.items))
	for t := range c.items {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i] < list[j]
	})
	return list
}

// ParseType normalizes a configured tag.
func ParseType(raw string) Type {
	return Type(strings.ToLower(strings.TrimSpace(raw)))
}

func isValidTag(tag string) bool {
	if tag == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '_' || c == '-' || c == '.'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(tag)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
