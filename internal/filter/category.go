package filter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Item types used by the scale filter's category.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeFloat   = "float"
)

// Item is one entry of a configuration category. A nil Value means the
// item still carries its default.
type Item struct {
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Default     string  `json:"default"`
	Value       *string `json:"value,omitempty"`
}

// Current returns the item's value, or its default when unset.
func (it Item) Current() string {
	if it.Value != nil {
		return *it.Value
	}
	return it.Default
}

// Category is a named set of configuration items as handed to a filter by
// its host. It is not safe for concurrent mutation; the filter takes a
// snapshot at Init and Reconfigure.
type Category struct {
	Name  string
	items map[string]Item
}

// NewCategory creates an empty category.
func NewCategory(name string) *Category {
	return &Category{Name: name, items: make(map[string]Item)}
}

// ParseCategory decodes a category document of the form
// {"item": {"description": ..., "type": ..., "default": ..., "value": ...}}.
func ParseCategory(name string, data []byte) (*Category, error) {
	items := make(map[string]Item)
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: category %s: %w", ErrInvalidValue, name, err)
	}
	return &Category{Name: name, items: items}, nil
}

// DefaultCategory returns the scale filter's default configuration.
func DefaultCategory() *Category {
	c := NewCategory(PluginName)
	c.AddItem("plugin", Item{Description: "Scale filter plugin", Type: TypeString, Default: PluginName})
	c.AddItem(ItemEnable, Item{
		Description: "A switch that can be used to enable or disable execution of the scale filter.",
		Type:        TypeBoolean,
		Default:     "false",
	})
	c.AddItem(ItemFactor, Item{Description: "Scale factor for a reading value.", Type: TypeFloat, Default: "100.0"})
	return c
}

// AddItem adds or replaces an item.
func (c *Category) AddItem(name string, it Item) {
	c.items[name] = it
}

// ItemExists reports whether the category has an item called name.
func (c *Category) ItemExists(name string) bool {
	_, ok := c.items[name]
	return ok
}

// GetValue returns the current value of an item, or "" when it does not exist.
func (c *Category) GetValue(name string) string {
	return c.items[name].Current()
}

// SetValue sets the value of an existing item. Boolean items only accept
// "true" or "false"; other types are stored verbatim.
func (c *Category) SetValue(name, value string) error {
	it, ok := c.items[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, name)
	}
	if it.Type == TypeBoolean {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "false":
			value = strings.ToLower(strings.TrimSpace(value))
		default:
			return fmt.Errorf("%w: %s must be true or false, got %q", ErrInvalidValue, name, value)
		}
	}
	it.Value = &value
	c.items[name] = it
	return nil
}

// Items returns the item names in sorted order.
func (c *Category) Items() []string {
	names := make([]string, 0, len(c.items))
	for n := range c.items {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (c *Category) Clone() *Category {
	out := NewCategory(c.Name)
	for n, it := range c.items {
		if it.Value != nil {
			v := *it.Value
			it.Value = &v
		}
		out.items[n] = it
	}
	return out
}

// MarshalJSON encodes the items in the category document format.
func (c *Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.items)
}
