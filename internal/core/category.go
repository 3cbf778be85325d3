package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the closed set of spending partitions. Adding one requires a
// new storage migration; nothing creates categories at runtime.
type Category int

const (
	Fuel Category = iota
	Products
	Food
	Coffee
	Gifting

	categoryCount
)

var categoryNames = [categoryCount]string{
	Fuel:     "Fuel",
	Products: "Products",
	Food:     "Food",
	Coffee:   "Coffee",
	Gifting:  "Gifting",
}

// Categories returns every category in canonical order.
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) Valid() bool {
	return c >= 0 && c < categoryCount
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a display name, case-insensitively.
func ParseCategory(name string) (Category, error) {
	name = strings.TrimSpace(name)
	for c := Category(0); c < categoryCount; c++ {
		if strings.EqualFold(categoryNames[c], name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Category) MarshalJSON() ([]byte, error) {
	b, err := c.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(b))
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return c.UnmarshalText([]byte(s))
}
