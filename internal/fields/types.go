// Package fields implements user-defined custom field definitions and the
// codec that converts custom field values between their in-memory form and
// the canonical string stored alongside a contact.
package fields

import (
	"maps"
	"slices"
	"time"
)

// Type identifies the kind of value a custom field holds.
type Type string

const (
	TypeText         Type = "text"
	TypeNumber       Type = "number"
	TypeDate         Type = "date"
	TypeEmail        Type = "email"
	TypePhone        Type = "phone"
	TypeSingleSelect Type = "single_select"
	TypeMultiSelect  Type = "multi_select"
	TypeBool         Type = "bool"
)

var allTypes = []Type{
	TypeText,
	TypeNumber,
	TypeDate,
	TypeEmail,
	TypePhone,
	TypeSingleSelect,
	TypeMultiSelect,
	TypeBool,
}

// Types returns every supported field type in declaration order.
func Types() []Type {
	return slices.Clone(allTypes)
}

// Valid reports whether t is one of the supported field types.
func (t Type) Valid() bool {
	return slices.Contains(allTypes, t)
}

// IsSelect reports whether the type carries an option list.
func (t Type) IsSelect() bool {
	return t == TypeSingleSelect || t == TypeMultiSelect
}

// Definition describes one custom field. Key is unique across definitions.
type Definition struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Type      Type      `json:"type"`
	Options   []string  `json:"options,omitempty"`
	Required  bool      `json:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// HasOption reports whether value is one of the definition's options.
func (d Definition) HasOption(value string) bool {
	return slices.Contains(d.Options, value)
}

// Catalog indexes definitions by key.
type Catalog map[string]Definition

// NewCatalog builds a catalog from a list of definitions.
func NewCatalog(defs []Definition) Catalog {
	c := make(Catalog, len(defs))
	for _, d := range defs {
		c[d.Key] = d
	}
	return c
}

// Keys returns the catalog keys in ascending order.
func (c Catalog) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Values maps a field key to its encoded value. A nil pointer is an explicit
// empty value, which is different from the key being absent.
type Values map[string]*string

// Clone returns a copy of v. The string pointers are copied too.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, s := range v {
		if s == nil {
			out[k] = nil
			continue
		}
		cp := *s
		out[k] = &cp
	}
	return out
}

// Merge returns a copy of v with every entry of delta applied on top.
func (v Values) Merge(delta Values) Values {
	out := v.Clone()
	for k, s := range delta {
		out[k] = s
	}
	return out
}

// Keys returns the value keys in ascending order.
func (v Values) Keys() []string {
	return slices.Sorted(maps.Keys(v))
}

// Str returns a pointer to s. Handy for building Values literals.
func Str(s string) *string {
	return &s
}
