// Package checklist defines the service checklist domain model: templates,
// instances, responses, and the pure validation and transition rules that
// govern them. Nothing in this package performs I/O.
package checklist

import "sort"

// AnswerType classifies what kind of value an item accepts.
type AnswerType string

const (
	AnswerBoolean   AnswerType = "boolean"
	AnswerText      AnswerType = "text"
	AnswerNumber    AnswerType = "number"
	AnswerPhoto     AnswerType = "photo"
	AnswerSignature AnswerType = "signature"
)

// Valid reports whether t is a known answer type.
func (t AnswerType) Valid() bool {
	switch t {
	case AnswerBoolean, AnswerText, AnswerNumber, AnswerPhoto, AnswerSignature:
		return true
	}
	return false
}

// Item is a single question in a checklist template.
type Item struct {
	ID           string     `json:"id"`
	Question     string     `json:"question"`
	Help         string     `json:"help,omitempty"`
	AnswerType   AnswerType `json:"answer_type"`
	DisplayOrder int        `json:"display_order"`
	// Required is the template's static flag. RequiredOverride, when set by
	// the catalog, takes precedence and is the authoritative gate for
	// finalization.
	Required         bool  `json:"required"`
	RequiredOverride *bool `json:"required_override,omitempty"`
}

// EffectiveRequired resolves the authoritative required flag: the catalog
// override wins over the template's static flag.
func (i Item) EffectiveRequired() bool {
	if i.RequiredOverride != nil {
		return *i.RequiredOverride
	}
	return i.Required
}

// Template is the immutable, server-defined list of questions for a service
// category. Templates are cached per category and never mutated after fetch.
type Template struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Items    []Item `json:"items"`
}

// Item returns the template item with the given id.
func (t Template) Item(id string) (Item, bool) {
	for _, item := range t.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// SortItems orders the template's items by display order in place.
// Fetch paths call this once so navigation and error reporting follow
// the server-defined ordering.
func (t *Template) SortItems() {
	sort.SliceStable(t.Items, func(a, b int) bool {
		return t.Items[a].DisplayOrder < t.Items[b].DisplayOrder
	})
}
