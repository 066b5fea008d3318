package dre

import (
	"strings"
	"time"

	"github.com/erp/dre/internal/domain/shared"
)

// Visibility controls who can see a template in the template library
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// IsValid returns true if the visibility is known
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityShared, VisibilityPublic:
		return true
	}
	return false
}

// Template is the reusable definition of a report's rows
type Template struct {
	shared.BaseAggregateRoot `yaml:",inline"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Owner       string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	Visibility  Visibility `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Items       []LineItem `json:"items" yaml:"items"`
}

// NewTemplate creates a new template with a fresh identity
func NewTemplate(name, owner string, items []LineItem) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Template name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Template name cannot exceed 200 characters")
	}
	return &Template{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Owner:             owner,
		Visibility:        VisibilityPrivate,
		Items:             items,
	}, nil
}

// Rename changes the template name
func (t *Template) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Template name cannot be empty")
	}
	t.Name = name
	t.touch()
	return nil
}

// ReplaceItems swaps the template's rows. Callers validate before saving.
func (t *Template) ReplaceItems(items []LineItem) {
	t.Items = items
	t.touch()
}

// SetVisibility changes who can see the template
func (t *Template) SetVisibility(v Visibility) error {
	if !v.IsValid() {
		return shared.NewDomainError("INVALID_VISIBILITY", "Unknown template visibility")
	}
	t.Visibility = v
	t.touch()
	return nil
}

// Describe replaces the description and tags
func (t *Template) Describe(description string, tags []string) {
	t.Description = strings.TrimSpace(description)
	t.Tags = tags
	t.touch()
}

// Item returns the row with the given code
func (t *Template) Item(code string) (LineItem, bool) {
	for _, it := range t.Items {
		if it.Code == code {
			return it, true
		}
	}
	return LineItem{}, false
}

func (t *Template) touch() {
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}
