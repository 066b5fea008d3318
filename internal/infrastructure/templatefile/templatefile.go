// Package templatefile reads and writes report templates as YAML or JSON
// documents, for the CLI and for seeding the template library.
package templatefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/erp/dre/internal/domain/dre"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a template. Flags are pointers so an
// absent key can be told apart from false.
type Document struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Owner       string         `yaml:"owner,omitempty" json:"owner,omitempty"`
	Visibility  string         `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	Tags        []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Items       []ItemDocument `yaml:"items" json:"items"`
}

// ItemDocument is one line item of a Document
type ItemDocument struct {
	Code        string   `yaml:"code" json:"code"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Kind        string   `yaml:"kind" json:"kind"`
	Level       int      `yaml:"level,omitempty" json:"level,omitempty"`
	Parent      string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	Accounts    []string `yaml:"accounts,omitempty" json:"accounts,omitempty"`
	CostCenters []string `yaml:"cost_centers,omitempty" json:"cost_centers,omitempty"`
	Formula     string   `yaml:"formula,omitempty" json:"formula,omitempty"`
	Calculated  *bool    `yaml:"calculated,omitempty" json:"calculated,omitempty"`
	Visible     *bool    `yaml:"visible,omitempty" json:"visible,omitempty"`
	Order       int      `yaml:"order,omitempty" json:"order,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Decode reads a template document. JSON is accepted as a YAML subset.
// Unknown keys are rejected so typos do not silently drop settings.
func Decode(r io.Reader) (dre.Template, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return dre.Template{}, errors.New("template document is empty")
		}
		return dre.Template{}, fmt.Errorf("decode template: %w", err)
	}
	return doc.ToTemplate()
}

// Load reads a template file
func Load(path string) (dre.Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return dre.Template{}, err
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return dre.Template{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// ToTemplate converts the document. Items default to visible, items with
// a formula default to calculated, and a missing order follows file order.
func (d Document) ToTemplate() (dre.Template, error) {
	t := dre.Template{
		Name:        strings.TrimSpace(d.Name),
		Description: d.Description,
		Owner:       d.Owner,
		Visibility:  dre.VisibilityPrivate,
		Tags:        d.Tags,
		Items:       make([]dre.LineItem, 0, len(d.Items)),
	}
	if d.Visibility != "" {
		t.Visibility = dre.Visibility(strings.ToLower(d.Visibility))
		if !t.Visibility.IsValid() {
			return dre.Template{}, fmt.Errorf("unknown visibility %q", d.Visibility)
		}
	}

	for i, it := range d.Items {
		kind, err := dre.ParseLineItemKind(it.Kind)
		if err != nil {
			return dre.Template{}, fmt.Errorf("item %d (%s): %w", i+1, it.Code, err)
		}
		item := dre.LineItem{
			Code:           strings.TrimSpace(it.Code),
			Name:           it.Name,
			Description:    it.Description,
			Kind:           kind,
			Level:          it.Level,
			ParentCode:     it.Parent,
			AccountRefs:    it.Accounts,
			CostCenterRefs: it.CostCenters,
			Formula:        it.Formula,
			IsCalculated:   it.Formula != "",
			IsVisible:      true,
			Order:          it.Order,
			Tags:           it.Tags,
		}
		if it.Calculated != nil {
			item.IsCalculated = *it.Calculated
		}
		if it.Visible != nil {
			item.IsVisible = *it.Visible
		}
		if item.Order == 0 {
			item.Order = i + 1
		}
		t.Items = append(t.Items, item)
	}
	return t, nil
}

// FromTemplate converts a template into its document form
func FromTemplate(t dre.Template) Document {
	doc := Document{
		Name:        t.Name,
		Description: t.Description,
		Owner:       t.Owner,
		Visibility:  string(t.Visibility),
		Tags:        t.Tags,
		Items:       make([]ItemDocument, 0, len(t.Items)),
	}
	for _, it := range t.Items {
		item := ItemDocument{
			Code:        it.Code,
			Name:        it.Name,
			Description: it.Description,
			Kind:        string(it.Kind),
			Level:       it.Level,
			Parent:      it.ParentCode,
			Accounts:    it.AccountRefs,
			CostCenters: it.CostCenterRefs,
			Formula:     it.Formula,
			Order:       it.Order,
			Tags:        it.Tags,
		}
		// only write flags that differ from the decoding defaults
		if it.IsCalculated != (it.Formula != "") {
			calculated := it.IsCalculated
			item.Calculated = &calculated
		}
		if !it.IsVisible {
			hidden := false
			item.Visible = &hidden
		}
		doc.Items = append(doc.Items, item)
	}
	return doc
}

// Encode writes t as YAML
func Encode(w io.Writer, t dre.Template) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromTemplate(t)); err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	return enc.Close()
}

// Marshal returns t as a YAML document
func Marshal(t dre.Template) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
